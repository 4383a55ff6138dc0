// modtls is a TLS termination core with per-virtual-host policies.
//
// It compiles each virtual host's certificates, cipher preferences and
// protocol floor into an immutable policy at startup, then negotiates
// incoming connections in two phases: the client hello is captured
// first, the handshake is completed under the resolved server's policy
// second.
//
// Usage:
//
//	# Start with a configuration file
//	modtls run --config /etc/modtls/config.yaml
//
//	# Validate a configuration without serving
//	modtls validate --config /etc/modtls/config.yaml
//
//	# Generate a self-signed certificate for testing
//	modtls certs generate --host localhost
//
//	# Show version information
//	modtls version
package main

func main() {
	Execute()
}
