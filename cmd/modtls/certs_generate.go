package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/TaIos/mod-tls/pkg/cert"
)

var generateFlags struct {
	hosts  string
	output string
}

var certsGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate self-signed certificates",
	Long: `Generate self-signed ECDSA certificates for testing.

One certificate and key pair is written per hostname, into
<output>/<hostname>.pem and <output>/<hostname>-key.pem. Self-signed
certificates are for testing only; a vhost running on them answers
every request with 503 until real certificates arrive.

Examples:
  # Generate a certificate for localhost
  modtls certs generate --host localhost

  # Generate for several hostnames
  modtls certs generate --host "a.example.org,b.example.org" --output certs/`,
	RunE: generateCertificates,
}

func init() {
	certsCmd.AddCommand(certsGenerateCmd)

	certsGenerateCmd.Flags().StringVar(&generateFlags.hosts, "host", "localhost", "comma-separated hostnames")
	certsGenerateCmd.Flags().StringVarP(&generateFlags.output, "output", "o", "certs", "output directory")
}

func generateCertificates(cmd *cobra.Command, args []string) error {
	if err := os.MkdirAll(generateFlags.output, 0o755); err != nil {
		return fmt.Errorf("cannot create output directory: %w", err)
	}

	for _, host := range strings.Split(generateFlags.hosts, ",") {
		host = strings.TrimSpace(host)
		if host == "" {
			continue
		}
		certPEM, keyPEM, err := cert.GenerateSelfSigned(host)
		if err != nil {
			return err
		}

		certFile := filepath.Join(generateFlags.output, host+".pem")
		keyFile := filepath.Join(generateFlags.output, host+"-key.pem")
		if err := os.WriteFile(certFile, []byte(certPEM), 0o644); err != nil {
			return err
		}
		if err := os.WriteFile(keyFile, []byte(keyPEM), 0o600); err != nil {
			return err
		}
		fmt.Printf("✓ %s: %s, %s\n", host, certFile, keyFile)
	}
	return nil
}
