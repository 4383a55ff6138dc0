package cert

import "fmt"

// LoadError reports a failure to load a certificate specification for
// a virtual host.
type LoadError struct {
	Server string
	Spec   *Spec
	Cause  error
}

// Error implements the error interface.
func (e *LoadError) Error() string {
	return fmt.Sprintf("failed to load certificate [server=%s, spec=%s]: %v",
		e.Server, specSource(e.Spec), e.Cause)
}

// Unwrap returns the underlying cause error.
func (e *LoadError) Unwrap() error {
	return e.Cause
}

// VerifierError reports a failure to build a client certificate
// verifier from a trust anchor file.
type VerifierError struct {
	Server string
	CAFile string
	Cause  error
}

// Error implements the error interface.
func (e *VerifierError) Error() string {
	return fmt.Sprintf("failed to build client verifier [server=%s, ca=%s]: %v",
		e.Server, e.CAFile, e.Cause)
}

// Unwrap returns the underlying cause error.
func (e *VerifierError) Unwrap() error {
	return e.Cause
}
