package config

import "fmt"

// ConfigError is a startup-fatal configuration error. No server begins
// serving when one is raised.
type ConfigError struct {
	Server  string // Virtual host the error belongs to, empty for global
	Field   string // Configuration field, if attributable
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	prefix := "config error"
	if e.Server != "" {
		prefix = fmt.Sprintf("config error [server=%s]", e.Server)
	}
	if e.Field != "" {
		prefix = fmt.Sprintf("%s field %q:", prefix, e.Field)
	} else {
		prefix += ":"
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s %s: %v", prefix, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s %s", prefix, e.Message)
}

// Unwrap returns the underlying cause error.
func (e *ConfigError) Unwrap() error {
	return e.Cause
}

// NewConfigError creates a new ConfigError.
func NewConfigError(server, field, message string, cause error) *ConfigError {
	return &ConfigError{Server: server, Field: field, Message: message, Cause: cause}
}
