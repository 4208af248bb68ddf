package common

// ConfigurationError reports an invalid sync configuration or an invalid
// call, detected before any destination I/O is issued.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return "configuration error: " + e.Reason
}

// NewConfigurationError creates a ConfigurationError with the given reason.
func NewConfigurationError(reason string) *ConfigurationError {
	return &ConfigurationError{Reason: reason}
}
