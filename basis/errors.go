package basis

import "fmt"

// ConfigurationError marks a problem that must stop a run before any
// stepping begins: unsupported shape or order, a missing material
// parameter, an unclaimed source. Always fatal.
type ConfigurationError struct {
	What string
}

func (e *ConfigurationError) Error() string { return e.What }

func NewConfigurationError(format string, args ...interface{}) *ConfigurationError {
	return &ConfigurationError{What: fmt.Sprintf(format, args...)}
}
