package oauth

import "fmt"

// ConfigurationError reports an Authorizer that cannot be built. It is a
// programmer error and is not retryable.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("oauth: invalid configuration: %s: %s", e.Field, e.Reason)
}
