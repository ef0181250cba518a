package config

import (
	"fmt"
	"strings"
)

// ConfigError reports missing or unusable configuration.
type ConfigError struct {
	Missing []string
	Err     error
}

func (e *ConfigError) Error() string {
	switch {
	case len(e.Missing) > 0 && e.Err != nil:
		return fmt.Sprintf("missing configuration %s: %v", strings.Join(e.Missing, ", "), e.Err)
	case len(e.Missing) > 0:
		return fmt.Sprintf("missing configuration %s", strings.Join(e.Missing, ", "))
	case e.Err != nil:
		return fmt.Sprintf("invalid configuration: %v", e.Err)
	default:
		return "invalid configuration"
	}
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}
