package config

import (
	"errors"
	"fmt"

	"github.com/caarlos0/env/v11"
)

// ErrMissingAPIKey is returned when a run needs the Transparency Portal
// key and TRANSPARENCY_API_KEY is unset
var ErrMissingAPIKey = errors.New("TRANSPARENCY_API_KEY is not set")

// Secrets are read from the environment only, never from config files
type Secrets struct {
	TransparencyAPIKey string `env:"TRANSPARENCY_API_KEY"`

	// Disables masking of credential headers in logs
	UnsafeHTTPLogging bool `env:"LOG_HTTP_UNSAFE" envDefault:"false"`
}

// LoadSecrets parses the environment
func LoadSecrets() (Secrets, error) {
	var s Secrets
	if err := env.Parse(&s); err != nil {
		return Secrets{}, fmt.Errorf("failed to parse environment: %w", err)
	}

	return s, nil
}

// Key returns the secret named by a catalog auth block
func (s Secrets) Key(name string) (string, error) {
	switch name {
	case "", "TRANSPARENCY_API_KEY":
		if s.TransparencyAPIKey == "" {
			return "", ErrMissingAPIKey
		}
		return s.TransparencyAPIKey, nil
	default:
		return "", fmt.Errorf("unknown secret %q", name)
	}
}
