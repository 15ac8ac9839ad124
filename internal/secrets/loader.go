package secrets

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// ErrNotConfigured is returned for a required secret that no source provides.
var ErrNotConfigured = errors.New("not configured")

// Source describes where a secret may come from. The first configured of
// File, Value and Env is used.
type Source struct {
	// Name is used in error messages.
	Name string
	// Value is an inline secret from configuration or flags.
	Value string
	// File holds the secret. A configured file must exist and be non-empty.
	File string
	// Env names an environment variable holding the secret.
	Env string
	// Optional makes an unconfigured secret resolve to "".
	Optional bool
}

func (s Source) name() string {
	if n := strings.TrimSpace(s.Name); n != "" {
		return n
	}
	return "secret"
}

// Load resolves the secret and trims surrounding whitespace.
func Load(src Source) (string, error) {
	if path := strings.TrimSpace(src.File); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("reading %s from file %q: %w", src.name(), path, err)
		}
		secret := strings.TrimSpace(string(data))
		if secret == "" {
			return "", fmt.Errorf("%s file %q is empty", src.name(), path)
		}
		return secret, nil
	}

	for _, candidate := range []string{src.Value, env(src.Env)} {
		if secret := strings.TrimSpace(candidate); secret != "" {
			return secret, nil
		}
	}

	if src.Optional {
		return "", nil
	}
	return "", fmt.Errorf("%s is %w", src.name(), ErrNotConfigured)
}

func env(key string) string {
	if key == "" {
		return ""
	}
	return os.Getenv(key)
}
