package apikeys

import (
	"context"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// KeySource identifies where a provider's API key came from
type KeySource int

const (
	// SourceVault is the key stored in the credential vault
	SourceVault KeySource = iota + 1
	// SourceEnv are keys from the <PROVIDER>_API_KEY environment variable
	SourceEnv
)

// DefaultSources is the lookup order used when none is configured
var DefaultSources = []KeySource{SourceVault, SourceEnv}

func (s KeySource) String() string {
	switch s {
	case SourceVault:
		return "vault"
	case SourceEnv:
		return "env"
	default:
		return "unknown"
	}
}

// ParseKeySource validates a source name
func ParseKeySource(s string) (KeySource, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "vault":
		return SourceVault, nil
	case "env":
		return SourceEnv, nil
	default:
		return 0, fmt.Errorf("invalid key source '%s': must be one of 'vault', 'env'", s)
	}
}

// UnmarshalYAML implements custom YAML unmarshaling for KeySource
func (s *KeySource) UnmarshalYAML(value *yaml.Node) error {
	var str string
	if err := value.Decode(&str); err != nil {
		return err
	}

	source, err := ParseKeySource(str)
	if err != nil {
		return err
	}
	*s = source
	return nil
}

// MarshalYAML writes the source by name
func (s KeySource) MarshalYAML() (interface{}, error) {
	return s.String(), nil
}

// APIKey represents an API key with its origin
type APIKey struct {
	Key      string
	Source   KeySource
	Provider string
}

// KeyProvider defines an interface for providing API keys
type KeyProvider interface {
	// GetKeys returns the keys a source holds for provider, possibly none
	GetKeys(ctx context.Context, provider string, source KeySource) []string
}

// EnvVarName returns the environment variable consulted for provider,
// e.g. "openai" -> "OPENAI_API_KEY", "vertex-ai" -> "VERTEX_AI_API_KEY".
func EnvVarName(provider string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(provider) {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	b.WriteString("_API_KEY")
	return b.String()
}
