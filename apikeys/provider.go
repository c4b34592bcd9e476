package apikeys

import (
	"context"
	"os"
	"strings"

	"github.com/status-im/promptctl/models"
)

// CredentialGetter is the read side of the credential vault
type CredentialGetter interface {
	Get(ctx context.Context, provider string) (models.CredentialRecord, error)
}

// SourceProvider resolves keys from the vault and the process environment
type SourceProvider struct {
	vault  CredentialGetter
	getenv func(string) string
}

// NewSourceProvider creates a KeyProvider over vault (may be nil) and getenv
// (os.Getenv when nil).
func NewSourceProvider(vault CredentialGetter, getenv func(string) string) *SourceProvider {
	if getenv == nil {
		getenv = os.Getenv
	}
	return &SourceProvider{vault: vault, getenv: getenv}
}

// GetKeys implements KeyProvider
func (p *SourceProvider) GetKeys(ctx context.Context, provider string, source KeySource) []string {
	switch source {
	case SourceVault:
		if p.vault == nil {
			return nil
		}
		record, err := p.vault.Get(ctx, provider)
		// NotFound and store failures both mean "nothing from this source"
		if err != nil {
			return nil
		}
		if record.APIKey == "" {
			return nil
		}
		return []string{record.APIKey}
	case SourceEnv:
		return splitKeys(p.getenv(EnvVarName(provider)))
	default:
		return nil
	}
}

func splitKeys(raw string) []string {
	var keys []string
	for _, k := range strings.Split(raw, ",") {
		if k = strings.TrimSpace(k); k != "" {
			keys = append(keys, k)
		}
	}
	return keys
}
