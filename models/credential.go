package models

// CredentialRecord is a stored API key for one provider
type CredentialRecord struct {
	Provider string `json:"provider"`
	APIKey   string `json:"api_key"`
}

// MaskedCredential is a credential prepared for display
type MaskedCredential struct {
	Provider string `json:"provider"`
	APIKey   string `json:"api_key"`
}
