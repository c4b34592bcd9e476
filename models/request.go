package models

import (
	"fmt"

	"github.com/google/uuid"
)

// OutputMode represents where a generated artifact goes
type OutputMode string

const (
	OutputDataURI OutputMode = "data_uri" // print the result, no file write
	OutputFile    OutputMode = "file"
	OutputStdout  OutputMode = "stdout" // raw bytes to stdout
)

// OutputTarget is the destination of a generation result
type OutputTarget struct {
	Mode OutputMode `json:"mode"`
	Path string     `json:"path,omitempty"` // only for OutputFile
}

func (o OutputTarget) String() string {
	if o.Mode == OutputFile {
		return fmt.Sprintf("%s(%s)", o.Mode, o.Path)
	}
	return string(o.Mode)
}

// ModelPreference is one provider:model pair, tried in order
type ModelPreference struct {
	Provider string `json:"provider"`
	Model    string `json:"model"`
}

func (m ModelPreference) String() string {
	return m.Provider + ":" + m.Model
}

// GenerationRequest is the canonical, validated request descriptor.
// Optional numeric fields are nil when the caller did not set them.
type GenerationRequest struct {
	ID                uuid.UUID         `json:"id"`
	Kind              GenerationKind    `json:"kind"`
	Prompt            string            `json:"prompt"`
	Provider          *string           `json:"provider,omitempty"`
	ModelPreferences  []ModelPreference `json:"model_preferences,omitempty"`
	Temperature       *float64          `json:"temperature,omitempty"`
	TopP              *float64          `json:"top_p,omitempty"`
	TopK              *int              `json:"top_k,omitempty"`
	MaxTokens         *int              `json:"max_tokens,omitempty"`
	SystemInstruction *string           `json:"system_instruction,omitempty"`
	Output            OutputTarget      `json:"output"`
}

// ProviderName returns the explicitly requested provider or ""
func (r *GenerationRequest) ProviderName() string {
	if r.Provider == nil {
		return ""
	}
	return *r.Provider
}

// ModelFor returns the preferred model for a provider, or "" when none is listed
func (r *GenerationRequest) ModelFor(provider string) string {
	for _, pref := range r.ModelPreferences {
		if pref.Provider == provider {
			return pref.Model
		}
	}
	return ""
}
