package models

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// GenerationKind represents the type of artifact a request asks for
type GenerationKind string

const (
	KindText  GenerationKind = "text"
	KindImage GenerationKind = "image"
)

func (k GenerationKind) String() string {
	return string(k)
}

// IsValid checks if the kind is one of the valid values
func (k GenerationKind) IsValid() bool {
	switch k {
	case KindText, KindImage:
		return true
	default:
		return false
	}
}

// ParseGenerationKind normalizes case and validates the kind
func ParseGenerationKind(s string) (GenerationKind, error) {
	kind := GenerationKind(strings.ToLower(strings.TrimSpace(s)))
	if !kind.IsValid() {
		return "", Errorf(ErrInvalidArgument, "Invalid type %q: must be \"text\" or \"image\"", s)
	}
	return kind, nil
}

// UnmarshalYAML implements custom YAML unmarshaling for GenerationKind
func (k *GenerationKind) UnmarshalYAML(value *yaml.Node) error {
	var str string
	if err := value.Decode(&str); err != nil {
		return err
	}

	kind, err := ParseGenerationKind(str)
	if err != nil {
		return fmt.Errorf("invalid generation kind '%s': must be one of 'text', 'image'", str)
	}
	*k = kind
	return nil
}
