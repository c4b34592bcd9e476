// Package request turns raw command-line option values into a validated,
// immutable models.GenerationRequest.
package request

import (
	"math"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/status-im/promptctl/models"
)

// Accepted ranges for sampling parameters
const (
	MinTemperature = 0.0
	MaxTemperature = 2.0
	MinTopP        = 0.0
	MaxTopP        = 1.0
)

// RawOptions are option values exactly as the user typed them. Empty strings
// mean "not set".
type RawOptions struct {
	Kind        string
	Prompt      string
	Provider    string
	Model       string
	Temperature string
	TopP        string
	TopK        string
	MaxTokens   string
	System      string
	Output      string
	Stdout      bool
}

// Build validates raw and returns the request descriptor, or the first
// validation failure in this order: kind, prompt, model, temperature, top-p,
// top-k, max tokens, output target. All failures are models.ErrInvalidArgument.
func Build(raw RawOptions) (*models.GenerationRequest, error) {
	kind, err := models.ParseGenerationKind(raw.Kind)
	if err != nil {
		return nil, err
	}

	if strings.TrimSpace(raw.Prompt) == "" {
		return nil, models.Errorf(models.ErrInvalidArgument, "Prompt must not be empty")
	}

	prefs, err := ParseModelPreferences(raw.Model)
	if err != nil {
		return nil, err
	}

	temperature, err := parseFloatInRange(raw.Temperature, MinTemperature, MaxTemperature, "Temperature")
	if err != nil {
		return nil, err
	}

	topP, err := parseFloatInRange(raw.TopP, MinTopP, MaxTopP, "Top-p")
	if err != nil {
		return nil, err
	}

	topK, err := parsePositiveInt(raw.TopK, "Top-k")
	if err != nil {
		return nil, err
	}

	maxTokens, err := parsePositiveInt(raw.MaxTokens, "Max tokens")
	if err != nil {
		return nil, err
	}

	output, err := resolveOutput(raw.Output, raw.Stdout)
	if err != nil {
		return nil, err
	}

	return &models.GenerationRequest{
		ID:                uuid.New(),
		Kind:              kind,
		Prompt:            raw.Prompt,
		Provider:          optionalString(raw.Provider),
		ModelPreferences:  prefs,
		Temperature:       temperature,
		TopP:              topP,
		TopK:              topK,
		MaxTokens:         maxTokens,
		SystemInstruction: optionalString(raw.System),
		Output:            output,
	}, nil
}

// ParseModelPreferences parses "provider:model[,provider:model...]". Each pair
// splits on its first colon, so model names may themselves contain colons.
func ParseModelPreferences(s string) ([]models.ModelPreference, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}

	pairs := strings.Split(s, ",")
	prefs := make([]models.ModelPreference, 0, len(pairs))
	for _, pair := range pairs {
		provider, model, ok := strings.Cut(pair, ":")
		provider = strings.TrimSpace(provider)
		model = strings.TrimSpace(model)
		if !ok || provider == "" || model == "" {
			return nil, models.Errorf(models.ErrInvalidArgument,
				"Invalid model format %q: expected provider:model", strings.TrimSpace(pair))
		}
		prefs = append(prefs, models.ModelPreference{Provider: provider, Model: model})
	}

	return prefs, nil
}

func parseFloatInRange(s string, min, max float64, name string) (*float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || v < min || v > max {
		return nil, models.Errorf(models.ErrInvalidArgument,
			"%s must be between %.1f and %.1f, got %q", name, min, max, s)
	}

	return &v, nil
}

func parsePositiveInt(s string, name string) (*int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}

	v, err := strconv.Atoi(s)
	if err != nil || v <= 0 {
		return nil, models.Errorf(models.ErrInvalidArgument,
			"%s must be a positive integer, got %q", name, s)
	}

	return &v, nil
}

func resolveOutput(path string, stdout bool) (models.OutputTarget, error) {
	path = strings.TrimSpace(path)
	switch {
	case path != "" && stdout:
		return models.OutputTarget{}, models.Errorf(models.ErrInvalidArgument,
			"--output and --stdout cannot be used together")
	case path != "":
		return models.OutputTarget{Mode: models.OutputFile, Path: path}, nil
	case stdout:
		return models.OutputTarget{Mode: models.OutputStdout}, nil
	default:
		return models.OutputTarget{Mode: models.OutputDataURI}, nil
	}
}

func optionalString(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
