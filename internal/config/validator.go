package config

import (
	"fmt"
	"strings"
	"time"
)

// Validator validates individual configuration values. Config.Validate
// runs it over a full Config; setup flows can check fields one at a time.
type Validator struct{}

// NewValidator creates a new validator.
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateAPIKey validates an API key format.
func (v *Validator) ValidateAPIKey(key string, provider string) error {
	if key == "" {
		return fmt.Errorf("%s API key cannot be empty", provider)
	}

	switch provider {
	case "anthropic":
		if !strings.HasPrefix(key, "sk-ant-") {
			return fmt.Errorf("invalid Anthropic API key format (should start with sk-ant-)")
		}
	case "openai":
		if !strings.HasPrefix(key, "sk-") {
			return fmt.Errorf("invalid OpenAI API key format (should start with sk-)")
		}
	}
	return nil
}

// ValidateModel validates a model name.
func (v *Validator) ValidateModel(model string) error {
	if model == "" {
		return fmt.Errorf("model name cannot be empty")
	}
	if strings.ContainsAny(model, " \t\n") {
		return fmt.Errorf("model name cannot contain whitespace")
	}
	return nil
}

// ValidateTemperature validates a sampling temperature.
func (v *Validator) ValidateTemperature(temp float64) error {
	if temp < 0 || temp > 2 {
		return fmt.Errorf("temperature must be between 0 and 2, got %f", temp)
	}
	return nil
}

// ValidateRetryDelay validates a duration string like "500ms" or "2s".
func (v *Validator) ValidateRetryDelay(s string) error {
	if s == "" {
		return nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid retry delay %q: %w", s, err)
	}
	if d < 0 {
		return fmt.Errorf("retry delay cannot be negative")
	}
	return nil
}

// ValidateFallback validates one fallback candidate entry.
func (v *Validator) ValidateFallback(s string) error {
	_, _, err := SplitCandidate(s)
	return err
}
