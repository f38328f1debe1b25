// Package llm provides the OpenAI-compatible chat and transcription client
// used for intent detection, splitting, routing, extraction and Q&A.
package llm

import (
	"fmt"
	"strings"
	"time"
)

// Config holds configuration for the LLM client.
type Config struct {
	APIKey          string
	BaseURL         string
	RouterModel     string
	ExtractModel    string
	TranscribeModel string
	Temperature     float64
	Timeout         time.Duration
	RateLimit       int
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		BaseURL:         "https://api.openai.com/v1",
		RouterModel:     "gpt-4o",
		ExtractModel:    "gpt-4o",
		TranscribeModel: "whisper-1",
		Temperature:     0.2,
		Timeout:         180 * time.Second,
		RateLimit:       60,
	}
}

// Validate checks that the configuration is usable.
func (c Config) Validate() error {
	if strings.TrimSpace(c.APIKey) == "" {
		return fmt.Errorf("LLM API key is required")
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("temperature must be between 0 and 2, got %v", c.Temperature)
	}
	return nil
}

// RouterModelName returns the model used for routing-class calls, falling
// back to the default when unset.
func (c Config) RouterModelName() string {
	if c.RouterModel != "" {
		return c.RouterModel
	}
	return "gpt-4o"
}

// ExtractModelName returns the model used for extraction-class calls.
func (c Config) ExtractModelName() string {
	if c.ExtractModel != "" {
		return c.ExtractModel
	}
	return "gpt-4o"
}
