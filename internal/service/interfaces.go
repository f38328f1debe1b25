// Package service defines the interfaces for all application services.
package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/morf3uzzz/second-brain-telegram-bot/internal/model"
)

// TabularStore defines the contract for the external tabular store backing
// categories. Row indices are 1-based and count the header row, matching the
// remote store's own addressing.
type TabularStore interface {
	// Categories returns the configured category catalogue in sheet order.
	Categories(ctx context.Context) (model.Catalogue, error)
	// Prompts returns prompt overrides keyed by prompt name. A missing
	// Prompts sheet yields an empty map, not an error.
	Prompts(ctx context.Context) (map[string]string, error)

	Headers(ctx context.Context, sheet string) ([]string, error)
	AllRows(ctx context.Context, sheet string) ([][]string, error)
	AppendRow(ctx context.Context, sheet string, row []string) error
	DeleteRow(ctx context.Context, sheet string, rowIndex int) error
	ListSheets(ctx context.Context) ([]string, error)
}

// ChatModel defines the contract for structured and free-text LLM completions.
type ChatModel interface {
	// ChatJSON requests a JSON-object completion. The returned payload is
	// raw; callers validate it into their own response structs.
	ChatJSON(ctx context.Context, systemPrompt, userPrompt, model string) (json.RawMessage, error)
	ChatText(ctx context.Context, systemPrompt, userPrompt, model string) (string, error)
}

// Transcriber converts an audio file into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string) (string, error)
}

// RetryOptions configures retry behavior for operations that may fail transiently.
type RetryOptions struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}
