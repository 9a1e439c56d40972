package interfaces

import (
	"context"
	"time"
)

// ResponseFormat asks the backend for free text or a JSON object.
type ResponseFormat string

const (
	FormatText ResponseFormat = "text"
	FormatJSON ResponseFormat = "json"
)

// GenerationRequest is one prompt for the language model.
type GenerationRequest struct {
	Prompt       string
	SystemPrompt string
	Format       ResponseFormat
	Model        string // empty means the backend default
}

// GenerationMetadata describes what a call cost.
type GenerationMetadata struct {
	Model            string
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
	Duration         time.Duration
}

// GenerationResponse is a successful completion.
type GenerationResponse struct {
	Content  string
	Metadata GenerationMetadata
}

// GenerationBackend produces text. A non-nil error means the call failed.
type GenerationBackend interface {
	Generate(ctx context.Context, req *GenerationRequest) (*GenerationResponse, error)
}

// CostRecord is the accounting entry for one model call.
type CostRecord struct {
	Timestamp        time.Time `json:"timestamp"`
	Layer            string    `json:"layer"`
	Model            string    `json:"model"`
	PromptTokens     int       `json:"prompt_tokens"`
	CompletionTokens int       `json:"completion_tokens"`
	TotalTokens      int       `json:"total_tokens"`
	DurationSeconds  float64   `json:"duration_seconds"`
}

// CostMonitor observes model usage. It must not affect gameplay.
type CostMonitor interface {
	RecordCall(ctx context.Context, rec CostRecord)
}
