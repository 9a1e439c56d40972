package narrative

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"
	"go.uber.org/atomic"

	"Wulin-Chronicle/server/internal/infra"
	"Wulin-Chronicle/server/internal/interfaces"
)

// CostMonitor logs every model call and publishes it for offline accounting.
// It never reports failure to the caller.
type CostMonitor struct {
	publisher infra.Publisher
	subject   string
	logger    zerolog.Logger

	calls  atomic.Int64
	tokens atomic.Int64
}

func NewCostMonitor(logger zerolog.Logger, publisher infra.Publisher, subject string) *CostMonitor {
	if publisher == nil {
		publisher = infra.NewNoopPublisher()
	}
	return &CostMonitor{
		publisher: publisher,
		subject:   subject,
		logger:    logger.With().Str("component", "cost").Logger(),
	}
}

func (m *CostMonitor) RecordCall(ctx context.Context, rec interfaces.CostRecord) {
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}
	m.calls.Inc()
	m.tokens.Add(int64(rec.TotalTokens))

	m.logger.Info().
		Str("layer", rec.Layer).
		Str("model", rec.Model).
		Int("prompt_tokens", rec.PromptTokens).
		Int("completion_tokens", rec.CompletionTokens).
		Int("total_tokens", rec.TotalTokens).
		Float64("duration_seconds", rec.DurationSeconds).
		Msg("model call")

	data, err := json.Marshal(rec)
	if err != nil {
		m.logger.Warn().Err(err).Msg("failed to encode cost record")
		return
	}
	if err := m.publisher.Publish(ctx, m.subject, data); err != nil {
		m.logger.Warn().Err(err).Str("subject", m.subject).Msg("failed to publish cost record")
	}
}

// Totals returns the number of calls and tokens seen since start.
func (m *CostMonitor) Totals() (calls, tokens int64) {
	return m.calls.Load(), m.tokens.Load()
}
