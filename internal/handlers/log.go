package handlers

import (
	"context"
	"log/slog"

	"github.com/mattjoyce/hookgate/internal/webhook"
)

// Log records each delivery at info level. The body is never logged.
type Log struct {
	logger *slog.Logger
}

func NewLog(logger *slog.Logger) *Log {
	return &Log{logger: logger}
}

func (l *Log) Handle(_ context.Context, p *webhook.Payload) error {
	attrs := []any{
		"event", p.Event,
		"kind", p.Kind.String(),
		"delivery_id", p.DeliveryID,
		"body_bytes", len(p.Body()),
	}
	if action := p.Action(); action != "" {
		attrs = append(attrs, "action", action)
	}
	l.logger.Info("webhook delivery received", attrs...)
	return nil
}
