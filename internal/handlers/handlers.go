// Package handlers builds webhook handlers from configuration.
package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/mattjoyce/hookgate/internal/config"
	"github.com/mattjoyce/hookgate/internal/webhook"
)

// Build constructs every configured handler and registers it for its event
// in file order.
func Build(cfgs []config.HandlerConfig, logger *slog.Logger) (*webhook.Registry, error) {
	if logger == nil {
		logger = slog.Default()
	}

	b := webhook.NewRegistryBuilder()
	for i, cfg := range cfgs {
		h, err := New(cfg, logger.With("handler", cfg.Name))
		if err != nil {
			return nil, fmt.Errorf("handlers[%d] %q: %w", i, cfg.Name, err)
		}
		b.On(cfg.Kind(), webhook.Named(cfg.Name, h))
	}
	return b.Build(), nil
}

// New constructs the handler described by cfg.
func New(cfg config.HandlerConfig, logger *slog.Logger) (webhook.Handler, error) {
	var h webhook.Handler
	switch cfg.Type {
	case config.HandlerLog:
		h = NewLog(logger)
	case config.HandlerForward:
		f, err := NewForward(cfg)
		if err != nil {
			return nil, err
		}
		h = f
	case config.HandlerExec:
		h = NewExec(cfg, logger)
	default:
		return nil, fmt.Errorf("unsupported handler type %q", cfg.Type)
	}

	if len(cfg.Actions) > 0 {
		h = &actionFilter{actions: slices.Clone(cfg.Actions), next: h, logger: logger}
	}
	return h, nil
}

// actionFilter skips deliveries whose action is not listed.
type actionFilter struct {
	actions []string
	next    webhook.Handler
	logger  *slog.Logger
}

func (f *actionFilter) Handle(ctx context.Context, p *webhook.Payload) error {
	action := p.Action()
	if !slices.Contains(f.actions, action) {
		f.logger.Debug("skipping delivery for unlisted action", "action", action, "delivery_id", p.DeliveryID)
		return nil
	}
	return f.next.Handle(ctx, p)
}
