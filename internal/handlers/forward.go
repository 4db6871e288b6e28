package handlers

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/mattjoyce/hookgate/internal/config"
	"github.com/mattjoyce/hookgate/internal/webhook"
)

// maxErrorBody caps how much of a failed downstream response is kept.
const maxErrorBody = 1024

// Forward relays the raw body to a downstream URL with the GitHub routing
// headers. When a downstream secret is set the body is re-signed with it.
type Forward struct {
	url     string
	headers map[string]string
	secret  []byte
	client  *http.Client
}

func NewForward(cfg config.HandlerConfig) (*Forward, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("forward handler requires a url")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = config.DefaultHandlerTimeout
	}

	headers := make(map[string]string, len(cfg.Headers))
	for k, v := range cfg.Headers {
		headers[k] = v
	}

	f := &Forward{
		url:     cfg.URL,
		headers: headers,
		client:  &http.Client{Timeout: timeout},
	}
	if cfg.Secret != "" {
		f.secret = []byte(cfg.Secret)
	}
	return f, nil
}

func (f *Forward) Handle(ctx context.Context, p *webhook.Payload) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.url, bytes.NewReader(p.Body()))
	if err != nil {
		return fmt.Errorf("build forward request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "hookgate")
	for k, v := range f.headers {
		req.Header.Set(k, v)
	}
	req.Header.Set(webhook.EventHeader, p.Event)
	req.Header.Set(webhook.DeliveryHeader, p.DeliveryID)
	if f.secret != nil {
		req.Header.Set(webhook.SignatureHeader, webhook.Sign(f.secret, p.Body()))
	}

	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		return fmt.Errorf("forward to %s: %w", f.url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return fmt.Errorf("forward to %s: status %d after %s: %s",
			f.url, resp.StatusCode, time.Since(start).Round(time.Millisecond), bytes.TrimSpace(snippet))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
