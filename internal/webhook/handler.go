package webhook

import (
	"context"
	"fmt"
)

//go:generate mockgen -destination=mocks/mock_handler.go -package=mocks github.com/mattjoyce/hookgate/internal/webhook Handler

// Handler processes one verified delivery. Handlers for the same delivery run
// one after another in registration order; a returned error is recorded and
// does not stop the handlers after it.
//
// Handlers must be safe to run again for the same delivery: the platform
// redelivers anything it believes failed.
type Handler interface {
	Handle(ctx context.Context, p *Payload) error
}

// HandlerFunc adapts an ordinary function to Handler.
type HandlerFunc func(ctx context.Context, p *Payload) error

// Handle calls f(ctx, p).
func (f HandlerFunc) Handle(ctx context.Context, p *Payload) error {
	return f(ctx, p)
}

type namedHandler struct {
	name string
	Handler
}

// Named attaches a name to h. The name shows up in logs, metrics and
// HandlerError.
func Named(name string, h Handler) Handler {
	return namedHandler{name: name, Handler: h}
}

func handlerName(h Handler, index int) string {
	if n, ok := h.(namedHandler); ok && n.name != "" {
		return n.name
	}
	return fmt.Sprintf("handler-%d", index)
}

// HandlerError records the failure of a single handler.
type HandlerError struct {
	Kind    EventKind
	Index   int
	Handler string
	Err     error
}

func (e *HandlerError) Error() string {
	return fmt.Sprintf("%s handler %q (#%d): %v", e.Kind, e.Handler, e.Index, e.Err)
}

func (e *HandlerError) Unwrap() error { return e.Err }
