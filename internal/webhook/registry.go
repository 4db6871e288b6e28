package webhook

import (
	"context"
	"sort"
)

// RegistryBuilder collects handler registrations before serving starts.
// It is not safe for concurrent use.
type RegistryBuilder struct {
	handlers map[EventKind][]Handler
}

// NewRegistryBuilder returns an empty builder.
func NewRegistryBuilder() *RegistryBuilder {
	return &RegistryBuilder{handlers: make(map[EventKind][]Handler)}
}

// On appends h to the handlers for kind. Registering the same kind again adds
// to the list; it never replaces earlier handlers.
func (b *RegistryBuilder) On(kind EventKind, h Handler) *RegistryBuilder {
	if h == nil {
		return b
	}
	b.handlers[kind] = append(b.handlers[kind], h)
	return b
}

// OnFunc is On for a plain function.
func (b *RegistryBuilder) OnFunc(kind EventKind, fn func(ctx context.Context, p *Payload) error) *RegistryBuilder {
	if fn == nil {
		return b
	}
	return b.On(kind, HandlerFunc(fn))
}

// Build freezes the registrations into a Registry that owns its own copy of
// every handler list. The builder is left empty.
func (b *RegistryBuilder) Build() *Registry {
	frozen := make(map[EventKind][]Handler, len(b.handlers))
	for kind, hs := range b.handlers {
		frozen[kind] = append([]Handler(nil), hs...)
	}
	b.handlers = make(map[EventKind][]Handler)
	return &Registry{handlers: frozen}
}

// Registry is the read-only routing table from EventKind to handlers.
// It is safe for concurrent use.
type Registry struct {
	handlers map[EventKind][]Handler
}

// Resolve returns the handlers for kind in registration order. Kinds with no
// registrations yield an empty slice.
func (r *Registry) Resolve(kind EventKind) []Handler {
	if r == nil {
		return nil
	}
	hs := r.handlers[kind]
	if len(hs) == 0 {
		return nil
	}
	return append([]Handler(nil), hs...)
}

// Len returns the number of handlers registered for kind.
func (r *Registry) Len(kind EventKind) int {
	if r == nil {
		return 0
	}
	return len(r.handlers[kind])
}

// Kinds lists the kinds with at least one handler, ordered by kind.
func (r *Registry) Kinds() []EventKind {
	if r == nil {
		return nil
	}
	kinds := make([]EventKind, 0, len(r.handlers))
	for k, hs := range r.handlers {
		if len(hs) > 0 {
			kinds = append(kinds, k)
		}
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}
