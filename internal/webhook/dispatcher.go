package webhook

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/zeebo/blake3"
)

// Header names GitHub uses on webhook deliveries.
const (
	SignatureHeader = "X-Hub-Signature-256"
	EventHeader     = "X-GitHub-Event"
	DeliveryHeader  = "X-GitHub-Delivery"
)

// DefaultMaxBodySize matches the largest payload GitHub will send (25 MB).
const DefaultMaxBodySize int64 = 25 << 20

// ErrUnauthorized is the only error a rejected delivery carries. It does not
// say which check failed.
var ErrUnauthorized = errors.New("webhook verification failed")

// Request is the transport-independent view of one inbound delivery.
type Request struct {
	Signature  string
	Event      string
	DeliveryID string
	Body       []byte
}

// RequestFromHTTP extracts the routing headers from r. body must be the exact
// bytes read from r.Body.
func RequestFromHTTP(r *http.Request, body []byte) Request {
	return Request{
		Signature:  r.Header.Get(SignatureHeader),
		Event:      r.Header.Get(EventHeader),
		DeliveryID: r.Header.Get(DeliveryHeader),
		Body:       body,
	}
}

// Result is the outcome of Dispatch.
type Result struct {
	// Status is http.StatusOK or http.StatusUnauthorized.
	Status     int
	Kind       EventKind
	DeliveryID string
	// Invoked counts handlers that were called, including ones that failed.
	Invoked int
	// Err is ErrUnauthorized for rejected deliveries, otherwise nil or a
	// *multierror.Error of *HandlerError values. It never affects Status for
	// accepted deliveries.
	Err error
}

// AcceptedResponse is the JSON body returned for an accepted delivery.
type AcceptedResponse struct {
	DeliveryID string `json:"delivery_id"`
	Event      string `json:"event"`
	Handlers   int    `json:"handlers"`
}

// ErrorResponse is the JSON body returned for a rejected delivery.
type ErrorResponse struct {
	Error string `json:"error"`
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) {
		if l != nil {
			d.logger = l
		}
	}
}

// WithObserver sets the outcome observer.
func WithObserver(o Observer) Option {
	return func(d *Dispatcher) {
		if o != nil {
			d.observer = o
		}
	}
}

// WithMaxBodySize caps the body ServeHTTP will read. Non-positive values keep
// DefaultMaxBodySize.
func WithMaxBodySize(n int64) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.maxBodySize = n
		}
	}
}

// Dispatcher verifies deliveries and routes them to registered handlers.
// It holds no per-request state and is safe for concurrent use.
type Dispatcher struct {
	verifier    *Verifier
	registry    *Registry
	logger      *slog.Logger
	observer    Observer
	maxBodySize int64
}

// NewDispatcher returns a Dispatcher that authenticates with secret and
// routes through reg.
func NewDispatcher(secret []byte, reg *Registry, opts ...Option) *Dispatcher {
	if reg == nil {
		reg = NewRegistryBuilder().Build()
	}
	d := &Dispatcher{
		verifier:    NewVerifier(secret),
		registry:    reg,
		logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		observer:    nopObserver{},
		maxBodySize: DefaultMaxBodySize,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch authenticates req and, if it verifies, runs every handler
// registered for its event kind in order. Handler failures are collected in
// Result.Err; they never change Result.Status.
//
// If ctx is cancelled between handlers the remaining ones are skipped.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) Result {
	if req.Signature == "" {
		d.logger.Warn("webhook signature missing", "header", SignatureHeader)
		d.observer.DeliveryRejected(ReasonMissingSignature)
		return Result{Status: http.StatusUnauthorized, Err: ErrUnauthorized}
	}
	if !d.verifier.Verify(req.Body, req.Signature) {
		d.logger.Warn("webhook signature verification failed")
		d.observer.DeliveryRejected(ReasonInvalidSignature)
		return Result{Status: http.StatusUnauthorized, Err: ErrUnauthorized}
	}

	kind := ParseEventKind(req.Event)
	deliveryID := req.DeliveryID
	if deliveryID == "" {
		deliveryID = uuid.NewString()
	}

	logger := d.logger.With("event", req.Event, "kind", kind.String(), "delivery_id", deliveryID)
	if req.Event == "" {
		logger.Warn("webhook event header missing", "header", EventHeader)
	} else if kind == Unknown {
		logger.Info("unrecognized webhook event")
	}

	handlers := d.registry.Resolve(kind)
	logger.Debug("webhook delivery verified",
		"handlers", len(handlers),
		"body_bytes", len(req.Body),
		"body_b3", fingerprint(req.Body),
	)

	payload := NewPayload(kind, req.Event, deliveryID, req.Body)

	var errs *multierror.Error
	invoked, failed := 0, 0
	for i, h := range handlers {
		if err := ctx.Err(); err != nil {
			logger.Warn("webhook delivery abandoned", "skipped", len(handlers)-i, "error", err)
			break
		}

		name := handlerName(h, i)
		start := time.Now()
		err := invoke(ctx, h, payload)
		elapsed := time.Since(start)
		invoked++

		d.observer.HandlerFinished(kind, deliveryID, name, elapsed, err)
		if err != nil {
			logger.Warn("webhook handler failed",
				"handler", name,
				"index", i,
				"duration_ms", elapsed.Milliseconds(),
				"error", err,
			)
			errs = multierror.Append(errs, &HandlerError{Kind: kind, Index: i, Handler: name, Err: err})
			failed++
		}
	}

	d.observer.DeliveryAccepted(kind, deliveryID, invoked)
	logger.Info("webhook delivery dispatched", "handlers", invoked, "failed", failed)

	return Result{
		Status:     http.StatusOK,
		Kind:       kind,
		DeliveryID: deliveryID,
		Invoked:    invoked,
		Err:        errs.ErrorOrNil(),
	}
}

// ServeHTTP reads the body (bounded by the configured maximum), dispatches it
// and writes 200 or 401.
func (d *Dispatcher) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, d.maxBodySize))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			d.observer.DeliveryRejected(ReasonTooLarge)
			respondError(w, http.StatusRequestEntityTooLarge, "payload too large")
			return
		}
		d.observer.DeliveryRejected(ReasonUnreadable)
		respondError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	res := d.Dispatch(r.Context(), RequestFromHTTP(r, body))
	if res.Status != http.StatusOK {
		respondError(w, res.Status, "unauthorized")
		return
	}

	respondJSON(w, http.StatusOK, AcceptedResponse{
		DeliveryID: res.DeliveryID,
		Event:      res.Kind.String(),
		Handlers:   res.Invoked,
	})
}

func invoke(ctx context.Context, h Handler, p *Payload) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panicked: %v", r)
		}
	}()
	return h.Handle(ctx, p)
}

// fingerprint identifies a body in logs without revealing it.
func fingerprint(body []byte) string {
	sum := blake3.Sum256(body)
	return hex.EncodeToString(sum[:8])
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, ErrorResponse{Error: message})
}
