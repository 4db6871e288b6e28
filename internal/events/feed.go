package events

import (
	"time"

	"github.com/mattjoyce/hookgate/internal/webhook"
)

// Feed event types.
const (
	TypeDeliveryAccepted = "delivery.accepted"
	TypeDeliveryRejected = "delivery.rejected"
	TypeHandlerFailed    = "handler.failed"
)

// DeliverySummary describes an accepted delivery. It never carries the body.
type DeliverySummary struct {
	DeliveryID string `json:"delivery_id"`
	Event      string `json:"event"`
	Handlers   int    `json:"handlers"`
}

// Rejection describes a delivery turned away before any handler ran.
type Rejection struct {
	Reason string `json:"reason"`
}

// HandlerFailure describes one handler that returned an error or panicked.
type HandlerFailure struct {
	DeliveryID string `json:"delivery_id"`
	Event      string `json:"event"`
	Handler    string `json:"handler"`
	DurationMS int64  `json:"duration_ms"`
	Error      string `json:"error"`
}

// Feed publishes delivery outcomes to a Hub.
type Feed struct {
	hub *Hub
}

var _ webhook.Observer = (*Feed)(nil)

func NewFeed(hub *Hub) *Feed {
	return &Feed{hub: hub}
}

func (f *Feed) DeliveryRejected(reason string) {
	f.hub.Publish(TypeDeliveryRejected, Rejection{Reason: reason})
}

func (f *Feed) DeliveryAccepted(kind webhook.EventKind, deliveryID string, handlers int) {
	f.hub.Publish(TypeDeliveryAccepted, DeliverySummary{
		DeliveryID: deliveryID,
		Event:      kind.String(),
		Handlers:   handlers,
	})
}

// HandlerFinished publishes failures only.
func (f *Feed) HandlerFinished(kind webhook.EventKind, deliveryID, handler string, elapsed time.Duration, err error) {
	if err == nil {
		return
	}
	f.hub.Publish(TypeHandlerFailed, HandlerFailure{
		DeliveryID: deliveryID,
		Event:      kind.String(),
		Handler:    handler,
		DurationMS: elapsed.Milliseconds(),
		Error:      err.Error(),
	})
}
