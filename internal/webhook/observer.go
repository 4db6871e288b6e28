package webhook

import "time"

// Rejection reasons passed to Observer.DeliveryRejected. They are for
// operators only and never reach the sender.
const (
	ReasonMissingSignature = "missing_signature"
	ReasonInvalidSignature = "invalid_signature"
	ReasonTooLarge         = "too_large"
	ReasonUnreadable       = "unreadable"
)

// Observer is notified of delivery outcomes. Implementations must be safe for
// concurrent use and must not block.
type Observer interface {
	DeliveryRejected(reason string)
	DeliveryAccepted(kind EventKind, deliveryID string, handlers int)
	HandlerFinished(kind EventKind, deliveryID, handler string, elapsed time.Duration, err error)
}

// Observers fans each notification out to every member.
type Observers []Observer

func (o Observers) DeliveryRejected(reason string) {
	for _, ob := range o {
		ob.DeliveryRejected(reason)
	}
}

func (o Observers) DeliveryAccepted(kind EventKind, deliveryID string, handlers int) {
	for _, ob := range o {
		ob.DeliveryAccepted(kind, deliveryID, handlers)
	}
}

func (o Observers) HandlerFinished(kind EventKind, deliveryID, handler string, elapsed time.Duration, err error) {
	for _, ob := range o {
		ob.HandlerFinished(kind, deliveryID, handler, elapsed, err)
	}
}

type nopObserver struct{}

func (nopObserver) DeliveryRejected(string) {}
func (nopObserver) DeliveryAccepted(EventKind, string, int) {}
func (nopObserver) HandlerFinished(EventKind, string, string, time.Duration, error) {}
