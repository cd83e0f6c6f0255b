package notify

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"inventory-stream/bus"
	"inventory-stream/domain"
)

// BroadcastAudience receives the events broad enough to interest browsers
// with no vendor or category affiliation.
const BroadcastAudience = "all"

// VendorAudience names the owning vendor's audience.
func VendorAudience(vendorID string) string {
	return "vendor:" + vendorID
}

// CategoryAudience names the watchers of one category.
func CategoryAudience(category string) string {
	return "category:" + category
}

// Payload is what a sink delivers to each audience.
type Payload struct {
	Type      string           `json:"type"`
	EventType domain.EventType `json:"eventType"`
	ProductID string           `json:"productId"`
	VendorID  string           `json:"vendorId"`
	Timestamp time.Time        `json:"timestamp"`
	Product   *domain.Snapshot `json:"product,omitempty"`
}

// Sink pushes one notification to one audience. The boolean reports whether
// anything was actually delivered; both a false and an error are treated as
// a best-effort miss.
type Sink interface {
	Send(ctx context.Context, audienceID string, payload Payload) (bool, error)
}

// Notifier is the bus subscriber mapping change events to audiences and
// delivering through the sink. Delivery is best-effort per audience: one
// failed audience never blocks the others and nothing propagates back to
// the publisher.
type Notifier struct {
	sink   Sink
	logger *log.Logger
}

// NewNotifier creates a Notifier delivering through the given sink.
func NewNotifier(sink Sink, logger *log.Logger) *Notifier {
	return &Notifier{sink: sink, logger: logger}
}

// Subscription returns the bus registration for the notifier.
func (n *Notifier) Subscription() bus.Subscription {
	return bus.Subscription{
		ID:       "realtime-notifier",
		Filter:   bus.AllEvents(),
		Callback: n.HandleEvent,
	}
}

// HandleEvent delivers the event's notification to every computed audience.
func (n *Notifier) HandleEvent(ctx context.Context, ev domain.ChangeEvent) error {
	payload := Payload{
		Type:      "inventory_update",
		EventType: ev.Type,
		ProductID: ev.ProductID,
		VendorID:  ev.VendorID,
		Timestamp: ev.Timestamp,
	}
	if ev.Type != domain.EventDeleted {
		payload.Product = ev.Product
	}

	for _, audience := range AudiencesFor(ev) {
		n.send(ctx, audience, payload)
	}
	return nil
}

// send delivers to one audience behind its own error boundary.
func (n *Notifier) send(ctx context.Context, audience string, payload Payload) {
	defer func() {
		if r := recover(); r != nil {
			n.logger.WithField("audience", audience).Errorf("sink panic: %v", r)
		}
	}()
	delivered, err := n.sink.Send(ctx, audience, payload)
	if err != nil {
		n.logger.WithFields(log.Fields{
			"audience":   audience,
			"product_id": payload.ProductID,
		}).Warnf("notification delivery: %v", err)
		return
	}
	if !delivered {
		n.logger.WithFields(log.Fields{
			"audience":   audience,
			"product_id": payload.ProductID,
		}).Debug("notification not delivered")
	}
}

// AudiencesFor computes the recipients of one event: the owning vendor
// always, the category's watchers when the snapshot names one, and the
// broadcast audience for the event types broad enough to change what any
// browser sees.
func AudiencesFor(ev domain.ChangeEvent) []string {
	audiences := []string{VendorAudience(ev.VendorID)}
	if ev.Product != nil && ev.Product.Category != "" {
		audiences = append(audiences, CategoryAudience(ev.Product.Category))
	}
	if ev.Type == domain.EventCreated || ev.Type == domain.EventAvailabilityChanged {
		audiences = append(audiences, BroadcastAudience)
	}
	return audiences
}
