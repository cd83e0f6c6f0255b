package domain

import (
	"errors"
	"time"

	"github.com/bytedance/sonic"
)

// EventType classifies a committed inventory mutation.
type EventType string

const (
	EventCreated             EventType = "created"
	EventUpdated             EventType = "updated"
	EventDeleted             EventType = "deleted"
	EventAvailabilityChanged EventType = "availability_changed"
	EventPriceChanged        EventType = "price_changed"
)

// Sellable field names used in diffs and classification.
const (
	FieldCategory  = "category"
	FieldBasePrice = "basePrice"
	FieldAvailable = "available"
	// FieldEntity carries the full prior snapshot on deletion, where no
	// field-level diff exists.
	FieldEntity = "entity"
)

// Snapshot is the post-mutation projection of a sellable item, carried on
// events so consumers never re-fetch the entity.
type Snapshot struct {
	Category  string  `json:"category"`
	BasePrice float64 `json:"basePrice"`
	Available bool    `json:"available"`
	VendorID  string  `json:"vendorId"`
}

// FieldChange records one field-level difference between the prior and the
// new entity state.
type FieldChange struct {
	Field string `json:"field"`
	Old   any    `json:"oldValue"`
	New   any    `json:"newValue"`
}

// ChangeEvent is the immutable record of one inventory mutation. ID and
// Timestamp are assigned by the bus at publish time; everything else is
// filled by the write path before publishing.
type ChangeEvent struct {
	ID        string        `json:"eventId"`
	Type      EventType     `json:"eventType"`
	ProductID string        `json:"productId"`
	VendorID  string        `json:"vendorId"`
	Timestamp time.Time     `json:"timestamp"`
	Changes   []FieldChange `json:"changes"`
	Product   *Snapshot     `json:"product,omitempty"`
}

var (
	ErrMissingProductID = errors.New("change event missing product id")
	ErrMissingVendorID  = errors.New("change event missing vendor id")
	ErrMissingEventType = errors.New("change event missing event type")
)

// Validate checks the fields a draft must carry before the bus accepts it.
func (e ChangeEvent) Validate() error {
	if e.ProductID == "" {
		return ErrMissingProductID
	}
	if e.VendorID == "" {
		return ErrMissingVendorID
	}
	if e.Type == "" {
		return ErrMissingEventType
	}
	return nil
}

// MembershipChanging reports whether the event type can move an item into or
// out of a result set, rather than only altering displayed attributes.
func (t EventType) MembershipChanging() bool {
	switch t {
	case EventCreated, EventDeleted, EventAvailabilityChanged:
		return true
	}
	return false
}

// EncodeWire serializes the event for the distribution channel.
func (e ChangeEvent) EncodeWire() ([]byte, error) {
	return sonic.ConfigStd.Marshal(e)
}

// DecodeWire parses a distribution-channel payload back into an event.
func DecodeWire(data []byte) (ChangeEvent, error) {
	var ev ChangeEvent
	if err := sonic.ConfigStd.Unmarshal(data, &ev); err != nil {
		return ChangeEvent{}, err
	}
	return ev, nil
}
