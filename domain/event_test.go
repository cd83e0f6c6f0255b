package domain

import (
	"strings"
	"testing"
	"time"
)

func TestValidateRequiresIdentifiers(t *testing.T) {
	cases := []struct {
		name string
		ev   ChangeEvent
		want error
	}{
		{"missing product", ChangeEvent{VendorID: "v1", Type: EventCreated}, ErrMissingProductID},
		{"missing vendor", ChangeEvent{ProductID: "p1", Type: EventCreated}, ErrMissingVendorID},
		{"missing type", ChangeEvent{ProductID: "p1", VendorID: "v1"}, ErrMissingEventType},
		{"valid", ChangeEvent{ProductID: "p1", VendorID: "v1", Type: EventUpdated}, nil},
	}
	for _, tc := range cases {
		if err := tc.ev.Validate(); err != tc.want {
			t.Fatalf("%s: got %v, want %v", tc.name, err, tc.want)
		}
	}
}

func TestMembershipChanging(t *testing.T) {
	changing := []EventType{EventCreated, EventDeleted, EventAvailabilityChanged}
	for _, et := range changing {
		if !et.MembershipChanging() {
			t.Fatalf("%s should be membership changing", et)
		}
	}
	for _, et := range []EventType{EventUpdated, EventPriceChanged} {
		if et.MembershipChanging() {
			t.Fatalf("%s should not be membership changing", et)
		}
	}
}

func TestWireRoundTrip(t *testing.T) {
	ev := ChangeEvent{
		ID:        "1700000000-abc",
		Type:      EventPriceChanged,
		ProductID: "p1",
		VendorID:  "v1",
		Timestamp: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Changes:   []FieldChange{{Field: FieldBasePrice, Old: 10.0, New: 12.5}},
		Product:   &Snapshot{Category: "books", BasePrice: 12.5, Available: true, VendorID: "v1"},
	}

	data, err := ev.EncodeWire()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	for _, field := range []string{`"eventId"`, `"eventType"`, `"productId"`, `"vendorId"`, `"timestamp"`, `"changes"`, `"product"`} {
		if !strings.Contains(string(data), field) {
			t.Fatalf("wire payload missing %s: %s", field, data)
		}
	}

	decoded, err := DecodeWire(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.ID != ev.ID || decoded.Type != ev.Type || decoded.ProductID != ev.ProductID {
		t.Fatalf("round trip mismatch: %+v", decoded)
	}
	if !decoded.Timestamp.Equal(ev.Timestamp) {
		t.Fatalf("timestamp mismatch: %v", decoded.Timestamp)
	}
	if decoded.Product == nil || decoded.Product.Category != "books" {
		t.Fatalf("snapshot lost: %+v", decoded.Product)
	}
}

func TestWireOmitsAbsentSnapshot(t *testing.T) {
	ev := ChangeEvent{ID: "x", Type: EventDeleted, ProductID: "p1", VendorID: "v1"}
	data, err := ev.EncodeWire()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if strings.Contains(string(data), `"product"`) {
		t.Fatalf("deleted event should omit product: %s", data)
	}
}
