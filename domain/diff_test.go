package domain

import "testing"

func TestDiffSnapshots(t *testing.T) {
	before := Snapshot{Category: "books", BasePrice: 10, Available: true, VendorID: "v1"}
	after := Snapshot{Category: "toys", BasePrice: 12, Available: false, VendorID: "v1"}

	changes := DiffSnapshots(before, after)
	if len(changes) != 3 {
		t.Fatalf("expected 3 changes, got %d: %+v", len(changes), changes)
	}
	if changes[0].Field != FieldCategory || changes[0].Old != "books" || changes[0].New != "toys" {
		t.Fatalf("unexpected category change: %+v", changes[0])
	}
	if changes[1].Field != FieldBasePrice || changes[1].Old != 10.0 || changes[1].New != 12.0 {
		t.Fatalf("unexpected price change: %+v", changes[1])
	}
	if changes[2].Field != FieldAvailable || changes[2].Old != true || changes[2].New != false {
		t.Fatalf("unexpected availability change: %+v", changes[2])
	}
}

func TestDiffSnapshotsNoChanges(t *testing.T) {
	s := Snapshot{Category: "books", BasePrice: 10, Available: true}
	if changes := DiffSnapshots(s, s); len(changes) != 0 {
		t.Fatalf("expected empty diff, got %+v", changes)
	}
}

func TestClassifyChangesPrecedence(t *testing.T) {
	cases := []struct {
		name    string
		changes []FieldChange
		want    EventType
	}{
		{
			"availability wins over price",
			[]FieldChange{
				{Field: FieldBasePrice, Old: 10.0, New: 20.0},
				{Field: FieldAvailable, Old: true, New: false},
			},
			EventAvailabilityChanged,
		},
		{
			"price wins over generic",
			[]FieldChange{
				{Field: FieldCategory, Old: "a", New: "b"},
				{Field: FieldBasePrice, Old: 10.0, New: 20.0},
			},
			EventPriceChanged,
		},
		{
			"generic update",
			[]FieldChange{{Field: FieldCategory, Old: "a", New: "b"}},
			EventUpdated,
		},
	}
	for _, tc := range cases {
		if got := ClassifyChanges(tc.changes); got != tc.want {
			t.Fatalf("%s: got %s, want %s", tc.name, got, tc.want)
		}
	}
}
