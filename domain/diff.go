package domain

// DiffSnapshots compares the sellable fields of two entity projections and
// returns one FieldChange per differing field, in a fixed field order.
func DiffSnapshots(before, after Snapshot) []FieldChange {
	var changes []FieldChange
	if before.Category != after.Category {
		changes = append(changes, FieldChange{Field: FieldCategory, Old: before.Category, New: after.Category})
	}
	if before.BasePrice != after.BasePrice {
		changes = append(changes, FieldChange{Field: FieldBasePrice, Old: before.BasePrice, New: after.BasePrice})
	}
	if before.Available != after.Available {
		changes = append(changes, FieldChange{Field: FieldAvailable, Old: before.Available, New: after.Available})
	}
	return changes
}

// ClassifyChanges maps a diff to an event type. Availability takes precedence
// over price when both changed in the same mutation; audience selection
// downstream depends on this order, so it is checked explicitly rather than
// left to map iteration.
func ClassifyChanges(changes []FieldChange) EventType {
	for _, c := range changes {
		if c.Field == FieldAvailable {
			return EventAvailabilityChanged
		}
	}
	for _, c := range changes {
		if c.Field == FieldBasePrice {
			return EventPriceChanged
		}
	}
	return EventUpdated
}
