package bus

import "inventory-stream/domain"

// EventTypeFilter selects which event types a subscription receives. The
// wildcard case is an explicit variant rather than a sentinel string.
type EventTypeFilter struct {
	all   bool
	types map[domain.EventType]struct{}
}

// AllEvents matches every event type.
func AllEvents() EventTypeFilter {
	return EventTypeFilter{all: true}
}

// EventsOf matches exactly the listed event types.
func EventsOf(types ...domain.EventType) EventTypeFilter {
	set := make(map[domain.EventType]struct{}, len(types))
	for _, t := range types {
		set[t] = struct{}{}
	}
	return EventTypeFilter{types: set}
}

// Matches reports whether the filter accepts the given event type.
func (f EventTypeFilter) Matches(t domain.EventType) bool {
	if f.all {
		return true
	}
	_, ok := f.types[t]
	return ok
}
