package domain

import "context"

// Publisher accepts a draft event, assigns its id and timestamp and fans it
// out. Implemented by the bus package.
type Publisher interface {
	Publish(ctx context.Context, draft ChangeEvent) (ChangeEvent, error)
}

// Recorder is the event-producing side of the domain write path: the write
// path commits a mutation against its own storage, then hands the before and
// after snapshots here. Publish failures are returned to the caller so the
// surrounding transaction can decide whether to roll back or retry.
type Recorder struct {
	pub Publisher
}

// NewRecorder creates a Recorder publishing through the given Publisher.
func NewRecorder(pub Publisher) *Recorder {
	return &Recorder{pub: pub}
}

// RecordCreated publishes a created event carrying the new entity snapshot.
// There is no prior state to diff, so Changes is empty.
func (r *Recorder) RecordCreated(ctx context.Context, productID string, after Snapshot) (ChangeEvent, error) {
	return r.pub.Publish(ctx, ChangeEvent{
		Type:      EventCreated,
		ProductID: productID,
		VendorID:  after.VendorID,
		Product:   &after,
	})
}

// RecordUpdated diffs the snapshots, classifies the change and publishes.
// When nothing sellable changed, no event is published and the zero event is
// returned.
func (r *Recorder) RecordUpdated(ctx context.Context, productID string, before, after Snapshot) (ChangeEvent, error) {
	changes := DiffSnapshots(before, after)
	if len(changes) == 0 {
		return ChangeEvent{}, nil
	}
	return r.pub.Publish(ctx, ChangeEvent{
		Type:      ClassifyChanges(changes),
		ProductID: productID,
		VendorID:  after.VendorID,
		Changes:   changes,
		Product:   &after,
	})
}

// RecordDeleted publishes a deleted event. The prior snapshot travels in a
// synthetic entity change since there is no post-mutation state to project.
func (r *Recorder) RecordDeleted(ctx context.Context, productID string, before Snapshot) (ChangeEvent, error) {
	return r.pub.Publish(ctx, ChangeEvent{
		Type:      EventDeleted,
		ProductID: productID,
		VendorID:  before.VendorID,
		Changes:   []FieldChange{{Field: FieldEntity, Old: before, New: nil}},
	})
}
