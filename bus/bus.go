package bus

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"inventory-stream/domain"
)

// DefaultChannel is the distribution channel topic carrying serialized
// change events to out-of-process consumers.
const DefaultChannel = "inventory:updates"

// ErrClosed is returned when publishing or subscribing on a closed bus.
var ErrClosed = errors.New("bus closed")

// Callback handles one delivered event. Errors are logged and isolated to
// the subscriber; they never reach the publisher.
type Callback func(ctx context.Context, ev domain.ChangeEvent) error

// Subscription registers a callback for the event types its filter accepts.
// Re-subscribing with an existing ID replaces the prior registration after
// its queued deliveries complete.
type Subscription struct {
	ID       string
	Filter   EventTypeFilter
	Callback Callback
}

// Bus fans published change events out to in-process subscribers and
// republishes them on a Redis channel for other processes. Each subscriber
// is served by its own dispatch goroutine, so a slow or failing callback
// never stalls the publisher or another subscriber.
type Bus struct {
	channel string
	redis   *redis.Client
	logger  *log.Logger
	tracer  trace.Tracer

	mu     sync.RWMutex
	subs   map[string]*worker
	closed bool

	clockMu sync.Mutex
	lastTS  time.Time
	now     func() time.Time
}

// New creates a Bus republishing on the given Redis channel. A nil client
// disables cross-process republishing, which is useful in tests.
func New(client *redis.Client, channel string, logger *log.Logger) *Bus {
	if channel == "" {
		channel = DefaultChannel
	}
	return &Bus{
		channel: channel,
		redis:   client,
		logger:  logger,
		tracer:  otel.Tracer("inventory-stream/bus"),
		subs:    make(map[string]*worker),
		now:     time.Now,
	}
}

// Publish assigns the draft's id and timestamp, dispatches it to every
// matching subscriber and republishes it on the distribution channel. The
// channel publish is the one failure surfaced to the caller: without it the
// event is lost for every other process, with no replay log to recover from.
func (b *Bus) Publish(ctx context.Context, draft domain.ChangeEvent) (domain.ChangeEvent, error) {
	if err := draft.Validate(); err != nil {
		return domain.ChangeEvent{}, err
	}

	ctx, span := b.tracer.Start(ctx, "bus.publish", trace.WithAttributes(
		attribute.String("event.type", string(draft.Type)),
		attribute.String("product.id", draft.ProductID),
		attribute.String("vendor.id", draft.VendorID),
	))
	defer span.End()

	ev := draft
	ev.Timestamp = b.nextTimestamp()
	ev.ID = newEventID(ev.Timestamp)
	span.SetAttributes(attribute.String("event.id", ev.ID))

	if err := b.Dispatch(ctx, ev); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return domain.ChangeEvent{}, err
	}

	if b.redis != nil {
		payload, err := ev.EncodeWire()
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return domain.ChangeEvent{}, fmt.Errorf("encode event: %w", err)
		}
		if err := b.redis.Publish(ctx, b.channel, payload).Err(); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return domain.ChangeEvent{}, fmt.Errorf("publish %s: %w", b.channel, err)
		}
	}

	return ev, nil
}

// Dispatch enqueues a fully-formed event to every matching local subscriber
// without republishing it. The relay uses this to inject events received
// from other processes.
func (b *Bus) Dispatch(_ context.Context, ev domain.ChangeEvent) error {
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return ErrClosed
	}
	matched := make([]*worker, 0, len(b.subs))
	for _, w := range b.subs {
		if w.filter.Matches(ev.Type) {
			matched = append(matched, w)
		}
	}
	b.mu.RUnlock()

	for _, w := range matched {
		w.enqueue(ev)
	}
	return nil
}

// Subscribe registers a subscription, effective for events published after
// it returns. An existing registration with the same ID is replaced.
func (b *Bus) Subscribe(sub Subscription) error {
	if sub.ID == "" {
		return errors.New("subscription requires an id")
	}
	if sub.Callback == nil {
		return errors.New("subscription requires a callback")
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrClosed
	}
	if old, ok := b.subs[sub.ID]; ok {
		old.stop()
	}
	w := newWorker(sub, b.logger)
	b.subs[sub.ID] = w
	go w.run()
	return nil
}

// Unsubscribe removes a registration. Queued deliveries still complete; the
// call is a no-op for unknown ids and safe from within a callback.
func (b *Bus) Unsubscribe(id string) {
	b.mu.Lock()
	w := b.subs[id]
	delete(b.subs, id)
	b.mu.Unlock()
	if w != nil {
		w.stop()
	}
}

// Close stops all subscribers and rejects further publishes.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, w := range b.subs {
		w.stop()
		delete(b.subs, id)
	}
}

// nextTimestamp returns a wall-clock timestamp that never goes backwards, so
// two events about the same entity always carry non-decreasing timestamps.
func (b *Bus) nextTimestamp() time.Time {
	b.clockMu.Lock()
	defer b.clockMu.Unlock()
	now := b.now()
	if now.Before(b.lastTS) {
		now = b.lastTS
	}
	b.lastTS = now
	return now
}

func newEventID(ts time.Time) string {
	return strconv.FormatInt(ts.UnixNano(), 10) + "-" + uuid.NewString()
}

// worker serves one subscription from an ordered queue. The queue is
// unbounded so the publisher never blocks; backpressure on a hung callback
// is an operational concern, not the bus's.
type worker struct {
	id       string
	filter   EventTypeFilter
	callback Callback
	logger   *log.Logger

	mu      sync.Mutex
	cond    *sync.Cond
	queue   []domain.ChangeEvent
	stopped bool
}

func newWorker(sub Subscription, logger *log.Logger) *worker {
	w := &worker{
		id:       sub.ID,
		filter:   sub.Filter,
		callback: sub.Callback,
		logger:   logger,
	}
	w.cond = sync.NewCond(&w.mu)
	return w
}

func (w *worker) enqueue(ev domain.ChangeEvent) {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return
	}
	w.queue = append(w.queue, ev)
	w.cond.Signal()
	w.mu.Unlock()
}

func (w *worker) stop() {
	w.mu.Lock()
	w.stopped = true
	w.cond.Signal()
	w.mu.Unlock()
}

func (w *worker) run() {
	for {
		w.mu.Lock()
		for len(w.queue) == 0 && !w.stopped {
			w.cond.Wait()
		}
		if len(w.queue) == 0 {
			w.mu.Unlock()
			return
		}
		ev := w.queue[0]
		w.queue = w.queue[1:]
		w.mu.Unlock()

		w.deliver(ev)
	}
}

func (w *worker) deliver(ev domain.ChangeEvent) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.WithFields(log.Fields{
				"subscriber": w.id,
				"event_id":   ev.ID,
			}).Errorf("subscriber panic: %v", r)
		}
	}()
	if err := w.callback(context.Background(), ev); err != nil {
		w.logger.WithFields(log.Fields{
			"subscriber": w.id,
			"event_id":   ev.ID,
			"event_type": string(ev.Type),
		}).Errorf("subscriber callback: %v", err)
	}
}
