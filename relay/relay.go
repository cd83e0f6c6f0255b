package relay

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"inventory-stream/domain"
)

// Handler receives one decoded change event from the distribution channel.
type Handler func(ctx context.Context, ev domain.ChangeEvent)

// Relay subscribes to the distribution channel and hands every decoded
// change event to the handler, so a process that did not originate a
// mutation still reacts to it. Malformed payloads are logged and skipped.
type Relay struct {
	redis   *redis.Client
	channel string
	handler Handler
	logger  *log.Logger
}

// New creates a Relay consuming the given channel.
func New(client *redis.Client, channel string, handler Handler, logger *log.Logger) *Relay {
	return &Relay{redis: client, channel: channel, handler: handler, logger: logger}
}

// Run consumes the channel until the context is cancelled, reconnecting
// with a short pause whenever the subscription drops.
func (r *Relay) Run(ctx context.Context) {
	for {
		sub := r.redis.Subscribe(ctx, r.channel)
		ch := sub.Channel()
	recv:
		for {
			select {
			case <-ctx.Done():
				_ = sub.Close()
				return
			case msg, ok := <-ch:
				if !ok {
					break recv
				}
				ev, err := domain.DecodeWire([]byte(msg.Payload))
				if err != nil {
					r.logger.Warnf("relay: undecodable event: %v", err)
					continue
				}
				if err := ev.Validate(); err != nil {
					r.logger.Warnf("relay: invalid event %s: %v", ev.ID, err)
					continue
				}
				r.handler(ctx, ev)
			}
		}
		_ = sub.Close()
		if ctx.Err() != nil {
			return
		}
		r.logger.Error("relay: pubsub channel closed, reconnecting")
		time.Sleep(time.Second)
	}
}
