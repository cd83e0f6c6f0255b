package notify

import (
	"context"
	"sync"

	"github.com/bytedance/sonic"
	log "github.com/sirupsen/logrus"
)

const clientBuffer = 16

// SSEHub is a Sink fanning notifications out to connected event-stream
// clients, keyed by audience. A slow client's buffer filling up drops
// messages for that client rather than blocking the hub.
type SSEHub struct {
	logger *log.Logger

	mu      sync.RWMutex
	clients map[string]map[*hubClient]struct{}
}

type hubClient struct {
	ch        chan []byte
	audiences []string
}

// NewSSEHub creates an empty hub.
func NewSSEHub(logger *log.Logger) *SSEHub {
	return &SSEHub{
		logger:  logger,
		clients: make(map[string]map[*hubClient]struct{}),
	}
}

// Register attaches a client to the given audiences and returns its message
// channel plus a cancel function that detaches it and closes the channel.
func (h *SSEHub) Register(audiences []string) (<-chan []byte, func()) {
	client := &hubClient{
		ch:        make(chan []byte, clientBuffer),
		audiences: audiences,
	}

	h.mu.Lock()
	for _, a := range audiences {
		set, ok := h.clients[a]
		if !ok {
			set = make(map[*hubClient]struct{})
			h.clients[a] = set
		}
		set[client] = struct{}{}
	}
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			for _, a := range client.audiences {
				if set, ok := h.clients[a]; ok {
					delete(set, client)
					if len(set) == 0 {
						delete(h.clients, a)
					}
				}
			}
			close(client.ch)
			h.mu.Unlock()
		})
	}
	return client.ch, cancel
}

// Send implements Sink. It reports true when at least one connected client
// of the audience accepted the message.
func (h *SSEHub) Send(_ context.Context, audienceID string, payload Payload) (bool, error) {
	data, err := sonic.ConfigStd.Marshal(payload)
	if err != nil {
		return false, err
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	sent := 0
	for client := range h.clients[audienceID] {
		select {
		case client.ch <- data:
			sent++
		default:
			h.logger.WithField("audience", audienceID).Debug("dropping message for slow client")
		}
	}
	return sent > 0, nil
}

// AudienceCount returns how many clients are attached to an audience.
func (h *SSEHub) AudienceCount(audienceID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[audienceID])
}
