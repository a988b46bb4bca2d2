package events

import (
	"context"
	"encoding/json"
	"sync"

	pkgredis "github.com/ideaflow/server/internal/pkg/redis"
	"go.uber.org/zap"
)

// Hub fans data-changed events out to SSE subscribers. Events travel through
// redis so every server instance sees them; without redis they are delivered
// in-process only.
type Hub struct {
	rc     *pkgredis.Client
	logger *zap.Logger

	mu     sync.RWMutex
	nextID int
	subs   map[string]map[int]chan Event

	ready     chan struct{}
	readyOnce sync.Once
}

func NewHub(rc *pkgredis.Client, logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		rc:     rc,
		logger: logger,
		subs:   make(map[string]map[int]chan Event),
		ready:  make(chan struct{}),
	}
}

// Ready is closed once the redis subscription is confirmed.
func (h *Hub) Ready() <-chan struct{} { return h.ready }

// Run relays redis messages to local subscribers until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	if h.rc == nil {
		h.markReady()
		<-ctx.Done()
		return
	}

	pubsub := h.rc.Subscribe(ctx, redisChannel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		h.logger.Warn("events subscribe failed", zap.Error(err))
		h.markReady()
		return
	}
	h.markReady()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var ev Event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				continue
			}
			h.deliver(ev)
		}
	}
}

func (h *Hub) markReady() {
	h.readyOnce.Do(func() { close(h.ready) })
}

// Publish never fails the caller; a lost notification only delays a refresh.
func (h *Hub) Publish(ctx context.Context, ev Event) {
	if ev.UserID == "" {
		return
	}
	if h.rc == nil {
		h.deliver(ev)
		return
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	if err := h.rc.Publish(ctx, redisChannel, string(data)); err != nil {
		h.logger.Warn("events publish failed", zap.String("type", ev.Type), zap.Error(err))
	}
}

// Subscribe registers a buffered stream of userID's events.
func (h *Hub) Subscribe(userID string) (int, <-chan Event) {
	ch := make(chan Event, subscriberBuffer)

	h.mu.Lock()
	id := h.nextID
	h.nextID++
	if h.subs[userID] == nil {
		h.subs[userID] = make(map[int]chan Event)
	}
	h.subs[userID][id] = ch
	h.mu.Unlock()

	return id, ch
}

func (h *Hub) Unsubscribe(userID string, id int) {
	h.mu.Lock()
	ch, ok := h.subs[userID][id]
	if ok {
		delete(h.subs[userID], id)
		if len(h.subs[userID]) == 0 {
			delete(h.subs, userID)
		}
	}
	h.mu.Unlock()

	if ok {
		close(ch)
	}
}

func (h *Hub) deliver(ev Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, ch := range h.subs[ev.UserID] {
		select {
		case ch <- ev:
		default:
		}
	}
}
