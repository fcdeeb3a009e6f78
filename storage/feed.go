package storage

import (
	"context"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

// Feed announces that an owner's task list changed.
type Feed interface {
	Publish(ctx context.Context, ownerID string) error
	// Listen returns a channel signalled after each change for ownerID and a
	// function that releases it.
	Listen(ownerID string) (<-chan struct{}, func())
}

// Hub fans change signals out to per-owner listeners. Each listener channel
// holds at most one pending signal; bursts collapse into one.
type Hub struct {
	mu        sync.Mutex
	listeners map[string]map[chan struct{}]struct{}
}

func NewHub() *Hub {
	return &Hub{listeners: make(map[string]map[chan struct{}]struct{})}
}

func (h *Hub) Listen(ownerID string) (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)
	h.mu.Lock()
	set, ok := h.listeners[ownerID]
	if !ok {
		set = make(map[chan struct{}]struct{})
		h.listeners[ownerID] = set
	}
	set[ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.listeners[ownerID], ch)
			if len(h.listeners[ownerID]) == 0 {
				delete(h.listeners, ownerID)
			}
			h.mu.Unlock()
		})
	}
}

// Notify signals every listener of ownerID without blocking.
func (h *Hub) Notify(ownerID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.listeners[ownerID] {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// Listeners reports how many listeners are registered for ownerID.
func (h *Hub) Listeners(ownerID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.listeners[ownerID])
}

// LocalFeed delivers changes to listeners in the same process.
type LocalFeed struct {
	*Hub
}

func NewLocalFeed() *LocalFeed {
	return &LocalFeed{Hub: NewHub()}
}

func (f *LocalFeed) Publish(_ context.Context, ownerID string) error {
	f.Notify(ownerID)
	return nil
}

type updateMessage struct {
	UserID string `json:"userId"`
}

// RedisFeed publishes changes on a Redis channel so every server instance
// sees writes made through any other instance. Run must be started for
// listeners to receive anything.
type RedisFeed struct {
	*Hub
	rc      *redis.Client
	channel string
	retry   time.Duration
}

func NewRedisFeed(rc *redis.Client, channel string) *RedisFeed {
	return &RedisFeed{Hub: NewHub(), rc: rc, channel: channel, retry: time.Second}
}

func (f *RedisFeed) Publish(ctx context.Context, ownerID string) error {
	data, err := sonic.Marshal(updateMessage{UserID: ownerID})
	if err != nil {
		return err
	}
	return f.rc.Publish(ctx, f.channel, data).Err()
}

// Run subscribes to the updates channel and dispatches into the hub until
// ctx is cancelled, resubscribing whenever the pub/sub channel closes.
func (f *RedisFeed) Run(ctx context.Context) {
	for {
		f.consume(ctx)
		if ctx.Err() != nil {
			return
		}
		log.WithField("channel", f.channel).Error("pubsub channel closed, reconnecting")
		select {
		case <-ctx.Done():
			return
		case <-time.After(f.retry):
		}
	}
}

func (f *RedisFeed) consume(ctx context.Context) {
	sub := f.rc.Subscribe(ctx, f.channel)
	defer sub.Close()
	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var ev updateMessage
			if err := sonic.UnmarshalString(msg.Payload, &ev); err != nil || ev.UserID == "" {
				log.WithField("payload", msg.Payload).Warn("unable to parse update")
				continue
			}
			f.Notify(ev.UserID)
		}
	}
}
