// Package hub fans committed records out to live subscribers.
//
// The [Hub] owns the live subscriber set. It is driven only by store change
// notifications: every [Hub.Broadcast] serializes the record once, tries to
// deliver it to every subscriber concurrently and prunes those whose
// delivery failed in the same pass. Delivery is best-effort; there is no
// retry, queue or replay.
package hub

import (
	"encoding/json"
	"errors"
	"log/slog"
	"sync"

	"github.com/jpalmerr/hostmap/internal/metrics"
	"github.com/jpalmerr/hostmap/internal/store"
)

// ErrSubscriberClosed is returned by Send on a closed subscriber.
var ErrSubscriberClosed = errors.New("subscriber closed")

// Subscriber is a live outbound connection.
//
// Send must not block indefinitely; implementations bound it with a write
// deadline. Close must be safe to call more than once.
type Subscriber interface {
	Send(msg []byte) error
	Close() error
}

// Hub relays change notifications to every registered subscriber.
//
// Register, Unregister and Broadcast are safe for concurrent use.
type Hub struct {
	mu   sync.RWMutex
	subs map[Subscriber]struct{}

	logger  *slog.Logger
	metrics *metrics.Metrics
}

// New creates an empty [Hub].
func New(logger *slog.Logger, m *metrics.Metrics) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		subs:    make(map[Subscriber]struct{}),
		logger:  logger,
		metrics: m,
	}
}

// Register adds s to the live set.
func (h *Hub) Register(s Subscriber) {
	h.mu.Lock()
	h.subs[s] = struct{}{}
	n := len(h.subs)
	h.mu.Unlock()

	h.metrics.SetSubscribers(n)
}

// Unregister removes s from the live set. It does not close s. Unknown
// subscribers are ignored.
func (h *Hub) Unregister(s Subscriber) {
	h.mu.Lock()
	delete(h.subs, s)
	n := len(h.subs)
	h.mu.Unlock()

	h.metrics.SetSubscribers(n)
}

// Len returns the number of live subscribers.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Notify implements store.Notifier.
func (h *Hub) Notify(rec store.Record) {
	h.Broadcast(rec)
}

// Broadcast delivers rec as one JSON message to every live subscriber and
// returns how many deliveries succeeded.
//
// Subscribers registered after the pass has started may miss this record.
// Subscribers whose Send fails are removed and closed before Broadcast
// returns; the failure never reaches the caller.
func (h *Hub) Broadcast(rec store.Record) int {
	data, err := json.Marshal(rec)
	if err != nil {
		h.logger.Error("failed to encode broadcast", "host", rec.Host, "error", err)
		return 0
	}

	h.mu.RLock()
	subs := make([]Subscriber, 0, len(h.subs))
	for s := range h.subs {
		subs = append(subs, s)
	}
	h.mu.RUnlock()

	if len(subs) == 0 {
		return 0
	}
	h.metrics.Broadcast()

	var (
		wg     sync.WaitGroup
		deadMu sync.Mutex
		dead   []Subscriber
	)
	for _, s := range subs {
		wg.Add(1)
		go func(s Subscriber) {
			defer wg.Done()
			if err := h.send(s, data); err != nil {
				h.logger.Debug("delivery failed", "host", rec.Host, "error", err)
				deadMu.Lock()
				dead = append(dead, s)
				deadMu.Unlock()
			}
		}(s)
	}
	wg.Wait()

	if len(dead) > 0 {
		h.prune(dead)
	}
	return len(subs) - len(dead)
}

// send calls s.Send, treating a panic as a failed delivery.
func (h *Hub) send(s Subscriber, data []byte) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.New("subscriber send panicked")
			h.logger.Error("subscriber send panicked", "panic", r)
		}
	}()
	return s.Send(data)
}

// prune removes and closes subscribers whose delivery failed.
func (h *Hub) prune(dead []Subscriber) {
	h.mu.Lock()
	for _, s := range dead {
		delete(h.subs, s)
	}
	n := len(h.subs)
	h.mu.Unlock()

	for _, s := range dead {
		_ = s.Close()
	}

	h.metrics.SetSubscribers(n)
	h.metrics.Pruned(len(dead))
	h.logger.Info("removed dead subscribers", "count", len(dead), "remaining", n)
}

// Close closes and removes every subscriber.
func (h *Hub) Close() {
	h.mu.Lock()
	subs := h.subs
	h.subs = make(map[Subscriber]struct{})
	h.mu.Unlock()

	for s := range subs {
		_ = s.Close()
	}
	h.metrics.SetSubscribers(0)
}
