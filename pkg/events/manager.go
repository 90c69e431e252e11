package events

import (
	"log/slog"
	"sync"

	"github.com/anna-project/annad/pkg/models"
	"github.com/google/uuid"
)

// writeTimeout-style backpressure: a subscriber's channel buffer. Slow RPC
// writers fall behind rather than stall the orchestrated loop.
const subscriberBuffer = 64

// Manager fans out Debug Events to RPC-stream subscribers of one
// orchestrated query. One Manager instance lives for the daemon's
// lifetime; queries register/unregister a subscription per in-flight
// streaming RPC call.
type Manager struct {
	mu          sync.RWMutex
	subscribers map[string]map[string]chan models.DebugEvent // queryID -> subscriberID -> chan
}

// NewManager constructs an empty event Manager.
func NewManager() *Manager {
	return &Manager{subscribers: make(map[string]map[string]chan models.DebugEvent)}
}

// Subscribe registers a new subscriber for queryID's event stream and
// returns its channel plus an unsubscribe function. The caller (the RPC
// connection goroutine serving the streaming method) must call unsubscribe
// when the call completes or the client disconnects.
func (m *Manager) Subscribe(queryID string) (<-chan models.DebugEvent, func()) {
	subID := uuid.NewString()
	ch := make(chan models.DebugEvent, subscriberBuffer)

	m.mu.Lock()
	if m.subscribers[queryID] == nil {
		m.subscribers[queryID] = make(map[string]chan models.DebugEvent)
	}
	m.subscribers[queryID][subID] = ch
	m.mu.Unlock()

	unsubscribe := func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if subs, ok := m.subscribers[queryID]; ok {
			delete(subs, subID)
			if len(subs) == 0 {
				delete(m.subscribers, queryID)
			}
		}
		close(ch)
	}
	return ch, unsubscribe
}

// Publish delivers event to every current subscriber of queryID.
// Non-blocking: a subscriber whose buffer is full has the event dropped
// for it, logged, rather than stalling the orchestrated loop (§5:
// suspension points must not be held across store mutations).
func (m *Manager) Publish(queryID string, event models.DebugEvent) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for subID, ch := range m.subscribers[queryID] {
		select {
		case ch <- event:
		default:
			slog.Warn("debug event dropped, subscriber buffer full",
				"query_id", queryID, "subscriber", subID, "event_type", event.Type)
		}
	}
}

// SubscriberCount reports how many subscribers are attached to queryID.
func (m *Manager) SubscriberCount(queryID string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.subscribers[queryID])
}
