// Package fanout broadcasts state transitions to role-scoped observer
// groups: kitchen, waiters, one group per table session, and the restaurant
// dashboard.
//
// Ordering: events carry a sequence number assigned under the hub lock, so
// events for the same order or session reach a given subscriber in the
// order they were produced. Delivery is at-most-once per connected
// observer: a subscriber whose buffer is full loses the event and must
// reconcile by re-fetching state on reconnect. Nothing is buffered for
// offline consumers.
package fanout

import (
	"log/slog"
	"sync"
	"time"
)

// Group is a named observer group.
type Group string

const (
	GroupKitchen   Group = "kitchen"
	GroupWaiters   Group = "waiters"
	GroupDashboard Group = "dashboard"
)

// SessionGroup is the group for one table session's diners.
func SessionGroup(sessionID string) Group {
	return Group("session:" + sessionID)
}

// EventType identifies the kind of event.
type EventType string

const (
	// Order lifecycle events.
	TypeOrderCreated       EventType = "order.created"
	TypeOrderLineAdded     EventType = "order.line_added"
	TypeOrderStatusChanged EventType = "order.status_changed"
	TypeOrderSplit         EventType = "order.split_finalized"

	// Membership events.
	TypeMemberJoined   EventType = "session.member_joined"
	TypeMemberApproved EventType = "session.member_approved"
	TypeMemberRejected EventType = "session.member_rejected"
	TypeSessionClosed  EventType = "session.closed"

	// Settlement events.
	TypePaymentSettled EventType = "payment.settled"
)

// Event is one broadcast state transition. Events represent facts that have
// occurred, not commands.
type Event struct {
	// Seq orders events; assigned by the broadcaster on publish.
	Seq uint64 `json:"seq"`

	Type      EventType `json:"type"`
	OrderID   string    `json:"order_id,omitempty"`
	SessionID string    `json:"session_id,omitempty"`
	At        time.Time `json:"at"`

	// Payload holds event-specific data (new status, member id, amount).
	Payload map[string]any `json:"payload,omitempty"`
}

// Transport delivers events to observers outside this process (a websocket
// gateway, a Redis channel). The transport owns actual socket delivery and
// reconnection.
type Transport interface {
	Deliver(group Group, event Event)
}

// subscriberBuffer is the per-subscriber channel capacity. A subscriber
// that falls this far behind starts losing events and must re-fetch.
const subscriberBuffer = 64

type subscriber struct {
	group Group
	ch    chan Event
}

// Broadcaster fans events out to in-process subscribers and external
// transports.
type Broadcaster struct {
	mu          sync.Mutex
	seq         uint64
	subscribers map[*subscriber]struct{}
	transports  []Transport
}

// NewBroadcaster creates a broadcaster with optional external transports.
func NewBroadcaster(transports ...Transport) *Broadcaster {
	return &Broadcaster{
		subscribers: make(map[*subscriber]struct{}),
		transports:  transports,
	}
}

// Subscribe registers an observer for a group. The returned cancel function
// unregisters and closes the channel.
func (b *Broadcaster) Subscribe(group Group) (<-chan Event, func()) {
	sub := &subscriber{group: group, ch: make(chan Event, subscriberBuffer)}

	b.mu.Lock()
	b.subscribers[sub] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subscribers, sub)
			b.mu.Unlock()
			close(sub.ch)
		})
	}
	return sub.ch, cancel
}

// Publish delivers the event to every subscriber of the given groups and to
// all transports. Sequence assignment and channel sends happen under one
// lock, which is what preserves per-entity ordering.
func (b *Broadcaster) Publish(groups []Group, event Event) {
	b.mu.Lock()
	b.seq++
	event.Seq = b.seq
	if event.At.IsZero() {
		event.At = time.Now()
	}

	wanted := make(map[Group]struct{}, len(groups))
	for _, g := range groups {
		wanted[g] = struct{}{}
	}
	for sub := range b.subscribers {
		if _, ok := wanted[sub.group]; !ok {
			continue
		}
		select {
		case sub.ch <- event:
		default:
			// Slow consumer: drop rather than block the publisher. The
			// observer reconciles by re-fetching on reconnect.
			slog.Debug("fanout: dropping event for slow subscriber",
				"group", sub.group, "type", event.Type, "seq", event.Seq)
		}
	}
	b.mu.Unlock()

	for _, t := range b.transports {
		for _, g := range groups {
			t.Deliver(g, event)
		}
	}
}
