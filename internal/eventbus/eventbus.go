// Package eventbus fans typed events out to any number of connected
// dashboard clients without ever blocking the producer.
package eventbus

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// Event types, per the envelope contract.
const (
	TypeConnected              = "connected"
	TypePong                   = "pong"
	TypeMessage                = "message"
	TypeHeartbeat              = "heartbeat"
	TypeFinding                = "finding"
	TypeWorkspace              = "workspace"
	TypeSchedule               = "schedule"
	TypeCompaction             = "compaction"
	TypeEngineSwitch           = "engine_switch"
	TypePageDescriptionUpdated = "page_description_updated"
	TypePageHighlightStarted   = "page_highlight_started"
	TypePageHighlightComplete  = "page_highlight_complete"
	TypePageHighlightFailed    = "page_highlight_failed"
	TypeStatus                 = "status"
)

// Event is the envelope every subscriber receives: {type, time, ...payload}.
type Event struct {
	Type    string         `json:"type"`
	Time    int64          `json:"time"`
	Payload map[string]any `json:"-"`
}

// New builds an event of the given type with the current time and payload
// merged flat into the envelope on MarshalJSON.
func New(eventType string, payload map[string]any) Event {
	return Event{Type: eventType, Time: time.Now().Unix(), Payload: payload}
}

// MarshalJSON flattens Payload alongside type/time, matching the envelope
// shape {type, time, ...payload} rather than nesting payload under a key.
func (e Event) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(e.Payload)+2)
	for k, v := range e.Payload {
		out[k] = v
	}
	out["type"] = e.Type
	out["time"] = e.Time
	return json.Marshal(out)
}

type subscriber struct {
	id   uint64
	conn *websocket.Conn
	ch   chan Event
	once sync.Once
}

// Bus is a process-local publish/subscribe hub. The zero value is not
// usable; construct with NewBus.
type Bus struct {
	log *logrus.Entry

	mu     sync.Mutex
	nextID uint64
	subs   map[uint64]*subscriber
}

// NewBus constructs an empty bus.
func NewBus(log *logrus.Entry) *Bus {
	return &Bus{log: log, subs: make(map[uint64]*subscriber)}
}

// Subscribe registers a websocket connection as a subscriber and starts the
// goroutine that pumps queued events to it. It returns an unsubscribe func.
func (b *Bus) Subscribe(conn *websocket.Conn) func() {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	sub := &subscriber{id: id, conn: conn, ch: make(chan Event, 64)}
	b.subs[id] = sub
	b.mu.Unlock()

	go b.pump(sub)

	return func() { b.remove(sub) }
}

func (b *Bus) pump(sub *subscriber) {
	for evt := range sub.ch {
		if err := sub.conn.WriteJSON(evt); err != nil {
			if b.log != nil {
				b.log.WithError(err).WithField("subscriber", sub.id).Debug("dropping dead websocket subscriber")
			}
			b.remove(sub)
			return
		}
	}
}

func (b *Bus) remove(sub *subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subs[sub.id]; !ok {
		return
	}
	delete(b.subs, sub.id)
	sub.once.Do(func() { close(sub.ch) })
}

// Count reports the number of live subscribers.
func (b *Bus) Count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Broadcast enumerates subscribers and enqueues evt to each, never blocking
// the caller: a full subscriber buffer is treated as a dead subscriber and
// dropped. The emitter never panics into the caller.
func (b *Bus) Broadcast(evt Event) {
	defer func() {
		if r := recover(); r != nil && b.log != nil {
			b.log.WithField("panic", r).Error("eventbus broadcast recovered")
		}
	}()

	b.mu.Lock()
	targets := make([]*subscriber, 0, len(b.subs))
	for _, s := range b.subs {
		targets = append(targets, s)
	}
	b.mu.Unlock()

	for _, s := range targets {
		select {
		case s.ch <- evt:
		default:
			b.remove(s)
		}
	}
}

// BroadcastSync is the cross-thread entry point: heartbeat goroutines and
// tool handlers running outside any request context call this. It is
// functionally identical to Broadcast (the bus has no separate event-loop
// thread to hop to in this Go port) but documents the call site's intent
// and guarantees the same no-block, no-panic contract when there are no
// subscribers at all.
func (b *Bus) BroadcastSync(evt Event) {
	if b.Count() == 0 {
		return
	}
	b.Broadcast(evt)
}
