// Package relay fans overlay lifecycle events out to SSE subscribers.
package relay

import (
	"encoding/json"
	"sync"
	"sync/atomic"
)

const subscriberBufSize = 256

// Event kinds published by the lifecycle coordinator.
const (
	KindOverlayCreated = "overlay_created"
	KindOverlayRemoved = "overlay_removed"
	KindSymbolChanged  = "symbol_changed"
	KindAutoSave       = "autosave"
)

// Event is a single lifecycle event; Payload is a JSON document.
type Event struct {
	Kind    string
	Payload string
}

// JSONEvent builds an Event, encoding payload as JSON. Encode failures
// produce an empty object payload rather than a dropped event.
func JSONEvent(kind string, payload any) Event {
	data, err := json.Marshal(payload)
	if err != nil {
		data = []byte("{}")
	}
	return Event{Kind: kind, Payload: string(data)}
}

// Broker fans out events to all subscribed SSE clients.
type Broker struct {
	mu          sync.RWMutex
	subscribers map[int64]chan Event
	nextID      atomic.Int64
}

// NewBroker creates a new event broker.
func NewBroker() *Broker {
	return &Broker{subscribers: make(map[int64]chan Event)}
}

// Subscribe registers a new client. Returns the subscriber ID and a channel
// to receive events on. The channel is buffered; slow consumers will have
// events dropped.
func (b *Broker) Subscribe() (int64, <-chan Event) {
	id := b.nextID.Add(1)
	ch := make(chan Event, subscriberBufSize)
	b.mu.Lock()
	b.subscribers[id] = ch
	b.mu.Unlock()
	return id, ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (b *Broker) Unsubscribe(id int64) {
	b.mu.Lock()
	ch, ok := b.subscribers[id]
	if ok {
		delete(b.subscribers, id)
		close(ch)
	}
	b.mu.Unlock()
}

// Publish sends an event to all subscribers. Non-blocking: slow clients
// have events dropped. A nil broker drops everything, so callers that run
// without SSE wired do not need to guard each publish.
func (b *Broker) Publish(evt Event) {
	if b == nil {
		return
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subscribers {
		select {
		case ch <- evt:
		default:
		}
	}
}

// ClientCount returns the number of active subscribers.
func (b *Broker) ClientCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}
