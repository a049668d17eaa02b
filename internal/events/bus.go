package events

import (
	"sync"
	"time"
)

// EventSource represents the source of an event
type EventSource string

const (
	EventSourceIRC     EventSource = "irc"
	EventSourceSession EventSource = "session"
	EventSourceNetwork EventSource = "network"
	EventSourceSystem  EventSource = "system"
)

// Event represents a generic event
type Event struct {
	Type      string
	Data      map[string]interface{}
	Timestamp time.Time
	Source    EventSource
}

// Subscriber is an interface for event subscribers
type Subscriber interface {
	OnEvent(event Event)
}

// SubscriberFunc adapts a plain function to the Subscriber interface.
type SubscriberFunc func(event Event)

func (f SubscriberFunc) OnEvent(event Event) { f(event) }

// EventBus manages event routing
type EventBus struct {
	subscribers map[string][]Subscriber
	mu          sync.RWMutex
}

// NewEventBus creates a new event bus
func NewEventBus() *EventBus {
	return &EventBus{
		subscribers: make(map[string][]Subscriber),
	}
}

// Subscribe subscribes a subscriber to a specific event type.
// Subscribing to "*" receives every event.
func (eb *EventBus) Subscribe(eventType string, subscriber Subscriber) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	eb.subscribers[eventType] = append(eb.subscribers[eventType], subscriber)
}

// Unsubscribe removes a subscriber from an event type
func (eb *EventBus) Unsubscribe(eventType string, subscriber Subscriber) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	subs := eb.subscribers[eventType]
	for i, sub := range subs {
		if sub == subscriber {
			eb.subscribers[eventType] = append(subs[:i], subs[i+1:]...)
			break
		}
	}
}

func (eb *EventBus) snapshot(eventType string) ([]Subscriber, []Subscriber) {
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	subs := make([]Subscriber, len(eb.subscribers[eventType]))
	copy(subs, eb.subscribers[eventType])
	wildcard := make([]Subscriber, len(eb.subscribers["*"]))
	copy(wildcard, eb.subscribers["*"])
	return subs, wildcard
}

// Emit emits an event to all subscribers asynchronously
func (eb *EventBus) Emit(event Event) {
	subs, wildcard := eb.snapshot(event.Type)

	for _, sub := range subs {
		go sub.OnEvent(event)
	}
	for _, sub := range wildcard {
		go sub.OnEvent(event)
	}
}

// EmitSync emits an event synchronously (for testing or when order matters)
func (eb *EventBus) EmitSync(event Event) {
	subs, wildcard := eb.snapshot(event.Type)

	for _, sub := range subs {
		sub.OnEvent(event)
	}
	for _, sub := range wildcard {
		sub.OnEvent(event)
	}
}
