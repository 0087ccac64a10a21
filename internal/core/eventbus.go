package core

import "sync"

// EventType defines the type of event being published.
type EventType string

const (
	CommandSentEvent     EventType = "CommandSent"
	CommandFailedEvent   EventType = "CommandFailed"
	LinkChangedEvent     EventType = "LinkChanged"
	ScenarioChangedEvent EventType = "ScenarioChanged"
	ScriptChangedEvent   EventType = "ScriptChanged"
)

// Event is the envelope for all system events.
type Event struct {
	Type    EventType
	Payload interface{}
}

// CommandPayload accompanies CommandSentEvent and CommandFailedEvent.
type CommandPayload struct {
	Line   string `json:"line"`
	Origin Origin `json:"origin"`
	Error  string `json:"error,omitempty"`
}

// LinkPayload accompanies LinkChangedEvent.
type LinkPayload struct {
	Connected bool   `json:"connected"`
	Device    string `json:"device"`
}

// RunPayload accompanies ScenarioChangedEvent and ScriptChangedEvent.
// An empty Running means nothing is running any more.
type RunPayload struct {
	Running string `json:"running"`
	Step    string `json:"step,omitempty"`
}

// Subscriber is a channel that receives events.
type Subscriber chan Event

// EventBus handles pub/sub messaging for the application.
type EventBus struct {
	mu          sync.RWMutex
	subscribers map[EventType][]Subscriber
}

// NewEventBus creates a new EventBus.
func NewEventBus() *EventBus {
	return &EventBus{
		subscribers: make(map[EventType][]Subscriber),
	}
}

// Subscribe returns a channel that receives events of the given types.
func (eb *EventBus) Subscribe(eventTypes ...EventType) Subscriber {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	ch := make(Subscriber, 100)
	for _, t := range eventTypes {
		eb.subscribers[t] = append(eb.subscribers[t], ch)
	}

	return ch
}

// Unsubscribe removes a subscriber channel.
func (eb *EventBus) Unsubscribe(ch Subscriber, eventTypes ...EventType) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	for _, t := range eventTypes {
		subs := eb.subscribers[t]
		for i, sub := range subs {
			if sub == ch {
				eb.subscribers[t] = append(subs[:i], subs[i+1:]...)
				break
			}
		}
	}
}

// Publish distributes an event to all active subscribers for its type.
// A full subscriber misses the event rather than blocking the publisher.
func (eb *EventBus) Publish(event Event) {
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	for _, sub := range eb.subscribers[event.Type] {
		select {
		case sub <- event:
		default:
		}
	}
}
