package service

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// EventType defines the type of event
type EventType string

const (
	EventDeviceCreated     EventType = "device_created"
	EventDeviceDeleted     EventType = "device_deleted"
	EventConnectionAdded   EventType = "connection_added"
	EventConnectionRemoved EventType = "connection_removed"
	EventTrafficRecorded   EventType = "traffic_recorded"
	EventEndpointSuspended EventType = "endpoint_suspended"
	EventPolicyApplied     EventType = "policy_applied"
	EventInventorySaved    EventType = "inventory_saved"
	EventInventoryReloaded EventType = "inventory_reloaded"
	EventInventoryImported EventType = "inventory_imported"
)

// Event represents an event that occurred in the system
type Event struct {
	ID      string      `json:"id"`
	Type    EventType   `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
	Time    time.Time   `json:"time"`
}

// EventBus allows publishing and subscribing to events
type EventBus struct {
	mu          sync.RWMutex
	subscribers []chan<- Event
}

// NewEventBus creates a new event bus
func NewEventBus() *EventBus {
	return &EventBus{
		subscribers: make([]chan<- Event, 0),
	}
}

// Subscribe adds a subscriber to receive events
func (eb *EventBus) Subscribe(ch chan<- Event) {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	eb.subscribers = append(eb.subscribers, ch)
}

// Unsubscribe removes a subscriber. The channel is not closed.
func (eb *EventBus) Unsubscribe(ch chan<- Event) {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	for i, sub := range eb.subscribers {
		if sub == ch {
			eb.subscribers = append(eb.subscribers[:i], eb.subscribers[i+1:]...)
			return
		}
	}
}

// Publish stamps the event with an ID and time if missing and sends it to
// every subscriber without blocking.
func (eb *EventBus) Publish(event Event) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Time.IsZero() {
		event.Time = time.Now().UTC()
	}

	eb.mu.RLock()
	defer eb.mu.RUnlock()
	for _, ch := range eb.subscribers {
		select {
		case ch <- event:
		default:
			// Subscriber is slow, skip
		}
	}
}
