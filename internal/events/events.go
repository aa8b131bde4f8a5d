package events

import (
	"encoding/json"
	"sync"
	"time"
)

const (
	EventEquipmentCreated  = "equipment_created"
	EventEquipmentUpdated  = "equipment_updated"
	EventEquipmentApproved = "equipment_approved"
	EventEquipmentDeleted  = "equipment_deleted"

	EventRentalCreated       = "rental_created"
	EventRentalReturned      = "rental_returned"
	EventRentalCancelled     = "rental_cancelled"
	EventRentalStatusChanged = "rental_status_changed"
	EventRentalOverdue       = "rental_overdue"

	EventDeliveryCreated   = "delivery_created"
	EventDeliveryDelivered = "delivery_delivered"
	EventDeliveryReturned  = "delivery_returned"

	EventPaymentCreated       = "payment_created"
	EventPaymentStatusChanged = "payment_status_changed"

	EventUserRegistered = "user_registered"
	EventUserUpdated    = "user_updated"
	EventUserDeleted    = "user_deleted"
)

// AllEvents subscribes a handler to every event type.
const AllEvents = "*"

// EquipmentEventPayload is the catalog snapshot carried by equipment events.
type EquipmentEventPayload struct {
	EquipmentID int64  `json:"equipment_id"`
	Name        string `json:"name"`
	Category    string `json:"category"`
	Status      string `json:"status"`
	Approved    bool   `json:"approved"`
	ActorID     int64  `json:"actor_id,omitempty"`
}

// RentalEventPayload describes the rental snapshot for event consumers.
type RentalEventPayload struct {
	RentalID    int64     `json:"rental_id"`
	EquipmentID int64     `json:"equipment_id"`
	UserID      int64     `json:"user_id"`
	Status      string    `json:"status"`
	Quantity    int64     `json:"quantity"`
	TotalCost   float64   `json:"total_cost"`
	EndDate     time.Time `json:"end_date"`
	Overdue     bool      `json:"overdue,omitempty"`
	ActorID     int64     `json:"actor_id,omitempty"`
}

type DeliveryEventPayload struct {
	DeliveryID       int64  `json:"delivery_id"`
	RentalID         int64  `json:"rental_id"`
	DeliveryPersonID int64  `json:"delivery_person_id,omitempty"`
	Status           string `json:"status"`
	ActorID          int64  `json:"actor_id,omitempty"`
}

type PaymentEventPayload struct {
	PaymentID int64   `json:"payment_id"`
	RentalID  int64   `json:"rental_id"`
	UserID    int64   `json:"user_id"`
	Amount    float64 `json:"amount"`
	Method    string  `json:"method"`
	Status    string  `json:"status"`
	ActorID   int64   `json:"actor_id,omitempty"`
}

type UserEventPayload struct {
	UserID  int64  `json:"user_id"`
	Email   string `json:"email"`
	Role    string `json:"role"`
	ActorID int64  `json:"actor_id,omitempty"`
}

// Event represents a lightweight domain event.
type Event struct {
	Type      string
	Payload   []byte
	CreatedAt time.Time
}

// EventHandler reacts to an event.
type EventHandler func(event *Event) error

// EventBus provides in-process pub/sub for events.
type EventBus struct {
	subscribers map[string][]EventHandler
	mu          sync.RWMutex
	onError     func(event *Event, err error)
}

// NewEventBus constructs an empty bus.
func NewEventBus() *EventBus {
	return &EventBus{subscribers: make(map[string][]EventHandler)}
}

// OnError sets a callback for handler failures. Failures are otherwise ignored.
func (b *EventBus) OnError(fn func(event *Event, err error)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onError = fn
}

// Subscribe registers a handler for a given event type, or AllEvents.
func (b *EventBus) Subscribe(eventType string, handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], handler)
}

// Publish notifies subscribers of the event type, then wildcard subscribers.
func (b *EventBus) Publish(event *Event) {
	b.mu.RLock()
	handlers := append([]EventHandler(nil), b.subscribers[event.Type]...)
	handlers = append(handlers, b.subscribers[AllEvents]...)
	onError := b.onError
	b.mu.RUnlock()

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	for _, handler := range handlers {
		// Handlers run synchronously; caller decides concurrency model.
		if err := handler(event); err != nil && onError != nil {
			onError(event, err)
		}
	}
}

// PublishJSON serializes the payload and publishes an event.
func (b *EventBus) PublishJSON(eventType string, payload interface{}) error {
	if b == nil {
		return nil
	}

	event, err := NewJSONEvent(eventType, payload)
	if err != nil {
		return err
	}

	b.Publish(&event)
	return nil
}

// NewJSONEvent builds an Event with JSON payload for manual publishing.
func NewJSONEvent(eventType string, payload interface{}) (Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}

	return Event{Type: eventType, Payload: raw, CreatedAt: time.Now()}, nil
}
