package events

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventBus(t *testing.T) {
	bus := NewEventBus()

	var received *Event
	var callCount int

	bus.Subscribe(EventRentalCreated, func(event *Event) error {
		received = event
		callCount++
		return nil
	})

	err := bus.PublishJSON(EventRentalCreated, RentalEventPayload{RentalID: 7, Quantity: 2})
	require.NoError(t, err)

	assert.Equal(t, 1, callCount)
	require.NotNil(t, received)
	assert.Equal(t, EventRentalCreated, received.Type)
	assert.False(t, received.CreatedAt.IsZero())

	var decoded RentalEventPayload
	require.NoError(t, json.Unmarshal(received.Payload, &decoded))
	assert.Equal(t, int64(7), decoded.RentalID)
	assert.Equal(t, int64(2), decoded.Quantity)
}

func TestEventBusMultipleSubscribers(t *testing.T) {
	bus := NewEventBus()
	var count1, count2, wildcard int

	bus.Subscribe("event", func(_ *Event) error { count1++; return nil })
	bus.Subscribe("event", func(_ *Event) error { count2++; return nil })
	bus.Subscribe(AllEvents, func(_ *Event) error { wildcard++; return nil })

	bus.Publish(&Event{Type: "event"})
	bus.Publish(&Event{Type: "other"})

	assert.Equal(t, 1, count1)
	assert.Equal(t, 1, count2)
	assert.Equal(t, 2, wildcard)
}

func TestEventBusHandlerErrors(t *testing.T) {
	bus := NewEventBus()
	var failed []string

	bus.OnError(func(event *Event, err error) {
		failed = append(failed, event.Type+": "+err.Error())
	})
	bus.Subscribe("event", func(_ *Event) error { return errors.New("boom") })

	bus.Publish(&Event{Type: "event"})
	assert.Equal(t, []string{"event: boom"}, failed)
}

func TestEventBusNoSubscribers(t *testing.T) {
	bus := NewEventBus()
	assert.NotPanics(t, func() { bus.Publish(&Event{Type: "unknown"}) })
	assert.NoError(t, bus.PublishJSON("unknown", nil))

	var nilBus *EventBus
	assert.NoError(t, nilBus.PublishJSON("unknown", nil))
}

func TestNewJSONEvent(t *testing.T) {
	event, err := NewJSONEvent(EventPaymentCreated, PaymentEventPayload{PaymentID: 123, Method: "cash"})
	require.NoError(t, err)

	assert.Equal(t, EventPaymentCreated, event.Type)
	assert.False(t, event.CreatedAt.IsZero())

	var decoded PaymentEventPayload
	require.NoError(t, json.Unmarshal(event.Payload, &decoded))
	assert.Equal(t, int64(123), decoded.PaymentID)

	_, err = NewJSONEvent("bad", make(chan int))
	assert.Error(t, err)
}
