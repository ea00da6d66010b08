package enums

import "fmt"

// OutboxAggregateType identifies the entity an outbox row belongs to.
type OutboxAggregateType string

const (
	AggregateOrder OutboxAggregateType = "order"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateOrder,
}

func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType names a domain event queued through the outbox.
type OutboxEventType string

const (
	// EventOrderCreated drives the invoice email.
	EventOrderCreated OutboxEventType = "order_created"
	// EventPaymentConfirmed drives the receipt email.
	EventPaymentConfirmed OutboxEventType = "payment_confirmed"
	EventOrderCanceled    OutboxEventType = "order_canceled"
)

var validEventTypes = []OutboxEventType{
	EventOrderCreated,
	EventPaymentConfirmed,
	EventOrderCanceled,
}

func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}
