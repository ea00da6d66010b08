package orders

import (
	"time"

	"github.com/skshopping/shop-backend/pkg/db/models"
	"github.com/skshopping/shop-backend/pkg/enums"
	"github.com/skshopping/shop-backend/pkg/outbox"
	"github.com/skshopping/shop-backend/pkg/outbox/payloads"
)

func orderCreatedEvent(order models.Order, actor *outbox.ActorRef) outbox.DomainEvent {
	return outbox.DomainEvent{
		EventType:     enums.EventOrderCreated,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Actor:         actor,
		OccurredAt:    order.CreatedAt,
		Data: payloads.OrderCreatedEvent{
			OrderID:       order.ID,
			ShopID:        order.ShopID,
			RefID:         order.RefID,
			TotalPrice:    order.TotalPrice,
			ShippingFee:   order.ShippingFee,
			PaymentMethod: order.PaymentMethod,
			DeliveryType:  order.DeliveryType,
			ContactEmail:  order.ContactEmail,
		},
	}
}

// PaymentConfirmedEvent builds the receipt trigger for an order that just became paid.
func PaymentConfirmedEvent(order models.Order, source payloads.PaymentSource, paidAt time.Time) outbox.DomainEvent {
	var provider enums.PaymentProvider
	if order.PaymentProvider != nil && source == payloads.PaymentSourceGateway {
		provider = *order.PaymentProvider
	}
	return outbox.DomainEvent{
		EventType:     enums.EventPaymentConfirmed,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		OccurredAt:    paidAt.UTC(),
		Data: payloads.PaymentConfirmedEvent{
			OrderID:  order.ID,
			ShopID:   order.ShopID,
			RefID:    order.RefID,
			Source:   source,
			Provider: provider,
			Amount:   order.TotalPrice,
			PaidAt:   paidAt.UTC(),
		},
	}
}

// OrderCanceledEvent builds the cancellation notice.
func OrderCanceledEvent(order models.Order, reason string, canceledAt time.Time, actor *outbox.ActorRef) outbox.DomainEvent {
	return outbox.DomainEvent{
		EventType:     enums.EventOrderCanceled,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Actor:         actor,
		OccurredAt:    canceledAt.UTC(),
		Data: payloads.OrderCanceledEvent{
			OrderID:    order.ID,
			ShopID:     order.ShopID,
			RefID:      order.RefID,
			CanceledAt: canceledAt.UTC(),
			Reason:     reason,
		},
	}
}
