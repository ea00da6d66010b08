package notifications

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/skshopping/shop-backend/pkg/logger"
	"github.com/skshopping/shop-backend/pkg/outbox/idempotency"
	"github.com/skshopping/shop-backend/pkg/outbox/payloads"
	"github.com/skshopping/shop-backend/pkg/outbox/registry"
)

const consumerName = "order-notifications"

type notifier interface {
	SendInvoice(ctx context.Context, orderID uuid.UUID) error
	SendReceipt(ctx context.Context, orderID uuid.UUID) error
	SendCancellation(ctx context.Context, orderID uuid.UUID, reason string) error
}

// Consumer turns resolved outbox events into emails. A redis claim keeps a
// redelivered event from mailing the buyer twice.
type Consumer struct {
	notifier    notifier
	idempotency *idempotency.Manager
	logg        *logger.Logger
}

func NewConsumer(n notifier, manager *idempotency.Manager, logg *logger.Logger) (*Consumer, error) {
	if n == nil {
		return nil, fmt.Errorf("notifier required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Consumer{notifier: n, idempotency: manager, logg: logg}, nil
}

func (c *Consumer) Handle(ctx context.Context, event *registry.ResolvedEvent) error {
	if event == nil {
		return registry.NewNonRetryableError(fmt.Errorf("event required"))
	}
	eventID := event.Envelope.EventID
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"event_id":   eventID,
		"event_type": event.Descriptor.EventType,
	})

	if c.idempotency != nil {
		claimed, err := c.idempotency.Claim(ctx, consumerName, eventID)
		if err != nil {
			return fmt.Errorf("claim event: %w", err)
		}
		if !claimed {
			c.logg.Info(logCtx, "notifications.already_sent")
			return nil
		}
	}

	if err := c.dispatch(logCtx, event.Payload); err != nil {
		if c.idempotency != nil {
			if relErr := c.idempotency.Release(ctx, consumerName, eventID); relErr != nil {
				c.logg.Error(logCtx, "notifications.release_failed", relErr)
			}
		}
		return err
	}
	return nil
}

func (c *Consumer) dispatch(ctx context.Context, payload any) error {
	switch p := payload.(type) {
	case *payloads.OrderCreatedEvent:
		return c.notifier.SendInvoice(ctx, p.OrderID)
	case *payloads.PaymentConfirmedEvent:
		return c.notifier.SendReceipt(ctx, p.OrderID)
	case *payloads.OrderCanceledEvent:
		return c.notifier.SendCancellation(ctx, p.OrderID, p.Reason)
	default:
		return registry.NewNonRetryableError(fmt.Errorf("unsupported payload %T", payload))
	}
}
