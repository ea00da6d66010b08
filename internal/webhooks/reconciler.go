// Package webhooks turns payment provider callbacks into order state.
package webhooks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/skshopping/shop-backend/internal/orders"
	"github.com/skshopping/shop-backend/internal/payments"
	"github.com/skshopping/shop-backend/pkg/db"
	"github.com/skshopping/shop-backend/pkg/enums"
	pkgerrors "github.com/skshopping/shop-backend/pkg/errors"
	"github.com/skshopping/shop-backend/pkg/logger"
	"github.com/skshopping/shop-backend/pkg/metrics"
	"github.com/skshopping/shop-backend/pkg/outbox"
	"github.com/skshopping/shop-backend/pkg/outbox/payloads"
)

const oversoldCancelReason = "sold out before payment arrived, refund required"

// Outcome tells the HTTP layer what happened. Acknowledged notifications get a 200.
type Outcome struct {
	Provider     enums.PaymentProvider
	RefID        string
	Result       payments.Result
	OrderID      uuid.UUID
	Acknowledged bool
	Applied      bool
	Duplicate    bool
}

type ReconcilerParams struct {
	TxRunner     db.TxRunner
	Repo         orders.Repository
	Payments     *payments.Registry
	Outbox       outbox.Emitter
	Reservations *orders.ReservationChecker
	// Guard is optional; without it replays are still absorbed by the
	// conditional update, they just cost a transaction.
	Guard   *IdempotencyGuard
	Metrics *metrics.OrderMetrics
	Logger  *logger.Logger
	Clock   func() time.Time
}

type Reconciler struct {
	tx           db.TxRunner
	repo         orders.Repository
	payments     *payments.Registry
	outbox       outbox.Emitter
	reservations *orders.ReservationChecker
	guard        *IdempotencyGuard
	metrics      *metrics.OrderMetrics
	logg         *logger.Logger
	now          func() time.Time
}

func NewReconciler(p ReconcilerParams) (*Reconciler, error) {
	if p.TxRunner == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner required")
	}
	if p.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "orders repository required")
	}
	if p.Payments == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "payment registry required")
	}
	if p.Outbox == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "outbox emitter required")
	}
	if p.Reservations == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "reservation checker required")
	}
	if p.Logger == nil {
		p.Logger = logger.Nop()
	}
	if p.Clock == nil {
		p.Clock = time.Now
	}
	return &Reconciler{
		tx:           p.TxRunner,
		repo:         p.Repo,
		payments:     p.Payments,
		outbox:       p.Outbox,
		reservations: p.Reservations,
		guard:        p.Guard,
		metrics:      p.Metrics,
		logg:         p.Logger,
		now:          p.Clock,
	}, nil
}

// Reconcile verifies, parses and applies one provider callback. Only a
// successful payment changes state, and only the delivery that actually flips
// the order queues a receipt.
func (r *Reconciler) Reconcile(ctx context.Context, provider enums.PaymentProvider, raw []byte, signature string) (*Outcome, error) {
	adapter, ok := r.payments.Get(provider)
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("payment provider %s is not configured", provider))
	}
	if err := adapter.VerifySignature(raw, signature); err != nil {
		r.metrics.IncWebhook(provider.String(), "bad_signature")
		return nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid webhook signature")
	}
	event, err := adapter.ParseWebhook(raw)
	if err != nil {
		r.metrics.IncWebhook(provider.String(), "bad_payload")
		return nil, err
	}

	outcome := &Outcome{Provider: provider, RefID: event.ReferenceNo, Result: event.Result, Acknowledged: true}
	logCtx := r.logg.WithFields(ctx, map[string]any{
		"provider":           provider,
		"ref_id":             event.ReferenceNo,
		"provider_reference": event.ProviderReference,
		"result":             event.Result,
		"raw_result":         event.RawResult,
	})

	if !event.Result.IsSuccess() {
		r.metrics.IncWebhook(provider.String(), string(event.Result))
		r.logg.Info(logCtx, "webhooks.not_applied")
		return outcome, nil
	}

	// The delivery is remembered only after its transaction commits, so a
	// crash mid-apply leaves the provider's retry free to run.
	deliveryID := deliveryKey(event)
	if r.guard != nil {
		seen, err := r.guard.Seen(ctx, deliveryID)
		if err != nil {
			r.logg.Warn(logCtx, "webhooks.idempotency_unavailable")
		} else if seen {
			outcome.Duplicate = true
			r.metrics.IncWebhook(provider.String(), "duplicate")
			r.logg.Info(logCtx, "webhooks.duplicate")
			return outcome, nil
		}
	}

	if err := r.apply(logCtx, provider, event, outcome); err != nil {
		return nil, r.fail(logCtx, provider, err)
	}
	if r.guard != nil {
		if err := r.guard.Mark(ctx, deliveryID); err != nil {
			r.logg.Warn(logCtx, "webhooks.idempotency_mark_failed")
		}
	}

	if outcome.Applied {
		r.metrics.IncWebhook(provider.String(), "applied")
		r.logg.Info(r.logg.WithOrderID(logCtx, outcome.OrderID.String()), "webhooks.payment_applied")
	} else {
		r.metrics.IncWebhook(provider.String(), "already_paid")
		r.logg.Info(r.logg.WithOrderID(logCtx, outcome.OrderID.String()), "webhooks.already_paid")
	}
	return outcome, nil
}

func (r *Reconciler) apply(ctx context.Context, provider enums.PaymentProvider, event *payments.WebhookEvent, outcome *Outcome) error {
	var oversold *IntegrityError
	err := r.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := r.repo.WithTx(tx)
		order, err := repo.FindByRefIDForUpdate(ctx, event.ReferenceNo)
		if err != nil {
			if db.IsNotFound(err) {
				return &IntegrityError{Kind: KindUnknownRefID, RefID: event.ReferenceNo}
			}
			return err
		}
		outcome.OrderID = order.ID

		expected := decimal.NewFromInt(order.TotalPrice)
		if !expected.Equal(event.Amount) {
			return &IntegrityError{Kind: KindAmountMismatch, RefID: order.RefID, Expected: expected, Received: event.Amount}
		}

		if order.ShipmentStatus == enums.ShipmentCanceled {
			r.logg.Warn(r.logg.WithOrderID(ctx, order.ID.String()), "webhooks.payment_for_canceled_order")
		}

		now := r.now().UTC()
		lapsed := r.reservations.NeedsRecheck(*order, now)
		from := order.ShipmentStatus
		if !orders.ApplyGatewayPayment(order, provider, now) {
			return nil
		}

		var shortfall *orders.InsufficientStockError
		if lapsed {
			if err := r.reservations.Recheck(ctx, tx, order.ID); err != nil {
				if !errors.As(err, &shortfall) {
					return err
				}
			}
		}

		changed, err := repo.MarkGatewayPaid(ctx, order.ID, provider, now)
		if err != nil || !changed {
			return err
		}
		outcome.Applied = true

		if shortfall != nil {
			// The money has moved, so it is recorded, but the order cannot take
			// stock that was sold after its hold lapsed.
			oversold = &IntegrityError{Kind: KindOversoldAfterLapse, RefID: order.RefID, ItemID: shortfall.ItemID}
			if !orders.CanTransitionShipment(from, enums.ShipmentCanceled) {
				return nil
			}
			if _, err := repo.UpdateShipment(ctx, order.ID, from, enums.ShipmentCanceled, now); err != nil {
				return err
			}
			order.ShipmentStatus = enums.ShipmentCanceled
			return r.outbox.Emit(ctx, tx, orders.OrderCanceledEvent(*order, oversoldCancelReason, now, nil))
		}
		return r.outbox.Emit(ctx, tx, orders.PaymentConfirmedEvent(*order, payloads.PaymentSourceGateway, now))
	})
	if err != nil {
		return err
	}
	if oversold != nil {
		return oversold
	}
	return nil
}

func (r *Reconciler) fail(ctx context.Context, provider enums.PaymentProvider, err error) error {
	var integrity *IntegrityError
	if errors.As(err, &integrity) {
		r.metrics.IncIntegrityViolation(string(integrity.Kind))
		r.metrics.IncWebhook(provider.String(), "integrity_error")
		r.logg.Error(r.logg.WithField(ctx, "integrity_kind", integrity.Kind), "integrity.violation", err)
		return err
	}
	r.metrics.IncWebhook(provider.String(), "error")
	r.logg.Error(ctx, "webhooks.apply_failed", err)
	if pkgerrors.As(err) != nil {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodePersistence, err, "apply payment")
}

// deliveryKey identifies one provider notification for replay detection.
func deliveryKey(event *payments.WebhookEvent) string {
	return fmt.Sprintf("%s:%s:%s", event.Provider, event.ReferenceNo, event.ProviderReference)
}
