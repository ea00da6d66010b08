// Package orders validates, prices and persists orders and drives their
// payment and shipment state.
package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/skshopping/shop-backend/internal/catalog"
	"github.com/skshopping/shop-backend/internal/payments"
	"github.com/skshopping/shop-backend/internal/stock"
	"github.com/skshopping/shop-backend/pkg/db"
	"github.com/skshopping/shop-backend/pkg/db/models"
	"github.com/skshopping/shop-backend/pkg/enums"
	pkgerrors "github.com/skshopping/shop-backend/pkg/errors"
	"github.com/skshopping/shop-backend/pkg/logger"
	"github.com/skshopping/shop-backend/pkg/metrics"
	"github.com/skshopping/shop-backend/pkg/outbox"
	"github.com/skshopping/shop-backend/pkg/outbox/payloads"
)

const (
	refIDConstraint  = "ux_orders_ref_id"
	maxRefIDAttempts = 3

	defaultGatewayTimeout = 15 * time.Second
	lapsedCancelReason    = "reservation expired"
	staffCancelReason     = "canceled by shop"
)

// Actor is the authenticated staff member behind a state change.
type Actor interface {
	CanManageShop(shopID uuid.UUID) bool
	ActorRef() *outbox.ActorRef
}

type Service interface {
	Create(ctx context.Context, req CreateRequest) (*CreateResult, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Order, error)
	Render(ctx context.Context, orders []models.Order, level, descendant enums.FetchLevel) ([]any, error)
	AttachSlip(ctx context.Context, id uuid.UUID, slipURL string) (*models.Order, error)
	UpdateShipment(ctx context.Context, actor Actor, id uuid.UUID, to enums.ShipmentStatus) (*models.Order, error)
	Verify(ctx context.Context, actor Actor, id uuid.UUID) (*models.Order, error)
	RegenerateArtifact(ctx context.Context, id uuid.UUID) (*models.Order, error)
	CancelLapsed(ctx context.Context, limit int) (int, error)
}

// CreateRequest is one checkout: a draft per shop, committed together.
type CreateRequest struct {
	Drafts  []Draft
	BuyerID *uuid.UUID
}

type CreateResult struct {
	Orders []models.Order
}

type ServiceParams struct {
	TxRunner       db.TxRunner
	Repo           Repository
	Catalog        *catalog.Repository
	Ledger         *stock.Ledger
	Pricing        Pricing
	Payments       *payments.Registry
	Outbox         outbox.Emitter
	Metrics        *metrics.OrderMetrics
	Logger         *logger.Logger
	GatewayTimeout time.Duration
	Clock          func() time.Time
}

type service struct {
	tx             db.TxRunner
	repo           Repository
	catalog        *catalog.Repository
	ledger         *stock.Ledger
	reservations   *ReservationChecker
	validator      *Validator
	projector      *Projector
	payments       *payments.Registry
	outbox         outbox.Emitter
	metrics        *metrics.OrderMetrics
	logg           *logger.Logger
	validate       *validator.Validate
	gatewayTimeout time.Duration
	now            func() time.Time
}

func NewService(p ServiceParams) (Service, error) {
	if p.TxRunner == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if p.Repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if p.Catalog == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	if p.Ledger == nil {
		return nil, fmt.Errorf("stock ledger required")
	}
	if p.Payments == nil {
		return nil, fmt.Errorf("payment registry required")
	}
	if p.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if p.Logger == nil {
		p.Logger = logger.Nop()
	}
	if p.GatewayTimeout <= 0 {
		p.GatewayTimeout = defaultGatewayTimeout
	}
	if p.Clock == nil {
		p.Clock = time.Now
	}
	ledger := p.Ledger.WithClock(p.Clock)
	projector := NewProjector(p.Catalog, ledger.HoldWindow())
	projector.now = p.Clock
	return &service{
		tx:             p.TxRunner,
		repo:           p.Repo,
		catalog:        p.Catalog,
		ledger:         ledger,
		reservations:   NewReservationChecker(p.Catalog, ledger),
		validator:      NewValidator(p.Catalog, ledger, p.Pricing),
		projector:      projector,
		payments:       p.Payments,
		outbox:         p.Outbox,
		metrics:        p.Metrics,
		logg:           p.Logger,
		validate:       validator.New(),
		gatewayTimeout: p.GatewayTimeout,
		now:            p.Clock,
	}, nil
}

// Create validates every draft, then commits all of them in one transaction
// that re-checks stock under item row locks. Payment artifacts are requested
// after commit; a gateway failure leaves the orders in place and is reported
// alongside them.
func (s *service) Create(ctx context.Context, req CreateRequest) (*CreateResult, error) {
	if len(req.Drafts) == 0 {
		return nil, &ValidationError{Field: "data", Reason: "at least one order is required"}
	}
	priced := make([]*PricedDraft, 0, len(req.Drafts))
	for _, draft := range req.Drafts {
		p, err := s.validator.Validate(ctx, draft)
		if err != nil {
			s.recordRejection(err)
			return nil, err
		}
		priced = append(priced, p)
	}
	combined, err := combineLines(priced)
	if err != nil {
		s.recordRejection(err)
		return nil, err
	}

	var created []models.Order
	for attempt := 1; attempt <= maxRefIDAttempts; attempt++ {
		created, err = s.persist(ctx, priced, combined, req.BuyerID)
		if err == nil || !db.IsUniqueViolation(err, refIDConstraint) {
			break
		}
		s.logg.Warn(s.logg.WithField(ctx, "attempt", attempt), "orders.ref_id_collision")
	}
	if err != nil {
		s.recordRejection(err)
		if pkgerrors.As(err) != nil {
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "create orders")
	}

	for _, order := range created {
		s.metrics.IncOrdersCreated(order.PaymentMethod.String(), 1)
		logCtx := s.logg.WithFields(s.logg.WithOrderID(ctx, order.ID.String()), map[string]any{
			"ref_id":      order.RefID,
			"shop_id":     order.ShopID.String(),
			"total_price": order.TotalPrice,
		})
		s.logg.Info(logCtx, "orders.created")
	}

	result := &CreateResult{Orders: created}
	var (
		gatewayErr error
		failedIDs  []uuid.UUID
	)
	for i := range result.Orders {
		order := &result.Orders[i]
		if !order.PaymentMethod.NeedsArtifact() {
			continue
		}
		if err := s.issueArtifact(ctx, order); err != nil {
			gatewayErr = multierr.Append(gatewayErr, err)
			failedIDs = append(failedIDs, order.ID)
		}
	}
	if gatewayErr != nil {
		return result, pkgerrors.Wrap(pkgerrors.CodeGateway, gatewayErr, "payment artifact could not be created").
			WithDetails(map[string]any{"order_ids": failedIDs})
	}
	return result, nil
}

func (s *service) persist(ctx context.Context, priced []*PricedDraft, combined []PricedLine, buyerID *uuid.UUID) ([]models.Order, error) {
	var created []models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		ids := make([]uuid.UUID, 0, len(combined))
		for _, line := range combined {
			ids = append(ids, line.ItemID)
		}
		if _, err := s.catalog.WithTx(tx).LockItems(ctx, ids); err != nil {
			return err
		}
		available, err := s.ledger.WithTx(tx).AvailableMany(ctx, ids)
		if err != nil {
			return err
		}
		if err := CheckStock(combined, available); err != nil {
			return err
		}

		repo := s.repo.WithTx(tx)
		now := s.now().UTC()
		created = make([]models.Order, 0, len(priced))
		for _, p := range priced {
			order := buildOrder(p, buyerID, now)
			if err := repo.Create(ctx, &order); err != nil {
				return err
			}
			if err := s.outbox.Emit(ctx, tx, orderCreatedEvent(order, buyerActor(buyerID))); err != nil {
				return err
			}
			created = append(created, order)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// combineLines sums amounts per item across every draft of a checkout, since
// they draw on the same stock.
func combineLines(priced []*PricedDraft) ([]PricedLine, error) {
	index := map[uuid.UUID]int{}
	var out []PricedLine
	for _, p := range priced {
		for _, line := range p.Lines {
			if i, ok := index[line.ItemID]; ok {
				if out[i].Amount > MaxLineAmount-line.Amount {
					return nil, amountTooLarge()
				}
				out[i].Amount += line.Amount
				continue
			}
			index[line.ItemID] = len(out)
			out = append(out, line)
		}
	}
	return out, nil
}

func buildOrder(p *PricedDraft, buyerID *uuid.UUID, now time.Time) models.Order {
	order := models.Order{
		ID:             uuid.New(),
		BuyerID:        buyerID,
		ShopID:         p.ShopID,
		RefID:          NewRefID(),
		DeliveryType:   p.DeliveryType,
		PaymentMethod:  p.PaymentMethod,
		ShipmentStatus: enums.ShipmentNotShippedOut,
		TotalPrice:     p.TotalPrice,
		ShippingFee:    p.ShippingFee,
		ReceiverName:   strings.TrimSpace(p.ReceiverName),
		ContactEmail:   strings.TrimSpace(p.ContactEmail),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if phone := strings.TrimSpace(p.ContactPhoneNumber); phone != "" {
		order.ContactPhoneNumber = &phone
	}
	if p.DeliveryType.RequiresAddress() && p.Address != nil {
		addr := *p.Address
		order.StreetAddressLine1 = &addr.StreetAddressLine1
		order.StreetAddressLine2 = addr.StreetAddressLine2
		order.Province = &addr.Province
		order.District = &addr.District
		order.ZipCode = &addr.ZipCode
	}
	order.Items = make([]models.OrderItem, 0, len(p.Lines))
	for _, line := range p.Lines {
		order.Items = append(order.Items, models.OrderItem{
			ID:        uuid.New(),
			OrderID:   order.ID,
			ItemID:    line.ItemID,
			Amount:    line.Amount,
			UnitPrice: line.UnitPrice,
			CreatedAt: now,
		})
	}
	return order
}

func buyerActor(buyerID *uuid.UUID) *outbox.ActorRef {
	if buyerID == nil {
		return nil
	}
	id := *buyerID
	return &outbox.ActorRef{UserID: &id, Role: enums.RoleBuyer.String()}
}

func (s *service) issueArtifact(ctx context.Context, order *models.Order) error {
	adapter := s.payments.Primary()
	if adapter == nil {
		return &payments.GatewayError{Op: "create artifact", Err: errors.New("no payment provider configured")}
	}
	callCtx, cancel := context.WithTimeout(ctx, s.gatewayTimeout)
	defer cancel()

	started := time.Now()
	artifact, err := adapter.CreateArtifact(callCtx, artifactRequest(*order))
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	s.metrics.ObserveGateway(adapter.Provider().String(), outcome, time.Since(started))
	if err != nil {
		logCtx := s.logg.WithFields(s.logg.WithOrderID(ctx, order.ID.String()), map[string]any{
			"provider": adapter.Provider(),
			"ref_id":   order.RefID,
		})
		s.logg.Error(logCtx, "orders.artifact_failed", err)
		return err
	}

	if err := s.repo.SetPaymentArtifact(ctx, order.ID, artifact.Provider, artifact.URL); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodePersistence, err, "store payment artifact")
	}
	provider := artifact.Provider
	url := artifact.URL
	order.PaymentProvider = &provider
	order.PromptpayQRCodeURL = &url
	return nil
}

func artifactRequest(order models.Order) payments.ArtifactRequest {
	req := payments.ArtifactRequest{
		OrderID:      order.ID,
		RefID:        order.RefID,
		Amount:       order.TotalPrice,
		Detail:       "Order " + order.RefID,
		CustomerName: order.ReceiverName,
		Email:        order.ContactEmail,
	}
	if order.ContactPhoneNumber != nil {
		req.Phone = *order.ContactPhoneNumber
	}
	var parts []string
	for _, part := range []*string{order.StreetAddressLine1, order.StreetAddressLine2, order.District, order.Province, order.ZipCode} {
		if part != nil && strings.TrimSpace(*part) != "" {
			parts = append(parts, strings.TrimSpace(*part))
		}
	}
	req.Address = strings.Join(parts, " ")
	return req
}

func (s *service) recordRejection(err error) {
	if apiErr := pkgerrors.As(err); apiErr != nil {
		s.metrics.IncRejection(apiErr.Code().Slug())
		return
	}
	s.metrics.IncRejection("internal")
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	order, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, mapLookupError(err, "load order")
	}
	return order, nil
}

func (s *service) Render(ctx context.Context, orders []models.Order, level, descendant enums.FetchLevel) ([]any, error) {
	return s.projector.Render(ctx, orders, level, descendant)
}

func mapLookupError(err error, op string) error {
	if db.IsNotFound(err) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	if pkgerrors.As(err) != nil {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodePersistence, err, op)
}

// AttachSlip stores a buyer's transfer slip. The receipt goes out only when
// this call is what flipped the order to paid.
func (s *service) AttachSlip(ctx context.Context, id uuid.UUID, slipURL string) (*models.Order, error) {
	slipURL = strings.TrimSpace(slipURL)
	if err := s.validate.Var(slipURL, "required,url"); err != nil {
		return nil, &ValidationError{Field: "payment_slip_url", Reason: "must be a valid URL"}
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		now := s.now().UTC()
		lapsed := s.reservations.NeedsRecheck(*order, now)
		changed, err := ApplySlipPayment(order, slipURL, now)
		if err != nil {
			return err
		}
		if changed && lapsed {
			// Paying revives the reservation; its units may have been sold since.
			if err := s.reservations.Recheck(ctx, tx, id); err != nil {
				return err
			}
		}
		if changed {
			changed, err = repo.MarkSlipPaid(ctx, id, slipURL, now)
			if err != nil {
				return err
			}
		}
		if !changed {
			return repo.SetSlipURL(ctx, id, slipURL)
		}
		return s.outbox.Emit(ctx, tx, PaymentConfirmedEvent(*order, payloads.PaymentSourceSlip, now))
	})
	if err != nil {
		return nil, mapLookupError(err, "attach payment slip")
	}
	s.logg.Info(s.logg.WithOrderID(ctx, id.String()), "orders.slip_attached")
	return s.Get(ctx, id)
}

// UpdateShipment moves the order along its shipment lifecycle on behalf of staff.
func (s *service) UpdateShipment(ctx context.Context, actor Actor, id uuid.UUID, to enums.ShipmentStatus) (*models.Order, error) {
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := authorize(actor, order); err != nil {
			return err
		}
		from := order.ShipmentStatus
		now := s.now().UTC()
		changed, err := ApplyShipment(order, to, now)
		if err != nil || !changed {
			return err
		}
		ok, err := repo.UpdateShipment(ctx, id, from, to, now)
		if err != nil {
			return err
		}
		if !ok {
			current, err := repo.FindByID(ctx, id)
			if err != nil {
				return err
			}
			if current.ShipmentStatus == to {
				return nil
			}
			return &TransitionError{From: current.ShipmentStatus.String(), To: to.String(), Reason: "order changed concurrently"}
		}
		if to == enums.ShipmentCanceled {
			return s.outbox.Emit(ctx, tx, OrderCanceledEvent(*order, staffCancelReason, now, actor.ActorRef()))
		}
		return nil
	})
	if err != nil {
		return nil, mapLookupError(err, "update shipment")
	}
	s.logg.Info(s.logg.WithFields(s.logg.WithOrderID(ctx, id.String()), map[string]any{"shipment_status": to}), "orders.shipment_updated")
	return s.Get(ctx, id)
}

// Verify is the staff confirmation of a slip payment.
func (s *service) Verify(ctx context.Context, actor Actor, id uuid.UUID) (*models.Order, error) {
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := authorize(actor, order); err != nil {
			return err
		}
		changed, err := ApplyVerification(order)
		if err != nil || !changed {
			return err
		}
		_, err = repo.MarkVerified(ctx, id)
		return err
	})
	if err != nil {
		return nil, mapLookupError(err, "verify order")
	}
	return s.Get(ctx, id)
}

func authorize(actor Actor, order *models.Order) error {
	if actor == nil || !actor.CanManageShop(order.ShopID) {
		return pkgerrors.New(pkgerrors.CodeForbidden, "not allowed to manage this order")
	}
	return nil
}

// RegenerateArtifact asks the gateway for a fresh QR or charge for an unpaid
// promptpay order, e.g. after the first request failed.
func (s *service) RegenerateArtifact(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	order, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	switch {
	case !order.PaymentMethod.NeedsArtifact():
		return nil, &TransitionError{From: order.PaymentMethod.String(), To: "payment_artifact", Reason: "order is not paid through a gateway"}
	case order.IsPaid:
		return nil, &TransitionError{From: "paid", To: "payment_artifact", Reason: "order is already paid"}
	case order.ShipmentStatus == enums.ShipmentCanceled:
		return nil, &TransitionError{From: order.ShipmentStatus.String(), To: "payment_artifact", Reason: "order is canceled"}
	}
	if err := s.issueArtifact(ctx, order); err != nil {
		if pkgerrors.As(err) != nil {
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeGateway, err, "payment artifact could not be created")
	}
	return order, nil
}

// CancelLapsed cancels unpaid orders whose reservation ran out. Each order is
// its own transaction; failures are collected and the sweep continues.
func (s *service) CancelLapsed(ctx context.Context, limit int) (int, error) {
	now := s.now().UTC()
	hold := s.ledger.HoldWindow()
	lapsed, err := s.repo.ListLapsed(ctx, now, hold, limit)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "list lapsed orders")
	}

	var (
		canceled int
		errs     error
	)
	for _, order := range lapsed {
		order := order
		var changed bool
		err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			ok, err := s.repo.WithTx(tx).CancelIfLapsed(ctx, order.ID, now, hold)
			if err != nil || !ok {
				return err
			}
			changed = true
			return s.outbox.Emit(ctx, tx, OrderCanceledEvent(order, lapsedCancelReason, now, nil))
		})
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("cancel order %s: %w", order.ID, err))
			continue
		}
		if changed {
			canceled++
		}
	}
	return canceled, errs
}
