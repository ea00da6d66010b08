package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/skshopping/shop-backend/internal/stock"
	"github.com/skshopping/shop-backend/pkg/db/models"
	"github.com/skshopping/shop-backend/pkg/enums"
)

// Repository persists orders. Every state-changing method is a conditional
// update and reports whether a row actually changed.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.Order) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindByRefIDForUpdate(ctx context.Context, refID string) (*models.Order, error)
	MarkGatewayPaid(ctx context.Context, id uuid.UUID, provider enums.PaymentProvider, paidAt time.Time) (bool, error)
	MarkSlipPaid(ctx context.Context, id uuid.UUID, slipURL string, paidAt time.Time) (bool, error)
	SetSlipURL(ctx context.Context, id uuid.UUID, slipURL string) error
	MarkVerified(ctx context.Context, id uuid.UUID) (bool, error)
	UpdateShipment(ctx context.Context, id uuid.UUID, from, to enums.ShipmentStatus, at time.Time) (bool, error)
	SetPaymentArtifact(ctx context.Context, id uuid.UUID, provider enums.PaymentProvider, url string) error
	ListLapsed(ctx context.Context, now time.Time, holdWindow time.Duration, limit int) ([]models.Order, error)
	CancelIfLapsed(ctx context.Context, id uuid.UUID, now time.Time, holdWindow time.Duration) (bool, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// Create inserts the order and its lines.
func (r *repository) Create(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Create(order).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC, id ASC") }).
		Where("id = ?", id).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) FindByRefIDForUpdate(ctx context.Context, refID string) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("ref_id = ?", refID).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) update(ctx context.Context, scope func(*gorm.DB) *gorm.DB, values map[string]any) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Scopes(scope).
		Updates(values)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// MarkGatewayPaid sets paid and verified unless both already hold.
func (r *repository) MarkGatewayPaid(ctx context.Context, id uuid.UUID, provider enums.PaymentProvider, paidAt time.Time) (bool, error) {
	return r.update(ctx, func(db *gorm.DB) *gorm.DB {
		return db.Where("id = ?", id).Where("(is_paid = ? OR is_verified = ?)", false, false)
	}, map[string]any{
		"is_paid":          true,
		"is_verified":      true,
		"payment_provider": provider,
		"paid_at":          gorm.Expr("COALESCE(paid_at, ?)", paidAt.UTC()),
	})
}

// MarkSlipPaid records the slip and flips is_paid, only for an unpaid, uncanceled order.
func (r *repository) MarkSlipPaid(ctx context.Context, id uuid.UUID, slipURL string, paidAt time.Time) (bool, error) {
	return r.update(ctx, func(db *gorm.DB) *gorm.DB {
		return db.Where("id = ?", id).
			Where("is_paid = ?", false).
			Where("shipment_status <> ?", enums.ShipmentCanceled)
	}, map[string]any{
		"is_paid":          true,
		"payment_slip_url": slipURL,
		"paid_at":          paidAt.UTC(),
	})
}

func (r *repository) SetSlipURL(ctx context.Context, id uuid.UUID, slipURL string) error {
	_, err := r.update(ctx, func(db *gorm.DB) *gorm.DB {
		return db.Where("id = ?", id)
	}, map[string]any{"payment_slip_url": slipURL})
	return err
}

func (r *repository) MarkVerified(ctx context.Context, id uuid.UUID) (bool, error) {
	return r.update(ctx, func(db *gorm.DB) *gorm.DB {
		return db.Where("id = ?", id).Where("is_paid = ?", true).Where("is_verified = ?", false)
	}, map[string]any{"is_verified": true})
}

// UpdateShipment moves the order only if it is still in from.
func (r *repository) UpdateShipment(ctx context.Context, id uuid.UUID, from, to enums.ShipmentStatus, at time.Time) (bool, error) {
	values := map[string]any{"shipment_status": to}
	if to == enums.ShipmentCanceled {
		values["canceled_at"] = at.UTC()
	}
	return r.update(ctx, func(db *gorm.DB) *gorm.DB {
		return db.Where("id = ?", id).Where("shipment_status = ?", from)
	}, values)
}

func (r *repository) SetPaymentArtifact(ctx context.Context, id uuid.UUID, provider enums.PaymentProvider, url string) error {
	_, err := r.update(ctx, func(db *gorm.DB) *gorm.DB {
		return db.Where("id = ?", id)
	}, map[string]any{
		"payment_provider":      provider,
		"promptpay_qr_code_url": url,
	})
	return err
}

// ListLapsed returns unpaid, unshipped orders whose reservation has expired, oldest first.
func (r *repository) ListLapsed(ctx context.Context, now time.Time, holdWindow time.Duration, limit int) ([]models.Order, error) {
	var out []models.Order
	q := r.db.WithContext(ctx).
		Scopes(stock.LapsedReservations(now, holdWindow)).
		Order("orders.created_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// CancelIfLapsed cancels the order only while it still matches the lapsed
// reservation scope, so a payment that lands first wins.
func (r *repository) CancelIfLapsed(ctx context.Context, id uuid.UUID, now time.Time, holdWindow time.Duration) (bool, error) {
	return r.update(ctx, func(db *gorm.DB) *gorm.DB {
		return db.Where("orders.id = ?", id).Scopes(stock.LapsedReservations(now, holdWindow))
	}, map[string]any{
		"shipment_status": enums.ShipmentCanceled,
		"canceled_at":     now.UTC(),
	})
}
