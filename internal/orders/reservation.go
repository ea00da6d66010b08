package orders

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/skshopping/shop-backend/internal/catalog"
	"github.com/skshopping/shop-backend/internal/stock"
	"github.com/skshopping/shop-backend/pkg/db/models"
	"github.com/skshopping/shop-backend/pkg/enums"
)

// ReservationChecker decides whether an order whose hold lapsed can take its
// stock back when payment finally arrives. The lapsed order stops counting
// against availability, so its units may have been sold to someone else.
type ReservationChecker struct {
	catalog *catalog.Repository
	ledger  *stock.Ledger
}

func NewReservationChecker(catalog *catalog.Repository, ledger *stock.Ledger) *ReservationChecker {
	return &ReservationChecker{catalog: catalog, ledger: ledger}
}

func (c *ReservationChecker) HoldWindow() time.Duration {
	return c.ledger.HoldWindow()
}

// NeedsRecheck reports whether paying order would make it hold stock again.
// Paid and canceled orders never change liveness on payment.
func (c *ReservationChecker) NeedsRecheck(order models.Order, now time.Time) bool {
	if order.IsPaid || order.ShipmentStatus == enums.ShipmentCanceled {
		return false
	}
	return !stock.IsLive(order, now, c.ledger.HoldWindow())
}

// Recheck locks the order's items inside tx and confirms the remaining stock
// still covers every line. It returns *InsufficientStockError on a shortfall.
func (c *ReservationChecker) Recheck(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) error {
	var items []models.OrderItem
	if err := tx.WithContext(ctx).Where("order_id = ?", orderID).Find(&items).Error; err != nil {
		return fmt.Errorf("load order items: %w", err)
	}
	lines := make([]PricedLine, 0, len(items))
	index := make(map[uuid.UUID]int, len(items))
	ids := make([]uuid.UUID, 0, len(items))
	for _, item := range items {
		if i, ok := index[item.ItemID]; ok {
			lines[i].Amount += item.Amount
			continue
		}
		index[item.ItemID] = len(lines)
		lines = append(lines, PricedLine{ItemID: item.ItemID, Amount: item.Amount, UnitPrice: item.UnitPrice})
		ids = append(ids, item.ItemID)
	}
	if len(ids) == 0 {
		return nil
	}
	if _, err := c.catalog.WithTx(tx).LockItems(ctx, ids); err != nil {
		return err
	}
	available, err := c.ledger.WithTx(tx).AvailableMany(ctx, ids)
	if err != nil {
		return err
	}
	return CheckStock(lines, available)
}
