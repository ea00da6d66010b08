// Package stock derives item availability from the append-only stock ledger.
package stock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/skshopping/shop-backend/pkg/db/models"
	pkgerrors "github.com/skshopping/shop-backend/pkg/errors"
)

// NegativeStockError means live orders consume more than was ever added. It is
// never clamped: the ledger is corrupt and a human has to look.
type NegativeStockError struct {
	ItemID   uuid.UUID
	Added    int64
	Consumed int64
}

func (e *NegativeStockError) Error() string {
	return fmt.Sprintf("negative stock for item %s: added %d, consumed %d", e.ItemID, e.Added, e.Consumed)
}

func (e *NegativeStockError) APIError() *pkgerrors.Error {
	return pkgerrors.New(pkgerrors.CodeIntegrity, "stock ledger is inconsistent")
}

// Reader is the availability surface consumed by the order validator.
type Reader interface {
	AvailableMany(ctx context.Context, itemIDs []uuid.UUID) (map[uuid.UUID]int64, error)
}

type Ledger struct {
	db         *gorm.DB
	holdWindow time.Duration
	now        func() time.Time
}

func NewLedger(db *gorm.DB, holdWindow time.Duration) *Ledger {
	return &Ledger{db: db, holdWindow: holdWindow, now: time.Now}
}

// WithTx binds the ledger to tx so reads observe the caller's locks and writes.
func (l *Ledger) WithTx(tx *gorm.DB) *Ledger {
	if tx == nil {
		return l
	}
	return &Ledger{db: tx, holdWindow: l.holdWindow, now: l.now}
}

// WithClock swaps the clock used to evaluate the hold window.
func (l *Ledger) WithClock(now func() time.Time) *Ledger {
	return &Ledger{db: l.db, holdWindow: l.holdWindow, now: now}
}

func (l *Ledger) HoldWindow() time.Duration {
	return l.holdWindow
}

func (l *Ledger) Available(ctx context.Context, itemID uuid.UUID) (int64, error) {
	res, err := l.AvailableMany(ctx, []uuid.UUID{itemID})
	if err != nil {
		return 0, err
	}
	return res[itemID], nil
}

type itemTotal struct {
	ItemID uuid.UUID
	Total  int64
}

// AvailableMany computes availability for every id in one pass. Items without
// stock updates report zero.
func (l *Ledger) AvailableMany(ctx context.Context, itemIDs []uuid.UUID) (map[uuid.UUID]int64, error) {
	out := make(map[uuid.UUID]int64, len(itemIDs))
	if len(itemIDs) == 0 {
		return out, nil
	}
	ids := dedupe(itemIDs)

	var added []itemTotal
	err := l.db.WithContext(ctx).
		Model(&models.ItemStockUpdate{}).
		Select("item_id, COALESCE(SUM(stock_added), 0) AS total").
		Where("item_id IN ?", ids).
		Group("item_id").
		Scan(&added).Error
	if err != nil {
		return nil, fmt.Errorf("sum stock added: %w", err)
	}

	var consumed []itemTotal
	err = l.db.WithContext(ctx).
		Table("order_items").
		Select("order_items.item_id AS item_id, COALESCE(SUM(order_items.amount), 0) AS total").
		Joins("JOIN orders ON orders.id = order_items.order_id").
		Where("order_items.item_id IN ?", ids).
		Scopes(LiveOrders(l.now().UTC(), l.holdWindow)).
		Group("order_items.item_id").
		Scan(&consumed).Error
	if err != nil {
		return nil, fmt.Errorf("sum live consumption: %w", err)
	}

	addedByItem := make(map[uuid.UUID]int64, len(added))
	for _, row := range added {
		addedByItem[row.ItemID] = row.Total
	}
	for _, id := range ids {
		out[id] = addedByItem[id]
	}
	for _, row := range consumed {
		available := addedByItem[row.ItemID] - row.Total
		if available < 0 {
			return nil, &NegativeStockError{ItemID: row.ItemID, Added: addedByItem[row.ItemID], Consumed: row.Total}
		}
		out[row.ItemID] = available
	}
	return out, nil
}

func dedupe(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
