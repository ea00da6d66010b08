package stock

import (
	"time"

	"gorm.io/gorm"

	"github.com/skshopping/shop-backend/pkg/db/models"
	"github.com/skshopping/shop-backend/pkg/enums"
)

// An order holds stock unless it was canceled or it is an unpaid order whose
// reservation outlived the hold window. LiveOrders and IsLive must agree.

// LiveOrders scopes a query joined on orders to the rows that still hold stock.
func LiveOrders(now time.Time, holdWindow time.Duration) func(*gorm.DB) *gorm.DB {
	cutoff := now.Add(-holdWindow)
	return func(db *gorm.DB) *gorm.DB {
		return db.
			Where("orders.shipment_status <> ?", enums.ShipmentCanceled).
			Where("(orders.is_paid = ? OR orders.created_at >= ?)", true, cutoff)
	}
}

// LapsedReservations scopes orders to unpaid, uncanceled rows past the hold window.
func LapsedReservations(now time.Time, holdWindow time.Duration) func(*gorm.DB) *gorm.DB {
	cutoff := now.Add(-holdWindow)
	return func(db *gorm.DB) *gorm.DB {
		return db.
			Where("orders.shipment_status = ?", enums.ShipmentNotShippedOut).
			Where("orders.is_paid = ?", false).
			Where("orders.created_at < ?", cutoff)
	}
}

// IsLive mirrors LiveOrders for an order already in memory.
func IsLive(order models.Order, now time.Time, holdWindow time.Duration) bool {
	if order.ShipmentStatus == enums.ShipmentCanceled {
		return false
	}
	if order.IsPaid {
		return true
	}
	return !order.CreatedAt.Before(now.Add(-holdWindow))
}
