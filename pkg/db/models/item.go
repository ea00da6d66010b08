package models

import (
	"time"

	"github.com/google/uuid"
)

// Item is a purchasable variant. Prices are whole baht.
type Item struct {
	ID              uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ListingID       uuid.UUID `gorm:"column:listing_id;type:uuid;not null"`
	Name            string    `gorm:"column:name;not null"`
	Price           int64     `gorm:"column:price;not null"`
	DiscountedPrice *int64    `gorm:"column:discounted_price"`
	CreatedAt       time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// EffectivePrice is the lower of price and discounted price.
func (i Item) EffectivePrice() int64 {
	if i.DiscountedPrice != nil && *i.DiscountedPrice < i.Price {
		return *i.DiscountedPrice
	}
	return i.Price
}

// ItemStockUpdate is an append-only stock addition.
type ItemStockUpdate struct {
	ID         uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ItemID     uuid.UUID `gorm:"column:item_id;type:uuid;not null"`
	StockAdded int64     `gorm:"column:stock_added;not null"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
}
