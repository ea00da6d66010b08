package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Shop owns listings; every order belongs to exactly one shop.
type Shop struct {
	ID             uuid.UUID      `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name           string         `gorm:"column:name;not null"`
	ContactEmail   *string        `gorm:"column:contact_email"`
	PickupLocation pq.StringArray `gorm:"column:pickup_location;type:text[]"`
	CreatedAt      time.Time      `gorm:"column:created_at;autoCreateTime"`
}

// Listing groups item variants under a shop.
type Listing struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ShopID    uuid.UUID `gorm:"column:shop_id;type:uuid;not null"`
	Name      string    `gorm:"column:name;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}
