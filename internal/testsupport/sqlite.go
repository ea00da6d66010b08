// Package testsupport opens throwaway sqlite databases carrying the order schema.
package testsupport

import (
	"io"
	"log"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/skshopping/shop-backend/pkg/db/models"
	"github.com/skshopping/shop-backend/pkg/enums"
)

var schema = []string{
	`CREATE TABLE shops (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		contact_email TEXT,
		pickup_location TEXT,
		created_at DATETIME NOT NULL
	)`,
	`CREATE TABLE listings (
		id TEXT PRIMARY KEY,
		shop_id TEXT NOT NULL REFERENCES shops(id),
		name TEXT NOT NULL,
		created_at DATETIME NOT NULL
	)`,
	`CREATE TABLE items (
		id TEXT PRIMARY KEY,
		listing_id TEXT NOT NULL REFERENCES listings(id),
		name TEXT NOT NULL,
		price INTEGER NOT NULL CHECK (price >= 0),
		discounted_price INTEGER,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`,
	`CREATE TABLE item_stock_updates (
		id TEXT PRIMARY KEY,
		item_id TEXT NOT NULL REFERENCES items(id),
		stock_added INTEGER NOT NULL CHECK (stock_added > 0),
		created_at DATETIME NOT NULL
	)`,
	`CREATE TABLE orders (
		id TEXT PRIMARY KEY,
		buyer_id TEXT,
		shop_id TEXT NOT NULL REFERENCES shops(id),
		ref_id TEXT NOT NULL,
		delivery_type TEXT NOT NULL,
		payment_method TEXT NOT NULL,
		payment_provider TEXT,
		shipment_status TEXT NOT NULL DEFAULT 'not_shipped_out',
		is_paid BOOLEAN NOT NULL DEFAULT 0,
		is_verified BOOLEAN NOT NULL DEFAULT 0,
		total_price INTEGER NOT NULL,
		shipping_fee INTEGER NOT NULL DEFAULT 0,
		receiver_name TEXT NOT NULL,
		contact_email TEXT NOT NULL,
		contact_phone_number TEXT,
		street_address_line_1 TEXT,
		street_address_line_2 TEXT,
		province TEXT,
		district TEXT,
		zip_code TEXT,
		payment_slip_url TEXT,
		promptpay_qr_code_url TEXT,
		paid_at DATETIME,
		canceled_at DATETIME,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		CHECK (is_verified = 0 OR is_paid = 1)
	)`,
	`CREATE UNIQUE INDEX ux_orders_ref_id ON orders (ref_id)`,
	`CREATE TABLE order_items (
		id TEXT PRIMARY KEY,
		order_id TEXT NOT NULL REFERENCES orders(id),
		item_id TEXT NOT NULL REFERENCES items(id),
		amount INTEGER NOT NULL CHECK (amount > 0),
		unit_price INTEGER NOT NULL,
		created_at DATETIME NOT NULL
	)`,
	`CREATE TABLE outbox_events (
		id TEXT PRIMARY KEY,
		event_type TEXT NOT NULL,
		aggregate_type TEXT NOT NULL,
		aggregate_id TEXT NOT NULL,
		payload TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		published_at DATETIME,
		attempt_count INTEGER NOT NULL DEFAULT 0,
		last_error TEXT
	)`,
	`CREATE TABLE outbox_dlq (
		id TEXT PRIMARY KEY,
		event_id TEXT NOT NULL UNIQUE,
		event_type TEXT NOT NULL,
		aggregate_type TEXT NOT NULL,
		aggregate_id TEXT NOT NULL,
		payload_json TEXT NOT NULL,
		error_reason TEXT NOT NULL,
		error_message TEXT,
		attempt_count INTEGER NOT NULL DEFAULT 0,
		failed_at DATETIME NOT NULL,
		created_at DATETIME NOT NULL
	)`,
}

// OpenDB returns an in-memory database with the full schema. The pool is capped at
// one connection so concurrent transactions run one after another, which is how
// row locks order competing checkouts in Postgres.
func OpenDB(t testing.TB) *gorm.DB {
	t.Helper()
	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared&_foreign_keys=1"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                 gormlogger.New(log.New(io.Discard, "", 0), gormlogger.Config{LogLevel: gormlogger.Silent}),
		SkipDefaultTransaction: true,
		NowFunc:                func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	for _, stmt := range schema {
		if err := conn.Exec(stmt).Error; err != nil {
			t.Fatalf("apply schema: %v", err)
		}
	}
	return conn
}

// Fixture is a seeded shop with one listing.
type Fixture struct {
	Shop    models.Shop
	Listing models.Listing
}

// SeedShop inserts a shop and a listing under it.
func SeedShop(t testing.TB, db *gorm.DB, name string) Fixture {
	t.Helper()
	email := "owner@" + name + ".test"
	shop := models.Shop{ID: uuid.New(), Name: name, ContactEmail: &email, PickupLocation: []string{"Gate 1"}, CreatedAt: time.Now().UTC()}
	if err := db.Create(&shop).Error; err != nil {
		t.Fatalf("seed shop: %v", err)
	}
	listing := models.Listing{ID: uuid.New(), ShopID: shop.ID, Name: name + " listing", CreatedAt: time.Now().UTC()}
	if err := db.Create(&listing).Error; err != nil {
		t.Fatalf("seed listing: %v", err)
	}
	return Fixture{Shop: shop, Listing: listing}
}

// SeedItem inserts an item priced at price with stock units available.
func (f Fixture) SeedItem(t testing.TB, db *gorm.DB, name string, price int64, stock int64) models.Item {
	t.Helper()
	now := time.Now().UTC()
	item := models.Item{ID: uuid.New(), ListingID: f.Listing.ID, Name: name, Price: price, CreatedAt: now, UpdatedAt: now}
	if err := db.Create(&item).Error; err != nil {
		t.Fatalf("seed item: %v", err)
	}
	if stock > 0 {
		AddStock(t, db, item.ID, stock)
	}
	return item
}

// AddStock appends a stock update for itemID.
func AddStock(t testing.TB, db *gorm.DB, itemID uuid.UUID, units int64) {
	t.Helper()
	row := models.ItemStockUpdate{ID: uuid.New(), ItemID: itemID, StockAdded: units, CreatedAt: time.Now().UTC()}
	if err := db.Create(&row).Error; err != nil {
		t.Fatalf("seed stock: %v", err)
	}
}

// OrderSeed describes a pre-existing order for ledger and state tests.
type OrderSeed struct {
	ShopID         uuid.UUID
	ItemID         uuid.UUID
	Amount         int64
	UnitPrice      int64
	PaymentMethod  enums.PaymentMethod
	ShipmentStatus enums.ShipmentStatus
	IsPaid         bool
	CreatedAt      time.Time
}

// SeedOrder inserts a single-line order and returns it with its line loaded.
func SeedOrder(t testing.TB, db *gorm.DB, seed OrderSeed) models.Order {
	t.Helper()
	if seed.PaymentMethod == "" {
		seed.PaymentMethod = enums.PaymentMethodPromptpay
	}
	if seed.ShipmentStatus == "" {
		seed.ShipmentStatus = enums.ShipmentNotShippedOut
	}
	if seed.CreatedAt.IsZero() {
		seed.CreatedAt = time.Now().UTC()
	}
	if seed.Amount == 0 {
		seed.Amount = 1
	}
	order := models.Order{
		ID:             uuid.New(),
		ShopID:         seed.ShopID,
		RefID:          "SK" + uuid.NewString()[:18],
		DeliveryType:   enums.DeliverySchoolPickup,
		PaymentMethod:  seed.PaymentMethod,
		ShipmentStatus: seed.ShipmentStatus,
		IsPaid:         seed.IsPaid,
		TotalPrice:     seed.Amount * seed.UnitPrice,
		ReceiverName:   "Somchai",
		ContactEmail:   "buyer@example.com",
		CreatedAt:      seed.CreatedAt,
		UpdatedAt:      seed.CreatedAt,
		Items: []models.OrderItem{{
			ID:        uuid.New(),
			ItemID:    seed.ItemID,
			Amount:    seed.Amount,
			UnitPrice: seed.UnitPrice,
			CreatedAt: seed.CreatedAt,
		}},
	}
	if seed.IsPaid {
		paidAt := seed.CreatedAt
		order.PaidAt = &paidAt
	}
	if err := db.Create(&order).Error; err != nil {
		t.Fatalf("seed order: %v", err)
	}
	return order
}
