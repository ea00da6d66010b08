package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/skshopping/shop-backend/pkg/enums"
)

// Order is a single-shop purchase. Rows are never deleted.
type Order struct {
	ID                 uuid.UUID              `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	BuyerID            *uuid.UUID             `gorm:"column:buyer_id;type:uuid"`
	ShopID             uuid.UUID              `gorm:"column:shop_id;type:uuid;not null"`
	RefID              string                 `gorm:"column:ref_id;not null;uniqueIndex:ux_orders_ref_id"`
	DeliveryType       enums.DeliveryType     `gorm:"column:delivery_type;type:text;not null"`
	PaymentMethod      enums.PaymentMethod    `gorm:"column:payment_method;type:text;not null"`
	PaymentProvider    *enums.PaymentProvider `gorm:"column:payment_provider;type:text"`
	ShipmentStatus     enums.ShipmentStatus   `gorm:"column:shipment_status;type:text;not null"`
	IsPaid             bool                   `gorm:"column:is_paid;not null"`
	IsVerified         bool                   `gorm:"column:is_verified;not null"`
	TotalPrice         int64                  `gorm:"column:total_price;not null"`
	ShippingFee        int64                  `gorm:"column:shipping_fee;not null"`
	ReceiverName       string                 `gorm:"column:receiver_name;not null"`
	ContactEmail       string                 `gorm:"column:contact_email;not null"`
	ContactPhoneNumber *string                `gorm:"column:contact_phone_number"`
	StreetAddressLine1 *string                `gorm:"column:street_address_line_1"`
	StreetAddressLine2 *string                `gorm:"column:street_address_line_2"`
	Province           *string                `gorm:"column:province"`
	District           *string                `gorm:"column:district"`
	ZipCode            *string                `gorm:"column:zip_code"`
	PaymentSlipURL     *string                `gorm:"column:payment_slip_url"`
	PromptpayQRCodeURL *string                `gorm:"column:promptpay_qr_code_url"`
	PaidAt             *time.Time             `gorm:"column:paid_at"`
	CanceledAt         *time.Time             `gorm:"column:canceled_at"`
	Items              []OrderItem            `gorm:"foreignKey:OrderID"`
	CreatedAt          time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time              `gorm:"column:updated_at;autoUpdateTime"`
}

// OrderItem is one line of an order. UnitPrice snapshots the effective price at creation.
type OrderItem struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID   uuid.UUID `gorm:"column:order_id;type:uuid;not null"`
	ItemID    uuid.UUID `gorm:"column:item_id;type:uuid;not null"`
	Amount    int64     `gorm:"column:amount;not null"`
	UnitPrice int64     `gorm:"column:unit_price;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}
