package payloads

import (
	"time"

	"github.com/google/uuid"

	"github.com/skshopping/shop-backend/pkg/enums"
)

// OrderCreatedEvent is queued for every order committed by a checkout.
type OrderCreatedEvent struct {
	OrderID       uuid.UUID           `json:"order_id"`
	ShopID        uuid.UUID           `json:"shop_id"`
	RefID         string              `json:"ref_id"`
	TotalPrice    int64               `json:"total_price"`
	ShippingFee   int64               `json:"shipping_fee"`
	PaymentMethod enums.PaymentMethod `json:"payment_method"`
	DeliveryType  enums.DeliveryType  `json:"delivery_type"`
	ContactEmail  string              `json:"contact_email"`
}

// PaymentConfirmedEvent is queued when a webhook or an uploaded slip flips an order to paid.
type PaymentConfirmedEvent struct {
	OrderID  uuid.UUID             `json:"order_id"`
	ShopID   uuid.UUID             `json:"shop_id"`
	RefID    string                `json:"ref_id"`
	Source   PaymentSource         `json:"source"`
	Provider enums.PaymentProvider `json:"provider,omitempty"`
	Amount   int64                 `json:"amount"`
	PaidAt   time.Time             `json:"paid_at"`
}

type PaymentSource string

const (
	PaymentSourceGateway PaymentSource = "gateway"
	PaymentSourceSlip    PaymentSource = "slip"
)

// OrderCanceledEvent is queued for staff cancellations and lapsed-reservation sweeps.
type OrderCanceledEvent struct {
	OrderID    uuid.UUID `json:"order_id"`
	ShopID     uuid.UUID `json:"shop_id"`
	RefID      string    `json:"ref_id"`
	CanceledAt time.Time `json:"canceled_at"`
	Reason     string    `json:"reason,omitempty"`
}
