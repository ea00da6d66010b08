package orders

import (
	"github.com/google/uuid"

	"github.com/skshopping/shop-backend/pkg/enums"
)

// DraftItem is one requested line.
type DraftItem struct {
	ItemID uuid.UUID `json:"item_id" validate:"required"`
	Amount int64     `json:"amount"`
}

// Address is required for delivery orders only.
type Address struct {
	StreetAddressLine1 string  `json:"street_address_line_1"`
	StreetAddressLine2 *string `json:"street_address_line_2,omitempty"`
	Province           string  `json:"province"`
	District           string  `json:"district"`
	ZipCode            string  `json:"zip_code"`
}

// Draft is a buyer's proposed order before validation.
type Draft struct {
	Items              []DraftItem         `json:"items"`
	DeliveryType       enums.DeliveryType  `json:"delivery_type"`
	PaymentMethod      enums.PaymentMethod `json:"payment_method"`
	Address            *Address            `json:"address,omitempty"`
	ReceiverName       string              `json:"receiver_name"`
	ContactEmail       string              `json:"contact_email"`
	ContactPhoneNumber string              `json:"contact_phone_number"`
}

// PricedLine is a validated line with its unit price fixed.
type PricedLine struct {
	ItemID    uuid.UUID
	Amount    int64
	UnitPrice int64
}

// PricedDraft is a validated draft ready for persistence.
type PricedDraft struct {
	Draft
	ShopID      uuid.UUID
	Lines       []PricedLine
	ShippingFee int64
	TotalPrice  int64
}
