package orders

import (
	"math"

	"github.com/skshopping/shop-backend/pkg/config"
	"github.com/skshopping/shop-backend/pkg/db/models"
	"github.com/skshopping/shop-backend/pkg/enums"
)

// Pricing holds the flat shipping fees per delivery type.
type Pricing struct {
	DeliveryFee     int64
	SchoolPickupFee int64
}

func NewPricing(cfg config.OrdersConfig) Pricing {
	p := Pricing{DeliveryFee: cfg.DeliveryFee, SchoolPickupFee: cfg.SchoolPickupFee}
	if p.SchoolPickupFee < 0 {
		p.SchoolPickupFee = 0
	}
	return p
}

func (p Pricing) ShippingFee(deliveryType enums.DeliveryType) int64 {
	if deliveryType == enums.DeliveryDelivery {
		return p.DeliveryFee
	}
	return p.SchoolPickupFee
}

// UnitPrice is the price charged per unit: the discounted price when it is lower.
func UnitPrice(item models.Item) int64 {
	return item.EffectivePrice()
}

// Total is sum(unit price x amount) plus the shipping fee. A total that does
// not fit in int64 is rejected rather than wrapped.
func (p Pricing) Total(lines []PricedLine, deliveryType enums.DeliveryType) (subtotal, fee, total int64, err error) {
	for _, line := range lines {
		if line.Amount <= 0 || line.UnitPrice < 0 {
			return 0, 0, 0, &ValidationError{Field: "amount", Reason: "must be greater than zero"}
		}
		if line.UnitPrice > (math.MaxInt64-subtotal)/line.Amount {
			return 0, 0, 0, &ValidationError{Field: "amount", Reason: "order total is too large"}
		}
		subtotal += line.UnitPrice * line.Amount
	}
	fee = p.ShippingFee(deliveryType)
	if fee > math.MaxInt64-subtotal {
		return 0, 0, 0, &ValidationError{Field: "amount", Reason: "order total is too large"}
	}
	return subtotal, fee, subtotal + fee, nil
}
