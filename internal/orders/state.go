package orders

import (
	"time"

	"github.com/skshopping/shop-backend/pkg/db/models"
	"github.com/skshopping/shop-backend/pkg/enums"
)

var shipmentTransitions = map[enums.ShipmentStatus][]enums.ShipmentStatus{
	enums.ShipmentNotShippedOut: {enums.ShipmentPending, enums.ShipmentCanceled},
	enums.ShipmentPending:       {enums.ShipmentDelivered, enums.ShipmentCanceled},
}

// CanTransitionShipment reports whether from -> to is a legal move. Staying put
// is always allowed.
func CanTransitionShipment(from, to enums.ShipmentStatus) bool {
	if from == to {
		return true
	}
	for _, next := range shipmentTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ApplyShipment moves the in-memory order to status. It returns false for a no-op.
func ApplyShipment(order *models.Order, to enums.ShipmentStatus, at time.Time) (bool, error) {
	if !to.IsValid() {
		return false, &ValidationError{Field: "status", Reason: "unknown shipment status"}
	}
	from := order.ShipmentStatus
	if from == to {
		return false, nil
	}
	if !CanTransitionShipment(from, to) {
		reason := "transition not allowed"
		if from.IsTerminal() {
			reason = "order is " + from.String()
		}
		return false, &TransitionError{From: from.String(), To: to.String(), Reason: reason}
	}
	order.ShipmentStatus = to
	if to == enums.ShipmentCanceled {
		canceledAt := at.UTC()
		order.CanceledAt = &canceledAt
	}
	return true, nil
}

// ApplyGatewayPayment marks a gateway-confirmed payment. The gateway already
// checked the money, so the order is verified too. Nothing ever unsets is_paid.
func ApplyGatewayPayment(order *models.Order, provider enums.PaymentProvider, at time.Time) bool {
	if order.IsPaid && order.IsVerified {
		return false
	}
	order.IsPaid = true
	order.IsVerified = true
	p := provider
	order.PaymentProvider = &p
	if order.PaidAt == nil {
		paidAt := at.UTC()
		order.PaidAt = &paidAt
	}
	return true
}

// ApplySlipPayment records a buyer-uploaded transfer slip. A staff member still
// has to verify it. The slip URL is replaced even when the order is already paid.
func ApplySlipPayment(order *models.Order, slipURL string, at time.Time) (bool, error) {
	if order.ShipmentStatus == enums.ShipmentCanceled {
		return false, &TransitionError{From: order.ShipmentStatus.String(), To: "paid", Reason: "order is canceled"}
	}
	url := slipURL
	order.PaymentSlipURL = &url
	if order.IsPaid {
		return false, nil
	}
	order.IsPaid = true
	paidAt := at.UTC()
	order.PaidAt = &paidAt
	return true, nil
}

// ApplyVerification is the staff confirmation of a paid order.
func ApplyVerification(order *models.Order) (bool, error) {
	if !order.IsPaid {
		return false, &TransitionError{From: "unpaid", To: "verified", Reason: "order has not been paid"}
	}
	if order.IsVerified {
		return false, nil
	}
	order.IsVerified = true
	return true, nil
}
