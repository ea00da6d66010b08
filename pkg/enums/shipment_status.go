package enums

import "database/sql/driver"

// ShipmentStatus tracks the physical fulfilment of an order.
type ShipmentStatus string

const (
	ShipmentNotShippedOut ShipmentStatus = "not_shipped_out"
	ShipmentPending       ShipmentStatus = "pending"
	ShipmentCanceled      ShipmentStatus = "canceled"
	ShipmentDelivered     ShipmentStatus = "delivered"
)

var validShipmentStatuses = []ShipmentStatus{
	ShipmentNotShippedOut,
	ShipmentPending,
	ShipmentCanceled,
	ShipmentDelivered,
}

func (s ShipmentStatus) String() string {
	return string(s)
}

func (s ShipmentStatus) IsValid() bool {
	for _, candidate := range validShipmentStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further shipment transition is possible.
func (s ShipmentStatus) IsTerminal() bool {
	return s == ShipmentCanceled || s == ShipmentDelivered
}

func ParseShipmentStatus(value string) (ShipmentStatus, error) {
	for _, candidate := range validShipmentStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", &DecodeError{Enum: "shipment status", Value: value}
}

// Scan implements sql.Scanner.
func (s *ShipmentStatus) Scan(src any) error {
	raw, err := scanText("shipment status", src)
	if err != nil {
		return err
	}
	parsed, err := ParseShipmentStatus(raw)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Value implements driver.Valuer.
func (s ShipmentStatus) Value() (driver.Value, error) {
	return textValue("shipment status", string(s), s.IsValid())
}
