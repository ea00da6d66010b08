package enums

import "database/sql/driver"

// DeliveryType describes how the buyer receives the order.
type DeliveryType string

const (
	DeliverySchoolPickup DeliveryType = "school_pickup"
	DeliveryDelivery     DeliveryType = "delivery"
)

// legacy clients send pick_up for school pickup
const legacyPickUp = "pick_up"

var validDeliveryTypes = []DeliveryType{
	DeliverySchoolPickup,
	DeliveryDelivery,
}

func (d DeliveryType) String() string {
	return string(d)
}

func (d DeliveryType) IsValid() bool {
	for _, candidate := range validDeliveryTypes {
		if candidate == d {
			return true
		}
	}
	return false
}

// RequiresAddress reports whether a shipping address must accompany the order.
func (d DeliveryType) RequiresAddress() bool {
	return d == DeliveryDelivery
}

func ParseDeliveryType(value string) (DeliveryType, error) {
	if value == legacyPickUp {
		return DeliverySchoolPickup, nil
	}
	for _, candidate := range validDeliveryTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", &DecodeError{Enum: "delivery type", Value: value}
}

func (d *DeliveryType) Scan(src any) error {
	raw, err := scanText("delivery type", src)
	if err != nil {
		return err
	}
	parsed, err := ParseDeliveryType(raw)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (d DeliveryType) Value() (driver.Value, error) {
	return textValue("delivery type", string(d), d.IsValid())
}
