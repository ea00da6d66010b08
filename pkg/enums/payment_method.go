package enums

import "database/sql/driver"

// PaymentMethod describes how a buyer intends to settle an order.
type PaymentMethod string

const (
	PaymentMethodCOD       PaymentMethod = "cod"
	PaymentMethodPromptpay PaymentMethod = "promptpay"
)

var validPaymentMethods = []PaymentMethod{
	PaymentMethodCOD,
	PaymentMethodPromptpay,
}

// String implements fmt.Stringer.
func (p PaymentMethod) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PaymentMethod.
func (p PaymentMethod) IsValid() bool {
	for _, candidate := range validPaymentMethods {
		if candidate == p {
			return true
		}
	}
	return false
}

// NeedsArtifact reports whether a gateway QR/charge is produced for the order.
func (p PaymentMethod) NeedsArtifact() bool {
	return p == PaymentMethodPromptpay
}

// ParsePaymentMethod converts raw input into a PaymentMethod.
func ParsePaymentMethod(value string) (PaymentMethod, error) {
	for _, candidate := range validPaymentMethods {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", &DecodeError{Enum: "payment method", Value: value}
}

func (p *PaymentMethod) Scan(src any) error {
	raw, err := scanText("payment method", src)
	if err != nil {
		return err
	}
	parsed, err := ParsePaymentMethod(raw)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

func (p PaymentMethod) Value() (driver.Value, error) {
	return textValue("payment method", string(p), p.IsValid())
}
