package enums

// PaymentProvider names the external gateway that produced an artifact or webhook.
type PaymentProvider string

const (
	ProviderGBPrimePay PaymentProvider = "gbprimepay"
	ProviderOmise      PaymentProvider = "omise"
)

var validPaymentProviders = []PaymentProvider{
	ProviderGBPrimePay,
	ProviderOmise,
}

func (p PaymentProvider) String() string {
	return string(p)
}

func (p PaymentProvider) IsValid() bool {
	for _, candidate := range validPaymentProviders {
		if candidate == p {
			return true
		}
	}
	return false
}

func ParsePaymentProvider(value string) (PaymentProvider, error) {
	for _, candidate := range validPaymentProviders {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", &DecodeError{Enum: "payment provider", Value: value}
}
