package orders

import (
	"strings"

	"github.com/google/uuid"
)

const refIDPrefix = "SK"

// NewRefID returns the external payment reference: "SK" and 18 upper-case
// alphanumerics. Gateways cap referenceNo at 20 characters.
func NewRefID() string {
	raw := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
	return refIDPrefix + raw[:18]
}
