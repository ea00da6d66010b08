package webhooks

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	pkgerrors "github.com/skshopping/shop-backend/pkg/errors"
)

type IntegrityKind string

const (
	KindUnknownRefID   IntegrityKind = "unknown_ref_id"
	KindAmountMismatch IntegrityKind = "amount_mismatch"

	// KindOversoldAfterLapse is a payment for an order whose lapsed units were
	// sold to another buyer before the money arrived.
	KindOversoldAfterLapse IntegrityKind = "oversold_after_lapse"
)

// IntegrityError is a confirmed payment we cannot match to an order. It is
// never retried into a state change; someone has to look at it.
type IntegrityError struct {
	Kind     IntegrityKind
	RefID    string
	Expected decimal.Decimal
	Received decimal.Decimal
	ItemID   uuid.UUID
}

func (e *IntegrityError) Error() string {
	switch e.Kind {
	case KindAmountMismatch:
		return fmt.Sprintf("payment for %s: expected %s, received %s", e.RefID, e.Expected.StringFixed(2), e.Received.StringFixed(2))
	case KindOversoldAfterLapse:
		return fmt.Sprintf("payment for %s arrived after item %s was sold out", e.RefID, e.ItemID)
	}
	return fmt.Sprintf("payment for unknown ref_id %q", e.RefID)
}

func (e *IntegrityError) APIError() *pkgerrors.Error {
	return pkgerrors.New(pkgerrors.CodeIntegrity, string(e.Kind))
}
