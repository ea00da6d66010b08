package orders

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	pkgerrors "github.com/skshopping/shop-backend/pkg/errors"
)

// ValidationError reports malformed buyer input.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) APIError() *pkgerrors.Error {
	return pkgerrors.New(pkgerrors.CodeValidation, e.Error()).
		WithDetails(map[string]string{"field": e.Field, "reason": e.Reason})
}

// ShopMismatchError means a single draft references items from several shops.
type ShopMismatchError struct {
	ShopIDs []uuid.UUID
}

func (e *ShopMismatchError) Error() string {
	ids := make([]string, 0, len(e.ShopIDs))
	for _, id := range e.ShopIDs {
		ids = append(ids, id.String())
	}
	return "order spans multiple shops: " + strings.Join(ids, ", ")
}

func (e *ShopMismatchError) APIError() *pkgerrors.Error {
	return pkgerrors.New(pkgerrors.CodeShopMismatch, "all items of an order must come from one shop").
		WithDetails(map[string]any{"shop_ids": e.ShopIDs})
}

// InsufficientStockError is a business conflict, never a lookup miss.
type InsufficientStockError struct {
	ItemID    uuid.UUID
	Available int64
	Requested int64
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for item %s: available %d, requested %d", e.ItemID, e.Available, e.Requested)
}

func (e *InsufficientStockError) APIError() *pkgerrors.Error {
	return pkgerrors.New(pkgerrors.CodeInsufficientStock, "not enough stock").
		WithDetails(map[string]any{
			"item_id":   e.ItemID,
			"available": e.Available,
			"requested": e.Requested,
		})
}

// TransitionError rejects a state change the order cannot make.
type TransitionError struct {
	From   string
	To     string
	Reason string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot move order from %s to %s: %s", e.From, e.To, e.Reason)
}

func (e *TransitionError) APIError() *pkgerrors.Error {
	return pkgerrors.New(pkgerrors.CodeStateConflict, e.Error())
}
