package orders

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/skshopping/shop-backend/internal/catalog"
	"github.com/skshopping/shop-backend/internal/stock"
)

type itemResolver interface {
	ItemsWithShop(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]catalog.ItemWithShop, error)
}

// Validator checks a draft and prices it. It never writes.
type Validator struct {
	items    itemResolver
	stock    stock.Reader
	pricing  Pricing
	validate *validator.Validate
}

func NewValidator(items itemResolver, ledger stock.Reader, pricing Pricing) *Validator {
	return &Validator{
		items:    items,
		stock:    ledger,
		pricing:  pricing,
		validate: validator.New(),
	}
}

// Validate resolves the shop, checks stock, applies the contact and address
// rules and computes the total, in that order. The first failure wins.
func (v *Validator) Validate(ctx context.Context, draft Draft) (*PricedDraft, error) {
	lines, err := normalizeLines(draft.Items)
	if err != nil {
		return nil, err
	}
	if !draft.DeliveryType.IsValid() {
		return nil, &ValidationError{Field: "delivery_type", Reason: fmt.Sprintf("unsupported value %q", draft.DeliveryType)}
	}
	if !draft.PaymentMethod.IsValid() {
		return nil, &ValidationError{Field: "payment_method", Reason: fmt.Sprintf("unsupported value %q", draft.PaymentMethod)}
	}

	ids := make([]uuid.UUID, 0, len(lines))
	for _, line := range lines {
		ids = append(ids, line.ItemID)
	}
	items, err := v.items.ItemsWithShop(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("resolve items: %w", err)
	}
	shopID, err := singleShop(ids, items)
	if err != nil {
		return nil, err
	}

	available, err := v.stock.AvailableMany(ctx, ids)
	if err != nil {
		return nil, err
	}
	if err := CheckStock(lines, available); err != nil {
		return nil, err
	}

	if err := v.checkContact(draft); err != nil {
		return nil, err
	}
	if err := checkAddress(draft); err != nil {
		return nil, err
	}

	for i := range lines {
		lines[i].UnitPrice = UnitPrice(items[lines[i].ItemID].Item)
	}
	_, fee, total, err := v.pricing.Total(lines, draft.DeliveryType)
	if err != nil {
		return nil, err
	}

	return &PricedDraft{
		Draft:       draft,
		ShopID:      shopID,
		Lines:       lines,
		ShippingFee: fee,
		TotalPrice:  total,
	}, nil
}

// MaxLineAmount caps the units of one item in an order, and in a whole checkout.
const MaxLineAmount int64 = 1_000_000

func amountTooLarge() *ValidationError {
	return &ValidationError{Field: "amount", Reason: fmt.Sprintf("must not exceed %d", MaxLineAmount)}
}

// normalizeLines rejects empty carts and merges repeated item ids.
func normalizeLines(items []DraftItem) ([]PricedLine, error) {
	if len(items) == 0 {
		return nil, &ValidationError{Field: "items", Reason: "at least one item is required"}
	}
	index := make(map[uuid.UUID]int, len(items))
	lines := make([]PricedLine, 0, len(items))
	for _, item := range items {
		if item.ItemID == uuid.Nil {
			return nil, &ValidationError{Field: "items", Reason: "item_id is required"}
		}
		if item.Amount <= 0 {
			return nil, &ValidationError{Field: "amount", Reason: "must be greater than zero"}
		}
		if item.Amount > MaxLineAmount {
			return nil, amountTooLarge()
		}
		if i, ok := index[item.ItemID]; ok {
			if lines[i].Amount > MaxLineAmount-item.Amount {
				return nil, amountTooLarge()
			}
			lines[i].Amount += item.Amount
			continue
		}
		index[item.ItemID] = len(lines)
		lines = append(lines, PricedLine{ItemID: item.ItemID, Amount: item.Amount})
	}
	return lines, nil
}

func singleShop(ids []uuid.UUID, items map[uuid.UUID]catalog.ItemWithShop) (uuid.UUID, error) {
	shops := map[uuid.UUID]struct{}{}
	for _, id := range ids {
		item, ok := items[id]
		if !ok {
			return uuid.Nil, &ValidationError{Field: "items", Reason: fmt.Sprintf("unknown item %s", id)}
		}
		shops[item.ShopID] = struct{}{}
	}
	if len(shops) != 1 {
		shopIDs := make([]uuid.UUID, 0, len(shops))
		for id := range shops {
			shopIDs = append(shopIDs, id)
		}
		sort.Slice(shopIDs, func(i, j int) bool { return shopIDs[i].String() < shopIDs[j].String() })
		return uuid.Nil, &ShopMismatchError{ShopIDs: shopIDs}
	}
	for id := range shops {
		return id, nil
	}
	return uuid.Nil, nil
}

// CheckStock compares requested amounts with availability, line by line.
func CheckStock(lines []PricedLine, available map[uuid.UUID]int64) error {
	for _, line := range lines {
		if have := available[line.ItemID]; have < line.Amount {
			return &InsufficientStockError{ItemID: line.ItemID, Available: have, Requested: line.Amount}
		}
	}
	return nil
}

func (v *Validator) checkContact(draft Draft) error {
	if strings.TrimSpace(draft.ReceiverName) == "" {
		return &ValidationError{Field: "receiver_name", Reason: "is required"}
	}
	if err := v.validate.Var(strings.TrimSpace(draft.ContactEmail), "required,email"); err != nil {
		return &ValidationError{Field: "contact_email", Reason: "must be a valid email address"}
	}
	return nil
}

func checkAddress(draft Draft) error {
	if !draft.DeliveryType.RequiresAddress() {
		return nil
	}
	addr := draft.Address
	if addr == nil {
		return &ValidationError{Field: "address", Reason: "is required for delivery"}
	}
	required := []struct {
		name  string
		value string
	}{
		{"street_address_line_1", addr.StreetAddressLine1},
		{"province", addr.Province},
		{"district", addr.District},
		{"zip_code", addr.ZipCode},
	}
	for _, field := range required {
		if strings.TrimSpace(field.value) == "" {
			return &ValidationError{Field: "address", Reason: field.name + " is required"}
		}
	}
	return nil
}
