package orders

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/skshopping/shop-backend/internal/catalog"
	"github.com/skshopping/shop-backend/internal/stock"
	"github.com/skshopping/shop-backend/internal/testsupport"
	"github.com/skshopping/shop-backend/pkg/config"
	"github.com/skshopping/shop-backend/pkg/db/models"
	"github.com/skshopping/shop-backend/pkg/enums"
	pkgerrors "github.com/skshopping/shop-backend/pkg/errors"
)

var testPricing = Pricing{DeliveryFee: 50, SchoolPickupFee: 0}

func pickupDraft(items ...DraftItem) Draft {
	return Draft{
		Items:         items,
		DeliveryType:  enums.DeliverySchoolPickup,
		PaymentMethod: enums.PaymentMethodPromptpay,
		ReceiverName:  "Somchai",
		ContactEmail:  "somchai@example.com",
	}
}

func fullAddress() *Address {
	return &Address{StreetAddressLine1: "99 Rama IV", Province: "Bangkok", District: "Pathum Wan", ZipCode: "10330"}
}

func TestValidatorPricesPickupOrder(t *testing.T) {
	db := testsupport.OpenDB(t)
	fx := testsupport.SeedShop(t, db, "sk")
	item := fx.SeedItem(t, db, "shirt", 100, 10)
	v := NewValidator(catalog.NewRepository(db), stock.NewLedger(db, testHold), testPricing)

	priced, err := v.Validate(context.Background(), pickupDraft(DraftItem{ItemID: item.ID, Amount: 3}))
	require.NoError(t, err)
	require.Equal(t, fx.Shop.ID, priced.ShopID)
	require.EqualValues(t, 0, priced.ShippingFee)
	require.EqualValues(t, 300, priced.TotalPrice)
	require.Len(t, priced.Lines, 1)
	require.EqualValues(t, 100, priced.Lines[0].UnitPrice)
}

func TestValidatorUsesDiscountAndDeliveryFee(t *testing.T) {
	db := testsupport.OpenDB(t)
	fx := testsupport.SeedShop(t, db, "sk")
	item := fx.SeedItem(t, db, "shirt", 100, 10)
	discounted := int64(80)
	require.NoError(t, db.Model(&models.Item{}).Where("id = ?", item.ID).Update("discounted_price", discounted).Error)
	v := NewValidator(catalog.NewRepository(db), stock.NewLedger(db, testHold), testPricing)

	draft := pickupDraft(DraftItem{ItemID: item.ID, Amount: 2})
	draft.DeliveryType = enums.DeliveryDelivery
	draft.Address = fullAddress()

	priced, err := v.Validate(context.Background(), draft)
	require.NoError(t, err)
	require.EqualValues(t, 80, priced.Lines[0].UnitPrice)
	require.EqualValues(t, 50, priced.ShippingFee)
	require.EqualValues(t, 2*80+50, priced.TotalPrice)
}

func TestValidatorMergesRepeatedItems(t *testing.T) {
	db := testsupport.OpenDB(t)
	fx := testsupport.SeedShop(t, db, "sk")
	item := fx.SeedItem(t, db, "shirt", 100, 5)
	v := NewValidator(catalog.NewRepository(db), stock.NewLedger(db, testHold), testPricing)

	_, err := v.Validate(context.Background(), pickupDraft(
		DraftItem{ItemID: item.ID, Amount: 3},
		DraftItem{ItemID: item.ID, Amount: 3},
	))
	var stockErr *InsufficientStockError
	require.True(t, errors.As(err, &stockErr))
	require.EqualValues(t, 5, stockErr.Available)
	require.EqualValues(t, 6, stockErr.Requested)
}

func TestValidatorRejections(t *testing.T) {
	db := testsupport.OpenDB(t)
	fx := testsupport.SeedShop(t, db, "sk")
	other := testsupport.SeedShop(t, db, "other")
	item := fx.SeedItem(t, db, "shirt", 100, 10)
	foreign := other.SeedItem(t, db, "mug", 60, 10)
	v := NewValidator(catalog.NewRepository(db), stock.NewLedger(db, testHold), testPricing)

	cases := []struct {
		name  string
		draft func() Draft
		code  pkgerrors.Code
		field string
	}{
		{
			name:  "empty cart",
			draft: func() Draft { return pickupDraft() },
			code:  pkgerrors.CodeValidation,
			field: "items",
		},
		{
			name:  "non positive amount",
			draft: func() Draft { return pickupDraft(DraftItem{ItemID: item.ID, Amount: 0}) },
			code:  pkgerrors.CodeValidation,
			field: "amount",
		},
		{
			name:  "unknown item",
			draft: func() Draft { return pickupDraft(DraftItem{ItemID: uuid.New(), Amount: 1}) },
			code:  pkgerrors.CodeValidation,
			field: "items",
		},
		{
			name: "two shops",
			draft: func() Draft {
				return pickupDraft(DraftItem{ItemID: item.ID, Amount: 1}, DraftItem{ItemID: foreign.ID, Amount: 1})
			},
			code: pkgerrors.CodeShopMismatch,
		},
		{
			name: "shop mismatch is reported before stock",
			draft: func() Draft {
				return pickupDraft(DraftItem{ItemID: item.ID, Amount: 99}, DraftItem{ItemID: foreign.ID, Amount: 1})
			},
			code: pkgerrors.CodeShopMismatch,
		},
		{
			name:  "not enough stock",
			draft: func() Draft { return pickupDraft(DraftItem{ItemID: item.ID, Amount: 11}) },
			code:  pkgerrors.CodeInsufficientStock,
		},
		{
			name: "missing receiver",
			draft: func() Draft {
				d := pickupDraft(DraftItem{ItemID: item.ID, Amount: 1})
				d.ReceiverName = "  "
				return d
			},
			code:  pkgerrors.CodeValidation,
			field: "receiver_name",
		},
		{
			name: "bad email",
			draft: func() Draft {
				d := pickupDraft(DraftItem{ItemID: item.ID, Amount: 1})
				d.ContactEmail = "not-an-email"
				return d
			},
			code:  pkgerrors.CodeValidation,
			field: "contact_email",
		},
		{
			name: "delivery without address",
			draft: func() Draft {
				d := pickupDraft(DraftItem{ItemID: item.ID, Amount: 1})
				d.DeliveryType = enums.DeliveryDelivery
				return d
			},
			code:  pkgerrors.CodeValidation,
			field: "address",
		},
		{
			name: "delivery with partial address",
			draft: func() Draft {
				d := pickupDraft(DraftItem{ItemID: item.ID, Amount: 1})
				d.DeliveryType = enums.DeliveryDelivery
				d.Address = fullAddress()
				d.Address.ZipCode = ""
				return d
			},
			code:  pkgerrors.CodeValidation,
			field: "address",
		},
		{
			name: "unknown payment method",
			draft: func() Draft {
				d := pickupDraft(DraftItem{ItemID: item.ID, Amount: 1})
				d.PaymentMethod = "card"
				return d
			},
			code:  pkgerrors.CodeValidation,
			field: "payment_method",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := v.Validate(context.Background(), tc.draft())
			require.Error(t, err)
			require.True(t, pkgerrors.Is(err, tc.code), "got %v", err)
			if tc.field != "" {
				var vErr *ValidationError
				require.True(t, errors.As(err, &vErr))
				require.Equal(t, tc.field, vErr.Field)
			}
		})
	}
}

func TestPickupFeeNeverNegative(t *testing.T) {
	p := NewPricing(config.OrdersConfig{DeliveryFee: 50, SchoolPickupFee: -10})
	require.EqualValues(t, 0, p.ShippingFee(enums.DeliverySchoolPickup))
	require.EqualValues(t, 50, p.ShippingFee(enums.DeliveryDelivery))
}

func TestRefIDFormat(t *testing.T) {
	seen := map[string]struct{}{}
	for i := 0; i < 100; i++ {
		ref := NewRefID()
		require.Len(t, ref, 20)
		require.Regexp(t, `^SK[0-9A-F]{18}$`, ref)
		seen[ref] = struct{}{}
	}
	require.Len(t, seen, 100)
}
