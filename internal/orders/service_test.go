package orders

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/skshopping/shop-backend/internal/catalog"
	"github.com/skshopping/shop-backend/internal/payments"
	"github.com/skshopping/shop-backend/internal/stock"
	"github.com/skshopping/shop-backend/internal/testsupport"
	"github.com/skshopping/shop-backend/pkg/auth"
	"github.com/skshopping/shop-backend/pkg/db"
	"github.com/skshopping/shop-backend/pkg/db/models"
	"github.com/skshopping/shop-backend/pkg/enums"
	pkgerrors "github.com/skshopping/shop-backend/pkg/errors"
	"github.com/skshopping/shop-backend/pkg/outbox"
)

const testHold = 30 * time.Minute

type fakeAdapter struct {
	mu    sync.Mutex
	err   error
	calls []payments.ArtifactRequest
}

func (f *fakeAdapter) Provider() enums.PaymentProvider { return enums.ProviderGBPrimePay }

func (f *fakeAdapter) CreateArtifact(_ context.Context, req payments.ArtifactRequest) (*payments.Artifact, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, req)
	if f.err != nil {
		return nil, f.err
	}
	return &payments.Artifact{Provider: enums.ProviderGBPrimePay, URL: "data:image/png;base64,AAAA"}, nil
}

func (f *fakeAdapter) ParseWebhook([]byte) (*payments.WebhookEvent, error) { return nil, nil }

func (f *fakeAdapter) VerifySignature([]byte, string) error { return nil }

func newTestService(t *testing.T, conn *gorm.DB, adapter payments.Adapter) Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		TxRunner: db.Wrap(conn),
		Repo:     NewRepository(conn),
		Catalog:  catalog.NewRepository(conn),
		Ledger:   stock.NewLedger(conn, testHold),
		Pricing:  testPricing,
		Payments: payments.NewStaticRegistry(enums.ProviderGBPrimePay, adapter),
		Outbox:   outbox.NewService(outbox.NewRepository(conn), nil),
	})
	require.NoError(t, err)
	return svc
}

func countEvents(t *testing.T, conn *gorm.DB, eventType enums.OutboxEventType) int64 {
	t.Helper()
	var n int64
	require.NoError(t, conn.Model(&models.OutboxEvent{}).Where("event_type = ?", eventType).Count(&n).Error)
	return n
}

func managerOf(shopID uuid.UUID) *auth.AccessTokenClaims {
	id := shopID
	return &auth.AccessTokenClaims{UserID: uuid.New(), Role: enums.RoleShopManager, ShopID: &id}
}

func TestCreatePersistsOrderEventAndArtifact(t *testing.T) {
	conn := testsupport.OpenDB(t)
	fx := testsupport.SeedShop(t, conn, "sk")
	item := fx.SeedItem(t, conn, "shirt", 100, 10)
	adapter := &fakeAdapter{}
	svc := newTestService(t, conn, adapter)
	ctx := context.Background()
	buyer := uuid.New()

	res, err := svc.Create(ctx, CreateRequest{
		Drafts:  []Draft{pickupDraft(DraftItem{ItemID: item.ID, Amount: 3})},
		BuyerID: &buyer,
	})
	require.NoError(t, err)
	require.Len(t, res.Orders, 1)

	created := res.Orders[0]
	require.Regexp(t, `^SK[0-9A-F]{18}$`, created.RefID)
	require.NotNil(t, created.PromptpayQRCodeURL)
	require.Len(t, adapter.calls, 1)
	require.EqualValues(t, 300, adapter.calls[0].Amount)
	require.Equal(t, created.RefID, adapter.calls[0].RefID)

	stored, err := svc.Get(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, enums.ShipmentNotShippedOut, stored.ShipmentStatus)
	require.False(t, stored.IsPaid)
	require.False(t, stored.IsVerified)
	require.EqualValues(t, 300, stored.TotalPrice)
	require.Equal(t, &buyer, stored.BuyerID)
	require.NotNil(t, stored.PaymentProvider)
	require.Equal(t, enums.ProviderGBPrimePay, *stored.PaymentProvider)
	require.Len(t, stored.Items, 1)
	require.EqualValues(t, 100, stored.Items[0].UnitPrice)
	require.EqualValues(t, 1, countEvents(t, conn, enums.EventOrderCreated))

	available, err := stock.NewLedger(conn, testHold).Available(ctx, item.ID)
	require.NoError(t, err)
	require.EqualValues(t, 7, available)
}

func TestCreateCODSkipsGateway(t *testing.T) {
	conn := testsupport.OpenDB(t)
	fx := testsupport.SeedShop(t, conn, "sk")
	item := fx.SeedItem(t, conn, "shirt", 100, 10)
	adapter := &fakeAdapter{}
	svc := newTestService(t, conn, adapter)

	draft := pickupDraft(DraftItem{ItemID: item.ID, Amount: 1})
	draft.PaymentMethod = enums.PaymentMethodCOD
	res, err := svc.Create(context.Background(), CreateRequest{Drafts: []Draft{draft}})
	require.NoError(t, err)
	require.Len(t, res.Orders, 1)
	require.Nil(t, res.Orders[0].PromptpayQRCodeURL)
	require.Empty(t, adapter.calls)
}

func TestCreateLastUnitSellsOnce(t *testing.T) {
	conn := testsupport.OpenDB(t)
	fx := testsupport.SeedShop(t, conn, "sk")
	item := fx.SeedItem(t, conn, "last one", 100, 1)
	svc := newTestService(t, conn, &fakeAdapter{})

	draft := pickupDraft(DraftItem{ItemID: item.ID, Amount: 1})
	draft.PaymentMethod = enums.PaymentMethodCOD

	var (
		wg   sync.WaitGroup
		errs = make([]error, 2)
	)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Create(context.Background(), CreateRequest{Drafts: []Draft{draft}})
		}(i)
	}
	wg.Wait()

	var succeeded, rejected int
	for _, err := range errs {
		var stockErr *InsufficientStockError
		switch {
		case err == nil:
			succeeded++
		case errors.As(err, &stockErr):
			rejected++
			require.EqualValues(t, 0, stockErr.Available)
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	require.Equal(t, 1, succeeded)
	require.Equal(t, 1, rejected)

	var orders int64
	require.NoError(t, conn.Model(&models.Order{}).Count(&orders).Error)
	require.EqualValues(t, 1, orders)
}

func TestCreateRollsBackEveryDraft(t *testing.T) {
	conn := testsupport.OpenDB(t)
	fx := testsupport.SeedShop(t, conn, "sk")
	item := fx.SeedItem(t, conn, "shirt", 100, 5)
	svc := newTestService(t, conn, &fakeAdapter{})

	// each draft fits on its own; together they oversell
	_, err := svc.Create(context.Background(), CreateRequest{Drafts: []Draft{
		pickupDraft(DraftItem{ItemID: item.ID, Amount: 3}),
		pickupDraft(DraftItem{ItemID: item.ID, Amount: 3}),
	}})
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeInsufficientStock), "got %v", err)

	var orders int64
	require.NoError(t, conn.Model(&models.Order{}).Count(&orders).Error)
	require.Zero(t, orders)
	require.Zero(t, countEvents(t, conn, enums.EventOrderCreated))
}

func TestCreateGatewayFailureKeepsOrder(t *testing.T) {
	conn := testsupport.OpenDB(t)
	fx := testsupport.SeedShop(t, conn, "sk")
	item := fx.SeedItem(t, conn, "shirt", 100, 10)
	adapter := &fakeAdapter{err: &payments.GatewayError{Provider: enums.ProviderGBPrimePay, Op: "create qr", StatusCode: 503, Err: errors.New("unavailable")}}
	svc := newTestService(t, conn, adapter)
	ctx := context.Background()

	res, err := svc.Create(ctx, CreateRequest{Drafts: []Draft{pickupDraft(DraftItem{ItemID: item.ID, Amount: 2})}})
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeGateway), "got %v", err)
	require.NotNil(t, res)
	require.Len(t, res.Orders, 1)

	stored, err := svc.Get(ctx, res.Orders[0].ID)
	require.NoError(t, err)
	require.False(t, stored.IsPaid)
	require.Nil(t, stored.PromptpayQRCodeURL)

	adapter.err = nil
	regenerated, err := svc.RegenerateArtifact(ctx, stored.ID)
	require.NoError(t, err)
	require.NotNil(t, regenerated.PromptpayQRCodeURL)
	require.Len(t, adapter.calls, 2)
}

func TestAttachSlip(t *testing.T) {
	conn := testsupport.OpenDB(t)
	fx := testsupport.SeedShop(t, conn, "sk")
	item := fx.SeedItem(t, conn, "shirt", 100, 10)
	svc := newTestService(t, conn, &fakeAdapter{})
	ctx := context.Background()

	order := testsupport.SeedOrder(t, conn, testsupport.OrderSeed{ShopID: fx.Shop.ID, ItemID: item.ID, Amount: 1, UnitPrice: 100})

	updated, err := svc.AttachSlip(ctx, order.ID, "https://cdn.example.com/slip.png")
	require.NoError(t, err)
	require.True(t, updated.IsPaid)
	require.False(t, updated.IsVerified)
	require.Equal(t, "https://cdn.example.com/slip.png", *updated.PaymentSlipURL)
	require.EqualValues(t, 1, countEvents(t, conn, enums.EventPaymentConfirmed))

	updated, err = svc.AttachSlip(ctx, order.ID, "https://cdn.example.com/slip-2.png")
	require.NoError(t, err)
	require.Equal(t, "https://cdn.example.com/slip-2.png", *updated.PaymentSlipURL)
	require.EqualValues(t, 1, countEvents(t, conn, enums.EventPaymentConfirmed), "already paid: no second receipt")

	_, err = svc.AttachSlip(ctx, order.ID, "not a url")
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))

	_, err = svc.AttachSlip(ctx, uuid.New(), "https://cdn.example.com/slip.png")
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeNotFound))

	canceled := testsupport.SeedOrder(t, conn, testsupport.OrderSeed{ShopID: fx.Shop.ID, ItemID: item.ID, Amount: 1, UnitPrice: 100, ShipmentStatus: enums.ShipmentCanceled})
	_, err = svc.AttachSlip(ctx, canceled.ID, "https://cdn.example.com/slip.png")
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeStateConflict))
}

func TestStaffShipmentAndVerification(t *testing.T) {
	conn := testsupport.OpenDB(t)
	fx := testsupport.SeedShop(t, conn, "sk")
	item := fx.SeedItem(t, conn, "shirt", 100, 10)
	svc := newTestService(t, conn, &fakeAdapter{})
	ctx := context.Background()
	staff := managerOf(fx.Shop.ID)

	order := testsupport.SeedOrder(t, conn, testsupport.OrderSeed{ShopID: fx.Shop.ID, ItemID: item.ID, Amount: 2, UnitPrice: 100})

	_, err := svc.UpdateShipment(ctx, managerOf(uuid.New()), order.ID, enums.ShipmentPending)
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeForbidden))

	_, err = svc.Verify(ctx, staff, order.ID)
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeStateConflict), "unpaid orders cannot be verified")

	updated, err := svc.UpdateShipment(ctx, staff, order.ID, enums.ShipmentPending)
	require.NoError(t, err)
	require.Equal(t, enums.ShipmentPending, updated.ShipmentStatus)

	updated, err = svc.UpdateShipment(ctx, staff, order.ID, enums.ShipmentPending)
	require.NoError(t, err, "repeating a transition is a no-op")
	require.Equal(t, enums.ShipmentPending, updated.ShipmentStatus)

	_, err = svc.UpdateShipment(ctx, staff, order.ID, enums.ShipmentNotShippedOut)
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeStateConflict))

	_, err = svc.AttachSlip(ctx, order.ID, "https://cdn.example.com/slip.png")
	require.NoError(t, err)
	verified, err := svc.Verify(ctx, staff, order.ID)
	require.NoError(t, err)
	require.True(t, verified.IsVerified)

	admin := &auth.AccessTokenClaims{UserID: uuid.New(), Role: enums.RoleAdmin}
	delivered, err := svc.UpdateShipment(ctx, admin, order.ID, enums.ShipmentDelivered)
	require.NoError(t, err)
	require.Equal(t, enums.ShipmentDelivered, delivered.ShipmentStatus)

	_, err = svc.UpdateShipment(ctx, admin, order.ID, enums.ShipmentCanceled)
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeStateConflict), "delivered is terminal")
}

func TestStaffCancelFreesStock(t *testing.T) {
	conn := testsupport.OpenDB(t)
	fx := testsupport.SeedShop(t, conn, "sk")
	item := fx.SeedItem(t, conn, "shirt", 100, 4)
	svc := newTestService(t, conn, &fakeAdapter{})
	ctx := context.Background()
	ledger := stock.NewLedger(conn, testHold)

	order := testsupport.SeedOrder(t, conn, testsupport.OrderSeed{ShopID: fx.Shop.ID, ItemID: item.ID, Amount: 4, UnitPrice: 100})
	available, err := ledger.Available(ctx, item.ID)
	require.NoError(t, err)
	require.Zero(t, available)

	canceled, err := svc.UpdateShipment(ctx, managerOf(fx.Shop.ID), order.ID, enums.ShipmentCanceled)
	require.NoError(t, err)
	require.NotNil(t, canceled.CanceledAt)
	require.EqualValues(t, 1, countEvents(t, conn, enums.EventOrderCanceled))

	available, err = ledger.Available(ctx, item.ID)
	require.NoError(t, err)
	require.EqualValues(t, 4, available)
}

func TestCancelLapsed(t *testing.T) {
	conn := testsupport.OpenDB(t)
	fx := testsupport.SeedShop(t, conn, "sk")
	item := fx.SeedItem(t, conn, "shirt", 100, 10)
	svc := newTestService(t, conn, &fakeAdapter{})
	ctx := context.Background()

	old := time.Now().UTC().Add(-2 * time.Hour)
	lapsed := testsupport.SeedOrder(t, conn, testsupport.OrderSeed{ShopID: fx.Shop.ID, ItemID: item.ID, Amount: 1, UnitPrice: 100, CreatedAt: old})
	paid := testsupport.SeedOrder(t, conn, testsupport.OrderSeed{ShopID: fx.Shop.ID, ItemID: item.ID, Amount: 1, UnitPrice: 100, CreatedAt: old, IsPaid: true})
	fresh := testsupport.SeedOrder(t, conn, testsupport.OrderSeed{ShopID: fx.Shop.ID, ItemID: item.ID, Amount: 1, UnitPrice: 100})

	n, err := svc.CancelLapsed(ctx, 100)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	for id, want := range map[uuid.UUID]enums.ShipmentStatus{
		lapsed.ID: enums.ShipmentCanceled,
		paid.ID:   enums.ShipmentNotShippedOut,
		fresh.ID:  enums.ShipmentNotShippedOut,
	} {
		got, err := svc.Get(ctx, id)
		require.NoError(t, err)
		require.Equal(t, want, got.ShipmentStatus)
	}
	require.EqualValues(t, 1, countEvents(t, conn, enums.EventOrderCanceled))

	n, err = svc.CancelLapsed(ctx, 100)
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestAttachSlipRevivesLapsedOrderWhenStockRemains(t *testing.T) {
	conn := testsupport.OpenDB(t)
	fx := testsupport.SeedShop(t, conn, "sk")
	item := fx.SeedItem(t, conn, "shirt", 100, 1)
	svc := newTestService(t, conn, &fakeAdapter{})
	ctx := context.Background()

	lapsed := testsupport.SeedOrder(t, conn, testsupport.OrderSeed{
		ShopID: fx.Shop.ID, ItemID: item.ID, Amount: 1, UnitPrice: 100,
		CreatedAt: time.Now().UTC().Add(-2 * testHold),
	})

	updated, err := svc.AttachSlip(ctx, lapsed.ID, "https://cdn.example.com/slip.png")
	require.NoError(t, err)
	require.True(t, updated.IsPaid)
	require.EqualValues(t, 1, countEvents(t, conn, enums.EventPaymentConfirmed))

	available, err := stock.NewLedger(conn, testHold).Available(ctx, item.ID)
	require.NoError(t, err)
	require.Zero(t, available)
}

func TestAttachSlipRejectsLapsedOrderWhoseStockWasResold(t *testing.T) {
	conn := testsupport.OpenDB(t)
	fx := testsupport.SeedShop(t, conn, "sk")
	item := fx.SeedItem(t, conn, "shirt", 100, 1)
	svc := newTestService(t, conn, &fakeAdapter{})
	ctx := context.Background()

	lapsed := testsupport.SeedOrder(t, conn, testsupport.OrderSeed{
		ShopID: fx.Shop.ID, ItemID: item.ID, Amount: 1, UnitPrice: 100,
		CreatedAt: time.Now().UTC().Add(-2 * testHold),
	})

	draft := pickupDraft(DraftItem{ItemID: item.ID, Amount: 1})
	draft.PaymentMethod = enums.PaymentMethodCOD
	_, err := svc.Create(ctx, CreateRequest{Drafts: []Draft{draft}})
	require.NoError(t, err)

	_, err = svc.AttachSlip(ctx, lapsed.ID, "https://cdn.example.com/slip.png")
	var stockErr *InsufficientStockError
	require.True(t, errors.As(err, &stockErr))
	require.Equal(t, item.ID, stockErr.ItemID)
	require.Zero(t, stockErr.Available)
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeInsufficientStock))

	stored, err := svc.Get(ctx, lapsed.ID)
	require.NoError(t, err)
	require.False(t, stored.IsPaid)
	require.Nil(t, stored.PaymentSlipURL)
	require.Zero(t, countEvents(t, conn, enums.EventPaymentConfirmed))

	available, err := stock.NewLedger(conn, testHold).Available(ctx, item.ID)
	require.NoError(t, err)
	require.Zero(t, available)
}

func TestCreateRejectsOversizedAmounts(t *testing.T) {
	conn := testsupport.OpenDB(t)
	fx := testsupport.SeedShop(t, conn, "sk")
	item := fx.SeedItem(t, conn, "shirt", 100, MaxLineAmount)
	pricey := fx.SeedItem(t, conn, "gold", math.MaxInt64/2, 10)
	svc := newTestService(t, conn, &fakeAdapter{})
	ctx := context.Background()

	half := MaxLineAmount/2 + 1
	cases := map[string][]Draft{
		"wrapping merge":      {pickupDraft(DraftItem{ItemID: item.ID, Amount: math.MaxInt64}, DraftItem{ItemID: item.ID, Amount: 2})},
		"merged over the cap": {pickupDraft(DraftItem{ItemID: item.ID, Amount: half}, DraftItem{ItemID: item.ID, Amount: half})},
		"split across orders": {pickupDraft(DraftItem{ItemID: item.ID, Amount: half}), pickupDraft(DraftItem{ItemID: item.ID, Amount: half})},
		"total overflows":     {pickupDraft(DraftItem{ItemID: pricey.ID, Amount: 3})},
	}
	for name, drafts := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Create(ctx, CreateRequest{Drafts: drafts})
			var validation *ValidationError
			require.True(t, errors.As(err, &validation), "got %v", err)
			require.Equal(t, "amount", validation.Field)
			require.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))
		})
	}

	var orders int64
	require.NoError(t, conn.Model(&models.Order{}).Count(&orders).Error)
	require.Zero(t, orders)
}

func TestPlacedOrderKeepsPriceAfterItemRepricing(t *testing.T) {
	conn := testsupport.OpenDB(t)
	fx := testsupport.SeedShop(t, conn, "sk")
	item := fx.SeedItem(t, conn, "shirt", 100, 10)
	svc := newTestService(t, conn, &fakeAdapter{})
	ctx := context.Background()

	draft := pickupDraft(DraftItem{ItemID: item.ID, Amount: 2})
	draft.PaymentMethod = enums.PaymentMethodCOD
	res, err := svc.Create(ctx, CreateRequest{Drafts: []Draft{draft}})
	require.NoError(t, err)
	orderID := res.Orders[0].ID

	require.NoError(t, conn.Model(&models.Item{}).Where("id = ?", item.ID).
		Updates(map[string]any{"price": 500, "discounted_price": 40}).Error)

	stored, err := svc.Get(ctx, orderID)
	require.NoError(t, err)
	require.EqualValues(t, 200, stored.TotalPrice)
	require.Len(t, stored.Items, 1)
	require.EqualValues(t, 100, stored.Items[0].UnitPrice)
}
