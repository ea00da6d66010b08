package orders

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skshopping/shop-backend/api/middleware"
	internalorders "github.com/skshopping/shop-backend/internal/orders"
	"github.com/skshopping/shop-backend/pkg/auth"
	"github.com/skshopping/shop-backend/pkg/db/models"
	"github.com/skshopping/shop-backend/pkg/enums"
	pkgerrors "github.com/skshopping/shop-backend/pkg/errors"
)

type fakeService struct {
	createReq   internalorders.CreateRequest
	createErr   error
	order       *models.Order
	err         error
	slip        string
	shipmentTo  enums.ShipmentStatus
	actor       internalorders.Actor
	renderLevel enums.FetchLevel
	renderDesc  enums.FetchLevel
}

func (f *fakeService) Create(_ context.Context, req internalorders.CreateRequest) (*internalorders.CreateResult, error) {
	f.createReq = req
	if f.createErr != nil {
		return nil, f.createErr
	}
	out := &internalorders.CreateResult{}
	for range req.Drafts {
		out.Orders = append(out.Orders, models.Order{ID: uuid.New(), RefID: "ref"})
	}
	return out, nil
}

func (f *fakeService) Get(context.Context, uuid.UUID) (*models.Order, error) {
	return f.order, f.err
}

func (f *fakeService) Render(_ context.Context, orders []models.Order, level, descendant enums.FetchLevel) ([]any, error) {
	f.renderLevel, f.renderDesc = level, descendant
	out := make([]any, 0, len(orders))
	for _, o := range orders {
		out = append(out, map[string]any{"id": o.ID, "ref_id": o.RefID})
	}
	return out, nil
}

func (f *fakeService) AttachSlip(_ context.Context, _ uuid.UUID, slipURL string) (*models.Order, error) {
	f.slip = slipURL
	return f.order, f.err
}

func (f *fakeService) UpdateShipment(_ context.Context, actor internalorders.Actor, _ uuid.UUID, to enums.ShipmentStatus) (*models.Order, error) {
	f.actor, f.shipmentTo = actor, to
	return f.order, f.err
}

func (f *fakeService) Verify(_ context.Context, actor internalorders.Actor, _ uuid.UUID) (*models.Order, error) {
	f.actor = actor
	return f.order, f.err
}

func (f *fakeService) RegenerateArtifact(context.Context, uuid.UUID) (*models.Order, error) {
	return f.order, f.err
}

func withOrderID(r *http.Request, id string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(orderIDParam, id)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func decodeError(t *testing.T, resp *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var envelope struct {
		Error map[string]any `json:"error"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &envelope))
	return envelope.Error
}

const createBody = `{"data":[{"items":[{"item_id":"6f1c1a5e-1111-4b7e-9c1a-000000000001","amount":2}],"delivery_type":"pick_up","payment_method":"cod","receiver_name":"Somchai","contact_email":"s@example.com"}],"fetch_level":"id_only"}`

func TestCreateAcceptsLegacyPickupAndBuyerClaims(t *testing.T) {
	svc := &fakeService{}
	buyer := uuid.New()
	req := httptest.NewRequest(http.MethodPost, "/orders", strings.NewReader(createBody))
	req = req.WithContext(middleware.WithClaims(req.Context(), &auth.AccessTokenClaims{UserID: buyer, Role: enums.RoleBuyer}))
	resp := httptest.NewRecorder()

	Create(svc, nil)(resp, req)

	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	require.Len(t, svc.createReq.Drafts, 1)
	draft := svc.createReq.Drafts[0]
	assert.Equal(t, enums.DeliverySchoolPickup, draft.DeliveryType)
	assert.Equal(t, enums.PaymentMethodCOD, draft.PaymentMethod)
	assert.Equal(t, int64(2), draft.Items[0].Amount)
	require.NotNil(t, svc.createReq.BuyerID)
	assert.Equal(t, buyer, *svc.createReq.BuyerID)
	assert.Equal(t, enums.FetchIDOnly, svc.renderLevel)
	assert.Equal(t, enums.FetchCompact, svc.renderDesc)
}

func TestCreateAnonymousHasNoBuyer(t *testing.T) {
	svc := &fakeService{}
	resp := httptest.NewRecorder()
	Create(svc, nil)(resp, httptest.NewRequest(http.MethodPost, "/orders", strings.NewReader(createBody)))

	require.Equal(t, http.StatusOK, resp.Code)
	assert.Nil(t, svc.createReq.BuyerID)
}

func TestCreateRejectsUnknownDeliveryType(t *testing.T) {
	svc := &fakeService{}
	body := strings.Replace(createBody, `"pick_up"`, `"drone"`, 1)
	resp := httptest.NewRecorder()
	Create(svc, nil)(resp, httptest.NewRequest(http.MethodPost, "/orders", strings.NewReader(body)))

	require.Equal(t, http.StatusBadRequest, resp.Code)
	errBody := decodeError(t, resp)
	assert.Equal(t, "validation_error", errBody["error_type"])
	meta, ok := errBody["meta"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "delivery_type", meta["field"])
	assert.Empty(t, svc.createReq.Drafts)
}

func TestCreateSurfacesStockConflict(t *testing.T) {
	svc := &fakeService{createErr: &internalorders.InsufficientStockError{ItemID: uuid.New(), Available: 1, Requested: 2}}
	resp := httptest.NewRecorder()
	Create(svc, nil)(resp, httptest.NewRequest(http.MethodPost, "/orders", strings.NewReader(createBody)))

	require.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Equal(t, "insufficient_stock", decodeError(t, resp)["error_type"])
}

func TestGetRendersSingleOrder(t *testing.T) {
	id := uuid.New()
	svc := &fakeService{order: &models.Order{ID: id, RefID: "ABC123"}}
	req := withOrderID(httptest.NewRequest(http.MethodGet, "/orders/"+id.String()+"?fetch_level=detailed&descendant_fetch_level=detailed", nil), id.String())
	resp := httptest.NewRecorder()

	Get(svc, nil)(resp, req)

	require.Equal(t, http.StatusOK, resp.Code)
	var envelope struct {
		Data map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &envelope))
	assert.Equal(t, "ABC123", envelope.Data["ref_id"])
	assert.Equal(t, enums.FetchDetailed, svc.renderLevel)
	assert.Equal(t, enums.FetchDetailed, svc.renderDesc)
}

func TestGetInvalidID(t *testing.T) {
	resp := httptest.NewRecorder()
	Get(&fakeService{}, nil)(resp, withOrderID(httptest.NewRequest(http.MethodGet, "/orders/nope", nil), "nope"))
	require.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestGetNotFound(t *testing.T) {
	id := uuid.New()
	svc := &fakeService{err: pkgerrors.New(pkgerrors.CodeNotFound, "order not found")}
	resp := httptest.NewRecorder()
	Get(svc, nil)(resp, withOrderID(httptest.NewRequest(http.MethodGet, "/orders/"+id.String(), nil), id.String()))
	require.Equal(t, http.StatusNotFound, resp.Code)
}

func TestAttachSlipAcceptsDataEnvelope(t *testing.T) {
	id := uuid.New()
	svc := &fakeService{order: &models.Order{ID: id}}
	body := `{"data":{"payment_slip_url":"https://cdn.example.com/slip.png"}}`
	req := withOrderID(httptest.NewRequest(http.MethodPatch, "/orders/"+id.String()+"/slip", strings.NewReader(body)), id.String())
	resp := httptest.NewRecorder()

	AttachSlip(svc, nil)(resp, req)

	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	assert.Equal(t, "https://cdn.example.com/slip.png", svc.slip)
}

func TestUpdateShipmentPassesActor(t *testing.T) {
	id := uuid.New()
	shopID := uuid.New()
	svc := &fakeService{order: &models.Order{ID: id}}
	claims := &auth.AccessTokenClaims{UserID: uuid.New(), Role: enums.RoleShopManager, ShopID: &shopID}
	req := withOrderID(httptest.NewRequest(http.MethodPatch, "/orders/"+id.String()+"/shipment", strings.NewReader(`{"status":"delivered"}`)), id.String())
	req = req.WithContext(middleware.WithClaims(req.Context(), claims))
	resp := httptest.NewRecorder()

	UpdateShipment(svc, nil)(resp, req)

	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	assert.Equal(t, enums.ShipmentDelivered, svc.shipmentTo)
	require.NotNil(t, svc.actor)
	assert.True(t, svc.actor.CanManageShop(shopID))
}

func TestUpdateShipmentRejectsUnknownStatus(t *testing.T) {
	id := uuid.New()
	req := withOrderID(httptest.NewRequest(http.MethodPatch, "/orders/"+id.String()+"/shipment", strings.NewReader(`{"status":"lost"}`)), id.String())
	resp := httptest.NewRecorder()

	UpdateShipment(&fakeService{}, nil)(resp, req)

	require.Equal(t, http.StatusBadRequest, resp.Code)
	meta, _ := decodeError(t, resp)["meta"].(map[string]any)
	assert.Equal(t, "status", meta["field"])
}

func TestVerifyAnonymousActorIsNil(t *testing.T) {
	id := uuid.New()
	svc := &fakeService{err: pkgerrors.New(pkgerrors.CodeForbidden, "not allowed")}
	resp := httptest.NewRecorder()

	Verify(svc, nil)(resp, withOrderID(httptest.NewRequest(http.MethodPost, "/orders/"+id.String()+"/verify", nil), id.String()))

	require.Equal(t, http.StatusForbidden, resp.Code)
	assert.Nil(t, svc.actor)
}

func TestRegenerateArtifactGatewayFailure(t *testing.T) {
	id := uuid.New()
	svc := &fakeService{err: pkgerrors.New(pkgerrors.CodeGateway, "gateway unavailable")}
	resp := httptest.NewRecorder()

	RegenerateArtifact(svc, nil)(resp, withOrderID(httptest.NewRequest(http.MethodPost, "/orders/"+id.String()+"/payment-artifact", nil), id.String()))

	require.Equal(t, http.StatusBadGateway, resp.Code)
}
