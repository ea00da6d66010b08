// Package orders holds the HTTP handlers for checkout, order reads and staff
// order actions. Business rules live in internal/orders; handlers only decode,
// call the service and render.
package orders

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/skshopping/shop-backend/api/middleware"
	"github.com/skshopping/shop-backend/api/responses"
	"github.com/skshopping/shop-backend/api/validators"
	internalorders "github.com/skshopping/shop-backend/internal/orders"
	"github.com/skshopping/shop-backend/pkg/db/models"
	"github.com/skshopping/shop-backend/pkg/enums"
	"github.com/skshopping/shop-backend/pkg/logger"
)

const orderIDParam = "orderId"

// Service is the part of the order service the handlers call.
type Service interface {
	Create(ctx context.Context, req internalorders.CreateRequest) (*internalorders.CreateResult, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Order, error)
	Render(ctx context.Context, orders []models.Order, level, descendant enums.FetchLevel) ([]any, error)
	AttachSlip(ctx context.Context, id uuid.UUID, slipURL string) (*models.Order, error)
	UpdateShipment(ctx context.Context, actor internalorders.Actor, id uuid.UUID, to enums.ShipmentStatus) (*models.Order, error)
	Verify(ctx context.Context, actor internalorders.Actor, id uuid.UUID) (*models.Order, error)
	RegenerateArtifact(ctx context.Context, id uuid.UUID) (*models.Order, error)
}

type draftItemRequest struct {
	ItemID uuid.UUID `json:"item_id"`
	Amount int64     `json:"amount"`
}

type addressRequest struct {
	StreetAddressLine1 string  `json:"street_address_line_1"`
	StreetAddressLine2 *string `json:"street_address_line_2,omitempty"`
	Province           string  `json:"province"`
	District           string  `json:"district"`
	ZipCode            string  `json:"zip_code"`
}

// draftRequest keeps enums as strings so unknown values come back as a
// field-level validation error instead of a generic decode failure.
type draftRequest struct {
	Items              []draftItemRequest `json:"items"`
	DeliveryType       string             `json:"delivery_type"`
	PaymentMethod      string             `json:"payment_method"`
	Address            *addressRequest    `json:"address,omitempty"`
	ReceiverName       string             `json:"receiver_name"`
	ContactEmail       string             `json:"contact_email"`
	ContactPhoneNumber string             `json:"contact_phone_number"`
}

type createOrdersRequest struct {
	Data                 []draftRequest `json:"data"`
	FetchLevel           string         `json:"fetch_level,omitempty"`
	DescendantFetchLevel string         `json:"descendant_fetch_level,omitempty"`
}

type slipRequest struct {
	PaymentSlipURL string `json:"payment_slip_url"`
}

type shipmentRequest struct {
	Status string `json:"status" validate:"required"`
}

func (d draftRequest) toDraft() (internalorders.Draft, error) {
	delivery, err := enums.ParseDeliveryType(strings.TrimSpace(d.DeliveryType))
	if err != nil {
		return internalorders.Draft{}, &internalorders.ValidationError{Field: "delivery_type", Reason: err.Error()}
	}
	method, err := enums.ParsePaymentMethod(strings.TrimSpace(d.PaymentMethod))
	if err != nil {
		return internalorders.Draft{}, &internalorders.ValidationError{Field: "payment_method", Reason: err.Error()}
	}
	draft := internalorders.Draft{
		DeliveryType:       delivery,
		PaymentMethod:      method,
		ReceiverName:       d.ReceiverName,
		ContactEmail:       d.ContactEmail,
		ContactPhoneNumber: d.ContactPhoneNumber,
	}
	for _, item := range d.Items {
		draft.Items = append(draft.Items, internalorders.DraftItem{ItemID: item.ItemID, Amount: item.Amount})
	}
	if d.Address != nil {
		draft.Address = &internalorders.Address{
			StreetAddressLine1: d.Address.StreetAddressLine1,
			StreetAddressLine2: d.Address.StreetAddressLine2,
			Province:           d.Address.Province,
			District:           d.Address.District,
			ZipCode:            d.Address.ZipCode,
		}
	}
	return draft, nil
}

// Create places one order per draft in a single transaction.
func Create(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body createOrdersRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		level, err := enums.ParseFetchLevel(body.FetchLevel, enums.FetchDefault)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, &internalorders.ValidationError{Field: "fetch_level", Reason: err.Error()})
			return
		}
		descendant, err := enums.ParseFetchLevel(body.DescendantFetchLevel, enums.FetchCompact)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, &internalorders.ValidationError{Field: "descendant_fetch_level", Reason: err.Error()})
			return
		}

		req := internalorders.CreateRequest{}
		for _, d := range body.Data {
			draft, err := d.toDraft()
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			req.Drafts = append(req.Drafts, draft)
		}
		if claims := middleware.ClaimsFromContext(r.Context()); claims != nil {
			buyerID := claims.UserID
			req.BuyerID = &buyerID
		}

		result, err := svc.Create(r.Context(), req)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		rendered, err := svc.Render(r.Context(), result.Orders, level, descendant)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, rendered)
	}
}

// Get renders one order at the requested fetch levels.
func Get(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseUUIDParam(r, orderIDParam)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		level, err := validators.ParseFetchLevel(r, "fetch_level", enums.FetchDefault)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		descendant, err := validators.ParseFetchLevel(r, "descendant_fetch_level", enums.FetchCompact)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		order, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		writeOrder(w, r, svc, logg, order, level, descendant)
	}
}

func AttachSlip(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseUUIDParam(r, orderIDParam)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body slipRequest
		if err := validators.DecodeDataBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		order, err := svc.AttachSlip(r.Context(), id, body.PaymentSlipURL)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		writeOrder(w, r, svc, logg, order, enums.FetchDefault, enums.FetchCompact)
	}
}

func UpdateShipment(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseUUIDParam(r, orderIDParam)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body shipmentRequest
		if err := validators.DecodeDataBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		status, err := enums.ParseShipmentStatus(strings.TrimSpace(body.Status))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, &internalorders.ValidationError{Field: "status", Reason: err.Error()})
			return
		}
		order, err := svc.UpdateShipment(r.Context(), actorFrom(r), id, status)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		writeOrder(w, r, svc, logg, order, enums.FetchDetailed, enums.FetchCompact)
	}
}

func Verify(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseUUIDParam(r, orderIDParam)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		order, err := svc.Verify(r.Context(), actorFrom(r), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		writeOrder(w, r, svc, logg, order, enums.FetchDetailed, enums.FetchCompact)
	}
}

// RegenerateArtifact issues a fresh QR or charge for an unpaid promptpay order.
func RegenerateArtifact(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseUUIDParam(r, orderIDParam)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		order, err := svc.RegenerateArtifact(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		writeOrder(w, r, svc, logg, order, enums.FetchDefault, enums.FetchCompact)
	}
}

// actorFrom returns a nil interface for anonymous callers so the service's
// nil check sees them.
func actorFrom(r *http.Request) internalorders.Actor {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		return nil
	}
	return claims
}

func writeOrder(w http.ResponseWriter, r *http.Request, svc Service, logg *logger.Logger, order *models.Order, level, descendant enums.FetchLevel) {
	rendered, err := svc.Render(r.Context(), []models.Order{*order}, level, descendant)
	if err != nil {
		responses.WriteError(r.Context(), logg, w, err)
		return
	}
	if len(rendered) == 0 {
		responses.WriteSuccess(w, nil)
		return
	}
	responses.WriteSuccess(w, rendered[0])
}
