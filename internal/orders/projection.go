package orders

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/skshopping/shop-backend/internal/stock"
	"github.com/skshopping/shop-backend/pkg/db/models"
	"github.com/skshopping/shop-backend/pkg/enums"
)

type IDView struct {
	ID uuid.UUID `json:"id"`
}

type CompactView struct {
	IDView
	IsPaid         bool                 `json:"is_paid"`
	ShipmentStatus enums.ShipmentStatus `json:"shipment_status"`
	TotalPrice     int64                `json:"total_price"`
	DeliveryType   enums.DeliveryType   `json:"delivery_type"`
}

type DefaultView struct {
	CompactView
	CreatedAt          time.Time              `json:"created_at"`
	RefID              string                 `json:"ref_id"`
	IsVerified         bool                   `json:"is_verified"`
	ShippingFee        int64                  `json:"shipping_fee"`
	Items              []any                  `json:"items"`
	StreetAddressLine1 *string                `json:"street_address_line_1"`
	StreetAddressLine2 *string                `json:"street_address_line_2"`
	Province           *string                `json:"province"`
	District           *string                `json:"district"`
	ZipCode            *string                `json:"zip_code"`
	PickupLocation     []string               `json:"pickup_location"`
	ReceiverName       string                 `json:"receiver_name"`
	PaymentMethod      enums.PaymentMethod    `json:"payment_method"`
	PaymentProvider    *enums.PaymentProvider `json:"payment_provider"`
	PaymentSlipURL     *string                `json:"payment_slip_url"`
	PromptpayQRCodeURL *string                `json:"promptpay_qr_code_url"`
	ContactEmail       string                 `json:"contact_email"`
	ContactPhoneNumber *string                `json:"contact_phone_number"`
}

type DetailedView struct {
	DefaultView
	ShopID     uuid.UUID  `json:"shop_id"`
	BuyerID    *uuid.UUID `json:"buyer_id"`
	PaidAt     *time.Time `json:"paid_at"`
	CanceledAt *time.Time `json:"canceled_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
	// HoldsStock is false once a reservation lapsed or the order was canceled.
	HoldsStock bool `json:"holds_stock"`
}

type ItemLineView struct {
	IDView
	ItemID    uuid.UUID `json:"item_id"`
	Amount    int64     `json:"amount"`
	UnitPrice int64     `json:"unit_price"`
}

type DetailedItemLineView struct {
	ItemLineView
	Name            string `json:"name"`
	Price           int64  `json:"price"`
	DiscountedPrice *int64 `json:"discounted_price"`
}

type projectionSource interface {
	Shop(ctx context.Context, id uuid.UUID) (*models.Shop, error)
	ItemsByID(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Item, error)
}

// Projector renders orders at a fetch level, loading only what the level needs.
type Projector struct {
	source     projectionSource
	holdWindow time.Duration
	now        func() time.Time
}

func NewProjector(source projectionSource, holdWindow time.Duration) *Projector {
	return &Projector{source: source, holdWindow: holdWindow, now: time.Now}
}

func (p *Projector) Render(ctx context.Context, orders []models.Order, level, descendant enums.FetchLevel) ([]any, error) {
	out := make([]any, 0, len(orders))
	if len(orders) == 0 {
		return out, nil
	}

	shops := map[uuid.UUID]*models.Shop{}
	items := map[uuid.UUID]models.Item{}
	if level == enums.FetchDefault || level == enums.FetchDetailed {
		for _, order := range orders {
			if _, ok := shops[order.ShopID]; ok {
				continue
			}
			shop, err := p.source.Shop(ctx, order.ShopID)
			if err != nil {
				return nil, err
			}
			shops[order.ShopID] = shop
		}
	}
	if level == enums.FetchDetailed && descendant == enums.FetchDetailed {
		var ids []uuid.UUID
		for _, order := range orders {
			for _, line := range order.Items {
				ids = append(ids, line.ItemID)
			}
		}
		loaded, err := p.source.ItemsByID(ctx, ids)
		if err != nil {
			return nil, err
		}
		items = loaded
	}

	now := p.now()
	for _, order := range orders {
		out = append(out, p.project(order, level, descendant, shops[order.ShopID], items, now))
	}
	return out, nil
}

func (p *Projector) project(order models.Order, level, descendant enums.FetchLevel, shop *models.Shop, items map[uuid.UUID]models.Item, now time.Time) any {
	id := IDView{ID: order.ID}
	if level == enums.FetchIDOnly {
		return id
	}
	compact := CompactView{
		IDView:         id,
		IsPaid:         order.IsPaid,
		ShipmentStatus: order.ShipmentStatus,
		TotalPrice:     order.TotalPrice,
		DeliveryType:   order.DeliveryType,
	}
	if level == enums.FetchCompact {
		return compact
	}

	def := DefaultView{
		CompactView:        compact,
		CreatedAt:          order.CreatedAt,
		RefID:              order.RefID,
		IsVerified:         order.IsVerified,
		ShippingFee:        order.ShippingFee,
		Items:              projectLines(order.Items, descendant, items),
		StreetAddressLine1: order.StreetAddressLine1,
		StreetAddressLine2: order.StreetAddressLine2,
		Province:           order.Province,
		District:           order.District,
		ZipCode:            order.ZipCode,
		ReceiverName:       order.ReceiverName,
		PaymentMethod:      order.PaymentMethod,
		PaymentProvider:    order.PaymentProvider,
		PaymentSlipURL:     order.PaymentSlipURL,
		PromptpayQRCodeURL: order.PromptpayQRCodeURL,
		ContactEmail:       order.ContactEmail,
		ContactPhoneNumber: order.ContactPhoneNumber,
	}
	if shop != nil && order.DeliveryType == enums.DeliverySchoolPickup {
		def.PickupLocation = []string(shop.PickupLocation)
	}
	if level == enums.FetchDefault {
		return def
	}

	return DetailedView{
		DefaultView: def,
		ShopID:      order.ShopID,
		BuyerID:     order.BuyerID,
		PaidAt:      order.PaidAt,
		CanceledAt:  order.CanceledAt,
		UpdatedAt:   order.UpdatedAt,
		HoldsStock:  stock.IsLive(order, now, p.holdWindow),
	}
}

func projectLines(lines []models.OrderItem, level enums.FetchLevel, items map[uuid.UUID]models.Item) []any {
	out := make([]any, 0, len(lines))
	for _, line := range lines {
		id := IDView{ID: line.ID}
		if level == enums.FetchIDOnly {
			out = append(out, id)
			continue
		}
		view := ItemLineView{IDView: id, ItemID: line.ItemID, Amount: line.Amount, UnitPrice: line.UnitPrice}
		item, ok := items[line.ItemID]
		if level != enums.FetchDetailed || !ok {
			out = append(out, view)
			continue
		}
		out = append(out, DetailedItemLineView{
			ItemLineView:    view,
			Name:            item.Name,
			Price:           item.Price,
			DiscountedPrice: item.DiscountedPrice,
		})
	}
	return out
}
