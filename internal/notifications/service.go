// Package notifications renders and sends order emails from outbox events.
package notifications

import (
	"context"
	"fmt"
	"html/template"
	"strings"

	"github.com/google/uuid"

	"github.com/skshopping/shop-backend/pkg/db"
	"github.com/skshopping/shop-backend/pkg/db/models"
	"github.com/skshopping/shop-backend/pkg/enums"
	"github.com/skshopping/shop-backend/pkg/logger"
	"github.com/skshopping/shop-backend/pkg/outbox/registry"
)

const qrCodeName = "ref-qr.png"

type orderLoader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
}

type catalogLoader interface {
	Shop(ctx context.Context, id uuid.UUID) (*models.Shop, error)
	ItemsByID(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Item, error)
}

// Service builds invoice, receipt and cancellation emails. It only reads orders.
type Service struct {
	orders   orderLoader
	catalog  catalogLoader
	mailer   Mailer
	renderer *Renderer
	logg     *logger.Logger
}

func NewService(orders orderLoader, catalog catalogLoader, mailer Mailer, logg *logger.Logger) (*Service, error) {
	if orders == nil {
		return nil, fmt.Errorf("order loader required")
	}
	if catalog == nil {
		return nil, fmt.Errorf("catalog loader required")
	}
	if mailer == nil {
		return nil, fmt.Errorf("mailer required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	renderer, err := NewRenderer()
	if err != nil {
		return nil, err
	}
	return &Service{orders: orders, catalog: catalog, mailer: mailer, renderer: renderer, logg: logg}, nil
}

func (s *Service) SendInvoice(ctx context.Context, orderID uuid.UUID) error {
	data, order, err := s.load(ctx, orderID)
	if err != nil {
		return err
	}
	data.Title = "Your order " + order.RefID
	if order.PromptpayQRCodeURL != nil && strings.HasPrefix(*order.PromptpayQRCodeURL, "https://") {
		data.PaymentLink = template.URL(*order.PromptpayQRCodeURL)
	}
	html, err := s.renderer.render(templateInvoice, data)
	if err != nil {
		return registry.NewNonRetryableError(err)
	}
	return s.send(ctx, order, Message{To: order.ContactEmail, Subject: data.Title, HTML: html})
}

// SendReceipt embeds the ref_id as a QR code the shop scans at pickup.
func (s *Service) SendReceipt(ctx context.Context, orderID uuid.UUID) error {
	data, order, err := s.load(ctx, orderID)
	if err != nil {
		return err
	}
	png, err := RefIDQRCode(order.RefID)
	if err != nil {
		return registry.NewNonRetryableError(fmt.Errorf("qr code: %w", err))
	}
	data.Title = "Receipt for " + order.RefID
	data.QRCodeCID = qrCodeName
	html, err := s.renderer.render(templateReceipt, data)
	if err != nil {
		return registry.NewNonRetryableError(err)
	}
	return s.send(ctx, order, Message{
		To:      order.ContactEmail,
		Subject: data.Title,
		HTML:    html,
		Attachments: []Attachment{{
			Name:        qrCodeName,
			ContentType: "image/png",
			Data:        png,
			Inline:      true,
		}},
	})
}

func (s *Service) SendCancellation(ctx context.Context, orderID uuid.UUID, reason string) error {
	data, order, err := s.load(ctx, orderID)
	if err != nil {
		return err
	}
	data.Title = "Order " + order.RefID + " canceled"
	data.Reason = reason
	html, err := s.renderer.render(templateCanceled, data)
	if err != nil {
		return registry.NewNonRetryableError(err)
	}
	return s.send(ctx, order, Message{To: order.ContactEmail, Subject: data.Title, HTML: html})
}

func (s *Service) send(ctx context.Context, order *models.Order, msg Message) error {
	if err := s.mailer.Send(ctx, msg); err != nil {
		return err
	}
	logCtx := s.logg.WithFields(s.logg.WithOrderID(ctx, order.ID.String()), map[string]any{"subject": msg.Subject})
	s.logg.Info(logCtx, "notifications.sent")
	return nil
}

func (s *Service) load(ctx context.Context, orderID uuid.UUID) (EmailData, *models.Order, error) {
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		if db.IsNotFound(err) {
			return EmailData{}, nil, registry.NewNonRetryableError(fmt.Errorf("order %s not found", orderID))
		}
		return EmailData{}, nil, err
	}
	shop, err := s.catalog.Shop(ctx, order.ShopID)
	if err != nil {
		return EmailData{}, nil, err
	}
	ids := make([]uuid.UUID, 0, len(order.Items))
	for _, line := range order.Items {
		ids = append(ids, line.ItemID)
	}
	items, err := s.catalog.ItemsByID(ctx, ids)
	if err != nil {
		return EmailData{}, nil, err
	}
	return buildEmailData(order, shop, items), order, nil
}

func buildEmailData(order *models.Order, shop *models.Shop, items map[uuid.UUID]models.Item) EmailData {
	data := EmailData{
		ReceiverName:  order.ReceiverName,
		RefID:         order.RefID,
		PaymentMethod: paymentMethodLabel(order.PaymentMethod),
		DeliveryType:  order.DeliveryType.String(),
		ShippingFee:   order.ShippingFee,
		TotalPrice:    order.TotalPrice,
	}
	if shop != nil {
		data.ShopName = shop.Name
		if order.DeliveryType == enums.DeliverySchoolPickup {
			data.PickupLocations = []string(shop.PickupLocation)
		}
	}
	if order.DeliveryType.RequiresAddress() {
		data.Address = formatAddress(order)
	}
	for _, line := range order.Items {
		name := line.ItemID.String()
		if item, ok := items[line.ItemID]; ok {
			name = item.Name
		}
		data.Lines = append(data.Lines, EmailLine{
			Name:      name,
			Amount:    line.Amount,
			UnitPrice: line.UnitPrice,
			Subtotal:  line.Amount * line.UnitPrice,
		})
	}
	return data
}

func paymentMethodLabel(method enums.PaymentMethod) string {
	switch method {
	case enums.PaymentMethodCOD:
		return "Cash on delivery"
	case enums.PaymentMethodPromptpay:
		return "PromptPay"
	default:
		return method.String()
	}
}

func formatAddress(order *models.Order) string {
	var parts []string
	for _, part := range []*string{order.StreetAddressLine1, order.StreetAddressLine2, order.District, order.Province, order.ZipCode} {
		if part != nil && strings.TrimSpace(*part) != "" {
			parts = append(parts, strings.TrimSpace(*part))
		}
	}
	return strings.Join(parts, ", ")
}
