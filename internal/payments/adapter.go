// Package payments talks to the PromptPay gateways: it creates payment artifacts
// and normalizes their webhook callbacks.
package payments

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/skshopping/shop-backend/pkg/enums"
	pkgerrors "github.com/skshopping/shop-backend/pkg/errors"
)

// SignatureHeader carries hex(HMAC-SHA256(secret, body)) on webhook requests.
const SignatureHeader = "X-Webhook-Signature"

// Adapter is one payment provider integration.
type Adapter interface {
	Provider() enums.PaymentProvider
	CreateArtifact(ctx context.Context, req ArtifactRequest) (*Artifact, error)
	ParseWebhook(raw []byte) (*WebhookEvent, error)
	VerifySignature(raw []byte, signature string) error
}

// ArtifactRequest carries the order data a provider needs to issue a QR or charge.
type ArtifactRequest struct {
	OrderID      uuid.UUID
	RefID        string
	Amount       int64
	Detail       string
	CustomerName string
	Email        string
	Phone        string
	Address      string
}

// Artifact is what the buyer scans or downloads to pay.
type Artifact struct {
	Provider enums.PaymentProvider
	// URL is either a provider download link or a data: URI holding the PNG.
	URL string
	// ChargeID is the provider-side reference when one exists.
	ChargeID string
}

// WebhookEvent is a provider callback in normalized form.
type WebhookEvent struct {
	Provider          enums.PaymentProvider
	ReferenceNo       string
	ProviderReference string
	Result            Result
	// RawResult is the provider's own code, kept for logging.
	RawResult string
	Amount    decimal.Decimal
	RetryFlag string
}

// GatewayError wraps transport failures, non-2xx replies and unreadable bodies.
// It never means the payment itself succeeded or failed.
type GatewayError struct {
	Provider   enums.PaymentProvider
	Op         string
	StatusCode int
	Err        error
}

func (e *GatewayError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s %s: status %d: %v", e.Provider, e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Provider, e.Op, e.Err)
}

func (e *GatewayError) Unwrap() error { return e.Err }

func (e *GatewayError) APIError() *pkgerrors.Error {
	return pkgerrors.New(pkgerrors.CodeGateway, "payment gateway unavailable")
}

// PayloadError means a webhook body could not be decoded.
type PayloadError struct {
	Provider enums.PaymentProvider
	Err      error
}

func (e *PayloadError) Error() string {
	return fmt.Sprintf("%s webhook payload: %v", e.Provider, e.Err)
}

func (e *PayloadError) Unwrap() error { return e.Err }

func (e *PayloadError) APIError() *pkgerrors.Error {
	return pkgerrors.New(pkgerrors.CodeValidation, "webhook payload could not be parsed")
}

var ErrInvalidSignature = errors.New("invalid webhook signature")
