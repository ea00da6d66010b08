// Package webhooks exposes the payment provider callback endpoints.
package webhooks

import (
	"context"
	"io"
	"net/http"

	"github.com/skshopping/shop-backend/api/responses"
	"github.com/skshopping/shop-backend/internal/payments"
	internalwebhooks "github.com/skshopping/shop-backend/internal/webhooks"
	"github.com/skshopping/shop-backend/pkg/enums"
	pkgerrors "github.com/skshopping/shop-backend/pkg/errors"
	"github.com/skshopping/shop-backend/pkg/logger"
)

const maxWebhookBody = 64 << 10

type Reconciler interface {
	Reconcile(ctx context.Context, provider enums.PaymentProvider, raw []byte, signature string) (*internalwebhooks.Outcome, error)
}

type ackResponse struct {
	Acknowledged bool   `json:"acknowledged"`
	Applied      bool   `json:"applied"`
	Duplicate    bool   `json:"duplicate"`
	RefID        string `json:"ref_id,omitempty"`
}

// PaymentWebhook handles one provider's callbacks. Every notification the
// reconciler understands is answered 200, including failed or duplicate
// payments, so the provider stops retrying.
func PaymentWebhook(reconciler Reconciler, provider enums.PaymentProvider, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if reconciler == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeDependency, "webhook reconciler unavailable"))
			return
		}
		raw, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read webhook body"))
			return
		}

		ctx := r.Context()
		if logg != nil {
			ctx = logg.WithField(ctx, "provider", provider.String())
		}
		outcome, err := reconciler.Reconcile(ctx, provider, raw, r.Header.Get(payments.SignatureHeader))
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, ackResponse{
			Acknowledged: outcome.Acknowledged,
			Applied:      outcome.Applied,
			Duplicate:    outcome.Duplicate,
			RefID:        outcome.RefID,
		})
	}
}
