package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/skshopping/shop-backend/pkg/config"
	"github.com/skshopping/shop-backend/pkg/enums"
)

const (
	omiseChargesPath    = "/charges"
	omiseChargeComplete = "charge.complete"
	maxOmiseBodyBytes   = 1 << 20
)

// Omise creates PromptPay charges through the Omise charges API.
type Omise struct {
	secretKey     string
	baseURL       string
	webhookSecret string
	client        *http.Client
}

func NewOmise(cfg config.OmiseConfig, timeout time.Duration, client *http.Client) (*Omise, error) {
	if strings.TrimSpace(cfg.SecretKey) == "" {
		return nil, errors.New("omise secret key is required")
	}
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, errors.New("omise base url is required")
	}
	return &Omise{
		secretKey:     cfg.SecretKey,
		baseURL:       strings.TrimRight(cfg.BaseURL, "/"),
		webhookSecret: cfg.WebhookSecret,
		client:        httpClient(client, timeout),
	}, nil
}

func (o *Omise) Provider() enums.PaymentProvider { return enums.ProviderOmise }

type omiseCharge struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Amount int64  `json:"amount"`
	Source struct {
		ScannableCode struct {
			Image struct {
				DownloadURI string `json:"download_uri"`
			} `json:"image"`
		} `json:"scannable_code"`
	} `json:"source"`
	Metadata map[string]string `json:"metadata"`
}

// CreateArtifact opens a PromptPay charge. Omise amounts are in satang.
func (o *Omise) CreateArtifact(ctx context.Context, req ArtifactRequest) (*Artifact, error) {
	satang := decimal.NewFromInt(req.Amount).Mul(decimal.NewFromInt(100)).IntPart()
	form := url.Values{}
	form.Set("amount", strconv.FormatInt(satang, 10))
	form.Set("currency", "THB")
	form.Set("source[type]", "promptpay")
	form.Set("description", req.Detail)
	form.Set("metadata[ref_id]", req.RefID)
	form.Set("metadata[order_id]", req.OrderID.String())

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+omiseChargesPath, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, o.fail("create charge", 0, err)
	}
	httpReq.SetBasicAuth(o.secretKey, "")
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := o.client.Do(httpReq)
	if err != nil {
		return nil, o.fail("create charge", 0, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxOmiseBodyBytes))
	if err != nil {
		return nil, o.fail("create charge", resp.StatusCode, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, o.fail("create charge", resp.StatusCode, fmt.Errorf("unexpected response: %s", truncate(body)))
	}

	var charge omiseCharge
	if err := json.Unmarshal(body, &charge); err != nil {
		return nil, o.fail("create charge", resp.StatusCode, fmt.Errorf("decode charge: %w", err))
	}
	uri := charge.Source.ScannableCode.Image.DownloadURI
	if uri == "" {
		return nil, o.fail("create charge", resp.StatusCode, errors.New("charge has no scannable code"))
	}
	return &Artifact{Provider: enums.ProviderOmise, URL: uri, ChargeID: charge.ID}, nil
}

type omiseEvent struct {
	Key  string      `json:"key"`
	Data omiseCharge `json:"data"`
}

// ParseWebhook decodes an Omise event. Events other than charge.complete are
// reported as ResultUnknown so they are acknowledged without a state change.
func (o *Omise) ParseWebhook(raw []byte) (*WebhookEvent, error) {
	var event omiseEvent
	if err := json.Unmarshal(raw, &event); err != nil {
		return nil, &PayloadError{Provider: enums.ProviderOmise, Err: err}
	}
	refID := event.Data.Metadata["ref_id"]
	result := lookupResult(omiseResults, event.Data.Status)
	if event.Key != omiseChargeComplete {
		result = ResultUnknown
	}
	if result.IsSuccess() && strings.TrimSpace(refID) == "" {
		return nil, &PayloadError{Provider: enums.ProviderOmise, Err: errors.New("metadata.ref_id is required")}
	}
	return &WebhookEvent{
		Provider:          enums.ProviderOmise,
		ReferenceNo:       refID,
		ProviderReference: event.Data.ID,
		Result:            result,
		RawResult:         event.Data.Status,
		Amount:            decimal.New(event.Data.Amount, -2),
	}, nil
}

func (o *Omise) VerifySignature(raw []byte, signature string) error {
	return verifySignature(o.webhookSecret, raw, signature)
}

func (o *Omise) fail(op string, status int, err error) error {
	return &GatewayError{Provider: enums.ProviderOmise, Op: op, StatusCode: status, Err: err}
}
