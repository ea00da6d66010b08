package payments

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/skshopping/shop-backend/pkg/config"
	"github.com/skshopping/shop-backend/pkg/enums"
)

const (
	gbPrimePayQRPath   = "/v3/qrcode"
	maxArtifactBytes   = 2 << 20
	defaultHTTPTimeout = 15 * time.Second
)

// GBPrimePay issues PromptPay QR images through the GB Prime Pay QR API.
type GBPrimePay struct {
	token         string
	baseURL       string
	backgroundURL string
	webhookSecret string
	client        *http.Client
}

func NewGBPrimePay(cfg config.GBPrimePayConfig, timeout time.Duration, client *http.Client) (*GBPrimePay, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("gbprimepay token is required")
	}
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, errors.New("gbprimepay base url is required")
	}
	return &GBPrimePay{
		token:         cfg.Token,
		baseURL:       strings.TrimRight(cfg.BaseURL, "/"),
		backgroundURL: cfg.BackgroundURL,
		webhookSecret: cfg.WebhookSecret,
		client:        httpClient(client, timeout),
	}, nil
}

func (g *GBPrimePay) Provider() enums.PaymentProvider { return enums.ProviderGBPrimePay }

// CreateArtifact posts the QR form and returns the PNG as a data URI.
func (g *GBPrimePay) CreateArtifact(ctx context.Context, req ArtifactRequest) (*Artifact, error) {
	form := url.Values{}
	form.Set("token", g.token)
	form.Set("amount", decimal.NewFromInt(req.Amount).StringFixed(2))
	form.Set("referenceNo", req.RefID)
	form.Set("backgroundUrl", g.backgroundURL)
	form.Set("detail", req.Detail)
	form.Set("customerName", req.CustomerName)
	form.Set("customerEmail", req.Email)
	form.Set("customerTelephone", req.Phone)
	form.Set("customerAddress", req.Address)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+gbPrimePayQRPath, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, g.fail("create qr", 0, err)
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return nil, g.fail("create qr", 0, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxArtifactBytes))
	if err != nil {
		return nil, g.fail("create qr", resp.StatusCode, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, g.fail("create qr", resp.StatusCode, fmt.Errorf("unexpected response: %s", truncate(body)))
	}
	if len(body) == 0 || !bytes.HasPrefix(body, pngMagic) {
		return nil, g.fail("create qr", resp.StatusCode, errors.New("response is not a png image"))
	}

	return &Artifact{
		Provider: enums.ProviderGBPrimePay,
		URL:      "data:image/png;base64," + base64.StdEncoding.EncodeToString(body),
	}, nil
}

type gbPrimePayWebhook struct {
	Amount            decimal.Decimal `json:"amount"`
	ReferenceNo       string          `json:"referenceNo"`
	GBPReferenceNo    string          `json:"gbpReferenceNo"`
	ResultCode        string          `json:"resultCode"`
	Date              string          `json:"date"`
	Time              string          `json:"time"`
	CurrencyCode      string          `json:"currencyCode"`
	Detail            string          `json:"detail"`
	CustomerName      string          `json:"customerName"`
	CustomerEmail     string          `json:"customerEmail"`
	CustomerTelephone string          `json:"customerTelephone"`
	CustomerAddress   string          `json:"customerAddress"`
	RetryFlag         string          `json:"retryFlag"`
}

// ParseWebhook decodes the background URL callback. Unknown result codes decode
// to ResultUnknown instead of failing.
func (g *GBPrimePay) ParseWebhook(raw []byte) (*WebhookEvent, error) {
	var payload gbPrimePayWebhook
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, &PayloadError{Provider: enums.ProviderGBPrimePay, Err: err}
	}
	if strings.TrimSpace(payload.ReferenceNo) == "" {
		return nil, &PayloadError{Provider: enums.ProviderGBPrimePay, Err: errors.New("referenceNo is required")}
	}
	return &WebhookEvent{
		Provider:          enums.ProviderGBPrimePay,
		ReferenceNo:       payload.ReferenceNo,
		ProviderReference: payload.GBPReferenceNo,
		Result:            lookupResult(gbPrimePayResults, payload.ResultCode),
		RawResult:         payload.ResultCode,
		Amount:            payload.Amount,
		RetryFlag:         payload.RetryFlag,
	}, nil
}

func (g *GBPrimePay) VerifySignature(raw []byte, signature string) error {
	return verifySignature(g.webhookSecret, raw, signature)
}

func (g *GBPrimePay) fail(op string, status int, err error) error {
	return &GatewayError{Provider: enums.ProviderGBPrimePay, Op: op, StatusCode: status, Err: err}
}

var pngMagic = []byte{0x89, 'P', 'N', 'G'}

func httpClient(client *http.Client, timeout time.Duration) *http.Client {
	if client != nil {
		return client
	}
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}
	return &http.Client{Timeout: timeout}
}

func truncate(body []byte) string {
	const limit = 256
	if len(body) > limit {
		return string(body[:limit])
	}
	return string(body)
}
