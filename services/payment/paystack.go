package paymentsvc

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sendgrid/rest"
	"github.com/shopspring/decimal"

	"github.com/excellacademy/academia/core"
	"github.com/excellacademy/academia/core/finance"
)

const paystackHost = "https://api.paystack.co"

// Paystack amounts are in the subunit of the currency (kobo, pesewas, cents).
var subunits = decimal.NewFromInt(100)

// paystackGateway talks to the Paystack transaction API.
type paystackGateway struct {
	secretKey string
	baseURL   string
	logger    core.Logger
}

var _ finance.Gateway = (*paystackGateway)(nil)

func NewPaystackGateway(conf *core.Config, logger core.Logger) *paystackGateway {
	baseURL := strings.TrimRight(conf.Payment.BaseURL, "/")
	if baseURL == "" {
		baseURL = paystackHost
	}
	return &paystackGateway{secretKey: conf.Payment.SecretKey, baseURL: baseURL, logger: logger}
}

func (gw *paystackGateway) Name() string {
	return "paystack"
}

type paystackEnvelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type paystackTransaction struct {
	Status        string          `json:"status"`
	Reference     string          `json:"reference"`
	Amount        int64           `json:"amount"`
	PaidAt        string          `json:"paid_at"`
	Metadata      json.RawMessage `json:"metadata"`
	Authorization json.RawMessage `json:"authorization"`
}

func (gw *paystackGateway) call(ctx context.Context, method rest.Method, path string, body interface{}) (int, paystackEnvelope, error) {
	var env paystackEnvelope
	req := rest.Request{
		Method:  method,
		BaseURL: gw.baseURL + path,
		Headers: map[string]string{
			"Authorization": "Bearer " + gw.secretKey,
			"Content-Type":  "application/json",
		},
	}
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return 0, env, errors.Wrap(err, "encoding request")
		}
		req.Body = b
	}

	res, err := rest.SendWithContext(ctx, req)
	if err != nil {
		return 0, env, core.NewExternalServiceError(gw.Name(), err)
	}
	if err = json.Unmarshal([]byte(res.Body), &env); err != nil {
		return res.StatusCode, env, core.NewExternalServiceError(gw.Name(), errors.Wrapf(err, "decoding response (status %d)", res.StatusCode))
	}
	return res.StatusCode, env, nil
}

func (gw *paystackGateway) Initialize(ctx context.Context, req finance.CheckoutRequest) (finance.Checkout, error) {
	payload := map[string]interface{}{
		"email":        req.Email,
		"amount":       req.Amount.Mul(subunits).Round(0).IntPart(),
		"reference":    req.Reference,
		"callback_url": req.CallbackURL,
		"metadata":     req.Metadata,
	}
	status, env, err := gw.call(ctx, rest.Post, "/transaction/initialize", payload)
	if err != nil {
		return finance.Checkout{}, err
	}
	if status >= http.StatusBadRequest || !env.Status {
		return finance.Checkout{}, core.NewExternalServiceError(gw.Name(), errors.Errorf("initializing transaction: %s (status %d)", env.Message, status))
	}

	var checkout finance.Checkout
	if err = json.Unmarshal(env.Data, &checkout); err != nil || checkout.AuthorizationURL == "" {
		return finance.Checkout{}, core.NewExternalServiceError(gw.Name(), errors.New("malformed checkout"))
	}
	if checkout.Reference == "" {
		checkout.Reference = req.Reference
	}
	return checkout, nil
}

func (gw *paystackGateway) Verify(ctx context.Context, reference string) (finance.Verification, error) {
	status, env, err := gw.call(ctx, rest.Get, "/transaction/verify/"+url.PathEscape(reference), nil)
	if err != nil {
		return finance.Verification{}, err
	}
	if status >= http.StatusBadRequest || !env.Status {
		if status == http.StatusNotFound || !env.Status && strings.Contains(strings.ToLower(env.Message), "not found") {
			return finance.Verification{Reference: reference, Status: finance.GatewayAbandoned}, nil
		}
		return finance.Verification{}, core.NewExternalServiceError(gw.Name(), errors.Errorf("verifying transaction: %s (status %d)", env.Message, status))
	}

	var tx paystackTransaction
	if err = json.Unmarshal(env.Data, &tx); err != nil {
		return finance.Verification{}, core.NewExternalServiceError(gw.Name(), errors.Wrap(err, "decoding transaction"))
	}
	if tx.Reference != "" && tx.Reference != reference {
		return finance.Verification{}, core.NewExternalServiceError(gw.Name(), errors.Errorf("verified %q instead of %q", tx.Reference, reference))
	}

	v := finance.Verification{
		Reference: reference,
		Status:    paystackStatus(tx.Status),
		Amount:    decimal.NewFromInt(tx.Amount).Div(subunits),
		Metadata:  stringMetadata(tx.Metadata),
	}
	if len(tx.Authorization) > 0 && string(tx.Authorization) != "null" {
		v.Authorization = tx.Authorization
	}
	if tx.PaidAt != "" {
		if v.PaidAt, err = time.Parse(time.RFC3339, tx.PaidAt); err != nil {
			gw.logger.Warn("parsing paystack paid_at", err, map[string]interface{}{"reference": reference, "paid_at": tx.PaidAt})
		}
	}
	return v, nil
}

func paystackStatus(s string) finance.GatewayStatus {
	switch s {
	case "success":
		return finance.GatewaySuccess
	case "failed", "reversed":
		return finance.GatewayFailed
	case "abandoned":
		return finance.GatewayAbandoned
	default: // ongoing, pending, processing, queued
		return finance.GatewayPending
	}
}

// stringMetadata keeps the string values of a metadata object. Paystack sends "" when there is none.
func stringMetadata(raw json.RawMessage) map[string]string {
	var m map[string]interface{}
	if len(raw) == 0 || json.Unmarshal(raw, &m) != nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		if s, ok := v.(string); ok {
			out[k] = s
		}
	}
	return out
}
