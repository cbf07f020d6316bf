package paymentsvc

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/midtrans/midtrans-go"
	"github.com/midtrans/midtrans-go/coreapi"
	"github.com/midtrans/midtrans-go/snap"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/excellacademy/academia/core"
	"github.com/excellacademy/academia/core/finance"
)

// Midtrans reports times in Western Indonesia Time.
var wib = time.FixedZone("WIB", 7*60*60)

const midtransTimeLayout = "2006-01-02 15:04:05"

// midtransGateway starts Snap checkouts and verifies them with the Core API.
// The order ID of a checkout is its reference.
type midtransGateway struct {
	snap   snap.Client
	api    coreapi.Client
	logger core.Logger
}

var _ finance.Gateway = (*midtransGateway)(nil)

func NewMidtransGateway(conf *core.Config, logger core.Logger) *midtransGateway {
	env := midtrans.Sandbox
	if conf.Payment.Production {
		env = midtrans.Production
	}
	gw := &midtransGateway{logger: logger}
	gw.snap.New(conf.Payment.SecretKey, env)
	gw.api.New(conf.Payment.SecretKey, env)
	return gw
}

func (gw *midtransGateway) Name() string {
	return "midtrans"
}

// await runs fn, which cannot be cancelled, and gives up when ctx is done.
func await(ctx context.Context, fn func() error) error {
	done := make(chan error, 1)
	go func() { done <- fn() }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (gw *midtransGateway) Initialize(ctx context.Context, req finance.CheckoutRequest) (finance.Checkout, error) {
	sreq := &snap.Request{
		TransactionDetails: midtrans.TransactionDetails{
			OrderID:  req.Reference,
			GrossAmt: req.Amount.Round(0).IntPart(),
		},
		CustomerDetail: &midtrans.CustomerDetails{Email: req.Email},
		CustomField1:   req.Metadata[finance.MetaInvoiceID],
		CustomField2:   req.Metadata[finance.MetaInvoiceReference],
	}

	var res *snap.Response
	err := await(ctx, func() error {
		var mErr *midtrans.Error
		res, mErr = gw.snap.CreateTransaction(sreq)
		if mErr != nil {
			return mErr
		}
		return nil
	})
	if err != nil {
		return finance.Checkout{}, core.NewExternalServiceError(gw.Name(), errors.Wrap(err, "creating snap transaction"))
	}
	if res == nil || res.RedirectURL == "" {
		return finance.Checkout{}, core.NewExternalServiceError(gw.Name(), errors.New("malformed checkout"))
	}
	return finance.Checkout{AuthorizationURL: res.RedirectURL, Reference: req.Reference}, nil
}

func (gw *midtransGateway) Verify(ctx context.Context, reference string) (finance.Verification, error) {
	var (
		res      *coreapi.TransactionStatusResponse
		notFound bool
	)
	err := await(ctx, func() error {
		var mErr *midtrans.Error
		res, mErr = gw.api.CheckTransaction(reference)
		if mErr != nil {
			if mErr.StatusCode == http.StatusNotFound {
				notFound = true
				return nil
			}
			return mErr
		}
		return nil
	})
	if err != nil {
		return finance.Verification{}, core.NewExternalServiceError(gw.Name(), errors.Wrap(err, "checking transaction"))
	}
	if notFound || res == nil || res.StatusCode == "404" {
		return finance.Verification{Reference: reference, Status: finance.GatewayAbandoned}, nil
	}

	amount, err := decimal.NewFromString(res.GrossAmount)
	if err != nil {
		return finance.Verification{}, core.NewExternalServiceError(gw.Name(), errors.Wrapf(err, "parsing gross amount %q", res.GrossAmount))
	}
	auth, _ := json.Marshal(map[string]string{
		"channel":        res.PaymentType,
		"transaction_id": res.TransactionID,
		"fraud_status":   res.FraudStatus,
	})

	v := finance.Verification{
		Reference:     reference,
		Status:        midtransStatus(res.TransactionStatus, res.FraudStatus),
		Amount:        amount,
		Authorization: auth,
		Metadata:      midtransMetadata(res),
	}
	paidAt := res.SettlementTime
	if paidAt == "" {
		paidAt = res.TransactionTime
	}
	if paidAt != "" {
		if v.PaidAt, err = time.ParseInLocation(midtransTimeLayout, paidAt, wib); err != nil {
			gw.logger.Warn("parsing midtrans time", err, map[string]interface{}{"reference": reference, "time": paidAt})
		}
	}
	return v, nil
}

// midtransMetadata reads back the custom fields set by Initialize.
func midtransMetadata(res *coreapi.TransactionStatusResponse) map[string]string {
	m := make(map[string]string, 2)
	if res.CustomField1 != "" {
		m[finance.MetaInvoiceID] = res.CustomField1
	}
	if res.CustomField2 != "" {
		m[finance.MetaInvoiceReference] = res.CustomField2
	}
	return m
}

func midtransStatus(status, fraud string) finance.GatewayStatus {
	switch status {
	case "settlement":
		return finance.GatewaySuccess
	case "capture":
		if fraud == "" || fraud == "accept" {
			return finance.GatewaySuccess
		}
		return finance.GatewayPending
	case "deny", "cancel", "failure", "refund", "partial_refund":
		return finance.GatewayFailed
	case "expire":
		return finance.GatewayAbandoned
	default: // pending, authorize
		return finance.GatewayPending
	}
}
