package finance

import (
	"context"
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// metadata keys sent with every checkout
const (
	MetaInvoiceID        = "invoice_id"
	MetaInvoiceReference = "invoice_reference"
)

type GatewayStatus string

const (
	GatewaySuccess   GatewayStatus = "success"
	GatewayFailed    GatewayStatus = "failed"
	GatewayAbandoned GatewayStatus = "abandoned"
	GatewayPending   GatewayStatus = "pending"
)

type (
	// Gateway is a payment provider. Every failure to get a well-formed answer is returned
	// as a core.ExternalServiceError.
	Gateway interface {
		Name() string
		Initialize(ctx context.Context, req CheckoutRequest) (Checkout, error)
		Verify(ctx context.Context, reference string) (Verification, error)
	}

	CheckoutRequest struct {
		Email       string
		Amount      decimal.Decimal
		Reference   string
		CallbackURL string
		Metadata    map[string]string
	}

	Checkout struct {
		AuthorizationURL string `json:"authorization_url"`
		Reference        string `json:"reference"`
	}

	Verification struct {
		Reference     string
		Status        GatewayStatus
		Amount        decimal.Decimal
		Authorization json.RawMessage
		Metadata      map[string]string
		PaidAt        time.Time
	}
)
