// Package paymentsvc implements finance.Gateway for the supported payment providers.
package paymentsvc

import (
	"github.com/pkg/errors"

	"github.com/excellacademy/academia/core"
	"github.com/excellacademy/academia/core/finance"
)

const (
	ProviderPaystack = "paystack"
	ProviderMidtrans = "midtrans"
)

// NewGateway returns the gateway of the configured provider.
func NewGateway(conf *core.Config, logger core.Logger) (finance.Gateway, error) {
	switch conf.Payment.Provider {
	case ProviderPaystack, "":
		return NewPaystackGateway(conf, logger), nil
	case ProviderMidtrans:
		return NewMidtransGateway(conf, logger), nil
	default:
		return nil, errors.Errorf("unsupported payment provider %q", conf.Payment.Provider)
	}
}
