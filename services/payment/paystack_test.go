package paymentsvc_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/excellacademy/academia/core"
	"github.com/excellacademy/academia/core/finance"
	logsvc "github.com/excellacademy/academia/services/logger"
	paymentsvc "github.com/excellacademy/academia/services/payment"
)

var ctx = context.Background()

func newPaystack(t *testing.T, handler http.HandlerFunc) finance.Gateway {
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	conf := core.NewTestConfig()
	conf.Payment.SecretKey = "sk_test_123"
	conf.Payment.BaseURL = srv.URL
	gw, err := paymentsvc.NewGateway(conf, logsvc.NewRollbarLogger(io.Discard, conf))
	require.NoError(t, err)
	return gw
}

func TestPaystack_Initialize(t *testing.T) {
	var got map[string]interface{}
	gw := newPaystack(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/transaction/initialize", r.URL.Path)
		assert.Equal(t, "Bearer sk_test_123", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = io.WriteString(w, `{"status":true,"message":"ok","data":{"authorization_url":"https://checkout.paystack.com/abc","access_code":"abc","reference":"ref-1"}}`)
	})

	checkout, err := gw.Initialize(ctx, finance.CheckoutRequest{
		Email:     "parent@example.com",
		Amount:    decimal.RequireFromString("150.25"),
		Reference: "ref-1",
		Metadata:  map[string]string{finance.MetaInvoiceReference: "inv-ref"},
	})
	require.NoError(t, err)
	assert.Equal(t, "https://checkout.paystack.com/abc", checkout.AuthorizationURL)
	assert.Equal(t, "ref-1", checkout.Reference)
	assert.Equal(t, float64(15025), got["amount"])
	assert.Equal(t, "inv-ref", got["metadata"].(map[string]interface{})[finance.MetaInvoiceReference])
}

func TestPaystack_Initialize_failures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"rejected", http.StatusUnauthorized, `{"status":false,"message":"Invalid key"}`},
		{"not json", http.StatusBadGateway, `<html>bad gateway</html>`},
		{"no url", http.StatusOK, `{"status":true,"data":{}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := newPaystack(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			})
			_, err := gw.Initialize(ctx, finance.CheckoutRequest{Email: "a@b.co", Amount: decimal.NewFromInt(1), Reference: "r"})
			require.Error(t, err)
			assert.True(t, core.IsRetryable(err))
		})
	}
}

func TestPaystack_Verify(t *testing.T) {
	gw := newPaystack(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		switch r.URL.Path {
		case "/transaction/verify/ref-1":
			_, _ = io.WriteString(w, `{"status":true,"message":"ok","data":{
				"status":"success","reference":"ref-1","amount":50000,"paid_at":"2024-01-15T10:30:00.000Z",
				"metadata":{"invoice_id":"inv-1","invoice_reference":"inv-ref","custom_fields":[]},
				"authorization":{"channel":"card","last4":"4081"}}}`)
		case "/transaction/verify/ref-2":
			_, _ = io.WriteString(w, `{"status":true,"data":{"status":"abandoned","reference":"ref-2","amount":50000,"metadata":""}}`)
		default:
			w.WriteHeader(http.StatusBadRequest)
			_, _ = io.WriteString(w, `{"status":false,"message":"Transaction reference not found"}`)
		}
	})

	v, err := gw.Verify(ctx, "ref-1")
	require.NoError(t, err)
	assert.Equal(t, finance.GatewaySuccess, v.Status)
	assert.True(t, decimal.NewFromInt(500).Equal(v.Amount))
	assert.Equal(t, map[string]string{finance.MetaInvoiceID: "inv-1", finance.MetaInvoiceReference: "inv-ref"}, v.Metadata)
	assert.JSONEq(t, `{"channel":"card","last4":"4081"}`, string(v.Authorization))
	assert.True(t, v.PaidAt.Equal(time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)))

	v, err = gw.Verify(ctx, "ref-2")
	require.NoError(t, err)
	assert.Equal(t, finance.GatewayAbandoned, v.Status)
	assert.Empty(t, v.Metadata)

	v, err = gw.Verify(ctx, "unknown")
	require.NoError(t, err)
	assert.Equal(t, finance.GatewayAbandoned, v.Status)
}

func TestPaystack_Verify_failures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"server error with success body", http.StatusInternalServerError, `{"status":true,"data":{"status":"success","reference":"ref-1","amount":50000}}`},
		{"rejected", http.StatusUnauthorized, `{"status":false,"message":"Invalid key"}`},
		{"not json", http.StatusBadGateway, `<html>bad gateway</html>`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := newPaystack(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			})
			v, err := gw.Verify(ctx, "ref-1")
			require.Error(t, err)
			assert.True(t, core.IsRetryable(err))
			assert.Empty(t, v.Status)
		})
	}
}

func TestPaystack_Verify_timeout(t *testing.T) {
	gw := newPaystack(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	})
	tctx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()

	_, err := gw.Verify(tctx, "ref-1")
	require.Error(t, err)
	assert.True(t, core.IsRetryable(err))
}

func TestNewGateway(t *testing.T) {
	conf := core.NewTestConfig()
	logger := logsvc.NewRollbarLogger(io.Discard, conf)

	conf.Payment.Provider = paymentsvc.ProviderMidtrans
	gw, err := paymentsvc.NewGateway(conf, logger)
	require.NoError(t, err)
	assert.Equal(t, "midtrans", gw.Name())

	conf.Payment.Provider = "cheques"
	_, err = paymentsvc.NewGateway(conf, logger)
	assert.Error(t, err)
}
