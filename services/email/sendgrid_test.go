package emailsvc

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/mail"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/excellacademy/academia/core"
	"github.com/excellacademy/academia/services/logger"
)

type sgContent struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type sgBody struct {
	Personalizations []struct {
		To      []map[string]string `json:"to"`
		CC      []map[string]string `json:"cc"`
		Subject string              `json:"subject"`
	} `json:"personalizations"`
	Content     []sgContent `json:"content"`
	Attachments []struct {
		Filename string `json:"filename"`
		Type     string `json:"type"`
	} `json:"attachments"`
}

func newSendgrid(t *testing.T) sendgridService {
	t.Helper()
	conf := core.NewTestConfig()
	conf.SendgridApiKey = "SG.key"
	return *NewSendgridService(conf, logsvc.NewRollbarLogger(io.Discard, conf))
}

func TestSendgridService_send(t *testing.T) {
	var (
		auth string
		body sgBody
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		if r.URL.Path != endpoint {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || len(body.Content) == 0 {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()
	defer func(h string) { host = h }(host)
	host = srv.URL

	svc := newSendgrid(t)
	msg := core.EmailMessage{
		To:      []mail.Address{{Name: "Jane Parent", Address: "jane@example.com"}},
		Subject: "Payment received",
		BodyStr: "Thank you",
	}
	ok, err := msg.Prepare()
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, msg.Attach(strings.NewReader("%PDF-1.4"), "receipt.pdf", "application/pdf"))

	require.NoError(t, svc.send(msg))
	assert.Equal(t, "Bearer SG.key", auth)
	require.Len(t, body.Personalizations, 1)
	assert.Equal(t, "jane@example.com", body.Personalizations[0].To[0]["email"])
	assert.Nil(t, body.Personalizations[0].CC)
	assert.True(t, strings.HasSuffix(body.Personalizations[0].Subject, "] Payment received"))
	assert.Equal(t, []sgContent{{Type: "text/plain", Value: "Thank you"}}, body.Content)
	require.Len(t, body.Attachments, 1)
	assert.Equal(t, "receipt.pdf", body.Attachments[0].Filename)

	t.Run("rejected", func(t *testing.T) {
		empty := core.EmailMessage{To: msg.To, Subject: "Empty"}
		err := svc.send(empty)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "400")
	})
}

func TestEmailMessage_Prepare(t *testing.T) {
	to := []mail.Address{{Address: "jane@example.com"}}
	tests := []struct {
		name      string
		msg       core.EmailMessage
		want      bool
		wantParts int
	}{
		{"plain", core.EmailMessage{To: to, BodyStr: "hi"}, true, 1},
		{"no recipients", core.EmailMessage{BodyStr: "hi"}, false, 1},
		{"no content", core.EmailMessage{To: to, TemplateName: "nope"}, false, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, err := tt.msg.Prepare()
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)
			assert.Len(t, tt.msg.Parts(), tt.wantParts)
		})
	}
}
