package emailsvc_test

import (
	"io"
	"net/mail"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/excellacademy/academia/core"
	"github.com/excellacademy/academia/fs"
	"github.com/excellacademy/academia/services/email"
	"github.com/excellacademy/academia/services/logger"
)

func TestConsoleServiceMock_SendMessages(t *testing.T) {
	conf := core.NewTestConfig()
	logger := logsvc.NewRollbarLogger(io.Discard, conf)
	core.ParseEmailTemplates(appfs.FS, appfs.EmailTemplatesDir, conf, logger)
	emailsvc.ResetSentMessages()

	svc := emailsvc.NewConsoleServiceMock(conf, logger)
	to := []mail.Address{{Name: "Jane Parent", Address: "jane@example.com"}}

	svc.SendMessages(
		&core.EmailMessage{
			To:           to,
			Subject:      "Invoice overdue",
			TemplateName: "payment_reminder",
			TemplateData: map[string]interface{}{
				"Name":    "Jane Parent",
				"Invoice": map[string]string{"ID": "inv-1", "Number": "INV-20240115-ABCDEF12"},
				"DueDate": "2024-01-15",
				"Balance": "250.00",
			},
		},
		&core.EmailMessage{To: to, Subject: "Plain", BodyStr: "hello"},
		&core.EmailMessage{Subject: "Nobody", BodyStr: "lost"},               // no recipients
		&core.EmailMessage{To: to, Subject: "Unknown", TemplateName: "nope"}, // no content
	)

	sent := emailsvc.Sent()
	require.Len(t, sent, 2)

	reminder := sent[0]
	assert.Contains(t, reminder.TextContent, "Dear Jane Parent,")
	assert.Contains(t, reminder.TextContent, "INV-20240115-ABCDEF12 was due on 2024-01-15 and is now overdue")
	assert.Contains(t, reminder.TextContent, "Outstanding balance: 250.00")
	assert.Contains(t, reminder.HTMLContent, "<strong>INV-20240115-ABCDEF12</strong>")
	assert.Contains(t, reminder.HTMLContent, "/invoices/inv-1")

	plain := sent[1]
	assert.Equal(t, "hello", plain.TextContent)
	assert.Empty(t, plain.HTMLContent)
}
