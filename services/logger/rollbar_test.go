package logsvc

import (
	"bytes"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"github.com/excellacademy/academia/core"
	"github.com/excellacademy/academia/core/user"
)

func TestRollbarLogger_logfmt(t *testing.T) {
	var buf bytes.Buffer
	logger := NewRollbarLogger(&buf, core.NewTestConfig())

	logger.Warn("repairing report card",
		errors.New("document missing"),
		map[string]interface{}{"report_card": "rc-1", "attempt": 2},
		user.User{ID: "u-1"},
	)

	out := buf.String()
	assert.Contains(t, out, "level=warn")
	assert.Contains(t, out, `msg="repairing report card"`)
	assert.Contains(t, out, `err="document missing"`)
	assert.Contains(t, out, "attempt=2 report_card=rc-1")
	assert.Contains(t, out, "user=u-1")
	assert.Contains(t, out, "caller=rollbar_test.go:")
}
