package echoapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/excellacademy/academia/apps/api/echo"
	"github.com/excellacademy/academia/core"
	"github.com/excellacademy/academia/core/grading"
	"github.com/excellacademy/academia/core/user"
	"github.com/excellacademy/academia/tests"
)

var (
	ctx    = context.Background()
	period = grading.Period{Term: "First Term", AcademicYear: "2023/2024"}

	errMissingToken = httpErr{Error: "missing or malformed jwt"}
	errForbidden    = httpErr{Error: "permission denied"}
)

type httpErr struct {
	Error string `json:"error"`
}

type apiEnv struct {
	*testutil.Env
	srv *echoapi.Server
}

func setup(t *testing.T) *apiEnv {
	t.Helper()
	env := testutil.NewEnv(t)

	_en := en.New()
	translator, _ := ut.New(_en, _en).GetTranslator("en")
	validate := validator.New()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)

	srv := echoapi.NewServer(echoapi.ServerDeps{
		Conf:            env.Conf,
		Logger:          env.Logger,
		Validate:        validate,
		Translator:      translator,
		UserSvc:         env.Users,
		SchoolSvc:       env.School,
		GradingSvc:      env.Grades,
		ReportCardSvc:   env.ReportCards,
		AttendanceSvc:   env.Attendance,
		FinanceSvc:      env.Finance,
		NotificationSvc: env.Notifications,
	})
	return &apiEnv{Env: env, srv: srv}
}

// do serves a request with a JSON body (when body is not nil) and a bearer token (when not empty).
func (ae *apiEnv) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	ae.srv.ServeHTTP(rec, req)
	return rec
}

func (ae *apiEnv) token(t *testing.T, usr user.User) string {
	t.Helper()
	token, err := echoapi.GenerateToken(ae.Conf, echoapi.GetUserClaims(ae.Conf, usr))
	require.NoError(t, err)
	return token
}

func (ae *apiEnv) createAdmin(t *testing.T) user.User {
	t.Helper()
	uname := "admin_" + uuid.New().String()[:6]
	return testutil.CreateUser(t, ae.UserRepo, "Admin", uname, uname+"@example.com", testutil.DefaultPassword, []string{user.RoleAdmin}, true)
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func decodeErr(t *testing.T, rec *httptest.ResponseRecorder) httpErr {
	t.Helper()
	var e httpErr
	decode(t, rec, &e)
	return e
}
