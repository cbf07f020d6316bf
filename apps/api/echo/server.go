package echoapi

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/excellacademy/academia/core"
	"github.com/excellacademy/academia/core/attendance"
	"github.com/excellacademy/academia/core/finance"
	"github.com/excellacademy/academia/core/grading"
	"github.com/excellacademy/academia/core/notification"
	"github.com/excellacademy/academia/core/reportcard"
	"github.com/excellacademy/academia/core/school"
	"github.com/excellacademy/academia/core/user"
)

type (
	ServerDeps struct {
		Conf       *core.Config
		Logger     core.Logger
		Validate   *validator.Validate
		Translator ut.Translator

		UserSvc         *user.Service
		SchoolSvc       *school.Service
		GradingSvc      *grading.Service
		ReportCardSvc   *reportcard.Service
		AttendanceSvc   *attendance.Service
		FinanceSvc      *finance.Service
		NotificationSvc *notification.Service
	}

	Server struct {
		deps     ServerDeps
		app      *echo.Echo
		address  string
		errors   chan error
		shutdown chan os.Signal
	}
)

func NewServer(deps ServerDeps) *Server {
	s := &Server{
		deps:     deps,
		app:      echo.New(),
		address:  deps.Conf.Server.Address(),
		errors:   make(chan error, 1),
		shutdown: make(chan os.Signal, 1),
	}
	s.setup()
	return s
}

func (s *Server) setup() {
	conf := s.deps.Conf

	s.app.HideBanner = true
	s.app.Pre(middleware.RemoveTrailingSlash())
	if !conf.Server.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.deps.Logger, s.deps.Translator, s.SignalShutdown)
	s.app.Debug = conf.Debug

	s.app.GET("/", s.home)

	g := s.app.Group("/api")
	jwt := middleware.JWTWithConfig(newJWTConfig(conf))
	auth := []echo.MiddlewareFunc{jwt, actorMiddleware(s.deps.UserSvc, s.deps.SchoolSvc)}

	registerUserAPI(g, jwt, auth, s.deps)
	registerSchoolAPI(g.Group("", auth...), s.deps)
	registerAttendanceAPI(g.Group("", auth...), s.deps)
	registerGradingAPI(g.Group("", auth...), s.deps)
	registerReportCardAPI(g.Group("", auth...), s.deps)
	registerFinanceAPI(g.Group("", auth...), s.deps)
	registerNotificationAPI(g.Group("/notifications", auth...), s.deps)
}

// Start listens until the server is shut down. Failures are reported on Errors.
func (s *Server) Start() {
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)
	if err := s.app.Start(s.address); err != nil && err != http.ErrServerClosed {
		s.errors <- err
	}
}

func (s *Server) Errors() <-chan error {
	return s.errors
}

func (s *Server) ShutdownSignal() <-chan os.Signal {
	return s.shutdown
}

// SignalShutdown asks the owner of the server to shut it down gracefully.
func (s *Server) SignalShutdown() {
	select {
	case s.shutdown <- syscall.SIGTERM:
	default: // already signalled
	}
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.Shutdown(ctx)
}

func (s *Server) Close() error {
	return s.app.Close()
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func (s *Server) home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to "+s.deps.Conf.AppName+" API!")
}
