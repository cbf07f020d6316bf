package dig_container

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	"github.com/excellacademy/academia/apps/api/echo"
	"github.com/excellacademy/academia/core"
	"github.com/excellacademy/academia/core/attendance"
	"github.com/excellacademy/academia/core/finance"
	"github.com/excellacademy/academia/core/grading"
	"github.com/excellacademy/academia/core/notification"
	"github.com/excellacademy/academia/core/reportcard"
	"github.com/excellacademy/academia/core/school"
	"github.com/excellacademy/academia/core/user"
	"github.com/excellacademy/academia/services/email"
	"github.com/excellacademy/academia/services/logger"
	"github.com/excellacademy/academia/services/payment"
	"github.com/excellacademy/academia/services/pdf"
	"github.com/excellacademy/academia/services/scheduler"
	"github.com/excellacademy/academia/services/storage"
	"github.com/excellacademy/academia/storage/database"
	"github.com/excellacademy/academia/storage/database/sqlx"
)

type DBLoggerParam struct {
	dig.In
	Logger core.Logger `name:"dbLogger"`
}

// ServerParams are the dependencies of the API server.
type ServerParams struct {
	dig.In

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

func newLogger(conf *core.Config) core.Logger {
	logger := logsvc.NewRollbarLogger(os.Stdout, conf)
	logger.Enable(!conf.Debug && conf.RollbarToken != "")
	return logger
}

func newDBLogger(conf *core.Config) core.Logger {
	logger := logsvc.NewRollbarLogger(os.Stderr, conf)
	logger.Enable(!conf.Debug && conf.RollbarToken != "")
	return logger
}

func newDB(conf *core.Config, loggerParam DBLoggerParam) *sqlx.DB {
	setUp := func() (*sqlx.DB, error) {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := database.CreateIfNotExist(ctx, conf); err != nil {
			return nil, err
		}

		db, err := database.Open(conf)
		if err != nil {
			return nil, err
		}

		if err = database.Migrate(db, "up"); err != nil {
			return nil, err
		}
		return db, nil
	}

	db, err := setUp()
	if err != nil {
		loggerParam.Logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	return db
}

func newEmailService(conf *core.Config, logger core.Logger) core.EmailService {
	if conf.Debug {
		return emailsvc.NewConsoleService(os.Stdout, conf, logger)
	}
	return emailsvc.NewSendgridService(conf, logger)
}

func newTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}

func newGradingService(repo grading.Repository, schools *school.Service, reportCards reportcard.Repository) *grading.Service {
	return grading.NewService(repo, schools, reportcard.NewLocker(reportCards))
}

func newReportCardService(
	repo reportcard.Repository,
	grades *grading.Service,
	schools *school.Service,
	renderer reportcard.Renderer,
	store reportcard.DocumentStore,
	conf *core.Config,
	logger core.Logger,
) *reportcard.Service {
	return reportcard.NewService(repo, grades, schools, renderer, store, conf, logger)
}

func newAttendanceService(repo attendance.Repository, schools *school.Service) *attendance.Service {
	return attendance.NewService(repo, schools)
}

func newFinanceService(
	repo finance.Repository,
	schools *school.Service,
	gateway finance.Gateway,
	mailer core.EmailService,
	inbox *notification.Service,
	conf *core.Config,
	logger core.Logger,
) *finance.Service {
	return finance.NewService(repo, schools, gateway, schools, mailer, inbox, conf, logger)
}

func newScheduler(conf *core.Config, invoices *finance.Service, reportCards *reportcard.Service, logger core.Logger) *scheduler.Scheduler {
	return scheduler.New(conf.MaintenanceEvery, invoices, reportCards, logger)
}

func newServer(p ServerParams) *echoapi.Server {
	return echoapi.NewServer(echoapi.ServerDeps{
		Conf:            p.Conf,
		Logger:          p.Logger,
		Validate:        p.Validate,
		Translator:      p.Translator,
		UserSvc:         p.UserSvc,
		SchoolSvc:       p.SchoolSvc,
		GradingSvc:      p.GradingSvc,
		ReportCardSvc:   p.ReportCardSvc,
		AttendanceSvc:   p.AttendanceSvc,
		FinanceSvc:      p.FinanceSvc,
		NotificationSvc: p.NotificationSvc,
	})
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newDB))
	must(c.Provide(newEmailService))
	must(c.Provide(validator.New))
	must(c.Provide(newTranslator))

	// repositories
	must(c.Provide(sqlxrepos.NewUserRepository, dig.As(new(user.Repository))))
	must(c.Provide(sqlxrepos.NewSchoolRepository, dig.As(new(school.Repository))))
	must(c.Provide(sqlxrepos.NewGradingRepository, dig.As(new(grading.Repository))))
	must(c.Provide(sqlxrepos.NewReportCardRepository, dig.As(new(reportcard.Repository))))
	must(c.Provide(sqlxrepos.NewAttendanceRepository, dig.As(new(attendance.Repository))))
	must(c.Provide(sqlxrepos.NewFinanceRepository, dig.As(new(finance.Repository))))
	must(c.Provide(sqlxrepos.NewNotificationRepository, dig.As(new(notification.Repository))))

	// external collaborators
	must(c.Provide(paymentsvc.NewGateway))
	must(c.Provide(storagesvc.NewDocumentStore))
	must(c.Provide(pdfsvc.NewRenderer, dig.As(new(reportcard.Renderer))))

	// services
	must(c.Provide(user.NewService))
	must(c.Provide(school.NewService))
	must(c.Provide(notification.NewService))
	must(c.Provide(newGradingService))
	must(c.Provide(newReportCardService))
	must(c.Provide(newAttendanceService))
	must(c.Provide(newFinanceService))
	must(c.Provide(newScheduler))
	must(c.Provide(newServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
