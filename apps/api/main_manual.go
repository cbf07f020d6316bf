package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"

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

func startManual() {
	// =========================================================================
	// Set up Dependencies

	conf := core.NewConfig()

	// set up loggers
	logger := logsvc.NewRollbarLogger(os.Stdout, conf)
	logger.Enable(!conf.Debug && conf.RollbarToken != "")

	dbLogger := logsvc.NewRollbarLogger(os.Stderr, conf)
	dbLogger.Enable(!conf.Debug && conf.RollbarToken != "")

	// set up DB
	db, err := setUpDB(conf)
	if err != nil {
		dbLogger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}

	// set up collaborators
	var mailSvc core.EmailService
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService(os.Stdout, conf, logger)
	} else {
		mailSvc = emailsvc.NewSendgridService(conf, logger)
	}

	gateway, err := paymentsvc.NewGateway(conf, logger)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up payment gateway: %v", err), err)
	}

	docStore, err := storagesvc.NewDocumentStore(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up document store: %v", err), err)
	}

	// set up services
	usrSvc := user.NewService(sqlxrepos.NewUserRepository(db))
	schoolSvc := school.NewService(sqlxrepos.NewSchoolRepository(db), usrSvc)
	notificationSvc := notification.NewService(sqlxrepos.NewNotificationRepository(db), usrSvc)

	reportCardRepo := sqlxrepos.NewReportCardRepository(db)
	gradingSvc := grading.NewService(sqlxrepos.NewGradingRepository(db), schoolSvc, reportcard.NewLocker(reportCardRepo))
	reportCardSvc := reportcard.NewService(
		reportCardRepo,
		gradingSvc,
		schoolSvc,
		pdfsvc.NewRenderer(logger),
		docStore,
		conf,
		logger,
	)
	attendanceSvc := attendance.NewService(sqlxrepos.NewAttendanceRepository(db), schoolSvc)
	financeSvc := finance.NewService(
		sqlxrepos.NewFinanceRepository(db),
		schoolSvc,
		gateway,
		schoolSvc,
		mailSvc,
		notificationSvc,
		conf,
		logger,
	)

	validate := validator.New()
	translator := newTranslator()

	server := echoapi.NewServer(
		echoapi.ServerDeps{
			Conf:            conf,
			Logger:          logger,
			Validate:        validate,
			Translator:      translator,
			UserSvc:         usrSvc,
			SchoolSvc:       schoolSvc,
			GradingSvc:      gradingSvc,
			ReportCardSvc:   reportCardSvc,
			AttendanceSvc:   attendanceSvc,
			FinanceSvc:      financeSvc,
			NotificationSvc: notificationSvc,
		},
	)

	run(app{
		conf:       conf,
		logger:     logger,
		dbLogger:   dbLogger,
		db:         db,
		validate:   validate,
		translator: translator,
		server:     server,
		scheduler:  scheduler.New(conf.MaintenanceEvery, financeSvc, reportCardSvc, logger),
	})
}

func setUpDB(conf *core.Config) (*sqlx.DB, error) {
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

func newTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}
