package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/excellacademy/academia/core"
	"github.com/excellacademy/academia/core/finance"
	"github.com/excellacademy/academia/core/grading"
	"github.com/excellacademy/academia/core/notification"
	"github.com/excellacademy/academia/core/reportcard"
	"github.com/excellacademy/academia/core/school"
	"github.com/excellacademy/academia/core/user"
	"github.com/excellacademy/academia/fs"
	"github.com/excellacademy/academia/services/email"
	"github.com/excellacademy/academia/services/logger"
	"github.com/excellacademy/academia/services/payment"
	"github.com/excellacademy/academia/services/pdf"
	"github.com/excellacademy/academia/services/storage"
	"github.com/excellacademy/academia/storage/database"
	"github.com/excellacademy/academia/storage/database/sqlx"
)

func main() {
	conf := core.NewConfig()
	logger := logsvc.NewRollbarLogger(os.Stderr, conf)
	logger.Enable(!conf.Debug && conf.RollbarToken != "")

	errAndDie := func(msg string, err error) {
		if err != nil {
			logger.Fatal(fmt.Sprintf("%s: %v", msg, err), err)
		}
	}

	// set up DB
	db, err := database.Open(conf)
	errAndDie("opening database", err)
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	err = database.StatusCheck(ctx, db)
	cancel()
	errAndDie("checking database", err)

	// set up collaborators
	core.ParseEmailTemplates(appfs.FS, appfs.EmailTemplatesDir, conf, logger)
	var mailSvc core.EmailService
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService(os.Stdout, conf, logger)
	} else {
		mailSvc = emailsvc.NewSendgridService(conf, logger)
	}
	gateway, err := paymentsvc.NewGateway(conf, logger)
	errAndDie("setting up payment gateway", err)
	docStore, err := storagesvc.NewDocumentStore(conf)
	errAndDie("setting up document store", err)

	// set up services
	usrRepo := sqlxrepos.NewUserRepository(db)
	usrSvc := user.NewService(usrRepo)
	schoolSvc := school.NewService(sqlxrepos.NewSchoolRepository(db), usrSvc)
	inbox := notification.NewService(sqlxrepos.NewNotificationRepository(db), usrSvc)
	reportCardRepo := sqlxrepos.NewReportCardRepository(db)
	gradingSvc := grading.NewService(sqlxrepos.NewGradingRepository(db), schoolSvc, reportcard.NewLocker(reportCardRepo))

	// start CLI
	cli := commandLine{
		db:          db,
		usrRepo:     usrRepo,
		reportCards: reportcard.NewService(reportCardRepo, gradingSvc, schoolSvc, pdfsvc.NewRenderer(logger), docStore, conf, logger),
		finance:     finance.NewService(sqlxrepos.NewFinanceRepository(db), schoolSvc, gateway, schoolSvc, mailSvc, inbox, conf, logger),
		out:         os.Stdout,
		now:         time.Now,
	}
	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			logger.Error(fmt.Sprintf("command failed: %v", err), err)
			fmt.Fprintf(os.Stderr, "\nerror: %s\n", err)
		}
		db.Close()
		os.Exit(1)
	}
}
