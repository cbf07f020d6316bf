package main

import (
	"context"
	"expvar"
	"flag"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"

	"github.com/excellacademy/academia/apps/api/echo"
	"github.com/excellacademy/academia/core"
	"github.com/excellacademy/academia/core/user"
	"github.com/excellacademy/academia/fs"
	"github.com/excellacademy/academia/services/scheduler"
)

type app struct {
	conf       *core.Config
	logger     core.Logger
	dbLogger   core.Logger
	db         *sqlx.DB
	validate   *validator.Validate
	translator ut.Translator
	server     *echoapi.Server
	scheduler  *scheduler.Scheduler
}

func main() {
	wiring := flag.String("di", "dig", "dependency wiring: dig | manual")
	flag.Parse()

	switch *wiring {
	case "dig":
		startWithDig()
	case "manual":
		startManual()
	default:
		log.Fatalf("unknown wiring %q", *wiring)
	}
}

func run(a app) {
	// =========================================================================
	// Initialize App

	a.logger.Info(fmt.Sprintf("Application initializing : version %q", a.conf.Build))

	core.InitValidators(a.validate, a.translator)
	user.InitValidators(a.validate, a.translator)

	core.ParseEmailTemplates(appfs.FS, appfs.EmailTemplatesDir, a.conf, a.logger)

	user.LoadCommonPasswords(appfs.FS, appfs.CommonPasswordsFile, a.logger)

	defer func() {
		if err := a.db.Close(); err != nil {
			a.dbLogger.Fatal("Failed to close", err)
		}
	}()
	defer a.logger.Info("Application stopped")

	// =========================================================================
	// Start Debug Service
	//
	// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
	// /debug/vars - Added to the default mux by importing the expvar package.

	// Expose important info under /debug/vars.
	expvar.NewString("build").Set(a.conf.Build)
	expvar.NewString("env").Set(a.conf.Env)

	go func() {
		if err := http.ListenAndServe(a.conf.Server.DebugHost, http.DefaultServeMux); err != nil {
			a.logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
	}()

	// =========================================================================
	// Start Maintenance Jobs

	jobsCtx, stopJobs := context.WithCancel(context.Background())
	defer stopJobs()
	go a.scheduler.Start(jobsCtx)

	// =========================================================================
	// Start API Service

	go func() {
		a.server.Start()
	}()

	// =========================================================================
	// Shutdown

	select {
	case err := <-a.server.Errors():
		a.logger.Fatal(fmt.Sprintf("server error: %v", err), err)

	case sig := <-a.server.ShutdownSignal():
		a.logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))
		stopJobs()

		// give outstanding requests a deadline for completion
		ctx, cancel := context.WithTimeout(context.Background(), a.conf.Server.ShutdownTimeout)
		defer cancel()

		// asking listener to shut down and shed load
		if err := a.server.Shutdown(ctx); err != nil {
			a.logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

			if err = a.server.Close(); err != nil {
				a.logger.Fatal(fmt.Sprintf("could not force stop server: %v", err), err)
			}
		}
	}
}
