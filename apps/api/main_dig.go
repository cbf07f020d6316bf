package main

import (
	"log"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"

	"github.com/excellacademy/academia/apps/api/di/dig"
	"github.com/excellacademy/academia/apps/api/echo"
	"github.com/excellacademy/academia/core"
	"github.com/excellacademy/academia/services/scheduler"
)

func startWithDig() {
	c := dig_container.New()

	must(c.Invoke(func(
		conf *core.Config,
		apiLogger core.Logger,
		dbLoggerParam dig_container.DBLoggerParam,
		db *sqlx.DB,
		validate *validator.Validate,
		translator ut.Translator,
		server *echoapi.Server,
		jobs *scheduler.Scheduler,
	) {
		run(app{
			conf:       conf,
			logger:     apiLogger,
			dbLogger:   dbLoggerParam.Logger,
			db:         db,
			validate:   validate,
			translator: translator,
			server:     server,
			scheduler:  jobs,
		})
	}))
}

func must(err error) {
	if err != nil {
		log.Fatal(err)
	}
}
