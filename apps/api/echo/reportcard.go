package echoapi

import (
	"fmt"
	"net/http"
	"path"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/excellacademy/academia/core/reportcard"
	"github.com/excellacademy/academia/core/school"
	"github.com/excellacademy/academia/core/user"
)

type reportCardApi struct {
	svc      *reportcard.Service
	schools  *school.Service
	validate *validator.Validate
}

func registerReportCardAPI(g *echo.Group, deps ServerDeps) {
	api := reportCardApi{svc: deps.ReportCardSvc, schools: deps.SchoolSvc, validate: deps.Validate}

	g.POST("/classes/:id/report-cards", api.generate)
	g.GET("/report-cards", api.query)

	dg := g.Group("/report-cards/:id", api.objectMiddleware)
	dg.GET("", api.retrieve)
	dg.POST("/finalize", api.finalize)
	dg.GET("/pdf", api.download)
}

// generate (re)computes the draft report cards of a class for a period.
func (api *reportCardApi) generate(ctx echo.Context) error {
	classID := ctx.Param("id")
	actor, err := authorize(ctx, user.ActionCreate, user.Resource{Kind: user.ResourceReportCard, ClassID: classID})
	if err != nil {
		return err
	}
	var data PeriodRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to PeriodRequest")
	}
	period, err := data.Period(api.validate)
	if err != nil {
		return err
	}

	res, err := api.svc.Generate(ctx.Request().Context(), classID, period, actor.User.ID)
	if err != nil {
		return errors.Wrap(err, "generating report cards")
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *reportCardApi) query(ctx echo.Context) error {
	var (
		filter reportcard.QueryFilter
		err    error
	)
	if filter.Period, err = optionalPeriod(ctx, api.validate); err != nil {
		return err
	}
	if filter.Finalized, err = queryBool(ctx, "finalized"); err != nil {
		return err
	}

	if classID := ctx.QueryParam("class_id"); classID != "" {
		filter.ClassID = classID
		if _, err = authorize(ctx, user.ActionView, user.Resource{Kind: user.ResourceReportCard, ClassID: classID}); err != nil {
			return err
		}
	} else if filter.StudentIDs, err = studentScope(ctx, user.ResourceReportCard, ctx.QueryParam("student_id")); err != nil {
		return err
	}

	recs, err := api.svc.Query(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying report cards")
	}
	if recs == nil {
		recs = []reportcard.Record{}
	}
	return ctx.JSON(http.StatusOK, recs)
}

func (api *reportCardApi) retrieve(ctx echo.Context) error {
	rec := ctx.Get("object").(reportcard.Record)
	return ctx.JSON(http.StatusOK, rec)
}

// finalize renders and stores the document, then freezes the report card.
// A rendering or storage failure leaves the report card a draft.
func (api *reportCardApi) finalize(ctx echo.Context) error {
	rec := ctx.Get("object").(reportcard.Record)
	if _, err := authorize(ctx, user.ActionFinalize, reportCardResource(rec)); err != nil {
		return err
	}

	rec, err := api.svc.Finalize(ctx.Request().Context(), rec.ID)
	if err != nil {
		return errors.Wrap(err, "finalizing report card")
	}
	return ctx.JSON(http.StatusOK, rec)
}

func (api *reportCardApi) download(ctx echo.Context) error {
	rec := ctx.Get("object").(reportcard.Record)

	content, rec, err := api.svc.Document(ctx.Request().Context(), rec.ID)
	if err != nil {
		return errors.Wrap(err, "loading report card document")
	}
	name := path.Base(reportcard.DocumentName(rec.StudentID, rec.Period()))
	ctx.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", name))
	return ctx.Blob(http.StatusOK, "application/pdf", content)
}

// objectMiddleware loads the report card of the path and checks the actor may view it.
func (api *reportCardApi) objectMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		rec, err := api.svc.Get(ctx.Request().Context(), ctx.Param("id"))
		if err != nil {
			return errors.Wrap(err, "getting report card")
		}
		if _, err = authorize(ctx, user.ActionView, reportCardResource(rec)); err != nil {
			return err
		}
		ctx.Set("object", rec)
		return next(ctx)
	}
}

func reportCardResource(rec reportcard.Record) user.Resource {
	return user.Resource{Kind: user.ResourceReportCard, StudentID: rec.StudentID, ClassID: rec.ClassID}
}
