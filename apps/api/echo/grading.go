package echoapi

import (
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/excellacademy/academia/core"
	"github.com/excellacademy/academia/core/grading"
	"github.com/excellacademy/academia/core/school"
	"github.com/excellacademy/academia/core/user"
)

type gradingApi struct {
	svc      *grading.Service
	schools  *school.Service
	validate *validator.Validate
}

func registerGradingAPI(g *echo.Group, deps ServerDeps) {
	api := gradingApi{svc: deps.GradingSvc, schools: deps.SchoolSvc, validate: deps.Validate}

	g.POST("/scores", api.record)
	g.GET("/students/:id/scores", api.studentScores)
	g.GET("/classes/:id/performance", api.classPerformance)
}

// record saves a score sheet. The recorder must be allowed to score the subject for every student of the sheet.
func (api *gradingApi) record(ctx echo.Context) error {
	var data grading.ScoreSheet
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ScoreSheet")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}
	for i, line := range data.Lines {
		s, err := api.schools.Student(ctx.Request().Context(), line.StudentID)
		if errors.Is(err, school.ErrStudentNotFound) {
			return core.NewValidationError(err, core.FieldError{Field: fmt.Sprintf("lines[%d].student_id", i), Error: err.Error()})
		}
		if err != nil {
			return errors.Wrap(err, "getting student")
		}
		res := user.Resource{Kind: user.ResourceScore, StudentID: s.ID, ClassID: s.ClassID, SubjectID: data.SubjectID}
		if _, err = authorize(ctx, user.ActionUpdate, res); err != nil {
			return err
		}
	}

	entries, err := api.svc.RecordScores(ctx.Request().Context(), data, actor.User.ID)
	if err != nil {
		return errors.Wrap(err, "recording scores")
	}
	return ctx.JSON(http.StatusOK, entries)
}

func (api *gradingApi) studentScores(ctx echo.Context) error {
	res, err := studentResource(ctx, api.schools, user.ResourceScore, ctx.Param("id"))
	if err != nil {
		return err
	}
	if _, err = authorize(ctx, user.ActionView, res); err != nil {
		return err
	}
	period, err := bindPeriod(ctx, api.validate)
	if err != nil {
		return err
	}

	entries, err := api.svc.StudentScores(ctx.Request().Context(), res.StudentID, period)
	if err != nil {
		return errors.Wrap(err, "querying scores")
	}
	resp := StudentScoresResponse{StudentID: res.StudentID, Period: period, Scores: entries}
	if resp.Scores == nil {
		resp.Scores = []grading.ScoreEntry{}
	}
	if len(entries) > 0 {
		totals, err := grading.Aggregate(entries)
		if err != nil {
			return errors.Wrap(err, "aggregating scores")
		}
		resp.Totals = &totals
		resp.Grade = grading.Classify(totals.Percentage)
	}
	return ctx.JSON(http.StatusOK, resp)
}

func (api *gradingApi) classPerformance(ctx echo.Context) error {
	classID := ctx.Param("id")
	if _, err := authorize(ctx, user.ActionView, user.Resource{Kind: user.ResourceScore, ClassID: classID}); err != nil {
		return err
	}
	period, err := bindPeriod(ctx, api.validate)
	if err != nil {
		return err
	}

	perf, err := api.svc.ClassPerformance(ctx.Request().Context(), classID, period)
	if err != nil {
		return errors.Wrap(err, "computing class performance")
	}
	return ctx.JSON(http.StatusOK, perf)
}

type StudentScoresResponse struct {
	StudentID string               `json:"student_id"`
	Period    grading.Period       `json:"period"`
	Scores    []grading.ScoreEntry `json:"scores"`
	Totals    *grading.Totals      `json:"totals"`
	Grade     grading.Grade        `json:"grade,omitempty"`
}
