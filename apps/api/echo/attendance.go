package echoapi

import (
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/excellacademy/academia/core/attendance"
	"github.com/excellacademy/academia/core/school"
	"github.com/excellacademy/academia/core/user"
)

type attendanceApi struct {
	svc      *attendance.Service
	schools  *school.Service
	validate *validator.Validate
}

func registerAttendanceAPI(g *echo.Group, deps ServerDeps) {
	api := attendanceApi{svc: deps.AttendanceSvc, schools: deps.SchoolSvc, validate: deps.Validate}

	g.POST("/attendance", api.mark)
	g.GET("/attendance", api.query)
	g.GET("/classes/:id/attendance-summary", api.summary)
}

func (api *attendanceApi) mark(ctx echo.Context) error {
	var data attendance.Sheet
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to attendance.Sheet")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	actor, err := authorize(ctx, user.ActionUpdate, user.Resource{Kind: user.ResourceAttendance, ClassID: data.ClassID})
	if err != nil {
		return err
	}

	recs, err := api.svc.Mark(ctx.Request().Context(), data, actor.User.ID)
	if err != nil {
		return errors.Wrap(err, "marking attendance")
	}
	return ctx.JSON(http.StatusOK, recs)
}

// query lists the records of a student (student_id) or a class (class_id) between from and to.
func (api *attendanceApi) query(ctx echo.Context) error {
	var (
		filter attendance.QueryFilter
		res    user.Resource
		err    error
	)
	if studentID := ctx.QueryParam("student_id"); studentID != "" {
		if res, err = studentResource(ctx, api.schools, user.ResourceAttendance, studentID); err != nil {
			return err
		}
		filter.StudentIDs = []string{studentID}
	} else {
		filter.ClassID = ctx.QueryParam("class_id")
		res = user.Resource{Kind: user.ResourceAttendance, ClassID: filter.ClassID}
	}
	if _, err = authorize(ctx, user.ActionView, res); err != nil {
		return err
	}

	if filter.From, err = queryDate(ctx, "from", time.Time{}); err != nil {
		return err
	}
	if filter.To, err = queryDate(ctx, "to", time.Time{}); err != nil {
		return err
	}

	recs, err := api.svc.Records(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying attendance")
	}
	if recs == nil {
		recs = []attendance.Record{}
	}
	return ctx.JSON(http.StatusOK, recs)
}

func (api *attendanceApi) summary(ctx echo.Context) error {
	classID := ctx.Param("id")
	if _, err := authorize(ctx, user.ActionView, user.Resource{Kind: user.ResourceAttendance, ClassID: classID}); err != nil {
		return err
	}
	today := time.Now().UTC().Truncate(24 * time.Hour)
	date, err := queryDate(ctx, "date", today)
	if err != nil {
		return err
	}

	sum, err := api.svc.Summary(ctx.Request().Context(), classID, date)
	if err != nil {
		return errors.Wrap(err, "summarizing attendance")
	}
	return ctx.JSON(http.StatusOK, sum)
}
