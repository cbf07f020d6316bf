package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/excellacademy/academia/core/school"
	"github.com/excellacademy/academia/core/user"
)

type schoolApi struct {
	svc      *school.Service
	validate *validator.Validate
}

func registerSchoolAPI(g *echo.Group, deps ServerDeps) {
	api := schoolApi{svc: deps.SchoolSvc, validate: deps.Validate}

	g.POST("/classes", api.createClass)
	g.GET("/classes", api.queryClasses)
	g.GET("/classes/:id", api.retrieveClass)
	g.GET("/classes/:id/students", api.classStudents)

	g.POST("/subjects", api.createSubject)
	g.GET("/subjects", api.querySubjects)

	g.POST("/parents", api.registerParent)
	g.POST("/teachers", api.registerTeacher)
	g.PUT("/teachers/:id/assignment", api.assignTeacher)
	g.POST("/students", api.registerStudent)
	g.GET("/students", api.queryStudents)
	g.GET("/students/:id", api.retrieveStudent)
	g.PUT("/students/:id/class", api.transferStudent)
}

// studentResource describes a resource of kind about a student, with the class the student is in.
func studentResource(ctx echo.Context, svc *school.Service, kind user.ResourceKind, studentID string) (user.Resource, error) {
	s, err := svc.Student(ctx.Request().Context(), studentID)
	if err != nil {
		return user.Resource{}, errors.Wrap(err, "getting student")
	}
	return user.Resource{Kind: kind, StudentID: s.ID, ClassID: s.ClassID}, nil
}

func (api *schoolApi) createClass(ctx echo.Context) error {
	if _, err := authorize(ctx, user.ActionCreate, user.Resource{Kind: user.ResourceClass}); err != nil {
		return err
	}
	var data school.NewClass
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewClass")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	cls, err := api.svc.CreateClass(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating class")
	}
	return ctx.JSON(http.StatusCreated, cls)
}

func (api *schoolApi) queryClasses(ctx echo.Context) error {
	if _, err := authorize(ctx, user.ActionView, user.Resource{Kind: user.ResourceClass}); err != nil {
		return err
	}
	filter := school.ClassFilter{AcademicYear: ctx.QueryParam("academic_year")}

	classes, err := api.svc.Classes(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying classes")
	}
	if classes == nil {
		classes = []school.Class{}
	}
	return ctx.JSON(http.StatusOK, classes)
}

func (api *schoolApi) retrieveClass(ctx echo.Context) error {
	if _, err := authorize(ctx, user.ActionView, user.Resource{Kind: user.ResourceClass, ClassID: ctx.Param("id")}); err != nil {
		return err
	}
	cls, err := api.svc.Class(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting class")
	}
	return ctx.JSON(http.StatusOK, cls)
}

func (api *schoolApi) classStudents(ctx echo.Context) error {
	classID := ctx.Param("id")
	if _, err := authorize(ctx, user.ActionView, user.Resource{Kind: user.ResourceProfile, ClassID: classID}); err != nil {
		return err
	}
	if _, err := api.svc.Class(ctx.Request().Context(), classID); err != nil {
		return errors.Wrap(err, "getting class")
	}
	return api.students(ctx, school.StudentFilter{ClassID: classID})
}

func (api *schoolApi) createSubject(ctx echo.Context) error {
	if _, err := authorize(ctx, user.ActionCreate, user.Resource{Kind: user.ResourceSubject}); err != nil {
		return err
	}
	var data school.NewSubject
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewSubject")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	sub, err := api.svc.CreateSubject(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating subject")
	}
	return ctx.JSON(http.StatusCreated, sub)
}

func (api *schoolApi) querySubjects(ctx echo.Context) error {
	if _, err := authorize(ctx, user.ActionView, user.Resource{Kind: user.ResourceSubject}); err != nil {
		return err
	}
	subjects, err := api.svc.Subjects(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying subjects")
	}
	if subjects == nil {
		subjects = []school.Subject{}
	}
	return ctx.JSON(http.StatusOK, subjects)
}

func (api *schoolApi) registerParent(ctx echo.Context) error {
	if _, err := authorize(ctx, user.ActionCreate, user.Resource{Kind: user.ResourceProfile}); err != nil {
		return err
	}
	var data school.NewParent
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewParent")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	p, err := api.svc.RegisterParent(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "registering parent")
	}
	return ctx.JSON(http.StatusCreated, p)
}

func (api *schoolApi) registerTeacher(ctx echo.Context) error {
	if _, err := authorize(ctx, user.ActionCreate, user.Resource{Kind: user.ResourceProfile}); err != nil {
		return err
	}
	var data school.NewTeacher
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewTeacher")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	t, err := api.svc.RegisterTeacher(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "registering teacher")
	}
	return ctx.JSON(http.StatusCreated, t)
}

func (api *schoolApi) assignTeacher(ctx echo.Context) error {
	if _, err := authorize(ctx, user.ActionUpdate, user.Resource{Kind: user.ResourceProfile}); err != nil {
		return err
	}
	var data school.TeacherAssignment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to TeacherAssignment")
	}
	if err := api.validate.Struct(data); err != nil {
		return err
	}

	t, err := api.svc.AssignTeacher(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "assigning teacher")
	}
	return ctx.JSON(http.StatusOK, t)
}

func (api *schoolApi) transferStudent(ctx echo.Context) error {
	if _, err := authorize(ctx, user.ActionUpdate, user.Resource{Kind: user.ResourceProfile}); err != nil {
		return err
	}
	var data school.StudentTransfer
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to StudentTransfer")
	}
	if err := api.validate.Struct(data); err != nil {
		return err
	}

	s, err := api.svc.TransferStudent(ctx.Request().Context(), ctx.Param("id"), data.ClassID)
	if err != nil {
		return errors.Wrap(err, "transferring student")
	}
	return ctx.JSON(http.StatusOK, s)
}

func (api *schoolApi) registerStudent(ctx echo.Context) error {
	if _, err := authorize(ctx, user.ActionCreate, user.Resource{Kind: user.ResourceProfile}); err != nil {
		return err
	}
	var data school.NewStudent
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewStudent")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	s, err := api.svc.RegisterStudent(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "registering student")
	}
	return ctx.JSON(http.StatusCreated, s)
}

func (api *schoolApi) queryStudents(ctx echo.Context) error {
	filter := school.StudentFilter{ClassID: ctx.QueryParam("class_id"), ParentID: ctx.QueryParam("parent_id")}
	res := user.Resource{Kind: user.ResourceProfile}
	if filter.ParentID == "" {
		res.ClassID = filter.ClassID
	}
	if _, err := authorize(ctx, user.ActionView, res); err != nil {
		return err
	}
	return api.students(ctx, filter)
}

func (api *schoolApi) students(ctx echo.Context, filter school.StudentFilter) error {
	students, err := api.svc.Students(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying students")
	}
	if students == nil {
		students = []school.Student{}
	}
	return ctx.JSON(http.StatusOK, students)
}

func (api *schoolApi) retrieveStudent(ctx echo.Context) error {
	res, err := studentResource(ctx, api.svc, user.ResourceProfile, ctx.Param("id"))
	if err != nil {
		return err
	}
	if _, err = authorize(ctx, user.ActionView, res); err != nil {
		return err
	}

	s, err := api.svc.Student(ctx.Request().Context(), res.StudentID)
	if err != nil {
		return errors.Wrap(err, "getting student")
	}
	return ctx.JSON(http.StatusOK, s)
}
