package echoapi

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/excellacademy/academia/core"
	"github.com/excellacademy/academia/core/grading"
)

const (
	orderingParam = "ordering"
	dateLayout    = "2006-01-02"
)

type Ordering struct {
	Orderings []core.DBOrdering
}

func (ord *Ordering) Bind(ctx echo.Context) {
	val := ctx.QueryParam(orderingParam)
	if val == "" {
		return
	}

	for _, field := range strings.Split(val, ",") {
		field = strings.TrimSpace(field)
		descending := strings.HasPrefix(field, "-")
		if descending {
			field = field[1:] // drop "-"
		}
		ord.Orderings = append(ord.Orderings, core.DBOrdering{Field: field, Ascending: !descending})
	}
}

// bindPeriod reads the term and academic_year query params.
func bindPeriod(ctx echo.Context, validate *validator.Validate) (grading.Period, error) {
	p := grading.Period{
		Term:         ctx.QueryParam("term"),
		AcademicYear: ctx.QueryParam("academic_year"),
	}
	p.Clean()
	return p, p.Validate(validate)
}

// optionalPeriod is bindPeriod when both params are given, nil when neither is.
func optionalPeriod(ctx echo.Context, validate *validator.Validate) (*grading.Period, error) {
	if ctx.QueryParam("term") == "" && ctx.QueryParam("academic_year") == "" {
		return nil, nil
	}
	p, err := bindPeriod(ctx, validate)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// queryDate parses the date query param name. A missing param gives def.
func queryDate(ctx echo.Context, name string, def time.Time) (time.Time, error) {
	val := strings.TrimSpace(ctx.QueryParam(name))
	if val == "" {
		return def, nil
	}
	d, err := time.Parse(dateLayout, val)
	if err != nil {
		return d, core.NewValidationError(err, core.FieldError{Field: name, Error: "must be a date like 2006-01-02"})
	}
	return d, nil
}

// queryBool parses the boolean query param name, nil when missing.
func queryBool(ctx echo.Context, name string) (*bool, error) {
	switch strings.ToLower(strings.TrimSpace(ctx.QueryParam(name))) {
	case "":
		return nil, nil
	case "1", "true", "yes":
		b := true
		return &b, nil
	case "0", "false", "no":
		b := false
		return &b, nil
	}
	return nil, core.NewValidationError(nil, core.FieldError{Field: name, Error: "must be true or false"})
}

type (
	SuccessResponse struct {
		Success string `json:"success"`
	}

	PeriodRequest struct {
		Term         string `json:"term"`
		AcademicYear string `json:"academic_year"`
	}
)

func (pr PeriodRequest) Period(validate *validator.Validate) (grading.Period, error) {
	p := grading.Period{Term: pr.Term, AcademicYear: pr.AcademicYear}
	p.Clean()
	return p, p.Validate(validate)
}
