package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/excellacademy/academia/core"
	"github.com/excellacademy/academia/core/finance"
	"github.com/excellacademy/academia/core/school"
	"github.com/excellacademy/academia/core/user"
)

type financeApi struct {
	svc      *finance.Service
	schools  *school.Service
	validate *validator.Validate
}

func registerFinanceAPI(g *echo.Group, deps ServerDeps) {
	api := financeApi{svc: deps.FinanceSvc, schools: deps.SchoolSvc, validate: deps.Validate}

	g.POST("/fee-structures", api.createFeeStructure)
	g.GET("/fee-structures", api.queryFeeStructures)
	g.GET("/fee-structures/:id", api.retrieveFeeStructure)
	g.POST("/fee-structures/:id/invoices", api.generateInvoices)

	g.POST("/invoices", api.createInvoice)
	g.GET("/invoices", api.queryInvoices)
	g.GET("/invoices/summary", api.invoiceSummary)

	dg := g.Group("/invoices/:id", api.invoiceMiddleware)
	dg.GET("", api.retrieveInvoice)
	dg.GET("/payments", api.invoicePayments)
	dg.POST("/payments", api.recordPayment)
	dg.POST("/checkout", api.checkout)
	dg.POST("/verify", api.verify)

	g.GET("/payments", api.queryPayments)
}

func (api *financeApi) createFeeStructure(ctx echo.Context) error {
	if _, err := authorize(ctx, user.ActionCreate, user.Resource{Kind: user.ResourceFeeStructure}); err != nil {
		return err
	}
	var data finance.NewFeeStructure
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewFeeStructure")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	fee, err := api.svc.CreateFeeStructure(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating fee structure")
	}
	return ctx.JSON(http.StatusCreated, fee)
}

func (api *financeApi) queryFeeStructures(ctx echo.Context) error {
	if _, err := authorize(ctx, user.ActionView, user.Resource{Kind: user.ResourceFeeStructure}); err != nil {
		return err
	}
	filter := finance.FeeFilter{
		ClassID:      ctx.QueryParam("class_id"),
		AcademicYear: ctx.QueryParam("academic_year"),
		Term:         ctx.QueryParam("term"),
	}

	fees, err := api.svc.FeeStructures(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying fee structures")
	}
	if fees == nil {
		fees = []finance.FeeStructure{}
	}
	return ctx.JSON(http.StatusOK, fees)
}

func (api *financeApi) retrieveFeeStructure(ctx echo.Context) error {
	if _, err := authorize(ctx, user.ActionView, user.Resource{Kind: user.ResourceFeeStructure}); err != nil {
		return err
	}
	fee, err := api.svc.FeeStructure(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting fee structure")
	}
	return ctx.JSON(http.StatusOK, fee)
}

// generateInvoices bills the fee structure to every student of its class.
func (api *financeApi) generateInvoices(ctx echo.Context) error {
	if _, err := authorize(ctx, user.ActionCreate, user.Resource{Kind: user.ResourceInvoice}); err != nil {
		return err
	}
	out, err := api.svc.GenerateInvoices(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "generating invoices")
	}
	return ctx.JSON(http.StatusOK, out)
}

func (api *financeApi) createInvoice(ctx echo.Context) error {
	if _, err := authorize(ctx, user.ActionCreate, user.Resource{Kind: user.ResourceInvoice}); err != nil {
		return err
	}
	var data NewInvoiceRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewInvoiceRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	if _, err := api.schools.Student(ctx.Request().Context(), data.StudentID); err != nil {
		return fieldNotFound(err, school.ErrStudentNotFound, "student_id")
	}

	inv, err := api.svc.CreateInvoice(ctx.Request().Context(), data.StudentID, data.FeeStructureID)
	if err != nil {
		return fieldNotFound(errors.Wrap(err, "creating invoice"), finance.ErrFeeNotFound, "fee_structure_id")
	}
	return ctx.JSON(http.StatusCreated, inv)
}

func (api *financeApi) queryInvoices(ctx echo.Context) error {
	studentIDs, err := studentScope(ctx, user.ResourceInvoice, ctx.QueryParam("student_id"))
	if err != nil {
		return err
	}
	filter := finance.InvoiceFilter{StudentIDs: studentIDs, FeeStructureID: ctx.QueryParam("fee_structure_id")}
	for _, s := range ctx.QueryParams()["status"] {
		filter.Statuses = append(filter.Statuses, finance.InvoiceStatus(core.CleanString(s, true /* lower */)))
	}

	invoices, err := api.svc.Invoices(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying invoices")
	}
	if invoices == nil {
		invoices = []finance.Invoice{}
	}
	return ctx.JSON(http.StatusOK, invoices)
}

func (api *financeApi) invoiceSummary(ctx echo.Context) error {
	if _, err := authorize(ctx, user.ActionView, user.Resource{Kind: user.ResourceInvoice}); err != nil {
		return err
	}
	summary, err := api.svc.StatusSummary(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "summarizing invoices")
	}
	return ctx.JSON(http.StatusOK, summary)
}

func (api *financeApi) retrieveInvoice(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, ctx.Get("object").(finance.Invoice))
}

func (api *financeApi) invoicePayments(ctx echo.Context) error {
	inv := ctx.Get("object").(finance.Invoice)
	if _, err := authorize(ctx, user.ActionView, user.Resource{Kind: user.ResourcePayment, StudentID: inv.StudentID}); err != nil {
		return err
	}
	return api.payments(ctx, finance.PaymentFilter{InvoiceID: inv.ID})
}

// recordPayment records a payment confirmed by the bursary (cash, bank transfer...).
func (api *financeApi) recordPayment(ctx echo.Context) error {
	inv := ctx.Get("object").(finance.Invoice)
	actor, err := authorize(ctx, user.ActionCreate, user.Resource{Kind: user.ResourcePayment, StudentID: inv.StudentID})
	if err != nil {
		return err
	}
	var data finance.NewPayment
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewPayment")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	out, err := api.svc.RecordPayment(ctx.Request().Context(), inv.ID, data, actor.User.ID)
	if err != nil {
		return errors.Wrap(err, "recording payment")
	}
	return ctx.JSON(http.StatusCreated, out)
}

// checkout starts a gateway payment of the invoice balance.
func (api *financeApi) checkout(ctx echo.Context) error {
	inv := ctx.Get("object").(finance.Invoice)
	if _, err := authorize(ctx, user.ActionPay, user.Resource{Kind: user.ResourceInvoice, StudentID: inv.StudentID}); err != nil {
		return err
	}

	checkout, err := api.svc.InitializePayment(ctx.Request().Context(), inv.ID)
	if err != nil {
		return errors.Wrap(err, "initializing payment")
	}
	return ctx.JSON(http.StatusOK, checkout)
}

// verify confirms a gateway payment. Verifying the same reference twice records it once.
func (api *financeApi) verify(ctx echo.Context) error {
	inv := ctx.Get("object").(finance.Invoice)
	if _, err := authorize(ctx, user.ActionPay, user.Resource{Kind: user.ResourceInvoice, StudentID: inv.StudentID}); err != nil {
		return err
	}
	var data VerifyPaymentRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to VerifyPaymentRequest")
	}

	out, err := api.svc.ReconcileWithGateway(ctx.Request().Context(), inv.ID, data.Reference)
	if err != nil {
		return errors.Wrap(err, "verifying payment")
	}
	return ctx.JSON(http.StatusOK, out)
}

func (api *financeApi) queryPayments(ctx echo.Context) error {
	studentIDs, err := studentScope(ctx, user.ResourcePayment, ctx.QueryParam("student_id"))
	if err != nil {
		return err
	}
	return api.payments(ctx, finance.PaymentFilter{StudentIDs: studentIDs})
}

func (api *financeApi) payments(ctx echo.Context, filter finance.PaymentFilter) error {
	pmts, err := api.svc.Payments(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying payments")
	}
	if pmts == nil {
		pmts = []finance.Payment{}
	}
	return ctx.JSON(http.StatusOK, pmts)
}

// invoiceMiddleware loads the invoice of the path and checks the actor may view it.
func (api *financeApi) invoiceMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		inv, err := api.svc.Invoice(ctx.Request().Context(), ctx.Param("id"))
		if err != nil {
			return errors.Wrap(err, "getting invoice")
		}
		if _, err = authorize(ctx, user.ActionView, user.Resource{Kind: user.ResourceInvoice, StudentID: inv.StudentID}); err != nil {
			return err
		}
		ctx.Set("object", inv)
		return next(ctx)
	}
}

// fieldNotFound reports a missing reference of the request body as a validation error of field.
func fieldNotFound(err, notFound error, field string) error {
	if errors.Is(err, notFound) {
		return core.NewValidationError(notFound, core.FieldError{Field: field, Error: notFound.Error()})
	}
	return err
}

type (
	NewInvoiceRequest struct {
		StudentID      string `json:"student_id" validate:"required"`
		FeeStructureID string `json:"fee_structure_id" validate:"required"`
	}

	VerifyPaymentRequest struct {
		Reference string `json:"reference"`
	}
)

func (nr *NewInvoiceRequest) Validate(validate *validator.Validate) error {
	nr.StudentID = core.CleanString(nr.StudentID)
	nr.FeeStructureID = core.CleanString(nr.FeeStructureID)
	return validate.Struct(nr)
}
