package finance

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/volatiletech/null/v8"

	"github.com/excellacademy/academia/core"
)

const DateLayout = "2006-01-02"

type InvoiceStatus string

const (
	StatusPending InvoiceStatus = "pending"
	StatusPartial InvoiceStatus = "partial"
	StatusPaid    InvoiceStatus = "paid"
	StatusOverdue InvoiceStatus = "overdue"
)

var InvoiceStatuses = []InvoiceStatus{StatusPending, StatusPartial, StatusPaid, StatusOverdue}

type PaymentMethod string

const (
	MethodBankTransfer PaymentMethod = "bank_transfer"
	MethodMobileMoney  PaymentMethod = "mobile_money"
	MethodGateway      PaymentMethod = "gateway"
	MethodCash         PaymentMethod = "cash"
	MethodBankDeposit  PaymentMethod = "bank_deposit"
)

// FeeStructure is the fee of a class for a term. There is at most one per (class, academic year, term).
type FeeStructure struct {
	ID           string          `json:"id"`
	ClassID      string          `json:"class_id"`
	AcademicYear string          `json:"academic_year"`
	Term         string          `json:"term"`
	Amount       decimal.Decimal `json:"amount"`
	DueDate      time.Time       `json:"due_date"`
	LateFee      decimal.Decimal `json:"late_fee"`
	Active       bool            `json:"active"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

type NewFeeStructure struct {
	ClassID      string `json:"class_id" validate:"required"`
	AcademicYear string `json:"academic_year" validate:"required,academic_year"`
	Term         string `json:"term" validate:"required,max=20"`
	Amount       string `json:"amount" validate:"required,decimal"`
	DueDate      string `json:"due_date" validate:"required,datetime=2006-01-02"`
	LateFee      string `json:"late_fee" validate:"omitempty,decimal"`
}

func (nf *NewFeeStructure) Validate(validate *validator.Validate) error {
	nf.ClassID = core.CleanString(nf.ClassID)
	nf.AcademicYear = core.CleanString(nf.AcademicYear)
	nf.Term = core.CleanString(nf.Term)
	nf.Amount = core.CleanString(nf.Amount)
	nf.DueDate = core.CleanString(nf.DueDate)
	nf.LateFee = core.CleanString(nf.LateFee)
	return validate.Struct(nf)
}

type FeeFilter struct {
	ClassID      string `query:"class_id"`
	AcademicYear string `query:"academic_year"`
	Term         string `query:"term"`
}

// Invoice bills a FeeStructure to a student. There is at most one per (student, fee structure).
// Status and AmountPaid only change through recorded Payments.
type Invoice struct {
	ID               string          `json:"id"`
	Number           string          `json:"number"`
	StudentID        string          `json:"student_id"`
	FeeStructureID   string          `json:"fee_structure_id"`
	AmountDue        decimal.Decimal `json:"amount_due"`
	AmountPaid       decimal.Decimal `json:"amount_paid"`
	Status           InvoiceStatus   `json:"status"`
	IssueDate        time.Time       `json:"issue_date"`
	DueDate          time.Time       `json:"due_date"`
	GatewayReference string          `json:"gateway_reference"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

func (inv Invoice) Balance() decimal.Decimal {
	if b := inv.AmountDue.Sub(inv.AmountPaid); b.IsPositive() {
		return b
	}
	return decimal.Zero
}

type InvoiceFilter struct {
	StudentIDs     []string
	FeeStructureID string
	Statuses       []InvoiceStatus
	DueBefore      time.Time // exclusive
}

// Payment is an immutable ledger line of an Invoice.
type Payment struct {
	ID                string          `json:"id"`
	InvoiceID         string          `json:"invoice_id"`
	Amount            decimal.Decimal `json:"amount"`
	Method            PaymentMethod   `json:"method"`
	ExternalReference null.String     `json:"external_reference"`
	ReceiptNumber     string          `json:"receipt_number"`
	ConfirmedBy       string          `json:"confirmed_by"`
	Authorization     null.JSON       `json:"authorization"`
	PaidAt            time.Time       `json:"paid_at"`
	CreatedAt         time.Time       `json:"created_at"`
}

// NewPayment is a manually recorded payment.
type NewPayment struct {
	Amount            string        `json:"amount" validate:"required,decimal"`
	Method            PaymentMethod `json:"method" validate:"required,oneof=bank_transfer mobile_money gateway cash bank_deposit"`
	ExternalReference string        `json:"external_reference" validate:"max=100"`
}

func (np *NewPayment) Validate(validate *validator.Validate) error {
	np.Amount = core.CleanString(np.Amount)
	np.Method = PaymentMethod(core.CleanString(string(np.Method), true /* lower */))
	np.ExternalReference = core.CleanString(np.ExternalReference)
	return validate.Struct(np)
}

type PaymentFilter struct {
	InvoiceID  string
	StudentIDs []string
}

// PaymentOutcome is the result of recording or reconciling a payment.
type PaymentOutcome struct {
	Invoice  Invoice  `json:"invoice"`
	Payment  *Payment `json:"payment"`  // nil when nothing was recorded
	Recorded bool     `json:"recorded"` // false for no-ops
}
