package finance

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kat-co/vala"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/volatiletech/null/v8"

	"github.com/excellacademy/academia/core"
	"github.com/excellacademy/academia/core/grading"
	"github.com/excellacademy/academia/core/notification"
	"github.com/excellacademy/academia/core/user"
)

var (
	ErrFeeNotFound     = core.NewNotFoundError("fee structure")
	ErrInvoiceNotFound = core.NewNotFoundError("invoice")
	ErrPaymentNotFound = core.NewNotFoundError("payment")

	ErrDuplicateFee       = errors.New("a fee structure already exists for this class and term")
	ErrDuplicateInvoice   = errors.New("an invoice already exists for this student and fee structure")
	ErrDuplicateReference = errors.New("a payment with this reference is already recorded")
	ErrAlreadyPaid        = errors.New("invoice is already paid")
	ErrReferenceMismatch  = errors.New("gateway transaction does not belong to this invoice")
)

type (
	// Repository returns core.DuplicateKeyError wrapping ErrDuplicateFee, ErrDuplicateInvoice or
	// ErrDuplicateReference on unique violations.
	Repository interface {
		CreateFeeStructure(ctx context.Context, fee FeeStructure) (FeeStructure, error)
		GetFeeStructure(ctx context.Context, id string) (FeeStructure, error)
		QueryFeeStructures(ctx context.Context, filter FeeFilter) ([]FeeStructure, error)

		CreateInvoice(ctx context.Context, inv Invoice) (Invoice, error)
		GetInvoice(ctx context.Context, id string) (Invoice, error)
		// GetInvoiceForUpdate locks the invoice until the end of the transaction.
		GetInvoiceForUpdate(ctx context.Context, id string) (Invoice, error)
		QueryInvoices(ctx context.Context, filter InvoiceFilter) ([]Invoice, error)
		UpdateInvoice(ctx context.Context, inv Invoice) (Invoice, error)
		CountInvoicesByStatus(ctx context.Context) (map[InvoiceStatus]int, error)

		CreatePayment(ctx context.Context, pmt Payment) (Payment, error)
		GetPaymentByReference(ctx context.Context, reference string) (Payment, error)
		QueryPayments(ctx context.Context, filter PaymentFilter) ([]Payment, error)
		SumPayments(ctx context.Context, invoiceID string) (decimal.Decimal, error)

		WithinTx(ctx context.Context, fn func(Repository) error) error
	}

	// Contacts finds who is notified about the invoices of a student.
	Contacts interface {
		Guardian(ctx context.Context, studentID string) (user.User, error)
	}

	// Inbox posts in-app notifications.
	Inbox interface {
		Notify(ctx context.Context, nn notification.NewNotification) (notification.Notification, error)
	}

	Service struct {
		repo     Repository
		roster   grading.Roster
		gateway  Gateway
		contacts Contacts
		mailer   core.EmailService
		inbox    Inbox
		conf     *core.Config
		logger   core.Logger
		now      func() time.Time
	}
)

func NewService(
	repo Repository,
	roster grading.Roster,
	gateway Gateway,
	contacts Contacts,
	mailer core.EmailService,
	inbox Inbox,
	conf *core.Config,
	logger core.Logger,
) *Service {
	vala.BeginValidation().Validate(
		vala.IsNotNil(repo, "repo"),
		vala.IsNotNil(roster, "roster"),
		vala.IsNotNil(gateway, "gateway"),
		vala.IsNotNil(contacts, "contacts"),
		vala.IsNotNil(mailer, "mailer"),
		vala.IsNotNil(inbox, "inbox"),
		vala.IsNotNil(conf, "conf"),
		vala.IsNotNil(logger, "logger"),
	).CheckAndPanic()
	return &Service{
		repo:     repo,
		roster:   roster,
		gateway:  gateway,
		contacts: contacts,
		mailer:   mailer,
		inbox:    inbox,
		conf:     conf,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (svc *Service) CreateFeeStructure(ctx context.Context, nf NewFeeStructure) (FeeStructure, error) {
	amount, err := decimal.NewFromString(nf.Amount)
	if err != nil || !amount.IsPositive() {
		return FeeStructure{}, core.NewValidationError(errors.New("invalid amount"), core.FieldError{Field: "amount", Error: "must be greater than 0"})
	}
	lateFee := decimal.Zero
	if nf.LateFee != "" {
		if lateFee, err = decimal.NewFromString(nf.LateFee); err != nil || lateFee.IsNegative() {
			return FeeStructure{}, core.NewValidationError(errors.New("invalid late fee"), core.FieldError{Field: "late_fee", Error: "must not be negative"})
		}
	}
	due, err := time.Parse(DateLayout, nf.DueDate)
	if err != nil {
		return FeeStructure{}, core.NewValidationError(err, core.FieldError{Field: "due_date", Error: "must be a date like 2006-01-02"})
	}
	if _, err = svc.roster.ClassStudentIDs(ctx, nf.ClassID); err != nil {
		var nfErr *core.NotFoundError
		if errors.As(err, &nfErr) {
			return FeeStructure{}, core.NewValidationError(err, core.FieldError{Field: "class_id", Error: err.Error()})
		}
		return FeeStructure{}, errors.Wrap(err, "checking class")
	}

	now := svc.now()
	return svc.repo.CreateFeeStructure(ctx, FeeStructure{
		ID:           uuid.New().String(),
		ClassID:      nf.ClassID,
		AcademicYear: nf.AcademicYear,
		Term:         nf.Term,
		Amount:       amount,
		DueDate:      due,
		LateFee:      lateFee,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
}

func (svc *Service) FeeStructure(ctx context.Context, id string) (FeeStructure, error) {
	return svc.repo.GetFeeStructure(ctx, id)
}

func (svc *Service) FeeStructures(ctx context.Context, filter FeeFilter) ([]FeeStructure, error) {
	return svc.repo.QueryFeeStructures(ctx, filter)
}

// CreateInvoice bills fee to a student. A second invoice for the same pair fails with ErrDuplicateInvoice.
func (svc *Service) CreateInvoice(ctx context.Context, studentID, feeID string) (Invoice, error) {
	fee, err := svc.repo.GetFeeStructure(ctx, feeID)
	if err != nil {
		return Invoice{}, err
	}
	return svc.repo.CreateInvoice(ctx, svc.newInvoice(fee, studentID))
}

func (svc *Service) newInvoice(fee FeeStructure, studentID string) Invoice {
	now := svc.now()
	return Invoice{
		ID:               uuid.New().String(),
		Number:           newInvoiceNumber(now),
		StudentID:        studentID,
		FeeStructureID:   fee.ID,
		AmountDue:        fee.Amount,
		AmountPaid:       decimal.Zero,
		Status:           DeriveStatus(fee.Amount, decimal.Zero, fee.DueDate, now),
		IssueDate:        dateOf(now),
		DueDate:          fee.DueDate,
		GatewayReference: uuid.New().String(),
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

// newInvoiceNumber returns INV-YYYYMMDD-XXXXXXXX.
func newInvoiceNumber(t time.Time) string {
	return "INV-" + t.Format("20060102") + "-" + strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", "")[:8])
}

type GenerateOutcome struct {
	Created []Invoice `json:"created"`
	Skipped []string  `json:"skipped"` // students already invoiced
}

// GenerateInvoices bills a fee structure to every student of its class, skipping students already invoiced.
func (svc *Service) GenerateInvoices(ctx context.Context, feeID string) (GenerateOutcome, error) {
	out := GenerateOutcome{Created: []Invoice{}, Skipped: []string{}}

	fee, err := svc.repo.GetFeeStructure(ctx, feeID)
	if err != nil {
		return out, err
	}
	ids, err := svc.roster.ClassStudentIDs(ctx, fee.ClassID)
	if err != nil {
		return out, errors.Wrap(err, "listing class students")
	}
	for _, id := range ids {
		inv, err := svc.repo.CreateInvoice(ctx, svc.newInvoice(fee, id))
		if errors.Is(err, ErrDuplicateInvoice) {
			out.Skipped = append(out.Skipped, id)
			continue
		}
		if err != nil {
			return out, errors.Wrap(err, "creating invoice")
		}
		out.Created = append(out.Created, inv)
	}
	return out, nil
}

func (svc *Service) Invoice(ctx context.Context, id string) (Invoice, error) {
	return svc.repo.GetInvoice(ctx, id)
}

func (svc *Service) Invoices(ctx context.Context, filter InvoiceFilter) ([]Invoice, error) {
	return svc.repo.QueryInvoices(ctx, filter)
}

func (svc *Service) Payments(ctx context.Context, filter PaymentFilter) ([]Payment, error) {
	return svc.repo.QueryPayments(ctx, filter)
}

// RecordPayment appends a manually confirmed payment to an invoice.
func (svc *Service) RecordPayment(ctx context.Context, invoiceID string, np NewPayment, confirmedBy string) (PaymentOutcome, error) {
	amount, err := decimal.NewFromString(np.Amount)
	if err != nil || !amount.IsPositive() {
		return PaymentOutcome{}, core.NewValidationError(errors.New("invalid amount"), core.FieldError{Field: "amount", Error: "must be greater than 0"})
	}
	var ref null.String
	if np.ExternalReference != "" {
		ref = null.StringFrom(np.ExternalReference)
	}
	now := svc.now()
	return svc.recordPayment(ctx, invoiceID, Payment{
		Amount:            amount,
		Method:            np.Method,
		ExternalReference: ref,
		ConfirmedBy:       confirmedBy,
		PaidAt:            now,
	})
}

// recordPayment locks the invoice, appends pmt and recomputes the status in one transaction.
// A reference already in the ledger fails with ErrDuplicateReference and changes nothing.
func (svc *Service) recordPayment(ctx context.Context, invoiceID string, pmt Payment) (PaymentOutcome, error) {
	var out PaymentOutcome
	err := svc.repo.WithinTx(ctx, func(repo Repository) error {
		inv, err := repo.GetInvoiceForUpdate(ctx, invoiceID)
		if err != nil {
			return err
		}

		if pmt.ExternalReference.Valid {
			_, err = repo.GetPaymentByReference(ctx, pmt.ExternalReference.String)
			switch {
			case err == nil:
				return core.NewDuplicateKeyError("external_reference", ErrDuplicateReference)
			case !errors.Is(err, ErrPaymentNotFound):
				return errors.Wrap(err, "checking payment reference")
			}
		}

		now := svc.now()
		pmt.ID = uuid.New().String()
		pmt.InvoiceID = inv.ID
		pmt.ReceiptNumber = newReceiptNumber(now)
		pmt.CreatedAt = now
		if pmt.PaidAt.IsZero() {
			pmt.PaidAt = now
		}
		if pmt, err = repo.CreatePayment(ctx, pmt); err != nil {
			return err
		}

		paid, err := repo.SumPayments(ctx, inv.ID)
		if err != nil {
			return errors.Wrap(err, "summing payments")
		}
		inv.AmountPaid = paid
		inv.Status = DeriveStatus(inv.AmountDue, paid, inv.DueDate, now)
		inv.UpdatedAt = now
		if inv, err = repo.UpdateInvoice(ctx, inv); err != nil {
			return errors.Wrap(err, "updating invoice")
		}

		out = PaymentOutcome{Invoice: inv, Payment: &pmt, Recorded: true}
		return nil
	})
	if err != nil {
		return PaymentOutcome{}, err
	}

	svc.sendPaymentConfirmation(ctx, out.Invoice, *out.Payment)
	return out, nil
}

func newReceiptNumber(t time.Time) string {
	return "RCT-" + t.Format("20060102") + "-" + strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", "")[:8])
}

// InitializePayment starts a gateway checkout for the balance of an invoice.
// Every attempt gets its own reference; the invoice is identified through the checkout metadata.
func (svc *Service) InitializePayment(ctx context.Context, invoiceID string) (Checkout, error) {
	inv, err := svc.repo.GetInvoice(ctx, invoiceID)
	if err != nil {
		return Checkout{}, err
	}
	if inv.Status == StatusPaid {
		return Checkout{}, core.NewValidationError(ErrAlreadyPaid)
	}

	guardian, err := svc.contacts.Guardian(ctx, inv.StudentID)
	if err != nil {
		return Checkout{}, errors.Wrap(err, "getting guardian")
	}
	if guardian.Email == "" {
		return Checkout{}, core.NewValidationError(errors.New("the guardian of this student has no email address"))
	}

	gctx, cancel := context.WithTimeout(ctx, svc.conf.Payment.Timeout)
	defer cancel()
	checkout, err := svc.gateway.Initialize(gctx, CheckoutRequest{
		Email:       guardian.Email,
		Amount:      inv.Balance(),
		Reference:   uuid.New().String(),
		CallbackURL: svc.conf.Payment.CallbackURL,
		Metadata: map[string]string{
			MetaInvoiceID:        inv.ID,
			MetaInvoiceReference: inv.GatewayReference,
		},
	})
	if err != nil {
		return Checkout{}, svc.gatewayError(err)
	}
	return checkout, nil
}

// ReconcileWithGateway confirms a checkout with the gateway and records the payment once.
// Unsuccessful transactions and already recorded references leave the invoice untouched.
// Gateway failures are retryable and never change the invoice status.
func (svc *Service) ReconcileWithGateway(ctx context.Context, invoiceID, reference string) (PaymentOutcome, error) {
	inv, err := svc.repo.GetInvoice(ctx, invoiceID)
	if err != nil {
		return PaymentOutcome{}, err
	}
	prior := PaymentOutcome{Invoice: inv}

	reference = core.CleanString(reference)
	if reference == "" {
		return prior, core.NewValidationError(errors.New("missing reference"), core.FieldError{Field: "reference", Error: "this field is required"})
	}
	_, err = svc.repo.GetPaymentByReference(ctx, reference)
	switch {
	case err == nil:
		return prior, nil
	case !errors.Is(err, ErrPaymentNotFound):
		return prior, errors.Wrap(err, "checking payment reference")
	}

	gctx, cancel := context.WithTimeout(ctx, svc.conf.Payment.Timeout)
	defer cancel()
	v, err := svc.gateway.Verify(gctx, reference)
	if err != nil {
		return prior, svc.gatewayError(err)
	}
	if v.Status != GatewaySuccess || !v.Amount.IsPositive() {
		svc.logger.Info("gateway transaction not successful", map[string]interface{}{
			"invoice": inv.ID, "reference": reference, "status": v.Status,
		})
		return prior, nil
	}
	if ref, ok := v.Metadata[MetaInvoiceReference]; !ok || ref != inv.GatewayReference {
		return prior, core.NewValidationError(ErrReferenceMismatch, core.FieldError{Field: "reference", Error: ErrReferenceMismatch.Error()})
	}

	var auth null.JSON
	if len(v.Authorization) > 0 {
		auth = null.JSONFrom(v.Authorization)
	}
	out, err := svc.recordPayment(ctx, inv.ID, Payment{
		Amount:            v.Amount,
		Method:            MethodGateway,
		ExternalReference: null.StringFrom(reference),
		ConfirmedBy:       svc.gateway.Name(),
		Authorization:     auth,
		PaidAt:            v.PaidAt,
	})
	if errors.Is(err, ErrDuplicateReference) {
		// recorded concurrently
		inv, err = svc.repo.GetInvoice(ctx, invoiceID)
		return PaymentOutcome{Invoice: inv}, err
	}
	return out, err
}

func (svc *Service) gatewayError(err error) error {
	if core.IsRetryable(err) {
		return err
	}
	return core.NewExternalServiceError(svc.gateway.Name(), err)
}

// RefreshOverdue flips unsettled invoices past their due date to overdue and reminds their guardians.
func (svc *Service) RefreshOverdue(ctx context.Context, today time.Time) (int, error) {
	candidates, err := svc.repo.QueryInvoices(ctx, InvoiceFilter{
		Statuses:  []InvoiceStatus{StatusPending, StatusPartial},
		DueBefore: dateOf(today),
	})
	if err != nil {
		return 0, errors.Wrap(err, "querying invoices")
	}

	var flipped []Invoice
	for _, c := range candidates {
		err = svc.repo.WithinTx(ctx, func(repo Repository) error {
			inv, err := repo.GetInvoiceForUpdate(ctx, c.ID)
			if err != nil {
				return err
			}
			status := DeriveStatus(inv.AmountDue, inv.AmountPaid, inv.DueDate, today)
			if status == inv.Status {
				return nil
			}
			inv.Status = status
			inv.UpdatedAt = svc.now()
			if inv, err = repo.UpdateInvoice(ctx, inv); err != nil {
				return err
			}
			if status == StatusOverdue {
				flipped = append(flipped, inv)
			}
			return nil
		})
		if err != nil {
			return len(flipped), errors.Wrap(err, "refreshing invoice "+c.ID)
		}
	}

	for _, inv := range flipped {
		svc.sendPaymentReminder(ctx, inv)
	}
	return len(flipped), nil
}

// StatusSummary counts invoices per status. Every status is present.
func (svc *Service) StatusSummary(ctx context.Context) (map[InvoiceStatus]int, error) {
	counts, err := svc.repo.CountInvoicesByStatus(ctx)
	if err != nil {
		return nil, err
	}
	summary := make(map[InvoiceStatus]int, len(InvoiceStatuses))
	for _, s := range InvoiceStatuses {
		summary[s] = counts[s]
	}
	return summary, nil
}
