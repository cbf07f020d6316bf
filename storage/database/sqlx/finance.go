package sqlxrepos

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/excellacademy/academia/core/finance"
)

const (
	feeColumns     = "id, class_id, academic_year, term, amount, due_date, late_fee, active, created_at, updated_at"
	invoiceColumns = "id, number, student_id, fee_structure_id, amount_due, amount_paid, status, issue_date, due_date, " +
		"gateway_reference, created_at, updated_at"
	paymentSelect = `SELECT p.id, p.invoice_id, p.amount, p.method, p.external_reference, p.receipt_number, p.confirmed_by,
		p.authorization_data AS "authorization", p.paid_at, p.created_at FROM payments p`
)

type financeRepository struct {
	db dbtx
}

var _ finance.Repository = (*financeRepository)(nil)

func NewFinanceRepository(db *sqlx.DB) *financeRepository {
	return &financeRepository{db: bind(db)}
}

func (repo *financeRepository) CreateFeeStructure(ctx context.Context, fee finance.FeeStructure) (finance.FeeStructure, error) {
	_, err := repo.db.NamedExecContext(ctx, `
		INSERT INTO fee_structures (`+feeColumns+`)
		VALUES (:id, :class_id, :academic_year, :term, :amount, :due_date, :late_fee, :active, :created_at, :updated_at)`, fee)
	return fee, translate(err)
}

func (repo *financeRepository) GetFeeStructure(ctx context.Context, id string) (finance.FeeStructure, error) {
	var fee finance.FeeStructure
	err := get(ctx, repo.db, &fee, "SELECT "+feeColumns+" FROM fee_structures WHERE id = ?", id)
	return fee, notFound(err, finance.ErrFeeNotFound)
}

func (repo *financeRepository) QueryFeeStructures(ctx context.Context, ff finance.FeeFilter) ([]finance.FeeStructure, error) {
	var f filter
	if ff.ClassID != "" {
		f.where("class_id = ?", ff.ClassID)
	}
	if ff.AcademicYear != "" {
		f.where("academic_year = ?", ff.AcademicYear)
	}
	if ff.Term != "" {
		f.where("term = ?", ff.Term)
	}
	fees := make([]finance.FeeStructure, 0)
	err := f.sel(ctx, repo.db, &fees, "SELECT "+feeColumns+" FROM fee_structures", "ORDER BY due_date")
	return fees, err
}

func (repo *financeRepository) CreateInvoice(ctx context.Context, inv finance.Invoice) (finance.Invoice, error) {
	_, err := repo.db.NamedExecContext(ctx, `
		INSERT INTO invoices (`+invoiceColumns+`)
		VALUES (:id, :number, :student_id, :fee_structure_id, :amount_due, :amount_paid, :status, :issue_date, :due_date,
		        :gateway_reference, :created_at, :updated_at)`, inv)
	return inv, translate(err)
}

func (repo *financeRepository) GetInvoice(ctx context.Context, id string) (finance.Invoice, error) {
	var inv finance.Invoice
	err := get(ctx, repo.db, &inv, "SELECT "+invoiceColumns+" FROM invoices WHERE id = ?", id)
	return inv, notFound(err, finance.ErrInvoiceNotFound)
}

func (repo *financeRepository) GetInvoiceForUpdate(ctx context.Context, id string) (finance.Invoice, error) {
	var inv finance.Invoice
	err := get(ctx, repo.db, &inv, "SELECT "+invoiceColumns+" FROM invoices WHERE id = ? FOR UPDATE", id)
	return inv, notFound(err, finance.ErrInvoiceNotFound)
}

func (repo *financeRepository) QueryInvoices(ctx context.Context, inf finance.InvoiceFilter) ([]finance.Invoice, error) {
	var f filter
	if len(inf.StudentIDs) > 0 {
		f.where("student_id IN (?)", inf.StudentIDs)
	}
	if inf.FeeStructureID != "" {
		f.where("fee_structure_id = ?", inf.FeeStructureID)
	}
	if len(inf.Statuses) > 0 {
		f.where("status IN (?)", inf.Statuses)
	}
	if !inf.DueBefore.IsZero() {
		f.where("due_date < ?", inf.DueBefore)
	}
	invoices := make([]finance.Invoice, 0)
	err := f.sel(ctx, repo.db, &invoices, "SELECT "+invoiceColumns+" FROM invoices", "ORDER BY created_at DESC, number")
	return invoices, err
}

func (repo *financeRepository) UpdateInvoice(ctx context.Context, inv finance.Invoice) (finance.Invoice, error) {
	var out finance.Invoice
	err := get(ctx, repo.db, &out, `
		UPDATE invoices SET amount_paid = ?, status = ?, updated_at = ?
		WHERE id = ?
		RETURNING `+invoiceColumns, inv.AmountPaid, inv.Status, inv.UpdatedAt, inv.ID)
	return out, notFound(err, finance.ErrInvoiceNotFound)
}

func (repo *financeRepository) CountInvoicesByStatus(ctx context.Context) (map[finance.InvoiceStatus]int, error) {
	var rows []struct {
		Status finance.InvoiceStatus `json:"status"`
		Count  int                   `json:"count"`
	}
	if err := repo.db.SelectContext(ctx, &rows, "SELECT status, COUNT(*) AS count FROM invoices GROUP BY status"); err != nil {
		return nil, err
	}
	counts := make(map[finance.InvoiceStatus]int, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}

func (repo *financeRepository) CreatePayment(ctx context.Context, pmt finance.Payment) (finance.Payment, error) {
	_, err := repo.db.NamedExecContext(ctx, `
		INSERT INTO payments (id, invoice_id, amount, method, external_reference, receipt_number, confirmed_by,
		                      authorization_data, paid_at, created_at)
		VALUES (:id, :invoice_id, :amount, :method, :external_reference, :receipt_number, :confirmed_by,
		        :authorization, :paid_at, :created_at)`, pmt)
	return pmt, translate(err)
}

func (repo *financeRepository) GetPaymentByReference(ctx context.Context, reference string) (finance.Payment, error) {
	var pmt finance.Payment
	err := get(ctx, repo.db, &pmt, paymentSelect+" WHERE p.external_reference = ?", reference)
	return pmt, notFound(err, finance.ErrPaymentNotFound)
}

func (repo *financeRepository) QueryPayments(ctx context.Context, pf finance.PaymentFilter) ([]finance.Payment, error) {
	var f filter
	base := paymentSelect
	if pf.InvoiceID != "" {
		f.where("p.invoice_id = ?", pf.InvoiceID)
	}
	if len(pf.StudentIDs) > 0 {
		base += " JOIN invoices i ON i.id = p.invoice_id"
		f.where("i.student_id IN (?)", pf.StudentIDs)
	}
	payments := make([]finance.Payment, 0)
	err := f.sel(ctx, repo.db, &payments, base, "ORDER BY p.paid_at")
	return payments, err
}

func (repo *financeRepository) SumPayments(ctx context.Context, invoiceID string) (decimal.Decimal, error) {
	var sum decimal.Decimal
	err := get(ctx, repo.db, &sum, "SELECT COALESCE(SUM(amount), 0) FROM payments WHERE invoice_id = ?", invoiceID)
	return sum, err
}

func (repo *financeRepository) WithinTx(ctx context.Context, fn func(finance.Repository) error) error {
	return withinTx(ctx, repo.db, func(tx dbtx) error {
		return fn(&financeRepository{db: tx})
	})
}
