package inmemdb

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/excellacademy/academia/core"
	"github.com/excellacademy/academia/core/finance"
)

type financeRepository struct {
	db   *DB
	inTx bool
}

var _ finance.Repository = (*financeRepository)(nil)

func NewFinanceRepository(db *DB) *financeRepository {
	return &financeRepository{db: db}
}

func (repo *financeRepository) CreateFeeStructure(_ context.Context, fee finance.FeeStructure) (finance.FeeStructure, error) {
	err := repo.db.write(repo.inTx, func(t *tables) error {
		for _, o := range t.fees {
			if o.ClassID == fee.ClassID && o.AcademicYear == fee.AcademicYear && o.Term == fee.Term {
				return core.NewDuplicateKeyError("fee_structure", finance.ErrDuplicateFee)
			}
		}
		t.fees[fee.ID] = fee
		return nil
	})
	return fee, err
}

func (repo *financeRepository) GetFeeStructure(_ context.Context, id string) (finance.FeeStructure, error) {
	var (
		fee finance.FeeStructure
		ok  bool
	)
	repo.db.read(func(t *tables) { fee, ok = t.fees[id] })
	if !ok {
		return finance.FeeStructure{}, finance.ErrFeeNotFound
	}
	return fee, nil
}

func (repo *financeRepository) QueryFeeStructures(_ context.Context, filter finance.FeeFilter) ([]finance.FeeStructure, error) {
	fees := make([]finance.FeeStructure, 0)
	repo.db.read(func(t *tables) {
		for _, f := range t.fees {
			if filter.ClassID != "" && f.ClassID != filter.ClassID {
				continue
			}
			if filter.AcademicYear != "" && f.AcademicYear != filter.AcademicYear {
				continue
			}
			if filter.Term != "" && f.Term != filter.Term {
				continue
			}
			fees = append(fees, f)
		}
	})
	sort.Slice(fees, func(i, j int) bool { return fees[i].DueDate.Before(fees[j].DueDate) })
	return fees, nil
}

func (repo *financeRepository) CreateInvoice(_ context.Context, inv finance.Invoice) (finance.Invoice, error) {
	err := repo.db.write(repo.inTx, func(t *tables) error {
		for _, o := range t.invoices {
			if o.StudentID == inv.StudentID && o.FeeStructureID == inv.FeeStructureID {
				return core.NewDuplicateKeyError("invoice", finance.ErrDuplicateInvoice)
			}
		}
		t.invoices[inv.ID] = inv
		return nil
	})
	return inv, err
}

func (repo *financeRepository) GetInvoice(_ context.Context, id string) (finance.Invoice, error) {
	var (
		inv finance.Invoice
		ok  bool
	)
	repo.db.read(func(t *tables) { inv, ok = t.invoices[id] })
	if !ok {
		return finance.Invoice{}, finance.ErrInvoiceNotFound
	}
	return inv, nil
}

// GetInvoiceForUpdate needs no row lock: transactions are serialized.
func (repo *financeRepository) GetInvoiceForUpdate(ctx context.Context, id string) (finance.Invoice, error) {
	return repo.GetInvoice(ctx, id)
}

func (repo *financeRepository) QueryInvoices(_ context.Context, filter finance.InvoiceFilter) ([]finance.Invoice, error) {
	invoices := make([]finance.Invoice, 0)
	repo.db.read(func(t *tables) {
		for _, inv := range t.invoices {
			if len(filter.StudentIDs) > 0 && !containsStr(filter.StudentIDs, inv.StudentID) {
				continue
			}
			if filter.FeeStructureID != "" && inv.FeeStructureID != filter.FeeStructureID {
				continue
			}
			if len(filter.Statuses) > 0 && !containsStatus(filter.Statuses, inv.Status) {
				continue
			}
			if !filter.DueBefore.IsZero() && !inv.DueDate.Before(filter.DueBefore) {
				continue
			}
			invoices = append(invoices, inv)
		}
	})
	sort.Slice(invoices, func(i, j int) bool {
		if !invoices[i].CreatedAt.Equal(invoices[j].CreatedAt) {
			return invoices[i].CreatedAt.After(invoices[j].CreatedAt)
		}
		return invoices[i].Number < invoices[j].Number
	})
	return invoices, nil
}

func containsStatus(list []finance.InvoiceStatus, s finance.InvoiceStatus) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func (repo *financeRepository) UpdateInvoice(_ context.Context, inv finance.Invoice) (finance.Invoice, error) {
	err := repo.db.write(repo.inTx, func(t *tables) error {
		orig, ok := t.invoices[inv.ID]
		if !ok {
			return finance.ErrInvoiceNotFound
		}
		orig.AmountPaid = inv.AmountPaid
		orig.Status = inv.Status
		orig.UpdatedAt = inv.UpdatedAt
		t.invoices[inv.ID] = orig
		inv = orig
		return nil
	})
	return inv, err
}

func (repo *financeRepository) CountInvoicesByStatus(_ context.Context) (map[finance.InvoiceStatus]int, error) {
	counts := make(map[finance.InvoiceStatus]int)
	repo.db.read(func(t *tables) {
		for _, inv := range t.invoices {
			counts[inv.Status]++
		}
	})
	return counts, nil
}

func (repo *financeRepository) CreatePayment(_ context.Context, pmt finance.Payment) (finance.Payment, error) {
	err := repo.db.write(repo.inTx, func(t *tables) error {
		if pmt.ExternalReference.Valid {
			for _, o := range t.payments {
				if o.ExternalReference.Valid && o.ExternalReference.String == pmt.ExternalReference.String {
					return core.NewDuplicateKeyError("external_reference", finance.ErrDuplicateReference)
				}
			}
		}
		t.payments[pmt.ID] = pmt
		return nil
	})
	return pmt, err
}

func (repo *financeRepository) GetPaymentByReference(_ context.Context, reference string) (finance.Payment, error) {
	var (
		pmt finance.Payment
		ok  bool
	)
	repo.db.read(func(t *tables) {
		for _, o := range t.payments {
			if o.ExternalReference.Valid && o.ExternalReference.String == reference {
				pmt, ok = o, true
				return
			}
		}
	})
	if !ok {
		return finance.Payment{}, finance.ErrPaymentNotFound
	}
	return pmt, nil
}

func (repo *financeRepository) QueryPayments(_ context.Context, filter finance.PaymentFilter) ([]finance.Payment, error) {
	payments := make([]finance.Payment, 0)
	repo.db.read(func(t *tables) {
		for _, pmt := range t.payments {
			if filter.InvoiceID != "" && pmt.InvoiceID != filter.InvoiceID {
				continue
			}
			if len(filter.StudentIDs) > 0 {
				inv, ok := t.invoices[pmt.InvoiceID]
				if !ok || !containsStr(filter.StudentIDs, inv.StudentID) {
					continue
				}
			}
			payments = append(payments, pmt)
		}
	})
	sort.Slice(payments, func(i, j int) bool { return payments[i].PaidAt.Before(payments[j].PaidAt) })
	return payments, nil
}

func (repo *financeRepository) SumPayments(_ context.Context, invoiceID string) (decimal.Decimal, error) {
	sum := decimal.Zero
	repo.db.read(func(t *tables) {
		for _, pmt := range t.payments {
			if pmt.InvoiceID == invoiceID {
				sum = sum.Add(pmt.Amount)
			}
		}
	})
	return sum, nil
}

func (repo *financeRepository) WithinTx(_ context.Context, fn func(finance.Repository) error) error {
	return repo.db.withinTx(repo.inTx, func() error {
		return fn(&financeRepository{db: repo.db, inTx: true})
	})
}
