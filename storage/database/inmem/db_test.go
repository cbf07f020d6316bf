package inmemdb

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"

	"github.com/excellacademy/academia/core"
	"github.com/excellacademy/academia/core/finance"
	"github.com/excellacademy/academia/core/grading"
	"github.com/excellacademy/academia/core/reportcard"
)

var ctx = context.Background()

func invoice(id, student string) finance.Invoice {
	now := time.Now().UTC()
	return finance.Invoice{
		ID: id, Number: "INV-" + id, StudentID: student, FeeStructureID: "fee",
		AmountDue: decimal.NewFromInt(500), AmountPaid: decimal.Zero, Status: finance.StatusPending,
		DueDate: now.AddDate(0, 1, 0), CreatedAt: now, UpdatedAt: now,
	}
}

func TestDB_withinTx(t *testing.T) {
	db := Open()
	repo := NewFinanceRepository(db)
	_, err := repo.CreateInvoice(ctx, invoice("i1", "s1"))
	require.NoError(t, err)

	t.Run("rollback on error", func(t *testing.T) {
		boom := errors.New("boom")
		err := repo.WithinTx(ctx, func(tx finance.Repository) error {
			if _, err := tx.CreateInvoice(ctx, invoice("i2", "s2")); err != nil {
				return err
			}
			inv, err := tx.GetInvoiceForUpdate(ctx, "i1")
			if err != nil {
				return err
			}
			inv.Status = finance.StatusPaid
			if _, err = tx.UpdateInvoice(ctx, inv); err != nil {
				return err
			}
			return boom
		})
		assert.Equal(t, boom, err)

		_, err = repo.GetInvoice(ctx, "i2")
		assert.Equal(t, finance.ErrInvoiceNotFound, err)
		inv, err := repo.GetInvoice(ctx, "i1")
		require.NoError(t, err)
		assert.Equal(t, finance.StatusPending, inv.Status)
	})

	t.Run("rollback on panic", func(t *testing.T) {
		assert.PanicsWithValue(t, "boom", func() {
			_ = repo.WithinTx(ctx, func(tx finance.Repository) error {
				if _, err := tx.CreateInvoice(ctx, invoice("i4", "s4")); err != nil {
					return err
				}
				panic("boom")
			})
		})

		_, err := repo.GetInvoice(ctx, "i4")
		assert.Equal(t, finance.ErrInvoiceNotFound, err)

		// the lock is released
		_, err = repo.CreateInvoice(ctx, invoice("i5", "s5"))
		assert.NoError(t, err)
	})

	t.Run("commit", func(t *testing.T) {
		err := repo.WithinTx(ctx, func(tx finance.Repository) error {
			// nested transactions join the outer one
			return tx.WithinTx(ctx, func(tx finance.Repository) error {
				_, err := tx.CreateInvoice(ctx, invoice("i3", "s3"))
				return err
			})
		})
		require.NoError(t, err)
		_, err = repo.GetInvoice(ctx, "i3")
		assert.NoError(t, err)
	})
}

func TestFinanceRepository_uniqueness(t *testing.T) {
	repo := NewFinanceRepository(Open())

	_, err := repo.CreateInvoice(ctx, invoice("i1", "s1"))
	require.NoError(t, err)
	_, err = repo.CreateInvoice(ctx, invoice("i2", "s1"))
	var dupErr *core.DuplicateKeyError
	require.True(t, errors.As(err, &dupErr))
	assert.True(t, errors.Is(err, finance.ErrDuplicateInvoice))

	pmt := finance.Payment{ID: "p1", InvoiceID: "i1", Amount: decimal.NewFromInt(10), ExternalReference: null.StringFrom("REF")}
	_, err = repo.CreatePayment(ctx, pmt)
	require.NoError(t, err)
	pmt.ID = "p2"
	_, err = repo.CreatePayment(ctx, pmt)
	assert.True(t, errors.Is(err, finance.ErrDuplicateReference))

	// payments without reference never collide
	for _, id := range []string{"p3", "p4"} {
		_, err = repo.CreatePayment(ctx, finance.Payment{ID: id, InvoiceID: "i1", Amount: decimal.NewFromInt(5)})
		require.NoError(t, err)
	}
	sum, err := repo.SumPayments(ctx, "i1")
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(20).Equal(sum))
}

func TestReportCardRepository_Upsert(t *testing.T) {
	repo := NewReportCardRepository(Open())
	period := grading.Period{Term: "First Term", AcademicYear: "2023/2024"}
	now := time.Now().UTC()

	rec, err := repo.Upsert(ctx, reportcard.Record{ID: "r1", StudentID: "s1", Term: period.Term, AcademicYear: period.AcademicYear, OverallGrade: grading.GradeB})
	require.NoError(t, err)
	_, err = repo.MarkFinalized(ctx, rec.ID, "doc.pdf", now)
	require.NoError(t, err)

	again, err := repo.Upsert(ctx, reportcard.Record{ID: "r2", StudentID: "s1", Term: period.Term, AcademicYear: period.AcademicYear, OverallGrade: grading.GradeA})
	require.NoError(t, err)
	assert.Equal(t, "r1", again.ID)
	assert.Equal(t, grading.GradeA, again.OverallGrade)
	assert.True(t, again.Finalized)
	assert.Equal(t, "doc.pdf", again.DocumentRef.String)

	draft, err := repo.MarkDraft(ctx, rec.ID, now)
	require.NoError(t, err)
	assert.False(t, draft.Finalized)
	assert.False(t, draft.DocumentRef.Valid)

	_, err = repo.GetByKey(ctx, "s2", period)
	assert.Equal(t, reportcard.ErrNotFound, err)
}
