package finance

import (
	"time"

	"github.com/shopspring/decimal"
)

// DeriveStatus computes the status of an invoice from its cumulative payments.
// The due date is inclusive: an invoice becomes overdue the day after. An unsettled invoice
// past its due date is overdue even when partially paid.
func DeriveStatus(amountDue, paid decimal.Decimal, dueDate, today time.Time) InvoiceStatus {
	switch {
	case paid.GreaterThanOrEqual(amountDue):
		return StatusPaid
	case dateOf(today).After(dateOf(dueDate)):
		return StatusOverdue
	case paid.IsPositive():
		return StatusPartial
	default:
		return StatusPending
	}
}

func dateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
