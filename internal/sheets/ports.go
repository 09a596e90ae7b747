package sheets

import (
	"context"
	"time"

	"cobros/internal/core"

	"github.com/shopspring/decimal"
)

// Ports for the payment stores and the outbound ledger.
type (
	PaymentLister interface {
		// ListPayments returns joined payments, most recent first.
		ListPayments(ctx context.Context, r Range) ([]core.Payment, error)
	}

	PaymentReader interface {
		GetPayment(ctx context.Context, id string) (core.Payment, error)
	}

	PaymentWriter interface {
		CreatePayment(ctx context.Context, p core.NewPayment) (core.Payment, error)
	}

	// ReceiptSearcher matches receipts by client name, last name, service
	// name or account number. Results are most recent first, at most limit.
	ReceiptSearcher interface {
		SearchReceipts(ctx context.Context, query string, limit int) ([]core.Receipt, error)
	}

	// LedgerWriter appends a payment row to an external ledger.
	LedgerWriter interface {
		AppendPayment(ctx context.Context, row LedgerRow) (ref string, err error)
	}
)

// Range bounds a listing by creation time as [Start, End). Zero fields are
// open ends.
type Range struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t lies within the range.
func (r Range) Contains(t time.Time) bool {
	if !r.Start.IsZero() && t.Before(r.Start) {
		return false
	}
	if !r.End.IsZero() && !t.Before(r.End) {
		return false
	}
	return true
}

// LedgerRow is one payment as written to the ledger.
type LedgerRow struct {
	PaymentID   string
	CreatedAt   string
	Client      string
	Receipt     string
	Method      string
	Status      string
	Amount      decimal.Decimal
	ServiceFee  decimal.Decimal
	Total       decimal.Decimal
	VoucherLink string
}
