package google

import (
	"fmt"
	"strings"

	ports "cobros/internal/sheets"
)

// Ledger columns A..J.
const lastColumn = "J"

var ledgerHeader = []any{
	"Pago", "Fecha", "Cliente", "Recibo", "Método", "Estado",
	"Monto factura", "Cargo por servicio", "Total", "Comprobante",
}

// ledgerValues renders a row in column order. Amounts are plain fixed-point
// strings so USER_ENTERED stores them as numbers.
func ledgerValues(r ports.LedgerRow) []any {
	return []any{
		r.PaymentID,
		r.CreatedAt,
		r.Client,
		r.Receipt,
		r.Method,
		r.Status,
		r.Amount.StringFixed(2),
		r.ServiceFee.StringFixed(2),
		r.Total.StringFixed(2),
		r.VoucherLink,
	}
}

// findPaymentRow returns the 1-based row whose first cell equals id, or 0.
func findPaymentRow(values [][]any, id string) int {
	id = strings.TrimSpace(id)
	for i, row := range values {
		cols := toStrings(row)
		if len(cols) > 0 && cols[0] == id {
			return i + 1
		}
	}
	return 0
}

func toStrings(in []any) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}
