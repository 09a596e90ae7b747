package core

import "strings"

// DescribeReceipt labels a receipt as "Ana Lopez · Agua (A-100)". Missing
// name parts render as the placeholder; a nil receipt has no label.
func DescribeReceipt(r *Receipt) string {
	if r == nil {
		return ""
	}

	clientName := Placeholder
	if r.Client != nil {
		if n := r.Client.DisplayName(); n != "" {
			clientName = n
		}
	}
	serviceName := Placeholder
	if r.Service != nil && !isBlank(r.Service.Name) {
		serviceName = strings.TrimSpace(r.Service.Name)
	}

	label := clientName + " · " + serviceName
	if acct := strings.TrimSpace(r.AccountReceiptNumber); acct != "" {
		label += " (" + acct + ")"
	}
	return label
}

// ReceiptLabel is DescribeReceipt applied to the payment's receipt.
func (p Payment) ReceiptLabel() string {
	return DescribeReceipt(p.Receipt)
}
