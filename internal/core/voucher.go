package core

import (
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	DefaultMessagingHost = "wa.me"
	voucherSeparator     = "------------------------------"
	voucherTitle         = "Comprobante de pago"
)

// DefaultServiceFee is the flat fee added to every invoice amount.
var DefaultServiceFee = decimal.NewFromInt(1)

// Voucher is an addressable payment summary.
type Voucher struct {
	Text  string
	Phone string // normalized dialing digits
}

// VoucherBuilder composes voucher messages and deep links. ServiceFee is
// charged as given, zero included; an empty host or nil location take the
// defaults.
type VoucherBuilder struct {
	ServiceFee    decimal.Decimal
	Location      *time.Location
	MessagingHost string
}

// NewVoucherBuilder returns a builder with explicit settings.
func NewVoucherBuilder(fee decimal.Decimal, host string, loc *time.Location) VoucherBuilder {
	return VoucherBuilder{ServiceFee: fee, Location: loc, MessagingHost: host}
}

func (b VoucherBuilder) Fee() decimal.Decimal {
	return b.ServiceFee
}

func (b VoucherBuilder) host() string {
	if h := strings.Trim(strings.TrimSpace(b.MessagingHost), "/"); h != "" {
		return h
	}
	return DefaultMessagingHost
}

// Message builds the voucher text for p. ok is false when the payment has no
// receipt or client, or the client has no usable phone number.
func (b VoucherBuilder) Message(p Payment) (v Voucher, ok bool) {
	if p.Receipt == nil || p.Receipt.Client == nil {
		return Voucher{}, false
	}
	phone := NormalizePhoneForMessaging(p.Receipt.Client.PhoneNumber)
	if phone == "" {
		return Voucher{}, false
	}

	r := p.Receipt
	clientName := r.Client.DisplayName()
	if clientName == "" {
		clientName = Placeholder
	}
	service := Placeholder
	if r.Service != nil && !isBlank(r.Service.Name) {
		service = strings.TrimSpace(r.Service.Name)
	}
	if acct := strings.TrimSpace(r.AccountReceiptNumber); acct != "" {
		service += " (" + acct + ")"
	}

	fee := b.Fee()
	total := amountOrZero(p.TotalAmount).Add(fee)

	lines := []string{
		voucherSeparator,
		voucherTitle,
		"Pago: " + p.ID,
		"Cliente: " + clientName,
		"Servicio: " + service,
		"Monto factura: " + FormatAmount(p.TotalAmount),
		"Cargo por servicio: " + FormatAmount(fee),
		"Total: " + FormatAmount(total),
		"Fecha: " + FormatDate(p.CreatedAt, b.Location),
	}
	return Voucher{Text: strings.Join(lines, "\n"), Phone: phone}, true
}

// Link wraps Message into a messaging deep link whose text parameter decodes
// back to the exact message.
func (b VoucherBuilder) Link(p Payment) (string, bool) {
	v, ok := b.Message(p)
	if !ok {
		return "", false
	}
	return "https://" + b.host() + "/" + v.Phone + "?text=" + EncodeText(v.Text), true
}

// EncodeText percent-encodes s for a query value, spaces as %20.
func EncodeText(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}
