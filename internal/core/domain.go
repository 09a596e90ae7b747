package core

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	StatusPending PaymentStatus = 0
	StatusPaid    PaymentStatus = 1
)

// DefaultProofBucket is the blob bucket payment proofs are uploaded to.
const DefaultProofBucket = "payment-proofs"

type (
	PaymentStatus int

	Client struct {
		ID          string
		Name        string
		LastName    string
		PhoneNumber string // free-form, optional
		Reference   string
	}

	Service struct {
		ID   string
		Name string
	}

	// Receipt is a client's account with one service provider, not a
	// payment proof document.
	Receipt struct {
		ID                   string
		ClientID             string
		ServiceID            string
		AccountReceiptNumber string
		CreatedAt            time.Time
		Client               *Client
		Service              *Service
	}

	PaymentMethod struct {
		ID   string
		Name string
	}

	// ProofRef points at an uploaded payment proof; opaque to this package.
	ProofRef struct {
		Bucket string
		Path   string
	}

	Payment struct {
		ID              string
		ReceiptID       string
		PaymentMethodID string
		// TotalAmount is invalid when the source row carried no usable number.
		TotalAmount   decimal.NullDecimal
		Status        PaymentStatus
		CreatedAt     time.Time
		Proof         *ProofRef
		Receipt       *Receipt
		PaymentMethod *PaymentMethod
	}

	// NewPayment is the input for registering a payment.
	NewPayment struct {
		ReceiptID       string
		PaymentMethodID string
		TotalAmount     decimal.Decimal
		Status          PaymentStatus
	}
)

var (
	ErrReceiptRequired = errors.New("El recibo es requerido.")
	ErrInvalidAmount   = errors.New("El monto debe ser cero o mayor.")
	ErrInvalidStatus   = errors.New("invalid payment status")
	ErrNotFound        = errors.New("not found")
)

var statusLabels = map[PaymentStatus]string{
	StatusPending: "Pendiente",
	StatusPaid:    "Pagado",
}

// StatusLabel returns the display label for a status, or the placeholder
// for values outside the enum.
func StatusLabel(s PaymentStatus) string {
	if l, ok := statusLabels[s]; ok {
		return l
	}
	return Placeholder
}

func (s PaymentStatus) Valid() bool {
	_, ok := statusLabels[s]
	return ok
}

// DisplayName joins the non-blank name parts with a single space.
func (c Client) DisplayName() string {
	parts := make([]string, 0, 2)
	for _, p := range []string{c.Name, c.LastName} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " ")
}

// Validate applies the registration rules: a receipt id and a
// non-negative amount.
func (n NewPayment) Validate() error {
	if strings.TrimSpace(n.ReceiptID) == "" {
		return ErrReceiptRequired
	}
	if n.TotalAmount.IsNegative() {
		return ErrInvalidAmount
	}
	if !n.Status.Valid() {
		return ErrInvalidStatus
	}
	return nil
}

// ClientOf returns the client reached through the payment's receipt, or nil.
func (p Payment) ClientOf() *Client {
	if p.Receipt == nil {
		return nil
	}
	return p.Receipt.Client
}
