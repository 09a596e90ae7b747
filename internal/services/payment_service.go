package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cobros/internal/core"
	"cobros/internal/log"
	"cobros/internal/sheets"

	"github.com/shopspring/decimal"
)

// ErrUnaddressable means the payment's client cannot receive a voucher.
var ErrUnaddressable = errors.New("el cliente no tiene un teléfono válido para enviar el comprobante")

// PaymentStore is the storage a PaymentService needs.
type PaymentStore interface {
	sheets.PaymentLister
	sheets.PaymentReader
	sheets.PaymentWriter
}

// Publisher announces registered payments to the voucher worker.
type Publisher interface {
	PublishPaymentRegistered(ctx context.Context, id string) error
}

// PaymentService registers payments, builds bucket reports and vouchers.
type PaymentService struct {
	store     PaymentStore
	publisher Publisher
	vouchers  core.VoucherBuilder
	loc       *time.Location
	logger    *log.StructuredLogger
}

// NewPaymentService wires a store with an optional publisher. The voucher
// builder's location is the business location used for reports.
func NewPaymentService(store PaymentStore, publisher Publisher, vouchers core.VoucherBuilder) *PaymentService {
	loc := vouchers.Location
	if loc == nil {
		loc = core.DefaultLocation()
		vouchers.Location = loc
	}
	return &PaymentService{
		store:     store,
		publisher: publisher,
		vouchers:  vouchers,
		loc:       loc,
		logger:    log.NewStructuredLogger(log.Default(log.ComponentPayment)),
	}
}

func (s *PaymentService) Location() *time.Location { return s.loc }

func (s *PaymentService) Vouchers() core.VoucherBuilder { return s.vouchers }

// RegisterInput carries a payment as typed by the operator.
type RegisterInput struct {
	ReceiptID       string
	PaymentMethodID string
	TotalAmount     string
	Status          *int
}

// RegisterPayment validates and stores a payment, then publishes it.
// Publishing failures are logged and never fail the registration.
func (s *PaymentService) RegisterPayment(ctx context.Context, in RegisterInput) (core.Payment, error) {
	np := core.NewPayment{
		ReceiptID:       strings.TrimSpace(in.ReceiptID),
		PaymentMethodID: strings.TrimSpace(in.PaymentMethodID),
	}
	if np.ReceiptID == "" {
		return core.Payment{}, core.ErrReceiptRequired
	}
	amount, err := core.ParseAmount(in.TotalAmount)
	if err != nil {
		return core.Payment{}, err
	}
	np.TotalAmount = amount
	if in.Status != nil {
		np.Status = core.PaymentStatus(*in.Status)
	}
	if err := np.Validate(); err != nil {
		return core.Payment{}, err
	}

	p, err := s.store.CreatePayment(ctx, np)
	if err != nil {
		return core.Payment{}, fmt.Errorf("save payment: %w", err)
	}
	s.logger.LogPaymentRegistered(ctx, p.ID, p.ReceiptID, core.FormatAmount(p.TotalAmount), core.StatusLabel(p.Status))

	if s.publisher == nil {
		log.FromContext(ctx).WarnContext(ctx, "AMQP publisher not available, skipping payment message", log.FieldPaymentID, p.ID)
		return p, nil
	}
	if err := s.publisher.PublishPaymentRegistered(ctx, p.ID); err != nil {
		log.FromContext(ctx).ErrorContext(ctx, "Failed to publish payment message", log.FieldPaymentID, p.ID, log.FieldError, err)
	}
	return p, nil
}

func (s *PaymentService) GetPayment(ctx context.Context, id string) (core.Payment, error) {
	return s.store.GetPayment(ctx, strings.TrimSpace(id))
}

// Report lists the payments of the bucket around ref with their aggregate.
// Known buckets pre-filter in storage; an unknown bucket lists everything.
func (s *PaymentService) Report(ctx context.Context, bucket core.Bucket, ref time.Time) (core.Summary, error) {
	var rng sheets.Range
	if start, next, ok := core.BucketBounds(bucket, ref, s.loc); ok {
		rng = sheets.Range{Start: start, End: next}
	}
	payments, err := s.store.ListPayments(ctx, rng)
	if err != nil {
		return core.Summary{}, fmt.Errorf("list payments: %w", err)
	}
	sum := core.Summarize(payments, bucket, ref, s.loc)
	log.FromContext(ctx).DebugContext(ctx, "Payment report built", log.NewFields().WithReport(string(bucket), sum.Count).ToSlice()...)
	return sum, nil
}

// Voucher returns the voucher and its deep link for payment id.
func (s *PaymentService) Voucher(ctx context.Context, id string) (core.Voucher, string, error) {
	p, err := s.GetPayment(ctx, id)
	if err != nil {
		return core.Voucher{}, "", err
	}
	v, ok := s.vouchers.Message(p)
	if !ok {
		return core.Voucher{}, "", ErrUnaddressable
	}
	link, _ := s.vouchers.Link(p)
	return v, link, nil
}

// LedgerRow renders p for the external ledger. The voucher link is empty
// for unaddressable clients.
func LedgerRow(p core.Payment, vb core.VoucherBuilder) sheets.LedgerRow {
	amount := decimal.Zero
	if p.TotalAmount.Valid {
		amount = p.TotalAmount.Decimal
	}
	client := core.Placeholder
	if c := p.ClientOf(); c != nil && c.DisplayName() != "" {
		client = c.DisplayName()
	}
	method := ""
	if p.PaymentMethod != nil {
		method = p.PaymentMethod.Name
	}
	link, _ := vb.Link(p)
	return sheets.LedgerRow{
		PaymentID:   p.ID,
		CreatedAt:   core.FormatDate(p.CreatedAt, vb.Location),
		Client:      client,
		Receipt:     p.ReceiptLabel(),
		Method:      method,
		Status:      core.StatusLabel(p.Status),
		Amount:      amount,
		ServiceFee:  vb.Fee(),
		Total:       amount.Add(vb.Fee()),
		VoucherLink: link,
	}
}
