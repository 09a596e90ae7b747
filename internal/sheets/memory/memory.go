package memory

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"cobros/internal/core"
	"cobros/internal/sheets"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Store keeps receipts, payments and ledger rows in process memory. It
// satisfies every storage port plus the ledger writer, so the server and
// worker can run without SQLite or Google credentials.
type Store struct {
	mu       sync.Mutex
	receipts []core.Receipt
	payments []core.Payment
	methods  map[string]core.PaymentMethod
	ledger   []sheets.LedgerRow
	now      func() time.Time
}

var (
	_ sheets.PaymentLister   = (*Store)(nil)
	_ sheets.PaymentReader   = (*Store)(nil)
	_ sheets.PaymentWriter   = (*Store)(nil)
	_ sheets.ReceiptSearcher = (*Store)(nil)
	_ sheets.LedgerWriter    = (*Store)(nil)
)

func New(receipts []core.Receipt, payments []core.Payment) *Store {
	s := &Store{
		methods: map[string]core.PaymentMethod{},
		now:     time.Now,
	}
	s.receipts = append(s.receipts, receipts...)
	for _, p := range payments {
		switch {
		case p.Receipt == nil:
			if rc, ok := s.findReceipt(p.ReceiptID); ok {
				p.Receipt = &rc
			}
		case !s.hasReceipt(p.Receipt.ID):
			s.receipts = append(s.receipts, *p.Receipt)
		}
		if p.PaymentMethod != nil && p.PaymentMethod.ID != "" {
			s.methods[p.PaymentMethod.ID] = *p.PaymentMethod
		}
		s.payments = append(s.payments, p)
	}
	return s
}

// NewFromFiles seeds a store from receipts.json and payments.json under
// base. Missing files yield an empty store; malformed JSON is an error.
func NewFromFiles(base string) (*Store, error) {
	receipts, err := readSeed(filepath.Join(base, "receipts.json"), core.DecodeReceipts)
	if err != nil {
		return nil, err
	}
	payments, err := readSeed(filepath.Join(base, "payments.json"), core.DecodePayments)
	if err != nil {
		return nil, err
	}
	return New(receipts, payments), nil
}

func readSeed[T any](path string, decode func([]byte) ([]T, error)) ([]T, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	out, err := decode(data)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return out, nil
}

// ListPayments returns payments within r, most recent first.
func (s *Store) ListPayments(_ context.Context, r sheets.Range) ([]core.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Payment, 0, len(s.payments))
	for _, p := range s.payments {
		if (!r.Start.IsZero() || !r.End.IsZero()) && (p.CreatedAt.IsZero() || !r.Contains(p.CreatedAt)) {
			continue
		}
		out = append(out, p)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) GetPayment(_ context.Context, id string) (core.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.payments {
		if p.ID == id {
			return p, nil
		}
	}
	return core.Payment{}, fmt.Errorf("payment %s: %w", id, core.ErrNotFound)
}

// CreatePayment validates np, joins its receipt and method and stores it.
func (s *Store) CreatePayment(_ context.Context, np core.NewPayment) (core.Payment, error) {
	np.ReceiptID = strings.TrimSpace(np.ReceiptID)
	np.PaymentMethodID = strings.TrimSpace(np.PaymentMethodID)
	if err := np.Validate(); err != nil {
		return core.Payment{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	rc, ok := s.findReceipt(np.ReceiptID)
	if !ok {
		return core.Payment{}, fmt.Errorf("receipt %s: %w", np.ReceiptID, core.ErrNotFound)
	}
	p := core.Payment{
		ID:              uuid.NewString(),
		ReceiptID:       rc.ID,
		PaymentMethodID: np.PaymentMethodID,
		TotalAmount:     decimal.NewNullDecimal(np.TotalAmount),
		Status:          np.Status,
		CreatedAt:       s.now().UTC(),
		Receipt:         &rc,
	}
	if m, ok := s.methods[np.PaymentMethodID]; ok {
		p.PaymentMethod = &m
	}
	s.payments = append(s.payments, p)
	return p, nil
}

// SearchReceipts matches the folded query against client name, last name,
// service name and account number.
func (s *Store) SearchReceipts(_ context.Context, query string, limit int) ([]core.Receipt, error) {
	q := core.FoldText(query)
	if q == "" {
		return nil, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Receipt
	for _, rc := range s.receipts {
		if receiptMatches(rc, q) {
			out = append(out, rc)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func receiptMatches(rc core.Receipt, q string) bool {
	fields := []string{rc.AccountReceiptNumber}
	if rc.Client != nil {
		fields = append(fields, rc.Client.Name, rc.Client.LastName)
	}
	if rc.Service != nil {
		fields = append(fields, rc.Service.Name)
	}
	for _, f := range fields {
		if strings.Contains(core.FoldText(f), q) {
			return true
		}
	}
	return false
}

// AppendPayment records the row and returns a synthetic reference.
func (s *Store) AppendPayment(_ context.Context, row sheets.LedgerRow) (string, error) {
	if row.PaymentID == "" {
		return "", errors.New("ledger row without payment id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, r := range s.ledger {
		if r.PaymentID == row.PaymentID {
			return fmt.Sprintf("mem:%d", i+1), nil
		}
	}
	s.ledger = append(s.ledger, row)
	return fmt.Sprintf("mem:%d", len(s.ledger)), nil
}

// Ledger returns a copy of the appended rows.
func (s *Store) Ledger() []sheets.LedgerRow {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]sheets.LedgerRow(nil), s.ledger...)
}

func (s *Store) findReceipt(id string) (core.Receipt, bool) {
	for _, rc := range s.receipts {
		if rc.ID == id {
			return rc, true
		}
	}
	return core.Receipt{}, false
}

func (s *Store) hasReceipt(id string) bool {
	_, ok := s.findReceipt(id)
	return ok
}
