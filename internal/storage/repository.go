package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"cobros/internal/core"
	"cobros/internal/sheets"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	_ "modernc.org/sqlite"
)

// Lookup limits of the receipt search: matching clients and services are
// resolved first, then receipts referencing them.
const (
	searchClientLimit  = 50
	searchServiceLimit = 20
)

type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
	now     func() time.Time
}

// Ensure interface conformance
var (
	_ sheets.PaymentLister   = (*SQLiteRepository)(nil)
	_ sheets.PaymentReader   = (*SQLiteRepository)(nil)
	_ sheets.PaymentWriter   = (*SQLiteRepository)(nil)
	_ sheets.ReceiptSearcher = (*SQLiteRepository)(nil)
)

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}
	dsn := dbPath + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dsn); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{
		db:      db,
		queries: New(db),
		now:     time.Now,
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database is reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// ListPayments implements sheets.PaymentLister.
func (r *SQLiteRepository) ListPayments(ctx context.Context, rng sheets.Range) ([]core.Payment, error) {
	var start, end string
	if !rng.Start.IsZero() {
		start = formatTime(rng.Start)
	}
	if !rng.End.IsZero() {
		end = formatTime(rng.End)
	}
	items, err := r.queries.ListPayments(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	return items, nil
}

// GetPayment implements sheets.PaymentReader.
func (r *SQLiteRepository) GetPayment(ctx context.Context, id string) (core.Payment, error) {
	p, err := r.queries.GetPayment(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Payment{}, fmt.Errorf("payment %s: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.Payment{}, fmt.Errorf("get payment %s: %w", id, err)
	}
	return p, nil
}

// CreatePayment implements sheets.PaymentWriter. The payment starts in the
// pending sync state.
func (r *SQLiteRepository) CreatePayment(ctx context.Context, np core.NewPayment) (core.Payment, error) {
	np.ReceiptID = strings.TrimSpace(np.ReceiptID)
	np.PaymentMethodID = strings.TrimSpace(np.PaymentMethodID)
	if err := np.Validate(); err != nil {
		return core.Payment{}, err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return core.Payment{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()
	qtx := r.queries.WithTx(tx)

	ok, err := qtx.ReceiptExists(ctx, np.ReceiptID)
	if err != nil {
		return core.Payment{}, fmt.Errorf("check receipt: %w", err)
	}
	if !ok {
		return core.Payment{}, fmt.Errorf("receipt %s: %w", np.ReceiptID, core.ErrNotFound)
	}

	id := uuid.NewString()
	err = qtx.CreatePayment(ctx, CreatePaymentParams{
		ID:              id,
		ReceiptID:       np.ReceiptID,
		PaymentMethodID: np.PaymentMethodID,
		TotalAmount:     np.TotalAmount,
		Status:          np.Status,
		CreatedAt:       r.now(),
	})
	if err != nil {
		return core.Payment{}, fmt.Errorf("create payment: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return core.Payment{}, fmt.Errorf("commit payment: %w", err)
	}

	slog.InfoContext(ctx, "Payment saved to SQLite",
		"id", id,
		"receipt_id", np.ReceiptID,
		"total_amount", np.TotalAmount.StringFixed(2),
		"status", int(np.Status))

	return r.GetPayment(ctx, id)
}

// SearchReceipts implements sheets.ReceiptSearcher. Client and service ids
// are looked up concurrently before the receipt query.
func (r *SQLiteRepository) SearchReceipts(ctx context.Context, query string, limit int) ([]core.Receipt, error) {
	folded := core.FoldText(query)
	if folded == "" {
		return nil, nil
	}
	pattern := likePattern(folded)

	var clientIDs, serviceIDs []string
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		ids, err := r.queries.ClientIDsMatching(gctx, pattern, searchClientLimit)
		if err != nil {
			return fmt.Errorf("match clients: %w", err)
		}
		clientIDs = ids
		return nil
	})
	g.Go(func() error {
		ids, err := r.queries.ServiceIDsMatching(gctx, pattern, searchServiceLimit)
		if err != nil {
			return fmt.Errorf("match services: %w", err)
		}
		serviceIDs = ids
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("search receipts: %w", err)
	}

	items, err := r.queries.SearchReceipts(ctx, pattern, clientIDs, serviceIDs, int64(limit))
	if err != nil {
		return nil, fmt.Errorf("search receipts: %w", err)
	}
	slog.DebugContext(ctx, "Receipt search",
		"query", query,
		"client_matches", len(clientIDs),
		"service_matches", len(serviceIDs),
		"results", len(items))
	return items, nil
}

// likePattern builds a substring LIKE pattern with '\' as the escape.
func likePattern(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(s) + "%"
}

// PendingSyncPayment is the minimal data the ledger worker needs.
type PendingSyncPayment struct {
	ID        string
	CreatedAt time.Time
}

// GetPendingSyncPayments returns the oldest payments not yet in the ledger.
func (r *SQLiteRepository) GetPendingSyncPayments(ctx context.Context, limit int) ([]PendingSyncPayment, error) {
	rows, err := r.queries.GetPendingSyncPayments(ctx, int64(limit))
	if err != nil {
		return nil, fmt.Errorf("get pending sync payments: %w", err)
	}
	out := make([]PendingSyncPayment, len(rows))
	for i, row := range rows {
		out[i] = PendingSyncPayment{ID: row.ID, CreatedAt: parseTime(row.CreatedAt)}
	}
	return out, nil
}

// MarkSynced records the ledger reference of a payment.
func (r *SQLiteRepository) MarkSynced(ctx context.Context, id, ref string) error {
	n, err := r.queries.MarkPaymentSynced(ctx, id, ref, r.now())
	if err != nil {
		return fmt.Errorf("mark payment synced: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("mark payment synced %s: %w", id, core.ErrNotFound)
	}
	slog.InfoContext(ctx, "Payment marked as synced", "id", id, "ledger_ref", ref)
	return nil
}

// MarkSyncError flags a payment whose ledger append failed.
func (r *SQLiteRepository) MarkSyncError(ctx context.Context, id string) error {
	if err := r.queries.MarkPaymentSyncError(ctx, id); err != nil {
		return fmt.Errorf("mark payment sync error: %w", err)
	}
	slog.WarnContext(ctx, "Payment marked with sync error", "id", id)
	return nil
}

// RetryFailedSyncs puts payments with a sync error back in the pending
// queue and returns how many were reset.
func (r *SQLiteRepository) RetryFailedSyncs(ctx context.Context) (int, error) {
	n, err := r.queries.RetryFailedSyncs(ctx)
	if err != nil {
		return 0, fmt.Errorf("retry failed syncs: %w", err)
	}
	return int(n), nil
}

// SyncState returns the ledger sync status ("pending", "synced", "error")
// and ledger reference of a payment.
func (r *SQLiteRepository) SyncState(ctx context.Context, id string) (string, string, error) {
	status, ref, err := r.queries.GetSyncStatus(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", "", fmt.Errorf("payment %s: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return "", "", fmt.Errorf("get sync status: %w", err)
	}
	return status, ref, nil
}

// PaymentMethods lists the configured payment methods by name.
func (r *SQLiteRepository) PaymentMethods(ctx context.Context) ([]core.PaymentMethod, error) {
	items, err := r.queries.ListPaymentMethods(ctx)
	if err != nil {
		return nil, fmt.Errorf("list payment methods: %w", err)
	}
	return items, nil
}

// CreateClient inserts a client, assigning an id when empty. Name and last
// name are required.
func (r *SQLiteRepository) CreateClient(ctx context.Context, c core.Client) (core.Client, error) {
	c.Name = strings.TrimSpace(c.Name)
	c.LastName = strings.TrimSpace(c.LastName)
	c.PhoneNumber = strings.TrimSpace(c.PhoneNumber)
	c.Reference = strings.TrimSpace(c.Reference)
	if c.Name == "" || c.LastName == "" {
		return core.Client{}, errors.New("client name and last name are required")
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if err := r.queries.CreateClient(ctx, c, r.now()); err != nil {
		return core.Client{}, fmt.Errorf("create client: %w", err)
	}
	return c, nil
}

func (r *SQLiteRepository) CreateService(ctx context.Context, s core.Service) (core.Service, error) {
	s.Name = strings.TrimSpace(s.Name)
	if s.Name == "" {
		return core.Service{}, errors.New("service name is required")
	}
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if err := r.queries.CreateService(ctx, s, r.now()); err != nil {
		return core.Service{}, fmt.Errorf("create service: %w", err)
	}
	return s, nil
}

// CreateReceipt inserts a receipt for an existing client and service. A zero
// CreatedAt is set to now.
func (r *SQLiteRepository) CreateReceipt(ctx context.Context, rc core.Receipt) (core.Receipt, error) {
	rc.AccountReceiptNumber = strings.TrimSpace(rc.AccountReceiptNumber)
	if rc.AccountReceiptNumber == "" {
		return core.Receipt{}, errors.New("account receipt number is required")
	}
	if rc.ID == "" {
		rc.ID = uuid.NewString()
	}
	if rc.CreatedAt.IsZero() {
		rc.CreatedAt = r.now()
	}
	if err := r.queries.CreateReceipt(ctx, rc); err != nil {
		return core.Receipt{}, fmt.Errorf("create receipt: %w", err)
	}
	return rc, nil
}

func (r *SQLiteRepository) CreatePaymentMethod(ctx context.Context, m core.PaymentMethod) (core.PaymentMethod, error) {
	m.Name = strings.TrimSpace(m.Name)
	if m.Name == "" {
		return core.PaymentMethod{}, errors.New("payment method name is required")
	}
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if err := r.queries.CreatePaymentMethod(ctx, m, r.now()); err != nil {
		return core.PaymentMethod{}, fmt.Errorf("create payment method: %w", err)
	}
	return m, nil
}
