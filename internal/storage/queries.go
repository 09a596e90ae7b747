package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"cobros/internal/core"

	"github.com/shopspring/decimal"
)

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
	QueryContext(context.Context, string, ...any) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...any) *sql.Row
}

type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

// WithTx returns a Queries bound to tx.
func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

// Timestamps are stored as fixed-width UTC text so lexical order is
// chronological order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

const paymentColumns = `
	p.id, p.receipt_id, COALESCE(p.payment_method_id, ''), p.total_amount, p.status, p.created_at,
	COALESCE(p.proof_bucket, ''), COALESCE(p.proof_path, ''),
	r.client_id, r.service_id, r.account_receipt_number, r.created_at,
	c.name, c.last_name, c.phone_number, c.reference,
	s.name,
	COALESCE(m.name, '')
FROM payments p
JOIN receipts r ON r.id = p.receipt_id
JOIN clients c ON c.id = r.client_id
JOIN services s ON s.id = r.service_id
LEFT JOIN payment_methods m ON m.id = p.payment_method_id`

const listPayments = `SELECT` + paymentColumns + `
WHERE (? = '' OR p.created_at >= ?)
  AND (? = '' OR p.created_at < ?)
ORDER BY p.created_at DESC, p.id`

const getPayment = `SELECT` + paymentColumns + `
WHERE p.id = ?`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPayment(rs rowScanner) (core.Payment, error) {
	var (
		p                      core.Payment
		amount                 decimal.NullDecimal
		status                 int64
		createdAt, rcCreatedAt string
		proofBucket, proofPath string
		rc                     core.Receipt
		cl                     core.Client
		svc                    core.Service
		methodName             string
	)
	err := rs.Scan(
		&p.ID, &p.ReceiptID, &p.PaymentMethodID, &amount, &status, &createdAt,
		&proofBucket, &proofPath,
		&rc.ClientID, &rc.ServiceID, &rc.AccountReceiptNumber, &rcCreatedAt,
		&cl.Name, &cl.LastName, &cl.PhoneNumber, &cl.Reference,
		&svc.Name,
		&methodName,
	)
	if err != nil {
		return core.Payment{}, err
	}

	p.TotalAmount = amount
	p.Status = core.PaymentStatus(status)
	p.CreatedAt = parseTime(createdAt)
	if proofPath != "" {
		p.Proof = &core.ProofRef{Bucket: proofBucket, Path: proofPath}
	}

	rc.ID = p.ReceiptID
	rc.CreatedAt = parseTime(rcCreatedAt)
	cl.ID = rc.ClientID
	svc.ID = rc.ServiceID
	rc.Client = &cl
	rc.Service = &svc
	p.Receipt = &rc

	if p.PaymentMethodID != "" {
		p.PaymentMethod = &core.PaymentMethod{ID: p.PaymentMethodID, Name: methodName}
	}
	return p, nil
}

func (q *Queries) ListPayments(ctx context.Context, start, end string) ([]core.Payment, error) {
	rows, err := q.db.QueryContext(ctx, listPayments, start, start, end, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []core.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func (q *Queries) GetPayment(ctx context.Context, id string) (core.Payment, error) {
	return scanPayment(q.db.QueryRowContext(ctx, getPayment, id))
}

const createPayment = `INSERT INTO payments (id, receipt_id, payment_method_id, total_amount, status, created_at)
VALUES (?, ?, NULLIF(?, ''), ?, ?, ?)`

type CreatePaymentParams struct {
	ID              string
	ReceiptID       string
	PaymentMethodID string
	TotalAmount     decimal.Decimal
	Status          core.PaymentStatus
	CreatedAt       time.Time
}

func (q *Queries) CreatePayment(ctx context.Context, arg CreatePaymentParams) error {
	_, err := q.db.ExecContext(ctx, createPayment,
		arg.ID, arg.ReceiptID, arg.PaymentMethodID, arg.TotalAmount.String(), int64(arg.Status), formatTime(arg.CreatedAt))
	return err
}

const receiptExists = `SELECT COUNT(1) FROM receipts WHERE id = ?`

func (q *Queries) ReceiptExists(ctx context.Context, id string) (bool, error) {
	var n int64
	if err := q.db.QueryRowContext(ctx, receiptExists, id).Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

const getPendingSyncPayments = `SELECT id, created_at FROM payments
WHERE sync_status = 'pending'
ORDER BY created_at
LIMIT ?`

type PendingSyncRow struct {
	ID        string
	CreatedAt string
}

func (q *Queries) GetPendingSyncPayments(ctx context.Context, limit int64) ([]PendingSyncRow, error) {
	rows, err := q.db.QueryContext(ctx, getPendingSyncPayments, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []PendingSyncRow
	for rows.Next() {
		var r PendingSyncRow
		if err := rows.Scan(&r.ID, &r.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, r)
	}
	return items, rows.Err()
}

const markPaymentSynced = `UPDATE payments SET sync_status = 'synced', ledger_ref = ?, synced_at = ? WHERE id = ?`

func (q *Queries) MarkPaymentSynced(ctx context.Context, id, ref string, at time.Time) (int64, error) {
	res, err := q.db.ExecContext(ctx, markPaymentSynced, ref, formatTime(at), id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const markPaymentSyncError = `UPDATE payments SET sync_status = 'error' WHERE id = ?`

func (q *Queries) MarkPaymentSyncError(ctx context.Context, id string) error {
	_, err := q.db.ExecContext(ctx, markPaymentSyncError, id)
	return err
}

const retryFailedSyncs = `UPDATE payments SET sync_status = 'pending' WHERE sync_status = 'error'`

func (q *Queries) RetryFailedSyncs(ctx context.Context) (int64, error) {
	res, err := q.db.ExecContext(ctx, retryFailedSyncs)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const getSyncStatus = `SELECT sync_status, COALESCE(ledger_ref, '') FROM payments WHERE id = ?`

func (q *Queries) GetSyncStatus(ctx context.Context, id string) (status, ref string, err error) {
	err = q.db.QueryRowContext(ctx, getSyncStatus, id).Scan(&status, &ref)
	return status, ref, err
}

const clientIDsMatching = `SELECT id FROM clients
WHERE name_fold LIKE ? ESCAPE '\' OR last_name_fold LIKE ? ESCAPE '\'
LIMIT ?`

func (q *Queries) ClientIDsMatching(ctx context.Context, pattern string, limit int64) ([]string, error) {
	return q.ids(ctx, clientIDsMatching, pattern, pattern, limit)
}

const serviceIDsMatching = `SELECT id FROM services
WHERE name_fold LIKE ? ESCAPE '\'
LIMIT ?`

func (q *Queries) ServiceIDsMatching(ctx context.Context, pattern string, limit int64) ([]string, error) {
	return q.ids(ctx, serviceIDsMatching, pattern, limit)
}

func (q *Queries) ids(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

const receiptColumns = `SELECT r.id, r.client_id, r.service_id, r.account_receipt_number, r.created_at,
	c.name, c.last_name, c.phone_number, c.reference, s.name
FROM receipts r
JOIN clients c ON c.id = r.client_id
JOIN services s ON s.id = r.service_id`

// SearchReceipts matches the account pattern or any of the given client and
// service ids.
func (q *Queries) SearchReceipts(ctx context.Context, pattern string, clientIDs, serviceIDs []string, limit int64) ([]core.Receipt, error) {
	var (
		where = []string{`r.account_fold LIKE ? ESCAPE '\'`}
		args  = []any{pattern}
	)
	if len(clientIDs) > 0 {
		where = append(where, "r.client_id IN ("+placeholders(len(clientIDs))+")")
		for _, id := range clientIDs {
			args = append(args, id)
		}
	}
	if len(serviceIDs) > 0 {
		where = append(where, "r.service_id IN ("+placeholders(len(serviceIDs))+")")
		for _, id := range serviceIDs {
			args = append(args, id)
		}
	}
	args = append(args, limit)
	query := fmt.Sprintf("%s\nWHERE %s\nORDER BY r.created_at DESC, r.id\nLIMIT ?", receiptColumns, strings.Join(where, " OR "))

	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []core.Receipt
	for rows.Next() {
		var (
			r         core.Receipt
			c         core.Client
			s         core.Service
			createdAt string
		)
		if err := rows.Scan(&r.ID, &r.ClientID, &r.ServiceID, &r.AccountReceiptNumber, &createdAt,
			&c.Name, &c.LastName, &c.PhoneNumber, &c.Reference, &s.Name); err != nil {
			return nil, err
		}
		r.CreatedAt = parseTime(createdAt)
		c.ID, s.ID = r.ClientID, r.ServiceID
		r.Client, r.Service = &c, &s
		items = append(items, r)
	}
	return items, rows.Err()
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

const createClient = `INSERT INTO clients (id, name, last_name, phone_number, reference, name_fold, last_name_fold, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

func (q *Queries) CreateClient(ctx context.Context, c core.Client, at time.Time) error {
	_, err := q.db.ExecContext(ctx, createClient, c.ID, c.Name, c.LastName, c.PhoneNumber, c.Reference,
		core.FoldText(c.Name), core.FoldText(c.LastName), formatTime(at))
	return err
}

const createService = `INSERT INTO services (id, name, name_fold, created_at) VALUES (?, ?, ?, ?)`

func (q *Queries) CreateService(ctx context.Context, s core.Service, at time.Time) error {
	_, err := q.db.ExecContext(ctx, createService, s.ID, s.Name, core.FoldText(s.Name), formatTime(at))
	return err
}

const createReceipt = `INSERT INTO receipts (id, client_id, service_id, account_receipt_number, account_fold, created_at)
VALUES (?, ?, ?, ?, ?, ?)`

func (q *Queries) CreateReceipt(ctx context.Context, r core.Receipt) error {
	_, err := q.db.ExecContext(ctx, createReceipt, r.ID, r.ClientID, r.ServiceID, r.AccountReceiptNumber,
		core.FoldText(r.AccountReceiptNumber), formatTime(r.CreatedAt))
	return err
}

const createPaymentMethod = `INSERT INTO payment_methods (id, name, created_at) VALUES (?, ?, ?)`

func (q *Queries) CreatePaymentMethod(ctx context.Context, m core.PaymentMethod, at time.Time) error {
	_, err := q.db.ExecContext(ctx, createPaymentMethod, m.ID, m.Name, formatTime(at))
	return err
}

const listPaymentMethods = `SELECT id, name FROM payment_methods ORDER BY name`

func (q *Queries) ListPaymentMethods(ctx context.Context) ([]core.PaymentMethod, error) {
	rows, err := q.db.QueryContext(ctx, listPaymentMethods)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []core.PaymentMethod
	for rows.Next() {
		var m core.PaymentMethod
		if err := rows.Scan(&m.ID, &m.Name); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
