package worker

import (
	"context"
	"fmt"
	"log/slog"

	"cobros/internal/amqp"
)

// PaymentSyncer is the ledger side of the worker.
type PaymentSyncer interface {
	SyncPayment(ctx context.Context, id string) error
	ProcessBatch(ctx context.Context, limit int) (synced, failed int, err error)
}

// SyncWorker turns payment-registered messages into ledger rows and sweeps
// payments whose message was lost.
type SyncWorker struct {
	syncer    PaymentSyncer
	batchSize int
}

func NewSyncWorker(syncer PaymentSyncer, batchSize int) *SyncWorker {
	if batchSize <= 0 {
		batchSize = 10
	}
	return &SyncWorker{syncer: syncer, batchSize: batchSize}
}

// HandlePaymentRegistered processes one AMQP message. A returned error
// makes the consumer requeue the delivery.
func (w *SyncWorker) HandlePaymentRegistered(ctx context.Context, msg *amqp.PaymentRegisteredMessage) error {
	slog.InfoContext(ctx, "Processing payment registered message",
		"payment_id", msg.ID,
		"published_at", msg.Timestamp)

	if err := w.syncer.SyncPayment(ctx, msg.ID); err != nil {
		return fmt.Errorf("sync payment to ledger: %w", err)
	}
	return nil
}

// ProcessPendingPayments is the backup path for lost messages.
func (w *SyncWorker) ProcessPendingPayments(ctx context.Context) error {
	_, _, err := w.syncer.ProcessBatch(ctx, w.batchSize)
	return err
}

// StartupSyncCheck drains a larger batch of pending payments at startup,
// recovering from worker downtime.
func (w *SyncWorker) StartupSyncCheck(ctx context.Context) error {
	synced, failed, err := w.syncer.ProcessBatch(ctx, w.batchSize*5)
	if err != nil {
		return fmt.Errorf("startup sync check: %w", err)
	}
	if synced+failed == 0 {
		slog.InfoContext(ctx, "No pending payments found on startup")
		return nil
	}
	slog.InfoContext(ctx, "Startup sync completed", "synced", synced, "errors", failed)
	return nil
}
