package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"cobros/internal/core"
	"cobros/internal/log"
	"cobros/internal/sheets"
	"cobros/internal/storage"
)

// SyncProcessorConfig holds configuration for the sync processor
type SyncProcessorConfig struct {
	// PollInterval is how often pending payments are swept (default: 30s)
	PollInterval time.Duration

	// BatchSize is the max number of payments per sweep (default: 10)
	BatchSize int

	// RetryInterval is how often payments with a sync error are put back
	// in the queue (default: 10m)
	RetryInterval time.Duration
}

func DefaultSyncProcessorConfig() SyncProcessorConfig {
	return SyncProcessorConfig{
		PollInterval:  30 * time.Second,
		BatchSize:     10,
		RetryInterval: 10 * time.Minute,
	}
}

// SyncStore is the sync bookkeeping of the payment store.
type SyncStore interface {
	sheets.PaymentReader
	GetPendingSyncPayments(ctx context.Context, limit int) ([]storage.PendingSyncPayment, error)
	MarkSynced(ctx context.Context, id, ref string) error
	MarkSyncError(ctx context.Context, id string) error
	RetryFailedSyncs(ctx context.Context) (int, error)
}

var _ SyncStore = (*storage.SQLiteRepository)(nil)

// SyncProcessor appends payments to the ledger and records the outcome.
type SyncProcessor struct {
	store    SyncStore
	ledger   sheets.LedgerWriter
	vouchers core.VoucherBuilder
	config   SyncProcessorConfig
	logger   *log.StructuredLogger

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewSyncProcessor(store SyncStore, ledger sheets.LedgerWriter, vouchers core.VoucherBuilder, config SyncProcessorConfig) *SyncProcessor {
	d := DefaultSyncProcessorConfig()
	if config.PollInterval <= 0 {
		config.PollInterval = d.PollInterval
	}
	if config.BatchSize <= 0 {
		config.BatchSize = d.BatchSize
	}
	if config.RetryInterval <= 0 {
		config.RetryInterval = d.RetryInterval
	}
	return &SyncProcessor{
		store:    store,
		ledger:   ledger,
		vouchers: vouchers,
		config:   config,
		logger:   log.NewStructuredLogger(log.Default(log.ComponentLedger)),
	}
}

// SyncPayment appends one payment to the ledger and marks it synced. A
// failed append marks the payment with a sync error.
func (p *SyncProcessor) SyncPayment(ctx context.Context, id string) error {
	payment, err := p.store.GetPayment(ctx, id)
	if err != nil {
		return fmt.Errorf("get payment %s: %w", id, err)
	}

	amount := core.FormatAmount(payment.TotalAmount)
	ref, err := p.ledger.AppendPayment(ctx, LedgerRow(payment, p.vouchers))
	p.logger.LogLedgerAppend(ctx, id, amount, ref, err)
	if err != nil {
		if markErr := p.store.MarkSyncError(ctx, id); markErr != nil {
			slog.ErrorContext(ctx, "Failed to mark sync error", "payment_id", id, "error", markErr)
		}
		return fmt.Errorf("append to ledger: %w", err)
	}

	if err := p.store.MarkSynced(ctx, id, ref); err != nil {
		// The row is in the ledger; the next sweep finds it there by id.
		slog.ErrorContext(ctx, "Failed to mark as synced", "payment_id", id, "error", err)
	}
	return nil
}

// ProcessBatch syncs up to limit pending payments, oldest first.
func (p *SyncProcessor) ProcessBatch(ctx context.Context, limit int) (synced, failed int, err error) {
	pending, err := p.store.GetPendingSyncPayments(ctx, limit)
	if err != nil {
		return 0, 0, fmt.Errorf("get pending payments: %w", err)
	}
	for _, item := range pending {
		if ctx.Err() != nil {
			return synced, failed, ctx.Err()
		}
		if err := p.SyncPayment(ctx, item.ID); err != nil {
			slog.ErrorContext(ctx, "Failed to sync payment", "payment_id", item.ID, "error", err)
			if errors.Is(err, core.ErrNotFound) {
				_ = p.store.MarkSyncError(ctx, item.ID)
			}
			failed++
			continue
		}
		synced++
	}
	if len(pending) > 0 {
		slog.InfoContext(ctx, "Processed pending payments", "total", len(pending), "synced", synced, "errors", failed)
	}
	return synced, failed, nil
}

// Start begins the sweep loop. Returns an error if already running.
func (p *SyncProcessor) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return fmt.Errorf("sync processor is already running")
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})
	p.mu.Unlock()

	go p.runLoop(ctx)

	slog.InfoContext(ctx, "Sync processor started",
		"poll_interval", p.config.PollInterval,
		"batch_size", p.config.BatchSize)
	return nil
}

// Stop signals the loop and waits for it or for ctx.
func (p *SyncProcessor) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	stopCh, doneCh := p.stopCh, p.doneCh
	p.mu.Unlock()

	close(stopCh)
	select {
	case <-doneCh:
	case <-ctx.Done():
		slog.WarnContext(ctx, "Sync processor stop timed out")
		return ctx.Err()
	}

	p.mu.Lock()
	p.running = false
	p.mu.Unlock()
	return nil
}

func (p *SyncProcessor) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *SyncProcessor) runLoop(ctx context.Context) {
	defer close(p.doneCh)

	pollTicker := time.NewTicker(p.config.PollInterval)
	defer pollTicker.Stop()
	retryTicker := time.NewTicker(p.config.RetryInterval)
	defer retryTicker.Stop()

	for {
		select {
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		case <-pollTicker.C:
			if _, _, err := p.ProcessBatch(ctx, p.config.BatchSize); err != nil && ctx.Err() == nil {
				slog.ErrorContext(ctx, "Pending payment sweep failed", "error", err)
			}
		case <-retryTicker.C:
			p.RetryFailed(ctx)
		}
	}
}

// RetryFailed requeues payments whose last ledger append failed.
func (p *SyncProcessor) RetryFailed(ctx context.Context) int {
	n, err := p.store.RetryFailedSyncs(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to requeue sync errors", "error", err)
		return 0
	}
	if n > 0 {
		slog.InfoContext(ctx, "Requeued payments with sync errors", "count", n)
	}
	return n
}
