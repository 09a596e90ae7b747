package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"cobros/internal/core"
	"cobros/internal/sheets"
	"cobros/internal/sheets/memory"
	"cobros/internal/storage"
)

// fakeSyncStore tracks sync status on top of a memory store.
type fakeSyncStore struct {
	*memory.Store
	mu     sync.Mutex
	status map[string]string
	refs   map[string]string
	order  []string
}

func newFakeSyncStore(payments ...core.Payment) *fakeSyncStore {
	f := &fakeSyncStore{
		Store:  memory.New(testReceipts(), payments),
		status: map[string]string{},
		refs:   map[string]string{},
	}
	for _, p := range payments {
		f.status[p.ID] = "pending"
		f.order = append(f.order, p.ID)
	}
	return f
}

func (f *fakeSyncStore) GetPendingSyncPayments(_ context.Context, limit int) ([]storage.PendingSyncPayment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []storage.PendingSyncPayment
	for _, id := range f.order {
		if f.status[id] == "pending" && len(out) < limit {
			out = append(out, storage.PendingSyncPayment{ID: id})
		}
	}
	return out, nil
}

func (f *fakeSyncStore) MarkSynced(_ context.Context, id, ref string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.status[id], f.refs[id] = "synced", ref
	return nil
}

func (f *fakeSyncStore) MarkSyncError(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.status[id] = "error"
	return nil
}

func (f *fakeSyncStore) RetryFailedSyncs(context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for id, s := range f.status {
		if s == "error" {
			f.status[id] = "pending"
			n++
		}
	}
	return n, nil
}

func (f *fakeSyncStore) state(id string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status[id]
}

type failingLedger struct{ fail map[string]bool }

func (l failingLedger) AppendPayment(_ context.Context, row sheets.LedgerRow) (string, error) {
	if l.fail[row.PaymentID] {
		return "", errors.New("quota exceeded")
	}
	return fmt.Sprintf("ledger:%s", row.PaymentID), nil
}

func TestSyncPayment(t *testing.T) {
	at := time.Date(2024, 3, 5, 10, 0, 0, 0, sv)
	store := newFakeSyncStore(payment("p1", "r1", "10", at))
	ledger := memory.New(nil, nil)
	proc := NewSyncProcessor(store, ledger, core.VoucherBuilder{ServiceFee: core.DefaultServiceFee, Location: sv}, SyncProcessorConfig{})

	if err := proc.SyncPayment(context.Background(), "p1"); err != nil {
		t.Fatalf("sync: %v", err)
	}
	if store.state("p1") != "synced" || store.refs["p1"] != "mem:1" {
		t.Fatalf("state=%s ref=%s", store.state("p1"), store.refs["p1"])
	}
	rows := ledger.Ledger()
	if len(rows) != 1 || rows[0].Receipt != "Ana Lopez · Agua (A-100)" {
		t.Fatalf("ledger rows: %+v", rows)
	}

	if err := proc.SyncPayment(context.Background(), "missing"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestProcessBatch(t *testing.T) {
	at := time.Date(2024, 3, 5, 10, 0, 0, 0, sv)
	store := newFakeSyncStore(
		payment("p1", "r1", "10", at),
		payment("p2", "r2", "20", at),
		payment("p3", "r1", "30", at),
	)
	proc := NewSyncProcessor(store, failingLedger{fail: map[string]bool{"p2": true}}, core.VoucherBuilder{}, SyncProcessorConfig{})
	ctx := context.Background()

	synced, failed, err := proc.ProcessBatch(ctx, 10)
	if err != nil || synced != 2 || failed != 1 {
		t.Fatalf("ProcessBatch() = %d, %d, %v", synced, failed, err)
	}
	if store.state("p2") != "error" || store.state("p3") != "synced" {
		t.Fatalf("states: p2=%s p3=%s", store.state("p2"), store.state("p3"))
	}

	if n := proc.RetryFailed(ctx); n != 1 || store.state("p2") != "pending" {
		t.Fatalf("RetryFailed() = %d, p2=%s", n, store.state("p2"))
	}

	synced, _, _ = proc.ProcessBatch(ctx, 10)
	if synced != 0 {
		t.Fatalf("p2 still fails, synced=%d", synced)
	}
}

func TestDefaultSyncProcessorConfig(t *testing.T) {
	config := DefaultSyncProcessorConfig()
	if config.PollInterval != 30*time.Second || config.BatchSize != 10 || config.RetryInterval != 10*time.Minute {
		t.Errorf("unexpected defaults %+v", config)
	}

	proc := NewSyncProcessor(nil, nil, core.VoucherBuilder{}, SyncProcessorConfig{BatchSize: 20})
	if proc.config.BatchSize != 20 || proc.config.PollInterval != 30*time.Second {
		t.Errorf("custom values not merged with defaults: %+v", proc.config)
	}
}

func TestSyncProcessor_Lifecycle(t *testing.T) {
	store := newFakeSyncStore()
	proc := NewSyncProcessor(store, memory.New(nil, nil), core.VoucherBuilder{}, SyncProcessorConfig{PollInterval: 10 * time.Millisecond})
	ctx := context.Background()

	if proc.IsRunning() {
		t.Fatal("processor should not be running initially")
	}
	if err := proc.Stop(ctx); err != nil {
		t.Fatalf("Stop should not error when not running: %v", err)
	}
	if err := proc.Start(ctx); err != nil {
		t.Fatal(err)
	}
	if err := proc.Start(ctx); err == nil {
		t.Error("expected error when starting already running processor")
	}
	if err := proc.Stop(ctx); err != nil || proc.IsRunning() {
		t.Fatalf("Stop() = %v, running=%v", err, proc.IsRunning())
	}
}
