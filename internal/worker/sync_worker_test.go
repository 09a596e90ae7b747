package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"cobros/internal/amqp"
)

type fakeSyncer struct {
	synced  []string
	limits  []int
	syncErr error
	batch   func(limit int) (int, int, error)
}

func (f *fakeSyncer) SyncPayment(_ context.Context, id string) error {
	f.synced = append(f.synced, id)
	return f.syncErr
}

func (f *fakeSyncer) ProcessBatch(_ context.Context, limit int) (int, int, error) {
	f.limits = append(f.limits, limit)
	if f.batch != nil {
		return f.batch(limit)
	}
	return 0, 0, nil
}

func TestHandlePaymentRegistered(t *testing.T) {
	syncer := &fakeSyncer{}
	w := NewSyncWorker(syncer, 10)
	msg := &amqp.PaymentRegisteredMessage{ID: "p1", Timestamp: time.Now()}

	if err := w.HandlePaymentRegistered(context.Background(), msg); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(syncer.synced) != 1 || syncer.synced[0] != "p1" {
		t.Fatalf("synced = %v", syncer.synced)
	}

	boom := errors.New("sheets unavailable")
	syncer.syncErr = boom
	if err := w.HandlePaymentRegistered(context.Background(), msg); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped error for requeue, got %v", err)
	}
}

func TestBatchSizes(t *testing.T) {
	syncer := &fakeSyncer{}
	w := NewSyncWorker(syncer, 0)

	if err := w.ProcessPendingPayments(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := w.StartupSyncCheck(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(syncer.limits) != 2 || syncer.limits[0] != 10 || syncer.limits[1] != 50 {
		t.Fatalf("limits = %v, want [10 50]", syncer.limits)
	}
}

func TestStartupSyncCheckError(t *testing.T) {
	syncer := &fakeSyncer{batch: func(int) (int, int, error) { return 0, 0, errors.New("db locked") }}
	if err := NewSyncWorker(syncer, 5).StartupSyncCheck(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}
