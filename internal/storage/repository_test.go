package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"cobros/internal/core"
	"cobros/internal/sheets"

	"github.com/shopspring/decimal"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "cobros.db"))
	if err != nil {
		t.Fatalf("new repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

// clock returns a now func that advances one minute per call from start.
func clock(start time.Time) func() time.Time {
	t := start
	return func() time.Time {
		t = t.Add(time.Minute)
		return t
	}
}

type fixture struct {
	ana, luis   core.Client
	agua, luz   core.Service
	anaAgua     core.Receipt
	luisLuz     core.Receipt
	anaInternet core.Receipt
}

func seed(t *testing.T, repo *SQLiteRepository) fixture {
	t.Helper()
	ctx := context.Background()
	var f fixture
	var err error
	must := func(e error) {
		t.Helper()
		if e != nil {
			t.Fatal(e)
		}
	}

	f.ana, err = repo.CreateClient(ctx, core.Client{Name: "Ana", LastName: "López", PhoneNumber: "7123-4567"})
	must(err)
	f.luis, err = repo.CreateClient(ctx, core.Client{Name: "Luis", LastName: "Peña"})
	must(err)
	f.agua, err = repo.CreateService(ctx, core.Service{Name: "Agua"})
	must(err)
	f.luz, err = repo.CreateService(ctx, core.Service{Name: "Electricidad"})
	must(err)
	internet, err := repo.CreateService(ctx, core.Service{Name: "Internet"})
	must(err)

	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	f.anaAgua, err = repo.CreateReceipt(ctx, core.Receipt{ClientID: f.ana.ID, ServiceID: f.agua.ID, AccountReceiptNumber: "A-100", CreatedAt: base})
	must(err)
	f.luisLuz, err = repo.CreateReceipt(ctx, core.Receipt{ClientID: f.luis.ID, ServiceID: f.luz.ID, AccountReceiptNumber: "L_200", CreatedAt: base.Add(time.Hour)})
	must(err)
	f.anaInternet, err = repo.CreateReceipt(ctx, core.Receipt{ClientID: f.ana.ID, ServiceID: internet.ID, AccountReceiptNumber: "NET-7", CreatedAt: base.Add(2 * time.Hour)})
	must(err)
	return f
}

func TestCreateAndGetPayment(t *testing.T) {
	repo := newTestRepo(t)
	repo.now = clock(time.Date(2024, 3, 10, 15, 0, 0, 0, time.UTC))
	f := seed(t, repo)
	ctx := context.Background()

	methods, err := repo.PaymentMethods(ctx)
	if err != nil || len(methods) != 3 {
		t.Fatalf("seeded payment methods: %v %v", methods, err)
	}

	p, err := repo.CreatePayment(ctx, core.NewPayment{
		ReceiptID:       " " + f.anaAgua.ID + " ",
		PaymentMethodID: methods[0].ID,
		TotalAmount:     decimal.RequireFromString("25.50"),
	})
	if err != nil {
		t.Fatalf("create payment: %v", err)
	}
	if p.ID == "" || p.Status != core.StatusPending {
		t.Fatalf("unexpected payment %+v", p)
	}
	if !p.TotalAmount.Valid || !p.TotalAmount.Decimal.Equal(decimal.RequireFromString("25.5")) {
		t.Fatalf("amount = %+v", p.TotalAmount)
	}
	if got := p.ReceiptLabel(); got != "Ana López · Agua (A-100)" {
		t.Fatalf("label = %q", got)
	}
	if p.ClientOf().PhoneNumber != "7123-4567" {
		t.Fatalf("phone not joined: %+v", p.ClientOf())
	}
	if p.PaymentMethod == nil || p.PaymentMethod.Name != methods[0].Name {
		t.Fatalf("method not joined: %+v", p.PaymentMethod)
	}

	got, err := repo.GetPayment(ctx, p.ID)
	if err != nil || got.ID != p.ID || !got.CreatedAt.Equal(p.CreatedAt) {
		t.Fatalf("get payment: %+v %v", got, err)
	}

	if _, err := repo.GetPayment(ctx, "missing"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCreatePaymentValidation(t *testing.T) {
	repo := newTestRepo(t)
	f := seed(t, repo)
	ctx := context.Background()

	cases := []struct {
		in   core.NewPayment
		want error
	}{
		{core.NewPayment{ReceiptID: "  ", TotalAmount: decimal.NewFromInt(1)}, core.ErrReceiptRequired},
		{core.NewPayment{ReceiptID: f.anaAgua.ID, TotalAmount: decimal.NewFromInt(-1)}, core.ErrInvalidAmount},
		{core.NewPayment{ReceiptID: "nope", TotalAmount: decimal.NewFromInt(1)}, core.ErrNotFound},
	}
	for i, tc := range cases {
		if _, err := repo.CreatePayment(ctx, tc.in); !errors.Is(err, tc.want) {
			t.Fatalf("case %d: got %v, want %v", i, err, tc.want)
		}
	}
}

func TestListPaymentsOrderAndRange(t *testing.T) {
	repo := newTestRepo(t)
	f := seed(t, repo)
	ctx := context.Background()

	var ids []string
	for i, day := range []int{9, 10, 11} {
		repo.now = func() time.Time { return time.Date(2024, 3, day, 12, 0, 0, 0, time.UTC) }
		p, err := repo.CreatePayment(ctx, core.NewPayment{ReceiptID: f.luisLuz.ID, TotalAmount: decimal.NewFromInt(int64(10 * (i + 1)))})
		if err != nil {
			t.Fatal(err)
		}
		ids = append(ids, p.ID)
	}

	all, err := repo.ListPayments(ctx, sheets.Range{})
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 || all[0].ID != ids[2] || all[2].ID != ids[0] {
		t.Fatalf("expected most recent first, got %d items", len(all))
	}

	// Sub-millisecond before midnight still belongs to the 10th.
	repo.now = func() time.Time { return time.Date(2024, 3, 10, 23, 59, 59, 999_500_000, time.UTC) }
	late, err := repo.CreatePayment(ctx, core.NewPayment{ReceiptID: f.luisLuz.ID, TotalAmount: decimal.NewFromInt(5)})
	if err != nil {
		t.Fatal(err)
	}

	day := sheets.Range{
		Start: time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC),
	}
	got, err := repo.ListPayments(ctx, day)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].ID != late.ID || got[1].ID != ids[1] {
		t.Fatalf("range listing returned %d items", len(got))
	}
}

func TestSearchReceipts(t *testing.T) {
	repo := newTestRepo(t)
	f := seed(t, repo)
	ctx := context.Background()

	cases := []struct {
		query string
		want  []string
	}{
		{"ana", []string{f.anaInternet.ID, f.anaAgua.ID}},
		{"LOPEZ", []string{f.anaInternet.ID, f.anaAgua.ID}},
		{"pena", []string{f.luisLuz.ID}},
		{"electri", []string{f.luisLuz.ID}},
		{"a-1", []string{f.anaAgua.ID}},
		{"l_2", []string{f.luisLuz.ID}},
		{"_", []string{f.luisLuz.ID}},
		{"zzz", nil},
	}
	for _, tc := range cases {
		got, err := repo.SearchReceipts(ctx, tc.query, 25)
		if err != nil {
			t.Fatalf("%q: %v", tc.query, err)
		}
		if len(got) != len(tc.want) {
			t.Fatalf("%q: got %d results, want %d", tc.query, len(got), len(tc.want))
		}
		for i := range tc.want {
			if got[i].ID != tc.want[i] {
				t.Fatalf("%q: result %d = %s, want %s", tc.query, i, got[i].ID, tc.want[i])
			}
		}
	}

	limited, err := repo.SearchReceipts(ctx, "a", 1)
	if err != nil || len(limited) != 1 {
		t.Fatalf("limit not applied: %d %v", len(limited), err)
	}
	if limited[0].Client == nil || limited[0].Service == nil {
		t.Fatalf("search results should be joined")
	}
}

func TestSyncLifecycle(t *testing.T) {
	repo := newTestRepo(t)
	repo.now = clock(time.Date(2024, 3, 10, 15, 0, 0, 0, time.UTC))
	f := seed(t, repo)
	ctx := context.Background()

	p1, err := repo.CreatePayment(ctx, core.NewPayment{ReceiptID: f.anaAgua.ID, TotalAmount: decimal.NewFromInt(5)})
	if err != nil {
		t.Fatal(err)
	}
	p2, err := repo.CreatePayment(ctx, core.NewPayment{ReceiptID: f.anaAgua.ID, TotalAmount: decimal.NewFromInt(6)})
	if err != nil {
		t.Fatal(err)
	}

	pending, err := repo.GetPendingSyncPayments(ctx, 10)
	if err != nil || len(pending) != 2 || pending[0].ID != p1.ID {
		t.Fatalf("pending = %+v, %v", pending, err)
	}

	if err := repo.MarkSynced(ctx, p1.ID, "2024 Pagos!A2:J2"); err != nil {
		t.Fatal(err)
	}
	if err := repo.MarkSyncError(ctx, p2.ID); err != nil {
		t.Fatal(err)
	}
	status, ref, err := repo.SyncState(ctx, p1.ID)
	if err != nil || status != "synced" || ref != "2024 Pagos!A2:J2" {
		t.Fatalf("sync state = %s %s %v", status, ref, err)
	}
	pending, err = repo.GetPendingSyncPayments(ctx, 10)
	if err != nil || len(pending) != 0 {
		t.Fatalf("expected no pending payments, got %+v", pending)
	}
	if n, err := repo.RetryFailedSyncs(ctx); err != nil || n != 1 {
		t.Fatalf("RetryFailedSyncs() = %d, %v", n, err)
	}
	pending, _ = repo.GetPendingSyncPayments(ctx, 10)
	if len(pending) != 1 || pending[0].ID != p2.ID {
		t.Fatalf("errored payment should be pending again, got %+v", pending)
	}
	if err := repo.MarkSynced(ctx, "missing", "x"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestLikePattern(t *testing.T) {
	cases := map[string]string{
		"ana":  "%ana%",
		"50%":  `%50\%%`,
		"a_b":  `%a\_b%`,
		`c:\x`: `%c:\\x%`,
	}
	for in, want := range cases {
		if got := likePattern(in); got != want {
			t.Errorf("likePattern(%q) = %q, want %q", in, got, want)
		}
	}
}
