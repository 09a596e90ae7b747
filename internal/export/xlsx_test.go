package export

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"cobros/internal/core"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

func TestWritePaymentsReport(t *testing.T) {
	sv := time.FixedZone("SV", -6*60*60)
	at := time.Date(2024, 3, 5, 15, 7, 0, 0, sv)
	receipt := &core.Receipt{
		ID: "r1", AccountReceiptNumber: "A-100",
		Client:  &core.Client{Name: "Ana", LastName: "Lopez", PhoneNumber: "71234567"},
		Service: &core.Service{Name: "Agua"},
	}
	payments := []core.Payment{
		{ID: "p1", CreatedAt: at, Receipt: receipt, Status: core.StatusPaid,
			TotalAmount:   decimal.NewNullDecimal(decimal.RequireFromString("25.5")),
			PaymentMethod: &core.PaymentMethod{Name: "Efectivo"}},
		{ID: "p2", CreatedAt: at.Add(time.Hour), Receipt: receipt},
	}
	vb := core.VoucherBuilder{ServiceFee: core.DefaultServiceFee, Location: sv}
	sum := core.Summarize(payments, core.BucketDaily, at, sv)

	var buf bytes.Buffer
	if err := WritePaymentsReport(&buf, sum, vb); err != nil {
		t.Fatalf("write: %v", err)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()

	if got := f.GetSheetList(); len(got) != 2 || got[0] != SheetPayments || got[1] != SheetSummary {
		t.Fatalf("sheets = %v", got)
	}

	raw := excelize.Options{RawCellValue: true}
	cases := []struct {
		sheet, cell, want string
	}{
		{SheetPayments, "A1", "Fecha"},
		{SheetPayments, "A2", "5 mar 2024, 3:07 p. m."},
		{SheetPayments, "B2", "p1"},
		{SheetPayments, "C2", "Ana Lopez"},
		{SheetPayments, "D2", "Ana Lopez · Agua (A-100)"},
		{SheetPayments, "E2", "Efectivo"},
		{SheetPayments, "F2", "Pagado"},
		{SheetPayments, "G2", "25.5"},
		{SheetPayments, "F3", "Pendiente"},
		{SheetPayments, "G3", ""},
		{SheetSummary, "B1", "daily"},
		{SheetSummary, "B3", "2"},
		{SheetSummary, "B4", "25.5"},
		{SheetSummary, "B5", "$25.50"},
	}
	for _, tc := range cases {
		got, err := f.GetCellValue(tc.sheet, tc.cell, raw)
		if err != nil {
			t.Fatalf("%s!%s: %v", tc.sheet, tc.cell, err)
		}
		if got != tc.want {
			t.Errorf("%s!%s = %q, want %q", tc.sheet, tc.cell, got, tc.want)
		}
	}

	link, _ := f.GetCellValue(SheetPayments, "H2")
	if !strings.HasPrefix(link, "https://wa.me/50371234567?text=") {
		t.Errorf("voucher link = %q", link)
	}
}

func TestWritePaymentsReportEmpty(t *testing.T) {
	var buf bytes.Buffer
	sum := core.Summarize(nil, core.Bucket("otro"), time.Now(), nil)
	if err := WritePaymentsReport(&buf, sum, core.VoucherBuilder{}); err != nil {
		t.Fatalf("write: %v", err)
	}
	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if got, _ := f.GetCellValue(SheetSummary, "B2"); got != core.Placeholder {
		t.Errorf("period for unknown bucket = %q", got)
	}
}
