package core

import (
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func voucherPayment(phone string) Payment {
	return Payment{
		ID:          "p-1",
		TotalAmount: decimal.NewNullDecimal(decimal.NewFromInt(25)),
		CreatedAt:   time.Date(2024, 3, 10, 15, 30, 0, 0, time.UTC),
		Receipt: &Receipt{
			AccountReceiptNumber: "A-100",
			Client:               &Client{Name: "Ana", LastName: "Lopez", PhoneNumber: phone},
			Service:              &Service{Name: "Agua"},
		},
	}
}

func TestVoucherMessage(t *testing.T) {
	b := VoucherBuilder{ServiceFee: decimal.NewFromInt(1), Location: sv}
	v, ok := b.Message(voucherPayment("7123-4567"))
	if !ok {
		t.Fatalf("expected addressable voucher")
	}
	want := strings.Join([]string{
		voucherSeparator,
		"Comprobante de pago",
		"Pago: p-1",
		"Cliente: Ana Lopez",
		"Servicio: Agua (A-100)",
		"Monto factura: $25.00",
		"Cargo por servicio: $1.00",
		"Total: $26.00",
		"Fecha: 10 mar 2024, 9:30 a. m.",
	}, "\n")
	if v.Text != want {
		t.Fatalf("text mismatch:\n%s\nwant:\n%s", v.Text, want)
	}
	if v.Phone != "50371234567" {
		t.Fatalf("phone = %q", v.Phone)
	}
}

func TestVoucherMessageDeterministic(t *testing.T) {
	var b VoucherBuilder
	p := voucherPayment("71234567")
	a, _ := b.Message(p)
	c, _ := b.Message(p)
	if a != c {
		t.Fatalf("message should not depend on call time")
	}
}

func TestVoucherMessageUnaddressable(t *testing.T) {
	var b VoucherBuilder
	cases := map[string]Payment{
		"empty phone": voucherPayment(""),
		"no digits":   voucherPayment("n/a"),
		"no receipt":  {ID: "p"},
		"no client":   {ID: "p", Receipt: &Receipt{Service: &Service{Name: "Agua"}}},
	}
	for name, p := range cases {
		if _, ok := b.Message(p); ok {
			t.Errorf("%s: expected no message", name)
		}
		if link, ok := b.Link(p); ok || link != "" {
			t.Errorf("%s: expected no link, got %q", name, link)
		}
	}
}

func TestVoucherLink(t *testing.T) {
	b := VoucherBuilder{ServiceFee: decimal.NewFromInt(1), Location: sv}
	link, ok := b.Link(voucherPayment("71234567"))
	if !ok {
		t.Fatalf("expected link")
	}
	if !strings.HasPrefix(link, "https://wa.me/50371234567?text=") {
		t.Fatalf("link = %s", link)
	}
	if strings.Contains(link, "+") || strings.Contains(link, " ") {
		t.Fatalf("link should use strict percent-encoding: %s", link)
	}
	if !strings.Contains(link, "%0A") {
		t.Fatalf("newlines should be encoded as %%0A: %s", link)
	}

	u, err := url.Parse(link)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(u.Query().Get("text"), "Total: "+FormatAmount(26)) {
		t.Fatalf("decoded text lacks total: %q", u.Query().Get("text"))
	}
}

func TestVoucherLinkRoundTrip(t *testing.T) {
	b := VoucherBuilder{Location: sv, MessagingHost: "msg.example.com/"}
	p := voucherPayment("071234567")
	p.Receipt.Client.Name = "Ana+María & Co?"
	p.Receipt.AccountReceiptNumber = "#100/2 50%"

	v, _ := b.Message(p)
	link, ok := b.Link(p)
	if !ok {
		t.Fatalf("expected link")
	}
	if !strings.HasPrefix(link, "https://msg.example.com/50371234567?text=") {
		t.Fatalf("link = %s", link)
	}
	_, encoded, _ := strings.Cut(link, "?text=")
	decoded, err := url.QueryUnescape(encoded)
	if err != nil {
		t.Fatal(err)
	}
	if decoded != v.Text {
		t.Fatalf("round trip lost data:\n%q\n%q", decoded, v.Text)
	}
}

func TestVoucherMissingAmount(t *testing.T) {
	b := VoucherBuilder{ServiceFee: DefaultServiceFee, Location: sv}
	p := voucherPayment("71234567")
	p.TotalAmount = decimal.NullDecimal{}
	v, ok := b.Message(p)
	if !ok {
		t.Fatalf("expected message")
	}
	if !strings.Contains(v.Text, "Monto factura: —") || !strings.Contains(v.Text, "Total: $1.00") {
		t.Fatalf("unexpected text:\n%s", v.Text)
	}
}

func TestVoucherFeeIsChargedAsGiven(t *testing.T) {
	tests := []struct {
		fee       decimal.Decimal
		wantFee   string
		wantTotal string
	}{
		{decimal.Zero, "$0.00", "$25.00"},
		{decimal.RequireFromString("0.35"), "$0.35", "$25.35"},
		{decimal.NewFromInt(2), "$2.00", "$27.00"},
	}
	for _, tt := range tests {
		t.Run(tt.wantFee, func(t *testing.T) {
			v, ok := NewVoucherBuilder(tt.fee, "", sv).Message(voucherPayment("71234567"))
			if !ok {
				t.Fatalf("expected message")
			}
			if !strings.Contains(v.Text, "Cargo por servicio: "+tt.wantFee) || !strings.Contains(v.Text, "Total: "+tt.wantTotal) {
				t.Fatalf("unexpected text:\n%s", v.Text)
			}
		})
	}
}
