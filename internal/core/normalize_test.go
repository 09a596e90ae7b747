package core

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestDecodePaymentsShapes(t *testing.T) {
	data := []byte(`[
	  {
	    "id": "p1", "receipt_id": "r1", "total_amount": 25, "status": 1,
	    "created_at": "2024-03-10T15:30:00.123+00:00",
	    "receipt": {"id": "r1", "account_receipt_number": "A-100",
	                "client": {"name": "Ana", "last_name": "Lopez", "phone_number": 71234567},
	                "services": [{"name": "Agua"}]},
	    "receipts": {"id": "ignored"},
	    "payment_methods": [{"id": "m1", "name": "Efectivo"}]
	  },
	  {
	    "id": "p2", "total_amount": "abc", "status": "x",
	    "created_at": "not a date",
	    "receipts": [{"id": "r2", "clients": [{"name": "Luis"}]}]
	  },
	  {"id": "p3", "total_amount": " 7.25 ", "status": "1", "created_at": "2024-03-10 15:30:00"}
	]`)
	ps, err := DecodePayments(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(ps) != 3 {
		t.Fatalf("len = %d", len(ps))
	}

	p1 := ps[0]
	if !p1.TotalAmount.Valid || !p1.TotalAmount.Decimal.Equal(decimal.NewFromInt(25)) {
		t.Errorf("p1 amount = %+v", p1.TotalAmount)
	}
	if p1.Status != StatusPaid {
		t.Errorf("p1 status = %d", p1.Status)
	}
	if p1.Receipt == nil || p1.Receipt.ID != "r1" {
		t.Fatalf("p1 should take the singular receipt, got %+v", p1.Receipt)
	}
	if got := p1.ReceiptLabel(); got != "Ana Lopez · Agua (A-100)" {
		t.Errorf("p1 label = %q", got)
	}
	if p1.ClientOf().PhoneNumber != "71234567" {
		t.Errorf("numeric phone should decode as text, got %q", p1.ClientOf().PhoneNumber)
	}
	if p1.PaymentMethod == nil || p1.PaymentMethod.Name != "Efectivo" || p1.PaymentMethodID != "m1" {
		t.Errorf("p1 method = %+v", p1.PaymentMethod)
	}
	wantTime := time.Date(2024, 3, 10, 15, 30, 0, 123000000, time.UTC)
	if !p1.CreatedAt.Equal(wantTime) {
		t.Errorf("p1 created_at = %v", p1.CreatedAt)
	}

	p2 := ps[1]
	if p2.TotalAmount.Valid {
		t.Errorf("garbage amount should be invalid")
	}
	if p2.Status != StatusPending {
		t.Errorf("unparsable status should default to pending")
	}
	if !p2.CreatedAt.IsZero() {
		t.Errorf("unparsable created_at should be zero")
	}
	if p2.ReceiptID != "r2" || p2.ClientOf() == nil || p2.ClientOf().Name != "Luis" {
		t.Errorf("p2 plural receipt not unwrapped: %+v", p2.Receipt)
	}

	p3 := ps[2]
	if !p3.TotalAmount.Valid || !p3.TotalAmount.Decimal.Equal(decimal.RequireFromString("7.25")) {
		t.Errorf("p3 amount = %+v", p3.TotalAmount)
	}
	if p3.Status != StatusPaid || p3.Receipt != nil {
		t.Errorf("p3 = %+v", p3)
	}
	if !p3.CreatedAt.Equal(time.Date(2024, 3, 10, 15, 30, 0, 0, time.UTC)) {
		t.Errorf("p3 created_at = %v", p3.CreatedAt)
	}
}

func TestDecodePaymentsSingleObjectAndEmpty(t *testing.T) {
	ps, err := DecodePayments([]byte(`{"id":"only","proof_path":"a/b.png"}`))
	if err != nil || len(ps) != 1 || ps[0].ID != "only" {
		t.Fatalf("single object: %v %+v", err, ps)
	}
	if ps[0].Proof == nil || ps[0].Proof.Bucket != DefaultProofBucket {
		t.Fatalf("proof = %+v", ps[0].Proof)
	}
	for _, in := range []string{"", "null", "[]"} {
		ps, err := DecodePayments([]byte(in))
		if err != nil || len(ps) != 0 {
			t.Fatalf("%q: %v %+v", in, err, ps)
		}
	}
}

func TestDecodePaymentsEmptyEmbeddedArray(t *testing.T) {
	ps, err := DecodePayments([]byte(`[{"id":"p","receipts":[]}]`))
	if err != nil {
		t.Fatal(err)
	}
	if ps[0].Receipt != nil {
		t.Fatalf("empty relation array should leave receipt nil")
	}
	if got := ps[0].ReceiptLabel(); got != "" {
		t.Fatalf("label = %q", got)
	}
}

func TestDecodeMalformed(t *testing.T) {
	if _, err := DecodePayments([]byte(`[{"id":`)); err == nil {
		t.Fatalf("expected error for truncated JSON")
	}
	if _, err := DecodeReceipts([]byte(`{"id":"r","client":{"name":}}`)); err == nil {
		t.Fatalf("expected error for malformed receipt")
	}
}

func TestDecodeReceipts(t *testing.T) {
	rs, err := DecodeReceipts([]byte(`[
	  {"id":"r1","account_receipt_number":"X-1","client":[{"id":"c1","name":"Ana","last_name":"Lopez"}],"service":{"id":"s1","name":"Luz"},
	   "created_at":"2024-01-02T03:04:05Z"}
	]`))
	if err != nil {
		t.Fatal(err)
	}
	r := rs[0]
	if r.ClientID != "c1" || r.ServiceID != "s1" {
		t.Fatalf("ids not backfilled: %+v", r)
	}
	if DescribeReceipt(&r) != "Ana Lopez · Luz (X-1)" {
		t.Fatalf("label = %q", DescribeReceipt(&r))
	}
}
