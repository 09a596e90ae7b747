package core

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Joined records arrive with embedded relations under either a singular or
// a plural key, as an object or as an array. The decoders below reduce them
// to the canonical structs; only malformed JSON is an error.

type (
	// text accepts a JSON string, number or null.
	text string

	rawClient struct {
		ID          text `json:"id"`
		Name        text `json:"name"`
		LastName    text `json:"last_name"`
		PhoneNumber text `json:"phone_number"`
		Reference   text `json:"reference"`
	}

	rawNamed struct {
		ID   text `json:"id"`
		Name text `json:"name"`
	}

	rawReceipt struct {
		ID                   text            `json:"id"`
		ClientID             text            `json:"client_id"`
		ServiceID            text            `json:"service_id"`
		AccountReceiptNumber text            `json:"account_receipt_number"`
		CreatedAt            text            `json:"created_at"`
		Client               json.RawMessage `json:"client"`
		Clients              json.RawMessage `json:"clients"`
		Service              json.RawMessage `json:"service"`
		Services             json.RawMessage `json:"services"`
	}

	rawPayment struct {
		ID              text            `json:"id"`
		ReceiptID       text            `json:"receipt_id"`
		PaymentMethodID text            `json:"payment_method_id"`
		TotalAmount     json.RawMessage `json:"total_amount"`
		Status          json.RawMessage `json:"status"`
		CreatedAt       text            `json:"created_at"`
		ProofBucket     text            `json:"proof_bucket"`
		ProofPath       text            `json:"proof_path"`
		Receipt         json.RawMessage `json:"receipt"`
		Receipts        json.RawMessage `json:"receipts"`
		PaymentMethod   json.RawMessage `json:"payment_method"`
		PaymentMethods  json.RawMessage `json:"payment_methods"`
	}
)

func (t *text) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case len(b) == 0 || string(b) == "null":
		*t = ""
	case b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*t = text(s)
	case b[0] == '-' || (b[0] >= '0' && b[0] <= '9'):
		*t = text(b)
	case string(b) == "true" || string(b) == "false":
		*t = text(b)
	default:
		// objects and arrays carry no scalar text
		*t = ""
	}
	return nil
}

// DecodePayments decodes a JSON array of joined payment records. A single
// object is accepted as a one-element array.
func DecodePayments(data []byte) ([]Payment, error) {
	var raws []rawPayment
	if err := decodeList(data, &raws); err != nil {
		return nil, fmt.Errorf("decode payments: %w", err)
	}
	out := make([]Payment, 0, len(raws))
	for i := range raws {
		p, err := raws[i].payment()
		if err != nil {
			return nil, fmt.Errorf("decode payment %d: %w", i, err)
		}
		out = append(out, p)
	}
	return out, nil
}

// DecodeReceipts decodes a JSON array of joined receipt records.
func DecodeReceipts(data []byte) ([]Receipt, error) {
	var raws []rawReceipt
	if err := decodeList(data, &raws); err != nil {
		return nil, fmt.Errorf("decode receipts: %w", err)
	}
	out := make([]Receipt, 0, len(raws))
	for i := range raws {
		r, err := raws[i].receipt()
		if err != nil {
			return nil, fmt.Errorf("decode receipt %d: %w", i, err)
		}
		out = append(out, r)
	}
	return out, nil
}

func decodeList[T any](data []byte, dst *[]T) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*dst = nil
		return nil
	}
	if data[0] == '{' {
		var one T
		if err := json.Unmarshal(data, &one); err != nil {
			return err
		}
		*dst = []T{one}
		return nil
	}
	return json.Unmarshal(data, dst)
}

// embedded picks the relation under the singular key, falling back to the
// plural one, and unwraps a one-element array. It returns nil when neither
// key holds an object.
func embedded(singular, plural json.RawMessage) (json.RawMessage, error) {
	for _, raw := range []json.RawMessage{singular, plural} {
		raw = bytes.TrimSpace(raw)
		if len(raw) == 0 || string(raw) == "null" {
			continue
		}
		switch raw[0] {
		case '{':
			return raw, nil
		case '[':
			var items []json.RawMessage
			if err := json.Unmarshal(raw, &items); err != nil {
				return nil, err
			}
			for _, it := range items {
				it = bytes.TrimSpace(it)
				if len(it) > 0 && it[0] == '{' {
					return it, nil
				}
			}
		}
	}
	return nil, nil
}

func (r *rawPayment) payment() (Payment, error) {
	p := Payment{
		ID:              strings.TrimSpace(string(r.ID)),
		ReceiptID:       strings.TrimSpace(string(r.ReceiptID)),
		PaymentMethodID: strings.TrimSpace(string(r.PaymentMethodID)),
		TotalAmount:     decodeAmount(r.TotalAmount),
		Status:          decodeStatus(r.Status),
		CreatedAt:       ParseTimestamp(string(r.CreatedAt)),
	}
	if path := strings.TrimSpace(string(r.ProofPath)); path != "" {
		bucket := strings.TrimSpace(string(r.ProofBucket))
		if bucket == "" {
			bucket = DefaultProofBucket
		}
		p.Proof = &ProofRef{Bucket: bucket, Path: path}
	}

	raw, err := embedded(r.Receipt, r.Receipts)
	if err != nil {
		return Payment{}, err
	}
	if raw != nil {
		var rr rawReceipt
		if err := json.Unmarshal(raw, &rr); err != nil {
			return Payment{}, err
		}
		rec, err := rr.receipt()
		if err != nil {
			return Payment{}, err
		}
		if rec.ID == "" {
			rec.ID = p.ReceiptID
		}
		if p.ReceiptID == "" {
			p.ReceiptID = rec.ID
		}
		p.Receipt = &rec
	}

	raw, err = embedded(r.PaymentMethod, r.PaymentMethods)
	if err != nil {
		return Payment{}, err
	}
	if raw != nil {
		var m rawNamed
		if err := json.Unmarshal(raw, &m); err != nil {
			return Payment{}, err
		}
		p.PaymentMethod = &PaymentMethod{ID: string(m.ID), Name: strings.TrimSpace(string(m.Name))}
		if p.PaymentMethodID == "" {
			p.PaymentMethodID = p.PaymentMethod.ID
		}
	}
	return p, nil
}

func (r *rawReceipt) receipt() (Receipt, error) {
	rec := Receipt{
		ID:                   strings.TrimSpace(string(r.ID)),
		ClientID:             strings.TrimSpace(string(r.ClientID)),
		ServiceID:            strings.TrimSpace(string(r.ServiceID)),
		AccountReceiptNumber: strings.TrimSpace(string(r.AccountReceiptNumber)),
		CreatedAt:            ParseTimestamp(string(r.CreatedAt)),
	}

	raw, err := embedded(r.Client, r.Clients)
	if err != nil {
		return Receipt{}, err
	}
	if raw != nil {
		var c rawClient
		if err := json.Unmarshal(raw, &c); err != nil {
			return Receipt{}, err
		}
		rec.Client = &Client{
			ID:          string(c.ID),
			Name:        strings.TrimSpace(string(c.Name)),
			LastName:    strings.TrimSpace(string(c.LastName)),
			PhoneNumber: strings.TrimSpace(string(c.PhoneNumber)),
			Reference:   strings.TrimSpace(string(c.Reference)),
		}
		if rec.ClientID == "" {
			rec.ClientID = rec.Client.ID
		}
	}

	raw, err = embedded(r.Service, r.Services)
	if err != nil {
		return Receipt{}, err
	}
	if raw != nil {
		var s rawNamed
		if err := json.Unmarshal(raw, &s); err != nil {
			return Receipt{}, err
		}
		rec.Service = &Service{ID: string(s.ID), Name: strings.TrimSpace(string(s.Name))}
		if rec.ServiceID == "" {
			rec.ServiceID = rec.Service.ID
		}
	}
	return rec, nil
}

func decodeAmount(raw json.RawMessage) decimal.NullDecimal {
	var v any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return decimal.NullDecimal{}
	}
	d, ok := toDecimal(v)
	if !ok {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(d)
}

func decodeStatus(raw json.RawMessage) PaymentStatus {
	var t text
	if err := t.UnmarshalJSON(raw); err != nil {
		return StatusPending
	}
	n, err := strconv.Atoi(strings.TrimSpace(string(t)))
	if err != nil {
		return StatusPending
	}
	return PaymentStatus(n)
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999Z07",
	"2006-01-02 15:04:05.999999999",
	time.DateOnly,
}

// ParseTimestamp reads the timestamp shapes the data store emits. Values
// without an offset are taken as UTC. Unparsable input yields the zero time.
func ParseTimestamp(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
