package log

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"", slog.LevelInfo, false},
		{"info", slog.LevelInfo, false},
		{" DEBUG ", slog.LevelDebug, false},
		{"warn", slog.LevelWarn, false},
		{"warning", slog.LevelWarn, false},
		{"Error", slog.LevelError, false},
		{"trace", slog.LevelInfo, true},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestLogFields(t *testing.T) {
	f := NewFields().
		WithPayment("p1", "r1", "$10.00", "Pagado").
		WithReport("weekly", 3).
		WithError(nil).
		WithOperation(OpReport)

	if f[FieldPaymentID] != "p1" || f[FieldReceiptID] != "r1" || f[FieldAmount] != "$10.00" || f[FieldStatus] != "Pagado" {
		t.Errorf("payment fields not set: %v", f)
	}
	if f[FieldBucket] != "weekly" || f[FieldCount] != 3 {
		t.Errorf("report fields not set: %v", f)
	}
	if _, ok := f[FieldError]; ok {
		t.Error("nil error should not add a field")
	}
	if got := len(f.ToSlice()); got != 2*len(f) {
		t.Errorf("ToSlice length = %d, want %d", got, 2*len(f))
	}

	f.WithError(errors.New("boom"))
	if f[FieldError] != "boom" {
		t.Errorf("error field = %v", f[FieldError])
	}
}

func newBufferLogger(buf *bytes.Buffer) *Logger {
	return New(Config{
		Level:     slog.LevelDebug,
		Component: ComponentPayment,
		Handler:   slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}),
	})
}

func TestStructuredLogger_LogPaymentRegistered(t *testing.T) {
	var buf bytes.Buffer
	sl := NewStructuredLogger(newBufferLogger(&buf))

	sl.LogPaymentRegistered(context.Background(), "p1", "r1", "$5.00", "Pendiente")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode log line %q: %v", buf.String(), err)
	}
	if entry["msg"] != "Payment registered" {
		t.Errorf("msg = %v", entry["msg"])
	}
	if entry[FieldPaymentID] != "p1" || entry[FieldOperation] != OpCreate {
		t.Errorf("unexpected entry %v", entry)
	}
}

func TestStructuredLogger_LogHTTPEndLevels(t *testing.T) {
	tests := []struct {
		status int
		level  string
	}{
		{200, "INFO"},
		{404, "WARN"},
		{503, "ERROR"},
	}
	for _, tt := range tests {
		var buf bytes.Buffer
		sl := NewStructuredLogger(newBufferLogger(&buf))
		r := httptest.NewRequest(http.MethodGet, "/payments?bucket=daily", nil)

		sl.LogHTTPEnd(context.Background(), r, tt.status, 12, "127.0.0.1")

		if !strings.Contains(buf.String(), `"level":"`+tt.level+`"`) {
			t.Errorf("status %d: expected level %s in %s", tt.status, tt.level, buf.String())
		}
	}
}

func TestFromContext(t *testing.T) {
	if l := FromContext(context.Background()); l == nil || l.Component() != "unknown" {
		t.Fatalf("expected fallback logger, got %+v", l)
	}

	var buf bytes.Buffer
	logger := newBufferLogger(&buf).WithComponent(ComponentHTTP)
	got := FromContext(NewContext(context.Background(), logger))
	if got != logger {
		t.Fatalf("expected stored logger, got %+v", got)
	}
}

func TestStructuredLogger_LogLedgerAppend(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		wantMsg string
		wantKey string
	}{
		{"appended", nil, "Payment appended to ledger", FieldLedgerRef},
		{"failed", errors.New("quota exceeded"), "Ledger append failed", FieldError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			sl := NewStructuredLogger(newBufferLogger(&buf))
			sl.LogLedgerAppend(context.Background(), "p1", "$5.00", "Pagos!A2:I2", tt.err)

			var entry map[string]any
			if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
				t.Fatalf("decode log line %q: %v", buf.String(), err)
			}
			if entry["msg"] != tt.wantMsg || entry[FieldPaymentID] != "p1" {
				t.Errorf("unexpected entry %v", entry)
			}
			if _, ok := entry[tt.wantKey]; !ok {
				t.Errorf("missing %s in %v", tt.wantKey, entry)
			}
		})
	}
}
