package log

import (
	"context"
	"log/slog"
	"net/http"
)

// StructuredLogger emits the fixed-shape events: request start and end,
// payment registration and ledger appends.
type StructuredLogger struct {
	logger *Logger
}

func NewStructuredLogger(logger *Logger) *StructuredLogger {
	return &StructuredLogger{logger: logger}
}

func (sl *StructuredLogger) LogHTTPStart(ctx context.Context, r *http.Request, clientIP string) {
	fields := NewFields().
		WithHTTPRequest(r.Method, r.URL.Path, r.URL.RawQuery, r.Header.Get("User-Agent"), r.Header.Get("Referer")).
		WithClientIP(clientIP).
		WithComponent(ComponentHTTP)
	sl.logger.InfoContext(ctx, "HTTP request started", fields.ToSlice()...)
}

// LogHTTPEnd logs at warn for 4xx and error for 5xx responses.
func (sl *StructuredLogger) LogHTTPEnd(ctx context.Context, r *http.Request, statusCode int, durationMs int64, clientIP string) {
	var level slog.Level
	switch {
	case statusCode >= 500:
		level = slog.LevelError
	case statusCode >= 400:
		level = slog.LevelWarn
	default:
		level = slog.LevelInfo
	}

	fields := NewFields().
		WithHTTPRequest(r.Method, r.URL.Path, r.URL.RawQuery, "", "").
		WithHTTPResponse(statusCode, durationMs, statusCode < 400).
		WithClientIP(clientIP).
		WithComponent(ComponentHTTP)
	sl.logger.Logger.Log(ctx, level, "HTTP request completed", fields.ToSlice()...)
}

func (sl *StructuredLogger) LogPaymentRegistered(ctx context.Context, id, receiptID, amount, status string) {
	fields := NewFields().
		WithPayment(id, receiptID, amount, status).
		WithOperation(OpCreate).
		WithComponent(ComponentPayment)
	sl.logger.InfoContext(ctx, "Payment registered", fields.ToSlice()...)
}

// LogLedgerAppend records the outcome of one ledger append. A nil err
// means the row landed under ref.
func (sl *StructuredLogger) LogLedgerAppend(ctx context.Context, paymentID, amount, ref string, err error) {
	fields := NewFields().
		WithPayment(paymentID, "", amount, "").
		WithOperation(OpAppend).
		WithComponent(ComponentLedger)
	if err != nil {
		sl.logger.ErrorContext(ctx, "Ledger append failed", fields.WithError(err).ToSlice()...)
		return
	}
	fields[FieldLedgerRef] = ref
	sl.logger.InfoContext(ctx, "Payment appended to ledger", fields.ToSlice()...)
}
