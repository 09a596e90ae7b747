package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	ports "cobros/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// DefaultSheetName is the ledger sheet base name; the year is prefixed.
const DefaultSheetName = "Pagos"

// Client appends payment rows to a yearly ledger sheet.
type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetBase     string
	now           func() time.Time
}

var _ ports.LedgerWriter = (*Client)(nil)

// Options configures a ledger client. An empty SheetName means
// DefaultSheetName; CredentialsJSON wins over CredentialsFile.
type Options struct {
	SpreadsheetID   string
	SheetName       string
	CredentialsJSON string
	CredentialsFile string
}

// New creates a Sheets ledger client authenticated with a service account.
func New(ctx context.Context, opts Options) (*Client, error) {
	spreadsheetID := strings.TrimSpace(opts.SpreadsheetID)
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	base := strings.TrimSpace(opts.SheetName)
	if base == "" {
		base = DefaultSheetName
	}

	svc, err := newSheetsService(ctx, strings.TrimSpace(opts.CredentialsJSON), strings.TrimSpace(opts.CredentialsFile))
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return &Client{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		sheetBase:     base,
		now:           time.Now,
	}, nil
}

// NewFromEnv creates a Sheets client using environment variables.
// Required: GOOGLE_SPREADSHEET_ID
// Optional: GOOGLE_SHEET_NAME (default "Pagos"), credentials via
// GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE or
// GOOGLE_APPLICATION_CREDENTIALS.
func NewFromEnv(ctx context.Context) (*Client, error) {
	file := os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE")
	if strings.TrimSpace(file) == "" {
		file = os.Getenv("GOOGLE_APPLICATION_CREDENTIALS")
	}
	return New(ctx, Options{
		SpreadsheetID:   os.Getenv("GOOGLE_SPREADSHEET_ID"),
		SheetName:       os.Getenv("GOOGLE_SHEET_NAME"),
		CredentialsJSON: os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"),
		CredentialsFile: file,
	})
}

// newSheetsService initializes a Sheets Service using Service Account credentials.
func newSheetsService(ctx context.Context, serviceAccountJSON, serviceAccountFile string) (*gsheet.Service, error) {
	var credentialsJSON []byte
	switch {
	case serviceAccountJSON != "":
		slog.InfoContext(ctx, "Using inline JSON credentials")
		credentialsJSON = []byte(serviceAccountJSON)
	case serviceAccountFile != "":
		slog.InfoContext(ctx, "Reading credentials from file", "path", serviceAccountFile)
		b, err := os.ReadFile(serviceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		credentialsJSON = b
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return service, nil
}

// AppendPayment writes row to the current year's ledger sheet. A payment
// already present in column A is not written twice; its existing range is
// returned instead.
func (c *Client) AppendPayment(ctx context.Context, row ports.LedgerRow) (string, error) {
	if strings.TrimSpace(row.PaymentID) == "" {
		return "", errors.New("ledger row without payment id")
	}
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}
	sheet := c.sheetName()

	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, fmt.Sprintf("%s!A:A", sheet)).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("read ids from %s: %w", sheet, err)
	}
	if n := findPaymentRow(resp.Values, row.PaymentID); n > 0 {
		slog.InfoContext(ctx, "Payment already in ledger", "payment_id", row.PaymentID, "row", n)
		return rowRange(sheet, n), nil
	}

	nextRow := len(resp.Values) + 1
	values := [][]any{ledgerValues(row)}
	if nextRow == 1 {
		values = [][]any{ledgerHeader, ledgerValues(row)}
	}
	rng := fmt.Sprintf("%s!A%d:%s%d", sheet, nextRow, lastColumn, nextRow+len(values)-1)
	_, err = c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, &gsheet.ValueRange{Values: values}).
		ValueInputOption("USER_ENTERED").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("update %s: %w", rng, err)
	}
	return rowRange(sheet, nextRow+len(values)-1), nil
}

func (c *Client) sheetName() string {
	now := time.Now
	if c.now != nil {
		now = c.now
	}
	return yearPrefixedName(c.sheetBase, now().Year())
}

func rowRange(sheet string, n int) string {
	return fmt.Sprintf("%s!A%d:%s%d", sheet, n, lastColumn, n)
}

// yearPrefixedName returns "<year> <base>" unless base already starts with a 4-digit year.
func yearPrefixedName(base string, year int) string {
	base = strings.TrimSpace(base)
	if base == "" {
		return base
	}
	if len(base) >= 5 {
		if y, err := strconv.Atoi(base[0:4]); err == nil && base[4] == ' ' && y > 1900 && y < 3000 {
			return base
		}
	}
	return fmt.Sprintf("%d %s", year, base)
}
