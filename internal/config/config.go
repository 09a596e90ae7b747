package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"cobros/internal/core"
	"cobros/internal/log"
	"cobros/internal/search"

	"github.com/shopspring/decimal"
)

type Config struct {
	// HTTP Server
	Port string

	// Storage
	DataBackend  string
	DataDir      string
	SQLiteDBPath string

	// AMQP
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Google Sheets ledger
	GoogleSpreadsheetID      string
	GoogleSheetName          string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string

	// Business rules
	BusinessTimezone string
	ServiceFee       string
	MessagingHost    string

	// Receipt search
	SearchDebounce  time.Duration
	SearchMinLength int
	SearchLimit     int

	// Worker
	SyncBatchSize int
	SyncInterval  time.Duration

	LogLevel string
}

var validBackends = []string{"memory", "sqlite"}

func Load() *Config {
	return &Config{
		Port: getEnv("PORT", "8081"),

		DataBackend:  getEnv("DATA_BACKEND", "memory"),
		DataDir:      getEnv("DATA_DIR", "data"),
		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/cobros.db"),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "cobros"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "payment_registered"),

		GoogleSpreadsheetID:      getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleSheetName:          getEnv("GOOGLE_SHEET_NAME", "Pagos"),
		GoogleServiceAccountJSON: getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", ""),
		GoogleServiceAccountFile: getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", getEnv("GOOGLE_APPLICATION_CREDENTIALS", "")),

		BusinessTimezone: getEnv("BUSINESS_TIMEZONE", core.DefaultTimezone),
		ServiceFee:       getEnv("SERVICE_FEE", "1.00"),
		MessagingHost:    getEnv("MESSAGING_HOST", core.DefaultMessagingHost),

		SearchDebounce:  getEnvDuration("SEARCH_DEBOUNCE", 300*time.Millisecond),
		SearchMinLength: getEnvInt("SEARCH_MIN_LENGTH", 2),
		SearchLimit:     getEnvInt("SEARCH_LIMIT", 25),

		SyncBatchSize: getEnvInt("SYNC_BATCH_SIZE", 10),
		SyncInterval:  getEnvDuration("SYNC_INTERVAL", 30*time.Second),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
}

// Validate validates the configuration and returns every problem at once.
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	isValidBackend := false
	for _, backend := range validBackends {
		if c.DataBackend == backend {
			isValidBackend = true
			break
		}
	}
	if !isValidBackend {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	switch c.DataBackend {
	case "memory":
		if c.DataDir == "" {
			errors = append(errors, "data directory cannot be empty when using memory backend")
		}
	case "sqlite":
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		} else if dir := filepath.Dir(c.SQLiteDBPath); dir != "." && dir != "" {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				if err := os.MkdirAll(dir, 0755); err != nil {
					errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
				}
			}
		}
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if c.GoogleSpreadsheetID != "" {
		if c.GoogleServiceAccountJSON == "" && c.GoogleServiceAccountFile == "" {
			errors = append(errors, "either GOOGLE_SERVICE_ACCOUNT_JSON or GOOGLE_SERVICE_ACCOUNT_FILE must be provided with GOOGLE_SPREADSHEET_ID")
		}
		if c.GoogleServiceAccountFile != "" {
			if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
				errors = append(errors, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
			}
		}
	}

	if _, err := core.LoadLocation(c.BusinessTimezone); err != nil {
		errors = append(errors, fmt.Sprintf("invalid business timezone '%s'", c.BusinessTimezone))
	}
	if fee, err := decimal.NewFromString(strings.TrimSpace(c.ServiceFee)); err != nil || fee.IsNegative() {
		errors = append(errors, fmt.Sprintf("invalid service fee '%s': must be zero or a positive number", c.ServiceFee))
	}
	if strings.ContainsAny(c.MessagingHost, " ?#") {
		errors = append(errors, fmt.Sprintf("invalid messaging host '%s'", c.MessagingHost))
	}

	if c.SearchDebounce < 0 || c.SearchDebounce > 5*time.Second {
		errors = append(errors, fmt.Sprintf("invalid search debounce %v: must be between 0 and 5s", c.SearchDebounce))
	}
	if c.SearchMinLength < 1 {
		errors = append(errors, fmt.Sprintf("invalid search min length %d: must be at least 1", c.SearchMinLength))
	}
	if c.SearchLimit < 1 || c.SearchLimit > 200 {
		errors = append(errors, fmt.Sprintf("invalid search limit %d: must be between 1 and 200", c.SearchLimit))
	}

	if c.SyncBatchSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid sync batch size %d: must be at least 1", c.SyncBatchSize))
	} else if c.SyncBatchSize > 1000 {
		errors = append(errors, fmt.Sprintf("invalid sync batch size %d: must be at most 1000", c.SyncBatchSize))
	}
	if c.SyncInterval < time.Second {
		errors = append(errors, fmt.Sprintf("invalid sync interval %v: must be at least 1 second", c.SyncInterval))
	} else if c.SyncInterval > 24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid sync interval %v: must be at most 24 hours", c.SyncInterval))
	}

	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be debug, info, warn or error", c.LogLevel))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

// ValidateWorker adds the worker's requirements to Validate: the sync
// bookkeeping lives in SQLite and messages arrive over AMQP.
func (c *Config) ValidateWorker() error {
	if err := c.Validate(); err != nil {
		return err
	}
	var errors []string
	if c.DataBackend != "sqlite" {
		errors = append(errors, "worker requires DATA_BACKEND=sqlite")
	}
	if c.AMQPURL == "" {
		errors = append(errors, "worker requires AMQP_URL")
	}
	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

// Location returns the business location; call after Validate.
func (c *Config) Location() *time.Location {
	loc, err := core.LoadLocation(c.BusinessTimezone)
	if err != nil {
		return core.DefaultLocation()
	}
	return loc
}

// Fee returns the parsed service fee; call after Validate.
func (c *Config) Fee() decimal.Decimal {
	fee, err := decimal.NewFromString(strings.TrimSpace(c.ServiceFee))
	if err != nil {
		return core.DefaultServiceFee
	}
	return fee
}

// VoucherBuilder assembles the voucher settings.
func (c *Config) VoucherBuilder() core.VoucherBuilder {
	return core.NewVoucherBuilder(c.Fee(), c.MessagingHost, c.Location())
}

// Search returns the receipt search settings.
func (c *Config) Search() search.Config {
	cfg := search.DefaultConfig()
	cfg.Debounce = c.SearchDebounce
	if cfg.Debounce == 0 {
		cfg.Debounce = -1
	}
	cfg.MinLength = c.SearchMinLength
	cfg.Limit = c.SearchLimit
	return cfg
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
