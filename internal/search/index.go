// Package search serves receipt lookups for payment entry: a cached index
// over a ReceiptSearcher and a debouncer that delivers only the latest query.
package search

import (
	"context"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"cobros/internal/cache"
	"cobros/internal/core"
	"cobros/internal/log"
	"cobros/internal/sheets"
)

type Config struct {
	Debounce  time.Duration
	MinLength int
	Limit     int
	CacheTTL  time.Duration
	CacheSize int
}

func DefaultConfig() Config {
	return Config{
		Debounce:  300 * time.Millisecond,
		MinLength: 2,
		Limit:     25,
		CacheTTL:  30 * time.Second,
		CacheSize: 256,
	}
}

// withDefaults fills zero fields from DefaultConfig. A negative Debounce
// disables the wait.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Debounce == 0 {
		c.Debounce = d.Debounce
	}
	if c.Debounce < 0 {
		c.Debounce = 0
	}
	if c.MinLength <= 0 {
		c.MinLength = d.MinLength
	}
	if c.Limit <= 0 {
		c.Limit = d.Limit
	}
	if c.CacheTTL <= 0 {
		c.CacheTTL = d.CacheTTL
	}
	if c.CacheSize <= 0 {
		c.CacheSize = d.CacheSize
	}
	return c
}

// Result is the outcome of one query. Err is set when the source failed;
// Receipts is then empty.
type Result struct {
	Query    string
	Receipts []core.Receipt
	Err      error
}

// Searcher is what a Debouncer queries.
type Searcher interface {
	Search(ctx context.Context, query string) Result
}

type Index struct {
	src    sheets.ReceiptSearcher
	cfg    Config
	cache  *cache.LRUCache[[]core.Receipt]
	logger *log.Logger
}

var _ Searcher = (*Index)(nil)

func NewIndex(src sheets.ReceiptSearcher, cfg Config) *Index {
	cfg = cfg.withDefaults()
	return &Index{
		src:    src,
		cfg:    cfg,
		cache:  cache.NewLRUCache[[]core.Receipt](cfg.CacheSize, cfg.CacheTTL),
		logger: log.Default(log.ComponentSearch),
	}
}

func (x *Index) Config() Config { return x.cfg }

// Cache exposes the result cache for periodic cleanup.
func (x *Index) Cache() cache.Cleaner { return x.cache }

// Search trims query and returns no matches without consulting the source
// when it is shorter than MinLength runes. Callers own the returned slice.
func (x *Index) Search(ctx context.Context, query string) Result {
	q := strings.TrimSpace(query)
	res := Result{Query: q}
	if utf8.RuneCountInString(q) < x.cfg.MinLength {
		return res
	}

	key := core.FoldText(q)
	if hit, ok := x.cache.Get(key); ok {
		res.Receipts = slices.Clone(hit)
		return res
	}

	receipts, err := x.src.SearchReceipts(ctx, q, x.cfg.Limit)
	if err != nil {
		x.logger.WarnContext(ctx, "Receipt search failed", log.FieldSearch, q, log.FieldError, err)
		res.Err = err
		return res
	}
	if len(receipts) > x.cfg.Limit {
		receipts = receipts[:x.cfg.Limit]
	}
	x.cache.Set(key, slices.Clone(receipts))
	res.Receipts = receipts
	return res
}
