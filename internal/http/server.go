package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"cobros/internal/cache"
	"cobros/internal/log"
	"cobros/internal/middleware/ratelimit"
	"cobros/internal/middleware/security"
	"cobros/internal/middleware/trace"
	"cobros/internal/search"
	"cobros/internal/services"
	"cobros/internal/sheets"
)

const (
	defaultRequestTimeout = 7 * time.Second
	readyTimeout          = 2 * time.Second
	cacheSweepInterval    = 10 * time.Minute

	searchSessionTTL   = 10 * time.Minute
	searchSessionLimit = 1024
)

// Options wires the server to its collaborators. Payments and Receipts are
// required.
type Options struct {
	Payments *services.PaymentService
	Receipts sheets.ReceiptSearcher
	Search   search.Config

	// Ready reports backend readiness for /readyz; nil means always ready.
	Ready func(context.Context) error

	RateLimit      ratelimit.Config
	RequestTimeout time.Duration
	Logger         *log.Logger
}

type Server struct {
	http.Server

	payments *services.PaymentService
	index    *search.Index
	// sessions holds one debouncer per search input, keyed by the
	// client-supplied session id.
	sessions *cache.LRUCache[*search.Debouncer]
	ready    func(context.Context) error
	timeout  time.Duration
	now      func() time.Time

	limiter  *ratelimit.Limiter
	detector *security.Detector
	tracer   *trace.Middleware
	caches   *cache.Manager

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
// It starts background cache and rate limiter cleanup; Shutdown stops them.
func NewServer(addr string, opts Options) *Server {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = defaultRequestTimeout
	}
	if opts.RateLimit.RequestsPerMinute <= 0 {
		opts.RateLimit = ratelimit.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = log.Default(log.ComponentHTTP)
	}

	s := &Server{
		payments: opts.Payments,
		index:    search.NewIndex(opts.Receipts, opts.Search),
		sessions: cache.NewLRUCache[*search.Debouncer](searchSessionLimit, searchSessionTTL),
		ready:    opts.Ready,
		timeout:  opts.RequestTimeout,
		now:      time.Now,
		limiter:  ratelimit.NewLimiter(opts.RateLimit),
		detector: security.NewDetector(),
		caches:   cache.NewManager(),
	}
	s.tracer = trace.NewMiddleware(s.detector.ExtractClientIP, opts.Logger)

	s.caches.Register("receipt_search", s.index.Cache())
	s.caches.Register("search_sessions", s.sessions)
	s.caches.StartCleanup(context.Background(), cacheSweepInterval)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", handleHealth)
	mux.HandleFunc("/readyz", s.handleReady)
	mux.HandleFunc("/payments", s.handlePayments)
	mux.HandleFunc("/payments/summary", s.handlePaymentSummary)
	mux.HandleFunc("/payments/voucher", s.handleVoucher)
	mux.HandleFunc("/receipts/search", s.handleReceiptSearch)
	mux.HandleFunc("/reports/payments.xlsx", s.handleExport)
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		NotFoundError("not found").Write(w)
	})

	var h http.Handler = mux
	h = s.limiter.Middleware(s.detector.ExtractClientIP, func(w http.ResponseWriter, r *http.Request) {
		log.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
			log.FieldClientIP, s.detector.ExtractClientIP(r), log.FieldMethod, r.Method, log.FieldPath, r.URL.Path)
		TooManyRequestsError().Write(w)
	})(h)
	h = s.detector.Middleware(h)
	h = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(h)
	h = s.tracer.Middleware(h)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Shutdown stops background cleanup and gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.caches.Stop()
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	NewResponse().Body("text/plain; charset=utf-8", []byte("ok")).Write(w)
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
		defer cancel()
		if err := s.ready(ctx); err != nil {
			log.FromContext(ctx).WarnContext(ctx, "Readiness check failed", log.FieldError, err)
			ServiceUnavailableError("backend unavailable").Write(w)
			return
		}
	}
	NewResponse().Body("text/plain; charset=utf-8", []byte("ready")).Write(w)
}
