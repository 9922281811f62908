package http

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"budgetplaner/internal/auth"
	applog "budgetplaner/internal/log"
	"budgetplaner/internal/middleware/ratelimit"
	"budgetplaner/internal/middleware/security"
	"budgetplaner/internal/middleware/trace"
	"budgetplaner/internal/services"
)

// Deps are the services the API exposes.
type Deps struct {
	Auth       *auth.Service
	Ledger     *services.LedgerService
	Accounts   *services.AccountService
	Categories *services.CategoryService
	Settings   *services.SettingsService
	Recurring  *services.RecurringService
	Processor  *services.RecurringProcessor
	Reports    *services.ReportService
	Data       *services.DataService
	// Ready reports whether the backing store is reachable; nil means
	// always ready.
	Ready func(context.Context) error
}

// Options tune the middleware chain.
type Options struct {
	RateLimitPerMinute int
	TrustedProxies     []string
	Logger             *applog.Logger
	Now                func() time.Time
}

type Server struct {
	http.Server
	deps     Deps
	now      func() time.Time
	limiter  *ratelimit.Limiter
	tracer   *trace.Middleware
	detector *security.Detector

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run
// http.Server.
func NewServer(addr string, deps Deps, opts Options) (*Server, error) {
	detector, err := security.NewDetector(opts.TrustedProxies...)
	if err != nil {
		return nil, err
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = applog.FromContext(context.Background())
	}

	s := &Server{
		deps:     deps,
		now:      opts.Now,
		limiter:  ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RateLimitPerMinute}),
		tracer:   trace.NewMiddleware(),
		detector: detector,
	}

	var h http.Handler = s.routes()
	h = applog.RequestLogger(opts.Logger, trace.GetRequestID, detector.ExtractClientIP)(h)
	h = s.limiter.Middleware(detector.ExtractClientIP, func(w http.ResponseWriter, r *http.Request) {
		slog.WarnContext(r.Context(), "Rate limit exceeded",
			applog.FieldClientIP, detector.ExtractClientIP(r),
			applog.FieldPath, r.URL.Path)
		TooManyRequestsError().Write(w)
	})(h)
	h = detector.Middleware(h)
	h = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(h)
	h = s.tracer.Middleware(h)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s, nil
}

func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	authed := auth.Middleware(s.deps.Auth.Tokens(), deny)
	p := func(h http.HandlerFunc) http.Handler { return authed(h) }
	admin := func(h http.HandlerFunc) http.Handler { return authed(auth.RequireAdmin(deny)(h)) }

	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.HandleFunc("POST /api/register", s.handleRegister)
	mux.HandleFunc("POST /api/login", s.handleLogin)

	mux.Handle("GET /api/accounts", p(s.handleListAccounts))
	mux.Handle("POST /api/accounts", p(s.handleCreateAccount))
	mux.Handle("POST /api/accounts/transfer", p(s.handleTransfer))
	mux.Handle("PATCH /api/accounts/{id}", p(s.handleUpdateAccount))
	mux.Handle("DELETE /api/accounts/{id}", p(s.handleDeleteAccount))

	mux.Handle("GET /api/account-types", p(s.handleListAccountTypes))
	mux.Handle("POST /api/account-types", p(s.handleCreateAccountType))
	mux.Handle("DELETE /api/account-types/{id}", p(s.handleDeleteAccountType))

	mux.Handle("GET /api/transactions", p(s.handleListTransactions))
	mux.Handle("POST /api/transactions", p(s.handleCreateTransaction))
	mux.Handle("GET /api/transactions/{id}", p(s.handleGetTransaction))
	mux.Handle("PATCH /api/transactions/{id}", p(s.handleUpdateTransaction))
	mux.Handle("DELETE /api/transactions/{id}", p(s.handleDeleteTransaction))

	mux.Handle("GET /api/categories", p(s.handleListCategories))
	mux.Handle("POST /api/categories", p(s.handleCreateCategory))
	mux.Handle("PATCH /api/categories/{key}", p(s.handleUpdateCategory))
	mux.Handle("DELETE /api/categories/{key}", p(s.handleDeleteCategory))

	mux.Handle("GET /api/recurring", p(s.handleListRecurring))
	mux.Handle("POST /api/recurring", p(s.handleCreateRecurring))
	mux.Handle("POST /api/recurring/run", p(s.handleRunRecurring))
	mux.Handle("PATCH /api/recurring/{id}", p(s.handleUpdateRecurring))
	mux.Handle("DELETE /api/recurring/{id}", p(s.handleDeleteRecurring))

	mux.Handle("GET /api/settings", p(s.handleGetSettings))
	mux.Handle("PUT /api/settings", p(s.handleUpdateSettings))

	mux.Handle("GET /api/reports/statistics", p(s.handleStatistics))
	mux.Handle("GET /api/reports/budget", p(s.handleBudgetStatus))
	mux.Handle("GET /api/reports/search", p(s.handleSearch))

	mux.Handle("GET /api/export", p(s.handleExport))
	mux.Handle("POST /api/import", p(s.handleImport))

	mux.Handle("GET /api/admin/users", admin(s.handleListUsers))
	mux.Handle("POST /api/admin/users", admin(s.handleCreateUser))

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		NotFoundError().Write(w)
	})
	return mux
}

// Shutdown gracefully shuts down the server and its background goroutines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.deps.Ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.deps.Ready(ctx); err != nil {
			slog.WarnContext(r.Context(), "Readiness check failed", applog.FieldError, err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	m := s.tracer.GetMetrics()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":        "ready",
		"requests":      m.TotalRequests,
		"avgResponseMs": m.AverageResponseTime.Milliseconds(),
	})
}
