package http

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"sync/atomic"
	"time"

	"expenses/internal/cache"
	"expenses/internal/config"
	"expenses/internal/export"
	applog "expenses/internal/log"
	"expenses/internal/middleware/ratelimit"
	"expenses/internal/middleware/security"
	"expenses/internal/middleware/trace"
	"expenses/internal/session"
	appweb "expenses/web"
)

// SessionCookie names the cookie carrying the workspace ID.
const SessionCookie = "expenses_session"

// Options wires a Server.
type Options struct {
	Addr               string
	Validator          session.Validator
	Store              *session.Store
	Exporter           *export.Exporter
	Logger             *applog.Logger
	DeleteMode         string
	RateLimitPerMinute int
	// TrustedProxies are CIDRs, beyond loopback and private ranges, whose
	// forwarding headers are believed.
	TrustedProxies []string
}

// Server serves the entry form and table.
type Server struct {
	http.Server
	templates *template.Template

	validator  session.Validator
	store      *session.Store
	exporter   *export.Exporter
	deleteMode string

	logger *applog.Logger
	events *applog.StructuredLogger

	rateLimiter      *ratelimit.Limiter
	securityDetector *security.Detector
	traceMiddleware  *trace.Middleware
	appMetrics       *appMetrics
}

type appMetrics struct {
	entriesCreated     atomic.Int64
	entriesDeleted     atomic.Int64
	deleteMisses       atomic.Int64
	validationFailures atomic.Int64
	exports            atomic.Int64
	sessionsCreated    atomic.Int64
	sessionsEvicted    atomic.Int64
	uptime             time.Time
}

// NewServer parses the embedded templates and configures routes, returning a
// ready-to-run server.
func NewServer(opts Options) (*Server, error) {
	if opts.Validator == nil || opts.Store == nil {
		return nil, errors.New("validator and store are required")
	}
	if opts.Logger == nil {
		opts.Logger = applog.New(applog.DefaultConfig())
	}
	if opts.Exporter == nil {
		opts.Exporter = export.NewExporter(opts.Logger.WithComponent(applog.ComponentExport).Slog())
	}
	if opts.DeleteMode == "" {
		opts.DeleteMode = config.DeleteByIdentity
	}

	t, err := template.ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}

	logger := opts.Logger.WithComponent(applog.ComponentHTTP)
	events := applog.NewStructuredLogger(logger)
	detector := security.NewDetector()
	for _, cidr := range opts.TrustedProxies {
		if err := detector.AddTrustedProxy(cidr); err != nil {
			return nil, fmt.Errorf("trusted proxy %q: %w", cidr, err)
		}
	}

	s := &Server{
		templates:        t,
		validator:        opts.Validator,
		store:            opts.Store,
		exporter:         opts.Exporter,
		deleteMode:       opts.DeleteMode,
		logger:           logger,
		events:           events,
		rateLimiter:      ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RateLimitPerMinute}),
		securityDetector: detector,
		traceMiddleware:  trace.NewMiddleware(detector.ExtractClientIP, events),
		appMetrics:       &appMetrics{uptime: time.Now()},
	}

	sessionLog := opts.Logger.WithComponent(applog.ComponentSession)
	s.store.OnEvict(func(id string, lifetime time.Duration, reason cache.EvictReason) {
		s.appMetrics.sessionsEvicted.Add(1)
		sessionLog.Debug("Workspace evicted",
			applog.FieldSessionID, id,
			"reason", string(reason),
			"lifetime", lifetime.Round(time.Second).String(),
		)
	})

	mux := http.NewServeMux()

	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("/static/", security.StaticAssetMiddleware(3600)(static))
	} else {
		logger.Warn("Failed to mount embedded static FS", applog.FieldError, err)
	}

	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/readyz", s.handleReady)
	mux.HandleFunc("/metrics", s.handleMetrics)

	mux.Handle("/", s.dynamic(s.handleIndex))
	mux.Handle("/entries", s.dynamic(s.handleCreateEntry))
	mux.Handle("/entries/validate", s.dynamic(s.handleValidateEntry))
	mux.Handle("/entries/delete", s.dynamic(s.handleDeleteEntry))
	mux.Handle("/entries/export.xlsx", s.dynamic(s.handleExport))
	mux.Handle("/ui/entry-table", s.dynamic(s.handleEntryTable))

	var handler http.Handler = mux
	handler = s.securityDetector.Middleware(handler)
	handler = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(handler)
	handler = applog.RequestIDMiddleware(trace.RequestIDFromRequest)(handler)
	handler = applog.Middleware(logger)(handler)
	handler = s.traceMiddleware.Middleware(handler)

	s.Server = http.Server{
		Addr:              opts.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s, nil
}

// dynamic wraps per-session routes: rate limited and never cached.
func (s *Server) dynamic(h http.HandlerFunc) http.Handler {
	limited := s.rateLimiter.Middleware(s.securityDetector.ExtractClientIP, s.onRateLimit)(h)
	return security.NoStore(limited)
}

func (s *Server) onRateLimit(w http.ResponseWriter, r *http.Request) {
	applog.FromContext(r.Context()).WithComponent(applog.ComponentRateLimit).WarnContext(r.Context(),
		"Rate limit exceeded",
		applog.FieldClientIP, s.securityDetector.ExtractClientIP(r),
		applog.FieldMethod, r.Method,
		applog.FieldPath, r.URL.Path,
	)
	TooManyRequestsError("Rate limit exceeded. Please try again later.").Write(w)
}

// Run serves until ctx is cancelled, then shuts down within timeout. The
// rate limiter cleanup runs alongside.
func (s *Server) Run(ctx context.Context, timeout time.Duration) error {
	limiterCtx, stopLimiter := context.WithCancel(ctx)
	defer stopLimiter()
	go func() { _ = s.rateLimiter.Run(limiterCtx) }()

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting HTTP server", "addr", s.Addr)
		if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	s.logger.Info("Shutting down HTTP server", applog.FieldOperation, applog.OpShutdown)
	if err := s.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}

// workspace resolves the caller's workspace, issuing a session cookie when
// the request carried none or an expired one.
func (s *Server) workspace(w http.ResponseWriter, r *http.Request) *session.Workspace {
	id := ""
	if c, err := r.Cookie(SessionCookie); err == nil {
		id = c.Value
	}
	ws, created := s.store.Resolve(id)
	if created {
		s.appMetrics.sessionsCreated.Add(1)
		http.SetCookie(w, &http.Cookie{
			Name:     SessionCookie,
			Value:    ws.ID(),
			Path:     "/",
			HttpOnly: true,
			Secure:   r.TLS != nil,
			SameSite: http.SameSiteLaxMode,
		})
	}
	return ws
}

func (s *Server) render(name string, data any) ([]byte, error) {
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		return nil, fmt.Errorf("execute template %s: %w", name, err)
	}
	return buf.Bytes(), nil
}

func (s *Server) byPosition() bool {
	return s.deleteMode == config.DeleteByPosition
}
