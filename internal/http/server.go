// Package http exposes the expense reports as a JSON API.
package http

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rs/cors"

	"talky/internal/analytics"
	"talky/internal/cache"
	"talky/internal/documents"
	applog "talky/internal/log"
	"talky/internal/middleware/ratelimit"
	"talky/internal/middleware/security"
	"talky/internal/middleware/trace"
)

const (
	defaultMaxUploadBytes = 20 << 20
	maxUploadFiles        = 10
	// Parts beyond this stay on disk while the multipart form is parsed.
	multipartMemory = 8 << 20
)

// DocumentUploader stores invoice files for a user.
type DocumentUploader interface {
	Upload(ctx context.Context, userID string, files []documents.File) ([]documents.Document, error)
}

// Deps are the collaborators behind the handlers. Uploader, Documents and
// Ready are optional.
type Deps struct {
	Engine    *analytics.Engine
	Snapshots *cache.SnapshotCache
	Uploader  DocumentUploader
	Documents documents.Registry
	Ready     func(ctx context.Context) error
	Logger    *applog.Logger
}

// Options tune the middleware chain.
type Options struct {
	CORSAllowedOrigins []string
	TrustedProxies     []string
	MaxUploadBytes     int64
	UploadRateLimit    ratelimit.Config
}

// Server wraps an http.Server and the middleware state it owns.
type Server struct {
	http.Server

	engine    *analytics.Engine
	snapshots *cache.SnapshotCache
	uploader  DocumentUploader
	registry  documents.Registry
	ready     func(ctx context.Context) error
	logger    *applog.Logger

	maxUploadBytes int64
	limiter        *ratelimit.Limiter
	tracer         *trace.Middleware
	probes         *security.ProbeFilter

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(addr string, deps Deps, opts Options) (*Server, error) {
	if deps.Engine == nil || deps.Snapshots == nil {
		return nil, fmt.Errorf("new server: engine and snapshot cache are required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	resolver, err := security.NewClientIPResolver(opts.TrustedProxies...)
	if err != nil {
		return nil, fmt.Errorf("new server: %w", err)
	}
	maxUpload := opts.MaxUploadBytes
	if maxUpload <= 0 {
		maxUpload = defaultMaxUploadBytes
	}

	s := &Server{
		engine:         deps.Engine,
		snapshots:      deps.Snapshots,
		uploader:       deps.Uploader,
		registry:       deps.Documents,
		ready:          deps.Ready,
		logger:         logger.WithComponent(applog.ComponentHTTP),
		maxUploadBytes: maxUpload,
		limiter:        ratelimit.NewLimiter(opts.UploadRateLimit),
		tracer:         trace.NewMiddleware(logger, resolver.ClientIP),
		probes:         security.NewProbeFilter(resolver.ClientIP),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /api/users/{userID}/report", s.handleReport)
	mux.HandleFunc("GET /api/users/{userID}/monthly", s.handleMonthly)
	mux.HandleFunc("GET /api/users/{userID}/totals", s.handleTotals)
	mux.HandleFunc("GET /api/users/{userID}/summary", s.handleSummary)
	mux.HandleFunc("GET /api/users/{userID}/expenses", s.handleExpenses)
	mux.HandleFunc("GET /api/users/{userID}/documents", s.handleListDocuments)

	limited := s.limiter.Middleware(resolver.ClientIP, func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusTooManyRequests, "rate limit exceeded")
	})
	mux.Handle("POST /api/users/{userID}/documents", limited(http.HandlerFunc(s.handleUpload)))

	c := cors.New(cors.Options{
		AllowedOrigins: opts.CORSAllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", trace.HeaderRequestID},
		ExposedHeaders: []string{trace.HeaderRequestID},
		MaxAge:         600,
	})

	var h http.Handler = mux
	h = c.Handler(h)
	h = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(h)
	h = s.probes.Middleware(h)
	h = s.tracer.Middleware(h)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       2 * time.Minute,
		WriteTimeout:      2 * time.Minute,
		IdleTimeout:       2 * time.Minute,
	}
	return s, nil
}

// Shutdown stops the rate limiter sweep and drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		m := s.tracer.Metrics()
		s.logger.Info("HTTP server stopping",
			"total_requests", m.TotalRequests,
			"failed_requests", m.FailedRequests,
			"avg_response_time", m.AverageResponseTime.String(),
			"rate_limited", s.limiter.Hits(),
			"probes_blocked", s.probes.Blocked())
		err = s.Server.Shutdown(ctx)
	})
	return err
}
