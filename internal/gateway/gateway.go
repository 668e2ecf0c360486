// Package gateway serves the FAQ chatbot over HTTP and WebSocket.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"faqbot/internal/auth"
	"faqbot/internal/config"
	"faqbot/internal/faq"
	"faqbot/internal/index"
	"faqbot/internal/logging"
	"faqbot/internal/metrics"
	"faqbot/internal/middleware"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"
)

const shutdownTimeout = 10 * time.Second

// Options holds the Gateway dependencies. Metrics may be nil.
type Options struct {
	Config   *config.Config
	Manager  *index.Manager
	Service  *faq.Service
	Verifier *auth.Verifier
	Metrics  *metrics.Metrics
	Logger   *log.Logger
}

// Gateway routes HTTP requests to the query service.
type Gateway struct {
	config   *config.Config
	manager  *index.Manager
	service  *faq.Service
	metrics  *metrics.Metrics
	logger   *log.Logger
	started  time.Time
	upgrader websocket.Upgrader

	adminAuth  *middleware.AdminAuth
	queryLimit *middleware.RateLimit
	adminLimit *middleware.RateLimit

	clientMu sync.Mutex
	clients  map[*wsClient]struct{}
}

// New creates a Gateway.
func New(opts Options) (*Gateway, error) {
	if opts.Config == nil || opts.Manager == nil || opts.Service == nil {
		return nil, errors.New("gateway: config, manager and service are required")
	}

	g := &Gateway{
		config:  opts.Config,
		manager: opts.Manager,
		service: opts.Service,
		metrics: opts.Metrics,
		logger:  logging.Component(opts.Logger, "gateway"),
		started: time.Now(),
		clients: make(map[*wsClient]struct{}),
	}

	g.adminAuth = middleware.NewAdminAuth(middleware.AdminAuthConfig{
		Verifier: opts.Verifier,
		Logger:   opts.Logger,
		OnAuthError: func(r *http.Request, e middleware.APIError) {
			g.observeAuthFailure(e)
		},
	})

	rl := opts.Config.RateLimiting
	cleanup := time.Duration(rl.CleanupIntervalSeconds) * time.Second
	onLimit := func(r *http.Request, tier string) {
		if g.metrics != nil {
			g.metrics.ObserveRateLimited(tier)
		}
	}
	g.queryLimit = middleware.NewRateLimit(middleware.RateLimitConfig{
		Name:            "query",
		Window:          time.Duration(rl.Query.WindowSeconds) * time.Second,
		MaxRequests:     rl.Query.MaxRequests,
		CleanupInterval: cleanup,
		Enabled:         rl.Enabled,
	}, opts.Logger, onLimit)
	g.adminLimit = middleware.NewRateLimit(middleware.RateLimitConfig{
		Name:            "admin",
		Window:          time.Duration(rl.Admin.WindowSeconds) * time.Second,
		MaxRequests:     rl.Admin.MaxRequests,
		CleanupInterval: cleanup,
		Enabled:         rl.Enabled,
	}, opts.Logger, onLimit)

	g.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(opts.Config.CORS.AllowedOrigins),
	}

	return g, nil
}

// Handler returns the routed handler with the middleware chain applied.
func (g *Gateway) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.Handle("/chatbot", g.queryLimit.Wrap(http.HandlerFunc(g.handleChatbot)))
	mux.Handle("/ws", g.queryLimit.Wrap(http.HandlerFunc(g.handleWebSocket)))
	mux.Handle("/reload", g.adminLimit.Wrap(g.adminAuth.Wrap(http.HandlerFunc(g.handleReload))))
	mux.HandleFunc("/health", g.handleHealth)
	if g.metrics != nil {
		mux.Handle("/metrics", g.metrics.Handler())
	}

	return middleware.Chain(mux,
		middleware.RequestID,
		middleware.AccessLog(g.logger),
		middleware.CORS(g.config.CORS.AllowedOrigins),
	)
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (g *Gateway) Start(ctx context.Context) error {
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", g.config.Port),
		Handler:           g.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	g.logger.Info("gateway started", "port", g.config.Port)

	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-errCh:
	}

	g.logger.Info("shutting down gateway")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		g.logger.Error("server shutdown error", "err", err)
	}

	g.closeClients()
	g.queryLimit.Stop()
	g.adminLimit.Stop()

	if serveErr != nil {
		return fmt.Errorf("http server: %w", serveErr)
	}
	return nil
}

func (g *Gateway) observeAuthFailure(e middleware.APIError) {
	if g.metrics != nil {
		g.metrics.ObserveAuthFailure(e.Error)
	}
}
