package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"

	"github.com/agbru/fibsquares/internal/config"
	apperrors "github.com/agbru/fibsquares/internal/errors"
	"github.com/agbru/fibsquares/internal/fibonacci"
	"github.com/agbru/fibsquares/internal/logging"
	"github.com/agbru/fibsquares/internal/service"
)

// Server is the HTTP API in front of the calculation service. It wraps the
// standard http.Server and adds the middleware chain and graceful shutdown.
type Server struct {
	factory        fibonacci.CalculatorFactory
	service        service.Service
	cfg            config.AppConfig
	httpServer     *http.Server
	logger         logging.Logger
	rateLimiter    *RateLimiter
	securityConfig SecurityConfig
	metrics        *Metrics
	timeouts       Timeouts
}

// NewServer creates a Server for the given factory and configuration.
// cfg.Modulus and cfg.Algo are the defaults for requests that omit m and
// algo; cfg.MaxModulus bounds m unless a service is injected.
func NewServer(factory fibonacci.CalculatorFactory, cfg config.AppConfig, opts ...Option) *Server {
	s := &Server{
		factory:        factory,
		cfg:            cfg,
		logger:         logging.NewLogger(os.Stderr, "server"),
		securityConfig: DefaultSecurityConfig(),
		metrics:        NewMetrics(),
		timeouts:       DefaultServerTimeouts(),
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.service == nil {
		s.service = service.NewCalculatorService(s.factory, s.cfg.MaxModulus)
	}
	if s.rateLimiter == nil {
		rlConfig := DefaultRateLimiterConfig()
		rlConfig.TrustProxyHeaders = s.cfg.TrustProxy
		s.rateLimiter = NewRateLimiter(rlConfig)
	}

	mux := http.NewServeMux()
	routes := map[string]http.HandlerFunc{
		"/sumsquares": s.handleSumSquares,
		"/fibmod":     s.handleFibMod,
		"/period":     s.handlePeriod,
		"/algorithms": s.handleAlgorithms,
		"/health":     s.handleHealth,
		"/metrics":    s.handleMetrics,
	}
	for route, handler := range routes {
		mux.HandleFunc(route, s.wrapWithMiddleware(route, handler))
	}

	s.httpServer = &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      mux,
		ReadTimeout:  s.timeouts.ReadTimeout,
		WriteTimeout: s.timeouts.WriteTimeout,
		IdleTimeout:  s.timeouts.IdleTimeout,
	}
	return s
}

// wrapWithMiddleware applies the chain
// RequestID -> Security -> RateLimit -> Logging -> Metrics -> Handler.
func (s *Server) wrapWithMiddleware(route string, handler http.HandlerFunc) http.HandlerFunc {
	wrapped := s.metricsMiddleware(route, handler)
	wrapped = s.loggingMiddleware(wrapped)
	wrapped = RateLimitMiddleware(s.rateLimiter, wrapped)
	wrapped = SecurityMiddleware(s.securityConfig, wrapped)
	return requestIDMiddleware(wrapped)
}

// Handler returns the root handler, for use with httptest.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start listens on the configured port and serves until ctx is done, then
// shuts down gracefully within the shutdown timeout.
//
// Returns:
//   - error: A ServerError if the server fails to start or to shut down.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		s.rateLimiter.Stop()
		return apperrors.NewServerError("server failed to start", err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Start on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	defer s.rateLimiter.Stop()

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server listening",
			logging.String("addr", ln.Addr().String()),
			logging.Uint64("default_modulus", s.cfg.Modulus),
			logging.String("default_algo", s.defaultAlgo()))
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("shutdown requested, draining connections")
	case err, ok := <-errCh:
		if ok {
			return apperrors.NewServerError("server stopped unexpectedly", err)
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.timeouts.ShutdownTimeout)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return apperrors.NewServerError("failed to gracefully shutdown server", err)
	}

	s.logger.Info("server stopped gracefully")
	return nil
}
