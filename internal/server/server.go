// Package server exposes the identity engine over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/roach88/idlink/internal/engine"
	"github.com/roach88/idlink/internal/ir"
)

// Service is the engine surface the HTTP handlers use.
// Implemented by *engine.Engine.
type Service interface {
	Identify(ctx context.Context, q ir.Query) (*engine.Result, error)
	Cluster(ctx context.Context, id int64) (ir.ContactView, error)
	Stats(ctx context.Context) (engine.Stats, error)
}

var _ Service = (*engine.Engine)(nil)

// Config holds server configuration.
type Config struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// RateLimit disables limiting when Requests is zero.
	RateLimit RateLimitConfig

	// RequestIDs generates X-Request-ID values. Defaults to UUIDv7.
	RequestIDs engine.RequestIDGenerator
}

// RateLimitConfig allows Requests requests per Window per client IP.
type RateLimitConfig struct {
	Requests int
	Window   time.Duration
}

// Server provides the HTTP API.
type Server struct {
	echo    *echo.Echo
	service Service
	logger  *zap.Logger
	metrics *Metrics
	config  *Config
}

// ErrorResponse is the body of every non-2xx API response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status   string        `json:"status"`
	Version  string        `json:"version"`
	Contacts *engine.Stats `json:"contacts,omitempty"`
}

const (
	msgMissingIdentifier = "Either email or phoneNumber must be provided"
	msgInternal          = "Internal server error"
)

// New creates a new HTTP server.
func New(service Service, logger *zap.Logger, cfg *Config) (*Server, error) {
	if service == nil {
		return nil, fmt.Errorf("service cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = &Config{Addr: ":3000"}
	}
	ids := cfg.RequestIDs
	if ids == nil {
		ids = engine.UUIDv7Generator{}
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	// Client IPs come from the socket, never from X-Forwarded-For or X-Real-IP.
	e.IPExtractor = echo.ExtractIPDirect()
	e.Server.ReadTimeout = cfg.ReadTimeout
	e.Server.WriteTimeout = cfg.WriteTimeout

	s := &Server{
		echo:    e,
		service: service,
		logger:  logger,
		metrics: NewMetrics(),
		config:  cfg,
	}
	e.HTTPErrorHandler = s.handleError

	e.Use(middleware.Recover())
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: ids.Generate,
		RequestIDHandler: func(c echo.Context, id string) {
			req := c.Request()
			c.SetRequest(req.WithContext(engine.WithRequestID(req.Context(), id)))
		},
	}))
	e.Use(s.observe)
	if cfg.RateLimit.Requests > 0 {
		rl := NewRateLimiter(cfg.RateLimit.Requests, cfg.RateLimit.Window)
		e.Use(rl.Middleware(logger))
	}
	e.Use(middleware.BodyLimit("64K"))

	s.registerRoutes()

	return s, nil
}

func (s *Server) registerRoutes() {
	s.echo.POST("/identify", s.handleIdentify)
	s.echo.GET("/contacts/:id", s.handleContact)
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(s.metrics.Handler()))
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Metrics returns the server's metrics.
func (s *Server) Metrics() *Metrics {
	return s.metrics
}

// observe logs every request and records its latency. Errors are rendered
// here so the logged status is the one sent.
func (s *Server) observe(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		err := next(c)
		if err != nil {
			c.Error(err)
		}
		duration := time.Since(start)

		status := c.Response().Status
		route := c.Path()
		if route == "" {
			route = "unmatched"
		}
		s.metrics.RequestDuration.
			WithLabelValues(c.Request().Method, route, strconv.Itoa(status)).
			Observe(duration.Seconds())

		s.logger.Info("http request",
			zap.String("method", c.Request().Method),
			zap.String("uri", c.Request().RequestURI),
			zap.Int("status", status),
			zap.Duration("duration", duration),
			zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
		)

		return nil
	}
}

// handleError renders errors as ErrorResponse.
func (s *Server) handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	code := http.StatusInternalServerError
	msg := msgInternal

	var he *echo.HTTPError
	if errors.As(err, &he) {
		code = he.Code
		if m, ok := he.Message.(string); ok {
			msg = m
		} else {
			msg = http.StatusText(code)
		}
	} else {
		s.logger.Error("unhandled error", zap.Error(err))
	}

	if c.Request().Method == http.MethodHead {
		err = c.NoContent(code)
	} else {
		err = c.JSON(code, ErrorResponse{Error: msg})
	}
	if err != nil {
		s.logger.Error("failed to write error response", zap.Error(err))
	}
}

func (s *Server) handleIdentify(c echo.Context) error {
	var req ir.IdentifyRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid identify request", zap.Error(err))
		s.metrics.IdentifyRequests.WithLabelValues(OutcomeInvalid).Inc()
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	res, err := s.service.Identify(c.Request().Context(), req.Query())
	if err != nil {
		if engine.IsInvalidRequest(err) {
			s.metrics.IdentifyRequests.WithLabelValues(OutcomeInvalid).Inc()
			return echo.NewHTTPError(http.StatusBadRequest, msgMissingIdentifier)
		}
		// The engine has already logged the cause with the request id.
		s.metrics.IdentifyRequests.WithLabelValues(OutcomeError).Inc()
		return echo.NewHTTPError(http.StatusInternalServerError, msgInternal)
	}

	s.metrics.RecordIdentify(res)
	return c.JSON(http.StatusOK, ir.IdentifyResponse{Contact: res.View})
}

func (s *Server) handleContact(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid contact id")
	}

	view, err := s.service.Cluster(c.Request().Context(), id)
	switch {
	case err == nil:
		return c.JSON(http.StatusOK, ir.IdentifyResponse{Contact: view})
	case engine.IsNotFound(err):
		return echo.NewHTTPError(http.StatusNotFound, "Contact not found")
	case engine.IsBrokenLink(err):
		return echo.NewHTTPError(http.StatusConflict, "Contact does not resolve to a primary")
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, msgInternal)
	}
}

func (s *Server) handleHealth(c echo.Context) error {
	st, err := s.service.Stats(c.Request().Context())
	if err != nil {
		s.logger.Warn("health check failed", zap.Error(err))
		return c.JSON(http.StatusServiceUnavailable, HealthResponse{Status: "unavailable", Version: ir.ServiceVersion})
	}
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok", Version: ir.ServiceVersion, Contacts: &st})
}

// Start starts the HTTP server on the configured address.
// Returns http.ErrServerClosed after Shutdown.
func (s *Server) Start() error {
	s.logger.Info("starting http server", zap.String("addr", s.config.Addr))
	return s.echo.Start(s.config.Addr)
}

// Serve serves on an existing listener.
// Returns http.ErrServerClosed after Shutdown.
func (s *Server) Serve(ln net.Listener) error {
	s.logger.Info("starting http server", zap.String("addr", ln.Addr().String()))
	s.echo.Listener = ln
	return s.echo.Start("")
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}
