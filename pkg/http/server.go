package http

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"StratEngine/pkg/http/middleware"
	applogger "StratEngine/pkg/logger"
)

// ServerConfig is the listener and middleware setup. Zero durations and an
// empty port fall back to defaults.
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	SlowThreshold   time.Duration
	CORS            bool
	DisableMetrics  bool
	// Registry receives the request metrics; nil means the default registry.
	Registry *prometheus.Registry
}

func (c *ServerConfig) fill() {
	if c.Port == 0 {
		c.Port = 8080
	}
	for _, d := range []*time.Duration{&c.ReadTimeout, &c.WriteTimeout, &c.ShutdownTimeout} {
		if *d <= 0 {
			*d = 10 * time.Second
		}
	}
	if c.SlowThreshold <= 0 {
		c.SlowThreshold = 500 * time.Millisecond
	}
}

// Server is the query API listener.
type Server struct {
	echo   *echo.Echo
	cfg    ServerConfig
	logger *applogger.Logger
	addr   net.Addr
}

// NewServer builds the echo instance and registers handler's routes.
func NewServer(handler Handler, l *applogger.Logger, cfg ServerConfig) *Server {
	cfg.fill()
	if l == nil {
		l = applogger.NewNop()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Server.ReadTimeout = cfg.ReadTimeout
	e.Server.WriteTimeout = cfg.WriteTimeout
	e.HTTPErrorHandler = envelopeErrors(l)

	e.Use(middleware.Recover(l))
	e.Use(middleware.RequestLogging(l))
	if !cfg.DisableMetrics {
		var reg prometheus.Registerer = prometheus.DefaultRegisterer
		var gather prometheus.Gatherer = prometheus.DefaultGatherer
		if cfg.Registry != nil {
			reg, gather = cfg.Registry, cfg.Registry
		}
		e.Use(middleware.NewHTTPMetrics(reg).Middleware(l, cfg.SlowThreshold))
		e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(gather, promhttp.HandlerOpts{})))
	}
	if cfg.CORS {
		e.Use(middleware.CORS(middleware.CORSConfig{
			AllowOrigins: []string{"*"},
			AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderAccept},
			MaxAge:       600,
		}))
	}
	if handler != nil {
		handler.RegisterRoutes(e)
	}

	return &Server{echo: e, cfg: cfg, logger: l}
}

// envelopeErrors renders echo's own errors (unknown route, bad method,
// recovered panics) in the same Envelope shape as handler responses.
func envelopeErrors(l *applogger.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		status := http.StatusInternalServerError
		var he *echo.HTTPError
		if errors.As(err, &he) {
			status = he.Code
		}
		if status >= http.StatusInternalServerError {
			l.Debug("http error", applogger.Error(err))
		}
		body := Envelope{Status: status, Message: http.StatusText(status)}
		if c.Request().Method == http.MethodHead {
			err = c.NoContent(status)
		} else {
			err = c.JSON(status, body)
		}
		if err != nil {
			l.Debug("http error response failed", applogger.Error(err))
		}
	}
}

// Start binds the listener, so a taken port fails here, then serves in the
// background.
func (s *Server) Start() error {
	hostPort := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	ln, err := net.Listen("tcp", hostPort)
	if err != nil {
		return fmt.Errorf("http listen %s: %w", hostPort, err)
	}
	s.addr = ln.Addr()
	s.echo.Listener = ln

	go func() {
		s.logger.Info("http server listening", applogger.String("addr", s.addr.String()))
		if err := s.echo.Start(""); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("http server error", applogger.Error(err))
		}
	}()
	return nil
}

// Addr is the bound address once Start has returned.
func (s *Server) Addr() net.Addr {
	return s.addr
}

// Stop drains in-flight requests within the shutdown timeout.
func (s *Server) Stop(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.ShutdownTimeout)
	defer cancel()
	if err := s.echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	s.logger.Info("http server stopped")
	return nil
}

// Echo exposes the router for tests.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}
