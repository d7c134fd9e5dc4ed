package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	models "StratEngine/internal/domain/models"
	domrepo "StratEngine/internal/domain/repository"
	"StratEngine/internal/usecase"
	xhttp "StratEngine/pkg/http"
	xlogger "StratEngine/pkg/logger"
)

// HealthCheck checks one dependency.
type HealthCheck func(ctx context.Context) error

// StratEchoHandler serves the read-only query API.
type StratEchoHandler struct {
	logger *xlogger.Logger
	engine *usecase.Engine
	cache  domrepo.SnapshotCache
	checks map[string]HealthCheck
}

func NewStratEchoHandler(logger *xlogger.Logger, engine *usecase.Engine, cache domrepo.SnapshotCache, checks map[string]HealthCheck) *StratEchoHandler {
	return &StratEchoHandler{logger: logger, engine: engine, cache: cache, checks: checks}
}

func (h *StratEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/continuity", h.Continuity)
	g.GET("/timeframes", h.Timeframes)
	g.GET("/patterns", h.Patterns)
	g.GET("/plans", h.Plans)
	g.GET("/symbols", h.Symbols)
	e.GET("/healthz", h.Health)
}

func normSymbol(s string) string { return strings.ToUpper(strings.TrimSpace(s)) }

// Continuity returns the cached snapshot, falling back to the engine.
func (h *StratEchoHandler) Continuity(c echo.Context) error {
	req := &models.SymbolRequest{}
	if verr := xhttp.BindQuery(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	symbol := normSymbol(req.Symbol)
	ctx := c.Request().Context()

	if h.cache != nil {
		if snap, err := h.cache.GetContinuity(ctx, symbol); err == nil && snap != nil {
			c.Response().Header().Set("X-Cache", "hit")
			return xhttp.SuccessResponse(c, snap)
		}
	}
	snap, ok := h.engine.Continuity(symbol)
	if !ok {
		return xhttp.AppErrorResponse(c, xhttp.UnknownSymbol(symbol))
	}
	c.Response().Header().Set("X-Cache", "miss")
	return xhttp.SuccessResponse(c, snap)
}

func (h *StratEchoHandler) Timeframes(c echo.Context) error {
	req := &models.SymbolRequest{}
	if verr := xhttp.BindQuery(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	symbol := normSymbol(req.Symbol)
	states, ok := h.engine.Timeframes(symbol)
	if !ok {
		return xhttp.AppErrorResponse(c, xhttp.UnknownSymbol(symbol))
	}
	return xhttp.ListResponse(c, states, len(states))
}

type patternsResponse struct {
	Symbol string                   `json:"symbol"`
	Active []models.PatternInstance `json:"active"`
	Recent []models.PatternInstance `json:"recent"`
}

func (h *StratEchoHandler) Patterns(c echo.Context) error {
	req := &models.PatternsRequest{}
	if verr := xhttp.BindQuery(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	symbol := normSymbol(req.Symbol)
	var tf models.Timeframe
	if req.Timeframe != "" {
		// already validated
		tf, _ = models.ParseTimeframe(req.Timeframe)
	}
	active, recent, ok := h.engine.Patterns(symbol, tf)
	if !ok {
		return xhttp.AppErrorResponse(c, xhttp.UnknownSymbol(symbol))
	}
	if active == nil {
		active = []models.PatternInstance{}
	}
	if recent == nil {
		recent = []models.PatternInstance{}
	}
	return xhttp.SuccessResponse(c, patternsResponse{Symbol: symbol, Active: active, Recent: recent})
}

func (h *StratEchoHandler) Plans(c echo.Context) error {
	req := &models.PlansRequest{}
	if verr := xhttp.BindQuery(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	audit := h.engine.Audit()
	if audit == nil {
		return xhttp.AppErrorResponse(c, xhttp.Unavailable("audit store"))
	}
	plans, err := audit.RecentPlans(c.Request().Context(), normSymbol(req.Symbol), req.Limit)
	if err != nil {
		h.logger.Error("recent plans query error", xlogger.String("symbol", req.Symbol), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.Internal("failed to load plans", err))
	}
	if plans == nil {
		plans = []models.TradePlan{}
	}
	return xhttp.ListResponse(c, plans, len(plans))
}

func (h *StratEchoHandler) Symbols(c echo.Context) error {
	syms := h.engine.Symbols()
	return xhttp.ListResponse(c, syms, len(syms))
}

// Health runs every dependency check with a short deadline.
func (h *StratEchoHandler) Health(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	out := make(map[string]string, len(h.checks))
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			out[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		out[name] = "ok"
	}
	return xhttp.DataResponse(c, status, out)
}
