package handler

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/sync/errgroup"

	"github.com/deppfellow/partners/internal/middleware"
	"github.com/deppfellow/partners/internal/server"
)

const healthCheckTimeout = 5 * time.Second

type HealthHandler struct {
	Handler
}

func NewHealthHandler(s *server.Server) *HealthHandler {
	return &HealthHandler{
		Handler: NewHandler(s),
	}
}

type dependencyCheck struct {
	Status       string `json:"status"`
	ResponseTime string `json:"response_time"`
	Error        string `json:"error,omitempty"`
}

type healthResponse struct {
	Status      string                     `json:"status"`
	Timestamp   time.Time                  `json:"timestamp"`
	Environment string                     `json:"environment"`
	Checks      map[string]dependencyCheck `json:"checks"`
}

// CheckHealth pings Postgres and Redis in parallel. Both are required, so
// either failing answers 503.
func (h *HealthHandler) CheckHealth(c echo.Context) error {
	start := time.Now()
	logger := middleware.GetLogger(c).With().Str("operation", "health_check").Logger()

	ctx, cancel := context.WithTimeout(c.Request().Context(), healthCheckTimeout)
	defer cancel()

	checkers := map[string]func(context.Context) error{
		"database": h.server.DB.Pool.Ping,
		"redis": func(ctx context.Context) error {
			return h.server.Redis.Ping(ctx).Err()
		},
	}

	resp := healthResponse{
		Status:      "healthy",
		Timestamp:   start.UTC(),
		Environment: h.server.Config.Primary.Env,
		Checks:      make(map[string]dependencyCheck, len(checkers)),
	}

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	for name, checker := range checkers {
		name, checker := name, checker
		g.Go(func() error {
			started := time.Now()
			err := checker(ctx)
			check := dependencyCheck{Status: "healthy", ResponseTime: time.Since(started).String()}
			if err != nil {
				check.Status = "unhealthy"
				check.Error = err.Error()
				logger.Error().Err(err).Str("check", name).Msg("health check failed")
				h.recordFailure(name, time.Since(started), err)
			}

			mu.Lock()
			resp.Checks[name] = check
			mu.Unlock()
			return err
		})
	}

	if err := g.Wait(); err != nil {
		resp.Status = "unhealthy"
		logger.Warn().Dur("total_duration", time.Since(start)).Msg("service unhealthy")
		return c.JSON(http.StatusServiceUnavailable, resp)
	}

	logger.Debug().Dur("total_duration", time.Since(start)).Msg("health check passed")
	return c.JSON(http.StatusOK, resp)
}

func (h *HealthHandler) recordFailure(check string, took time.Duration, err error) {
	if h.server.LoggerService == nil || h.server.LoggerService.GetApplication() == nil {
		return
	}
	h.server.LoggerService.GetApplication().RecordCustomEvent("HealthCheckError", map[string]interface{}{
		"check_type":       check,
		"response_time_ms": took.Milliseconds(),
		"error_message":    err.Error(),
	})
}
