package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/deppfellow/partners/internal/errs"
	"github.com/deppfellow/partners/internal/server"
	"github.com/deppfellow/partners/internal/sqlerr"
)

type GlobalMiddlewares struct {
	server *server.Server
}

func NewGlobalMiddlewares(s *server.Server) *GlobalMiddlewares {
	return &GlobalMiddlewares{
		server: s,
	}
}

func (global *GlobalMiddlewares) CORS() echo.MiddlewareFunc {
	return middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:  global.server.Config.Server.CORSAllowedOrigins,
		ExposeHeaders: []string{RequestIDHeader, "X-RateLimit-Limit", "X-RateLimit-Remaining"},
	})
}

// RequestLogger writes one "API" line per request at a level picked from
// the final status.
func (global *GlobalMiddlewares) RequestLogger() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:     true,
		LogStatus:  true,
		LogError:   true,
		LogLatency: true,
		LogHost:    true,
		LogMethod:  true,
		LogURIPath: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			// A returned error has not been rendered yet, so v.Status is
			// still 200. See labstack/echo#2310.
			status := v.Status
			if v.Error != nil {
				status = toHTTPError(v.Error).Status
			}

			eventFor(GetLogger(c), status).
				Err(v.Error).
				Str("method", v.Method).
				Str("uri", v.URI).
				Str("host", v.Host).
				Int("status", status).
				Dur("latency", v.Latency).
				Str("user_agent", c.Request().UserAgent()).
				Msg("API")

			return nil
		},
	})
}

func eventFor(logger *zerolog.Logger, status int) *zerolog.Event {
	switch {
	case status >= http.StatusInternalServerError:
		return logger.Error()
	case status >= http.StatusBadRequest:
		return logger.Warn()
	default:
		return logger.Info()
	}
}

// toHTTPError maps any handler error onto the response shape. Unknown
// errors become a bare 500 so internals never reach the client.
func toHTTPError(err error) errs.HTTPError {
	var httpErr *errs.HTTPError
	if errors.As(err, &httpErr) {
		return *httpErr
	}

	var echoErr *echo.HTTPError
	if errors.As(err, &echoErr) {
		if echoErr.Code == http.StatusNotFound {
			return *errs.NewNotFoundError("Route not found", false, nil)
		}
		msg, ok := echoErr.Message.(string)
		if !ok {
			msg = http.StatusText(echoErr.Code)
		}
		return errs.HTTPError{
			Status:  echoErr.Code,
			Code:    errs.MakeUpperCaseWithUnderscores(http.StatusText(echoErr.Code)),
			Message: msg,
		}
	}

	if errors.As(sqlerr.HandleError(err), &httpErr) {
		return *httpErr
	}
	return errs.HTTPError{
		Status:  http.StatusInternalServerError,
		Code:    errs.MakeUpperCaseWithUnderscores(http.StatusText(http.StatusInternalServerError)),
		Message: http.StatusText(http.StatusInternalServerError),
	}
}

func (global *GlobalMiddlewares) Recover() echo.MiddlewareFunc {
	return middleware.Recover()
}

func (global *GlobalMiddlewares) Secure() echo.MiddlewareFunc {
	return middleware.Secure()
}

// GlobalErrorHandler renders every error as an errs.HTTPError. HEAD
// requests get the status only.
func (global *GlobalMiddlewares) GlobalErrorHandler(err error, c echo.Context) {
	resp := toHTTPError(err)

	event := eventFor(GetLogger(c), resp.Status)
	if resp.Status >= http.StatusInternalServerError {
		event = event.Stack()
	}
	event.
		Err(err).
		Int("status", resp.Status).
		Str("error_code", resp.Code).
		Msg(resp.Message)

	if c.Response().Committed {
		return
	}
	if c.Request().Method == http.MethodHead {
		_ = c.NoContent(resp.Status)
		return
	}
	_ = c.JSON(resp.Status, resp)
}
