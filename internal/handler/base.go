package handler

import (
	"reflect"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/newrelic/go-agent/v3/integrations/nrpkgerrors"
	"github.com/newrelic/go-agent/v3/newrelic"

	"github.com/deppfellow/partners/internal/errs"
	"github.com/deppfellow/partners/internal/middleware"
	"github.com/deppfellow/partners/internal/model"
	"github.com/deppfellow/partners/internal/server"
	"github.com/deppfellow/partners/internal/validation"
)

// Handler carries shared dependencies into the concrete handlers.
type Handler struct {
	server *server.Server
}

func NewHandler(s *server.Server) Handler {
	return Handler{server: s}
}

// HandlerFunc receives a bound and validated request. Req is a pointer to
// a request struct.
type HandlerFunc[Req validation.Validatable, Res any] func(c echo.Context, req Req) (Res, error)

type HandlerFuncNoContent[Req validation.Validatable] func(c echo.Context, req Req) error

// ResponseHandler writes a successful result and names the operation in
// logs and traces.
type ResponseHandler interface {
	Handle(c echo.Context, result interface{}) error
	GetOperation() string
	AddAttributes(txn *newrelic.Transaction, result interface{})
}

type JSONResponseHandler struct {
	status int
}

func (h JSONResponseHandler) Handle(c echo.Context, result interface{}) error {
	return c.JSON(h.status, result)
}

func (h JSONResponseHandler) GetOperation() string {
	return "handler"
}

func (h JSONResponseHandler) AddAttributes(txn *newrelic.Transaction, result interface{}) {
	if txn == nil || result == nil {
		return
	}
	if counted, ok := result.(interface{ ResultCount() int }); ok {
		txn.AddAttribute("response.count", counted.ResultCount())
	}
}

type NoContentResponseHandler struct {
	status int
}

func (h NoContentResponseHandler) Handle(c echo.Context, result interface{}) error {
	return c.NoContent(h.status)
}

func (h NoContentResponseHandler) GetOperation() string {
	return "handler_no_content"
}

func (h NoContentResponseHandler) AddAttributes(txn *newrelic.Transaction, result interface{}) {}

// newRequest allocates a fresh request value. Handlers are registered once
// and shared by concurrent requests, so binding into one shared struct
// would leak fields between requests.
func newRequest[Req validation.Validatable]() Req {
	var zero Req
	t := reflect.TypeOf(zero)
	if t != nil && t.Kind() == reflect.Pointer {
		return reflect.New(t.Elem()).Interface().(Req)
	}
	return zero
}

// phase records one step of a request on the New Relic transaction.
func phase(txn *newrelic.Transaction, name string, d time.Duration, err error) {
	if txn == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "failed"
		txn.NoticeError(nrpkgerrors.Wrap(err))
	}
	txn.AddAttribute(name+".status", status)
	txn.AddAttribute(name+".duration_ms", d.Milliseconds())
}

// handleRequest binds and validates a fresh Req, runs the handler and
// writes its result.
func handleRequest[Req validation.Validatable](
	c echo.Context,
	handler func(c echo.Context, req Req) (interface{}, error),
	responseHandler ResponseHandler,
) error {
	start := time.Now()
	route := c.Path()

	txn := newrelic.FromContext(c.Request().Context())
	if txn != nil {
		txn.AddAttribute("handler.name", route)
	}

	logger := middleware.GetLogger(c).With().
		Str("operation", responseHandler.GetOperation()).
		Str("route", route).
		Logger()

	req := newRequest[Req]()

	err := validation.BindAndValidate(c, req)
	bound := time.Now()
	phase(txn, "validation", bound.Sub(start), err)
	if err != nil {
		logger.Warn().Err(err).Msg("request validation failed")
		return err
	}

	result, err := handler(c, req)
	done := time.Now()
	phase(txn, "handler", done.Sub(bound), err)
	if txn != nil {
		txn.AddAttribute("total.duration_ms", done.Sub(start).Milliseconds())
	}
	if err != nil {
		logger.Error().
			Err(err).
			Dur("total_duration", done.Sub(start)).
			Msg("handler execution failed")
		return err
	}

	responseHandler.AddAttributes(txn, result)
	logger.Debug().
		Dur("validation_duration", bound.Sub(start)).
		Dur("handler_duration", done.Sub(bound)).
		Msg("request handled")

	return responseHandler.Handle(c, result)
}

// Handle registers a typed JSON endpoint:
//
//	g.POST("/programs", handler.Handle(h.Programs.Create, http.StatusCreated))
func Handle[Req validation.Validatable, Res any](handler HandlerFunc[Req, Res], status int) echo.HandlerFunc {
	return func(c echo.Context) error {
		return handleRequest(c, func(c echo.Context, req Req) (interface{}, error) {
			return handler(c, req)
		}, JSONResponseHandler{status: status})
	}
}

// HandleNoContent registers a typed endpoint that answers without a body.
func HandleNoContent[Req validation.Validatable](handler HandlerFuncNoContent[Req], status int) echo.HandlerFunc {
	return func(c echo.Context) error {
		return handleRequest(c, func(c echo.Context, req Req) (interface{}, error) {
			return nil, handler(c, req)
		}, NoContentResponseHandler{status: status})
	}
}

// actorFrom returns the workspace member set by the auth middleware.
func actorFrom(c echo.Context) (model.Actor, error) {
	actor, ok := middleware.GetActor(c)
	if !ok {
		return model.Actor{}, errs.NewUnauthorizedError("Unauthorized", false)
	}
	return actor, nil
}

// partnerFrom returns the partner profile set by the auth middleware.
func partnerFrom(c echo.Context) (*model.Partner, error) {
	partner, ok := middleware.GetPartner(c)
	if !ok {
		return nil, errs.NewUnauthorizedError("Unauthorized", false)
	}
	return partner, nil
}
