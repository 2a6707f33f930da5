package handler

import (
	"github.com/labstack/echo/v4"

	"github.com/deppfellow/partners/internal/model"
	"github.com/deppfellow/partners/internal/server"
	"github.com/deppfellow/partners/internal/service"
)

type PayoutHandler struct {
	Handler
	payouts *service.PayoutService
}

func NewPayoutHandler(s *server.Server, payouts *service.PayoutService) *PayoutHandler {
	return &PayoutHandler{Handler: NewHandler(s), payouts: payouts}
}

func (h *PayoutHandler) List(c echo.Context, req *model.ListPayoutsRequest) (*model.PaginatedResponse[model.Payout], error) {
	return withActor(c, req, h.payouts.List)
}

func (h *PayoutHandler) Get(c echo.Context, req *model.PayoutRef) (*model.Payout, error) {
	return withActor(c, req, h.payouts.Get)
}

// Confirm answers 202: invoices are paid out by the worker.
func (h *PayoutHandler) Confirm(c echo.Context, req *model.ConfirmPayoutsRequest) (*model.ConfirmPayoutsResponse, error) {
	return withActor(c, req, h.payouts.ConfirmPayouts)
}

func (h *PayoutHandler) MarkPaid(c echo.Context, req *model.PayoutRef) (*model.Payout, error) {
	return withActor(c, req, h.payouts.MarkPaid)
}

func (h *PayoutHandler) Retry(c echo.Context, req *model.PayoutRef) (*model.Payout, error) {
	return withActor(c, req, h.payouts.RetryFailed)
}

func (h *PayoutHandler) Cancel(c echo.Context, req *model.PayoutRef) (*model.Payout, error) {
	return withActor(c, req, h.payouts.Cancel)
}
