package handler

import (
	"github.com/labstack/echo/v4"

	"github.com/deppfellow/partners/internal/model"
	"github.com/deppfellow/partners/internal/server"
	"github.com/deppfellow/partners/internal/service"
)

type CommissionHandler struct {
	Handler
	commissions *service.CommissionService
}

func NewCommissionHandler(s *server.Server, commissions *service.CommissionService) *CommissionHandler {
	return &CommissionHandler{Handler: NewHandler(s), commissions: commissions}
}

func (h *CommissionHandler) TrackLead(c echo.Context, req *model.TrackLeadRequest) (*model.TrackResponse, error) {
	return withActor(c, req, h.commissions.TrackLead)
}

func (h *CommissionHandler) TrackSale(c echo.Context, req *model.TrackSaleRequest) (*model.TrackResponse, error) {
	return withActor(c, req, h.commissions.TrackSale)
}

func (h *CommissionHandler) List(c echo.Context, req *model.ListCommissionsRequest) (*model.PaginatedResponse[model.Commission], error) {
	return withActor(c, req, h.commissions.List)
}

func (h *CommissionHandler) Get(c echo.Context, req *model.CommissionRef) (*model.Commission, error) {
	return withActor(c, req, h.commissions.Get)
}

func (h *CommissionHandler) Create(c echo.Context, req *model.CreateCommissionRequest) (*model.Commission, error) {
	return withActor(c, req, h.commissions.Create)
}

func (h *CommissionHandler) Update(c echo.Context, req *model.UpdateCommissionRequest) (*model.Commission, error) {
	return withActor(c, req, h.commissions.Update)
}

func (h *CommissionHandler) MarkDuplicate(c echo.Context, req *model.CommissionRef) (*model.Commission, error) {
	return withActor(c, req, h.commissions.MarkDuplicate)
}

func (h *CommissionHandler) MarkFraud(c echo.Context, req *model.CommissionRef) (*model.Commission, error) {
	return withActor(c, req, h.commissions.MarkFraud)
}

func (h *CommissionHandler) Refund(c echo.Context, req *model.CommissionRef) (*model.Commission, error) {
	return withActor(c, req, h.commissions.Refund)
}
