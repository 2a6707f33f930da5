package handler

import (
	"github.com/labstack/echo/v4"

	"github.com/deppfellow/partners/internal/model"
	"github.com/deppfellow/partners/internal/server"
	"github.com/deppfellow/partners/internal/service"
)

type FraudHandler struct {
	Handler
	fraud    *service.FraudService
	partners *service.PartnerService
}

func NewFraudHandler(s *server.Server, fraud *service.FraudService, partners *service.PartnerService) *FraudHandler {
	return &FraudHandler{Handler: NewHandler(s), fraud: fraud, partners: partners}
}

func (h *FraudHandler) ListGroups(c echo.Context, req *model.ListFraudGroupsRequest) (*model.PaginatedResponse[model.FraudEventGroup], error) {
	return withActor(c, req, h.fraud.ListGroups)
}

func (h *FraudHandler) GetGroup(c echo.Context, req *model.FraudGroupRef) (*model.FraudGroupWithEvents, error) {
	return withActor(c, req, h.fraud.GetGroup)
}

func (h *FraudHandler) Resolve(c echo.Context, req *model.ResolveFraudGroupRequest) (*model.FraudEventGroup, error) {
	return withActor(c, req, h.fraud.Resolve)
}

func (h *FraudHandler) BulkResolve(c echo.Context, req *model.BulkResolveFraudGroupsRequest) (*model.ResolvedCountResponse, error) {
	return withActor(c, req, h.fraud.BulkResolve)
}

// ResolveAndBan bans the group's partner, which resolves all of the
// partner's pending groups.
func (h *FraudHandler) ResolveAndBan(c echo.Context, req *model.ResolveAndBanRequest) (*model.ProgramEnrollment, error) {
	return withActor(c, req, h.partners.BanFromFraudGroup)
}
