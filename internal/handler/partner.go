package handler

import (
	"context"

	"github.com/labstack/echo/v4"

	"github.com/deppfellow/partners/internal/errs"
	"github.com/deppfellow/partners/internal/middleware"
	"github.com/deppfellow/partners/internal/model"
	"github.com/deppfellow/partners/internal/server"
	"github.com/deppfellow/partners/internal/service"
)

type PartnerHandler struct {
	Handler
	partners *service.PartnerService
}

func NewPartnerHandler(s *server.Server, partners *service.PartnerService) *PartnerHandler {
	return &PartnerHandler{Handler: NewHandler(s), partners: partners}
}

func (h *PartnerHandler) List(c echo.Context, req *model.ListPartnersRequest) (*model.PaginatedResponse[model.EnrolledPartner], error) {
	return withActor(c, req, h.partners.List)
}

func (h *PartnerHandler) Get(c echo.Context, req *model.PartnerRef) (*model.EnrolledPartner, error) {
	return withActor(c, req, h.partners.Get)
}

func (h *PartnerHandler) Invite(c echo.Context, req *model.InvitePartnerRequest) (*model.ProgramEnrollment, error) {
	return withActor(c, req, h.partners.Invite)
}

func (h *PartnerHandler) Approve(c echo.Context, req *model.ApprovePartnersRequest) ([]model.ProgramEnrollment, error) {
	return withActor(c, req, h.partners.Approve)
}

func (h *PartnerHandler) Reject(c echo.Context, req *model.BulkPartnersRequest) ([]model.ProgramEnrollment, error) {
	return withActor(c, req, h.partners.Reject)
}

func (h *PartnerHandler) Ban(c echo.Context, req *model.BanPartnerRequest) (*model.ProgramEnrollment, error) {
	return withActor(c, req, h.partners.Ban)
}

func (h *PartnerHandler) Unban(c echo.Context, req *model.PartnerRef) (*model.ProgramEnrollment, error) {
	return withActor(c, req, h.partners.Unban)
}

func (h *PartnerHandler) Archive(c echo.Context, req *model.PartnerRef) (*model.ProgramEnrollment, error) {
	return withActor(c, req, h.partners.Archive)
}

func (h *PartnerHandler) Unarchive(c echo.Context, req *model.PartnerRef) (*model.ProgramEnrollment, error) {
	return withActor(c, req, h.partners.Unarchive)
}

func (h *PartnerHandler) Deactivate(c echo.Context, req *model.PartnerRef) (*model.ProgramEnrollment, error) {
	return withActor(c, req, h.partners.Deactivate)
}

func (h *PartnerHandler) Reactivate(c echo.Context, req *model.PartnerRef) (*model.ProgramEnrollment, error) {
	return withActor(c, req, h.partners.Reactivate)
}

func (h *PartnerHandler) UpdateRewards(c echo.Context, req *model.UpdateEnrollmentRewardsRequest) (*model.ProgramEnrollment, error) {
	return withActor(c, req, h.partners.UpdateRewards)
}

// Apply only needs a signed-in user; the partner profile is created or
// linked by the application itself.
func (h *PartnerHandler) Apply(c echo.Context, req *model.ApplyRequest) (*model.ProgramEnrollment, error) {
	userID := middleware.GetUserID(c)
	if userID == "" {
		return nil, errs.NewUnauthorizedError("Unauthorized", false)
	}
	return h.partners.Apply(c.Request().Context(), userID, req)
}

func (h *PartnerHandler) Me(c echo.Context, req *model.Empty) (*model.Partner, error) {
	return partnerFrom(c)
}

func (h *PartnerHandler) MyPrograms(c echo.Context, req *model.Empty) ([]model.ProgramEnrollment, error) {
	return asPartner(c, req, func(ctx context.Context, partner *model.Partner, _ *model.Empty) ([]model.ProgramEnrollment, error) {
		return h.partners.ListMyPrograms(ctx, partner)
	})
}

func (h *PartnerHandler) EnablePayouts(c echo.Context, req *model.EnablePayoutsRequest) (*model.Partner, error) {
	return asPartner(c, req, func(ctx context.Context, partner *model.Partner, _ *model.EnablePayoutsRequest) (*model.Partner, error) {
		return h.partners.EnablePayouts(ctx, partner)
	})
}
