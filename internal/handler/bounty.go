package handler

import (
	"context"

	"github.com/labstack/echo/v4"

	"github.com/deppfellow/partners/internal/model"
	"github.com/deppfellow/partners/internal/server"
	"github.com/deppfellow/partners/internal/service"
)

type BountyHandler struct {
	Handler
	bounties *service.BountyService
}

func NewBountyHandler(s *server.Server, bounties *service.BountyService) *BountyHandler {
	return &BountyHandler{Handler: NewHandler(s), bounties: bounties}
}

func (h *BountyHandler) List(c echo.Context, req *model.ProgramRef) ([]model.Bounty, error) {
	return withActor(c, req, func(ctx context.Context, actor model.Actor, req *model.ProgramRef) ([]model.Bounty, error) {
		return h.bounties.List(ctx, actor, req.ProgramID)
	})
}

func (h *BountyHandler) Get(c echo.Context, req *model.BountyRef) (*model.Bounty, error) {
	return withActor(c, req, h.bounties.Get)
}

func (h *BountyHandler) Create(c echo.Context, req *model.CreateBountyRequest) (*model.Bounty, error) {
	return withActor(c, req, h.bounties.Create)
}

func (h *BountyHandler) Update(c echo.Context, req *model.UpdateBountyRequest) (*model.Bounty, error) {
	return withActor(c, req, h.bounties.Update)
}

func (h *BountyHandler) Delete(c echo.Context, req *model.BountyRef) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	return h.bounties.Delete(c.Request().Context(), actor, req)
}

func (h *BountyHandler) ListSubmissions(c echo.Context, req *model.BountyRef) ([]model.BountySubmission, error) {
	return withActor(c, req, h.bounties.ListSubmissions)
}

func (h *BountyHandler) Approve(c echo.Context, req *model.SubmissionRef) (*model.BountySubmission, error) {
	return withActor(c, req, h.bounties.Approve)
}

func (h *BountyHandler) Reject(c echo.Context, req *model.RejectSubmissionRequest) (*model.BountySubmission, error) {
	return withActor(c, req, h.bounties.Reject)
}

func (h *BountyHandler) ListForPartner(c echo.Context, req *model.ProgramRef) ([]model.Bounty, error) {
	return asPartner(c, req, func(ctx context.Context, partner *model.Partner, req *model.ProgramRef) ([]model.Bounty, error) {
		return h.bounties.ListForPartner(ctx, partner, req.ProgramID)
	})
}

func (h *BountyHandler) Submit(c echo.Context, req *model.SubmitBountyRequest) (*model.BountySubmission, error) {
	return asPartner(c, req, h.bounties.Submit)
}
