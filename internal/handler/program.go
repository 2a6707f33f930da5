package handler

import (
	"context"

	"github.com/labstack/echo/v4"

	"github.com/deppfellow/partners/internal/model"
	"github.com/deppfellow/partners/internal/server"
	"github.com/deppfellow/partners/internal/service"
)

type ProgramHandler struct {
	Handler
	programs *service.ProgramService
	rewards  *service.RewardService
}

func NewProgramHandler(s *server.Server, programs *service.ProgramService, rewards *service.RewardService) *ProgramHandler {
	return &ProgramHandler{Handler: NewHandler(s), programs: programs, rewards: rewards}
}

func (h *ProgramHandler) List(c echo.Context, req *model.Empty) ([]model.Program, error) {
	return withActor(c, req, func(ctx context.Context, actor model.Actor, _ *model.Empty) ([]model.Program, error) {
		return h.programs.List(ctx, actor)
	})
}

func (h *ProgramHandler) Create(c echo.Context, req *model.CreateProgramRequest) (*model.Program, error) {
	return withActor(c, req, h.programs.Create)
}

func (h *ProgramHandler) Get(c echo.Context, req *model.ProgramRef) (*model.Program, error) {
	return withActor(c, req, func(ctx context.Context, actor model.Actor, req *model.ProgramRef) (*model.Program, error) {
		return h.programs.Scoped(ctx, actor, req.ProgramID)
	})
}

func (h *ProgramHandler) Update(c echo.Context, req *model.UpdateProgramRequest) (*model.Program, error) {
	return withActor(c, req, h.programs.Update)
}

func (h *ProgramHandler) ListRewards(c echo.Context, req *model.ProgramRef) ([]model.Reward, error) {
	return withActor(c, req, func(ctx context.Context, actor model.Actor, req *model.ProgramRef) ([]model.Reward, error) {
		return h.rewards.ListRewards(ctx, actor, req.ProgramID)
	})
}

func (h *ProgramHandler) CreateReward(c echo.Context, req *model.CreateRewardRequest) (*model.Reward, error) {
	return withActor(c, req, h.rewards.CreateReward)
}

func (h *ProgramHandler) UpdateReward(c echo.Context, req *model.UpdateRewardRequest) (*model.Reward, error) {
	return withActor(c, req, h.rewards.UpdateReward)
}

func (h *ProgramHandler) DeleteReward(c echo.Context, req *model.RewardRef) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	return h.rewards.DeleteReward(c.Request().Context(), actor, req)
}

func (h *ProgramHandler) ListDiscounts(c echo.Context, req *model.ProgramRef) ([]model.Discount, error) {
	return withActor(c, req, func(ctx context.Context, actor model.Actor, req *model.ProgramRef) ([]model.Discount, error) {
		return h.rewards.ListDiscounts(ctx, actor, req.ProgramID)
	})
}

func (h *ProgramHandler) CreateDiscount(c echo.Context, req *model.CreateDiscountRequest) (*model.Discount, error) {
	return withActor(c, req, h.rewards.CreateDiscount)
}

func (h *ProgramHandler) UpdateDiscount(c echo.Context, req *model.UpdateDiscountRequest) (*model.Discount, error) {
	return withActor(c, req, h.rewards.UpdateDiscount)
}

func (h *ProgramHandler) DeleteDiscount(c echo.Context, req *model.DiscountRef) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	return h.rewards.DeleteDiscount(c.Request().Context(), actor, req)
}
