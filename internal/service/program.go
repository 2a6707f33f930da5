package service

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/deppfellow/partners/internal/config"
	"github.com/deppfellow/partners/internal/errs"
	"github.com/deppfellow/partners/internal/logger"
	"github.com/deppfellow/partners/internal/model"
)

type ProgramService struct {
	store     ProgramStore
	discounts DiscountStore
	cache     ProgramCache
	cfg       *config.PayoutsConfig
	effects   *effects
	logger    *zerolog.Logger
}

func NewProgramService(store ProgramStore, discounts DiscountStore, cache ProgramCache, cfg *config.PayoutsConfig, fx *effects, logger *zerolog.Logger) *ProgramService {
	return &ProgramService{store: store, discounts: discounts, cache: cache, cfg: cfg, effects: fx, logger: logger}
}

func (s *ProgramService) Create(ctx context.Context, actor model.Actor, req *model.CreateProgramRequest) (*model.Program, error) {
	p := &model.Program{
		ID:                  model.NewID(model.PrefixProgram),
		WorkspaceID:         actor.WorkspaceID,
		Name:                req.Name,
		Slug:                req.Slug,
		Domain:              req.Domain,
		URL:                 req.URL,
		HoldingPeriodDays:   s.cfg.DefaultHoldingPeriodDays,
		MinPayoutAmount:     s.cfg.DefaultMinPayoutAmount,
		AutoApprovePartners: req.AutoApprovePartners,
		MessagingEnabled:    true,
		SupportEmail:        req.SupportEmail,
	}
	if req.HoldingPeriodDays != nil {
		p.HoldingPeriodDays = *req.HoldingPeriodDays
	}
	if req.MinPayoutAmount != nil {
		p.MinPayoutAmount = *req.MinPayoutAmount
	}

	created, err := s.store.Create(ctx, p)
	if err != nil {
		return nil, err
	}

	s.effects.record(ctx, AuditEntry{
		Actor: actor, ProgramID: created.ID, Action: "program.created",
		TargetType: "program", TargetID: created.ID,
	})
	return created, nil
}

// load reads a program through the cache.
func (s *ProgramService) load(ctx context.Context, id string) (*model.Program, error) {
	log := logger.FromContext(ctx, s.logger)

	if p, err := s.cache.GetByID(ctx, id); err != nil {
		log.Warn().Err(err).Str("program_id", id).Msg("program cache read failed")
	} else if p != nil {
		return p, nil
	}

	p, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.cache.Set(ctx, p); err != nil {
		log.Warn().Err(err).Str("program_id", id).Msg("program cache write failed")
	}
	return p, nil
}

// Scoped returns the program when it belongs to the caller's workspace.
// Programs of other workspaces are reported as missing.
func (s *ProgramService) Scoped(ctx context.Context, actor model.Actor, programID string) (*model.Program, error) {
	p, err := s.load(ctx, programID)
	if err != nil {
		return nil, err
	}
	if p.WorkspaceID != actor.WorkspaceID {
		return nil, errs.NewNotFoundError("Program not found", true, nil)
	}
	return p, nil
}

// ByID loads a program without workspace scoping, for jobs and the
// partner side.
func (s *ProgramService) ByID(ctx context.Context, programID string) (*model.Program, error) {
	return s.load(ctx, programID)
}

func (s *ProgramService) BySlug(ctx context.Context, slug string) (*model.Program, error) {
	if p, err := s.cache.GetBySlug(ctx, slug); err == nil && p != nil {
		return p, nil
	}

	p, err := s.store.GetBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	if err := s.cache.Set(ctx, p); err != nil {
		logger.FromContext(ctx, s.logger).Warn().Err(err).Str("slug", slug).Msg("program cache write failed")
	}
	return p, nil
}

func (s *ProgramService) List(ctx context.Context, actor model.Actor) ([]model.Program, error) {
	return s.store.ListByWorkspace(ctx, actor.WorkspaceID)
}

func (s *ProgramService) ListIDs(ctx context.Context) ([]string, error) {
	return s.store.ListIDs(ctx)
}

func (s *ProgramService) Update(ctx context.Context, actor model.Actor, req *model.UpdateProgramRequest) (*model.Program, error) {
	p, err := s.Scoped(ctx, actor, req.ProgramID)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		p.Name = *req.Name
	}
	if req.Domain != nil {
		p.Domain = req.Domain
	}
	if req.URL != nil {
		p.URL = req.URL
	}
	if req.HoldingPeriodDays != nil {
		p.HoldingPeriodDays = *req.HoldingPeriodDays
	}
	if req.MinPayoutAmount != nil {
		p.MinPayoutAmount = *req.MinPayoutAmount
	}
	if req.AutoApprovePartners != nil {
		p.AutoApprovePartners = *req.AutoApprovePartners
	}
	if req.MessagingEnabled != nil {
		p.MessagingEnabled = *req.MessagingEnabled
	}
	if req.BannedReferralSources != nil {
		p.BannedReferralSources = *req.BannedReferralSources
	}
	if req.DefaultDiscountID != nil {
		p.DefaultDiscountID = nil
		if id := *req.DefaultDiscountID; id != "" {
			d, err := s.discounts.GetByID(ctx, p.ID, id)
			if err != nil {
				return nil, err
			}
			p.DefaultDiscountID = &d.ID
		}
	}
	if req.SupportEmail != nil {
		p.SupportEmail = req.SupportEmail
	}

	updated, err := s.save(ctx, p)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, updated)

	s.effects.record(ctx, AuditEntry{
		Actor: actor, ProgramID: updated.ID, Action: "program.updated",
		TargetType: "program", TargetID: updated.ID,
	})
	return updated, nil
}

// save writes p. Inside a transaction the caller invalidates the cache
// once the transaction committed.
func (s *ProgramService) save(ctx context.Context, p *model.Program) (*model.Program, error) {
	return s.store.Update(ctx, p)
}

// invalidate drops the cached copies of p.
func (s *ProgramService) invalidate(ctx context.Context, p *model.Program) {
	if err := s.cache.Invalidate(ctx, p); err != nil {
		logger.FromContext(ctx, s.logger).Warn().Err(err).Str("program_id", p.ID).Msg("program cache invalidation failed")
	}
}
