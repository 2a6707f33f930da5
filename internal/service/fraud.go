package service

import (
	"context"
	"encoding/json"
	"net/url"
	"strings"

	"github.com/rs/zerolog"

	"github.com/deppfellow/partners/internal/errs"
	"github.com/deppfellow/partners/internal/logger"
	"github.com/deppfellow/partners/internal/model"
)

var disposableEmailDomains = map[string]struct{}{
	"mailinator.com":     {},
	"guerrillamail.com":  {},
	"10minutemail.com":   {},
	"tempmail.com":       {},
	"temp-mail.org":      {},
	"yopmail.com":        {},
	"trashmail.com":      {},
	"sharklasers.com":    {},
	"getnada.com":        {},
	"dispostable.com":    {},
	"maildrop.cc":        {},
	"throwawaymail.com":  {},
	"fakeinbox.com":      {},
	"mailnesia.com":      {},
	"emailondeck.com":    {},
	"mohmal.com":         {},
	"burnermail.io":      {},
	"spamgourmet.com":    {},
	"mintemail.com":      {},
	"discard.email":      {},
	"moakt.com":          {},
	"tempr.email":        {},
	"mytemp.email":       {},
	"inboxkitten.com":    {},
	"guerrillamail.info": {},
}

// Click ids appended by ad networks.
var paidTrafficParams = []string{"gclid", "fbclid", "msclkid", "ttclid"}

// Conversion is what fraud rules look at when an event is tracked.
type Conversion struct {
	PartnerEmail  string
	CustomerEmail *string
	Referer       *string
	ClickURL      *string
}

// DetectFraud runs the conversion rules of program against c and returns
// every rule that fired.
func DetectFraud(program *model.Program, c Conversion) []model.FraudSignal {
	var signals []model.FraudSignal

	if c.CustomerEmail != nil && *c.CustomerEmail != "" {
		customer := strings.ToLower(strings.TrimSpace(*c.CustomerEmail))

		if strings.EqualFold(customer, strings.TrimSpace(c.PartnerEmail)) {
			signals = append(signals, model.FraudSignal{
				Type:     model.FraudCustomerEmailMatch,
				Metadata: map[string]any{"email": customer},
			})
		}

		if domain := emailDomain(customer); domain != "" {
			if _, ok := disposableEmailDomains[domain]; ok {
				signals = append(signals, model.FraudSignal{
					Type:     model.FraudCustomerEmailSuspicious,
					Metadata: map[string]any{"domain": domain},
				})
			}
		}
	}

	if c.Referer != nil {
		if host := hostOf(*c.Referer); program.IsReferralSourceBanned(host) {
			signals = append(signals, model.FraudSignal{
				Type:     model.FraudReferralSourceBanned,
				Metadata: map[string]any{"referer": host},
			})
		}
	}

	if c.ClickURL != nil {
		if u, err := url.Parse(*c.ClickURL); err == nil {
			q := u.Query()
			for _, p := range paidTrafficParams {
				if q.Has(p) {
					signals = append(signals, model.FraudSignal{
						Type:     model.FraudPaidTrafficDetected,
						Metadata: map[string]any{"param": p, "url": *c.ClickURL},
					})
					break
				}
			}
		}
	}

	return signals
}

func emailDomain(email string) string {
	at := strings.LastIndexByte(email, '@')
	if at < 0 || at == len(email)-1 {
		return ""
	}
	return email[at+1:]
}

// hostOf accepts full URLs and bare hosts.
func hostOf(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return u.Hostname()
}

type FraudService struct {
	programs *ProgramService
	store    FraudStore
	tx       Transactor
	effects  *effects
	logger   *zerolog.Logger
}

func NewFraudService(programs *ProgramService, store FraudStore, tx Transactor, fx *effects, logger *zerolog.Logger) *FraudService {
	return &FraudService{programs: programs, store: store, tx: tx, effects: fx, logger: logger}
}

// Record appends one event to the partner's pending group for the signal
// type, opening the group when there is none.
func (s *FraudService) Record(ctx context.Context, programID, partnerID string, sig model.FraudSignal, commissionID, customerID *string) error {
	metadata := []byte(`{}`)
	if sig.Metadata != nil {
		b, err := json.Marshal(sig.Metadata)
		if err != nil {
			return err
		}
		metadata = b
	}

	return s.tx.WithTx(ctx, func(ctx context.Context) error {
		group, err := s.store.UpsertGroup(ctx, programID, partnerID, sig.Type)
		if err != nil {
			return err
		}
		_, err = s.store.CreateEvent(ctx, &model.FraudEvent{
			ID:           model.NewID(model.PrefixFraudEvent),
			GroupID:      group.ID,
			CommissionID: commissionID,
			CustomerID:   customerID,
			Metadata:     metadata,
		})
		return err
	})
}

// RecordAll records every signal and logs the ones that could not be
// stored.
func (s *FraudService) RecordAll(ctx context.Context, programID, partnerID string, signals []model.FraudSignal, commissionID, customerID *string) {
	for _, sig := range signals {
		if err := s.Record(ctx, programID, partnerID, sig, commissionID, customerID); err != nil {
			logger.FromContext(ctx, s.logger).Error().Err(err).
				Str("program_id", programID).
				Str("partner_id", partnerID).
				Str("type", string(sig.Type)).
				Msg("failed to record fraud event")
		}
	}
}

func (s *FraudService) ListGroups(ctx context.Context, actor model.Actor, req *model.ListFraudGroupsRequest) (*model.PaginatedResponse[model.FraudEventGroup], error) {
	if _, err := s.programs.Scoped(ctx, actor, req.ProgramID); err != nil {
		return nil, err
	}

	groups, total, err := s.store.ListGroups(ctx, req.Filter())
	if err != nil {
		return nil, err
	}
	return model.NewPaginatedResponse(groups, req.Pagination, total), nil
}

func (s *FraudService) GetGroup(ctx context.Context, actor model.Actor, req *model.FraudGroupRef) (*model.FraudGroupWithEvents, error) {
	if _, err := s.programs.Scoped(ctx, actor, req.ProgramID); err != nil {
		return nil, err
	}

	group, err := s.store.GetGroup(ctx, req.ProgramID, req.GroupID)
	if err != nil {
		return nil, err
	}
	events, err := s.store.ListEvents(ctx, group.ID)
	if err != nil {
		return nil, err
	}
	if events == nil {
		events = []model.FraudEvent{}
	}
	return &model.FraudGroupWithEvents{FraudEventGroup: *group, Events: events}, nil
}

func (s *FraudService) Resolve(ctx context.Context, actor model.Actor, req *model.ResolveFraudGroupRequest) (*model.FraudEventGroup, error) {
	if _, err := s.programs.Scoped(ctx, actor, req.ProgramID); err != nil {
		return nil, err
	}

	group, err := s.store.GetGroup(ctx, req.ProgramID, req.GroupID)
	if err != nil {
		return nil, err
	}
	if group.Status == model.FraudGroupResolved {
		return nil, errs.NewConflictError("Fraud event group is already resolved", errs.Code("FRAUD_GROUP_ALREADY_RESOLVED"))
	}

	n, err := s.store.ResolveGroups(ctx, req.ProgramID, []string{group.ID}, req.Reason, actor.UserID)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, errs.NewConflictError("Fraud event group is already resolved", errs.Code("FRAUD_GROUP_ALREADY_RESOLVED"))
	}

	resolved, err := s.store.GetGroup(ctx, req.ProgramID, group.ID)
	if err != nil {
		return nil, err
	}

	s.effects.record(ctx, AuditEntry{
		Actor: actor, ProgramID: req.ProgramID, Action: "fraud_group.resolved",
		TargetType: "fraud_event_group", TargetID: group.ID,
		Metadata: map[string]any{"reason": req.Reason},
	})
	return resolved, nil
}

// BulkResolve resolves the pending groups among req.GroupIDs; ids that are
// unknown or already resolved are ignored.
func (s *FraudService) BulkResolve(ctx context.Context, actor model.Actor, req *model.BulkResolveFraudGroupsRequest) (*model.ResolvedCountResponse, error) {
	if _, err := s.programs.Scoped(ctx, actor, req.ProgramID); err != nil {
		return nil, err
	}

	n, err := s.store.ResolveGroups(ctx, req.ProgramID, req.GroupIDs, req.Reason, actor.UserID)
	if err != nil {
		return nil, err
	}

	s.effects.record(ctx, AuditEntry{
		Actor: actor, ProgramID: req.ProgramID, Action: "fraud_group.bulk_resolved",
		TargetType: "program", TargetID: req.ProgramID,
		Metadata: map[string]any{"groupIds": req.GroupIDs, "resolved": n},
	})
	return &model.ResolvedCountResponse{Count: n}, nil
}
