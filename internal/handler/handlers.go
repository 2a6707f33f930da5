package handler

import (
	"github.com/deppfellow/partners/internal/server"
	"github.com/deppfellow/partners/internal/service"
)

// Handlers groups every HTTP handler for the router.
type Handlers struct {
	Health      *HealthHandler
	Docs        *DocsHandler
	Programs    *ProgramHandler
	Partners    *PartnerHandler
	Commissions *CommissionHandler
	Payouts     *PayoutHandler
	Fraud       *FraudHandler
	Bounties    *BountyHandler
	Messages    *MessageHandler
	Workspace   *WorkspaceHandler
}

func NewHandlers(s *server.Server, services *service.Services) *Handlers {
	return &Handlers{
		Health:      NewHealthHandler(s),
		Docs:        NewDocsHandler(s),
		Programs:    NewProgramHandler(s, services.Programs, services.Rewards),
		Partners:    NewPartnerHandler(s, services.Partners),
		Commissions: NewCommissionHandler(s, services.Commissions),
		Payouts:     NewPayoutHandler(s, services.Payouts),
		Fraud:       NewFraudHandler(s, services.Fraud, services.Partners),
		Bounties:    NewBountyHandler(s, services.Bounties),
		Messages:    NewMessageHandler(s, services.Messages),
		Workspace:   NewWorkspaceHandler(s, services.Webhooks, services.Audit),
	}
}
