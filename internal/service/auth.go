package service

import (
	"context"

	"github.com/clerk/clerk-sdk-go/v2"

	"github.com/deppfellow/partners/internal/errs"
	"github.com/deppfellow/partners/internal/model"
)

// AuthService turns verified Clerk sessions into callers the other services
// understand.
type AuthService struct {
	partners *PartnerService
}

// NewAuthService sets the Clerk secret used to verify session tokens.
func NewAuthService(secretKey string, partners *PartnerService) *AuthService {
	clerk.SetKey(secretKey)
	return &AuthService{partners: partners}
}

var errNoWorkspace = errs.NewForbiddenError("Select a workspace to continue", true)

// Actor maps the session's active organization onto a workspace member.
func (s *AuthService) Actor(claims *clerk.SessionClaims) (model.Actor, error) {
	if claims == nil || claims.Subject == "" {
		return model.Actor{}, errs.NewUnauthorizedError("Unauthorized", false)
	}
	if claims.ActiveOrganizationID == "" {
		return model.Actor{}, errNoWorkspace
	}

	return model.Actor{
		UserID:      claims.Subject,
		WorkspaceID: claims.ActiveOrganizationID,
		Role:        model.RoleFromClerk(claims.ActiveOrganizationRole),
	}, nil
}

// Partner returns the partner profile owned by the session's user.
func (s *AuthService) Partner(ctx context.Context, claims *clerk.SessionClaims) (*model.Partner, error) {
	if claims == nil || claims.Subject == "" {
		return nil, errs.NewUnauthorizedError("Unauthorized", false)
	}
	return s.partners.Resolve(ctx, claims.Subject)
}
