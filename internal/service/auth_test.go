package service

import (
	"net/http"
	"testing"

	"github.com/clerk/clerk-sdk-go/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deppfellow/partners/internal/model"
)

func TestActorFromClaims(t *testing.T) {
	svc := &AuthService{}

	_, err := svc.Actor(nil)
	requireHTTPError(t, err, http.StatusUnauthorized, "")

	claims := &clerk.SessionClaims{}
	claims.Subject = "user_1"
	_, err = svc.Actor(claims)
	requireHTTPError(t, err, http.StatusForbidden, "")

	claims.ActiveOrganizationID = "org_1"
	claims.ActiveOrganizationRole = "org:admin"
	actor, err := svc.Actor(claims)
	require.NoError(t, err)
	assert.Equal(t, model.Actor{UserID: "user_1", WorkspaceID: "org_1", Role: model.RoleOwner}, actor)

	claims.ActiveOrganizationRole = "org:member"
	actor, err = svc.Actor(claims)
	require.NoError(t, err)
	assert.Equal(t, model.RoleMember, actor.Role)
}
