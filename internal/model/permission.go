package model

import "slices"

type Role string

const (
	RoleOwner   Role = "owner"
	RoleMember  Role = "member"
	RoleBilling Role = "billing"
)

// RoleFromClerk maps a Clerk organization role onto a workspace role.
func RoleFromClerk(orgRole string) Role {
	switch orgRole {
	case "org:admin", string(RoleOwner):
		return RoleOwner
	case "org:billing", string(RoleBilling):
		return RoleBilling
	default:
		return RoleMember
	}
}

type Permission string

const (
	PermProgramsRead     Permission = "programs.read"
	PermProgramsWrite    Permission = "programs.write"
	PermPartnersRead     Permission = "partners.read"
	PermPartnersWrite    Permission = "partners.write"
	PermCommissionsRead  Permission = "commissions.read"
	PermCommissionsWrite Permission = "commissions.write"
	PermPayoutsRead      Permission = "payouts.read"
	PermPayoutsWrite     Permission = "payouts.write"
	PermMessagesRead     Permission = "messages.read"
	PermMessagesWrite    Permission = "messages.write"
	PermFraudRead        Permission = "fraud.read"
	PermFraudWrite       Permission = "fraud.write"
	PermBountiesWrite    Permission = "bounties.write"
	PermWebhooksWrite    Permission = "webhooks.write"
)

var (
	allRoles     = []Role{RoleOwner, RoleMember, RoleBilling}
	editorRoles  = []Role{RoleOwner, RoleMember}
	billingRoles = []Role{RoleOwner, RoleBilling}
	ownerRoles   = []Role{RoleOwner}
)

// rolePermissions is the static table every permission check consults.
var rolePermissions = map[Permission][]Role{
	PermProgramsRead:     allRoles,
	PermPartnersRead:     allRoles,
	PermCommissionsRead:  allRoles,
	PermPayoutsRead:      allRoles,
	PermMessagesRead:     allRoles,
	PermFraudRead:        allRoles,
	PermProgramsWrite:    editorRoles,
	PermPartnersWrite:    editorRoles,
	PermCommissionsWrite: editorRoles,
	PermMessagesWrite:    editorRoles,
	PermFraudWrite:       editorRoles,
	PermBountiesWrite:    editorRoles,
	PermPayoutsWrite:     billingRoles,
	PermWebhooksWrite:    ownerRoles,
}

// HasPermission reports whether role is listed for permission. Unknown
// permissions are denied.
func HasPermission(role Role, permission Permission) bool {
	return slices.Contains(rolePermissions[permission], role)
}

// Actor is the authenticated caller on the program (dashboard) side.
type Actor struct {
	UserID      string
	WorkspaceID string
	Role        Role
}
