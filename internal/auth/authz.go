package auth

import (
	"context"
	"slices"

	"github.com/wolfeidau/pcfhub/internal/apperr"
)

// Roles carried in access tokens.
const (
	RoleOperator = "operator" // people and tools acting for an organization
	RolePartner  = "partner"  // remote nodes holding credentials we issued
)

// Permission represents an authorized action
type Permission string

const (
	PermCatalogRead     Permission = "catalog:read"
	PermEventsReceive   Permission = "events:receive"
	PermTasksManage     Permission = "tasks:manage"
	PermFootprintsWrite Permission = "footprints:write"
	PermEventsSend      Permission = "events:send"
	PermContracts       Permission = "contracts:manage"
	PermDataSources     Permission = "datasources:manage"
)

// RolePermissions maps roles to allowed permissions
var RolePermissions = map[string][]Permission{
	RoleOperator: {
		PermCatalogRead,
		PermTasksManage,
		PermFootprintsWrite,
		PermEventsSend,
		PermContracts,
		PermDataSources,
	},
	RolePartner: {
		PermCatalogRead,
		PermEventsReceive,
	},
}

// HasPermission reports whether any of roles grants perm.
func HasPermission(roles []string, perm Permission) bool {
	for _, role := range roles {
		if slices.Contains(RolePermissions[role], perm) {
			return true
		}
	}
	return false
}

// RequirePermission checks the identity in ctx for perm.
func RequirePermission(ctx context.Context, perm Permission) (*Identity, error) {
	id := IdentityFromContext(ctx)
	if id == nil {
		return nil, apperr.Authorization("not authenticated")
	}
	if !HasPermission(id.Roles, perm) {
		return nil, apperr.Authorization("permission denied: %s required", perm)
	}
	return id, nil
}
