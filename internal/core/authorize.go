package core

import "context"

// Roles known to the default authorizer.
const (
	RoleSuperAdmin  = "super_admin"
	RoleAdmin       = "admin"
	RoleGridManager = "grid_manager"
	RoleUser        = "user"
)

// Authorizer decides whether an actor may perform an operation on a family.
// The engine is never invoked for a denied request.
type Authorizer interface {
	MayPerform(ctx context.Context, actor Actor, family string, op Operation) bool
}

// AuthorizerFunc adapts a function to Authorizer.
type AuthorizerFunc func(ctx context.Context, actor Actor, family string, op Operation) bool

// MayPerform implements Authorizer.
func (f AuthorizerFunc) MayPerform(ctx context.Context, actor Actor, family string, op Operation) bool {
	return f(ctx, actor, family, op)
}

// gridManagerFamilies are the families a grid manager may work with.
var gridManagerFamilies = map[string]bool{
	"grids":                   true,
	"volunteer_registrations": true,
	"supply_donations":        true,
}

// RoleAuthorizer grants super_admin and admin everything and grid_manager
// the grid-related families. Everyone else is denied.
type RoleAuthorizer struct{}

// MayPerform implements Authorizer.
func (RoleAuthorizer) MayPerform(_ context.Context, actor Actor, family string, _ Operation) bool {
	switch actor.Role {
	case RoleSuperAdmin, RoleAdmin:
		return true
	case RoleGridManager:
		return gridManagerFamilies[family]
	default:
		return false
	}
}
