package shared

import "context"

// Role names known to the permission checks.
const (
	RoleAdmin     = "ADMIN"
	RoleAttendant = "ATENDENTE"
	RoleKitchen   = "COZINHA"
)

// Actor identifies the authenticated user for audit and permission checks.
type Actor struct {
	UserID   int64
	Username string
	Role     string
}

// IsAdmin reports whether the actor carries the ADMIN role.
func (a Actor) IsAdmin() bool { return a.Role == RoleAdmin }

// CanOperateOrders reports whether the actor may create or cancel orders.
func (a Actor) CanOperateOrders() bool {
	return a.Role == RoleAdmin || a.Role == RoleAttendant
}

type actorContextKey struct{}

// ContextWithActor stores the actor in context.
func ContextWithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

// ActorFromContext extracts the actor from context.
func ActorFromContext(ctx context.Context) (Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(Actor)
	return actor, ok
}
