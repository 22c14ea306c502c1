package core

import (
	"context"
	"fmt"
)

// Actor is the authenticated caller of a mutation.
type Actor struct {
	ID       string
	Username string
	Role     string
}

const (
	RoleAdmin      = "admin"
	RoleAccounting = "accounting"
	RoleOperations = "operations"
	RoleViewer     = "viewer"
)

type actorKey struct{}

// WithActor returns a copy of ctx carrying the authenticated actor.
func WithActor(ctx context.Context, a Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, a)
}

// ActorFromContext returns the actor stored in ctx.
func ActorFromContext(ctx context.Context) (Actor, bool) {
	a, ok := ctx.Value(actorKey{}).(Actor)
	return a, ok && a.ID != ""
}

// requireActor fails with ErrNotAuthenticated before any read happens.
func requireActor(ctx context.Context) (Actor, error) {
	a, ok := ActorFromContext(ctx)
	if !ok {
		return Actor{}, ErrNotAuthenticated
	}
	return a, nil
}

// requireRole additionally checks that the actor holds one of roles.
func requireRole(ctx context.Context, roles ...string) (Actor, error) {
	a, err := requireActor(ctx)
	if err != nil {
		return Actor{}, err
	}
	for _, r := range roles {
		if a.Role == r {
			return a, nil
		}
	}
	return Actor{}, fmt.Errorf("role %q may not perform this action: %w", a.Role, ErrForbidden)
}
