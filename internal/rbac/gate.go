package rbac

import (
	"context"
	"fmt"

	"github.com/odyssey-erp/odyssey-admin/internal/platform/httpx"
)

var (
	// ErrUnauthenticated is returned when the session user no longer exists.
	ErrUnauthenticated = fmt.Errorf("rbac: %w", httpx.ErrUnauthorized)
	// ErrForbidden is returned when an action is not granted.
	ErrForbidden = fmt.Errorf("rbac: %w", httpx.ErrForbidden)
)

// ActorStore loads the data needed to build an Actor.
type ActorStore interface {
	UserExists(ctx context.Context, userID int64) (bool, error)
	EffectivePermissions(ctx context.Context, userID int64) ([]string, error)
}

// Gate resolves actors for authenticated requests.
type Gate struct {
	store ActorStore
}

// NewGate constructs a Gate.
func NewGate(store ActorStore) *Gate {
	return &Gate{store: store}
}

// Actor loads the user's effective permissions.
func (g *Gate) Actor(ctx context.Context, userID int64) (Actor, error) {
	exists, err := g.store.UserExists(ctx, userID)
	if err != nil {
		return Actor{}, err
	}
	if !exists {
		return Actor{}, ErrUnauthenticated
	}
	perms, err := g.store.EffectivePermissions(ctx, userID)
	if err != nil {
		return Actor{}, err
	}
	return NewActor(userID, perms), nil
}

// Authorize returns ErrForbidden unless caps allows the action.
func Authorize(caps Capabilities, a Action) error {
	if caps.Allows(a) {
		return nil
	}
	return ErrForbidden
}
