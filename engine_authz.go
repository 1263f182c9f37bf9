package gatekeeper

import (
	"context"
	"errors"

	"github.com/MrEthical07/gatekeeper/permission"
	"github.com/MrEthical07/gatekeeper/store"
)

// Grants loads a point-in-time snapshot of everything id holds. Use it to
// run several checks against one store read. A store failure returns
// ErrCheckFailed.
func (e *Engine) Grants(ctx context.Context, id *Identity) (permission.Grants, error) {
	if !e.ready() {
		return permission.Grants{}, ErrEngineNotReady
	}
	if id == nil {
		return permission.Grants{}, ErrAuthenticationRequired
	}
	user := id.record
	if user == nil {
		var err error
		if user, err = e.store.GetUser(ctx, id.UserID); err != nil {
			err = storeError(err)
			if errors.Is(err, ErrCheckFailed) {
				e.metricInc(MetricCheckFailed)
			}
			return permission.Grants{}, err
		}
	}
	g, err := permission.LoadGrants(ctx, e.store, user)
	if err != nil {
		e.metricInc(MetricCheckFailed)
		return permission.Grants{}, checkFailed(err)
	}
	return g, nil
}

func (e *Engine) check(ctx context.Context, id *Identity, decide func(permission.Grants) bool) (bool, error) {
	g, err := e.Grants(ctx, id)
	if err != nil {
		return false, err
	}
	e.metricInc(MetricPermissionCheck)
	ok := decide(g)
	if !ok {
		e.metricInc(MetricPermissionDenied)
	}
	return ok, nil
}

// HasPermission reports whether id holds the named permission directly or
// through an active role.
func (e *Engine) HasPermission(ctx context.Context, id *Identity, name string) (bool, error) {
	return e.check(ctx, id, func(g permission.Grants) bool { return g.HasPermission(name) })
}

// HasPermissionTo reports whether id holds (resource, action) or
// (resource, manage).
func (e *Engine) HasPermissionTo(ctx context.Context, id *Identity, resource string, action store.Action) (bool, error) {
	return e.check(ctx, id, func(g permission.Grants) bool { return g.HasPermissionTo(resource, action) })
}

func (e *Engine) HasAnyPermission(ctx context.Context, id *Identity, names ...string) (bool, error) {
	return e.check(ctx, id, func(g permission.Grants) bool { return g.HasAnyPermission(names...) })
}

func (e *Engine) HasAllPermissions(ctx context.Context, id *Identity, names ...string) (bool, error) {
	return e.check(ctx, id, func(g permission.Grants) bool { return g.HasAllPermissions(names...) })
}

func (e *Engine) HasRole(ctx context.Context, id *Identity, name string) (bool, error) {
	return e.check(ctx, id, func(g permission.Grants) bool { return g.HasRole(name) })
}

func (e *Engine) HasAnyRole(ctx context.Context, id *Identity, names ...string) (bool, error) {
	return e.check(ctx, id, func(g permission.Grants) bool { return g.HasAnyRole(names...) })
}

func (e *Engine) HasAllRoles(ctx context.Context, id *Identity, names ...string) (bool, error) {
	return e.check(ctx, id, func(g permission.Grants) bool { return g.HasAllRoles(names...) })
}

// AllPermissions returns the union of direct and role permissions,
// deduplicated by id.
func (e *Engine) AllPermissions(ctx context.Context, id *Identity) ([]*store.Permission, error) {
	g, err := e.Grants(ctx, id)
	if err != nil {
		return nil, err
	}
	return g.All(), nil
}
