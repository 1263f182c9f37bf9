// Package cached decorates a store.Store with a bounded, expiring read-through
// cache for roles and permissions, the two entities read on every
// authorization check.
//
// Users are never cached: the session dual check must see the durable
// session set as it is now. Writes made through this decorator invalidate
// the affected entries immediately; writes made by other processes become
// visible once the entry TTL lapses.
package cached

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/MrEthical07/gatekeeper/store"
)

// Config bounds the cache.
type Config struct {
	Size int
	TTL  time.Duration
}

// DefaultConfig returns a small cache with a short TTL.
func DefaultConfig() Config {
	return Config{Size: 1024, TTL: 30 * time.Second}
}

// Stats are cumulative hit and miss counts.
type Stats struct {
	Hits   uint64
	Misses uint64
}

// Store wraps an inner store.Store. Methods not overridden here pass through.
type Store struct {
	store.Store

	roles       *expirable.LRU[string, *store.Role]
	permissions *expirable.LRU[string, *store.Permission]

	hits   atomic.Uint64
	misses atomic.Uint64
}

var _ store.Store = (*Store)(nil)

// New wraps inner. Zero fields in cfg take DefaultConfig values.
func New(inner store.Store, cfg Config) *Store {
	def := DefaultConfig()
	if cfg.Size <= 0 {
		cfg.Size = def.Size
	}
	if cfg.TTL <= 0 {
		cfg.TTL = def.TTL
	}
	return &Store{
		Store:       inner,
		roles:       expirable.NewLRU[string, *store.Role](cfg.Size, nil, cfg.TTL),
		permissions: expirable.NewLRU[string, *store.Permission](cfg.Size, nil, cfg.TTL),
	}
}

// Stats returns cumulative hit and miss counts.
func (s *Store) Stats() Stats {
	return Stats{Hits: s.hits.Load(), Misses: s.misses.Load()}
}

/* ==== READS ==== */

func (s *Store) GetPermission(ctx context.Context, id string) (*store.Permission, error) {
	if p, ok := s.permissions.Get(id); ok {
		s.hits.Add(1)
		return p.Clone(), nil
	}
	s.misses.Add(1)
	p, err := s.Store.GetPermission(ctx, id)
	if err != nil {
		return nil, err
	}
	s.permissions.Add(id, p.Clone())
	return p, nil
}

func (s *Store) PermissionsByIDs(ctx context.Context, ids []string) ([]*store.Permission, error) {
	found := make(map[string]*store.Permission, len(ids))
	var missing []string
	for _, id := range ids {
		if p, ok := s.permissions.Get(id); ok {
			s.hits.Add(1)
			found[id] = p.Clone()
			continue
		}
		s.misses.Add(1)
		missing = append(missing, id)
	}
	if len(missing) > 0 {
		loaded, err := s.Store.PermissionsByIDs(ctx, missing)
		if err != nil {
			return nil, err
		}
		for _, p := range loaded {
			s.permissions.Add(p.ID, p.Clone())
			found[p.ID] = p
		}
	}

	out := make([]*store.Permission, 0, len(found))
	for _, id := range ids {
		if p, ok := found[id]; ok {
			out = append(out, p)
			delete(found, id)
		}
	}
	return out, nil
}

func (s *Store) GetRole(ctx context.Context, id string) (*store.Role, error) {
	if r, ok := s.roles.Get(id); ok {
		s.hits.Add(1)
		return r.Clone(), nil
	}
	s.misses.Add(1)
	r, err := s.Store.GetRole(ctx, id)
	if err != nil {
		return nil, err
	}
	s.roles.Add(id, r.Clone())
	return r, nil
}

func (s *Store) RolesByIDs(ctx context.Context, ids []string) ([]*store.Role, error) {
	found := make(map[string]*store.Role, len(ids))
	var missing []string
	for _, id := range ids {
		if r, ok := s.roles.Get(id); ok {
			s.hits.Add(1)
			found[id] = r.Clone()
			continue
		}
		s.misses.Add(1)
		missing = append(missing, id)
	}
	if len(missing) > 0 {
		loaded, err := s.Store.RolesByIDs(ctx, missing)
		if err != nil {
			return nil, err
		}
		for _, r := range loaded {
			s.roles.Add(r.ID, r.Clone())
			found[r.ID] = r
		}
	}

	out := make([]*store.Role, 0, len(found))
	for _, id := range ids {
		if r, ok := found[id]; ok {
			out = append(out, r)
			delete(found, id)
		}
	}
	return out, nil
}

/* ==== WRITES ==== */

func (s *Store) UpdatePermission(ctx context.Context, p *store.Permission) error {
	defer s.permissions.Remove(p.ID)
	return s.Store.UpdatePermission(ctx, p)
}

// DeletePermission also drops every cached role, since the delete cascades
// into role permission sets.
func (s *Store) DeletePermission(ctx context.Context, id string) error {
	defer func() {
		s.permissions.Remove(id)
		s.roles.Purge()
	}()
	return s.Store.DeletePermission(ctx, id)
}

func (s *Store) CreateRole(ctx context.Context, r *store.Role) error {
	if r.IsDefault {
		defer s.roles.Purge()
	}
	return s.Store.CreateRole(ctx, r)
}

func (s *Store) UpdateRole(ctx context.Context, r *store.Role) error {
	defer s.roles.Remove(r.ID)
	return s.Store.UpdateRole(ctx, r)
}

func (s *Store) DeleteRole(ctx context.Context, id string) error {
	defer s.roles.Remove(id)
	return s.Store.DeleteRole(ctx, id)
}

func (s *Store) UpdateRolePermissions(ctx context.Context, roleID string, op store.SetOp, permissionIDs []string) error {
	defer s.roles.Remove(roleID)
	return s.Store.UpdateRolePermissions(ctx, roleID, op, permissionIDs)
}

func (s *Store) SetDefaultRole(ctx context.Context, id string) error {
	defer s.roles.Purge()
	return s.Store.SetDefaultRole(ctx, id)
}
