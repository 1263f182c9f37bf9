package store

import (
	"slices"
	"time"
)

// Action is the verb half of a permission grant.
type Action string

const (
	ActionCreate Action = "create"
	ActionRead   Action = "read"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
	// ActionManage implies every other action on the same resource.
	ActionManage Action = "manage"
)

// Valid reports whether a is one of the known actions.
func (a Action) Valid() bool {
	switch a {
	case ActionCreate, ActionRead, ActionUpdate, ActionDelete, ActionManage:
		return true
	}
	return false
}

// Permission is a named (resource, action) grant.
type Permission struct {
	ID       string
	Name     string
	Resource string
	Action   Action
	// Conditions is stored verbatim and never evaluated.
	Conditions map[string]any
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Clone returns a deep copy of p.
func (p *Permission) Clone() *Permission {
	if p == nil {
		return nil
	}
	out := *p
	if p.Conditions != nil {
		out.Conditions = make(map[string]any, len(p.Conditions))
		for k, v := range p.Conditions {
			out.Conditions[k] = v
		}
	}
	return &out
}

// Role is a named bundle of permissions.
type Role struct {
	ID            string
	Name          string
	Description   string
	PermissionIDs []string
	IsDefault     bool
	IsActive      bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Clone returns a deep copy of r.
func (r *Role) Clone() *Role {
	if r == nil {
		return nil
	}
	out := *r
	out.PermissionIDs = slices.Clone(r.PermissionIDs)
	return &out
}

// User is an identity with credentials, role and permission references, and
// the set of session ids it currently owns.
type User struct {
	ID              string
	Name            string
	Email           string
	PasswordHash    string
	RoleIDs         []string
	PermissionIDs   []string
	SessionIDs      []string
	IsActive        bool
	IsEmailVerified bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Clone returns a deep copy of u.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	out := *u
	out.RoleIDs = slices.Clone(u.RoleIDs)
	out.PermissionIDs = slices.Clone(u.PermissionIDs)
	out.SessionIDs = slices.Clone(u.SessionIDs)
	return &out
}

// HasSession reports whether sessionID is in the user's session set.
func (u *User) HasSession(sessionID string) bool {
	return u != nil && sessionID != "" && slices.Contains(u.SessionIDs, sessionID)
}

// SetOp selects how a set mutation combines with the stored set.
type SetOp int

const (
	SetAdd SetOp = iota
	SetRemove
	SetReplace
)

func (op SetOp) String() string {
	switch op {
	case SetAdd:
		return "add"
	case SetRemove:
		return "remove"
	case SetReplace:
		return "replace"
	default:
		return "unknown"
	}
}

// ApplySet combines current with ids according to op and returns a new
// deduplicated slice. Order of first appearance is preserved.
func ApplySet(current []string, op SetOp, ids []string) []string {
	switch op {
	case SetReplace:
		return dedupe(ids)
	case SetRemove:
		out := make([]string, 0, len(current))
		for _, id := range current {
			if !slices.Contains(ids, id) {
				out = append(out, id)
			}
		}
		return dedupe(out)
	default:
		merged := make([]string, 0, len(current)+len(ids))
		merged = append(merged, current...)
		merged = append(merged, ids...)
		return dedupe(merged)
	}
}

func dedupe(ids []string) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
