package permission

import (
	"context"
	"strings"

	"github.com/MrEthical07/gatekeeper/internal/validate"
	"github.com/MrEthical07/gatekeeper/store"
)

// CreatePermissionInput describes a new permission. Name defaults to
// "resource:action" when empty.
type CreatePermissionInput struct {
	Name       string         `json:"name" validate:"max=128"`
	Resource   string         `json:"resource" validate:"required,max=64"`
	Action     store.Action   `json:"action" validate:"required,action"`
	Conditions map[string]any `json:"conditions"`
}

// UpdatePermissionInput carries optional replacements. Nil fields are kept.
type UpdatePermissionInput struct {
	Name       *string         `json:"name" validate:"omitnil,min=1,max=128"`
	Resource   *string         `json:"resource" validate:"omitnil,min=1,max=64"`
	Action     *store.Action   `json:"action" validate:"omitnil,action"`
	Conditions *map[string]any `json:"conditions"`
}

// Registry is the catalogue of named permissions.
type Registry struct {
	store    store.PermissionStore
	validate *validate.Validator
}

// NewRegistry returns a Registry over s.
func NewRegistry(s store.PermissionStore) *Registry {
	return &Registry{store: s, validate: validate.New()}
}

// NormalizeResource lowercases and trims a resource name.
func NormalizeResource(resource string) string {
	return strings.ToLower(strings.TrimSpace(resource))
}

// Create validates in and stores a new permission.
func (r *Registry) Create(ctx context.Context, in CreatePermissionInput) (*store.Permission, error) {
	in.Resource = NormalizeResource(in.Resource)
	in.Name = strings.TrimSpace(in.Name)
	if err := r.validate.Struct(in); err != nil {
		return nil, err
	}
	if in.Name == "" {
		in.Name = in.Resource + ":" + string(in.Action)
	}

	p := &store.Permission{
		Name:       in.Name,
		Resource:   in.Resource,
		Action:     in.Action,
		Conditions: in.Conditions,
	}
	if err := r.store.CreatePermission(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// Get returns the permission with id.
func (r *Registry) Get(ctx context.Context, id string) (*store.Permission, error) {
	return r.store.GetPermission(ctx, id)
}

// GetByName returns the permission with the unique name.
func (r *Registry) GetByName(ctx context.Context, name string) (*store.Permission, error) {
	return r.store.GetPermissionByName(ctx, name)
}

// Resolve returns the permission ref points at.
func (r *Registry) Resolve(ctx context.Context, ref Ref) (*store.Permission, error) {
	return ResolvePermission(ctx, r.store, ref)
}

// List returns every permission ordered by name.
func (r *Registry) List(ctx context.Context) ([]*store.Permission, error) {
	return r.store.ListPermissions(ctx)
}

// Update applies the non-nil fields of in.
func (r *Registry) Update(ctx context.Context, id string, in UpdatePermissionInput) (*store.Permission, error) {
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		in.Name = &name
	}
	if in.Resource != nil {
		resource := NormalizeResource(*in.Resource)
		in.Resource = &resource
	}
	if err := r.validate.Struct(in); err != nil {
		return nil, err
	}
	p, err := r.store.GetPermission(ctx, id)
	if err != nil {
		return nil, err
	}
	if in.Name != nil {
		p.Name = *in.Name
	}
	if in.Resource != nil {
		p.Resource = *in.Resource
	}
	if in.Action != nil {
		p.Action = *in.Action
	}
	if in.Conditions != nil {
		p.Conditions = *in.Conditions
	}
	if err := r.store.UpdatePermission(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// Delete removes the permission and detaches it from every role and user.
func (r *Registry) Delete(ctx context.Context, id string) error {
	return r.store.DeletePermission(ctx, id)
}
