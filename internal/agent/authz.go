package agent

import (
	"context"

	"github.com/docflow/docflow/internal/domain"
)

// Permission is the declared write/read requirement an action carries.
type Permission string

const (
	PermRead  Permission = "read"
	PermWrite Permission = "write"
)

// RequiredPermission returns the permission an action requires (spec
// §4.8 step 4: "the action's declared permission requirement").
func RequiredPermission(a Action) Permission {
	switch a {
	case ActionLoad, ActionRender:
		return PermRead
	default:
		return PermWrite
	}
}

// Role is an actor's assigned role against the role matrix.
type Role string

const (
	RoleOwner  Role = "owner"
	RoleEditor Role = "editor"
	RoleViewer Role = "viewer"
)

// RoleMatrix maps a role to the permissions it holds.
type RoleMatrix map[Role]map[Permission]bool

// DefaultRoleMatrix grants owner and editor both permissions, and
// viewer read-only — the minimal matrix spec §4.8 implies without
// prescribing roles explicitly.
func DefaultRoleMatrix() RoleMatrix {
	return RoleMatrix{
		RoleOwner:  {PermRead: true, PermWrite: true},
		RoleEditor: {PermRead: true, PermWrite: true},
		RoleViewer: {PermRead: true, PermWrite: false},
	}
}

// CustomHook is the optional custom authorization hook referenced in
// spec §4.8 step 4, typically backed by an out-of-process policy
// service (see internal/api's OAuth2 client-credentials-backed hook).
type CustomHook func(ctx context.Context, action Action, actor string) error

// Authorizer resolves an actor to a role and applies the role matrix,
// plus an optional custom hook consulted after the matrix check.
type Authorizer struct {
	Matrix     RoleMatrix
	RoleOf     func(actor string) Role
	Custom     CustomHook
}

// NewAuthorizer returns an Authorizer using DefaultRoleMatrix and a
// RoleOf function that treats every actor as RoleOwner unless roleOf
// is supplied (the common single-operator deployment).
func NewAuthorizer(roleOf func(actor string) Role) *Authorizer {
	if roleOf == nil {
		roleOf = func(string) Role { return RoleOwner }
	}
	return &Authorizer{Matrix: DefaultRoleMatrix(), RoleOf: roleOf}
}

// Authorize checks action against actor's role, then the custom hook
// if configured. Denial surfaces as {code: forbidden}.
func (a *Authorizer) Authorize(ctx context.Context, action Action, actor string) error {
	role := a.RoleOf(actor)
	perms, ok := a.Matrix[role]
	if !ok || !perms[RequiredPermission(action)] {
		return domain.NewError(domain.ErrForbidden, "actor lacks required permission").
			WithDetail("actor", actor).
			WithDetail("role", string(role)).
			WithDetail("action", string(action))
	}
	if a.Custom != nil {
		if err := a.Custom(ctx, action, actor); err != nil {
			if de, ok := domain.AsError(err); ok {
				return de
			}
			return domain.NewError(domain.ErrForbidden, err.Error())
		}
	}
	return nil
}
