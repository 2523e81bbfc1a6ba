// Package principal models the acting caller of a mutation request: identity,
// elevation, workspace, and the container/field-value permissions the engine
// consults. The principal is threaded through context rather than read from
// ambient session state.
package principal

import (
	"context"
	"strconv"
)

// Principal is the authenticated caller a mutation acts for.
type Principal interface {
	// ID is a stable identifier for the caller.
	ID() string
	// IsElevated reports administrator-level rights.
	IsElevated() bool
	// Workspace returns the caller's active draft environment, 0 for live.
	Workspace() int64
	// CanAccessContainer reports whether the caller may write records under
	// the given container.
	CanAccessContainer(containerID int64) bool
	// IsValueAllowed reports whether the caller may write value to the given
	// authorization-restricted field.
	IsValueAllowed(table, field string, value any) bool
}

// Claims is a claims-backed Principal, typically decoded from a bearer token.
type Claims struct {
	Subject     string
	Elevated    bool
	WorkspaceID int64
	// Containers is an allow-list of writable container ids. A nil list with
	// AllContainers set grants everything.
	Containers    []int64
	AllContainers bool
	// ValueRules maps "table.field" to the set of permitted values. Fields
	// without an entry are unrestricted for this principal.
	ValueRules map[string][]string
}

var _ Principal = (*Claims)(nil)

func (c *Claims) ID() string       { return c.Subject }
func (c *Claims) IsElevated() bool { return c.Elevated }
func (c *Claims) Workspace() int64 { return c.WorkspaceID }

func (c *Claims) CanAccessContainer(containerID int64) bool {
	if c.Elevated || c.AllContainers {
		return true
	}
	for _, id := range c.Containers {
		if id == containerID {
			return true
		}
	}
	return false
}

func (c *Claims) IsValueAllowed(table, field string, value any) bool {
	if c.Elevated {
		return true
	}
	allowed, ok := c.ValueRules[table+"."+field]
	if !ok {
		return true
	}
	candidate := valueString(value)
	for _, v := range allowed {
		if v == candidate {
			return true
		}
	}
	return false
}

func valueString(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatInt(int64(v), 10)
	case bool:
		if v {
			return "1"
		}
		return "0"
	default:
		return ""
	}
}

// Anonymous is the principal used when authentication is disabled: full
// container access in the live workspace without elevation.
func Anonymous() *Claims {
	return &Claims{Subject: "anonymous", AllContainers: true}
}

type contextKey struct{}

// WithPrincipal stores the principal on the context.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, contextKey{}, p)
}

// FromContext retrieves the acting principal, or nil when none is set.
func FromContext(ctx context.Context) Principal {
	p, _ := ctx.Value(contextKey{}).(Principal)
	return p
}
