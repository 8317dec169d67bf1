// Package context provides request-scoped values extraction.
package context

import (
	"context"
	"strconv"
)

// UserContext contains the authenticated caller.
type UserContext struct {
	// ActorID is the numeric identity attributed to mutations (nil when the token has none)
	ActorID  *int64
	UserName string
	Email    string
	Roles    []string
}

type userContextKey struct{}

// WithUser adds UserContext to context.
func WithUser(ctx context.Context, user *UserContext) context.Context {
	return context.WithValue(ctx, userContextKey{}, user)
}

// GetUser returns UserContext from context.
func GetUser(ctx context.Context) *UserContext {
	if ctx == nil {
		return nil
	}
	if v, ok := ctx.Value(userContextKey{}).(*UserContext); ok {
		return v
	}
	return nil
}

// ActorID returns the acting user id, or nil for anonymous callers and background jobs.
// Never panics, including on a nil context.
func ActorID(ctx context.Context) *int64 {
	u := GetUser(ctx)
	if u == nil || u.ActorID == nil {
		return nil
	}
	actor := *u.ActorID
	return &actor
}

// ParseActorID converts a claim value into an actor id. Anything that is not a
// base-10 int64 yields nil.
func ParseActorID(claim string) *int64 {
	v, err := strconv.ParseInt(claim, 10, 64)
	if err != nil {
		return nil
	}
	return &v
}

// HasRole checks if user has specific role.
func HasRole(ctx context.Context, role string) bool {
	u := GetUser(ctx)
	if u == nil {
		return false
	}
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}
