package api

import (
	"context"
	"time"
)

// QueryTimeout is the default timeout for database queries
const QueryTimeout = 10 * time.Second

// WithQueryTimeout creates a context with query timeout
func WithQueryTimeout(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return context.WithTimeout(parent, QueryTimeout)
}

type requestUserKey struct{}

// RequestUser is the authenticated caller, as resolved by the auth middleware
type RequestUser struct {
	ID    string
	Email string
}

// WithRequestUser stores the authenticated user on the request context
func WithRequestUser(ctx context.Context, id, email string) context.Context {
	return context.WithValue(ctx, requestUserKey{}, RequestUser{ID: id, Email: email})
}

// RequestUserFrom returns the authenticated user from the context. ok is false for
// unauthenticated requests (routes mounted without the auth middleware).
func RequestUserFrom(ctx context.Context) (RequestUser, bool) {
	u, ok := ctx.Value(requestUserKey{}).(RequestUser)
	return u, ok
}
