// Package identity carries the authenticated user through request contexts.
package identity

import "context"

// User is the caller as established by authentication.
type User struct {
	ID    string
	Email string
}

type contextKey string

const userKey contextKey = "user"

func WithUser(ctx context.Context, u *User) context.Context {
	return context.WithValue(ctx, userKey, u)
}

func UserFromContext(ctx context.Context) *User {
	u, _ := ctx.Value(userKey).(*User)
	return u
}

// UserID returns the caller's ID, or "" when the context is unauthenticated.
func UserID(ctx context.Context) string {
	if u := UserFromContext(ctx); u != nil {
		return u.ID
	}
	return ""
}
