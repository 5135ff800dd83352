package members

import (
	"context"
)

var accountCtxKey = &contextKey{"account"}
var authorizationCtxKey = &contextKey{"authorization"}

type contextKey struct {
	name string
}

// WithContext sets the Account in the given context
func WithContext(r context.Context, account *Account) context.Context {
	return context.WithValue(r, accountCtxKey, account)
}

// FromContext finds the account from the context.
func FromContext(ctx context.Context) (*Account, bool) {
	raw, ok := ctx.Value(accountCtxKey).(*Account)
	return raw, ok
}

// WithAuthorizationContext sets the Authorization in the given context
func WithAuthorizationContext(r context.Context, record *Authorization) context.Context {
	return context.WithValue(r, authorizationCtxKey, record)
}

// AuthorizationFromContext extracts the Authorization from the standard context
func AuthorizationFromContext(ctx context.Context) (*Authorization, bool) {
	raw, ok := ctx.Value(authorizationCtxKey).(*Authorization)
	return raw, ok
}
