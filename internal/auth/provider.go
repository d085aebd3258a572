package auth

import "context"

// Provider is the capability set an external login provider must
// expose: build the login redirect and exchange the callback code for
// a verified identity. One implementation per provider, resolved by
// name at request time.
type Provider interface {
	Name() string
	LoginURL(state string) string
	Exchange(ctx context.Context, code string) (*ExternalIdentity, error)
}
