package fctransport

import "context"

// TokenProvider supplies the bearer token attached to every request. Implementations
// must be safe for concurrent use.
type TokenProvider interface {
	// Token returns the current token. It may block, for example to refresh an expiring
	// credential, so it receives the request context.
	Token(ctx context.Context) (string, error)
}

// SharedSecretTokenProvider is a TokenProvider that always returns the same fixed token.
type SharedSecretTokenProvider struct {
	token string
}

// SharedSecret returns a TokenProvider for a fixed pre-shared token.
func SharedSecret(token string) SharedSecretTokenProvider {
	return SharedSecretTokenProvider{token: token}
}

// Token implements TokenProvider.
func (p SharedSecretTokenProvider) Token(context.Context) (string, error) {
	return p.token, nil
}
