// Package credentials wraps the "credential provider" external
// collaborator, a factory yielding a fresh access token and its expiry, as a
// Go interface backed by golang.org/x/oauth2, for managers running with IAM
// database authentication enabled.
package credentials

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// Token is an OAuth2 access token and its expiration, mirroring the
// token/expiry shape most IAM auth libraries expect.
type Token struct {
	Value          string
	ExpirationTime time.Time
}

// Source refreshes and returns OAuth2 access tokens for IAM database
// authentication.
type Source interface {
	AccessToken(ctx context.Context) (Token, error)
}

// TokenSource adapts any oauth2.TokenSource (application default
// credentials, a service account key, a workload identity source, etc.)
// into a credentials.Source.
type TokenSource struct {
	ts oauth2.TokenSource
}

// NewTokenSource wraps ts.
func NewTokenSource(ts oauth2.TokenSource) *TokenSource {
	return &TokenSource{ts: ts}
}

// NewGoogleDefaultCredentials builds a Source from Application Default
// Credentials, the common case for workloads running on Google Cloud
// (GCE/GKE metadata server, gcloud user credentials, or a service account
// key file via GOOGLE_APPLICATION_CREDENTIALS).
func NewGoogleDefaultCredentials(ctx context.Context, scopes ...string) (*TokenSource, error) {
	if len(scopes) == 0 {
		scopes = []string{"https://www.googleapis.com/auth/sqlservice.login"}
	}
	creds, err := google.FindDefaultCredentials(ctx, scopes...)
	if err != nil {
		return nil, fmt.Errorf("find default credentials: %w", err)
	}
	return NewTokenSource(creds.TokenSource), nil
}

// AccessToken returns the current access token, refreshing it if the
// underlying oauth2.TokenSource requires it. The trailing "." trim
// workaround is applied by the caller (internal/instance), since
// it is a property of what the admin API accepts, not of the token itself.
func (t *TokenSource) AccessToken(ctx context.Context) (Token, error) {
	tok, err := t.ts.Token()
	if err != nil {
		return Token{}, fmt.Errorf("refresh access token: %w", err)
	}
	return Token{Value: tok.AccessToken, ExpirationTime: tok.Expiry}, nil
}
