package cloudsql

import (
	"context"

	"golang.org/x/oauth2"

	"github.com/lstoll/cloudsql-connector/internal/credentials"
)

// CredentialsSource supplies OAuth2 access tokens for IAM database
// authentication, aliased from internal/credentials so callers can accept
// or implement it without importing an internal package.
type CredentialsSource = credentials.Source

// NewOAuth2CredentialsSource adapts any oauth2.TokenSource into a
// CredentialsSource suitable for WithIAMAuthN.
func NewOAuth2CredentialsSource(ts oauth2.TokenSource) CredentialsSource {
	return credentials.NewTokenSource(ts)
}

// NewGoogleDefaultCredentials builds a CredentialsSource from Application
// Default Credentials, the common case for workloads running on Google
// Cloud. scopes defaults to the Cloud SQL login scope when empty.
func NewGoogleDefaultCredentials(ctx context.Context, scopes ...string) (CredentialsSource, error) {
	return credentials.NewGoogleDefaultCredentials(ctx, scopes...)
}
