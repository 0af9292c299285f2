package instance

import (
	"context"
	"crypto/x509"
	"strings"
	"time"
)

// EphemeralCertificate is the short-lived client certificate minted by the
// admin API for one refresh cycle.
type EphemeralCertificate struct {
	Cert     *x509.Certificate
	NotAfter time.Time
}

// MintRequest carries everything the admin API needs to mint an ephemeral
// certificate: the caller's PEM-encoded public key and, when IAM
// authentication is enabled, a bearer access token.
type MintRequest struct {
	ID           ID
	PublicKeyPEM string
	AccessToken  string // empty when IAM auth is disabled
}

// CertMinter exchanges a public key (and optional access token) for a
// signed ephemeral client certificate. Like MetadataFetcher, it performs no
// retries of its own.
type CertMinter interface {
	MintCertificate(ctx context.Context, req MintRequest) (EphemeralCertificate, error)
}

// trimAccessToken strips trailing "." characters from an OAuth2 access
// token. Some token providers pad tokens with a trailing dot; the admin API
// rejects it. This workaround must be preserved until the upstream issue
// that necessitates it is fixed.
func trimAccessToken(token string) string {
	return strings.TrimRight(token, ".")
}
