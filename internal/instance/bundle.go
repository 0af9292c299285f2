package instance

import (
	"crypto/tls"
	"time"
)

// Bundle is the atomic, immutable product of one refresh cycle: metadata,
// an assembled TLS config, its effective expiry, and the resolved IP
// address view. Bundles are never mutated after creation; replacement is by
// pointer swap under Manager's mutex.
type Bundle struct {
	Metadata    Metadata
	TLSConfig   *tls.Config
	ExpiresAt   time.Time
	IPAddresses map[string]string
}

// bundleExpiresAt computes expiresAt = min(certNotAfter, accessTokenExpiry)
// when accessTokenExpiry is non-zero (IAM auth in use), otherwise
// certNotAfter alone.
func bundleExpiresAt(certNotAfter, accessTokenExpiry time.Time) time.Time {
	if accessTokenExpiry.IsZero() {
		return certNotAfter
	}
	if accessTokenExpiry.Before(certNotAfter) {
		return accessTokenExpiry
	}
	return certNotAfter
}

const (
	defaultSafetyBuffer = 5 * time.Minute
	iamSafetyBuffer     = 55 * time.Second

	fallbackBuffer = 5 * time.Second
)

// nextRefreshDelay computes how long to wait, from now, before starting the
// next scheduled refresh: expiresAt - safetyBuffer, clamped so that if
// that instant has already passed, use expiresAt - 5s; if that too has
// passed (or is negative), schedule immediately.
func nextRefreshDelay(now, expiresAt time.Time, safetyBuffer time.Duration) time.Duration {
	at := expiresAt.Add(-safetyBuffer)
	if at.After(now) {
		return at.Sub(now)
	}
	at = expiresAt.Add(-fallbackBuffer)
	if at.After(now) {
		return at.Sub(now)
	}
	return 0
}
