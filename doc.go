// Package cloudsql provides authenticated, encrypted client connections to
// Cloud SQL instances without a conventional TLS handshake: each
// connection is backed by a short-lived ephemeral client certificate
// pinned against the instance's server CA, refreshed automatically ahead
// of expiry, and optionally carrying an OAuth2 access token for IAM
// database authentication.
//
// The package is a thin, driver-facing wrapper around the credential
// lifecycle engine in internal/instance. Most callers only need Dialer:
//
//	d, err := cloudsql.NewDialer(ctx)
//	conn, err := d.Dial(ctx, "my-project:us-central1:my-instance")
//
// Callers that need the assembled TLS configuration directly (to hand to a
// database driver that dials for itself) can use Instance instead:
//
//	inst, err := d.Instance(ctx, "my-project:us-central1:my-instance")
//	cfg, err := inst.TLSConfig(ctx)
package cloudsql
