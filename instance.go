package cloudsql

import (
	"context"
	"crypto/tls"

	"github.com/lstoll/cloudsql-connector/internal/instance"
)

// Instance is the driver-facing handle onto one Cloud SQL instance's
// credential Manager. Obtain one from
// Dialer.Instance.
type Instance struct {
	mgr *instance.Manager
}

// ConnectionName returns the instance's connection name.
func (i *Instance) ConnectionName() string { return i.mgr.ID().String() }

// TLSConfig blocks until the current credential bundle is ready and
// returns its TLS configuration.
func (i *Instance) TLSConfig(ctx context.Context) (*tls.Config, error) {
	bundle, err := i.mgr.ConnectionInfo(ctx)
	if err != nil {
		return nil, err
	}
	return bundle.TLSConfig, nil
}

// PreferredIP returns the first IP address, in caller order, whose type
// label is present in the instance's metadata. An
// empty list defaults to ["PRIMARY"].
func (i *Instance) PreferredIP(ctx context.Context, preferredTypes []string) (string, error) {
	return i.mgr.GetPreferredIP(ctx, preferredTypes)
}

// SSLSocket is an unconnected TLS socket configured from the instance's
// current credential bundle: the client certificate, key, and pinned
// server CA are ready, but no network connection has been made. Dialing is
// the caller's responsibility.
type SSLSocket struct {
	Config *tls.Config
}

// Dial connects to address over network (normally "tcp") and performs the
// TLS handshake using s.Config.
func (s *SSLSocket) Dial(ctx context.Context, network, address string) (*tls.Conn, error) {
	d := tls.Dialer{Config: s.Config}
	conn, err := d.DialContext(ctx, network, address)
	if err != nil {
		return nil, err
	}
	return conn.(*tls.Conn), nil
}

// CreateSSLSocket blocks until the current credential bundle is ready and
// returns an unconnected TLS socket configured from it.
func (i *Instance) CreateSSLSocket(ctx context.Context) (*SSLSocket, error) {
	cfg, err := i.TLSConfig(ctx)
	if err != nil {
		return nil, err
	}
	return &SSLSocket{Config: cfg}, nil
}

// ForceRefresh triggers an immediate refresh, gated by the same rate limit
// that throttles scheduled refreshes. It always returns true; any
// underlying failure surfaces on the next TLSConfig/PreferredIP call.
func (i *Instance) ForceRefresh() bool { return i.mgr.ForceRefresh() }

// Stats returns a snapshot of refresh history for diagnostics.
func (i *Instance) Stats() ManagerStats { return i.mgr.Stats() }
