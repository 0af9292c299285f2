package cloudsql

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"fmt"
	"net"
	"sync"

	"github.com/lstoll/cloudsql-connector/internal/adminapi"
	"github.com/lstoll/cloudsql-connector/internal/credentials"
	"github.com/lstoll/cloudsql-connector/internal/instance"
	"github.com/lstoll/cloudsql-connector/internal/keys"
)

// AdminAPIClient is the subset of the Cloud SQL Admin API the connector
// invokes, aliased from internal/instance so callers can supply a fake for
// tests without importing an internal package.
type AdminAPIClient = instance.AdminAPIClient

// defaultRSAKeyBits is the size of the per-instance key pair Dialer
// generates asynchronously for each Instance, matching the admin API's
// expectations for the ephemeral certificate's public key.
const defaultRSAKeyBits = 2048

// Option configures a Dialer.
type Option func(*dialerConfig)

type dialerConfig struct {
	adminAPI    instance.AdminAPIClient
	iamAuthN    bool
	tokenSource credentials.Source
	rsaKeyBits  int
}

// WithAdminAPIClient overrides the admin-API client, mainly for tests
// against a fixture server.
func WithAdminAPIClient(client AdminAPIClient) Option {
	return func(c *dialerConfig) { c.adminAPI = client }
}

// WithIAMAuthN enables IAM database authentication for every instance this
// Dialer opens: an OAuth2 access token from tokenSource is attached to each
// ephemeral-certificate request and folded into the credential bundle's
// expiry.
func WithIAMAuthN(tokenSource CredentialsSource) Option {
	return func(c *dialerConfig) {
		c.iamAuthN = true
		c.tokenSource = tokenSource
	}
}

// Dialer opens authenticated, encrypted connections to Cloud SQL instances,
// lazily creating and caching one Instance (and its underlying credential
// Manager) per connection name.
type Dialer struct {
	cfg dialerConfig

	mu        sync.Mutex
	instances map[string]*Instance
}

// NewDialer returns a Dialer. By default it talks to the production admin
// API over HTTPS with no bearer token and no IAM authentication; use
// WithAdminAPIClient and WithIAMAuthN to change that.
func NewDialer(_ context.Context, opts ...Option) (*Dialer, error) {
	cfg := dialerConfig{rsaKeyBits: defaultRSAKeyBits}
	for _, o := range opts {
		o(&cfg)
	}
	if cfg.adminAPI == nil {
		cfg.adminAPI = adminapi.NewClient()
	}
	if cfg.iamAuthN && cfg.tokenSource == nil {
		return nil, fmt.Errorf("cloudsql: WithIAMAuthN requires a non-nil credentials.Source")
	}
	return &Dialer{cfg: cfg, instances: make(map[string]*Instance)}, nil
}

// Instance returns the Instance for connName, creating and launching its
// credential Manager on first use.
func (d *Dialer) Instance(ctx context.Context, connName string) (*Instance, error) {
	id, err := instance.ParseID(connName)
	if err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if inst, ok := d.instances[connName]; ok {
		return inst, nil
	}

	keySource := d.generateKeyPairAsync()
	fetcher := instance.NewMetadataFetcher(d.cfg.adminAPI)
	minter := instance.NewCertMinter(d.cfg.adminAPI)

	var opts []instance.Option
	if d.cfg.iamAuthN {
		opts = append(opts, instance.WithIAMAuthN(d.cfg.tokenSource))
	}

	mgr := instance.New(ctx, id, fetcher, minter, keySource, opts...)
	inst := &Instance{mgr: mgr}
	d.instances[connName] = inst
	return inst, nil
}

// Dial resolves connName's preferred IP address (defaulting to
// ["PRIVATE", "PUBLIC", "PRIMARY"] when none are given) and returns a TLS
// connection to it. It is a convenience wrapper; callers that need to
// control the raw dial themselves should use Instance and SSLSocket.Dial.
func (d *Dialer) Dial(ctx context.Context, connName string, preferredIPTypes ...string) (net.Conn, error) {
	if len(preferredIPTypes) == 0 {
		preferredIPTypes = []string{instance.IPTypePrivate, instance.IPTypePublic, instance.IPTypePrimary}
	}
	inst, err := d.Instance(ctx, connName)
	if err != nil {
		return nil, err
	}
	ip, err := inst.PreferredIP(ctx, preferredIPTypes)
	if err != nil {
		return nil, err
	}
	sock, err := inst.CreateSSLSocket(ctx)
	if err != nil {
		return nil, err
	}
	return sock.Dial(ctx, "tcp", net.JoinHostPort(ip, "3307"))
}

// Close stops scheduling future refreshes for every Instance this Dialer
// has created. Refreshes already in flight are aborted and resolve with the
// cancellation error.
func (d *Dialer) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, inst := range d.instances {
		inst.mgr.Close()
	}
}

// generateKeyPairAsync starts RSA key-pair generation in the background and
// returns a keys.Source that resolves once it completes. The credential
// manager treats key generation as external and only ever consumes a
// keys.Source; this is the Dialer's own implementation of that interface.
func (d *Dialer) generateKeyPairAsync() keys.Source {
	deferred := keys.NewDeferred()
	go func() {
		key, err := rsa.GenerateKey(rand.Reader, d.cfg.rsaKeyBits)
		deferred.Resolve(key, err)
	}()
	return deferred
}
