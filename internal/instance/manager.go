// Package instance implements the per-instance credential lifecycle engine:
// the core of the connector. A Manager is created once per Cloud SQL
// instance connection name; it fetches metadata and an ephemeral
// certificate, assembles a pinned TLS configuration, keeps it fresh ahead
// of expiry, and serves it to callers with minimal latency.
package instance

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/lstoll/cloudsql-connector/internal/credentials"
	"github.com/lstoll/cloudsql-connector/internal/keys"
)

// ManagerStats is a snapshot of a Manager's refresh history, for
// diagnostics and health checks.
type ManagerStats struct {
	RefreshCount uint64
	LastSuccess  time.Time
	LastError    error
	LastErrorAt  time.Time
}

// Option configures a Manager at construction time.
type Option func(*Manager)

// WithIAMAuthN enables IAM database authentication: the manager fetches an
// access token from tokenSource on every refresh, attaches it to the
// certificate-minting request, folds its expiry into the bundle's
// expiresAt, uses the shorter 55s safety buffer, and refuses to fall back
// below TLS 1.3.
func WithIAMAuthN(tokenSource credentials.Source) Option {
	return func(m *Manager) {
		m.iamAuthN = true
		m.tokenSource = tokenSource
	}
}

// WithSafetyBuffer overrides the default (non-IAM) safety buffer, ahead of
// expiry, at which the next refresh is scheduled. Mainly useful in tests and
// unusual deployments that need tighter or looser refresh timing.
func WithSafetyBuffer(d time.Duration) Option {
	return func(m *Manager) { m.safetyBuffer = d }
}

// WithIAMSafetyBuffer overrides the IAM-mode safety buffer.
func WithIAMSafetyBuffer(d time.Duration) Option {
	return func(m *Manager) { m.iamSafetyBuffer = d }
}

// WithRefreshRateLimit overrides the Forced-Refresh Limiter's steady-state
// rate and burst, default 1/60s with burst 1.
func WithRefreshRateLimit(perSecond rate.Limit, burst int) Option {
	return func(m *Manager) { m.limiter = newRefreshLimiterWithRate(perSecond, burst) }
}

// Manager is the per-instance credential manager: one instance per
// monitored Cloud SQL instance, running perpetually until ctx is canceled.
type Manager struct {
	id       ID
	fetcher  MetadataFetcher
	minter   CertMinter
	keys     keys.Source
	limiter  *refreshLimiter

	iamAuthN        bool
	tokenSource     credentials.Source
	safetyBuffer    time.Duration
	iamSafetyBuffer time.Duration

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	current bundleFuture
	next    *scheduledNext

	stats ManagerStats
}

// New constructs a Manager for id and immediately launches its first
// refresh in the background. ctx bounds the manager's
// lifetime: canceling it stops future scheduled refreshes, and a refresh
// already in flight is aborted and resolves its future with the
// cancellation error.
func New(ctx context.Context, id ID, fetcher MetadataFetcher, minter CertMinter, keySource keys.Source, opts ...Option) *Manager {
	mctx, cancel := context.WithCancel(ctx)
	m := &Manager{
		id:              id,
		fetcher:         fetcher,
		minter:          minter,
		keys:            keySource,
		limiter:         newRefreshLimiter(),
		safetyBuffer:    defaultSafetyBuffer,
		iamSafetyBuffer: iamSafetyBuffer,
		ctx:             mctx,
		cancel:          cancel,
	}
	for _, o := range opts {
		o(m)
	}

	first := m.startRefresh()
	m.mu.Lock()
	m.current = first
	m.mu.Unlock()

	return m
}

// Close stops scheduling future refreshes. It cancels the manager's
// context, so a refresh already in flight is aborted and resolves its
// future with the cancellation error.
func (m *Manager) Close() { m.cancel() }

// ID returns the instance identifier this manager was constructed for.
func (m *Manager) ID() ID { return m.id }

// Stats returns a snapshot of refresh history for diagnostics.
func (m *Manager) Stats() ManagerStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stats
}

// -- refresh orchestration --

// startRefresh launches one refresh attempt in the background and returns
// immediately with its (initially unresolved) future. The goroutine
// acquires a rate-limiter permit, fetches metadata and mints a certificate
// in parallel, assembles the TLS config, and on completion schedules either
// the next steady-state refresh or an immediate retry.
func (m *Manager) startRefresh() *refreshOperation {
	op := newRefreshOperation()
	go func() {
		bundle, err := m.performRefresh(m.ctx)
		op.resolve(bundle, err)
		m.onRefreshComplete(op, bundle, err)
	}()
	return op
}

// performRefresh is one pass through metadata fetch, cert mint, and TLS
// config assembly.
func (m *Manager) performRefresh(ctx context.Context) (*Bundle, error) {
	if err := m.limiter.acquire(ctx); err != nil {
		return nil, &RefreshFailedError{Instance: m.id.String(), Cause: err}
	}

	key, err := m.keys.Wait(ctx)
	if err != nil {
		return nil, &RefreshFailedError{Instance: m.id.String(), Cause: fmt.Errorf("wait for key pair: %w", err)}
	}

	pubKeyPEM, err := keys.EncodePublicKeyPEM(key)
	if err != nil {
		return nil, &CryptoError{Instance: m.id.String(), Cause: err}
	}

	var accessToken credentials.Token
	if m.iamAuthN {
		accessToken, err = m.tokenSource.AccessToken(ctx)
		if err != nil {
			return nil, &RefreshFailedError{Instance: m.id.String(), Cause: fmt.Errorf("refresh access token: %w", err)}
		}
	}

	var md Metadata
	var cert EphemeralCertificate

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		md, err = m.fetchAndValidateMetadata(gctx)
		return err
	})
	g.Go(func() error {
		req := MintRequest{ID: m.id, PublicKeyPEM: pubKeyPEM}
		if m.iamAuthN {
			req.AccessToken = trimAccessToken(accessToken.Value)
		}
		var err error
		cert, err = m.minter.MintCertificate(gctx, req)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, remapAdminAPIError(m.id, err)
	}

	tlsCfg, err := buildTLSConfig(m.id, key, cert.Cert, md.ServerCACert, m.iamAuthN)
	if err != nil {
		if m.iamAuthN && isTLS13Unsupported(err) {
			return nil, &TLS13UnavailableError{Instance: m.id.String()}
		}
		return nil, &CryptoError{Instance: m.id.String(), Cause: err}
	}

	expiresAt := bundleExpiresAt(cert.NotAfter, accessToken.ExpirationTime)

	return &Bundle{
		Metadata:    md,
		TLSConfig:   tlsCfg,
		ExpiresAt:   expiresAt,
		IPAddresses: md.IPAddresses,
	}, nil
}

func (m *Manager) fetchAndValidateMetadata(ctx context.Context) (Metadata, error) {
	md, err := m.fetcher.FetchMetadata(ctx, m.id)
	if err != nil {
		return Metadata{}, err
	}
	return md, nil
}

// isTLS13Unsupported is a hook for detecting "protocol unsupported" style
// errors from the local TLS stack. The standard library's crypto/tls
// never fails to construct a *tls.Config for an unsupported MinVersion
// value (refusal happens at handshake time), so this always reports false;
// the check exists so a future crypto backend that does fail early is
// handled without changing performRefresh's control flow.
func isTLS13Unsupported(error) bool { return false }

// onRefreshComplete applies the success or failure outcome of a refresh and
// schedules the next refresh via the same nested-future mechanism forced
// refreshes use, which is what keeps a chain of failed futures from
// growing unboundedly: a post-failure retry is just a "next" scheduled
// at a zero delay, exactly like a normal scheduled refresh.
func (m *Manager) onRefreshComplete(op *refreshOperation, bundle *Bundle, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err == nil {
		m.stats.RefreshCount++
		m.stats.LastSuccess = time.Now()
		m.current = op
		buffer := m.safetyBuffer
		if m.iamAuthN {
			buffer = m.iamSafetyBuffer
		}
		m.scheduleNextLocked(nextRefreshDelay(time.Now(), bundle.ExpiresAt, buffer))
		return
	}

	log.Printf("instance %s: refresh failed: %v", m.id, err)
	m.stats.LastError = err
	m.stats.LastErrorAt = time.Now()
	if m.currentInvalidOrExpiredLocked() {
		m.current = op
	}
	m.scheduleNextLocked(0)
}

// currentInvalidOrExpiredLocked reports whether m.current is unset,
// resolved to an error, or resolved to a bundle that has already expired.
// A current that has not resolved yet, or one attached to a scheduled
// refresh, is reported as valid. Must be called with m.mu held.
func (m *Manager) currentInvalidOrExpiredLocked() bool {
	switch cur := m.current.(type) {
	case nil:
		return true
	case *refreshOperation:
		bundle, done := cur.resolved()
		if !done {
			return false // an in-flight refresh may still succeed; leave it be
		}
		if bundle == nil {
			return true // previously resolved to an error
		}
		return !time.Now().Before(bundle.ExpiresAt)
	default:
		return false
	}
}

// scheduleNextLocked replaces m.next with a scheduledNext that fires after
// delay, launching the next refresh attempt. Once the manager's context is
// done (Close), it schedules nothing. Must be called with m.mu held.
func (m *Manager) scheduleNextLocked(delay time.Duration) {
	if m.ctx.Err() != nil {
		return
	}
	next := newScheduledNext()
	next.timer = time.AfterFunc(delay, func() {
		op := m.startRefresh()
		next.deliver(op)
	})
	m.next = next
}

// -- forced refresh --

// ForceRefresh triggers an operator- or driver-initiated refresh, gated by
// the same rate limiter that throttles scheduled refreshes. It always
// returns true: the manager never fails to *schedule* a refresh
// synchronously; any underlying failure surfaces on the next
// ConnectionInfo/GetPreferredIP call instead.
func (m *Manager) ForceRefresh() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.next != nil && m.next.tryCancel() {
		op := m.startRefresh()
		m.current = op
		completed := newScheduledNext()
		completed.deliver(op)
		m.next = completed
		return true
	}

	// The timer already fired (or there was no timer yet): a refresh is
	// already in flight or about to start. Attach current to it rather than
	// starting a second one, so at most one refresh runs at a time.
	if m.next != nil {
		m.current = m.next
	}
	return true
}

// -- access gate --

// ConnectionInfo blocks until the current credential bundle is ready and
// returns its TLS configuration and resolved IP addresses. It honors ctx
// cancellation, as any blocking Go call is expected to.
func (m *Manager) ConnectionInfo(ctx context.Context) (*Bundle, error) {
	m.mu.Lock()
	cur := m.current
	m.mu.Unlock()

	if cur == nil {
		return nil, &RefreshFailedError{Instance: m.id.String(), Cause: fmt.Errorf("no refresh has been scheduled")}
	}
	return cur.wait(ctx)
}

// GetPreferredIP returns the first IP address, in caller order, whose type
// label is present in the current bundle's metadata. An empty
// preferredTypes defaults to ["PRIMARY"].
func (m *Manager) GetPreferredIP(ctx context.Context, preferredTypes []string) (string, error) {
	if len(preferredTypes) == 0 {
		preferredTypes = []string{IPTypePrimary}
	}
	bundle, err := m.ConnectionInfo(ctx)
	if err != nil {
		return "", err
	}
	for _, t := range preferredTypes {
		if ip, ok := bundle.IPAddresses[t]; ok {
			return ip, nil
		}
	}
	return "", &NoMatchingIPError{Instance: m.id.String(), PreferredTypes: preferredTypes}
}
