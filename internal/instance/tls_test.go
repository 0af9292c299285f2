package instance

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"testing"
	"time"
)

func TestVerifyAgainstPool_AcceptsPinnedCA(t *testing.T) {
	ca := newTestCA(t)
	key := newTestRSAKey(t)
	leaf := ca.issueLeaf(t, &key.PublicKey, time.Now().Add(time.Hour))

	pool := certPoolFor(ca)
	verify := verifyAgainstPool(pool)

	if err := verify([][]byte{leaf.Raw}, nil); err != nil {
		t.Fatalf("verify against pinned CA: %v", err)
	}
}

func TestVerifyAgainstPool_RejectsUnpinnedCA(t *testing.T) {
	pinned := newTestCA(t)
	other := newTestCA(t)
	key := newTestRSAKey(t)

	// Leaf signed by a CA the pool never pinned; a server presenting this
	// chain must be rejected even though the certificate itself is valid.
	leaf := other.issueLeaf(t, &key.PublicKey, time.Now().Add(time.Hour))

	pool := certPoolFor(pinned)
	verify := verifyAgainstPool(pool)

	err := verify([][]byte{leaf.Raw}, nil)
	if err == nil {
		t.Fatal("verify against wrong CA: want error, got nil")
	}
}

func TestVerifyAgainstPool_NoCertificatePresented(t *testing.T) {
	ca := newTestCA(t)
	verify := verifyAgainstPool(certPoolFor(ca))

	err := verify(nil, nil)
	if err == nil {
		t.Fatal("verify with no certificates: want error, got nil")
	}
	var cryptoErr *CryptoError
	if !errors.As(err, &cryptoErr) {
		t.Fatalf("want *CryptoError, got %T: %v", err, err)
	}
}

func TestBuildTLSConfig_MinVersion(t *testing.T) {
	ca := newTestCA(t)
	key := newTestRSAKey(t)
	leaf := ca.issueLeaf(t, &key.PublicKey, time.Now().Add(time.Hour))
	id := ID{Project: "p", Region: "r", Instance: "i"}

	cfg, err := buildTLSConfig(id, key, leaf, ca.cert, false)
	if err != nil {
		t.Fatalf("buildTLSConfig(iamAuthN=false): %v", err)
	}
	if cfg.MinVersion != tls.VersionTLS12 {
		t.Fatalf("MinVersion = %v, want TLS 1.2 floor when IAM auth is disabled", cfg.MinVersion)
	}

	cfg, err = buildTLSConfig(id, key, leaf, ca.cert, true)
	if err != nil {
		t.Fatalf("buildTLSConfig(iamAuthN=true): %v", err)
	}
	if cfg.MinVersion != tls.VersionTLS13 {
		t.Fatalf("MinVersion = %v, want TLS 1.3 floor when IAM auth is enabled", cfg.MinVersion)
	}

	// The assembled config must pin verification to the instance CA rather
	// than deferring to the host trust store.
	if !cfg.InsecureSkipVerify || cfg.VerifyPeerCertificate == nil {
		t.Fatal("buildTLSConfig must disable default verification and install VerifyPeerCertificate to pin against the instance CA")
	}
	if err := cfg.VerifyPeerCertificate([][]byte{leaf.Raw}, nil); err != nil {
		t.Fatalf("VerifyPeerCertificate rejected the pinned leaf: %v", err)
	}

	other := newTestCA(t)
	badLeaf := other.issueLeaf(t, &key.PublicKey, time.Now().Add(time.Hour))
	if err := cfg.VerifyPeerCertificate([][]byte{badLeaf.Raw}, nil); err == nil {
		t.Fatal("VerifyPeerCertificate accepted a leaf from an unpinned CA")
	}
}

func certPoolFor(ca *testCA) *x509.CertPool {
	pool := x509.NewCertPool()
	pool.AddCert(ca.cert)
	return pool
}
