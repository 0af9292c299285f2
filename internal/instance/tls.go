package instance

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
)

var errNoServerCertificate = errors.New("server presented no certificate")

// buildTLSConfig assembles a client TLS configuration pinned to the
// instance's server CA: the client presents privKey/cert, the server is
// trusted only against caCert (never the host trust store), and TLS 1.3 is
// preferred with a TLS 1.2 fallback, except when iamAuthN is true, in
// which case falling back below TLS 1.3 is a fatal error.
func buildTLSConfig(id ID, privKey any, cert *x509.Certificate, caCert *x509.Certificate, iamAuthN bool) (*tls.Config, error) {
	pool := x509.NewCertPool()
	pool.AddCert(caCert)

	clientCert := tls.Certificate{
		Certificate: [][]byte{cert.Raw},
		PrivateKey:  privKey,
		Leaf:        cert,
	}

	minVersion := uint16(tls.VersionTLS12)
	if iamAuthN {
		// IAM auth requires TLS 1.3; refuse to construct a config that could
		// silently negotiate down to 1.2.
		minVersion = tls.VersionTLS13
	}

	cfg := &tls.Config{
		Certificates: []tls.Certificate{clientCert},
		RootCAs:      pool,
		ServerName:   id.Instance,
		MinVersion:   minVersion,
		MaxVersion:   tls.VersionTLS13,
		// The server CA is instance-specific and self-signed from the
		// client's point of view; skip hostname verification against it and
		// rely on VerifyPeerCertificate to check the chain is rooted in it.
		InsecureSkipVerify:    true,
		VerifyPeerCertificate: verifyAgainstPool(pool),
	}
	return cfg, nil
}

// verifyAgainstPool returns a VerifyPeerCertificate callback that checks the
// presented chain verifies against pool, since InsecureSkipVerify disables
// Go's built-in verification (including hostname checks the instance CA was
// never meant to satisfy).
func verifyAgainstPool(pool *x509.CertPool) func([][]byte, [][]*x509.Certificate) error {
	return func(rawCerts [][]byte, _ [][]*x509.Certificate) error {
		if len(rawCerts) == 0 {
			return &CryptoError{Cause: errNoServerCertificate}
		}
		leaf, err := x509.ParseCertificate(rawCerts[0])
		if err != nil {
			return &CryptoError{Cause: err}
		}
		opts := x509.VerifyOptions{Roots: pool}
		_, err = leaf.Verify(opts)
		return err
	}
}
