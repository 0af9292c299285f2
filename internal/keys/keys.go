// Package keys models the key-pair provider as an external collaborator:
// a deferred RSA key pair the core never generates and never inspects
// except to place the private half in the TLS key store and to encode the
// public half into the ephemeral-certificate request.
package keys

import (
	"context"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"fmt"
	"strings"
	"sync"
)

// Source is a deferred, possibly-not-yet-ready RSA key pair.
type Source interface {
	// Wait blocks until the key pair is available or ctx is done.
	Wait(ctx context.Context) (*rsa.PrivateKey, error)
}

// Static wraps an already-available key pair. Wait returns immediately.
type Static struct {
	Key *rsa.PrivateKey
}

func (s Static) Wait(ctx context.Context) (*rsa.PrivateKey, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.Key, nil
}

// Deferred is a key pair delivered asynchronously exactly once, e.g. by a
// background key-generation goroutine the embedder owns. Callers construct
// it with NewDeferred, hand the Source half to the manager, and call
// Resolve once the key is ready.
type Deferred struct {
	once sync.Once
	done chan struct{}
	key  *rsa.PrivateKey
	err  error
}

func NewDeferred() *Deferred {
	return &Deferred{done: make(chan struct{})}
}

// Resolve delivers the key pair (or a fatal generation error). Only the
// first call has an effect.
func (d *Deferred) Resolve(key *rsa.PrivateKey, err error) {
	d.once.Do(func() {
		d.key, d.err = key, err
		close(d.done)
	})
}

func (d *Deferred) Wait(ctx context.Context) (*rsa.PrivateKey, error) {
	select {
	case <-d.done:
		return d.key, d.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// EncodePublicKeyPEM encodes the public half of key as the admin API's
// expected "RSA PUBLIC KEY" PEM block: a base64-encoded
// SubjectPublicKeyInfo, body-wrapped at 64 columns.
func EncodePublicKeyPEM(key *rsa.PrivateKey) (string, error) {
	der, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		return "", fmt.Errorf("marshal public key: %w", err)
	}

	const wrapWidth = 64
	encoded := base64.StdEncoding.EncodeToString(der)

	var body strings.Builder
	for i := 0; i < len(encoded); i += wrapWidth {
		end := i + wrapWidth
		if end > len(encoded) {
			end = len(encoded)
		}
		body.WriteString(encoded[i:end])
		body.WriteByte('\n')
	}

	var out strings.Builder
	out.WriteString("-----BEGIN RSA PUBLIC KEY-----\n")
	out.WriteString(body.String())
	out.WriteString("-----END RSA PUBLIC KEY-----\n")
	return out.String(), nil
}
