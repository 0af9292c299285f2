package instance

import (
	"context"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"net"
	"net/url"

	"github.com/lstoll/cloudsql-connector/internal/adminapi"
)

// AdminAPIClient is the subset of the admin API the manager invokes, kept
// narrow so tests can fake it without depending on internal/adminapi's HTTP
// transport.
type AdminAPIClient interface {
	ConnectSettings(ctx context.Context, project, regionalInstance string) (adminapi.ConnectSettings, error)
	GenerateEphemeralCert(ctx context.Context, project, regionalInstance, publicKeyPEM, accessToken string) (string, error)
}

// apiMetadataFetcher adapts an AdminAPIClient to MetadataFetcher, applying
// the region/backend-type/IP invariants a manager expects and classifying
// errors into the taxonomy the manager understands.
type apiMetadataFetcher struct {
	client AdminAPIClient
}

// NewMetadataFetcher returns the production MetadataFetcher backed by
// client.
func NewMetadataFetcher(client AdminAPIClient) MetadataFetcher {
	return &apiMetadataFetcher{client: client}
}

func (f *apiMetadataFetcher) FetchMetadata(ctx context.Context, id ID) (Metadata, error) {
	settings, err := f.client.ConnectSettings(ctx, id.Project, id.RegionalInstance())
	if err != nil {
		if isNetworkError(err) {
			return Metadata{}, &TransportError{Cause: err}
		}
		return Metadata{}, err // admin-API structured error, remapped by the caller
	}

	caCert, err := parsePEMCertificate(settings.ServerCAPEM)
	if err != nil {
		return Metadata{}, &ParseError{Instance: id.String(), Cause: err}
	}

	md := Metadata{IPAddresses: settings.IPAddresses, ServerCACert: caCert}
	if err := validateMetadata(id, settings.Region, settings.BackendType, md); err != nil {
		return Metadata{}, err
	}
	return md, nil
}

// apiCertMinter adapts an AdminAPIClient to CertMinter.
type apiCertMinter struct {
	client AdminAPIClient
}

// NewCertMinter returns the production CertMinter backed by client.
func NewCertMinter(client AdminAPIClient) CertMinter {
	return &apiCertMinter{client: client}
}

func (m *apiCertMinter) MintCertificate(ctx context.Context, req MintRequest) (EphemeralCertificate, error) {
	certPEM, err := m.client.GenerateEphemeralCert(ctx, req.ID.Project, req.ID.RegionalInstance(), req.PublicKeyPEM, req.AccessToken)
	if err != nil {
		if isNetworkError(err) {
			return EphemeralCertificate{}, &TransportError{Cause: err}
		}
		return EphemeralCertificate{}, err
	}

	cert, err := parsePEMCertificate(certPEM)
	if err != nil {
		return EphemeralCertificate{}, &ParseError{Instance: req.ID.String(), Cause: err}
	}
	return EphemeralCertificate{Cert: cert, NotAfter: cert.NotAfter}, nil
}

func parsePEMCertificate(pemStr string) (*x509.Certificate, error) {
	block, _ := pem.Decode([]byte(pemStr))
	if block == nil {
		return nil, errors.New("no PEM block found")
	}
	return x509.ParseCertificate(block.Bytes)
}

func isNetworkError(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var urlErr *url.Error
	return errors.As(err, &urlErr)
}

// remapAdminAPIError maps accessNotConfigured -> APIDisabledError,
// notAuthorized -> NotAuthorizedError, everything else -> RefreshFailedError
// with the cause preserved. TransportError, ValidationError, and ParseError
// pass through unchanged since they were already classified by the fetcher
// or minter.
func remapAdminAPIError(id ID, err error) error {
	var transportErr *TransportError
	if errors.As(err, &transportErr) {
		return err
	}
	var validationErr *ValidationError
	if errors.As(err, &validationErr) {
		return err
	}
	var parseErr *ParseError
	if errors.As(err, &parseErr) {
		return err
	}

	var apiErr *adminapi.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Reason {
		case adminapi.ReasonAccessNotConfigured:
			return &APIDisabledError{Project: id.Project, Cause: err}
		case adminapi.ReasonNotAuthorized:
			return &NotAuthorizedError{Instance: id.String(), Project: id.Project, Cause: err}
		}
	}

	return &RefreshFailedError{Instance: id.String(), Cause: err}
}
