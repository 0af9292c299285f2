package instance

import (
	"context"
	"crypto/x509"
	"fmt"
)

// Well-known IP type labels returned by the admin API. The set is not
// exhaustive: Metadata.IPAddresses may carry labels not listed here (e.g.
// "PSC" for Private Service Connect) and callers may request any label.
const (
	IPTypePrimary = "PRIMARY"
	IPTypePrivate = "PRIVATE"
	IPTypePublic  = "PUBLIC"
	IPTypePSC     = "PSC"

	backendTypeSecondGen = "SECOND_GEN"
)

// Metadata is the validated result of one admin-API ConnectSettings call.
type Metadata struct {
	IPAddresses  map[string]string
	ServerCACert *x509.Certificate
}

// MetadataFetcher retrieves instance metadata from the admin API. It is
// stateless: it performs no retries itself, and callers classify the
// returned error using errors.As against TransportError, ValidationError,
// or ParseError.
type MetadataFetcher interface {
	FetchMetadata(ctx context.Context, id ID) (Metadata, error)
}

// validateMetadata enforces the invariants a manager depends on: region
// must match, backend type must be SECOND_GEN, and at least one IP address
// must be present. It never returns a TransportError or ParseError; those
// are the fetcher's responsibility to produce or not produce.
func validateMetadata(id ID, region, backendType string, md Metadata) error {
	if region != id.Region {
		return &ValidationError{
			Instance: id.String(),
			Reason:   fmt.Sprintf("metadata region %q does not match requested region %q", region, id.Region),
		}
	}
	if backendType != backendTypeSecondGen {
		return &ValidationError{
			Instance: id.String(),
			Reason:   fmt.Sprintf("unsupported backend type %q, expected %q", backendType, backendTypeSecondGen),
		}
	}
	if len(md.IPAddresses) == 0 {
		return &ValidationError{
			Instance: id.String(),
			Reason:   "no IP addresses in metadata",
		}
	}
	return nil
}
