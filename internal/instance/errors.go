package instance

import "fmt"

// InvalidIdentifierError reports that a connection name did not match the
// "project[:subproject]:region:instance" grammar. It is a programming error:
// callers should fix the connection name rather than retry.
type InvalidIdentifierError struct {
	Value string
}

func (e *InvalidIdentifierError) Error() string {
	return fmt.Sprintf("instance: invalid connection name %q, expected project:region:instance", e.Value)
}

// ValidationError reports that the admin API returned metadata that fails
// the invariants required of it (wrong region, wrong backend type, no IP
// addresses). It fails only the refresh that produced it.
type ValidationError struct {
	Instance string
	Reason   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("instance %s: invalid metadata: %s", e.Instance, e.Reason)
}

// ParseError reports that a certificate returned by the admin API could not
// be decoded as X.509.
type ParseError struct {
	Instance string
	Cause    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("instance %s: parse certificate: %v", e.Instance, e.Cause)
}

func (e *ParseError) Unwrap() error { return e.Cause }

// CryptoError reports that assembling a TLS configuration from the key
// pair, ephemeral certificate, and server CA failed.
type CryptoError struct {
	Instance string
	Cause    error
}

func (e *CryptoError) Error() string {
	return fmt.Sprintf("instance %s: assemble TLS config: %v", e.Instance, e.Cause)
}

func (e *CryptoError) Unwrap() error { return e.Cause }

// TLS13UnavailableError reports that a manager with IAM authentication
// enabled could not negotiate TLS 1.3, which IAM auth requires.
type TLS13UnavailableError struct {
	Instance string
}

func (e *TLS13UnavailableError) Error() string {
	return fmt.Sprintf("instance %s: TLS 1.3 is unavailable but is required when IAM authentication is enabled", e.Instance)
}

// NoMatchingIPError reports that none of the caller's preferred IP types
// were present in the instance's metadata.
type NoMatchingIPError struct {
	Instance       string
	PreferredTypes []string
}

func (e *NoMatchingIPError) Error() string {
	return fmt.Sprintf("instance %s: no IP address found matching preferred types %v", e.Instance, e.PreferredTypes)
}

// APIDisabledError is the remapped form of an admin-API "accessNotConfigured"
// error: the Cloud SQL Admin API is not enabled on the caller's project.
type APIDisabledError struct {
	Project string
	Cause   error
}

func (e *APIDisabledError) Error() string {
	return fmt.Sprintf(
		"instance: Cloud SQL Admin API is not enabled for project %q, or it is not billing-enabled; "+
			"enable it at https://console.cloud.google.com/apis/api/sqladmin/overview?project=%s",
		e.Project, e.Project,
	)
}

func (e *APIDisabledError) Unwrap() error { return e.Cause }

// NotAuthorizedError is the remapped form of an admin-API "notAuthorized"
// error: the caller lacks permission on the instance, or it does not exist.
type NotAuthorizedError struct {
	Instance string
	Project  string
	Cause    error
}

func (e *NotAuthorizedError) Error() string {
	return fmt.Sprintf(
		"instance: %s was not found in project %s, or the caller is not authorized to connect to it",
		e.Instance, e.Project,
	)
}

func (e *NotAuthorizedError) Unwrap() error { return e.Cause }

// RefreshFailedError is the umbrella error for admin-API or transport
// failures that do not match a more specific remapping.
type RefreshFailedError struct {
	Instance string
	Cause    error
}

func (e *RefreshFailedError) Error() string {
	return fmt.Sprintf("instance %s: refresh failed: %v", e.Instance, e.Cause)
}

func (e *RefreshFailedError) Unwrap() error { return e.Cause }

// TransportError marks a MetadataFetcher/CertMinter failure as network- or
// HTTP-transport-level, hence worth retrying on the next scheduled refresh.
type TransportError struct {
	Cause error
}

func (e *TransportError) Error() string { return fmt.Sprintf("transport error: %v", e.Cause) }
func (e *TransportError) Unwrap() error { return e.Cause }
