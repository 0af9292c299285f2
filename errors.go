package cloudsql

import "github.com/lstoll/cloudsql-connector/internal/instance"

// Error types surfaced by Instance and Dialer methods, aliased from
// internal/instance so callers can errors.As against a stable public path
// without a duplicate definition or an import cycle between the public API
// and this package.
type (
	InvalidIdentifierError = instance.InvalidIdentifierError
	RefreshFailedError     = instance.RefreshFailedError
	APIDisabledError       = instance.APIDisabledError
	NotAuthorizedError     = instance.NotAuthorizedError
	ValidationError        = instance.ValidationError
	ParseError             = instance.ParseError
	CryptoError            = instance.CryptoError
	NoMatchingIPError      = instance.NoMatchingIPError
	TLS13UnavailableError  = instance.TLS13UnavailableError
	TransportError         = instance.TransportError
)

// ManagerStats is a snapshot of an Instance's refresh history, aliased from
// internal/instance for the same reason as the error types above.
type ManagerStats = instance.ManagerStats
