// Package adminapi implements the client half of the Cloud SQL Admin API
// calls the connector needs: connect.get and connect.generateEphemeralCert.
// It's a plain net/http client with a JSON request/response body.
package adminapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

func jsonReader(body []byte) io.Reader { return bytes.NewReader(body) }

const defaultBaseURL = "https://sqladmin.googleapis.com/sql/v1beta4"

// Reason codes the admin API embeds in error responses that the core
// remaps to friendlier errors.
const (
	ReasonAccessNotConfigured = "accessNotConfigured"
	ReasonNotAuthorized       = "notAuthorized"
)

// APIError is a structured admin-API error response, carrying the reason
// code the core's remapping logic switches on.
type APIError struct {
	StatusCode int
	Reason     string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("admin api: %s (status %d, reason %s)", e.Message, e.StatusCode, e.Reason)
}

// ipAddress is one entry of ConnectSettings.ipAddresses.
type ipAddress struct {
	Type      string `json:"type"`
	IPAddress string `json:"ipAddress"`
}

type serverCACert struct {
	Cert string `json:"cert"`
}

// connectSettingsResponse mirrors the admin API's ConnectSettings shape.
type connectSettingsResponse struct {
	Region       string       `json:"region"`
	BackendType  string       `json:"backendType"`
	IPAddresses  []ipAddress  `json:"ipAddresses"`
	ServerCACert serverCACert `json:"serverCaCert"`
}

// generateEphemeralCertResponse mirrors the admin API's response to
// connect.generateEphemeralCert.
type generateEphemeralCertResponse struct {
	EphemeralCert struct {
		Cert string `json:"cert"`
	} `json:"ephemeralCert"`
}

// generateEphemeralCertRequest is the request body for
// connect.generateEphemeralCert.
type generateEphemeralCertRequest struct {
	PublicKey   string `json:"public_key"`
	AccessToken string `json:"access_token,omitempty"`
}

// ConnectSettings is the raw (unvalidated) result of connect.get, before
// internal/instance applies the region/backend-type/IP-count invariants.
type ConnectSettings struct {
	Region       string
	BackendType  string
	IPAddresses  map[string]string
	ServerCAPEM  string
}

// Client is a minimal HTTP client for the two admin-API operations the core
// invokes. It is stateless and safe for concurrent use across every
// Manager in a process.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	bearerToken func(ctx context.Context) (string, error)
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient overrides the default *http.Client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = hc }
}

// WithBaseURL overrides the default Cloud SQL Admin API base URL, mainly
// for tests against a local fixture server.
func WithBaseURL(url string) ClientOption {
	return func(c *Client) { c.baseURL = url }
}

// WithBearerToken supplies a function returning the bearer token attached
// to every admin-API request (the caller's own credentials, distinct from
// the per-connection IAM access token minted certificates may carry).
func WithBearerToken(fn func(ctx context.Context) (string, error)) ClientOption {
	return func(c *Client) { c.bearerToken = fn }
}

// NewClient returns an admin-API client.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    defaultBaseURL,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// ConnectSettings calls connect.get for the given project and
// region~instance resource path segment.
func (c *Client) ConnectSettings(ctx context.Context, project, regionalInstance string) (ConnectSettings, error) {
	url := fmt.Sprintf("%s/projects/%s/instances/%s/connectSettings", c.baseURL, project, regionalInstance)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return ConnectSettings{}, fmt.Errorf("new request: %w", err)
	}
	if err := c.attachAuth(ctx, req); err != nil {
		return ConnectSettings{}, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return ConnectSettings{}, fmt.Errorf("connect.get: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return ConnectSettings{}, parseAPIError(resp)
	}

	var out connectSettingsResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return ConnectSettings{}, fmt.Errorf("decode connectSettings: %w", err)
	}

	ips := make(map[string]string, len(out.IPAddresses))
	for _, ip := range out.IPAddresses {
		ips[ip.Type] = ip.IPAddress
	}

	return ConnectSettings{
		Region:      out.Region,
		BackendType: out.BackendType,
		IPAddresses: ips,
		ServerCAPEM: out.ServerCACert.Cert,
	}, nil
}

// GenerateEphemeralCert calls connect.generateEphemeralCert, attaching
// accessToken to the request when non-empty.
func (c *Client) GenerateEphemeralCert(ctx context.Context, project, regionalInstance, publicKeyPEM, accessToken string) (string, error) {
	url := fmt.Sprintf("%s/projects/%s/instances/%s:generateEphemeralCert", c.baseURL, project, regionalInstance)

	body, err := json.Marshal(generateEphemeralCertRequest{PublicKey: publicKeyPEM, AccessToken: accessToken})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, jsonReader(body))
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if err := c.attachAuth(ctx, req); err != nil {
		return "", err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("connect.generateEphemeralCert: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", parseAPIError(resp)
	}

	var out generateEphemeralCertResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode ephemeral cert: %w", err)
	}
	return out.EphemeralCert.Cert, nil
}

func (c *Client) attachAuth(ctx context.Context, req *http.Request) error {
	if c.bearerToken == nil {
		return nil
	}
	tok, err := c.bearerToken(ctx)
	if err != nil {
		return fmt.Errorf("admin api bearer token: %w", err)
	}
	if tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	return nil
}

func parseAPIError(resp *http.Response) error {
	var body struct {
		Error struct {
			Message string `json:"message"`
			Errors  []struct {
				Reason string `json:"reason"`
			} `json:"errors"`
		} `json:"error"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&body)

	reason := ""
	if len(body.Error.Errors) > 0 {
		reason = body.Error.Errors[0].Reason
	}
	return &APIError{StatusCode: resp.StatusCode, Reason: reason, Message: body.Error.Message}
}
