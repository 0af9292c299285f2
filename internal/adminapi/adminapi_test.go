package adminapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestConnectSettings(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Fatalf("method = %s, want GET", r.Method)
		}
		if got, want := r.URL.Path, "/projects/my-proj/instances/us-central1~db1/connectSettings"; got != want {
			t.Fatalf("path = %q, want %q", got, want)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"region":      "us-central1",
			"backendType": "SECOND_GEN",
			"ipAddresses": []map[string]string{
				{"type": "PRIMARY", "ipAddress": "1.2.3.4"},
				{"type": "PRIVATE", "ipAddress": "10.0.0.1"},
			},
			"serverCaCert": map[string]string{"cert": "-----BEGIN CERTIFICATE-----\n...\n-----END CERTIFICATE-----\n"},
		})
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL))
	got, err := c.ConnectSettings(context.Background(), "my-proj", "us-central1~db1")
	if err != nil {
		t.Fatalf("ConnectSettings: %v", err)
	}
	if got.Region != "us-central1" {
		t.Fatalf("Region = %q, want us-central1", got.Region)
	}
	if got.BackendType != "SECOND_GEN" {
		t.Fatalf("BackendType = %q, want SECOND_GEN", got.BackendType)
	}
	if got.IPAddresses["PRIMARY"] != "1.2.3.4" || got.IPAddresses["PRIVATE"] != "10.0.0.1" {
		t.Fatalf("IPAddresses = %+v", got.IPAddresses)
	}
}

func TestConnectSettingsErrorResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{
				"message": "Cloud SQL Admin API has not been used",
				"errors":  []map[string]string{{"reason": ReasonAccessNotConfigured}},
			},
		})
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL))
	_, err := c.ConnectSettings(context.Background(), "p", "r~i")
	if err == nil {
		t.Fatal("want error, got nil")
	}
	apiErr, ok := err.(*APIError)
	if !ok {
		t.Fatalf("got %T, want *APIError", err)
	}
	if apiErr.StatusCode != http.StatusForbidden {
		t.Fatalf("StatusCode = %d, want 403", apiErr.StatusCode)
	}
	if apiErr.Reason != ReasonAccessNotConfigured {
		t.Fatalf("Reason = %q, want %q", apiErr.Reason, ReasonAccessNotConfigured)
	}
}

func TestGenerateEphemeralCert(t *testing.T) {
	var gotBody map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Fatalf("method = %s, want POST", r.Method)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Fatal(err)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"ephemeralCert": map[string]string{"cert": "-----BEGIN CERTIFICATE-----\n...\n-----END CERTIFICATE-----\n"},
		})
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL))
	cert, err := c.GenerateEphemeralCert(context.Background(), "p", "r~i", "PEMKEY", "iam-token")
	if err != nil {
		t.Fatalf("GenerateEphemeralCert: %v", err)
	}
	if cert == "" {
		t.Fatal("empty cert returned")
	}
	if gotBody["public_key"] != "PEMKEY" {
		t.Fatalf("public_key = %q, want PEMKEY", gotBody["public_key"])
	}
	if gotBody["access_token"] != "iam-token" {
		t.Fatalf("access_token = %q, want iam-token", gotBody["access_token"])
	}
}

func TestGenerateEphemeralCertNoAccessToken(t *testing.T) {
	var gotBody map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&gotBody)
		json.NewEncoder(w).Encode(map[string]any{
			"ephemeralCert": map[string]string{"cert": "cert-pem"},
		})
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL))
	if _, err := c.GenerateEphemeralCert(context.Background(), "p", "r~i", "PEMKEY", ""); err != nil {
		t.Fatal(err)
	}
	if _, ok := gotBody["access_token"]; ok {
		t.Fatal("access_token should be omitted when empty")
	}
}

func TestWithBearerToken(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		json.NewEncoder(w).Encode(map[string]any{"region": "us-central1", "backendType": "SECOND_GEN"})
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL), WithBearerToken(func(ctx context.Context) (string, error) {
		return "caller-token", nil
	}))
	if _, err := c.ConnectSettings(context.Background(), "p", "r~i"); err != nil {
		t.Fatal(err)
	}
	if gotAuth != "Bearer caller-token" {
		t.Fatalf("Authorization = %q, want %q", gotAuth, "Bearer caller-token")
	}
}
