package instance

import "testing"

func TestTrimAccessToken(t *testing.T) {
	tests := []struct {
		name  string
		token string
		want  string
	}{
		{"no dots", "ya29.abc123", "ya29.abc123"},
		{"single trailing dot", "ya29.abc123.", "ya29.abc123"},
		{"multiple trailing dots", "ya29.abc123...", "ya29.abc123"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := trimAccessToken(tt.token); got != tt.want {
				t.Fatalf("trimAccessToken(%q) = %q, want %q", tt.token, got, tt.want)
			}
		})
	}
}
