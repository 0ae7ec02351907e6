package openrouter

import "testing"

func TestValidateBaseURL(t *testing.T) {
	tests := []struct {
		name         string
		baseURL      string
		allowedHosts []string
		wantErr      bool
	}{
		{name: "empty falls back to default", baseURL: ""},
		{name: "default host with https", baseURL: "https://openrouter.ai/"},
		{name: "default api host with https", baseURL: "https://api.openrouter.ai"},
		{name: "reject non-absolute URL", baseURL: "openrouter.ai", wantErr: true},
		{name: "reject http by default", baseURL: "http://openrouter.ai", wantErr: true},
		{name: "reject unknown host by default", baseURL: "https://evil.example", wantErr: true},
		{name: "allow configured host", baseURL: "https://proxy.internal", allowedHosts: []string{"proxy.internal"}},
		{name: "allow configured host with port", baseURL: "https://proxy.internal:8443", allowedHosts: []string{"https://proxy.internal:8443/"}},
		{name: "allow http loopback when listed", baseURL: "http://127.0.0.1:8080", allowedHosts: []string{"127.0.0.1"}},
		{name: "reject http for listed non-loopback", baseURL: "http://proxy.internal", allowedHosts: []string{"proxy.internal"}, wantErr: true},
		{name: "reject userinfo", baseURL: "https://user:pw@openrouter.ai", wantErr: true},
		{name: "reject query", baseURL: "https://openrouter.ai?x=1", wantErr: true},
		{name: "reject ftp", baseURL: "ftp://openrouter.ai", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateBaseURL(tt.baseURL, tt.allowedHosts)
			if tt.wantErr && err == nil {
				t.Fatalf("expected error, got nil")
			}
			if !tt.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestNormalizeAllowedHosts_DefaultWhenEmpty(t *testing.T) {
	out := normalizeAllowedHosts([]string{" ", "https://", "http://"})
	if len(out) != len(defaultAllowedHosts) {
		t.Fatalf("expected default allowed hosts, got %v", out)
	}
}

func TestSplitHosts(t *testing.T) {
	got := SplitHosts(" a.example , ,b.example:443,")
	if len(got) != 2 || got[0] != "a.example" || got[1] != "b.example:443" {
		t.Fatalf("unexpected hosts: %v", got)
	}
	if SplitHosts("") != nil {
		t.Fatalf("expected nil for empty value")
	}
}
