package endpoint

import "testing"

func TestResolve(t *testing.T) {
	tests := []struct {
		name     string
		origin   string
		expected string
	}{
		{"empty origin", "", DefaultBaseURL},
		{"http origin", "http://monitor.local:8080", "http://monitor.local:8080"},
		{"page address keeps only origin", "https://monitor.example.com/app/index.html?x=1", "https://monitor.example.com"},
		{"file scheme", "file:///home/user/index.html", DefaultBaseURL},
		{"uppercase file scheme", "FILE:///C:/index.html", DefaultBaseURL},
		{"no scheme", "monitor.local:8080", DefaultBaseURL},
		{"unparseable", "://bad", DefaultBaseURL},
		{"whitespace", "  http://127.0.0.1:9000  ", "http://127.0.0.1:9000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Resolve(tt.origin); got != tt.expected {
				t.Errorf("Resolve(%q) = %q, expected %q", tt.origin, got, tt.expected)
			}
		})
	}
}

func TestBaseURL(t *testing.T) {
	if got := BaseURL("http://api.internal:8000/", "http://ignored"); got != "http://api.internal:8000" {
		t.Errorf("Expected override to win, got %q", got)
	}
	if got := BaseURL("", "http://page.local"); got != "http://page.local" {
		t.Errorf("Expected resolved origin, got %q", got)
	}
	if got := BaseURL("  ", ""); got != DefaultBaseURL {
		t.Errorf("Expected default, got %q", got)
	}
}
