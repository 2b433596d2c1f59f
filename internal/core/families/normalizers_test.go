package families

import "testing"

func TestNormalizeCounty(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"台東縣", "臺東縣"},
		{" 台北市 ", "臺北市"},
		{"臺中市", "臺中市"},
		{"花蓮縣", "花蓮縣"},
		{"台灣大道", "台灣大道"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := NormalizeCounty(tt.in); got != tt.want {
				t.Errorf("NormalizeCounty(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNormalizeEmail(t *testing.T) {
	if got := NormalizeEmail("  Alice@Example.ORG "); got != "alice@example.org" {
		t.Errorf("NormalizeEmail() = %q, want alice@example.org", got)
	}
}
