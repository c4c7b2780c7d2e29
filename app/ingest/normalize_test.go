package ingest

import (
	"testing"
)

func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		base     string
		expected string
	}{
		{
			name:     "strips utm parameters",
			raw:      "https://x.com/a?utm_source=fb&utm_medium=social",
			expected: "https://x.com/a",
		},
		{
			name:     "strips fbclid and gclid",
			raw:      "https://example.com/story?fbclid=abc&gclid=def&id=5",
			expected: "https://example.com/story?id=5",
		},
		{
			name:     "strips ref and source",
			raw:      "https://example.com/post?ref=homepage&source=rss",
			expected: "https://example.com/post",
		},
		{
			name:     "resolves relative against base",
			raw:      "/news/story-1",
			base:     "https://wilsontimes.com",
			expected: "https://wilsontimes.com/news/story-1",
		},
		{
			name:     "strips trailing slash",
			raw:      "https://example.com/page/",
			expected: "https://example.com/page",
		},
		{
			name:     "lowercases",
			raw:      "HTTPS://Example.COM/News",
			expected: "https://example.com/news",
		},
		{
			name:     "trims whitespace",
			raw:      "  https://example.com/a  ",
			expected: "https://example.com/a",
		},
		{
			name:     "strips fragment",
			raw:      "https://example.com/a#section-2",
			expected: "https://example.com/a",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeURL(tt.raw, tt.base)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, got)
			}
		})
	}
}

func TestNormalizeURLErrors(t *testing.T) {
	if _, err := NormalizeURL("", ""); err == nil {
		t.Error("expected error for empty URL")
	}
	if _, err := NormalizeURL("/relative/path", ""); err == nil {
		t.Error("expected error for relative URL with no base")
	}
}

func TestFingerprintStable(t *testing.T) {
	a, _ := NormalizeURL("https://x.com/a?utm_source=fb", "")
	b, _ := NormalizeURL("https://x.com/a", "")

	if a != b {
		t.Fatalf("expected tracking variants to normalize identically: %q vs %q", a, b)
	}
	if Fingerprint(a) != Fingerprint(b) {
		t.Error("expected identical fingerprints for identical normalized URLs")
	}
	if len(Fingerprint(a)) != 64 {
		t.Errorf("expected 64-char hex fingerprint, got %d chars", len(Fingerprint(a)))
	}
}
