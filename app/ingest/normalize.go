package ingest

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"strings"
)

// Exact-match query parameters dropped during normalization. Parameters
// starting with "utm_" are dropped as well.
var trackingParams = map[string]bool{
	"fbclid": true,
	"gclid":  true,
	"ref":    true,
	"source": true,
}

// NormalizeURL canonicalizes a content URL so that tracking-parameter and
// formatting variants of the same page collapse to one form. Relative URLs
// are resolved against base.
func NormalizeURL(raw string, base string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("empty URL")
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("failed to parse URL %q: %w", raw, err)
	}

	if !u.IsAbs() {
		if base == "" {
			return "", fmt.Errorf("relative URL %q with no base", raw)
		}
		b, err := url.Parse(base)
		if err != nil {
			return "", fmt.Errorf("failed to parse base URL %q: %w", base, err)
		}
		u = b.ResolveReference(u)
	}

	query := u.Query()
	for param := range query {
		if trackingParams[param] || strings.HasPrefix(param, "utm_") {
			query.Del(param)
		}
	}
	u.RawQuery = query.Encode()
	u.Fragment = ""

	normalized := strings.ToLower(u.String())
	normalized = strings.TrimSuffix(normalized, "/")

	return normalized, nil
}

// Fingerprint returns the stable identity hash of a normalized URL.
func Fingerprint(normalizedURL string) string {
	sum := sha256.Sum256([]byte(normalizedURL))
	return hex.EncodeToString(sum[:])
}
