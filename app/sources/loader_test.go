package sources

import (
	"os"
	"path/filepath"
	"testing"
)

func writeSourceFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write source file: %v", err)
	}
}

func TestLoadAll_MixedKinds(t *testing.T) {
	dir := t.TempDir()
	writeSourceFile(t, dir, "local.yaml", `
news:
  - name: rocky_mount_telegram
    display_name: Rocky Mount Telegram
    county: nash
    url: https://www.rockymounttelegram.com
    feed_url: https://www.rockymounttelegram.com/feed
council:
  - name: nashville_council
    display_name: Nashville Town Council
    county: nash
    url: https://www.townofnashville.com/meetings
social:
  - name: visit_wilson
    display_name: Visit Wilson
    county: wilson
    platform: facebook
    account_id: "1234567890"
    is_active: false
`)

	loaded, err := NewLoader(dir).LoadAll()
	if err != nil {
		t.Fatalf("LoadAll failed: %v", err)
	}
	if len(loaded) != 3 {
		t.Fatalf("Expected 3 sources, got %d", len(loaded))
	}

	news, ok := loaded[0].(NewsSource)
	if !ok {
		t.Fatalf("Expected first source to be NewsSource, got %T", loaded[0])
	}
	if news.SourceKind() != KindNews || news.SourceCounty() != CountyNash {
		t.Errorf("Unexpected news source fields: kind=%s county=%s", news.SourceKind(), news.SourceCounty())
	}
	if !news.Active() {
		t.Error("Active should default to true when omitted")
	}

	council, ok := loaded[1].(CouncilSource)
	if !ok {
		t.Fatalf("Expected second source to be CouncilSource, got %T", loaded[1])
	}
	if council.MinutesSelector != defaultMinutesSelector {
		t.Errorf("Expected default minutes selector, got %q", council.MinutesSelector)
	}

	social, ok := loaded[2].(SocialSource)
	if !ok {
		t.Fatalf("Expected third source to be SocialSource, got %T", loaded[2])
	}
	if social.Active() {
		t.Error("Expected social source to be inactive")
	}
}

func TestLoadAll_MissingDirectory(t *testing.T) {
	loaded, err := NewLoader("/nonexistent/sources").LoadAll()
	if err != nil {
		t.Fatalf("Missing directory should not be an error, got %v", err)
	}
	if len(loaded) != 0 {
		t.Errorf("Expected no sources, got %d", len(loaded))
	}
}

func TestLoadAll_Invalid(t *testing.T) {
	cases := map[string]string{
		"missing feed url": `
news:
  - name: a
    display_name: A
    url: https://a.example.com
`,
		"bad county": `
news:
  - name: a
    display_name: A
    county: durham
    url: https://a.example.com
    feed_url: https://a.example.com/feed
`,
		"council without county": `
council:
  - name: b
    display_name: B
    url: https://b.example.com
`,
		"bad platform": `
social:
  - name: c
    display_name: C
    platform: myspace
    account_id: "1"
`,
	}

	for name, content := range cases {
		dir := t.TempDir()
		writeSourceFile(t, dir, "bad.yaml", content)
		if _, err := NewLoader(dir).LoadAll(); err == nil {
			t.Errorf("Expected %s to fail validation", name)
		}
	}
}

func TestLoadAll_DuplicateNames(t *testing.T) {
	dir := t.TempDir()
	writeSourceFile(t, dir, "dupes.yaml", `
news:
  - name: same
    display_name: One
    url: https://one.example.com
    feed_url: https://one.example.com/feed
  - name: same
    display_name: Two
    url: https://two.example.com
    feed_url: https://two.example.com/feed
`)

	if _, err := NewLoader(dir).LoadAll(); err == nil {
		t.Error("Expected duplicate source names to be rejected")
	}
}
