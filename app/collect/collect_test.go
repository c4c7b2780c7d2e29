package collect

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/twincounty/digest/app/sources"
)

const testFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>Test Paper</title>
    <link>https://testpaper.com</link>
    <item>
      <title>First Story</title>
      <link>https://testpaper.com/news/first</link>
      <description>First story description</description>
      <pubDate>Mon, 24 Aug 2026 10:00:00 GMT</pubDate>
    </item>
    <item>
      <title>Second Story</title>
      <link>https://testpaper.com/news/second</link>
      <description>Second story description</description>
    </item>
    <item>
      <title>Third Story</title>
      <link>https://testpaper.com/news/third</link>
      <description>Third story description</description>
    </item>
  </channel>
</rss>`

func TestNewsCollector(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		w.Write([]byte(testFeed))
	}))
	defer server.Close()

	source := sources.NewsSource{URL: "https://testpaper.com", FeedURL: server.URL}
	collector := NewNewsCollector(source, server.Client(), "test-agent", 2)

	candidates, err := collector.Collect(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(candidates) != 2 {
		t.Fatalf("expected max 2 candidates, got %d", len(candidates))
	}
	if candidates[0].Title != "First Story" {
		t.Errorf("expected First Story, got %q", candidates[0].Title)
	}
	if candidates[0].URL != "https://testpaper.com/news/first" {
		t.Errorf("unexpected URL %q", candidates[0].URL)
	}
	if candidates[0].Body != "First story description" {
		t.Errorf("expected feed description as body, got %q", candidates[0].Body)
	}
	if candidates[0].PublishedAt == nil {
		t.Error("expected published date to be parsed")
	}
	if candidates[0].SourceKind != "news" {
		t.Errorf("expected news kind, got %q", candidates[0].SourceKind)
	}
}

func TestNewsCollectorFeedError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	source := sources.NewsSource{URL: "https://testpaper.com", FeedURL: server.URL}
	collector := NewNewsCollector(source, server.Client(), "test-agent", 10)

	if _, err := collector.Collect(context.Background()); err == nil {
		t.Error("expected error for server failure")
	}
}

const testCouncilPage = `<html><body>
  <div class="documents">
    <a href="/minutes/2026-08-meeting.pdf">August Meeting Minutes</a>
    <a href="/minutes/2026-07-meeting.pdf">July Meeting Minutes</a>
    <a href="/contact">Contact Us</a>
  </div>
</body></html>`

func TestCouncilCollector(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(testCouncilPage))
	}))
	defer server.Close()

	source := sources.CouncilSource{
		URL:             server.URL,
		MinutesSelector: "a[href*='minute']",
	}
	collector := NewCouncilCollector(source, server.Client(), "test-agent", 10)

	candidates, err := collector.Collect(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(candidates) != 2 {
		t.Fatalf("expected 2 minutes links, got %d", len(candidates))
	}
	if candidates[0].Title != "August Meeting Minutes" {
		t.Errorf("unexpected title %q", candidates[0].Title)
	}
	if candidates[0].URL != "/minutes/2026-08-meeting.pdf" {
		t.Errorf("unexpected URL %q", candidates[0].URL)
	}
	if candidates[0].BaseURL != server.URL {
		t.Errorf("expected base URL %q, got %q", server.URL, candidates[0].BaseURL)
	}
	if candidates[0].SourceKind != "council" {
		t.Errorf("expected council kind, got %q", candidates[0].SourceKind)
	}
}

func TestSocialCollectorUnconfigured(t *testing.T) {
	source := sources.SocialSource{Platform: "facebook", AccountID: "townpage"}
	collector := NewSocialCollector(source, http.DefaultClient, "", 10)

	if collector.Configured() {
		t.Error("expected collector without API key to report unconfigured")
	}
	if _, err := collector.Collect(context.Background()); err == nil {
		t.Error("expected error collecting without API key")
	}
}

func TestSocialCollectorParsePost(t *testing.T) {
	source := sources.SocialSource{Platform: "instagram", AccountID: "townpage"}
	collector := NewSocialCollector(source, http.DefaultClient, "key", 10)

	candidate, ok := collector.parsePost(socialPost{
		URL:     "https://instagram.com/p/abc",
		Caption: "Community festival this Saturday at the park!",
	})
	if !ok {
		t.Fatal("expected post to parse")
	}
	if candidate.Body != "Community festival this Saturday at the park!" {
		t.Errorf("unexpected body %q", candidate.Body)
	}
	if candidate.SourcePlatform != "instagram" {
		t.Errorf("unexpected platform %q", candidate.SourcePlatform)
	}

	if _, ok := collector.parsePost(socialPost{Caption: "short"}); ok {
		t.Error("expected short post to be skipped")
	}
}
