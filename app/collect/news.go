package collect

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/mmcdole/gofeed"

	"github.com/twincounty/digest/app/sources"
)

// NewsCollector reads one news source's RSS/Atom feed and yields its recent
// entries as candidates.
type NewsCollector struct {
	source     sources.NewsSource
	httpClient *http.Client
	parser     *gofeed.Parser
	extractor  *Extractor
	userAgent  string
	maxItems   int
}

func NewNewsCollector(source sources.NewsSource, httpClient *http.Client, userAgent string, maxItems int) *NewsCollector {
	return &NewsCollector{
		source:     source,
		httpClient: httpClient,
		parser:     gofeed.NewParser(),
		extractor:  NewExtractor(),
		userAgent:  userAgent,
		maxItems:   maxItems,
	}
}

func (c *NewsCollector) Collect(ctx context.Context) ([]Candidate, error) {
	data, err := fetch(ctx, c.httpClient, c.userAgent, c.source.FeedURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch feed: %w", err)
	}

	feed, err := c.parser.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed: %w", err)
	}

	candidates := make([]Candidate, 0, len(feed.Items))
	for _, item := range feed.Items {
		if c.maxItems > 0 && len(candidates) >= c.maxItems {
			break
		}
		if item.Link == "" {
			continue
		}

		candidate := Candidate{
			URL:         item.Link,
			BaseURL:     c.source.URL,
			SourceName:  c.source.SourceName(),
			SourceKind:  string(sources.KindNews),
			Title:       item.Title,
			Body:        c.itemBody(ctx, item),
			PublishedAt: item.PublishedParsed,
			County:      c.source.SourceCounty(),
		}
		if item.Image != nil {
			candidate.ImageURL = item.Image.URL
		}
		if len(item.Authors) > 0 {
			candidate.Author = item.Authors[0].Name
		}

		candidates = append(candidates, candidate)
	}

	return candidates, nil
}

// itemBody prefers the full article page when the source is configured for
// body fetching, falling back to whatever the feed entry carries.
func (c *NewsCollector) itemBody(ctx context.Context, item *gofeed.Item) string {
	if c.source.FetchBody && item.Link != "" {
		page, err := fetch(ctx, c.httpClient, c.userAgent, item.Link)
		if err == nil {
			body, err := c.extractor.Run(page, item.Link)
			if err == nil {
				return body
			}
			slog.Debug("Article extraction failed, using feed content", "url", item.Link, "error", err)
		} else {
			slog.Debug("Article fetch failed, using feed content", "url", item.Link, "error", err)
		}
	}

	if item.Content != "" {
		return item.Content
	}
	return item.Description
}
