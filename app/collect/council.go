package collect

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/twincounty/digest/app/sources"
)

// CouncilCollector scrapes a government page for meeting minutes and agenda
// links matched by the source's CSS selector.
type CouncilCollector struct {
	source     sources.CouncilSource
	httpClient *http.Client
	userAgent  string
	maxItems   int
}

func NewCouncilCollector(source sources.CouncilSource, httpClient *http.Client, userAgent string, maxItems int) *CouncilCollector {
	return &CouncilCollector{
		source:     source,
		httpClient: httpClient,
		userAgent:  userAgent,
		maxItems:   maxItems,
	}
}

func (c *CouncilCollector) Collect(ctx context.Context) ([]Candidate, error) {
	data, err := fetch(ctx, c.httpClient, c.userAgent, c.source.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch council page: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse council page: %w", err)
	}

	var candidates []Candidate
	doc.Find(c.source.MinutesSelector).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		if c.maxItems > 0 && len(candidates) >= c.maxItems {
			return false
		}

		href, ok := sel.Attr("href")
		if !ok || href == "" {
			return true
		}

		title := strings.TrimSpace(sel.Text())
		if title == "" {
			title = fmt.Sprintf("%s document", c.source.SourceDisplayName())
		}

		candidates = append(candidates, Candidate{
			URL:        href,
			BaseURL:    c.source.URL,
			SourceName: c.source.SourceName(),
			SourceKind: string(sources.KindCouncil),
			Title:      title,
			Body:       title,
			County:     c.source.SourceCounty(),
		})
		return true
	})

	return candidates, nil
}
