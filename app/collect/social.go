package collect

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/twincounty/digest/app/sources"
)

const (
	socialBaseURL = "https://api.brightdata.com/datasets/v3"

	facebookPostsDataset  = "gd_lfqw89hkdh82gx"
	instagramPostsDataset = "gd_lk5ns7kz21pck8"

	snapshotPollInterval = 5 * time.Second
	snapshotMaxWait      = 5 * time.Minute
)

// SocialCollector fetches account posts through the Bright Data dataset API.
// The API is asynchronous: a trigger call returns a snapshot id which is
// polled until the scrape is ready.
type SocialCollector struct {
	source     sources.SocialSource
	httpClient *http.Client
	apiKey     string
	maxItems   int
}

func NewSocialCollector(source sources.SocialSource, httpClient *http.Client, apiKey string, maxItems int) *SocialCollector {
	return &SocialCollector{
		source:     source,
		httpClient: httpClient,
		apiKey:     apiKey,
		maxItems:   maxItems,
	}
}

func (c *SocialCollector) Configured() bool {
	return c.apiKey != ""
}

func (c *SocialCollector) Collect(ctx context.Context) ([]Candidate, error) {
	if !c.Configured() {
		return nil, fmt.Errorf("social scraping API key not configured")
	}

	snapshotID, err := c.trigger(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to trigger social scrape: %w", err)
	}

	posts, err := c.waitForResults(ctx, snapshotID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch social scrape results: %w", err)
	}

	var candidates []Candidate
	for _, post := range posts {
		if c.maxItems > 0 && len(candidates) >= c.maxItems {
			break
		}
		candidate, ok := c.parsePost(post)
		if ok {
			candidates = append(candidates, candidate)
		}
	}

	return candidates, nil
}

type socialPost struct {
	URL         string      `json:"url"`
	PostURL     string      `json:"post_url"`
	Link        string      `json:"link"`
	Text        string      `json:"text"`
	Caption     string      `json:"caption"`
	Message     string      `json:"message"`
	Date        string      `json:"date"`
	Timestamp   json.Number `json:"timestamp"`
	ImageURL    string      `json:"image_url"`
	Thumbnail   string      `json:"thumbnail_url"`
	FullPicture string      `json:"full_picture"`
}

func (c *SocialCollector) trigger(ctx context.Context) (string, error) {
	var datasetID, filter string
	switch c.source.Platform {
	case "facebook":
		datasetID = facebookPostsDataset
		filter = "page_id:" + c.source.AccountID
	case "instagram":
		datasetID = instagramPostsDataset
		filter = "username:" + c.source.AccountID
	default:
		return "", fmt.Errorf("unknown platform %q", c.source.Platform)
	}

	payload, err := json.Marshal(map[string]interface{}{
		"dataset_id":           datasetID,
		"include_errors":       false,
		"format":               "json",
		"uncompressed_webhook": true,
		"filter":               filter,
		"limit_per_input":      c.maxItems,
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode trigger payload: %w", err)
	}

	var result struct {
		SnapshotID string `json:"snapshot_id"`
	}
	if err := c.doJSON(ctx, "POST", socialBaseURL+"/trigger", payload, &result); err != nil {
		return "", err
	}
	if result.SnapshotID == "" {
		return "", fmt.Errorf("trigger response missing snapshot id")
	}

	return result.SnapshotID, nil
}

func (c *SocialCollector) waitForResults(ctx context.Context, snapshotID string) ([]socialPost, error) {
	deadline := time.Now().Add(snapshotMaxWait)

	for time.Now().Before(deadline) {
		var status struct {
			Status string `json:"status"`
			Error  string `json:"error"`
		}
		if err := c.doJSON(ctx, "GET", socialBaseURL+"/snapshot/"+snapshotID, nil, &status); err != nil {
			return nil, err
		}

		switch status.Status {
		case "ready":
			var posts []socialPost
			if err := c.doJSON(ctx, "GET", socialBaseURL+"/snapshot/"+snapshotID+"/data", nil, &posts); err != nil {
				return nil, err
			}
			return posts, nil
		case "failed":
			return nil, fmt.Errorf("scrape failed: %s", status.Error)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(snapshotPollInterval):
		}
	}

	return nil, fmt.Errorf("scrape timed out after %s", snapshotMaxWait)
}

func (c *SocialCollector) doJSON(ctx context.Context, method, url string, body []byte, out interface{}) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("API error (%d): %s", resp.StatusCode, string(data))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func (c *SocialCollector) parsePost(post socialPost) (Candidate, bool) {
	content := firstNonEmpty(post.Text, post.Caption, post.Message)
	if len(content) < 10 {
		return Candidate{}, false
	}

	url := firstNonEmpty(post.URL, post.PostURL, post.Link)
	if url == "" {
		url = fmt.Sprintf("https://www.%s.com/%s", c.source.Platform, c.source.AccountID)
	}

	candidate := Candidate{
		URL:            url,
		SourceName:     c.source.SourceName(),
		SourceKind:     string(sources.KindSocial),
		SourcePlatform: c.source.Platform,
		Body:           content,
		ImageURL:       firstNonEmpty(post.ImageURL, post.Thumbnail, post.FullPicture),
		County:         c.source.SourceCounty(),
	}

	if post.Date != "" {
		if parsed, err := time.Parse(time.RFC3339, post.Date); err == nil {
			candidate.PublishedAt = &parsed
		}
	} else if post.Timestamp != "" {
		if unix, err := post.Timestamp.Int64(); err == nil {
			parsed := time.Unix(unix, 0).UTC()
			candidate.PublishedAt = &parsed
		}
	}

	return candidate, true
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
