package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/failsafe-go/failsafe-go"

	"github.com/twincounty/digest/app/resilience"
)

// APIError is a non-2xx response from the campaign provider.
type APIError struct {
	StatusCode int
	Detail     string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("campaign API returned status %d: %s", e.StatusCode, e.Detail)
}

// Campaign is the provider-side reference for one created campaign.
type Campaign struct {
	ID    string `json:"id"`
	WebID int64  `json:"web_id"`
}

// Report carries delivery metrics for a sent campaign.
type Report struct {
	EmailsSent int `json:"emails_sent"`
	Opens      struct {
		UniqueOpens int `json:"unique_opens"`
	} `json:"opens"`
	Clicks struct {
		UniqueClicks int `json:"unique_clicks"`
	} `json:"clicks"`
}

// Client talks to the Mailchimp marketing API. Transient provider failures
// are retried through the failsafe executor.
type Client struct {
	baseURL    string
	apiKey     string
	listID     string
	fromName   string
	replyTo    string
	httpClient *http.Client
	executor   failsafe.Executor[*http.Response]
}

func NewClient(serverPrefix, apiKey, listID, fromName, replyTo string, httpClient *http.Client, executor failsafe.Executor[*http.Response]) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		baseURL:    fmt.Sprintf("https://%s.api.mailchimp.com/3.0", serverPrefix),
		apiKey:     apiKey,
		listID:     listID,
		fromName:   fromName,
		replyTo:    replyTo,
		httpClient: httpClient,
		executor:   executor,
	}
}

func (c *Client) Configured() bool {
	return c.apiKey != "" && c.listID != ""
}

// CreateCampaign creates a campaign and uploads its content, returning the
// provider's campaign reference.
func (c *Client) CreateCampaign(ctx context.Context, subject, previewText, htmlContent, plainText string) (*Campaign, error) {
	payload := map[string]interface{}{
		"type": "regular",
		"recipients": map[string]string{
			"list_id": c.listID,
		},
		"settings": map[string]string{
			"subject_line": subject,
			"preview_text": previewText,
			"from_name":    c.fromName,
			"reply_to":     c.replyTo,
			"title":        fmt.Sprintf("Twin County Weekly - %s", time.Now().Format("2006-01-02")),
		},
	}

	var campaign Campaign
	if err := c.do(ctx, "POST", "/campaigns", payload, &campaign); err != nil {
		return nil, fmt.Errorf("failed to create campaign: %w", err)
	}

	content := map[string]string{"html": htmlContent}
	if plainText != "" {
		content["plain_text"] = plainText
	}
	if err := c.do(ctx, "PUT", "/campaigns/"+campaign.ID+"/content", content, nil); err != nil {
		return nil, fmt.Errorf("failed to set campaign content: %w", err)
	}

	return &campaign, nil
}

// SendTest delivers a test copy of the campaign to the given addresses.
func (c *Client) SendTest(ctx context.Context, campaignID string, emails []string) error {
	payload := map[string]interface{}{
		"test_emails": emails,
		"send_type":   "html",
	}
	if err := c.do(ctx, "POST", "/campaigns/"+campaignID+"/actions/test", payload, nil); err != nil {
		return fmt.Errorf("failed to send test email: %w", err)
	}
	return nil
}

// Send triggers the final send to the full recipient list.
func (c *Client) Send(ctx context.Context, campaignID string) error {
	if err := c.do(ctx, "POST", "/campaigns/"+campaignID+"/actions/send", nil, nil); err != nil {
		return fmt.Errorf("failed to send campaign: %w", err)
	}
	return nil
}

// Schedule arranges a provider-side send at the given time.
func (c *Client) Schedule(ctx context.Context, campaignID string, at time.Time) error {
	payload := map[string]string{
		"schedule_time": at.UTC().Format(time.RFC3339),
	}
	if err := c.do(ctx, "POST", "/campaigns/"+campaignID+"/actions/schedule", payload, nil); err != nil {
		return fmt.Errorf("failed to schedule campaign: %w", err)
	}
	return nil
}

// GetReport fetches delivery metrics for a sent campaign.
func (c *Client) GetReport(ctx context.Context, campaignID string) (*Report, error) {
	var report Report
	if err := c.do(ctx, "GET", "/reports/"+campaignID, nil, &report); err != nil {
		return nil, fmt.Errorf("failed to get campaign report: %w", err)
	}
	return &report, nil
}

func (c *Client) do(ctx context.Context, method, path string, payload, out interface{}) error {
	var body []byte
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = encoded
	}

	build := func() (*http.Response, error) {
		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
		if err != nil {
			return nil, err
		}
		req.SetBasicAuth("anystring", c.apiKey)
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, resilience.Transient(err)
		}
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			resp.Body.Close()
			return nil, resilience.Transient(&APIError{StatusCode: resp.StatusCode})
		}
		return resp, nil
	}

	var resp *http.Response
	var err error
	if c.executor != nil {
		resp, err = c.executor.WithContext(ctx).Get(build)
	} else {
		resp, err = build()
	}
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &APIError{StatusCode: resp.StatusCode, Detail: string(detail)}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}
