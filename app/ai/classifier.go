package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/twincounty/digest/app/database"
)

const maxPromptContentLength = 4000

// truncateRunes caps s at limit runes without splitting a multi-byte
// sequence.
func truncateRunes(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	return string([]rune(s)[:limit])
}

const filterPrompt = `You are a content curator for a local community newsletter serving Nash, Edgecombe, and Wilson counties in North Carolina.

Analyze the following content and determine if it should be included in the newsletter.

APPROVAL CRITERIA (INCLUDE if any of these apply):
- Positive sentiment or neutral informational content
- Community events (festivals, fundraisers, openings, concerts, markets, etc.)
- Business announcements (new openings, specials, promotions, grand openings)
- Achievement stories and recognition (awards, graduations, promotions)
- Public meeting notices and civic engagement opportunities
- Health and wellness information
- Educational opportunities
- Local sports achievements
- Community service activities
- Restaurant/bar events and specials
- Chamber of Commerce news
- Economic development news

REJECTION CRITERIA (EXCLUDE if any of these apply):
- Negative news (crime reports, accidents, fatalities, unless commemorative/memorial)
- Political controversy or divisive partisan content
- Complaints, negative reviews, or criticism
- Content older than 14 days (unless it's an upcoming future event)
- Spam, ads without local relevance, or irrelevant content
- National/international news without local connection

CONTENT TO ANALYZE:
Source: %s (%s)
Title: %s
Content: %s
Published: %s
Current County Tag: %s

IMPORTANT: Respond with ONLY a valid JSON object (no markdown, no code blocks, no explanation):
{
    "decision": "approved" or "rejected",
    "reason": "Brief 1-sentence explanation",
    "sentiment": "positive" or "neutral" or "negative",
    "sentiment_score": 0.0 to 1.0 (1.0 = most positive),
    "is_event": true or false,
    "event_date": "YYYY-MM-DD" or null (extract if this is about an event),
    "event_time": "HH:MM" or null (24-hour format if mentioned),
    "event_location": "Location name/address" or null,
    "category": "event" or "news" or "announcement" or "promotion" or "government" or "other",
    "county": "nash" or "edgecombe" or "wilson" or null (confirm or detect county),
    "summary": "One engaging sentence summary suitable for newsletter (max 150 chars)"
}`

// filterResponse is the fixed schema the classifier must return.
type filterResponse struct {
	Decision       string   `json:"decision"`
	Reason         string   `json:"reason"`
	Sentiment      string   `json:"sentiment"`
	SentimentScore *float64 `json:"sentiment_score"`
	IsEvent        bool     `json:"is_event"`
	EventDate      *string  `json:"event_date"`
	EventTime      *string  `json:"event_time"`
	EventLocation  *string  `json:"event_location"`
	Category       string   `json:"category"`
	County         *string  `json:"county"`
	Summary        string   `json:"summary"`
}

// Classifier asks the model to approve or reject one content item and
// extracts classification metadata from the response.
type Classifier struct {
	client *Client
}

func NewClassifier(client *Client) *Classifier {
	return &Classifier{client: client}
}

// ParseError marks responses that did not match the expected schema. Callers
// treat it differently from transport failures: the item is rejected rather
// than retried.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error: %v", e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

func (c *Classifier) Classify(ctx context.Context, item database.ContentItem) (database.Classification, error) {
	response, err := c.client.Complete(ctx, buildFilterPrompt(item))
	if err != nil {
		return database.Classification{}, err
	}

	return parseFilterResponse(response, item.County)
}

func buildFilterPrompt(item database.ContentItem) string {
	title := item.Title
	if title == "" {
		title = "No title"
	}
	content := truncateRunes(item.Body, maxPromptContentLength)
	published := "Unknown"
	if item.PublishedAt != nil {
		published = item.PublishedAt.Format(time.RFC3339)
	}
	county := item.County
	if county == "" {
		county = "Unknown"
	}

	return fmt.Sprintf(filterPrompt, item.SourceName, item.SourceKind, title, content, published, county)
}

func parseFilterResponse(response, fallbackCounty string) (database.Classification, error) {
	response = stripCodeFence(response)

	var parsed filterResponse
	if err := json.Unmarshal([]byte(response), &parsed); err != nil {
		return database.Classification{}, &ParseError{Err: err}
	}

	var decision database.FilterStatus
	switch parsed.Decision {
	case "approved":
		decision = database.StatusApproved
	case "rejected":
		decision = database.StatusRejected
	default:
		return database.Classification{}, &ParseError{Err: fmt.Errorf("unknown decision %q", parsed.Decision)}
	}

	if parsed.SentimentScore == nil || *parsed.SentimentScore < 0 || *parsed.SentimentScore > 1 {
		return database.Classification{}, &ParseError{Err: fmt.Errorf("sentiment score out of range")}
	}

	result := database.Classification{
		Decision:       decision,
		Reason:         parsed.Reason,
		Sentiment:      parsed.Sentiment,
		SentimentScore: *parsed.SentimentScore,
		IsEvent:        parsed.IsEvent,
		Category:       parsed.Category,
		County:         fallbackCounty,
		Summary:        parsed.Summary,
	}

	if parsed.County != nil && *parsed.County != "" {
		result.County = *parsed.County
	}
	if parsed.EventDate != nil && *parsed.EventDate != "" {
		date, err := time.Parse("2006-01-02", *parsed.EventDate)
		if err != nil {
			return database.Classification{}, &ParseError{Err: fmt.Errorf("invalid event date %q", *parsed.EventDate)}
		}
		result.EventDate = &date
	}
	if parsed.EventTime != nil {
		result.EventTime = *parsed.EventTime
	}
	if parsed.EventLocation != nil {
		result.EventLocation = *parsed.EventLocation
	}

	return result, nil
}

// stripCodeFence removes a surrounding markdown code block, with or without
// a json language tag, from a model response.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}

	s = strings.TrimPrefix(s, "```")
	if idx := strings.Index(s, "```"); idx >= 0 {
		s = s[:idx]
	}
	s = strings.TrimPrefix(strings.TrimSpace(s), "json")

	return strings.TrimSpace(s)
}
