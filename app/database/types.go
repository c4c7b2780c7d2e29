package database

import (
	"time"
)

// FilterStatus is the classification state of a content item.
type FilterStatus string

const (
	StatusPending  FilterStatus = "pending"
	StatusApproved FilterStatus = "approved"
	StatusRejected FilterStatus = "rejected"
)

// DigestStatus is the delivery state of a digest.
type DigestStatus string

const (
	DigestDraft       DigestStatus = "draft"
	DigestPreviewSent DigestStatus = "preview_sent"
	DigestScheduled   DigestStatus = "scheduled"
	DigestSent        DigestStatus = "sent"
	DigestFailed      DigestStatus = "failed"
)

// Digest section tags. An item belongs to exactly one section per digest.
const (
	SectionTopStory  = "top_story"
	SectionNewsLinks = "news_links"
	SectionCalendar  = "calendar"
)

// ContentItem is a deduplicated piece of collected content together with
// its classification metadata.
type ContentItem struct {
	ID             int64
	URL            string
	URLFingerprint string
	SourceName     string
	SourceKind     string
	SourcePlatform string
	Title          string
	Body           string
	ImageURL       string
	Author         string
	PublishedAt    *time.Time
	County         string

	Summary       string
	Category      string
	Sentiment     string
	SentimentScore *float64
	IsEvent       bool
	EventDate     *time.Time
	EventTime     string
	EventLocation string

	FilterStatus FilterStatus
	FilterReason string
	ScrapedAt    time.Time
	FilteredAt   *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// CandidateItem is the pre-classification shape handed to the dedup gate.
type CandidateItem struct {
	URL            string
	URLFingerprint string
	SourceName     string
	SourceKind     string
	SourcePlatform string
	Title          string
	Body           string
	ImageURL       string
	Author         string
	PublishedAt    *time.Time
	County         string
}

// Classification is the decision written back to a pending content item.
type Classification struct {
	Decision       FilterStatus
	Reason         string
	Sentiment      string
	SentimentScore float64
	IsEvent        bool
	EventDate      *time.Time
	EventTime      string
	EventLocation  string
	Category       string
	County         string
	Summary        string
}

// Digest is the assembled weekly content bundle.
type Digest struct {
	ID             int64
	UID            string
	Subject        string
	TopStoryHTML   string
	TopStoryItemID *int64
	HTMLContent    string
	PlainText      string

	CampaignID    string
	CampaignWebID string
	Status        DigestStatus

	PreviewSentTo string
	PreviewSentAt *time.Time
	ScheduledFor  *time.Time
	SentAt        *time.Time

	RecipientsCount *int
	OpensCount      *int
	ClicksCount     *int

	TotalItems     int
	NashItems      int
	EdgecombeItems int
	WilsonItems    int
	EventCount     int

	CreatedAt time.Time
	UpdatedAt time.Time
}

// DigestCreate carries the fields needed to insert a new draft digest.
type DigestCreate struct {
	Subject        string
	TopStoryHTML   string
	TopStoryItemID *int64
	HTMLContent    string
	PlainText      string
	TotalItems     int
	NashItems      int
	EdgecombeItems int
	WilsonItems    int
	EventCount     int
}

// StatusUpdate carries optional fields set alongside a status transition.
type StatusUpdate struct {
	CampaignID    *string
	CampaignWebID *string
	PreviewSentTo *string
	PreviewSentAt *time.Time
	ScheduledFor  *time.Time
	SentAt        *time.Time
}

// Collection run statuses admitted by the collection_runs CHECK constraint.
const (
	RunRunning   = "running"
	RunCompleted = "completed"
	RunFailed    = "failed"
)

// CollectionRun records one collection cycle.
type CollectionRun struct {
	RunID          string
	SourceKind     string
	Status         string
	ItemsFound     int
	ItemsNew       int
	ItemsDuplicate int
	ErrorMessage   string
}

// ContentStats summarizes the content_items table for the stats endpoint.
type ContentStats struct {
	Total     int
	Pending   int
	Approved  int
	Rejected  int
	Events    int
	Nash      int
	Edgecombe int
	Wilson    int
}
