package collect

import (
	"context"
	"time"
)

// Candidate is a piece of content discovered by a collector, before
// deduplication and classification.
type Candidate struct {
	URL            string
	BaseURL        string
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

// Collector fetches candidates from one external source.
type Collector interface {
	Collect(ctx context.Context) ([]Candidate, error)
}
