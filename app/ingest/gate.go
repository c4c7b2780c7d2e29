package ingest

import (
	"context"
	"fmt"

	"github.com/twincounty/digest/app/collect"
	"github.com/twincounty/digest/app/database"
)

// Outcome is the result of pushing one candidate through the gate.
type Outcome int

const (
	Inserted Outcome = iota
	Duplicate
)

// Gate deduplicates candidates by URL fingerprint before they reach storage.
// Two sources racing on the same URL resolve to one stored row; the loser
// sees Duplicate, which is a normal outcome rather than an error.
type Gate struct {
	contentRepo database.ContentRepository
}

func NewGate(contentRepo database.ContentRepository) *Gate {
	return &Gate{contentRepo: contentRepo}
}

func (g *Gate) Ingest(ctx context.Context, c collect.Candidate) (Outcome, error) {
	normalized, err := NormalizeURL(c.URL, c.BaseURL)
	if err != nil {
		return Duplicate, fmt.Errorf("failed to normalize candidate URL: %w", err)
	}

	_, inserted, err := g.contentRepo.InsertCandidate(ctx, database.CandidateItem{
		URL:            normalized,
		URLFingerprint: Fingerprint(normalized),
		SourceName:     c.SourceName,
		SourceKind:     c.SourceKind,
		SourcePlatform: c.SourcePlatform,
		Title:          c.Title,
		Body:           c.Body,
		ImageURL:       c.ImageURL,
		Author:         c.Author,
		PublishedAt:    c.PublishedAt,
		County:         c.County,
	})
	if err != nil {
		return Duplicate, fmt.Errorf("failed to store candidate: %w", err)
	}

	if !inserted {
		return Duplicate, nil
	}
	return Inserted, nil
}
