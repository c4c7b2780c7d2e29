package database

import (
	"context"
	"time"
)

type ContentRepository interface {
	// InsertCandidate stores a candidate item, returning its id and whether a
	// row was inserted. A false result means the fingerprint already exists.
	InsertCandidate(ctx context.Context, item CandidateItem) (int64, bool, error)

	GetByID(ctx context.Context, id int64) (*ContentItem, error)
	GetPending(ctx context.Context, limit int) ([]ContentItem, error)

	// UpdateClassification writes a decision for a still-pending item. The
	// transition is one-way: items already decided are left untouched and
	// the call reports false.
	UpdateClassification(ctx context.Context, id int64, result Classification) (bool, error)

	// GetApprovedUnused returns approved items scraped after cutoff that are
	// not linked to any digest.
	GetApprovedUnused(ctx context.Context, cutoff time.Time) ([]ContentItem, error)

	// GetUpcomingEvents returns approved events with an event date in
	// [from, to].
	GetUpcomingEvents(ctx context.Context, from, to time.Time) ([]ContentItem, error)

	GetStats(ctx context.Context) (*ContentStats, error)
}

type DigestRepository interface {
	Create(ctx context.Context, d DigestCreate) (int64, error)
	GetByID(ctx context.Context, id int64) (*Digest, error)
	GetByCampaignID(ctx context.Context, campaignID string) (*Digest, error)
	GetLatest(ctx context.Context) (*Digest, error)

	// UpdateStatus transitions a digest to the given status, applying any
	// optional fields, but only when its current status is in allowedFrom.
	// It reports whether a row was updated.
	UpdateStatus(ctx context.Context, id int64, to DigestStatus, allowedFrom []DigestStatus, fields StatusUpdate) (bool, error)

	// UpdateMetrics upserts delivery metrics without touching status.
	UpdateMetrics(ctx context.Context, id int64, recipients, opens, clicks int) error

	LinkContent(ctx context.Context, digestID, contentItemID int64, section string, displayOrder int) error
	CountLinks(ctx context.Context, digestID int64) (int, error)
}

type StateRepository interface {
	// LoadSchedulerState returns the persisted pending digest id, or nil.
	LoadSchedulerState(ctx context.Context) (*int64, error)

	// SaveSchedulerState persists the pending digest id (nil clears it). The
	// write is flushed before the call returns.
	SaveSchedulerState(ctx context.Context, pendingDigestID *int64) error
}

type RunRepository interface {
	RecordRun(ctx context.Context, run CollectionRun) error
}
