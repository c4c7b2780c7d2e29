package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

var _ ContentRepository = (*ContentRepo)(nil)

// ContentRepo handles database operations for content items.
type ContentRepo struct {
	db *DB
}

func NewContentRepo(db *DB) *ContentRepo {
	return &ContentRepo{db: db}
}

const contentColumns = `
	id, url, url_fingerprint, source_name, source_kind, COALESCE(source_platform, ''),
	COALESCE(title, ''), body, COALESCE(image_url, ''), COALESCE(author, ''),
	published_at, COALESCE(county, ''),
	COALESCE(summary, ''), COALESCE(content_category, ''), COALESCE(sentiment, ''),
	sentiment_score, is_event, event_date, COALESCE(event_time::text, ''), COALESCE(event_location, ''),
	filter_status, COALESCE(filter_reason, ''), scraped_at, filtered_at, created_at, updated_at`

const contentColumnsCI = `
	ci.id, ci.url, ci.url_fingerprint, ci.source_name, ci.source_kind, COALESCE(ci.source_platform, ''),
	COALESCE(ci.title, ''), ci.body, COALESCE(ci.image_url, ''), COALESCE(ci.author, ''),
	ci.published_at, COALESCE(ci.county, ''),
	COALESCE(ci.summary, ''), COALESCE(ci.content_category, ''), COALESCE(ci.sentiment, ''),
	ci.sentiment_score, ci.is_event, ci.event_date, COALESCE(ci.event_time::text, ''), COALESCE(ci.event_location, ''),
	ci.filter_status, COALESCE(ci.filter_reason, ''), ci.scraped_at, ci.filtered_at, ci.created_at, ci.updated_at`

func scanContentItem(row interface{ Scan(...interface{}) error }) (*ContentItem, error) {
	var item ContentItem
	err := row.Scan(
		&item.ID, &item.URL, &item.URLFingerprint, &item.SourceName, &item.SourceKind, &item.SourcePlatform,
		&item.Title, &item.Body, &item.ImageURL, &item.Author,
		&item.PublishedAt, &item.County,
		&item.Summary, &item.Category, &item.Sentiment,
		&item.SentimentScore, &item.IsEvent, &item.EventDate, &item.EventTime, &item.EventLocation,
		&item.FilterStatus, &item.FilterReason, &item.ScrapedAt, &item.FilteredAt, &item.CreatedAt, &item.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// InsertCandidate stores a candidate item. The insert is a no-op when the
// fingerprint already exists; the first writer wins and no error is raised.
func (r *ContentRepo) InsertCandidate(ctx context.Context, item CandidateItem) (int64, bool, error) {
	var id int64
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO content_items (
			url, url_fingerprint, source_name, source_kind, source_platform,
			title, body, image_url, author, published_at, county
		) VALUES ($1, $2, $3, $4, NULLIF($5, ''), NULLIF($6, ''), $7, NULLIF($8, ''), NULLIF($9, ''), $10, NULLIF($11, ''))
		ON CONFLICT (url_fingerprint) DO NOTHING
		RETURNING id
	`, item.URL, item.URLFingerprint, item.SourceName, item.SourceKind, item.SourcePlatform,
		item.Title, item.Body, item.ImageURL, item.Author, item.PublishedAt, item.County).Scan(&id)

	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to insert content item: %w", err)
	}

	return id, true, nil
}

func (r *ContentRepo) GetByID(ctx context.Context, id int64) (*ContentItem, error) {
	item, err := scanContentItem(r.db.QueryRowContext(ctx,
		`SELECT `+contentColumns+` FROM content_items WHERE id = $1`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get content item: %w", err)
	}
	return item, nil
}

func (r *ContentRepo) GetPending(ctx context.Context, limit int) ([]ContentItem, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+contentColumns+`
		FROM content_items
		WHERE filter_status = 'pending'
		ORDER BY scraped_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get pending items: %w", err)
	}
	defer rows.Close()

	return collectContentItems(rows)
}

// UpdateClassification writes the decision for a pending item. The WHERE
// guard preserves the one-way Pending -> {Approved, Rejected} transition.
func (r *ContentRepo) UpdateClassification(ctx context.Context, id int64, result Classification) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE content_items SET
			filter_status = $2,
			filter_reason = $3,
			sentiment = $4,
			sentiment_score = $5,
			is_event = $6,
			event_date = $7,
			event_time = NULLIF($8, '')::time,
			event_location = NULLIF($9, ''),
			content_category = $10,
			county = COALESCE(NULLIF($11, ''), county),
			summary = $12,
			filtered_at = NOW(),
			updated_at = NOW()
		WHERE id = $1 AND filter_status = 'pending'
	`, id, string(result.Decision), result.Reason, result.Sentiment, result.SentimentScore,
		result.IsEvent, result.EventDate, result.EventTime, result.EventLocation,
		result.Category, result.County, result.Summary)
	if err != nil {
		return false, fmt.Errorf("failed to update classification: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}

	return affected == 1, nil
}

// GetApprovedUnused returns approved items scraped after cutoff that are not
// yet linked to any digest (anti-join against digest_content_links).
func (r *ContentRepo) GetApprovedUnused(ctx context.Context, cutoff time.Time) ([]ContentItem, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+contentColumnsCI+`
		FROM content_items ci
		LEFT JOIN digest_content_links dcl ON ci.id = dcl.content_item_id
		WHERE ci.filter_status = 'approved'
		  AND ci.scraped_at >= $1
		  AND dcl.id IS NULL
		ORDER BY ci.scraped_at DESC
	`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to get approved items: %w", err)
	}
	defer rows.Close()

	return collectContentItems(rows)
}

func (r *ContentRepo) GetUpcomingEvents(ctx context.Context, from, to time.Time) ([]ContentItem, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+contentColumns+`
		FROM content_items
		WHERE filter_status = 'approved'
		  AND is_event = TRUE
		  AND event_date >= $1
		  AND event_date <= $2
		ORDER BY event_date ASC, event_time ASC NULLS LAST
	`, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to get upcoming events: %w", err)
	}
	defer rows.Close()

	return collectContentItems(rows)
}

func (r *ContentRepo) GetStats(ctx context.Context) (*ContentStats, error) {
	var stats ContentStats
	err := r.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE filter_status = 'pending'),
			COUNT(*) FILTER (WHERE filter_status = 'approved'),
			COUNT(*) FILTER (WHERE filter_status = 'rejected'),
			COUNT(*) FILTER (WHERE is_event = TRUE),
			COUNT(*) FILTER (WHERE county = 'nash'),
			COUNT(*) FILTER (WHERE county = 'edgecombe'),
			COUNT(*) FILTER (WHERE county = 'wilson')
		FROM content_items
	`).Scan(&stats.Total, &stats.Pending, &stats.Approved, &stats.Rejected,
		&stats.Events, &stats.Nash, &stats.Edgecombe, &stats.Wilson)
	if err != nil {
		return nil, fmt.Errorf("failed to get content stats: %w", err)
	}
	return &stats, nil
}

func collectContentItems(rows *sql.Rows) ([]ContentItem, error) {
	var items []ContentItem
	for rows.Next() {
		item, err := scanContentItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan content item row: %w", err)
		}
		items = append(items, *item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating content item rows: %w", err)
	}
	return items, nil
}
