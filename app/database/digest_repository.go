package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

var _ DigestRepository = (*DigestRepo)(nil)

// DigestRepo handles database operations for digests and their content links.
type DigestRepo struct {
	db *DB
}

func NewDigestRepo(db *DB) *DigestRepo {
	return &DigestRepo{db: db}
}

const digestColumns = `
	id, digest_uid, COALESCE(subject, ''), COALESCE(top_story_html, ''), top_story_item_id,
	COALESCE(html_content, ''), COALESCE(plain_text, ''),
	COALESCE(campaign_id, ''), COALESCE(campaign_web_id, ''), status,
	COALESCE(preview_sent_to, ''), preview_sent_at, scheduled_for, sent_at,
	recipients_count, opens_count, clicks_count,
	total_items, nash_items, edgecombe_items, wilson_items, event_count,
	created_at, updated_at`

func scanDigest(row interface{ Scan(...interface{}) error }) (*Digest, error) {
	var d Digest
	err := row.Scan(
		&d.ID, &d.UID, &d.Subject, &d.TopStoryHTML, &d.TopStoryItemID,
		&d.HTMLContent, &d.PlainText,
		&d.CampaignID, &d.CampaignWebID, &d.Status,
		&d.PreviewSentTo, &d.PreviewSentAt, &d.ScheduledFor, &d.SentAt,
		&d.RecipientsCount, &d.OpensCount, &d.ClicksCount,
		&d.TotalItems, &d.NashItems, &d.EdgecombeItems, &d.WilsonItems, &d.EventCount,
		&d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *DigestRepo) Create(ctx context.Context, d DigestCreate) (int64, error) {
	var id int64
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO digests (
			digest_uid, subject, top_story_html, top_story_item_id,
			html_content, plain_text, status,
			total_items, nash_items, edgecombe_items, wilson_items, event_count
		) VALUES ($1, $2, $3, $4, $5, $6, 'draft', $7, $8, $9, $10, $11)
		RETURNING id
	`, uuid.New().String(), d.Subject, d.TopStoryHTML, d.TopStoryItemID,
		d.HTMLContent, d.PlainText,
		d.TotalItems, d.NashItems, d.EdgecombeItems, d.WilsonItems, d.EventCount).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to create digest: %w", err)
	}
	return id, nil
}

func (r *DigestRepo) GetByID(ctx context.Context, id int64) (*Digest, error) {
	d, err := scanDigest(r.db.QueryRowContext(ctx,
		`SELECT `+digestColumns+` FROM digests WHERE id = $1`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get digest: %w", err)
	}
	return d, nil
}

func (r *DigestRepo) GetByCampaignID(ctx context.Context, campaignID string) (*Digest, error) {
	d, err := scanDigest(r.db.QueryRowContext(ctx,
		`SELECT `+digestColumns+` FROM digests WHERE campaign_id = $1`, campaignID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get digest by campaign: %w", err)
	}
	return d, nil
}

func (r *DigestRepo) GetLatest(ctx context.Context) (*Digest, error) {
	d, err := scanDigest(r.db.QueryRowContext(ctx,
		`SELECT `+digestColumns+` FROM digests ORDER BY created_at DESC LIMIT 1`))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest digest: %w", err)
	}
	return d, nil
}

// UpdateStatus transitions a digest, guarded so that only the listed source
// statuses are eligible. Optional fields are only written when set.
func (r *DigestRepo) UpdateStatus(ctx context.Context, id int64, to DigestStatus, allowedFrom []DigestStatus, fields StatusUpdate) (bool, error) {
	from := make([]string, len(allowedFrom))
	for i, s := range allowedFrom {
		from[i] = string(s)
	}

	res, err := r.db.ExecContext(ctx, `
		UPDATE digests SET
			status = $2,
			campaign_id = COALESCE($3, campaign_id),
			campaign_web_id = COALESCE($4, campaign_web_id),
			preview_sent_to = COALESCE($5, preview_sent_to),
			preview_sent_at = COALESCE($6, preview_sent_at),
			scheduled_for = COALESCE($7, scheduled_for),
			sent_at = COALESCE($8, sent_at),
			updated_at = NOW()
		WHERE id = $1 AND status = ANY($9)
	`, id, string(to),
		fields.CampaignID, fields.CampaignWebID,
		fields.PreviewSentTo, fields.PreviewSentAt,
		fields.ScheduledFor, fields.SentAt,
		pq.Array(from))
	if err != nil {
		return false, fmt.Errorf("failed to update digest status: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}

	return affected == 1, nil
}

func (r *DigestRepo) UpdateMetrics(ctx context.Context, id int64, recipients, opens, clicks int) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE digests SET
			recipients_count = $2,
			opens_count = $3,
			clicks_count = $4,
			updated_at = NOW()
		WHERE id = $1
	`, id, recipients, opens, clicks)
	if err != nil {
		return fmt.Errorf("failed to update digest metrics: %w", err)
	}
	return nil
}

func (r *DigestRepo) LinkContent(ctx context.Context, digestID, contentItemID int64, section string, displayOrder int) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO digest_content_links (digest_id, content_item_id, section, display_order)
		VALUES ($1, $2, $3, $4)
	`, digestID, contentItemID, section, displayOrder)
	if err != nil {
		return fmt.Errorf("failed to link content item: %w", err)
	}
	return nil
}

func (r *DigestRepo) CountLinks(ctx context.Context, digestID int64) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM digest_content_links WHERE digest_id = $1`, digestID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count digest links: %w", err)
	}
	return count, nil
}
