package delivery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/twincounty/digest/app/database"
)

var (
	// ErrInvalidTransition means the digest was not in a state the
	// requested transition allows.
	ErrInvalidTransition = errors.New("invalid digest status transition")

	// ErrNoCampaign means a send was requested for a digest that never had
	// a campaign created. Campaign creation happens only during the
	// preview step, never implicitly.
	ErrNoCampaign = errors.New("digest has no campaign reference")

	// ErrNotFound means the digest id does not exist.
	ErrNotFound = errors.New("digest not found")
)

// CampaignProvider is the delivery side of the campaign API client.
type CampaignProvider interface {
	CreateCampaign(ctx context.Context, subject, previewText, htmlContent, plainText string) (*Campaign, error)
	SendTest(ctx context.Context, campaignID string, emails []string) error
	Send(ctx context.Context, campaignID string) error
	GetReport(ctx context.Context, campaignID string) (*Report, error)
}

// StateMachine drives a digest through draft -> preview_sent -> sent.
// Unrecoverable collaborator errors move any pre-sent digest to failed,
// which is terminal: a failed digest is never resent, a fresh assembly is.
type StateMachine struct {
	digestRepo    database.DigestRepository
	provider      CampaignProvider
	approverEmail string
}

func NewStateMachine(digestRepo database.DigestRepository, provider CampaignProvider, approverEmail string) *StateMachine {
	return &StateMachine{
		digestRepo:    digestRepo,
		provider:      provider,
		approverEmail: approverEmail,
	}
}

// SendPreview creates the external campaign for a draft digest and sends one
// test copy to the approver. Any collaborator error fails the digest
// immediately: campaign creation is a precondition for every later step, so
// there is nothing to retry from here.
func (m *StateMachine) SendPreview(ctx context.Context, digestID int64) error {
	digest, err := m.digestRepo.GetByID(ctx, digestID)
	if err != nil {
		return err
	}
	if digest == nil {
		return ErrNotFound
	}
	if digest.Status != database.DigestDraft {
		return fmt.Errorf("%w: preview requires draft, digest %d is %s", ErrInvalidTransition, digestID, digest.Status)
	}

	campaign, err := m.provider.CreateCampaign(ctx, digest.Subject, digest.Subject, digest.HTMLContent, digest.PlainText)
	if err != nil {
		m.fail(ctx, digestID)
		return fmt.Errorf("failed to create campaign for digest %d: %w", digestID, err)
	}

	if err := m.provider.SendTest(ctx, campaign.ID, []string{m.approverEmail}); err != nil {
		m.fail(ctx, digestID)
		return fmt.Errorf("failed to send preview for digest %d: %w", digestID, err)
	}

	now := time.Now().UTC()
	webID := fmt.Sprintf("%d", campaign.WebID)
	applied, err := m.digestRepo.UpdateStatus(ctx, digestID, database.DigestPreviewSent,
		[]database.DigestStatus{database.DigestDraft},
		database.StatusUpdate{
			CampaignID:    &campaign.ID,
			CampaignWebID: &webID,
			PreviewSentTo: &m.approverEmail,
			PreviewSentAt: &now,
		})
	if err != nil {
		return err
	}
	if !applied {
		return fmt.Errorf("%w: digest %d left draft during preview", ErrInvalidTransition, digestID)
	}

	slog.Info("Digest preview sent", "digest_id", digestID, "campaign_id", campaign.ID, "approver", m.approverEmail)
	return nil
}

// MarkScheduled records that an automatic send has been armed for the digest.
func (m *StateMachine) MarkScheduled(ctx context.Context, digestID int64, at time.Time) error {
	applied, err := m.digestRepo.UpdateStatus(ctx, digestID, database.DigestScheduled,
		[]database.DigestStatus{database.DigestPreviewSent},
		database.StatusUpdate{ScheduledFor: &at})
	if err != nil {
		return err
	}
	if !applied {
		return fmt.Errorf("%w: digest %d is not preview_sent", ErrInvalidTransition, digestID)
	}
	return nil
}

// Deliver sends the campaign to the full recipient list. The digest must
// already carry a campaign reference from its preview step.
func (m *StateMachine) Deliver(ctx context.Context, digestID int64) error {
	digest, err := m.digestRepo.GetByID(ctx, digestID)
	if err != nil {
		return err
	}
	if digest == nil {
		return ErrNotFound
	}
	if digest.Status != database.DigestPreviewSent && digest.Status != database.DigestScheduled {
		return fmt.Errorf("%w: deliver requires preview_sent or scheduled, digest %d is %s", ErrInvalidTransition, digestID, digest.Status)
	}
	if digest.CampaignID == "" {
		return fmt.Errorf("%w: digest %d", ErrNoCampaign, digestID)
	}

	if err := m.provider.Send(ctx, digest.CampaignID); err != nil {
		m.fail(ctx, digestID)
		return fmt.Errorf("failed to send digest %d: %w", digestID, err)
	}

	now := time.Now().UTC()
	applied, err := m.digestRepo.UpdateStatus(ctx, digestID, database.DigestSent,
		[]database.DigestStatus{database.DigestPreviewSent, database.DigestScheduled},
		database.StatusUpdate{SentAt: &now})
	if err != nil {
		return err
	}
	if !applied {
		return fmt.Errorf("%w: digest %d changed state during send", ErrInvalidTransition, digestID)
	}

	slog.Info("Digest sent", "digest_id", digestID, "campaign_id", digest.CampaignID)
	return nil
}

// UpdateMetrics pulls the provider's delivery report for a sent digest.
func (m *StateMachine) UpdateMetrics(ctx context.Context, digestID int64) error {
	digest, err := m.digestRepo.GetByID(ctx, digestID)
	if err != nil {
		return err
	}
	if digest == nil {
		return ErrNotFound
	}
	if digest.CampaignID == "" {
		return fmt.Errorf("%w: digest %d", ErrNoCampaign, digestID)
	}

	report, err := m.provider.GetReport(ctx, digest.CampaignID)
	if err != nil {
		return err
	}

	return m.digestRepo.UpdateMetrics(ctx, digestID, report.EmailsSent, report.Opens.UniqueOpens, report.Clicks.UniqueClicks)
}

// fail moves a pre-sent digest to the terminal failed state. Sent digests
// are never touched.
func (m *StateMachine) fail(ctx context.Context, digestID int64) {
	applied, err := m.digestRepo.UpdateStatus(ctx, digestID, database.DigestFailed,
		[]database.DigestStatus{database.DigestDraft, database.DigestPreviewSent, database.DigestScheduled},
		database.StatusUpdate{})
	if err != nil {
		slog.Error("Failed to mark digest failed", "digest_id", digestID, "error", err)
		return
	}
	if applied {
		slog.Warn("Digest marked failed", "digest_id", digestID)
	}
}
