package delivery

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/twincounty/digest/app/database"
)

type fakeDigestRepo struct {
	database.DigestRepository
	digests map[int64]*database.Digest
}

func newFakeDigestRepo(digests ...*database.Digest) *fakeDigestRepo {
	repo := &fakeDigestRepo{digests: map[int64]*database.Digest{}}
	for _, d := range digests {
		repo.digests[d.ID] = d
	}
	return repo
}

func (f *fakeDigestRepo) GetByID(_ context.Context, id int64) (*database.Digest, error) {
	d, ok := f.digests[id]
	if !ok {
		return nil, nil
	}
	copied := *d
	return &copied, nil
}

func (f *fakeDigestRepo) UpdateStatus(_ context.Context, id int64, to database.DigestStatus, allowedFrom []database.DigestStatus, fields database.StatusUpdate) (bool, error) {
	d, ok := f.digests[id]
	if !ok {
		return false, nil
	}

	allowed := false
	for _, from := range allowedFrom {
		if d.Status == from {
			allowed = true
		}
	}
	if !allowed {
		return false, nil
	}

	d.Status = to
	if fields.CampaignID != nil {
		d.CampaignID = *fields.CampaignID
	}
	if fields.PreviewSentTo != nil {
		d.PreviewSentTo = *fields.PreviewSentTo
	}
	if fields.PreviewSentAt != nil {
		d.PreviewSentAt = fields.PreviewSentAt
	}
	if fields.ScheduledFor != nil {
		d.ScheduledFor = fields.ScheduledFor
	}
	if fields.SentAt != nil {
		d.SentAt = fields.SentAt
	}
	return true, nil
}

func (f *fakeDigestRepo) UpdateMetrics(_ context.Context, id int64, recipients, opens, clicks int) error {
	d, ok := f.digests[id]
	if !ok {
		return errors.New("not found")
	}
	d.RecipientsCount = &recipients
	d.OpensCount = &opens
	d.ClicksCount = &clicks
	return nil
}

type fakeProvider struct {
	createErr  error
	testErr    error
	sendErr    error
	created    int
	testsSent  []string
	sends      []string
	reportSent int
}

func (f *fakeProvider) CreateCampaign(context.Context, string, string, string, string) (*Campaign, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.created++
	return &Campaign{ID: "camp-1", WebID: 42}, nil
}

func (f *fakeProvider) SendTest(_ context.Context, _ string, emails []string) error {
	if f.testErr != nil {
		return f.testErr
	}
	f.testsSent = append(f.testsSent, emails...)
	return nil
}

func (f *fakeProvider) Send(_ context.Context, campaignID string) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sends = append(f.sends, campaignID)
	return nil
}

func (f *fakeProvider) GetReport(context.Context, string) (*Report, error) {
	report := &Report{EmailsSent: f.reportSent}
	report.Opens.UniqueOpens = 10
	report.Clicks.UniqueClicks = 3
	return report, nil
}

func draftDigest(id int64) *database.Digest {
	return &database.Digest{
		ID:          id,
		Subject:     "Your Twin County Weekly Update",
		HTMLContent: "<html></html>",
		PlainText:   "plain",
		Status:      database.DigestDraft,
	}
}

func TestFullDeliverySequence(t *testing.T) {
	repo := newFakeDigestRepo(draftDigest(1))
	provider := &fakeProvider{}
	sm := NewStateMachine(repo, provider, "approver@example.com")

	if err := sm.SendPreview(context.Background(), 1); err != nil {
		t.Fatalf("preview failed: %v", err)
	}
	if repo.digests[1].Status != database.DigestPreviewSent {
		t.Fatalf("expected preview_sent, got %q", repo.digests[1].Status)
	}
	if repo.digests[1].CampaignID != "camp-1" {
		t.Errorf("expected campaign id stored, got %q", repo.digests[1].CampaignID)
	}
	if len(provider.testsSent) != 1 || provider.testsSent[0] != "approver@example.com" {
		t.Errorf("expected one test email to approver, got %v", provider.testsSent)
	}

	if err := sm.Deliver(context.Background(), 1); err != nil {
		t.Fatalf("deliver failed: %v", err)
	}
	if repo.digests[1].Status != database.DigestSent {
		t.Fatalf("expected sent, got %q", repo.digests[1].Status)
	}
	if repo.digests[1].SentAt == nil {
		t.Error("expected sent timestamp recorded")
	}

	// Sent is terminal: further mutations are rejected.
	if err := sm.SendPreview(context.Background(), 1); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("expected invalid transition for preview of sent digest, got %v", err)
	}
	if err := sm.Deliver(context.Background(), 1); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("expected invalid transition for resend of sent digest, got %v", err)
	}
}

func TestPreviewFailureMovesToFailed(t *testing.T) {
	repo := newFakeDigestRepo(draftDigest(1))
	provider := &fakeProvider{createErr: errors.New("provider down")}
	sm := NewStateMachine(repo, provider, "approver@example.com")

	if err := sm.SendPreview(context.Background(), 1); err == nil {
		t.Fatal("expected preview error")
	}
	if repo.digests[1].Status != database.DigestFailed {
		t.Errorf("expected failed status, got %q", repo.digests[1].Status)
	}

	// Failed is terminal: no later step accepts the digest.
	if err := sm.Deliver(context.Background(), 1); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("expected invalid transition, got %v", err)
	}
}

func TestPreviewTestSendFailureMovesToFailed(t *testing.T) {
	repo := newFakeDigestRepo(draftDigest(1))
	provider := &fakeProvider{testErr: errors.New("invalid recipient")}
	sm := NewStateMachine(repo, provider, "approver@example.com")

	if err := sm.SendPreview(context.Background(), 1); err == nil {
		t.Fatal("expected preview error")
	}
	if repo.digests[1].Status != database.DigestFailed {
		t.Errorf("expected failed status, got %q", repo.digests[1].Status)
	}
}

func TestDeliverRequiresCampaign(t *testing.T) {
	digest := draftDigest(1)
	digest.Status = database.DigestPreviewSent
	repo := newFakeDigestRepo(digest)
	sm := NewStateMachine(repo, &fakeProvider{}, "approver@example.com")

	err := sm.Deliver(context.Background(), 1)
	if !errors.Is(err, ErrNoCampaign) {
		t.Errorf("expected ErrNoCampaign, got %v", err)
	}
}

func TestDeliverRequiresPreview(t *testing.T) {
	repo := newFakeDigestRepo(draftDigest(1))
	sm := NewStateMachine(repo, &fakeProvider{}, "approver@example.com")

	err := sm.Deliver(context.Background(), 1)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition for draft digest, got %v", err)
	}
}

func TestSendFailureMovesToFailed(t *testing.T) {
	digest := draftDigest(1)
	digest.Status = database.DigestPreviewSent
	digest.CampaignID = "camp-1"
	repo := newFakeDigestRepo(digest)
	provider := &fakeProvider{sendErr: errors.New("provider down")}
	sm := NewStateMachine(repo, provider, "approver@example.com")

	if err := sm.Deliver(context.Background(), 1); err == nil {
		t.Fatal("expected send error")
	}
	if repo.digests[1].Status != database.DigestFailed {
		t.Errorf("expected failed status, got %q", repo.digests[1].Status)
	}
}

func TestMarkScheduled(t *testing.T) {
	digest := draftDigest(1)
	digest.Status = database.DigestPreviewSent
	digest.CampaignID = "camp-1"
	repo := newFakeDigestRepo(digest)
	sm := NewStateMachine(repo, &fakeProvider{}, "approver@example.com")

	at := time.Now().Add(2 * time.Hour)
	if err := sm.MarkScheduled(context.Background(), 1, at); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if repo.digests[1].Status != database.DigestScheduled {
		t.Errorf("expected scheduled, got %q", repo.digests[1].Status)
	}

	// A scheduled digest can still be delivered.
	if err := sm.Deliver(context.Background(), 1); err != nil {
		t.Fatalf("deliver of scheduled digest failed: %v", err)
	}
}

func TestUpdateMetrics(t *testing.T) {
	digest := draftDigest(1)
	digest.Status = database.DigestSent
	digest.CampaignID = "camp-1"
	repo := newFakeDigestRepo(digest)
	sm := NewStateMachine(repo, &fakeProvider{reportSent: 250}, "approver@example.com")

	if err := sm.UpdateMetrics(context.Background(), 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if repo.digests[1].RecipientsCount == nil || *repo.digests[1].RecipientsCount != 250 {
		t.Errorf("expected 250 recipients, got %v", repo.digests[1].RecipientsCount)
	}
}

func TestNotFound(t *testing.T) {
	repo := newFakeDigestRepo()
	sm := NewStateMachine(repo, &fakeProvider{}, "approver@example.com")

	if err := sm.SendPreview(context.Background(), 99); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
