package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/twincounty/digest/app/classify"
	"github.com/twincounty/digest/app/database"
	"github.com/twincounty/digest/app/delivery"
	"github.com/twincounty/digest/app/ingest"
	"github.com/twincounty/digest/app/scheduler"
)

type fakeOrchestrator struct {
	collectKind string
	classifyErr error
	digestID    int64
	buildErr    error
	sendErr     error
	pending     *int64
	webhookErr  error

	webhookCampaign string
	webhookOpens    int
}

func (o *fakeOrchestrator) TriggerCollection(ctx context.Context, kindFilter string) ingest.Report {
	o.collectKind = kindFilter
	return ingest.Report{SourcesScraped: 3, Found: 10, New: 4, Duplicates: 6}
}

func (o *fakeOrchestrator) TriggerClassification(ctx context.Context) (classify.Report, error) {
	return classify.Report{Processed: 5, Approved: 3, Rejected: 2}, o.classifyErr
}

func (o *fakeOrchestrator) TriggerDigestBuild(ctx context.Context) (int64, error) {
	return o.digestID, o.buildErr
}

func (o *fakeOrchestrator) TriggerSendNow(ctx context.Context, digestID int64) error {
	return o.sendErr
}

func (o *fakeOrchestrator) GetPendingDigestID(ctx context.Context) (*int64, error) {
	return o.pending, nil
}

func (o *fakeOrchestrator) ListScheduledJobs() []scheduler.JobInfo {
	return []scheduler.JobInfo{{ID: "collect", Kind: scheduler.KindInterval}}
}

func (o *fakeOrchestrator) ReceiveDeliveryWebhook(ctx context.Context, campaignID string, recipients, opens, clicks int) error {
	o.webhookCampaign = campaignID
	o.webhookOpens = opens
	return o.webhookErr
}

type fakeStatsContentRepo struct {
	database.ContentRepository
}

func (r *fakeStatsContentRepo) GetStats(ctx context.Context) (*database.ContentStats, error) {
	return &database.ContentStats{Total: 42, Pending: 5, Approved: 30, Rejected: 7, Events: 6, Nash: 12}, nil
}

type fakeAPIDigestRepo struct {
	database.DigestRepository

	digest *database.Digest
}

func (r *fakeAPIDigestRepo) GetByID(ctx context.Context, id int64) (*database.Digest, error) {
	if r.digest != nil && r.digest.ID == id {
		return r.digest, nil
	}
	return nil, nil
}

func (r *fakeAPIDigestRepo) GetLatest(ctx context.Context) (*database.Digest, error) {
	return r.digest, nil
}

const testKey = "secret-key"

func newTestServer(orch *fakeOrchestrator, digest *database.Digest) http.Handler {
	handler := NewHandler(&fakeStatsContentRepo{}, &fakeAPIDigestRepo{digest: digest}, orch, 3, true, true, "test")
	return NewServer(handler, testKey)
}

func doRequest(t *testing.T, server http.Handler, method, path, body string, authenticated bool) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body != "" {
		reader = strings.NewReader(body)
	} else {
		reader = strings.NewReader("")
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if authenticated {
		req.Header.Set("X-API-Key", testKey)
	}
	w := httptest.NewRecorder()
	server.ServeHTTP(w, req)
	return w
}

func TestHealthEndpoint(t *testing.T) {
	server := newTestServer(&fakeOrchestrator{}, nil)

	w := doRequest(t, server, "GET", "/health", "", false)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"classifier":true`) {
		t.Errorf("expected capabilities in health response, got %s", w.Body.String())
	}
}

func TestStatsEndpoint(t *testing.T) {
	server := newTestServer(&fakeOrchestrator{}, &database.Digest{ID: 1, Status: database.DigestSent})

	w := doRequest(t, server, "GET", "/stats", "", false)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	body := w.Body.String()
	if !strings.Contains(body, `"total":42`) || !strings.Contains(body, `"nash":12`) {
		t.Errorf("unexpected stats body: %s", body)
	}
	if !strings.Contains(body, "latest_digest") {
		t.Errorf("expected latest digest summary, got %s", body)
	}
}

func TestAdminEndpointsRequireKey(t *testing.T) {
	server := newTestServer(&fakeOrchestrator{}, nil)

	w := doRequest(t, server, "POST", "/api/collect", "", false)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without key, got %d", w.Code)
	}

	req := httptest.NewRequest("POST", "/api/collect", strings.NewReader(""))
	req.Header.Set("X-API-Key", "wrong")
	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 with wrong key, got %d", rec.Code)
	}
}

func TestTriggerCollectionPassesKind(t *testing.T) {
	orch := &fakeOrchestrator{}
	server := newTestServer(orch, nil)

	w := doRequest(t, server, "POST", "/api/collect?kind=news", "", true)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if orch.collectKind != "news" {
		t.Errorf("expected kind filter passed through, got %q", orch.collectKind)
	}
	if !strings.Contains(w.Body.String(), `"new":4`) {
		t.Errorf("unexpected report body: %s", w.Body.String())
	}
}

func TestClassifyDisabledReturns503(t *testing.T) {
	handler := NewHandler(&fakeStatsContentRepo{}, &fakeAPIDigestRepo{}, &fakeOrchestrator{}, 3, false, true, "test")
	server := NewServer(handler, testKey)

	w := doRequest(t, server, "POST", "/api/classify", "", true)
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503 without classifier, got %d", w.Code)
	}
}

func TestDigestBuildSkipMessage(t *testing.T) {
	server := newTestServer(&fakeOrchestrator{digestID: 0}, nil)

	w := doRequest(t, server, "POST", "/api/digest", "", true)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "skipped") {
		t.Errorf("expected skip message, got %s", w.Body.String())
	}
}

func TestSendDigestErrorMapping(t *testing.T) {
	tests := []struct {
		name     string
		sendErr  error
		expected int
	}{
		{"invalid transition", delivery.ErrInvalidTransition, http.StatusConflict},
		{"no campaign", delivery.ErrNoCampaign, http.StatusConflict},
		{"not found", delivery.ErrNotFound, http.StatusNotFound},
		{"success", nil, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := newTestServer(&fakeOrchestrator{sendErr: tt.sendErr}, nil)
			w := doRequest(t, server, "POST", "/api/digests/9/send", "", true)
			if w.Code != tt.expected {
				t.Errorf("expected %d, got %d", tt.expected, w.Code)
			}
		})
	}
}

func TestPendingDigest(t *testing.T) {
	id := int64(7)
	server := newTestServer(&fakeOrchestrator{pending: &id}, &database.Digest{ID: 7, Subject: "Weekly"})

	w := doRequest(t, server, "GET", "/api/digest/pending", "", true)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	body := w.Body.String()
	if !strings.Contains(body, `"digest_id":7`) || !strings.Contains(body, `"pending":true`) {
		t.Errorf("unexpected pending body: %s", body)
	}

	empty := newTestServer(&fakeOrchestrator{}, nil)
	w = doRequest(t, empty, "GET", "/api/digest/pending", "", true)
	if !strings.Contains(w.Body.String(), `"pending":false`) {
		t.Errorf("expected no pending digest, got %s", w.Body.String())
	}
}

func TestSendPendingDigest(t *testing.T) {
	id := int64(7)
	server := newTestServer(&fakeOrchestrator{pending: &id}, nil)

	w := doRequest(t, server, "POST", "/api/digest/send", "", true)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"digest_id":7`) {
		t.Errorf("unexpected body: %s", w.Body.String())
	}

	empty := newTestServer(&fakeOrchestrator{}, nil)
	w = doRequest(t, empty, "POST", "/api/digest/send", "", true)
	if w.Code != http.StatusConflict {
		t.Errorf("expected 409 without pending digest, got %d", w.Code)
	}
}

func TestDeliveryWebhook(t *testing.T) {
	orch := &fakeOrchestrator{}
	server := newTestServer(orch, nil)

	w := doRequest(t, server, "POST", "/webhooks/delivery",
		`{"campaign_id":"abc123","emails_sent":250,"opens":100,"clicks":30}`, false)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if orch.webhookCampaign != "abc123" || orch.webhookOpens != 100 {
		t.Errorf("expected webhook recorded, got %q opens %d", orch.webhookCampaign, orch.webhookOpens)
	}

	w = doRequest(t, server, "POST", "/webhooks/delivery", `{"opens":1}`, false)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for missing campaign id, got %d", w.Code)
	}
}

func TestDigestHTMLView(t *testing.T) {
	digest := &database.Digest{ID: 3, HTMLContent: "<html><body>Weekly</body></html>"}
	server := newTestServer(&fakeOrchestrator{}, digest)

	w := doRequest(t, server, "GET", "/api/digests/3/html", "", true)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Header().Get("Content-Type"), "text/html") {
		t.Errorf("expected html content type, got %s", w.Header().Get("Content-Type"))
	}
	if w.Body.String() != digest.HTMLContent {
		t.Errorf("unexpected body: %s", w.Body.String())
	}

	w = doRequest(t, server, "GET", "/api/digests/99/html", "", true)
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}
