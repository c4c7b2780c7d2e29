package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/twincounty/digest/app/database"
	"github.com/twincounty/digest/app/delivery"
)

func NewHandler(contentRepo database.ContentRepository, digestRepo database.DigestRepository,
	orchestrator Orchestrator, sourceCount int, classifierEnabled, mailerEnabled bool,
	version string) *Handler {
	return &Handler{
		contentRepo:       contentRepo,
		digestRepo:        digestRepo,
		orchestrator:      orchestrator,
		sourceCount:       sourceCount,
		classifierEnabled: classifierEnabled,
		mailerEnabled:     mailerEnabled,
		version:           version,
	}
}

func (h *Handler) GetHealth(c *gin.Context) {
	health := map[string]interface{}{
		"timestamp": time.Now().Format(time.RFC3339),
		"version":   h.version,
		"sources":   h.sourceCount,
		"capabilities": map[string]bool{
			"classifier": h.classifierEnabled,
			"mailer":     h.mailerEnabled,
		},
	}

	if stats, err := h.contentRepo.GetStats(c.Request.Context()); err == nil {
		health["content_items"] = stats.Total
	}

	c.JSON(http.StatusOK, health)
}

func (h *Handler) GetStats(c *gin.Context) {
	stats, err := h.contentRepo.GetStats(c.Request.Context())
	if err != nil {
		slog.Error("Database error", "operation", "get_stats", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	response := map[string]interface{}{
		"content": map[string]interface{}{
			"total":    stats.Total,
			"pending":  stats.Pending,
			"approved": stats.Approved,
			"rejected": stats.Rejected,
			"events":   stats.Events,
		},
		"counties": map[string]interface{}{
			"nash":      stats.Nash,
			"edgecombe": stats.Edgecombe,
			"wilson":    stats.Wilson,
		},
	}

	if latest, err := h.digestRepo.GetLatest(c.Request.Context()); err == nil && latest != nil {
		response["latest_digest"] = digestSummary(latest)
	}

	c.JSON(http.StatusOK, response)
}

func (h *Handler) APITriggerCollection(c *gin.Context) {
	kind := c.Query("kind")

	report := h.orchestrator.TriggerCollection(c.Request.Context(), kind)

	c.JSON(http.StatusOK, map[string]interface{}{
		"sources_scraped": report.SourcesScraped,
		"found":           report.Found,
		"new":             report.New,
		"duplicates":      report.Duplicates,
		"errors":          report.Errors,
	})
}

func (h *Handler) APITriggerClassification(c *gin.Context) {
	if !h.classifierEnabled {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": "Classifier not configured",
		})
		return
	}

	report, err := h.orchestrator.TriggerClassification(c.Request.Context())
	if err != nil {
		slog.Error("Classification failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Classification failed"})
		return
	}

	c.JSON(http.StatusOK, map[string]interface{}{
		"processed": report.Processed,
		"approved":  report.Approved,
		"rejected":  report.Rejected,
	})
}

func (h *Handler) APITriggerDigestBuild(c *gin.Context) {
	digestID, err := h.orchestrator.TriggerDigestBuild(c.Request.Context())
	if err != nil {
		slog.Error("Digest build failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Digest build failed",
			"details": err.Error(),
		})
		return
	}

	if digestID == 0 {
		c.JSON(http.StatusOK, gin.H{"message": "No approved content available, digest skipped"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"digest_id": digestID})
}

func (h *Handler) APISendDigest(c *gin.Context) {
	digestID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid digest id"})
		return
	}

	if !h.mailerEnabled {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Mailer not configured"})
		return
	}

	h.sendDigest(c, digestID)
}

func (h *Handler) sendDigest(c *gin.Context, digestID int64) {
	if err := h.orchestrator.TriggerSendNow(c.Request.Context(), digestID); err != nil {
		switch {
		case errors.Is(err, delivery.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Digest not found"})
		case errors.Is(err, delivery.ErrInvalidTransition), errors.Is(err, delivery.ErrNoCampaign):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		default:
			slog.Error("Digest send failed", "digest_id", digestID, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Digest send failed"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"digest_id": digestID, "status": "sent"})
}

// APISendPendingDigest delivers the digest currently awaiting auto-send,
// cancelling its timer.
func (h *Handler) APISendPendingDigest(c *gin.Context) {
	if !h.mailerEnabled {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Mailer not configured"})
		return
	}

	pending, err := h.orchestrator.GetPendingDigestID(c.Request.Context())
	if err != nil {
		slog.Error("Database error", "operation", "get_pending_digest", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}
	if pending == nil {
		c.JSON(http.StatusConflict, gin.H{"error": "No digest awaiting send"})
		return
	}

	h.sendDigest(c, *pending)
}

func (h *Handler) APIGetPendingDigest(c *gin.Context) {
	pending, err := h.orchestrator.GetPendingDigestID(c.Request.Context())
	if err != nil {
		slog.Error("Database error", "operation", "get_pending_digest", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	if pending == nil {
		c.JSON(http.StatusOK, gin.H{"pending": false})
		return
	}

	response := map[string]interface{}{
		"pending":   true,
		"digest_id": *pending,
	}

	if digest, err := h.digestRepo.GetByID(c.Request.Context(), *pending); err == nil && digest != nil {
		response["digest"] = digestSummary(digest)
	}

	c.JSON(http.StatusOK, response)
}

func (h *Handler) APIGetDigest(c *gin.Context) {
	digestID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid digest id"})
		return
	}

	digest, err := h.digestRepo.GetByID(c.Request.Context(), digestID)
	if err != nil {
		slog.Error("Database error", "operation", "get_digest", "digest_id", digestID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}
	if digest == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Digest not found"})
		return
	}

	details := digestSummary(digest)
	details["preview_sent_to"] = digest.PreviewSentTo
	details["preview_sent_at"] = digest.PreviewSentAt
	details["scheduled_for"] = digest.ScheduledFor
	details["sent_at"] = digest.SentAt
	details["campaign_id"] = digest.CampaignID
	if digest.RecipientsCount != nil {
		details["metrics"] = map[string]interface{}{
			"recipients": digest.RecipientsCount,
			"opens":      digest.OpensCount,
			"clicks":     digest.ClicksCount,
		}
	}

	c.JSON(http.StatusOK, details)
}

// APIGetDigestHTML serves the rendered digest for in-browser review.
func (h *Handler) APIGetDigestHTML(c *gin.Context) {
	digestID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.Status(http.StatusBadRequest)
		return
	}

	digest, err := h.digestRepo.GetByID(c.Request.Context(), digestID)
	if err != nil {
		slog.Error("Database error", "operation", "get_digest_html", "digest_id", digestID, "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}
	if digest == nil {
		c.Status(http.StatusNotFound)
		return
	}

	c.Header("Content-Type", "text/html; charset=utf-8")
	c.String(http.StatusOK, digest.HTMLContent)
}

func (h *Handler) APIListJobs(c *gin.Context) {
	jobs := h.orchestrator.ListScheduledJobs()
	c.JSON(http.StatusOK, map[string]interface{}{
		"jobs":  jobs,
		"total": len(jobs),
	})
}

func (h *Handler) DeliveryWebhook(c *gin.Context) {
	var payload deliveryWebhook
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid webhook payload"})
		return
	}

	err := h.orchestrator.ReceiveDeliveryWebhook(c.Request.Context(), payload.CampaignID,
		payload.EmailsSent, payload.Opens, payload.Clicks)
	if err != nil {
		slog.Error("Failed to record delivery webhook", "campaign_id", payload.CampaignID, "error", err)
		c.JSON(http.StatusNotFound, gin.H{"error": "Unknown campaign"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "recorded"})
}

func digestSummary(d *database.Digest) map[string]interface{} {
	return map[string]interface{}{
		"id":          d.ID,
		"uid":         d.UID,
		"subject":     d.Subject,
		"status":      string(d.Status),
		"total_items": d.TotalItems,
		"counties": map[string]int{
			"nash":      d.NashItems,
			"edgecombe": d.EdgecombeItems,
			"wilson":    d.WilsonItems,
		},
	}
}
