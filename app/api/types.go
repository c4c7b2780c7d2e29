package api

import (
	"context"

	"github.com/twincounty/digest/app/classify"
	"github.com/twincounty/digest/app/database"
	"github.com/twincounty/digest/app/ingest"
	"github.com/twincounty/digest/app/scheduler"
)

// Orchestrator is the scheduler surface the API drives. Manual triggers run
// the same code paths as the timers.
type Orchestrator interface {
	TriggerCollection(ctx context.Context, kindFilter string) ingest.Report
	TriggerClassification(ctx context.Context) (classify.Report, error)
	TriggerDigestBuild(ctx context.Context) (int64, error)
	TriggerSendNow(ctx context.Context, digestID int64) error
	GetPendingDigestID(ctx context.Context) (*int64, error)
	ListScheduledJobs() []scheduler.JobInfo
	ReceiveDeliveryWebhook(ctx context.Context, campaignID string, recipients, opens, clicks int) error
}

// Handler holds the dependencies for all HTTP handlers.
type Handler struct {
	contentRepo  database.ContentRepository
	digestRepo   database.DigestRepository
	orchestrator Orchestrator

	sourceCount       int
	classifierEnabled bool
	mailerEnabled     bool
	version           string
}

// deliveryWebhook is the payload the campaign provider posts after a send.
type deliveryWebhook struct {
	CampaignID string `json:"campaign_id" binding:"required"`
	EmailsSent int    `json:"emails_sent"`
	Opens      int    `json:"opens"`
	Clicks     int    `json:"clicks"`
}
