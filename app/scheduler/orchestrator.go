package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/twincounty/digest/app/classify"
	"github.com/twincounty/digest/app/database"
	"github.com/twincounty/digest/app/ingest"
)

const (
	jobCollect  = "collect"
	jobClassify = "classify"
	jobDigest   = "digest"
	jobAutoSend = "auto-send"
)

// CollectionRunner drives one collection cycle across the configured sources.
type CollectionRunner interface {
	Run(ctx context.Context, kindFilter string) ingest.Report
}

// ClassificationPipeline classifies one batch of pending items.
type ClassificationPipeline interface {
	Run(ctx context.Context) (classify.Report, error)
}

// DigestAssembler builds a draft digest, returning 0 when there is nothing
// to send.
type DigestAssembler interface {
	Assemble(ctx context.Context) (int64, error)
}

// DeliveryMachine is the digest delivery state machine.
type DeliveryMachine interface {
	SendPreview(ctx context.Context, digestID int64) error
	MarkScheduled(ctx context.Context, digestID int64, at time.Time) error
	Deliver(ctx context.Context, digestID int64) error
}

// Config carries the orchestrator's timing and capability settings.
type Config struct {
	DigestWeekday time.Weekday
	DigestHour    int
	DigestMinute  int
	Location      *time.Location

	CollectInterval time.Duration
	ClassifyOffset  time.Duration

	PreviewDelay         time.Duration
	AutoSendAfterPreview bool

	ClassifierEnabled bool
	MailerEnabled     bool
}

// Orchestrator owns every timer in the system and sequences collection,
// classification, digest assembly and delivery. The pending auto-send digest
// id is the only state that survives restarts; it is flushed to storage
// before the one-shot timer is armed.
type Orchestrator struct {
	queue     *TimerQueue
	runner    CollectionRunner
	pipeline  ClassificationPipeline
	assembler DigestAssembler
	machine   DeliveryMachine

	digestRepo database.DigestRepository
	stateRepo  database.StateRepository

	cfg Config
}

func NewOrchestrator(queue *TimerQueue, runner CollectionRunner, pipeline ClassificationPipeline, assembler DigestAssembler, machine DeliveryMachine, digestRepo database.DigestRepository, stateRepo database.StateRepository, cfg Config) *Orchestrator {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	o := &Orchestrator{
		queue:      queue,
		runner:     runner,
		pipeline:   pipeline,
		assembler:  assembler,
		machine:    machine,
		digestRepo: digestRepo,
		stateRepo:  stateRepo,
		cfg:        cfg,
	}

	queue.SetOneShotHook(o.oneShotChanged)
	return o
}

// Start registers the recurring jobs, re-arms any persisted pending
// auto-send, and begins the event loop.
func (o *Orchestrator) Start(ctx context.Context) error {
	o.queue.AddInterval(jobCollect, o.cfg.CollectInterval, 0, func(ctx context.Context) error {
		o.runner.Run(ctx, "")
		return nil
	})

	if o.cfg.ClassifierEnabled {
		o.queue.AddInterval(jobClassify, o.cfg.CollectInterval, o.cfg.ClassifyOffset, func(ctx context.Context) error {
			_, err := o.pipeline.Run(ctx)
			return err
		})
	} else {
		slog.Warn("Classifier not configured, classification timer disabled")
	}

	o.queue.AddCron(jobDigest, o.cfg.DigestWeekday, o.cfg.DigestHour, o.cfg.DigestMinute, o.cfg.Location, func(ctx context.Context) error {
		_, err := o.buildAndPreview(ctx)
		return err
	})

	if err := o.restorePendingSend(ctx); err != nil {
		return err
	}

	o.queue.Start()
	slog.Info("Scheduler started",
		"digest_day", o.cfg.DigestWeekday.String(),
		"collect_interval", o.cfg.CollectInterval,
		"classify_offset", o.cfg.ClassifyOffset)
	return nil
}

func (o *Orchestrator) Stop() {
	o.queue.Stop()
}

// restorePendingSend reloads the persisted pending digest id and re-arms its
// auto-send timer. The digest's current status is not re-checked here; the
// delivery state machine enforces its own preconditions when the timer fires.
func (o *Orchestrator) restorePendingSend(ctx context.Context) error {
	pending, err := o.stateRepo.LoadSchedulerState(ctx)
	if err != nil {
		return fmt.Errorf("failed to restore scheduler state: %w", err)
	}
	if pending == nil {
		return nil
	}

	digestID := *pending
	slog.Info("Re-arming auto-send for pending digest", "digest_id", digestID)
	o.armAutoSend(digestID, time.Now().Add(o.cfg.PreviewDelay))
	return nil
}

// buildAndPreview runs the weekly digest job: assemble, send the approver
// preview, and arm the deferred auto-send.
func (o *Orchestrator) buildAndPreview(ctx context.Context) (int64, error) {
	digestID, err := o.assembler.Assemble(ctx)
	if err != nil {
		return 0, err
	}
	if digestID == 0 {
		return 0, nil
	}

	if !o.cfg.MailerEnabled {
		slog.Warn("Mailer not configured, digest left in draft", "digest_id", digestID)
		return digestID, nil
	}

	if err := o.machine.SendPreview(ctx, digestID); err != nil {
		return digestID, err
	}

	if o.cfg.AutoSendAfterPreview {
		sendAt := time.Now().Add(o.cfg.PreviewDelay)

		// The pending id is durable before the timer exists; a crash
		// between the two re-arms on restart instead of losing the send.
		if err := o.stateRepo.SaveSchedulerState(ctx, &digestID); err != nil {
			return digestID, fmt.Errorf("failed to persist pending digest: %w", err)
		}
		o.armAutoSend(digestID, sendAt)

		if err := o.machine.MarkScheduled(ctx, digestID, sendAt); err != nil {
			slog.Error("Failed to mark digest scheduled", "digest_id", digestID, "error", err)
		}
	}

	return digestID, nil
}

func (o *Orchestrator) armAutoSend(digestID int64, at time.Time) {
	o.queue.AddOneShot(jobAutoSend, at, func(ctx context.Context) error {
		return o.machine.Deliver(ctx, digestID)
	})
}

// oneShotChanged clears the persisted pending digest once the auto-send
// entry leaves the queue, whether it fired or was cancelled.
func (o *Orchestrator) oneShotChanged(id string, active bool) {
	if id != jobAutoSend || active {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := o.stateRepo.SaveSchedulerState(ctx, nil); err != nil {
		slog.Error("Failed to clear scheduler state", "error", err)
	}
}

// TriggerCollection runs a collection cycle now, optionally restricted to
// one source kind.
func (o *Orchestrator) TriggerCollection(ctx context.Context, kindFilter string) ingest.Report {
	return o.runner.Run(ctx, kindFilter)
}

// TriggerClassification runs a classification batch now.
func (o *Orchestrator) TriggerClassification(ctx context.Context) (classify.Report, error) {
	if !o.cfg.ClassifierEnabled {
		return classify.Report{}, fmt.Errorf("classifier not configured")
	}
	return o.pipeline.Run(ctx)
}

// TriggerDigestBuild assembles and previews a digest now, outside the weekly
// schedule.
func (o *Orchestrator) TriggerDigestBuild(ctx context.Context) (int64, error) {
	return o.buildAndPreview(ctx)
}

// TriggerSendNow cancels any armed auto-send and delivers the digest
// immediately.
func (o *Orchestrator) TriggerSendNow(ctx context.Context, digestID int64) error {
	o.queue.Cancel(jobAutoSend)
	return o.machine.Deliver(ctx, digestID)
}

// GetPendingDigestID returns the persisted digest id awaiting auto-send.
func (o *Orchestrator) GetPendingDigestID(ctx context.Context) (*int64, error) {
	return o.stateRepo.LoadSchedulerState(ctx)
}

// ListScheduledJobs returns the queued timers ordered by next fire.
func (o *Orchestrator) ListScheduledJobs() []JobInfo {
	return o.queue.Jobs()
}

// ReceiveDeliveryWebhook records provider-pushed metrics for the digest
// owning the campaign.
func (o *Orchestrator) ReceiveDeliveryWebhook(ctx context.Context, campaignID string, recipients, opens, clicks int) error {
	digest, err := o.digestRepo.GetByCampaignID(ctx, campaignID)
	if err != nil {
		return err
	}
	if digest == nil {
		return fmt.Errorf("no digest for campaign %s", campaignID)
	}
	return o.digestRepo.UpdateMetrics(ctx, digest.ID, recipients, opens, clicks)
}
