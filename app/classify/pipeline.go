package classify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/failsafe-go/failsafe-go"
	"golang.org/x/sync/errgroup"

	"github.com/twincounty/digest/app/ai"
	"github.com/twincounty/digest/app/database"
)

// ItemClassifier decides whether one content item belongs in the digest.
type ItemClassifier interface {
	Classify(ctx context.Context, item database.ContentItem) (database.Classification, error)
}

// Report aggregates one classification batch.
type Report struct {
	Processed int
	Approved  int
	Rejected  int
}

// Pipeline classifies pending items in bounded-concurrency batches. The
// policy is fail-closed: an item whose classification call fails for any
// reason is Rejected rather than left pending, so nothing is silently
// re-queued forever.
type Pipeline struct {
	contentRepo    database.ContentRepository
	classifier     ItemClassifier
	executor       failsafe.Executor[database.Classification]
	batchLimit     int
	maxConcurrency int
}

func NewPipeline(contentRepo database.ContentRepository, classifier ItemClassifier, executor failsafe.Executor[database.Classification], batchLimit, maxConcurrency int) *Pipeline {
	if batchLimit <= 0 {
		batchLimit = 50
	}
	if maxConcurrency <= 0 {
		maxConcurrency = 5
	}
	return &Pipeline{
		contentRepo:    contentRepo,
		classifier:     classifier,
		executor:       executor,
		batchLimit:     batchLimit,
		maxConcurrency: maxConcurrency,
	}
}

func (p *Pipeline) Run(ctx context.Context) (Report, error) {
	items, err := p.contentRepo.GetPending(ctx, p.batchLimit)
	if err != nil {
		return Report{}, fmt.Errorf("failed to load pending items: %w", err)
	}

	if len(items) == 0 {
		slog.Debug("No pending items to classify")
		return Report{}, nil
	}

	var approved, rejected atomic.Int64

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(p.maxConcurrency)

	for _, item := range items {
		item := item
		group.Go(func() error {
			result := p.classifyItem(groupCtx, item)

			applied, err := p.contentRepo.UpdateClassification(groupCtx, item.ID, result)
			if err != nil {
				slog.Error("Failed to store classification", "item_id", item.ID, "error", err)
				return nil
			}
			if !applied {
				slog.Debug("Item already decided, skipping", "item_id", item.ID)
				return nil
			}

			if result.Decision == database.StatusApproved {
				approved.Add(1)
			} else {
				rejected.Add(1)
			}
			return nil
		})
	}

	// Workers swallow their own failures; the group error is only a
	// context cancellation.
	if err := group.Wait(); err != nil {
		return Report{}, err
	}

	report := Report{
		Processed: len(items),
		Approved:  int(approved.Load()),
		Rejected:  int(rejected.Load()),
	}

	slog.Info("Classification batch completed",
		"processed", report.Processed,
		"approved", report.Approved,
		"rejected", report.Rejected)

	return report, nil
}

func (p *Pipeline) classifyItem(ctx context.Context, item database.ContentItem) database.Classification {
	result, err := p.executor.WithContext(ctx).Get(func() (database.Classification, error) {
		return p.classifier.Classify(ctx, item)
	})
	if err == nil {
		return result
	}

	var parseErr *ai.ParseError
	if errors.As(err, &parseErr) {
		slog.Error("Classifier response unparseable, rejecting", "item_id", item.ID, "error", err)
		return failClosed(item, fmt.Sprintf("parse error: %v", parseErr.Err))
	}

	slog.Error("Classification failed, rejecting", "item_id", item.ID, "error", err)
	return failClosed(item, fmt.Sprintf("error: %v", err))
}

// failClosed builds the rejection stored when classification cannot complete.
func failClosed(item database.ContentItem, reason string) database.Classification {
	return database.Classification{
		Decision:       database.StatusRejected,
		Reason:         reason,
		Sentiment:      "neutral",
		SentimentScore: 0.5,
		Category:       "other",
		County:         item.County,
	}
}
