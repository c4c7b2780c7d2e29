package ingest

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/twincounty/digest/app/collect"
	"github.com/twincounty/digest/app/database"
)

// SourceCollector pairs a configured source with the collector built for it.
type SourceCollector struct {
	Name      string
	Kind      string
	Collector collect.Collector
}

// Report aggregates one collection cycle across all sources.
type Report struct {
	SourcesScraped int
	Found          int
	New            int
	Duplicates     int
	Errors         []string
}

// Runner drives one collection cycle. Each source is isolated: a failing or
// panicking collector is recorded in the report and the cycle moves on.
type Runner struct {
	collectors []SourceCollector
	gate       *Gate
	runRepo    database.RunRepository
}

func NewRunner(collectors []SourceCollector, gate *Gate, runRepo database.RunRepository) *Runner {
	return &Runner{collectors: collectors, gate: gate, runRepo: runRepo}
}

// Run collects from every source whose kind matches kindFilter. An empty
// filter matches all sources.
func (r *Runner) Run(ctx context.Context, kindFilter string) Report {
	runID := uuid.New().String()
	report := Report{}
	run := database.CollectionRun{RunID: runID, SourceKind: kindFilter, Status: database.RunCompleted}
	attempted := 0

	for _, sc := range r.collectors {
		if kindFilter != "" && sc.Kind != kindFilter {
			continue
		}
		attempted++

		candidates, err := r.collectSource(ctx, sc)
		if err != nil {
			slog.Error("Source collection failed", "source", sc.Name, "kind", sc.Kind, "error", err)
			report.Errors = append(report.Errors, fmt.Sprintf("%s: %v", sc.Name, err))
			run.ErrorMessage = appendError(run.ErrorMessage, sc.Name, err)
			continue
		}

		report.SourcesScraped++
		report.Found += len(candidates)
		run.ItemsFound += len(candidates)

		for _, c := range candidates {
			outcome, err := r.gate.Ingest(ctx, c)
			if err != nil {
				slog.Error("Failed to ingest candidate", "source", sc.Name, "url", c.URL, "error", err)
				report.Errors = append(report.Errors, fmt.Sprintf("%s: %v", sc.Name, err))
				run.ErrorMessage = appendError(run.ErrorMessage, sc.Name, err)
				continue
			}
			if outcome == Inserted {
				report.New++
				run.ItemsNew++
			} else {
				report.Duplicates++
				run.ItemsDuplicate++
			}
		}

		slog.Debug("Source collected", "source", sc.Name, "found", len(candidates))
	}

	if attempted > 0 && report.SourcesScraped == 0 {
		run.Status = database.RunFailed
	}

	// One row per cycle; run_id is unique in collection_runs.
	if err := r.runRepo.RecordRun(ctx, run); err != nil {
		slog.Error("Failed to record collection run", "run_id", runID, "error", err)
	}

	slog.Info("Collection cycle completed",
		"run_id", runID,
		"sources", report.SourcesScraped,
		"found", report.Found,
		"new", report.New,
		"duplicates", report.Duplicates,
		"errors", len(report.Errors))

	return report
}

func (r *Runner) collectSource(ctx context.Context, sc SourceCollector) (candidates []collect.Candidate, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("collector panic: %v", rec)
		}
	}()
	return sc.Collector.Collect(ctx)
}

func appendError(existing, source string, err error) string {
	msg := fmt.Sprintf("%s: %v", source, err)
	if existing == "" {
		return msg
	}
	return existing + "; " + msg
}
