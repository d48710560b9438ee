package pipeline

import (
	"context"
	"time"

	"cinepipe/pkg/checkpoint"
	"cinepipe/pkg/detect"
	"cinepipe/pkg/logger"
	"cinepipe/pkg/models"
	"cinepipe/pkg/retry"
)

// Options are the manual overrides for a cycle. All default to off.
type Options struct {
	// SkipFetch leaves the row store as-is and goes straight to detection
	SkipFetch bool
	// SkipWrap never runs the link processor
	SkipWrap bool
	// ForceWrap runs the link processor even when no new rows were detected
	ForceWrap bool
}

// Scheduler drives fetch → detect → wrap cycles on a fixed interval. One
// cycle runs to completion before the next begins; collections and rows are
// processed strictly sequentially, so checkpoints never race.
type Scheduler struct {
	fetcher     FetchSource
	store       RowStore
	checkpoints *checkpoint.Manager
	processor   *Processor
	collections []string
	interval    time.Duration
	opts        Options
	logger      logger.Logger
}

// NewScheduler creates a cycle scheduler over the default collections
func NewScheduler(fetcher FetchSource, store RowStore, checkpoints *checkpoint.Manager, processor *Processor, interval time.Duration, opts Options, log logger.Logger) *Scheduler {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Scheduler{
		fetcher:     fetcher,
		store:       store,
		checkpoints: checkpoints,
		processor:   processor,
		collections: models.DefaultCollections(),
		interval:    interval,
		opts:        opts,
		logger:      log,
	}
}

// SetCollections overrides the collection list. Used in tests.
func (s *Scheduler) SetCollections(collections []string) {
	s.collections = collections
}

// Run loops cycles until the context is cancelled. A failed cycle is logged
// and retried on the next tick; it never stops the loop. The sleep between
// cycles is the only long suspension point and is context-interruptible.
func (s *Scheduler) Run(ctx context.Context) error {
	for cycle := 1; ; cycle++ {
		s.logger.InfoWithFields("cycle starting", map[string]interface{}{
			"cycle": cycle,
		})

		if err := s.RunOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.logger.WithError(err).WithField("cycle", cycle).
				Error("cycle failed, waiting for next tick")
		}

		next := time.Now().Add(s.interval)
		s.logger.InfoWithFields("cycle complete, sleeping", map[string]interface{}{
			"cycle":    cycle,
			"interval": s.interval,
			"next_run": next.Format(time.RFC3339),
		})

		if err := retry.Wait(ctx, s.interval); err != nil {
			s.logger.Info("scheduler stopped")
			return err
		}
	}
}

// RunOnce executes exactly one fetch → detect → wrap cycle.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	// Step 1: refresh the row store from the catalog source. A fetch
	// failure aborts the cycle; the prior row store and checkpoints stay
	// untouched.
	if s.opts.SkipFetch {
		s.logger.Info("fetch step skipped")
	} else if err := s.refresh(ctx); err != nil {
		s.logger.WithError(err).Error("catalog fetch failed, keeping prior row store")
		return err
	}

	// Step 2: compare current counts against the last snapshot
	counts, err := s.store.RowCounts()
	if err != nil {
		return err
	}
	result := detect.Compare(counts, s.checkpoints.LoadSnapshot())

	for collection, delta := range result.Grown {
		s.logger.InfoWithFields("new rows detected", map[string]interface{}{
			"collection": collection,
			"new_rows":   delta,
		})
	}

	// Step 3: wrap. Row-level and collection-level failures are logged and
	// never escalate to a cycle failure.
	switch {
	case s.opts.SkipWrap:
		s.logger.Info("wrap step disabled")
	case result.HasNewRows || s.opts.ForceWrap:
		if s.opts.ForceWrap && !result.HasNewRows {
			s.logger.Info("no new rows, wrapping forced")
		}
		s.wrapAll(ctx)
	default:
		s.logger.Info("no new rows, skipping wrap step")
	}

	if ctx.Err() != nil {
		return ctx.Err()
	}

	// Step 4: persist the snapshot regardless of the wrap outcome, so the
	// decision baseline never drifts
	if err := s.checkpoints.SaveSnapshot(result.Snapshot); err != nil {
		return err
	}

	return nil
}

// refresh replaces or extends every collection from the fetch source.
// Existing rows keep their order and wrapped links; genuinely new items
// append at the end, which keeps checkpoint offsets valid.
func (s *Scheduler) refresh(ctx context.Context) error {
	for _, name := range s.collections {
		existing, err := s.store.LoadCollection(name)
		if err != nil {
			return err
		}

		knownIDs := make(map[string]struct{}, existing.Len())
		for i := range existing.Rows {
			knownIDs[existing.Rows[i].ID] = struct{}{}
		}

		fetched, err := s.fetcher.FetchCollection(ctx, name, knownIDs)
		if err != nil {
			return err
		}

		merged := make([]models.ItemRow, 0, existing.Len()+len(fetched))
		merged = append(merged, existing.Rows...)
		added := 0
		for _, row := range fetched {
			if _, known := knownIDs[row.ID]; known {
				continue
			}
			merged = append(merged, row)
			added++
		}

		if err := s.store.ReplaceCollection(&models.Collection{Name: name, Rows: merged}); err != nil {
			return err
		}

		s.logger.InfoWithFields("collection refreshed", map[string]interface{}{
			"collection": name,
			"rows":       len(merged),
			"added":      added,
		})
	}

	return nil
}

// wrapAll runs the processor over every collection, isolating failures per
// collection
func (s *Scheduler) wrapAll(ctx context.Context) {
	for _, name := range s.collections {
		if ctx.Err() != nil {
			return
		}

		stats, err := s.processor.ProcessCollection(ctx, name)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			s.logger.WithError(err).WithField("collection", name).
				Error("collection processing aborted, next cycle resumes from last checkpoint")
			continue
		}

		s.logger.InfoWithFields("collection wrap pass finished", map[string]interface{}{
			"collection": name,
			"wrapped":    stats.Wrapped,
			"skipped":    stats.Skipped,
			"failed":     stats.Failed,
		})
	}
}
