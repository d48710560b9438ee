package pipeline

import (
	"context"
	"errors"
	"fmt"

	"cinepipe/pkg/checkpoint"
	"cinepipe/pkg/config"
	errs "cinepipe/pkg/errors"
	"cinepipe/pkg/logger"
	"cinepipe/pkg/models"
	"cinepipe/pkg/retry"
)

// Processor applies the link-wrapping transform to a collection in bounded
// batches, persisting row-store state and checkpoint after each batch. Rows
// that already carry a wrapped link are skipped without an outbound call, so
// reprocessing a fully wrapped collection is a no-op.
type Processor struct {
	store       RowStore
	checkpoints *checkpoint.Manager
	wrapper     LinkWrapper
	cfg         config.PipelineConfig
	retrier     *retry.HTTPRetrier
	logger      logger.Logger
}

// Stats summarizes one processing pass over a collection.
type Stats struct {
	Collection string
	Processed  int // rows visited (wrapped, skipped, or failed)
	Wrapped    int // rows that received a new wrapped link
	Skipped    int // rows already wrapped or not wrappable
	Failed     int // rows whose retry budget was exhausted
	Offset     int // checkpoint offset after the pass
}

// NewProcessor creates a batch link processor
func NewProcessor(store RowStore, checkpoints *checkpoint.Manager, wrapper LinkWrapper, cfg config.PipelineConfig, log logger.Logger) *Processor {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Processor{
		store:       store,
		checkpoints: checkpoints,
		wrapper:     wrapper,
		cfg:         cfg,
		retrier: retry.NewHTTPRetrier(cfg.MaxRetries, &retry.ExponentialBackoff{
			BaseDelay:    cfg.RetryDelay,
			MaxDelay:     cfg.RetryDelay * 16,
			Multiplier:   2.0,
			JitterFactor: 0.1,
		}, log),
		logger: log,
	}
}

// ProcessCollection wraps every unwrapped row of one collection. Processing
// resumes at the stored checkpoint offset; a missing or corrupt checkpoint
// falls back to offset 0, where the per-row wrapped check keeps the pass
// correct, just slower. Persistence failures abort the pass without
// advancing the checkpoint; a single row's wrapping failure never does.
func (p *Processor) ProcessCollection(ctx context.Context, name string) (*Stats, error) {
	stats := &Stats{Collection: name}

	collection, err := p.store.LoadCollection(name)
	if err != nil {
		return stats, err
	}
	if collection.Len() == 0 {
		p.logger.DebugWithFields("collection empty, nothing to wrap", map[string]interface{}{
			"collection": name,
		})
		return stats, nil
	}

	start := p.resumeOffset(name, collection)
	stats.Offset = start

	p.logger.InfoWithFields("processing collection", map[string]interface{}{
		"collection": name,
		"rows":       collection.Len(),
		"offset":     start,
		"wrapped":    collection.WrappedCount(),
	})

	pending := make(map[int]string)
	inBatch := 0

	for i := start; i < collection.Len(); i++ {
		if err := ctx.Err(); err != nil {
			// Cancelled mid-batch: everything since the last batch boundary
			// is unpersisted and will be redone next run
			return stats, err
		}

		row := &collection.Rows[i]
		switch {
		case row.IsWrapped():
			stats.Skipped++
		case !row.Wrappable():
			stats.Skipped++
		default:
			link, err := p.wrapRow(ctx, row)
			if err != nil {
				if ctx.Err() != nil {
					return stats, err
				}
				// Retry budget exhausted: leave the row unwrapped and move
				// on. The checkpoint still advances past it; the defensive
				// re-check picks it up on a later full pass.
				stats.Failed++
				p.logger.WarnWithFields("row wrapping failed, continuing", map[string]interface{}{
					"collection": name,
					"row":        i,
					"item_id":    row.ID,
					"error":      err.Error(),
				})
			} else {
				row.WrappedLink = link
				pending[i] = link
				stats.Wrapped++
			}
		}
		stats.Processed++
		inBatch++

		if inBatch >= p.cfg.BatchSize {
			if err := p.persist(name, pending, i+1, collection.Len()); err != nil {
				return stats, err
			}
			stats.Offset = i + 1
			pending = make(map[int]string)
			inBatch = 0
		}
	}

	// Final persistence: checkpoint lands at offset = collection length, so
	// the next invocation is a fast no-op scan
	if err := p.persist(name, pending, collection.Len(), collection.Len()); err != nil {
		return stats, err
	}
	stats.Offset = collection.Len()

	p.logger.InfoWithFields("collection processed", map[string]interface{}{
		"collection": name,
		"wrapped":    stats.Wrapped,
		"skipped":    stats.Skipped,
		"failed":     stats.Failed,
	})

	return stats, nil
}

// resumeOffset returns the row index to start from. The stored offset is
// clamped to the collection length, and the prefix below it is re-checked
// for unwrapped rows: the fetch step can replace the dataset between cycles,
// so the wrapped-link field, not the offset, is the source of truth.
func (p *Processor) resumeOffset(name string, collection *models.Collection) int {
	record, err := p.checkpoints.Load(name)
	if err != nil {
		p.logger.WithError(err).WithField("collection", name).
			Warn("checkpoint unreadable, falling back to offset 0")
		return 0
	}
	if record == nil {
		return 0
	}

	offset := record.Offset
	if offset > collection.Len() {
		offset = collection.Len()
	}

	for i := 0; i < offset; i++ {
		if collection.Rows[i].Wrappable() {
			p.logger.WarnWithFields("unwrapped row below checkpoint offset, rescanning", map[string]interface{}{
				"collection": name,
				"row":        i,
				"offset":     offset,
			})
			return i
		}
	}

	return offset
}

// wrapRow invokes the wrapper with bounded retries. Transient errors retry on
// the exponential curve, rate limits on the slower one; anything surviving
// the budget comes back as a permanent wrap error.
func (p *Processor) wrapRow(ctx context.Context, row *models.ItemRow) (string, error) {
	var link string
	err := p.retrier.DoWithErrorType(ctx, func() error {
		var wrapErr error
		link, wrapErr = p.wrapper.Wrap(ctx, row.SourceURL, row.ID)
		return wrapErr
	})
	if err != nil {
		if ctx.Err() != nil {
			return "", err
		}
		return "", errs.New(errs.ErrorTypeWrapPermanent,
			fmt.Sprintf("retry budget exhausted for %s: %v", row.ID, err), 0)
	}
	return link, nil
}

// persist writes the batch's wrapped links to the row store, then advances
// the checkpoint. Strictly in that order: the checkpoint must never claim
// more progress than the row store holds.
func (p *Processor) persist(name string, links map[int]string, offset, rowCount int) error {
	if err := p.store.UpdateWrappedLinks(name, links); err != nil {
		var pipeErr *errs.Error
		if !errors.As(err, &pipeErr) {
			err = errs.New(errs.ErrorTypePersistence, err.Error(), 0)
		}
		return err
	}

	return p.checkpoints.Save(&checkpoint.Record{
		Collection: name,
		Offset:     offset,
		RowCount:   rowCount,
	})
}
