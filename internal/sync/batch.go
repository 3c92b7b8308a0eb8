package sync

import (
	"iter"
	"time"

	"go.uber.org/zap"
)

// DefaultBatchSize is the number of input tuples processed per transaction
// when no explicit batch size is configured.
const DefaultBatchSize = 100

// batches re-chunks a single-pass sequence into slices of at most size
// elements. The input is consumed lazily; only one batch is materialized at a
// time, so memory stays bounded regardless of total input size.
func batches[T any](seq iter.Seq[T], size int) iter.Seq[[]T] {
	if size <= 0 {
		size = DefaultBatchSize
	}
	return func(yield func([]T) bool) {
		batch := make([]T, 0, size)
		for v := range seq {
			batch = append(batch, v)
			if len(batch) == size {
				if !yield(batch) {
					return
				}
				batch = make([]T, 0, size)
			}
		}
		if len(batch) > 0 {
			yield(batch)
		}
	}
}

const progressLogInterval = 10 * time.Second

// progress is a per-tuple counter giving operational visibility into long
// sync runs. It logs at a bounded rate, not per tuple.
type progress struct {
	log     *zap.Logger
	label   string
	count   int
	started time.Time
	lastLog time.Time
}

func newProgress(log *zap.Logger, label string) *progress {
	now := time.Now()
	return &progress{log: log, label: label, started: now, lastLog: now}
}

func (p *progress) Add(n int) {
	p.count += n
	if time.Since(p.lastLog) >= progressLogInterval {
		p.log.Info(p.label, zap.Int("processed", p.count))
		p.lastLog = time.Now()
	}
}

func (p *progress) Done() {
	p.log.Debug(p.label+" finished", zap.Int("processed", p.count), zap.Duration("took", time.Since(p.started)))
}
