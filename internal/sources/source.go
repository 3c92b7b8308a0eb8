// Package sources defines the data-source layer around the sync core: a
// closed set of capability interfaces implemented by per-upstream fetchers,
// composed into [Source] values from explicit configuration and collected in
// a [Registry] built once at process start. The sync engine itself never
// touches this package; the job driver consumes it.
package sources

import (
	"context"
	"iter"

	"chargesync/internal/models"
)

// StaticFetcher pulls a full (or delta) snapshot of sites with nested
// chargepoints and connectors. The returned sequence is lazy and single-pass.
type StaticFetcher interface {
	FetchStatic(ctx context.Context) (iter.Seq[models.SiteRecord], error)
}

// DynamicFetcher pulls a batch of realtime status observations.
type DynamicFetcher interface {
	FetchDynamic(ctx context.Context) (iter.Seq[models.StatusEvent], error)
}

// Streamer consumes a long-lived realtime feed, emitting one status event per
// inbound message. Stream blocks until ctx is cancelled; transport errors are
// handled internally by reconnecting.
type Streamer interface {
	Stream(ctx context.Context, emit func(models.StatusEvent) error) error
}

// PushParser turns an inbound push payload into status events. Push
// authentication is handled by the push receiver, not here.
type PushParser interface {
	ParsePush(body []byte) ([]models.StatusEvent, error)
}

// Source is one configured upstream feed: its identity plus whichever
// capabilities its parser and transport support. Capability fields are nil
// when unsupported.
type Source struct {
	// ID is the data-source identifier scoping identity and deletion in the
	// store.
	ID string

	// StaticSourceID names the static data source whose chargepoints a
	// realtime feed resolves against. Empty means the feed is its own static
	// source.
	StaticSourceID string

	// DeleteMissing controls whether a static sync deletes sites absent from
	// the snapshot. Must be false for incremental delta feeds.
	DeleteMissing bool

	Static  StaticFetcher
	Dynamic DynamicFetcher
	Stream  Streamer
	Push    PushParser
}

// ChargepointSource returns the static data source ID realtime events of
// this source resolve against.
func (s *Source) ChargepointSource() string {
	if s.StaticSourceID != "" {
		return s.StaticSourceID
	}
	return s.ID
}
