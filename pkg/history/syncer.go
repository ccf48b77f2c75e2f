package history

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/Sternrassler/proxy-inspector/pkg/async"
)

type fetchResult struct {
	records []Record
	err     error
}

// TickResult reports what one Syncer tick did.
type TickResult struct {
	// Started is set when the tick launched a new fetch.
	Started bool

	// Completed is set when the tick consumed a finished fetch.
	Completed bool

	// Merged counts records inserted into the collection.
	Merged int

	// Err is the fetch error when the consumed fetch failed.
	Err error
}

// Failed reports whether the consumed fetch failed.
func (r TickResult) Failed() bool {
	return r.Err != nil
}

// Syncer keeps a Collection up to date with a Source.
//
// At most one fetch is in flight at a time. Tick never blocks: it consumes a
// finished fetch, if any, and starts the next one when the slot is free. A
// failed fetch leaves the cursor untouched and the following tick retries.
//
// A Syncer belongs to a single control loop and is not safe for concurrent
// use.
type Syncer struct {
	source     Source
	cursor     Cursor
	collection *Collection
	inFlight   *async.Future[fetchResult]
	logger     zerolog.Logger
}

// NewSyncer creates a syncer with an empty collection and a zero cursor.
func NewSyncer(source Source, logger zerolog.Logger) *Syncer {
	return &Syncer{
		source:     source,
		collection: NewCollection(),
		logger:     logger.With().Str("component", "history-syncer").Str("source", source.Name()).Logger(),
	}
}

// Tick advances the sync state machine by one step.
func (s *Syncer) Tick(ctx context.Context) TickResult {
	var res TickResult

	if s.inFlight != nil {
		out, ok := s.inFlight.Drain()
		if !ok {
			return res
		}
		s.inFlight = nil
		res.Completed = true

		if out.err != nil {
			res.Err = out.err
			s.logger.Debug().Err(out.err).Uint64("last_id", s.cursor.LastSeenID).Msg("History fetch failed")
		} else {
			s.cursor, res.Merged = Merge(s.cursor, s.collection, out.records)
			if res.Merged > 0 {
				s.logger.Debug().
					Int("merged", res.Merged).
					Uint64("last_id", s.cursor.LastSeenID).
					Msg("History merged")
			}
		}
	}

	lastID := s.cursor.LastSeenID
	fetchCtx := context.WithoutCancel(ctx)
	s.inFlight = async.Spawn(func() fetchResult {
		records, err := s.source.FetchSince(fetchCtx, lastID)
		return fetchResult{records: records, err: err}
	})
	res.Started = true
	return res
}

// Cursor returns the current cursor.
func (s *Syncer) Cursor() Cursor {
	return s.cursor
}

// Collection returns the synced collection.
func (s *Syncer) Collection() *Collection {
	return s.collection
}

// InFlight reports whether a fetch is outstanding.
func (s *Syncer) InFlight() bool {
	return s.inFlight != nil
}
