// Package store holds the latest issue snapshot for the presentation layer.
package store

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/kalverra/jira-insights/ingest"
	"github.com/kalverra/jira-insights/issues"
)

// Snapshot is an immutable result of one completed fetch. Readers must not
// modify it.
type Snapshot struct {
	Issues     []issues.Issue `json:"issues"`
	JQL        string         `json:"jql"`
	Message    string         `json:"message"`
	FetchedAt  time.Time      `json:"fetchedAt"`
	Generation uint64         `json:"generation"`
}

// FetchFunc runs one ingestion.
type FetchFunc func(ctx context.Context) ingest.Result[[]issues.Issue]

// Store keeps the most recent successful snapshot. A successful fetch
// replaces it wholesale; a failed one leaves it untouched. Concurrent
// refreshes for the same key share one fetch, and fetches for different
// keys run one at a time, so responses are stored in completion order.
type Store struct {
	mu         sync.Mutex
	current    atomic.Pointer[Snapshot]
	generation atomic.Uint64
	group      singleflight.Group
	now        func() time.Time
	logger     zerolog.Logger
}

// New creates an empty store.
func New(logger zerolog.Logger) *Store {
	return &Store{
		now:    time.Now,
		logger: logger.With().Str("component", "store").Logger(),
	}
}

// Current returns the latest snapshot, or nil before the first successful
// fetch.
func (s *Store) Current() *Snapshot {
	return s.current.Load()
}

// Refresh runs fetch unless a refresh for the same key is already in
// flight, in which case it waits for and returns that one's result. The key
// is the JQL the fetch runs.
//
// The fetch itself is detached from ctx, so a caller that gives up does not
// cancel the fetch for callers sharing it. A caller whose ctx ends stops
// waiting and gets a canceled result; the fetch still completes and
// updates the snapshot.
func (s *Store) Refresh(
	ctx context.Context,
	key string,
	fetch FetchFunc,
) ingest.Result[[]issues.Issue] {
	fetchCtx := context.WithoutCancel(ctx)
	ch := s.group.DoChan(key, func() (any, error) {
		s.mu.Lock()
		defer s.mu.Unlock()
		result := fetch(fetchCtx)
		if result.Success {
			snap := &Snapshot{
				Issues:     result.Data,
				JQL:        key,
				Message:    result.Message,
				FetchedAt:  s.now(),
				Generation: s.generation.Add(1),
			}
			s.current.Store(snap)
			s.logger.Info().
				Uint64("generation", snap.Generation).
				Int("count", len(snap.Issues)).
				Msg("snapshot replaced")
		} else {
			s.logger.Warn().Str("error", result.Error).Msg("refresh failed, keeping previous snapshot")
		}
		return result, nil
	})

	select {
	case res := <-ch:
		if res.Shared {
			s.logger.Debug().Str("key", key).Msg("joined in-flight refresh")
		}
		return res.Val.(ingest.Result[[]issues.Issue])
	case <-ctx.Done():
		s.logger.Debug().Str("key", key).Msg("stopped waiting for refresh")
		return ingest.Fail[[]issues.Issue](ctx.Err())
	}
}
