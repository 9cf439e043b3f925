package store

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kalverra/jira-insights/ingest"
	"github.com/kalverra/jira-insights/issues"
)

func okFetch(ids ...string) FetchFunc {
	return func(context.Context) ingest.Result[[]issues.Issue] {
		out := make([]issues.Issue, 0, len(ids))
		for _, id := range ids {
			out = append(out, issues.Issue{ID: id})
		}
		return ingest.Ok(out, "fetched")
	}
}

func TestRefreshReplacesSnapshot(t *testing.T) {
	t.Parallel()

	s := New(zerolog.Nop())
	fixed := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return fixed }
	assert.Nil(t, s.Current())

	res := s.Refresh(context.Background(), "k", okFetch("A-1", "A-2"))
	require.True(t, res.Success)
	first := s.Current()
	require.NotNil(t, first)
	assert.Len(t, first.Issues, 2)
	assert.Equal(t, uint64(1), first.Generation)
	assert.Equal(t, fixed, first.FetchedAt)
	assert.Equal(t, "k", first.JQL)

	s.Refresh(context.Background(), "k", okFetch("B-1"))
	second := s.Current()
	assert.Equal(t, uint64(2), second.Generation)
	require.Len(t, second.Issues, 1)
	assert.Equal(t, "B-1", second.Issues[0].ID)
	assert.Len(t, first.Issues, 2, "older snapshot is not mutated")
}

func TestRefreshFailureKeepsSnapshot(t *testing.T) {
	t.Parallel()

	s := New(zerolog.Nop())
	s.Refresh(context.Background(), "k", okFetch("A-1"))

	res := s.Refresh(context.Background(), "k", func(context.Context) ingest.Result[[]issues.Issue] {
		return ingest.Fail[[]issues.Issue](errors.New("boom"))
	})
	assert.False(t, res.Success)
	require.NotNil(t, s.Current())
	assert.Equal(t, "A-1", s.Current().Issues[0].ID)
	assert.Equal(t, uint64(1), s.Current().Generation)
}

func TestRefreshCoalescesConcurrentCalls(t *testing.T) {
	t.Parallel()

	s := New(zerolog.Nop())
	var calls atomic.Int32
	release := make(chan struct{})
	started := make(chan struct{})
	var once sync.Once

	fetch := func(context.Context) ingest.Result[[]issues.Issue] {
		calls.Add(1)
		once.Do(func() { close(started) })
		<-release
		return ingest.Ok([]issues.Issue{{ID: "A-1"}}, "fetched")
	}

	var wg sync.WaitGroup
	results := make([]ingest.Result[[]issues.Issue], 5)
	wg.Add(1)
	go func() {
		defer wg.Done()
		results[0] = s.Refresh(context.Background(), "k", fetch)
	}()
	<-started
	for i := 1; i < len(results); i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = s.Refresh(context.Background(), "k", fetch)
		}(i)
	}
	// Give the joiners time to attach to the in-flight call.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for _, r := range results {
		assert.True(t, r.Success)
	}
	assert.Equal(t, uint64(1), s.Current().Generation)
}

func TestRefreshSurvivesFirstCallerCancel(t *testing.T) {
	t.Parallel()

	s := New(zerolog.Nop())
	release := make(chan struct{})
	started := make(chan struct{})
	var calls atomic.Int32

	fetch := func(ctx context.Context) ingest.Result[[]issues.Issue] {
		calls.Add(1)
		close(started)
		<-release
		if err := ctx.Err(); err != nil {
			return ingest.Fail[[]issues.Issue](err)
		}
		return ingest.Ok([]issues.Issue{{ID: "A-1"}}, "fetched")
	}

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	firstDone := make(chan ingest.Result[[]issues.Issue], 1)
	go func() { firstDone <- s.Refresh(firstCtx, "k", fetch) }()
	<-started

	secondDone := make(chan ingest.Result[[]issues.Issue], 1)
	go func() { secondDone <- s.Refresh(context.Background(), "k", fetch) }()
	// Give the second caller time to join the in-flight call.
	time.Sleep(50 * time.Millisecond)

	cancelFirst()
	first := <-firstDone
	assert.False(t, first.Success)
	assert.Equal(t, ingest.KindCanceled, first.Kind)

	close(release)
	second := <-secondDone
	require.True(t, second.Success, second.Error)
	assert.Equal(t, int32(1), calls.Load())
	require.NotNil(t, s.Current())
	assert.Equal(t, "A-1", s.Current().Issues[0].ID)
}
