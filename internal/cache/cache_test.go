package cache_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"neoflow/internal/cache"
	"neoflow/internal/domain"
)

func listOf(ids ...string) *domain.DocumentList {
	l := &domain.DocumentList{Total: len(ids), Page: 1, Limit: 20}
	for _, id := range ids {
		l.Items = append(l.Items, domain.Document{ID: id, Status: domain.StatusUploaded})
	}
	return l
}

func TestCache_FetchCachesFreshValue(t *testing.T) {
	c := cache.New()
	key := cache.StatusKey("doc-1")
	var calls int32

	fn := func(ctx context.Context) (any, error) {
		atomic.AddInt32(&calls, 1)
		return "v", nil
	}

	v, err := c.Fetch(context.Background(), key, cache.NoExpiry, fn)
	require.NoError(t, err)
	assert.Equal(t, "v", v)

	v, err = c.Fetch(context.Background(), key, cache.NoExpiry, fn)
	require.NoError(t, err)
	assert.Equal(t, "v", v)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestCache_RefetchIgnoresFreshness(t *testing.T) {
	c := cache.New()
	key := cache.StatusKey("doc-1")
	var calls int32
	fn := func(ctx context.Context) (any, error) {
		return atomic.AddInt32(&calls, 1), nil
	}

	_, _ = c.Fetch(context.Background(), key, cache.NoExpiry, fn)
	v, err := c.Refetch(context.Background(), key, fn)
	require.NoError(t, err)
	assert.Equal(t, int32(2), v)
}

func TestCache_StaleTimeExpires(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := cache.New(cache.WithClock(func() time.Time { return now }))
	key := cache.ListKey(domain.ListFilter{Page: 1})
	var calls int32
	fn := func(ctx context.Context) (any, error) {
		atomic.AddInt32(&calls, 1)
		return listOf("a"), nil
	}

	_, _ = c.Fetch(context.Background(), key, 30*time.Second, fn)
	now = now.Add(10 * time.Second)
	_, _ = c.Fetch(context.Background(), key, 30*time.Second, fn)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	now = now.Add(25 * time.Second)
	assert.True(t, c.IsStale(key, 30*time.Second))
	_, _ = c.Fetch(context.Background(), key, 30*time.Second, fn)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestCache_ConcurrentFetchesShareOneRequest(t *testing.T) {
	c := cache.New()
	key := cache.ResultKey("doc-1")
	release := make(chan struct{})
	var calls int32
	fn := func(ctx context.Context) (any, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return "result", nil
	}

	var wg sync.WaitGroup
	results := make([]any, 5)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = c.Fetch(context.Background(), key, cache.NoExpiry, fn)
		}(i)
	}
	time.Sleep(30 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	for _, r := range results {
		assert.Equal(t, "result", r)
	}
}

func TestCache_CancelDiscardsLateResult(t *testing.T) {
	c := cache.New()
	key := cache.ListKey(domain.ListFilter{Page: 1})
	c.Set(key, listOf("a", "b"))
	c.Invalidate(cache.Lists())

	started := make(chan struct{})
	release := make(chan struct{})
	fn := func(ctx context.Context) (any, error) {
		close(started)
		<-release
		return listOf("a", "b", "late"), nil
	}

	errCh := make(chan error, 1)
	go func() {
		_, err := c.Refetch(context.Background(), key, fn)
		errCh <- err
	}()
	<-started

	c.Cancel(cache.Lists())
	close(release)

	err := <-errCh
	assert.True(t, errors.Is(err, cache.ErrFetchCanceled))

	got, ok := cache.Get[*domain.DocumentList](c, key)
	require.True(t, ok)
	assert.Len(t, got.Items, 2)
}

func TestCache_CallerContextEndsWaitOnly(t *testing.T) {
	c := cache.New()
	key := cache.StatusKey("doc-1")
	release := make(chan struct{})
	fn := func(ctx context.Context) (any, error) {
		<-release
		return "done", nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := c.Refetch(ctx, key, fn)
		errCh <- err
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-errCh, context.Canceled)

	close(release)
	assert.Eventually(t, func() bool {
		v, ok := c.Get(key)
		return ok && v == "done"
	}, time.Second, 5*time.Millisecond)
}

func TestCache_SnapshotUpdateRestore(t *testing.T) {
	c := cache.New()
	k1 := cache.ListKey(domain.ListFilter{Page: 1, Limit: 20})
	k2 := cache.ListKey(domain.ListFilter{Page: 1, Limit: 20, Status: domain.StatusFailed})
	c.Set(k1, listOf("a", "b", "c"))
	c.Set(k2, listOf("b"))
	c.Set(cache.StatusKey("b"), "untouched")

	before := c.Snapshot(cache.Lists())
	require.Len(t, before, 2)

	c.Update(cache.Lists(), func(_ cache.Key, old any) any {
		return old.(*domain.DocumentList).Without("b")
	})

	l1, _ := cache.Get[*domain.DocumentList](c, k1)
	l2, _ := cache.Get[*domain.DocumentList](c, k2)
	assert.Len(t, l1.Items, 2)
	assert.Equal(t, 2, l1.Total)
	assert.Empty(t, l2.Items)
	assert.Equal(t, 0, l2.Total)

	c.Restore(before)
	assert.Equal(t, before, c.Snapshot(cache.Lists()))

	v, _ := c.Get(cache.StatusKey("b"))
	assert.Equal(t, "untouched", v)
}

func TestCache_InvalidateNotifiesAndForcesRefetch(t *testing.T) {
	c := cache.New()
	key := cache.ListKey(domain.ListFilter{})
	var events []cache.Event
	unsubscribe := c.Subscribe(cache.Lists(), func(ev cache.Event) {
		events = append(events, ev)
	})
	defer unsubscribe()

	var calls int32
	fn := func(ctx context.Context) (any, error) {
		atomic.AddInt32(&calls, 1)
		return listOf("a"), nil
	}
	_, _ = c.Fetch(context.Background(), key, cache.NoExpiry, fn)
	c.Invalidate(cache.Lists())
	c.Invalidate(cache.Exact(cache.StatusKey("x")))
	_, _ = c.Fetch(context.Background(), key, cache.NoExpiry, fn)

	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
	require.Len(t, events, 3)
	assert.Equal(t, cache.EventUpdated, events[0].Type)
	assert.Equal(t, cache.EventInvalidated, events[1].Type)
	assert.Equal(t, key, events[1].Key)
	assert.Equal(t, cache.EventUpdated, events[2].Type)
}

func TestCache_RemoveDropsDocumentViews(t *testing.T) {
	c := cache.New()
	c.Set(cache.StatusKey("a"), 1)
	c.Set(cache.ResultKey("a"), 2)
	c.Set(cache.StatusKey("b"), 3)

	c.Remove(cache.Document("a"))

	_, ok := c.Get(cache.StatusKey("a"))
	assert.False(t, ok)
	_, ok = c.Get(cache.ResultKey("a"))
	assert.False(t, ok)
	_, ok = c.Get(cache.StatusKey("b"))
	assert.True(t, ok)
}

func TestCache_FetchErrorKeepsPreviousValue(t *testing.T) {
	c := cache.New()
	key := cache.StatusKey("a")
	c.Set(key, "old")

	_, err := c.Refetch(context.Background(), key, func(ctx context.Context) (any, error) {
		return nil, errors.New("boom")
	})
	assert.EqualError(t, err, "boom")

	v, _ := c.Get(key)
	assert.Equal(t, "old", v)
}

func TestKey_String(t *testing.T) {
	assert.Equal(t, "documents/status/abc", cache.StatusKey("abc").String())
	assert.Equal(t, "documents/list?page=2&limit=10&status=failed&document_type=express",
		cache.ListKey(domain.ListFilter{Page: 2, Limit: 10, Status: domain.StatusFailed, DocumentType: "express"}).String())
	assert.Equal(t, "tenant/templates", cache.TemplatesKey().String())
}
