package backfill

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"linkstash/internal/domain"
	"linkstash/internal/storage"
)

type fakeResolver struct {
	calls   atomic.Int32
	gate    chan struct{}
	preview func(call int32) domain.LinkPreview
}

func (r *fakeResolver) Resolve(ctx context.Context, rawURL string) domain.LinkPreview {
	n := r.calls.Add(1)
	if r.gate != nil {
		<-r.gate
	}
	return r.preview(n)
}

func withImage(int32) domain.LinkPreview {
	return domain.LinkPreview{
		Platform: domain.PlatformGeneric,
		Title:    domain.StringPtr("Example"),
		Image:    []byte("png"),
	}
}

func testLogger() logrus.FieldLogger {
	logger, _ := test.NewNullLogger()
	return logger
}

func setupStore(t *testing.T) storage.Repository {
	t.Helper()
	inner, err := storage.NewBadgerRepository(t.TempDir(), testLogger())
	require.NoError(t, err)
	repo := storage.NewSerialRepository(inner, testLogger())
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func saveItem(t *testing.T, repo storage.Repository, content string) domain.SavedItem {
	t.Helper()
	item := domain.NewItem(42, content)
	require.NoError(t, repo.SaveItem(context.Background(), item))
	return item
}

func TestObserve_ResolvesLink(t *testing.T) {
	repo := setupStore(t)
	resolver := &fakeResolver{preview: withImage}
	b := New(resolver, repo, testLogger())

	item := saveItem(t, repo, "https://example.com")
	updated, err := b.Observe(context.Background(), item)
	require.NoError(t, err)

	assert.Equal(t, "Example", updated.Title)
	assert.Equal(t, []byte("png"), updated.ImageData)
	assert.EqualValues(t, 1, resolver.calls.Load())

	// Once the image is stored the pipeline is never invoked again.
	again, err := b.Observe(context.Background(), updated)
	require.NoError(t, err)
	assert.Equal(t, updated.ImageData, again.ImageData)
	assert.EqualValues(t, 1, resolver.calls.Load())
}

func TestObserve_SkipsText(t *testing.T) {
	repo := setupStore(t)
	resolver := &fakeResolver{preview: withImage}
	b := New(resolver, repo, testLogger())

	item := saveItem(t, repo, "buy milk")
	got, err := b.Observe(context.Background(), item)
	require.NoError(t, err)
	assert.Equal(t, item.ID, got.ID)
	assert.Zero(t, resolver.calls.Load())
}

func TestObserve_RetriesWithoutImage(t *testing.T) {
	repo := setupStore(t)
	resolver := &fakeResolver{preview: func(call int32) domain.LinkPreview {
		if call == 1 {
			return domain.LinkPreview{Platform: domain.PlatformGitHub}
		}
		return domain.LinkPreview{Platform: domain.PlatformGitHub, Image: []byte("shot")}
	}}
	b := New(resolver, repo, testLogger())

	item := saveItem(t, repo, "https://github.com/golang/go")

	first, err := b.Observe(context.Background(), item)
	require.NoError(t, err)
	assert.False(t, first.HasImage())
	assert.Equal(t, domain.PlatformGitHub, first.Platform)

	second, err := b.Observe(context.Background(), first)
	require.NoError(t, err)
	assert.Equal(t, []byte("shot"), second.ImageData)
	assert.EqualValues(t, 2, resolver.calls.Load())
}

func TestObserve_DedupesConcurrentObservations(t *testing.T) {
	repo := setupStore(t)
	resolver := &fakeResolver{gate: make(chan struct{}), preview: withImage}
	b := New(resolver, repo, testLogger())

	item := saveItem(t, repo, "https://example.com/slow")

	var wg sync.WaitGroup
	results := make([]domain.SavedItem, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			got, err := b.Observe(context.Background(), item)
			assert.NoError(t, err)
			results[i] = got
		}(i)
	}

	// Let the observers pile up on the in-flight resolution.
	require.Eventually(t, func() bool { return resolver.calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(resolver.gate)
	wg.Wait()

	for _, got := range results {
		assert.Equal(t, []byte("png"), got.ImageData)
	}
	// Late observers may start a second flight after the first finished;
	// the store rejects it so the image never changes.
	assert.LessOrEqual(t, resolver.calls.Load(), int32(len(results)))

	stored, err := repo.GetItem(context.Background(), item.UserID, item.ID)
	require.NoError(t, err)
	assert.Equal(t, []byte("png"), stored.ImageData)
}

func TestObserve_StaleCopyAlreadyResolved(t *testing.T) {
	repo := setupStore(t)
	resolver := &fakeResolver{preview: withImage}
	b := New(resolver, repo, testLogger())

	stale := saveItem(t, repo, "https://example.com")
	_, err := repo.ApplyPreview(context.Background(), stale.UserID, stale.ID, domain.LinkPreview{Image: []byte("first")}, time.Now())
	require.NoError(t, err)

	got, err := b.Observe(context.Background(), stale)
	require.NoError(t, err)
	assert.Equal(t, []byte("first"), got.ImageData)
}

func TestObserve_DeletedItem(t *testing.T) {
	repo := setupStore(t)
	b := New(&fakeResolver{preview: withImage}, repo, testLogger())

	item := saveItem(t, repo, "https://example.com")
	require.NoError(t, repo.DeleteItem(context.Background(), item.UserID, item.ID))

	_, err := b.Observe(context.Background(), item)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestObserveAll_KeepsOrder(t *testing.T) {
	repo := setupStore(t)
	resolver := &fakeResolver{preview: withImage}
	b := New(resolver, repo, testLogger(), WithConcurrency(2))

	items := []domain.SavedItem{
		saveItem(t, repo, "https://a.example"),
		saveItem(t, repo, "a note"),
		saveItem(t, repo, "https://b.example"),
	}

	got := b.ObserveAll(context.Background(), items)
	require.Len(t, got, 3)
	for i := range items {
		assert.Equal(t, items[i].ID, got[i].ID)
	}
	assert.True(t, got[0].HasImage())
	assert.False(t, got[1].HasImage())
	assert.True(t, got[2].HasImage())
	assert.EqualValues(t, 2, resolver.calls.Load())
}
