package friends

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Makepad-fr/friends/internal/model"
	"github.com/Makepad-fr/friends/internal/store/kv"
	"github.com/Makepad-fr/friends/internal/store/memstore"
)

func threeFriends() model.Collection {
	return model.Collection{
		{ID: "1", Name: "John Doe", Achievement: "Completed their saving goal", Date: "2 days ago", Image: "pic-1.jpg"},
		{ID: "2", Name: "Jane Doe", Achievement: "Started a new goal", Date: "1 week ago", Image: "pic-2.jpg"},
		{ID: "3", Name: "Luffy", Achievement: "Completed their saving goal", Date: "2 weeks ago", Image: "pic-3.jpg"},
	}
}

func newTestStore(t *testing.T, a Adapter, opts ...Option) *Store {
	t.Helper()
	s := New(a, opts...)
	t.Cleanup(func() { s.Close() })
	return s
}

func memAdapter() *kv.Store { return kv.New(memstore.New(), nil) }

func persisted(t *testing.T, a Adapter) (model.Collection, bool) {
	t.Helper()
	var c model.Collection
	found, err := a.Load(context.Background(), DefaultKey, &c)
	require.NoError(t, err)
	return c, found
}

func flush(t *testing.T, s *Store) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.Flush(ctx))
}

func TestLoadEmptyStorageSeedsAndWritesThrough(t *testing.T) {
	a := memAdapter()
	s := newTestStore(t, a, WithSeed(threeFriends()))

	require.NoError(t, s.Load(context.Background()))
	assert.Len(t, s.Items(), 3)
	assert.True(t, s.Loaded())

	flush(t, s)
	stored, found := persisted(t, a)
	require.True(t, found)
	if diff := cmp.Diff(threeFriends(), stored); diff != "" {
		t.Errorf("persisted seed mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadUsesBuiltInSeedByDefault(t *testing.T) {
	s := newTestStore(t, memAdapter())
	require.NoError(t, s.Load(context.Background()))
	assert.Equal(t, model.DefaultSeed(), s.Items())
}

func TestLoadReplacesWithoutMerging(t *testing.T) {
	a := memAdapter()
	stored := model.Collection{{ID: "9", Name: "Zoro", Liked: true}}
	require.NoError(t, a.Save(context.Background(), DefaultKey, stored))

	s := newTestStore(t, a, WithSeed(threeFriends()))
	require.NoError(t, s.Load(context.Background()))

	assert.Equal(t, stored, s.Items(), "stored feed wins over the seed entirely")
}

func TestLoadEmptyStoredListIsKept(t *testing.T) {
	a := memAdapter()
	require.NoError(t, a.Save(context.Background(), DefaultKey, model.Collection{}))

	s := newTestStore(t, a, WithSeed(threeFriends()))
	require.NoError(t, s.Load(context.Background()))
	assert.Empty(t, s.Items(), "an empty stored feed is present, not absent")
}

func TestLoadCorruptValueFallsBackToSeed(t *testing.T) {
	ctx := context.Background()
	backend := memstore.New()
	require.NoError(t, backend.Put(ctx, DefaultKey, []byte("garbage")))
	a := kv.New(backend, nil)

	s := newTestStore(t, a, WithSeed(threeFriends()))
	require.NoError(t, s.Load(ctx))
	assert.Equal(t, threeFriends(), s.Items())

	flush(t, s)
	stored, found := persisted(t, a)
	require.True(t, found)
	assert.Equal(t, threeFriends(), stored)
}

// failingAdapter fails reads and/or writes on demand.
type failingAdapter struct {
	mu        sync.Mutex
	inner     Adapter
	failLoad  error
	failSave  error
	saveCalls int
}

func (f *failingAdapter) Save(ctx context.Context, key string, v any) error {
	f.mu.Lock()
	f.saveCalls++
	err := f.failSave
	f.mu.Unlock()
	if err != nil {
		return err
	}
	return f.inner.Save(ctx, key, v)
}

func (f *failingAdapter) Load(ctx context.Context, key string, dst any) (bool, error) {
	f.mu.Lock()
	err := f.failLoad
	f.mu.Unlock()
	if err != nil {
		return false, err
	}
	return f.inner.Load(ctx, key, dst)
}

func (f *failingAdapter) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.saveCalls
}

func TestLoadReadFailureIsRecoverable(t *testing.T) {
	boom := errors.New("disk unreadable")
	a := &failingAdapter{inner: memAdapter(), failLoad: boom}
	s := newTestStore(t, a, WithSeed(threeFriends()))

	err := s.Load(context.Background())
	assert.ErrorIs(t, err, ErrLoadFailed)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, threeFriends(), s.Items(), "defaults still shown")

	assert.ErrorIs(t, s.Flush(context.Background()), ErrNotPersisted)
	assert.Zero(t, a.calls(), "storage is not overwritten after a failed read")
}

func TestMutationsAfterReadFailureStayInMemory(t *testing.T) {
	ctx := context.Background()
	inner := memAdapter()
	kept := model.Collection{{ID: "9", Name: "Zoro", Liked: true}}
	require.NoError(t, inner.Save(ctx, DefaultKey, kept))

	a := &failingAdapter{inner: inner, failLoad: errors.New("flaky disk")}
	s := newTestStore(t, a, WithSeed(threeFriends()))
	require.ErrorIs(t, s.Load(ctx), ErrLoadFailed)

	assert.True(t, s.Toggle("1"))
	_, err := s.Add(model.Item{Name: "Nami"})
	require.NoError(t, err)
	assert.True(t, s.Items()[0].Liked)
	assert.ErrorIs(t, s.Flush(ctx), ErrNotPersisted)
	assert.Zero(t, a.calls())

	stored, _ := persisted(t, inner)
	assert.Equal(t, kept, stored, "unreadable feed survives mutations")

	// once storage reads again the stored feed comes back and writes resume
	a.mu.Lock()
	a.failLoad = nil
	a.mu.Unlock()
	require.NoError(t, s.Load(ctx))
	assert.Equal(t, kept, s.Items())
	s.Toggle("9")
	flush(t, s)
	stored, _ = persisted(t, inner)
	assert.False(t, stored[0].Liked)
}

func TestReseedAfterReadFailureWrites(t *testing.T) {
	a := &failingAdapter{inner: memAdapter(), failLoad: errors.New("flaky disk")}
	s := newTestStore(t, a, WithSeed(threeFriends()))
	require.Error(t, s.Load(context.Background()))

	s.Reseed()
	flush(t, s)
	stored, found := persisted(t, a.inner)
	require.True(t, found)
	assert.Equal(t, threeFriends(), stored)
}

// slowAdapter delays every save so writes are still in flight when a read starts.
type slowAdapter struct {
	inner Adapter
	delay time.Duration
}

func (a slowAdapter) Save(ctx context.Context, key string, v any) error {
	time.Sleep(a.delay)
	return a.inner.Save(ctx, key, v)
}

func (a slowAdapter) Load(ctx context.Context, key string, dst any) (bool, error) {
	return a.inner.Load(ctx, key, dst)
}

func TestReloadWaitsForPendingSaves(t *testing.T) {
	inner := memAdapter()
	s := newTestStore(t, slowAdapter{inner: inner, delay: 50 * time.Millisecond}, WithSeed(threeFriends()))
	ctx := context.Background()
	require.NoError(t, s.Load(ctx))
	flush(t, s)

	s.Toggle("1")
	require.NoError(t, s.Load(ctx)) // refresh right after a like
	assert.True(t, s.Items()[0].Liked, "reload sees the like")

	flush(t, s)
	stored, _ := persisted(t, inner)
	assert.Equal(t, s.Items(), stored)

	s.Toggle("2")
	flush(t, s)
	stored, _ = persisted(t, inner)
	assert.True(t, stored[0].Liked, "earlier like not reverted by the next change")
	assert.True(t, stored[1].Liked)
}

func TestLoadInvalidStoredFeedIsAbsent(t *testing.T) {
	ctx := context.Background()
	cases := map[string]model.Collection{
		"duplicate id": {{ID: "1", Name: "A"}, {ID: "1", Name: "B"}},
		"empty id":     {{ID: "", Name: "A"}},
		"empty name":   {{ID: "7"}},
	}
	for name, bad := range cases {
		t.Run(name, func(t *testing.T) {
			a := memAdapter()
			require.NoError(t, a.Save(ctx, DefaultKey, bad))

			s := newTestStore(t, a, WithSeed(threeFriends()))
			require.NoError(t, s.Load(ctx))
			assert.Equal(t, threeFriends(), s.Items())

			flush(t, s)
			stored, _ := persisted(t, a)
			assert.Equal(t, threeFriends(), stored)
		})
	}
}

func TestToggleScenario(t *testing.T) {
	seed := model.Collection{{ID: "A", Name: "A"}, {ID: "B", Name: "B"}}
	s := newTestStore(t, memAdapter(), WithSeed(seed))
	require.NoError(t, s.Load(context.Background()))

	assert.True(t, s.Toggle("A"))
	assert.Equal(t, model.Collection{{ID: "A", Name: "A", Liked: true}, {ID: "B", Name: "B"}}, s.Items())
	assert.Equal(t, model.Collection{{ID: "A", Name: "A", Liked: true}}, s.Favorites())
}

func TestToggleTwiceRestoresEveryItem(t *testing.T) {
	s := newTestStore(t, memAdapter(), WithSeed(threeFriends()))
	require.NoError(t, s.Load(context.Background()))
	s.Toggle("2") // mixed starting state

	before := s.Items()
	for _, it := range before {
		s.Toggle(it.ID)
		require.NotEqual(t, it.Liked, s.Items()[s.Items().IndexOf(it.ID)].Liked)
		s.Toggle(it.ID)
	}
	assert.Equal(t, before, s.Items())
}

func TestPersistedMatchesMemoryAfterEveryToggle(t *testing.T) {
	a := memAdapter()
	s := newTestStore(t, a, WithSeed(threeFriends()))
	require.NoError(t, s.Load(context.Background()))

	for _, id := range []string{"1", "3", "1", "2", "3"} {
		s.Toggle(id)
		flush(t, s)
		stored, found := persisted(t, a)
		require.True(t, found)
		if diff := cmp.Diff(s.Items(), stored); diff != "" {
			t.Fatalf("after toggle %s (-memory +stored):\n%s", id, diff)
		}
	}
}

func TestRapidTogglesLastWins(t *testing.T) {
	a := memAdapter()
	s := newTestStore(t, a, WithSeed(threeFriends()))
	require.NoError(t, s.Load(context.Background()))

	for i := 0; i < 101; i++ {
		s.Toggle("1")
	}
	require.NoError(t, s.Close())

	stored, _ := persisted(t, a)
	assert.True(t, stored[0].Liked)
	assert.Equal(t, s.Items(), stored)
}

func TestToggleUnknownIDIsNoop(t *testing.T) {
	a := &failingAdapter{inner: memAdapter()}
	s := newTestStore(t, a, WithSeed(threeFriends()))
	require.NoError(t, s.Load(context.Background()))
	flush(t, s)
	saves := a.calls()

	var notified int
	s.Subscribe(func(Snapshot) { notified++ })

	assert.False(t, s.Toggle("nope"))
	flush(t, s)
	assert.Equal(t, threeFriends(), s.Items())
	assert.Equal(t, saves, a.calls(), "no save for a no-op")
	assert.Zero(t, notified)
}

func TestWriteFailureIsNonFatal(t *testing.T) {
	boom := errors.New("read-only filesystem")
	a := &failingAdapter{inner: memAdapter()}
	s := newTestStore(t, a, WithSeed(threeFriends()))
	require.NoError(t, s.Load(context.Background()))
	flush(t, s)

	a.mu.Lock()
	a.failSave = boom
	a.mu.Unlock()

	assert.True(t, s.Toggle("1"))
	assert.ErrorIs(t, s.Flush(context.Background()), boom)
	assert.True(t, s.Items()[0].Liked, "memory keeps the change")

	a.mu.Lock()
	a.failSave = nil
	a.mu.Unlock()
	s.Toggle("2")
	assert.NoError(t, s.Flush(context.Background()))

	stored, _ := persisted(t, a)
	assert.Equal(t, s.Items(), stored, "next successful save carries everything")
}

func TestFavoritesView(t *testing.T) {
	s := newTestStore(t, memAdapter(), WithSeed(threeFriends()))
	require.NoError(t, s.Load(context.Background()))
	s.Toggle("1")
	s.Toggle("3")

	before := s.Items()
	s.SetFavoritesOnly(true)
	assert.True(t, s.FavoritesOnly())
	assert.Equal(t, before, s.Items(), "the flag does not touch the feed")

	visible := s.Visible()
	for _, it := range visible {
		assert.True(t, it.Liked)
		assert.GreaterOrEqual(t, before.IndexOf(it.ID), 0)
	}
	for _, it := range before {
		if !it.Liked {
			assert.Equal(t, -1, visible.IndexOf(it.ID))
		}
	}
	assert.Len(t, visible, 2)

	s.SetFavoritesOnly(false)
	assert.Equal(t, before, s.Visible())
}

func TestSnapshotIsIsolated(t *testing.T) {
	s := newTestStore(t, memAdapter(), WithSeed(threeFriends()))
	require.NoError(t, s.Load(context.Background()))

	snap := s.Snapshot()
	snap.Items[0].Liked = true
	assert.False(t, s.Items()[0].Liked)

	s.Toggle("2")
	assert.False(t, snap.Items[1].Liked, "old snapshot unaffected by later toggles")
}

func TestSubscribe(t *testing.T) {
	s := newTestStore(t, memAdapter(), WithSeed(threeFriends()))

	var got []Snapshot
	cancel := s.Subscribe(func(snap Snapshot) { got = append(got, snap) })

	require.NoError(t, s.Load(context.Background()))
	s.Toggle("1")
	s.SetFavoritesOnly(true)
	s.SetFavoritesOnly(true) // unchanged, no event
	require.Len(t, got, 3)
	assert.True(t, got[0].Loaded)
	assert.True(t, got[1].Items[0].Liked)
	assert.Equal(t, model.Collection{got[1].Items[0]}, got[2].Visible())

	cancel()
	cancel()
	s.Toggle("1")
	assert.Len(t, got, 3)
}

func TestAdd(t *testing.T) {
	a := memAdapter()
	s := newTestStore(t, a, WithSeed(threeFriends()))
	require.NoError(t, s.Load(context.Background()))

	added, err := s.Add(model.Item{Name: "  Nami ", Achievement: "Mapped the world"})
	require.NoError(t, err)
	assert.NotEmpty(t, added.ID)
	assert.Equal(t, "Nami", added.Name)
	assert.Equal(t, added, s.Items()[3])

	_, err = s.Add(model.Item{ID: "1", Name: "dup"})
	assert.ErrorIs(t, err, ErrDuplicateID)

	_, err = s.Add(model.Item{ID: "x"})
	assert.ErrorIs(t, err, ErrInvalidItem)
	assert.ErrorIs(t, err, model.ErrMissingName)

	flush(t, s)
	stored, _ := persisted(t, a)
	assert.Len(t, stored, 4)
}

func TestReseed(t *testing.T) {
	a := memAdapter()
	require.NoError(t, a.Save(context.Background(), DefaultKey, model.Collection{{ID: "z", Name: "Z"}}))
	s := newTestStore(t, a, WithSeed(threeFriends()))
	require.NoError(t, s.Load(context.Background()))

	s.Reseed()
	flush(t, s)
	stored, _ := persisted(t, a)
	assert.Equal(t, threeFriends(), stored)
}

func TestWithKey(t *testing.T) {
	a := memAdapter()
	s := newTestStore(t, a, WithKey("other"), WithSeed(threeFriends()))
	require.NoError(t, s.Load(context.Background()))
	flush(t, s)

	_, found := persisted(t, a)
	assert.False(t, found)
	var c model.Collection
	found, err := a.Load(context.Background(), "other", &c)
	require.NoError(t, err)
	assert.True(t, found)
}

func TestCloseIsIdempotentAndDropsLateSaves(t *testing.T) {
	a := &failingAdapter{inner: memAdapter()}
	s := New(a, WithSeed(threeFriends()))
	require.NoError(t, s.Load(context.Background()))
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	saves := a.calls()
	s.Toggle("1")
	assert.NoError(t, s.Flush(context.Background()))
	assert.Equal(t, saves, a.calls())
}

func TestFlushHonorsContext(t *testing.T) {
	block := make(chan struct{})
	a := &blockingAdapter{inner: memAdapter(), release: block}
	s := New(a, WithSeed(threeFriends()))
	defer func() {
		close(block)
		s.Close()
	}()

	require.NoError(t, s.Load(context.Background()))
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, s.Flush(ctx), context.DeadlineExceeded)
}

type blockingAdapter struct {
	inner   Adapter
	release chan struct{}
}

func (b *blockingAdapter) Save(ctx context.Context, key string, v any) error {
	<-b.release
	return b.inner.Save(ctx, key, v)
}

func (b *blockingAdapter) Load(ctx context.Context, key string, dst any) (bool, error) {
	return b.inner.Load(ctx, key, dst)
}

func TestConcurrentToggles(t *testing.T) {
	a := memAdapter()
	s := newTestStore(t, a, WithSeed(threeFriends()))
	require.NoError(t, s.Load(context.Background()))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				s.Toggle("2")
				_ = s.Visible()
			}
		}()
	}
	wg.Wait()
	flush(t, s)

	assert.False(t, s.Items()[1].Liked, "400 toggles is even")
	stored, _ := persisted(t, a)
	assert.Equal(t, s.Items(), stored)
}
