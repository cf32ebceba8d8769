// Package friends holds the feed in memory and writes it through to storage
// after every change.
package friends

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Makepad-fr/friends/internal/model"
)

// DefaultKey is the storage key of the feed.
const DefaultKey = "friends"

var (
	ErrDuplicateID = model.ErrDuplicateID
	ErrInvalidItem = errors.New("invalid friend")
	// ErrLoadFailed wraps storage read failures. The store still holds the seed.
	ErrLoadFailed = errors.New("load failed, using default feed")
	// ErrNotPersisted is reported by Flush while the stored feed could not be
	// read: changes stay in memory so the unreadable feed is never overwritten.
	ErrNotPersisted = errors.New("feed could not be read, changes are kept in memory only")
)

// Adapter is the persistence the store writes through to. *kv.Store satisfies it.
type Adapter interface {
	Save(ctx context.Context, key string, value any) error
	Load(ctx context.Context, key string, dst any) (bool, error)
}

// Snapshot is an immutable view of the store at one point in time.
type Snapshot struct {
	Items         model.Collection
	FavoritesOnly bool
	Loaded        bool
}

// Favorites is the liked subset of Items.
func (s Snapshot) Favorites() model.Collection { return s.Items.Favorites() }

// Visible is what a consumer should display given the favorites-only flag.
func (s Snapshot) Visible() model.Collection {
	if s.FavoritesOnly {
		return s.Favorites()
	}
	return s.Items.Clone()
}

// Store owns the feed. All methods are safe for concurrent use.
type Store struct {
	adapter Adapter
	key     string
	seed    model.Collection
	log     *zap.Logger
	w       *writer

	mu            sync.RWMutex
	items         model.Collection
	favoritesOnly bool
	loaded        bool
	unreadable    bool // last Load failed; writes are held back

	subMu   sync.Mutex
	subs    map[int]func(Snapshot)
	nextSub int
}

// Option configures a Store.
type Option func(*Store)

// WithKey changes the storage key.
func WithKey(key string) Option { return func(s *Store) { s.key = key } }

// WithSeed replaces the built-in default feed.
func WithSeed(seed model.Collection) Option {
	return func(s *Store) { s.seed = seed.Clone() }
}

// WithLogger sets the logger.
func WithLogger(log *zap.Logger) Option { return func(s *Store) { s.log = log } }

// New creates a store and starts its background writer. Call Close when done.
// Until Load runs the feed is empty.
func New(adapter Adapter, opts ...Option) *Store {
	s := &Store{
		adapter: adapter,
		key:     DefaultKey,
		log:     zap.NewNop(),
		items:   model.Collection{},
		subs:    make(map[int]func(Snapshot)),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.seed == nil {
		s.seed = model.DefaultSeed()
	}
	s.log = s.log.Named("friends")
	s.w = newWriter(adapter, s.key, s.log)
	return s
}

// Load reads the feed from storage and replaces the in-memory one.
// Saves still in flight are written first, so the read sees the latest change.
// Nothing stored, nothing readable, or an invalid feed means the seed is used
// and written back. A storage failure leaves the seed in memory, holds back
// writes until a later Load or Reseed succeeds, and returns an error wrapping
// ErrLoadFailed.
func (s *Store) Load(ctx context.Context) error {
	if err := s.w.flush(ctx); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		s.log.Debug("pending save failed before reload", zap.Error(err))
	}

	var stored model.Collection
	found, err := s.adapter.Load(ctx, s.key, &stored)
	if err == nil && found {
		if verr := stored.Validate(); verr != nil {
			s.log.Warn("stored feed is invalid, treating as absent",
				zap.String("key", s.key), zap.Error(verr))
			found = false
		}
	}

	s.mu.Lock()
	switch {
	case err != nil:
		s.items = s.seed.Clone()
		s.unreadable = true
	case !found:
		s.items = s.seed.Clone()
		s.unreadable = false
		s.w.dispatch(s.items.Clone())
	default:
		if stored == nil {
			stored = model.Collection{}
		}
		s.items = stored
		s.unreadable = false
	}
	s.loaded = true
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.notify(snap)

	if err != nil {
		s.log.Warn("could not read feed, showing defaults", zap.String("key", s.key), zap.Error(err))
		return fmt.Errorf("%w: %w", ErrLoadFailed, err)
	}
	s.log.Debug("feed loaded",
		zap.String("key", s.key), zap.Bool("seeded", !found), zap.Int("items", len(snap.Items)))
	return nil
}

// persistLocked dispatches the current feed unless the stored one was unreadable.
func (s *Store) persistLocked() {
	if s.unreadable {
		s.log.Debug("write held back, stored feed was unreadable", zap.String("key", s.key))
		return
	}
	s.w.dispatch(s.items.Clone())
}

// Toggle flips Liked on the friend with id and persists the feed.
// An unknown id changes nothing and reports false.
func (s *Store) Toggle(id string) bool {
	s.mu.Lock()
	i := s.items.IndexOf(id)
	if i < 0 {
		s.mu.Unlock()
		s.log.Debug("toggle on unknown id ignored", zap.String("id", id))
		return false
	}
	s.items[i].Liked = !s.items[i].Liked
	s.persistLocked()
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.notify(snap)
	return true
}

// Add appends a friend and persists the feed. An empty ID gets a fresh UUID.
func (s *Store) Add(it model.Item) (model.Item, error) {
	it.ID = strings.TrimSpace(it.ID)
	it.Name = strings.TrimSpace(it.Name)
	if it.ID == "" {
		it.ID = uuid.NewString()
	}
	if err := it.Validate(); err != nil {
		return model.Item{}, fmt.Errorf("%w: %w", ErrInvalidItem, err)
	}

	s.mu.Lock()
	if s.items.IndexOf(it.ID) >= 0 {
		s.mu.Unlock()
		return model.Item{}, fmt.Errorf("%w: %q", ErrDuplicateID, it.ID)
	}
	s.items = append(s.items, it)
	s.persistLocked()
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.notify(snap)
	return it, nil
}

// Reseed throws away the current feed in favor of the seed and persists it,
// also over a stored feed that could not be read.
func (s *Store) Reseed() {
	s.mu.Lock()
	s.items = s.seed.Clone()
	s.loaded = true
	s.unreadable = false
	s.w.dispatch(s.items.Clone())
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.notify(snap)
}

// SetFavoritesOnly switches the presentation filter. The feed itself is untouched.
func (s *Store) SetFavoritesOnly(on bool) {
	s.mu.Lock()
	if s.favoritesOnly == on {
		s.mu.Unlock()
		return
	}
	s.favoritesOnly = on
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.notify(snap)
}

func (s *Store) FavoritesOnly() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.favoritesOnly
}

// Loaded reports whether Load (or Reseed) has run.
func (s *Store) Loaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loaded
}

// Items returns a copy of the whole feed.
func (s *Store) Items() model.Collection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.items.Clone()
}

// Favorites returns the liked friends, in feed order.
func (s *Store) Favorites() model.Collection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.items.Favorites()
}

// Visible honors the favorites-only flag.
func (s *Store) Visible() model.Collection { return s.Snapshot().Visible() }

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() Snapshot {
	return Snapshot{Items: s.items.Clone(), FavoritesOnly: s.favoritesOnly, Loaded: s.loaded}
}

// Subscribe registers fn to run after every change, on the goroutine that made
// the change. The returned func removes the subscription.
func (s *Store) Subscribe(fn func(Snapshot)) (cancel func()) {
	s.subMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.subMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.subMu.Lock()
			delete(s.subs, id)
			s.subMu.Unlock()
		})
	}
}

func (s *Store) notify(snap Snapshot) {
	s.subMu.Lock()
	fns := make([]func(Snapshot), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subMu.Unlock()
	for _, fn := range fns {
		fn(snap)
	}
}

// Flush blocks until every save dispatched so far has been attempted and
// returns the error of the most recent one. While writes are held back after
// a failed Load it returns ErrNotPersisted.
func (s *Store) Flush(ctx context.Context) error {
	if err := s.w.flush(ctx); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.unreadable {
		return ErrNotPersisted
	}
	return nil
}

// Close writes whatever is pending and stops the writer.
func (s *Store) Close() error { return s.w.close() }
