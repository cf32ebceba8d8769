package friends

import "sync"

var (
	defaultMu    sync.RWMutex
	defaultStore *Store
)

// SetDefault installs the process-wide store. Call it once at startup.
func SetDefault(s *Store) {
	defaultMu.Lock()
	defaultStore = s
	defaultMu.Unlock()
}

// Default returns the process-wide store, or nil before SetDefault.
func Default() *Store {
	defaultMu.RLock()
	defer defaultMu.RUnlock()
	return defaultStore
}

// ResetDefault closes and forgets the process-wide store.
func ResetDefault() error {
	defaultMu.Lock()
	s := defaultStore
	defaultStore = nil
	defaultMu.Unlock()
	if s == nil {
		return nil
	}
	return s.Close()
}
