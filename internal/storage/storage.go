package storage

import (
	"errors"
	"sync"
	"time"

	"github.com/eugenenazirov/bundlecfg/internal/buildconfig"
)

var (
	// ErrNotLoaded indicates no configuration has been stored yet.
	ErrNotLoaded = errors.New("no build configuration loaded")
)

// Snapshot is one resolved configuration together with its provenance.
// Snapshots are never modified after Store returns them.
type Snapshot struct {
	Config      buildconfig.BuildConfig
	Revision    uint64
	Fingerprint string
	LoadedAt    time.Time
}

// Storage provides access to the active build configuration.
type Storage interface {
	Current() (Snapshot, error)
	Store(cfg buildconfig.BuildConfig, fingerprint string) Snapshot
}

// MemoryStorage keeps the active snapshot in memory and guards access with a RWMutex.
// Reloads replace the snapshot wholesale, so readers never see a partial update.
type MemoryStorage struct {
	mu       sync.RWMutex
	current  *Snapshot
	revision uint64
	clock    func() time.Time
}

// Option configures MemoryStorage.
type Option func(*MemoryStorage)

// WithClock overrides the time source, primarily for tests.
func WithClock(clock func() time.Time) Option {
	return func(s *MemoryStorage) {
		s.clock = clock
	}
}

// NewMemoryStorage creates an empty storage.
func NewMemoryStorage(opts ...Option) *MemoryStorage {
	s := &MemoryStorage{
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Current returns the active snapshot.
func (s *MemoryStorage) Current() (Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.current == nil {
		return Snapshot{}, ErrNotLoaded
	}
	return *s.current, nil
}

// Store swaps in cfg as the active configuration and returns the new snapshot.
func (s *MemoryStorage) Store(cfg buildconfig.BuildConfig, fingerprint string) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.revision++
	snap := &Snapshot{
		Config:      cfg,
		Revision:    s.revision,
		Fingerprint: fingerprint,
		LoadedAt:    s.clock(),
	}
	s.current = snap
	return *snap
}
