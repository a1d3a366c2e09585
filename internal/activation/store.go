// Package activation tracks which chat channels the relay is active in.
//
// The in-memory set is authoritative. Every mutation schedules a write of
// the full set to a Backend; writes happen on one background goroutine that
// always saves the latest snapshot, so bursts of toggles coalesce and a
// failed write never rolls back memory.
package activation

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/soyeahso/shaperelay/internal/logging"
)

// ErrMalformed is returned (wrapped) by a Backend whose stored content
// cannot be decoded.
var ErrMalformed = errors.New("activation: malformed stored state")

// saveTimeout bounds a single background write.
const saveTimeout = 10 * time.Second

// Backend persists the activation set as a whole.
type Backend interface {
	// Load returns the stored ids. A missing store yields (nil, nil).
	Load(ctx context.Context) ([]string, error)
	// Save replaces the stored ids with ids.
	Save(ctx context.Context, ids []string) error
}

// Store is the set of active channel ids.
type Store struct {
	mu       sync.RWMutex
	set      map[string]struct{}
	gen      uint64 // bumped on every mutation
	savedGen uint64 // generation last written successfully

	backend Backend
	log     *logging.Logger

	dirty   chan struct{}
	flushes chan chan error
	quit    chan struct{}
	done    chan struct{}
	once    sync.Once
}

// New creates an empty Store and starts its writer goroutine. Call Load to
// populate it and Close to stop the writer.
func New(backend Backend, log *logging.Logger) *Store {
	s := &Store{
		set:     make(map[string]struct{}),
		backend: backend,
		log:     log.Sub("activation"),
		dirty:   make(chan struct{}, 1),
		flushes: make(chan chan error),
		quit:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go s.run()
	return s
}

// Load replaces the in-memory set with the backend's contents. It never
// fails: a missing store means nothing is active, unreadable content is
// logged and treated the same way.
func (s *Store) Load(ctx context.Context) {
	ids, err := s.backend.Load(ctx)
	switch {
	case errors.Is(err, ErrMalformed):
		s.log.Warn().Err(err).Msg("stored activation state is malformed, starting with no active channels")
		ids = nil
	case err != nil:
		s.log.Error().Err(err).Msg("failed to load activation state, starting with no active channels")
		ids = nil
	}

	s.mu.Lock()
	s.set = make(map[string]struct{}, len(ids))
	for _, id := range ids {
		s.set[id] = struct{}{}
	}
	s.savedGen = s.gen
	n := len(s.set)
	s.mu.Unlock()

	s.log.Info().Int("count", n).Strs("channels", s.List()).Msg("loaded active channels")
}

// IsActive reports whether the relay is active in chatID.
func (s *Store) IsActive(chatID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.set[chatID]
	return ok
}

// Activate marks chatID active. It reports whether it already was, in
// which case nothing changes and nothing is written.
func (s *Store) Activate(chatID string) (already bool) {
	s.mu.Lock()
	if _, ok := s.set[chatID]; ok {
		s.mu.Unlock()
		return true
	}
	s.set[chatID] = struct{}{}
	s.gen++
	s.mu.Unlock()

	s.log.Info().Str("chat", chatID).Msg("channel activated")
	s.schedule()
	return false
}

// Deactivate removes chatID from the set. It reports whether it was
// active; deactivating an unknown id changes nothing.
func (s *Store) Deactivate(chatID string) (wasActive bool) {
	s.mu.Lock()
	if _, ok := s.set[chatID]; !ok {
		s.mu.Unlock()
		return false
	}
	delete(s.set, chatID)
	s.gen++
	s.mu.Unlock()

	s.log.Info().Str("chat", chatID).Msg("channel deactivated")
	s.schedule()
	return true
}

// List returns a sorted snapshot of the active ids.
func (s *Store) List() []string {
	s.mu.RLock()
	ids := make([]string, 0, len(s.set))
	for id := range s.set {
		ids = append(ids, id)
	}
	s.mu.RUnlock()
	slices.Sort(ids)
	return ids
}

// Count returns the number of active channels.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.set)
}

// Flush blocks until every mutation made before the call has been handed
// to the backend, and returns the result of that write.
func (s *Store) Flush(ctx context.Context) error {
	ack := make(chan error, 1)
	select {
	case s.flushes <- ack:
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-ack:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close writes any pending state and stops the writer goroutine.
func (s *Store) Close(ctx context.Context) error {
	s.once.Do(func() { close(s.quit) })
	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Store) schedule() {
	select {
	case s.dirty <- struct{}{}:
	default:
	}
}

func (s *Store) run() {
	defer close(s.done)
	for {
		select {
		case <-s.dirty:
			s.persist()
		case ack := <-s.flushes:
			ack <- s.persist()
		case <-s.quit:
			s.persist()
			return
		}
	}
}

// persist writes the current snapshot if it has not been written yet.
// Failures are logged and retried on the next mutation or flush.
func (s *Store) persist() error {
	s.mu.RLock()
	gen := s.gen
	if gen == s.savedGen {
		s.mu.RUnlock()
		return nil
	}
	ids := make([]string, 0, len(s.set))
	for id := range s.set {
		ids = append(ids, id)
	}
	s.mu.RUnlock()
	slices.Sort(ids)

	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()
	if err := s.backend.Save(ctx, ids); err != nil {
		s.log.Error().Err(err).Int("count", len(ids)).Msg("failed to persist active channels")
		return err
	}

	s.mu.Lock()
	if gen > s.savedGen {
		s.savedGen = gen
	}
	s.mu.Unlock()
	s.log.Debug().Int("count", len(ids)).Msg("active channels persisted")
	return nil
}
