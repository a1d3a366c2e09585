// Package channel holds the set of chat platforms the relay is connected to.
package channel

import (
	"context"
	"errors"
	"slices"
	"sync"

	"github.com/soyeahso/shaperelay/internal/domain"
	"github.com/soyeahso/shaperelay/internal/logging"
)

// Registry manages the platform adapters.
type Registry struct {
	mu       sync.RWMutex
	channels map[string]domain.Channel
	exited   map[string]error // adapters whose Start returned
	wg       sync.WaitGroup
	log      *logging.Logger
}

// NewRegistry creates an empty platform registry.
func NewRegistry(log *logging.Logger) *Registry {
	return &Registry{
		channels: make(map[string]domain.Channel),
		exited:   make(map[string]error),
		log:      log.Sub("channels"),
	}
}

// Register adds a platform adapter to the registry.
func (r *Registry) Register(ch domain.Channel) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.channels[ch.ID()] = ch
	r.log.Info().Str("platform", ch.ID()).Msg("platform registered")
}

// Get returns a platform adapter by ID.
func (r *Registry) Get(id string) (domain.Channel, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ch, ok := r.channels[id]
	return ch, ok
}

// List returns the registered platform IDs in sorted order.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.channels))
	for id := range r.channels {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Status returns the status of every registered platform, sorted by ID.
// Adapters that do not report their own status are considered running
// until their Start method returns.
func (r *Registry) Status() []domain.ChannelStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()
	statuses := make([]domain.ChannelStatus, 0, len(r.channels))
	for id, ch := range r.channels {
		if sc, ok := ch.(interface{ Status() domain.ChannelStatus }); ok {
			statuses = append(statuses, sc.Status())
			continue
		}
		st := domain.ChannelStatus{ChannelID: id, Running: true, Connected: true}
		if err, done := r.exited[id]; done {
			st.Running, st.Connected = false, false
			if err != nil {
				st.LastError = err.Error()
			}
		}
		statuses = append(statuses, st)
	}
	slices.SortFunc(statuses, func(a, b domain.ChannelStatus) int {
		if a.ChannelID < b.ChannelID {
			return -1
		}
		if a.ChannelID > b.ChannelID {
			return 1
		}
		return 0
	})
	return statuses
}

// StartAll starts all registered platforms in background goroutines.
// Start methods block for the lifetime of the connection, so each runs
// concurrently.
func (r *Registry) StartAll(ctx context.Context) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.channels) == 0 {
		return errors.New("no platforms registered")
	}

	for id, ch := range r.channels {
		r.log.Info().Str("platform", id).Msg("starting platform")
		r.wg.Add(1)
		go func(id string, ch domain.Channel) {
			defer r.wg.Done()
			err := ch.Start(ctx)
			if err != nil && ctx.Err() == nil {
				r.log.Error().Err(err).Str("platform", id).Msg("platform exited with error")
			}
			r.mu.Lock()
			r.exited[id] = err
			r.mu.Unlock()
		}(id, ch)
	}
	return nil
}

// StopAll stops all registered platforms and waits for their Start
// goroutines to return or ctx to expire.
func (r *Registry) StopAll(ctx context.Context) {
	r.mu.RLock()
	for id, ch := range r.channels {
		r.log.Info().Str("platform", id).Msg("stopping platform")
		if err := ch.Stop(ctx); err != nil {
			r.log.Error().Err(err).Str("platform", id).Msg("failed to stop platform")
		}
	}
	r.mu.RUnlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		r.log.Warn().Msg("timed out waiting for platforms to stop")
	}
}

// Count returns the number of registered platforms.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.channels)
}
