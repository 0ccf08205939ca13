package server

import (
	"context"
	"errors"
	"slices"
	"sync"

	"github.com/playperu/fragmentforge/internal/forge"
	"github.com/playperu/fragmentforge/internal/game"
	"github.com/playperu/fragmentforge/internal/snapshot"
)

var errUnknownSession = errors.New("unknown session")

// Registry holds one game engine per session ID. Engines are created on
// login, or lazily for a session that already has a snapshot.
type Registry struct {
	template game.Options
	broker   *Broker

	mu      sync.RWMutex
	engines map[string]*game.Engine
}

// NewRegistry builds engines from opts, filling in the per-session fields.
func NewRegistry(opts game.Options, broker *Broker) *Registry {
	return &Registry{
		template: opts,
		broker:   broker,
		engines:  make(map[string]*game.Engine),
	}
}

// Open returns the engine for id, creating it if needed.
func (r *Registry) Open(ctx context.Context, id string) *game.Engine {
	r.mu.RLock()
	e, ok := r.engines[id]
	r.mu.RUnlock()
	if ok {
		return e
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Double-check after acquiring write lock.
	if e, ok := r.engines[id]; ok {
		return e
	}

	e = game.New(ctx, r.options(id))
	r.engines[id] = e
	return e
}

// Session returns the engine for a session that has logged in or has a
// stored snapshot. Anything else is errUnknownSession.
func (r *Registry) Session(ctx context.Context, id string) (*game.Engine, error) {
	if id == "" {
		return nil, errUnknownSession
	}

	r.mu.RLock()
	e, ok := r.engines[id]
	r.mu.RUnlock()
	if ok {
		return e, nil
	}

	if r.template.Snapshots == nil {
		return nil, errUnknownSession
	}
	if _, err := r.template.Snapshots.Load(ctx, snapshot.Slot(id)); err != nil {
		return nil, errUnknownSession
	}
	return r.Open(ctx, id), nil
}

func (r *Registry) options(id string) game.Options {
	opts := r.template
	opts.SessionID = id
	opts.Slot = snapshot.Slot(id)
	if r.broker != nil {
		broker := r.broker
		opts.OnChange = func(s forge.GameState) {
			broker.Publish(id, stateEvent(s))
		}
	}
	return opts
}

// IDs returns the IDs of the loaded sessions in sorted order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.engines))
	for id := range r.engines {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Close stops every engine's countdown. Snapshots already hold the state.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, e := range r.engines {
		e.Close()
		delete(r.engines, id)
	}
	return nil
}
