package overlay

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Remote is the backing store the collection is synchronized with.
type Remote interface {
	ListOverlays(ctx context.Context) ([]Overlay, error)
	CreateOverlay(ctx context.Context, d Draft) (Overlay, error)
	UpdateOverlay(ctx context.Context, id ID, p Patch) (Overlay, error)
	DeleteOverlay(ctx context.Context, id ID) error
}

// Observer is told about every remote call the store makes. It may be nil.
type Observer interface {
	ObserveRemoteCall(op string, err error)
}

// Store is an ordered local cache of the remote overlay collection. The local
// copy only changes after the remote call confirms the mutation.
type Store struct {
	mu       sync.RWMutex
	remote   Remote
	log      *slog.Logger
	observer Observer
	items    []Overlay
}

// NewStore returns an empty store backed by remote. observer may be nil.
func NewStore(remote Remote, log *slog.Logger, observer Observer) *Store {
	return &Store{remote: remote, log: log, observer: observer}
}

// List returns a copy of the collection in insertion order, invisible overlays included.
func (s *Store) List() []Overlay {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneAll(s.items)
}

// Visible returns the overlays that are rendered, in insertion order.
func (s *Store) Visible() []Overlay {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Overlay, 0, len(s.items))
	for _, o := range s.items {
		if o.Visible {
			out = append(out, clone(o))
		}
	}
	return out
}

// Get returns one overlay by id.
func (s *Store) Get(id ID) (Overlay, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := s.indexLocked(id); i >= 0 {
		return clone(s.items[i]), true
	}
	return Overlay{}, false
}

// Load replaces the collection with the remote list.
func (s *Store) Load(ctx context.Context) error {
	items, err := s.remote.ListOverlays(ctx)
	s.observe("list", err)
	if err != nil {
		s.log.Error("load overlays failed", slog.String("error", err.Error()))
		return fmt.Errorf("load overlays: %w", err)
	}

	s.mu.Lock()
	s.items = cloneAll(items)
	s.mu.Unlock()
	s.log.Debug("overlays loaded", slog.Int("count", len(items)))
	return nil
}

// Create validates d, creates it remotely and appends the stored result.
func (s *Store) Create(ctx context.Context, d Draft) (Overlay, error) {
	if err := d.Validate(); err != nil {
		return Overlay{}, err
	}

	created, err := s.remote.CreateOverlay(ctx, d)
	s.observe("create", err)
	if err != nil {
		s.log.Error("create overlay failed", slog.String("name", d.Name), slog.String("error", err.Error()))
		return Overlay{}, fmt.Errorf("create overlay: %w", err)
	}

	s.mu.Lock()
	s.items = append(s.items, clone(created))
	s.mu.Unlock()
	s.log.Info("overlay created", slog.String("id", string(created.ID)), slog.String("name", created.Name))
	return created, nil
}

// Update validates p, sends it and replaces the entry in place with the
// server's copy. The id must be in the local collection.
func (s *Store) Update(ctx context.Context, id ID, p Patch) (Overlay, error) {
	if err := p.Validate(); err != nil {
		return Overlay{}, err
	}
	current, ok := s.Get(id)
	if !ok {
		return Overlay{}, fmt.Errorf("update %s: %w", id, ErrNotFound)
	}
	if err := p.Apply(current).Validate(); err != nil {
		return Overlay{}, err
	}

	updated, err := s.remote.UpdateOverlay(ctx, id, p)
	s.observe("update", err)
	if err != nil {
		s.log.Error("update overlay failed", slog.String("id", string(id)), slog.String("error", err.Error()))
		return Overlay{}, fmt.Errorf("update overlay %s: %w", id, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	// The entry may have been deleted while the call was in flight.
	if i := s.indexLocked(id); i >= 0 {
		s.items[i] = clone(updated)
	}
	return updated, nil
}

// Delete removes the overlay remotely and then locally.
func (s *Store) Delete(ctx context.Context, id ID) error {
	if _, ok := s.Get(id); !ok {
		return fmt.Errorf("delete %s: %w", id, ErrNotFound)
	}

	err := s.remote.DeleteOverlay(ctx, id)
	s.observe("delete", err)
	if err != nil {
		s.log.Error("delete overlay failed", slog.String("id", string(id)), slog.String("error", err.Error()))
		return fmt.Errorf("delete overlay %s: %w", id, err)
	}

	s.mu.Lock()
	if i := s.indexLocked(id); i >= 0 {
		s.items = append(s.items[:i:i], s.items[i+1:]...)
	}
	s.mu.Unlock()
	s.log.Info("overlay deleted", slog.String("id", string(id)))
	return nil
}

func (s *Store) observe(op string, err error) {
	if s.observer != nil {
		s.observer.ObserveRemoteCall(op, err)
	}
}

// indexLocked returns the position of id or -1. Caller must hold s.mu.
func (s *Store) indexLocked(id ID) int {
	for i, o := range s.items {
		if o.ID == id {
			return i
		}
	}
	return -1
}

func clone(o Overlay) Overlay {
	if o.Style != nil {
		st := *o.Style
		o.Style = &st
	}
	return o
}

func cloneAll(items []Overlay) []Overlay {
	out := make([]Overlay, len(items))
	for i, o := range items {
		out[i] = clone(o)
	}
	return out
}
