package store

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/vyrodovalexey/listing-dashboard/internal/model"
)

// ListingStore holds the most recently fetched listing collection.
// The collection is only ever written by Load and is replaced wholesale.
// Fetches are numbered when they start; a response older than the one
// already applied is discarded, so the collection never moves backwards.
type ListingStore struct {
	backend Backend
	logger  *zap.Logger

	fetchSeq atomic.Uint64

	mu         sync.RWMutex
	listings   []model.Listing
	loaded     bool
	appliedSeq uint64

	listenerMu sync.RWMutex
	listeners  []Listener
}

// NewListingStore creates an empty ListingStore backed by b.
func NewListingStore(b Backend, logger *zap.Logger) (*ListingStore, error) {
	if b == nil {
		return nil, ErrNilBackend
	}

	return &ListingStore{
		backend:  b,
		logger:   logger,
		listings: []model.Listing{},
	}, nil
}

// Subscribe registers l to be notified after each successful Load that
// changed the collection.
func (s *ListingStore) Subscribe(l Listener) {
	s.listenerMu.Lock()
	defer s.listenerMu.Unlock()

	s.listeners = append(s.listeners, l)
}

// Load fetches the full collection and replaces the current one. On failure
// the previous collection is kept. Listeners are notified on the first load
// and whenever the contents differ from the previous ones.
func (s *ListingStore) Load(ctx context.Context) error {
	seq := s.fetchSeq.Add(1)

	listings, err := s.backend.ListListings(ctx)
	if err != nil {
		s.logger.Error("failed to fetch listings", zap.Error(err))
		return fmt.Errorf("load listings: %w", err)
	}

	if listings == nil {
		listings = []model.Listing{}
	}

	s.mu.Lock()
	if applied := s.appliedSeq; seq < applied {
		s.mu.Unlock()
		s.logger.Debug("discarding stale listings fetch",
			zap.Uint64("seq", seq),
			zap.Uint64("applied_seq", applied),
		)
		return nil
	}
	changed := !s.loaded || !slices.EqualFunc(s.listings, listings, model.Listing.Equal)
	s.listings = listings
	s.loaded = true
	s.appliedSeq = seq
	s.mu.Unlock()

	s.logger.Debug("listings loaded",
		zap.Int("count", len(listings)),
		zap.Bool("changed", changed),
	)
	if changed {
		s.notify(len(listings))
	}

	return nil
}

// Remove asks the backend to delete the listing and then reloads the full
// collection. Nothing is removed locally; a failed delete therefore leaves
// whatever the backend still reports.
func (s *ListingStore) Remove(ctx context.Context, id string) error {
	if id == "" {
		return ErrInvalidID
	}

	deleteErr := s.backend.DeleteListing(ctx, id)
	if deleteErr != nil {
		s.logger.Error("delete failed", zap.String("id", id), zap.Error(deleteErr))
	}

	loadErr := s.Load(ctx)

	if deleteErr != nil {
		return fmt.Errorf("remove listing %s: %w", id, deleteErr)
	}
	if loadErr != nil {
		return fmt.Errorf("remove listing %s: %w", id, loadErr)
	}

	return nil
}

// Listings returns a copy of the current collection.
func (s *ListingStore) Listings() []model.Listing {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Listing, len(s.listings))
	copy(out, s.listings)
	return out
}

// Get returns the listing with the given ID from the current collection.
func (s *ListingStore) Get(id string) (model.Listing, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, l := range s.listings {
		if l.ID == id {
			return l, true
		}
	}
	return model.Listing{}, false
}

// Loaded reports whether at least one Load has succeeded.
func (s *ListingStore) Loaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.loaded
}

// AvailableCategories returns the distinct categories of the current
// collection in first-appearance order.
func (s *ListingStore) AvailableCategories() []string {
	return Categories(s.Listings())
}

// AvailableSubcategories returns the distinct subcategories of listings in
// the given category, in first-appearance order.
func (s *ListingStore) AvailableSubcategories(category string) []string {
	return Subcategories(s.Listings(), category)
}

// Filter returns the listings matching state, in collection order.
func (s *ListingStore) Filter(state FilterState) []model.Listing {
	return Filter(s.Listings(), state)
}

// View evaluates state against a single snapshot of the collection so the
// option sets and the result never straddle a reload.
func (s *ListingStore) View(state FilterState) View {
	return NewView(s.Listings(), state)
}

func (s *ListingStore) notify(count int) {
	s.listenerMu.RLock()
	listeners := make([]Listener, len(s.listeners))
	copy(listeners, s.listeners)
	s.listenerMu.RUnlock()

	for _, l := range listeners {
		l.ListingsReplaced(count)
	}
}
