// Package store holds the dashboard's listing collection and the filter
// engine evaluated against it.
package store

import (
	"context"
	"errors"

	"github.com/vyrodovalexey/listing-dashboard/internal/model"
)

// Store errors.
var (
	ErrInvalidID  = errors.New("invalid listing ID")
	ErrNilBackend = errors.New("backend cannot be nil")
)

// Backend is the remote source of truth the store synchronizes with.
type Backend interface {
	// ListListings returns the full listing collection.
	ListListings(ctx context.Context) ([]model.Listing, error)

	// DeleteListing removes a listing by its ID.
	DeleteListing(ctx context.Context, id string) error
}

// Listener is notified after a successful load changes the collection.
type Listener interface {
	ListingsReplaced(count int)
}

// ListenerFunc adapts a function to the Listener interface.
type ListenerFunc func(count int)

// ListingsReplaced calls f(count).
func (f ListenerFunc) ListingsReplaced(count int) {
	f(count)
}
