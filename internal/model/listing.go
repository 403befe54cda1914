// Package model defines data structures used throughout the application.
package model

import (
	"slices"
	"strconv"
	"time"
)

// CompareAtMarkup is the multiplier used for the strikethrough price shown
// next to a listing's actual price.
const CompareAtMarkup = 1.2

// MaxImages is the maximum number of images accepted for a new listing.
const MaxImages = 3

// Listing represents a product listing held by the backend API.
type Listing struct {
	ID          string   `json:"_id"`
	Title       string   `json:"title"`
	Price       float64  `json:"price"`
	Category    string   `json:"category"`
	Subcategory string   `json:"subcategory"`
	Images      []string `json:"images,omitempty"`
}

// CompareAtPrice returns the presentation-only "was" price.
func (l Listing) CompareAtPrice() float64 {
	return l.Price * CompareAtMarkup
}

// HasImages reports whether the backend attached any image URLs.
func (l Listing) HasImages() bool {
	return len(l.Images) > 0
}

// Equal reports whether l and o carry the same values, image order included.
func (l Listing) Equal(o Listing) bool {
	return l.ID == o.ID &&
		l.Title == o.Title &&
		l.Price == o.Price &&
		l.Category == o.Category &&
		l.Subcategory == o.Subcategory &&
		slices.Equal(l.Images, o.Images)
}

// ListingFields are the scalar fields sent on create and update.
type ListingFields struct {
	Title       string
	Price       string
	Category    string
	Subcategory string
}

// FieldsOf returns the submission fields for an existing listing.
func FieldsOf(l Listing) ListingFields {
	return ListingFields{
		Title:       l.Title,
		Price:       FormatPrice(l.Price),
		Category:    l.Category,
		Subcategory: l.Subcategory,
	}
}

// Pairs returns the fields as ordered name/value pairs in submission order.
func (f ListingFields) Pairs() [][2]string {
	return [][2]string{
		{"title", f.Title},
		{"price", f.Price},
		{"category", f.Category},
		{"subcategory", f.Subcategory},
	}
}

// FormatPrice renders a price without trailing zeros.
func FormatPrice(price float64) string {
	return strconv.FormatFloat(price, 'f', -1, 64)
}

// ImageFile is an uploaded image kept in memory until it is submitted.
type ImageFile struct {
	Name        string
	ContentType string
	Data        []byte
}

// MessageResponse is the backend's success body for create and update.
type MessageResponse struct {
	Message string `json:"message"`
}

// ValidationError is a single backend validation failure.
type ValidationError struct {
	Msg string `json:"msg"`
}

// ValidationErrorResponse is the backend's structured failure body.
type ValidationErrorResponse struct {
	Errors []ValidationError `json:"errors"`
}

// ErrorResponse represents an error response structure.
type ErrorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// ChangeMessage is pushed to dashboard WebSocket clients.
type ChangeMessage struct {
	Type      string    `json:"type"`
	Count     int       `json:"count"`
	Timestamp time.Time `json:"timestamp"`
}

// MessageTypeListingsChanged tells dashboards to refresh.
const MessageTypeListingsChanged = "listings_changed"

// NewListingsChangedMessage creates a change notification for a collection of
// the given size.
func NewListingsChangedMessage(count int) ChangeMessage {
	return ChangeMessage{
		Type:      MessageTypeListingsChanged,
		Count:     count,
		Timestamp: time.Now().UTC(),
	}
}
