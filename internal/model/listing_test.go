package model

import (
	"encoding/json"
	"testing"
)

func TestListing_JSONUsesBackendIdentifier(t *testing.T) {
	// Arrange
	raw := `{"_id":"abc","title":"Red Shoe","price":500,"category":"Footwear","subcategory":"Sneakers","images":["http://img/1.png"]}`

	// Act
	var l Listing
	err := json.Unmarshal([]byte(raw), &l)

	// Assert
	if err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if l.ID != "abc" {
		t.Errorf("ID = %q, want abc", l.ID)
	}
	if l.Price != 500 {
		t.Errorf("Price = %v, want 500", l.Price)
	}
	if !l.HasImages() {
		t.Error("HasImages() = false, want true")
	}
}

func TestListing_CompareAtPrice(t *testing.T) {
	tests := []struct {
		name  string
		price float64
		want  float64
	}{
		{"whole price", 500, 600},
		{"zero price", 0, 0},
		{"fractional price", 12.5, 15},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Listing{Price: tt.price}.CompareAtPrice()
			if got < tt.want-1e-9 || got > tt.want+1e-9 {
				t.Errorf("CompareAtPrice() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestListing_Equal(t *testing.T) {
	base := Listing{ID: "1", Title: "Red Shoe", Price: 500, Category: "Footwear", Subcategory: "Sneakers", Images: []string{"a", "b"}}

	tests := []struct {
		name  string
		other func(l Listing) Listing
		want  bool
	}{
		{"identical", func(l Listing) Listing { return l }, true},
		{"copied images", func(l Listing) Listing { l.Images = []string{"a", "b"}; return l }, true},
		{"images removed", func(l Listing) Listing { l.Images = []string{}; return l }, false},
		{"different price", func(l Listing) Listing { l.Price = 501; return l }, false},
		{"different title", func(l Listing) Listing { l.Title = "Blue Shoe"; return l }, false},
		{"reordered images", func(l Listing) Listing { l.Images = []string{"b", "a"}; return l }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := base.Equal(tt.other(base)); got != tt.want {
				t.Errorf("Equal() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFieldsOf(t *testing.T) {
	// Arrange
	l := Listing{ID: "1", Title: "Blue Hat", Price: 199.5, Category: "Apparel", Subcategory: "Hats"}

	// Act
	fields := FieldsOf(l)

	// Assert
	want := ListingFields{Title: "Blue Hat", Price: "199.5", Category: "Apparel", Subcategory: "Hats"}
	if fields != want {
		t.Errorf("FieldsOf() = %+v, want %+v", fields, want)
	}
}

func TestListingFields_PairsOrder(t *testing.T) {
	pairs := ListingFields{Title: "t", Price: "1", Category: "c", Subcategory: "s"}.Pairs()

	wantNames := []string{"title", "price", "category", "subcategory"}
	if len(pairs) != len(wantNames) {
		t.Fatalf("len(Pairs()) = %d, want %d", len(pairs), len(wantNames))
	}
	for i, name := range wantNames {
		if pairs[i][0] != name {
			t.Errorf("Pairs()[%d] name = %q, want %q", i, pairs[i][0], name)
		}
	}
}

func TestFormatPrice(t *testing.T) {
	tests := []struct {
		price float64
		want  string
	}{
		{500, "500"},
		{12.5, "12.5"},
		{0.01, "0.01"},
	}

	for _, tt := range tests {
		if got := FormatPrice(tt.price); got != tt.want {
			t.Errorf("FormatPrice(%v) = %q, want %q", tt.price, got, tt.want)
		}
	}
}

func TestNewListingsChangedMessage(t *testing.T) {
	// Act
	msg := NewListingsChangedMessage(3)

	// Assert
	if msg.Type != MessageTypeListingsChanged {
		t.Errorf("Type = %q, want %q", msg.Type, MessageTypeListingsChanged)
	}
	if msg.Count != 3 {
		t.Errorf("Count = %d, want 3", msg.Count)
	}
	if msg.Timestamp.IsZero() {
		t.Error("Timestamp should be set")
	}
}

func TestValidationErrorResponse_Decode(t *testing.T) {
	// Arrange
	raw := `{"errors":[{"msg":"Title is required"},{"msg":"Price must be positive"}]}`

	// Act
	var resp ValidationErrorResponse
	err := json.Unmarshal([]byte(raw), &resp)

	// Assert
	if err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if len(resp.Errors) != 2 || resp.Errors[0].Msg != "Title is required" {
		t.Errorf("Errors = %+v", resp.Errors)
	}
}
