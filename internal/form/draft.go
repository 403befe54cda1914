// Package form implements the create/edit session for a single listing.
package form

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/vyrodovalexey/listing-dashboard/internal/model"
)

// decimalPattern accepts plain decimal numbers only. strconv.ParseFloat alone
// would also take NaN, Inf, exponents and hex floats.
var decimalPattern = regexp.MustCompile(`^(?:[0-9]+(?:\.[0-9]*)?|\.[0-9]+)$`)

// Field names used as FieldErrors keys.
const (
	FieldTitle       = "title"
	FieldPrice       = "price"
	FieldCategory    = "category"
	FieldSubcategory = "subcategory"
	FieldImages      = "images"
)

// Validation messages.
const (
	MsgTitleRequired       = "Title is required"
	MsgPriceRequired       = "Price is required"
	MsgPriceInvalid        = "Price must be a positive number"
	MsgCategoryRequired    = "Category is required"
	MsgSubcategoryRequired = "Subcategory is required"
	MsgImagesRequired      = "At least 1 image is required"
	MsgTooManyImages       = "At most 3 images are allowed"
)

// Draft is the unsaved state of a form session.
type Draft struct {
	Title       string
	Price       string
	Category    string
	Subcategory string
	Images      []model.ImageFile
}

// DraftFrom pre-fills a draft from an existing listing. Images are never
// carried over.
func DraftFrom(l model.Listing) Draft {
	f := model.FieldsOf(l)
	return Draft{
		Title:       f.Title,
		Price:       f.Price,
		Category:    f.Category,
		Subcategory: f.Subcategory,
	}
}

// Fields returns the trimmed scalar fields for submission.
func (d Draft) Fields() model.ListingFields {
	return model.ListingFields{
		Title:       strings.TrimSpace(d.Title),
		Price:       strings.TrimSpace(d.Price),
		Category:    strings.TrimSpace(d.Category),
		Subcategory: strings.TrimSpace(d.Subcategory),
	}
}

// FieldErrors maps a field name to its validation message.
type FieldErrors map[string]string

// Valid reports whether no field failed validation.
func (e FieldErrors) Valid() bool {
	return len(e) == 0
}

// Has reports whether field failed validation.
func (e FieldErrors) Has(field string) bool {
	_, ok := e[field]
	return ok
}

// Validate checks d. Images are only collected, and therefore only
// required, when withImages is set.
func (d Draft) Validate(withImages bool) FieldErrors {
	errs := FieldErrors{}
	f := d.Fields()

	if f.Title == "" {
		errs[FieldTitle] = MsgTitleRequired
	}

	if f.Price == "" {
		errs[FieldPrice] = MsgPriceRequired
	} else if !validPrice(f.Price) {
		errs[FieldPrice] = MsgPriceInvalid
	}

	if f.Category == "" {
		errs[FieldCategory] = MsgCategoryRequired
	}

	if f.Subcategory == "" {
		errs[FieldSubcategory] = MsgSubcategoryRequired
	}

	if withImages {
		switch {
		case len(d.Images) == 0:
			errs[FieldImages] = MsgImagesRequired
		case len(d.Images) > model.MaxImages:
			errs[FieldImages] = MsgTooManyImages
		}
	}

	return errs
}

func validPrice(raw string) bool {
	if !decimalPattern.MatchString(raw) {
		return false
	}
	price, err := strconv.ParseFloat(raw, 64)
	return err == nil && price > 0 && !math.IsNaN(price) && !math.IsInf(price, 0)
}
