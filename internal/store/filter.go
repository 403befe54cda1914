package store

import (
	"slices"
	"strings"

	"github.com/vyrodovalexey/listing-dashboard/internal/model"
)

// FilterState is the dashboard's search query plus the optional category and
// subcategory selections. An empty Category or Subcategory means unset.
type FilterState struct {
	Query       string `json:"query"`
	Category    string `json:"category,omitempty"`
	Subcategory string `json:"subcategory,omitempty"`
}

// SetQuery replaces the free-text query.
func (f *FilterState) SetQuery(q string) {
	f.Query = q
}

// SelectCategory selects c and always clears the subcategory, which is only
// meaningful relative to the category it was picked under.
func (f *FilterState) SelectCategory(c string) {
	f.Category = c
	f.Subcategory = ""
}

// SelectSubcategory selects s under the current category.
func (f *FilterState) SelectSubcategory(s string) {
	f.Subcategory = s
}

// Matches reports whether l satisfies every condition of state.
func Matches(l model.Listing, state FilterState) bool {
	matchesQuery := strings.Contains(strings.ToLower(l.Title), strings.ToLower(state.Query))
	matchesCategory := state.Category == "" || l.Category == state.Category
	matchesSubcategory := state.Subcategory == "" || l.Subcategory == state.Subcategory

	return matchesQuery && matchesCategory && matchesSubcategory
}

// Filter returns the listings that match state, preserving order.
func Filter(listings []model.Listing, state FilterState) []model.Listing {
	out := make([]model.Listing, 0, len(listings))
	for _, l := range listings {
		if Matches(l, state) {
			out = append(out, l)
		}
	}
	return out
}

// Categories returns the distinct categories in first-appearance order.
func Categories(listings []model.Listing) []string {
	return distinct(listings, func(model.Listing) bool { return true }, func(l model.Listing) string {
		return l.Category
	})
}

// Subcategories returns the distinct subcategories of listings whose category
// equals category.
func Subcategories(listings []model.Listing, category string) []string {
	return distinct(listings, func(l model.Listing) bool { return l.Category == category }, func(l model.Listing) string {
		return l.Subcategory
	})
}

// Reconcile clears selections that no longer exist in listings: a missing
// category clears both selections, a missing subcategory clears only itself.
func Reconcile(listings []model.Listing, state FilterState) FilterState {
	if state.Category != "" && !slices.Contains(Categories(listings), state.Category) {
		state.SelectCategory("")
		return state
	}

	if state.Subcategory != "" {
		if state.Category == "" || !slices.Contains(Subcategories(listings, state.Category), state.Subcategory) {
			state.Subcategory = ""
		}
	}

	return state
}

// View is one consistent evaluation of a filter state.
type View struct {
	State         FilterState     `json:"state"`
	Categories    []string        `json:"categories"`
	Subcategories []string        `json:"subcategories"`
	Listings      []model.Listing `json:"listings"`
	Total         int             `json:"total"`
}

// NewView reconciles state against listings and evaluates it.
func NewView(listings []model.Listing, state FilterState) View {
	state = Reconcile(listings, state)

	subcategories := []string{}
	if state.Category != "" {
		subcategories = Subcategories(listings, state.Category)
	}

	return View{
		State:         state,
		Categories:    Categories(listings),
		Subcategories: subcategories,
		Listings:      Filter(listings, state),
		Total:         len(listings),
	}
}

func distinct(listings []model.Listing, keep func(model.Listing) bool, key func(model.Listing) string) []string {
	seen := make(map[string]struct{})
	out := []string{}
	for _, l := range listings {
		if !keep(l) {
			continue
		}
		k := key(l)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}
