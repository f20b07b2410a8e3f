package filter

import (
	"strings"

	"github.com/julianbeese/immo_search/internal/domain"
	"github.com/julianbeese/immo_search/internal/features"
	"github.com/julianbeese/immo_search/internal/geo"
	"github.com/julianbeese/immo_search/internal/ingest"
	"github.com/julianbeese/immo_search/internal/textnorm"
)

// Engine applies a filter state to property records
type Engine struct {
	origin domain.Location
}

// NewEngine creates a new filter engine using origin as the radius center
func NewEngine(origin domain.Location) *Engine {
	return &Engine{origin: origin}
}

// Origin returns the radius center
func (e *Engine) Origin() domain.Location {
	return e.origin
}

// FilterResult contains filtering outcome for a record
type FilterResult struct {
	Passed  bool
	Reasons []string // Reasons for filtering out
}

// Filter runs every active matcher and collects all failure reasons
func (e *Engine) Filter(record *domain.PropertyRecord, state domain.FilterState) FilterResult {
	result := FilterResult{Passed: true}

	for _, matcher := range e.Matchers(state) {
		if reason := matcher.Match(record); reason != "" {
			result.Passed = false
			result.Reasons = append(result.Reasons, reason)
		}
	}

	return result
}

// FilterListings returns the records passing every active matcher, in input
// order. It stops at the first failing matcher for each record.
func (e *Engine) FilterListings(records []domain.PropertyRecord, state domain.FilterState) []domain.PropertyRecord {
	matchers := e.Matchers(state)
	filtered := make([]domain.PropertyRecord, 0, len(records))

	for i := range records {
		if passes(&records[i], matchers) {
			filtered = append(filtered, records[i])
		}
	}
	return filtered
}

func passes(record *domain.PropertyRecord, matchers []Matcher) bool {
	for _, m := range matchers {
		if m.Match(record) != "" {
			return false
		}
	}
	return true
}

// Matchers builds the matcher set for state. Inactive criteria are left out,
// so they are vacuously true.
func (e *Engine) Matchers(state domain.FilterState) []Matcher {
	var matchers []Matcher

	if term := strings.TrimSpace(state.Search); term != "" {
		matchers = append(matchers, &SearchMatcher{Term: term})
	}
	if query := textnorm.Normalize(state.Localisation); query != "" {
		matchers = append(matchers, &LocationMatcher{Query: query})
	}
	if state.RadiusEnabled {
		matchers = append(matchers, &RadiusMatcher{Origin: e.origin, RadiusKm: state.RadiusKm})
	}
	if state.PriceMax != nil {
		matchers = append(matchers, &PriceMatcher{MaxPrice: *state.PriceMax})
	}
	if state.SurfaceMin != nil || state.SurfaceMax != nil {
		matchers = append(matchers, &SurfaceMatcher{MinSurface: state.SurfaceMin, MaxSurface: state.SurfaceMax})
	}
	if t := strings.TrimSpace(state.Type); t != "" {
		matchers = append(matchers, &TypeMatcher{Type: t})
	}
	for _, token := range []string{state.Feature1, state.Feature2} {
		if token = strings.TrimSpace(token); token != "" {
			matchers = append(matchers, &FeatureMatcher{Token: token})
		}
	}
	if state.RoomsMin != nil {
		matchers = append(matchers, &RoomsMatcher{MinRooms: *state.RoomsMin})
	}
	if state.BedroomsMin != nil {
		matchers = append(matchers, &BedroomsMatcher{MinBedrooms: *state.BedroomsMin})
	}
	if state.RentType != "" {
		matchers = append(matchers, &RentTypeMatcher{RentType: state.RentType})
	}

	return matchers
}

// Matcher interface for individual filter criteria
type Matcher interface {
	Match(record *domain.PropertyRecord) string // Returns empty string if passes, reason if filtered
}

// SearchMatcher does a case-insensitive substring search over the text fields
type SearchMatcher struct {
	Term string
}

func (m *SearchMatcher) Match(r *domain.PropertyRecord) string {
	term := strings.ToLower(m.Term)
	for _, field := range []string{r.Title, r.Description, r.City, r.Address} {
		if strings.Contains(strings.ToLower(field), term) {
			return ""
		}
	}
	return "search_no_match"
}

// LocationMatcher matches a normalized query against city, address and zip
// code in both directions: the query may be more or less specific than the
// record.
type LocationMatcher struct {
	Query string // already normalized
}

func (m *LocationMatcher) Match(r *domain.PropertyRecord) string {
	city := textnorm.Normalize(r.City)
	address := textnorm.Normalize(r.Address)
	zip := textnorm.Normalize(r.ZipCode)

	for _, field := range []string{city, address, zip} {
		if field != "" && strings.Contains(field, m.Query) {
			return ""
		}
	}
	// an empty field is a substring of everything, so skip it
	for _, field := range []string{city, address} {
		if field != "" && strings.Contains(m.Query, field) {
			return ""
		}
	}
	return "wrong_location"
}

// RadiusMatcher keeps records within RadiusKm of Origin. Records without a
// usable location are excluded.
type RadiusMatcher struct {
	Origin   domain.Location
	RadiusKm float64
}

func (m *RadiusMatcher) Match(r *domain.PropertyRecord) string {
	if !r.HasLocation() {
		return "no_location"
	}
	if !geo.WithinRadius(m.Origin, *r.Latitude, *r.Longitude, m.RadiusKm) {
		return "outside_radius"
	}
	return ""
}

// PriceMatcher filters by price ceiling
type PriceMatcher struct {
	MaxPrice float64
}

func (m *PriceMatcher) Match(r *domain.PropertyRecord) string {
	if r.Price == nil {
		return "no_price"
	}
	if !(*r.Price <= m.MaxPrice) {
		return "price_too_high"
	}
	return ""
}

// SurfaceMatcher filters by living space; each bound is optional
type SurfaceMatcher struct {
	MinSurface *float64
	MaxSurface *float64
}

func (m *SurfaceMatcher) Match(r *domain.PropertyRecord) string {
	if r.Surface == nil {
		return "no_surface"
	}
	if m.MinSurface != nil && *r.Surface < *m.MinSurface {
		return "surface_too_small"
	}
	if m.MaxSurface != nil && *r.Surface > *m.MaxSurface {
		return "surface_too_large"
	}
	return ""
}

// TypeMatcher does a case-insensitive substring match on the property type
type TypeMatcher struct {
	Type string
}

func (m *TypeMatcher) Match(r *domain.PropertyRecord) string {
	if !strings.Contains(strings.ToLower(r.Type), strings.ToLower(m.Type)) {
		return "wrong_type"
	}
	return ""
}

// FeatureMatcher looks for a token in the feature list, falling back to the
// type, title and description
type FeatureMatcher struct {
	Token string
}

func (m *FeatureMatcher) Match(r *domain.PropertyRecord) string {
	token := strings.ToLower(m.Token)
	if strings.Contains(features.Text(r.Features), token) {
		return ""
	}
	text := strings.ToLower(r.Type + " " + r.Title + " " + r.Description)
	if strings.Contains(text, token) {
		return ""
	}
	return "missing_feature:" + m.Token
}

// RoomsMatcher filters by room count, preferring bedrooms over rooms over pieces
type RoomsMatcher struct {
	MinRooms float64
}

func (m *RoomsMatcher) Match(r *domain.PropertyRecord) string {
	if ingest.Coalesce(r.Bedrooms, r.Rooms, r.Pieces) < m.MinRooms {
		return "too_few_rooms"
	}
	return ""
}

// BedroomsMatcher filters by bedroom count, falling back to rooms
type BedroomsMatcher struct {
	MinBedrooms float64
}

func (m *BedroomsMatcher) Match(r *domain.PropertyRecord) string {
	if ingest.Coalesce(r.Bedrooms, r.Rooms) < m.MinBedrooms {
		return "too_few_bedrooms"
	}
	return ""
}

// RentTypeMatcher rejects records explicitly tagged with another rent type.
// Untagged records pass since each rent type is fetched separately.
type RentTypeMatcher struct {
	RentType domain.RentType
}

func (m *RentTypeMatcher) Match(r *domain.PropertyRecord) string {
	if r.RentType != "" && r.RentType != m.RentType {
		return "wrong_rent_type"
	}
	return ""
}
