package domain

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// RentType partitions listings into long-term and seasonal sets
type RentType string

const (
	RentLongTerm RentType = "longue_duree"
	RentSeasonal RentType = "saisonniere"
)

// Valid reports whether the rent type is one of the known values
func (r RentType) Valid() bool {
	return r == RentLongTerm || r == RentSeasonal
}

// ParseRentType accepts the canonical values plus a few short forms
func ParseRentType(s string) (RentType, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "longue_duree", "longue", "long", "longterm":
		return RentLongTerm, true
	case "saisonniere", "saison", "seasonal":
		return RentSeasonal, true
	}
	return "", false
}

// StatusForRent is the default status marker a record needs to be listed at all
const StatusForRent = "a_louer"

// DefaultImage is shown when a listing carries no image at all
const DefaultImage = "/images/default-property.jpg"

// Location is a point in degrees
type Location struct {
	Lat float64 `json:"lat" yaml:"lat"`
	Lon float64 `json:"lon" yaml:"lon"`
}

// PropertyRecord is the canonical listing shape produced at ingestion.
// Optional numbers are nil when the source did not provide a usable value.
type PropertyRecord struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	City        string   `json:"city,omitempty"`
	Address     string   `json:"address,omitempty"`
	ZipCode     string   `json:"zip_code,omitempty"`
	Type        string   `json:"type,omitempty"`
	RentType    RentType `json:"rent_type,omitempty"`
	Status      string   `json:"status,omitempty"`

	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
	Price     *float64 `json:"price,omitempty"`
	Surface   *float64 `json:"surface,omitempty"`
	Rooms     *float64 `json:"rooms,omitempty"`
	Pieces    *float64 `json:"pieces,omitempty"`
	Bedrooms  *float64 `json:"bedrooms,omitempty"`
	Bathrooms *float64 `json:"bathrooms,omitempty"`

	Features   []string `json:"features,omitempty"`
	Images     []string `json:"images,omitempty"`
	LocalImage string   `json:"local_image,omitempty"`
}

// HasLocation reports whether both coordinates are usable
func (p *PropertyRecord) HasLocation() bool {
	if p.Latitude == nil || p.Longitude == nil {
		return false
	}
	lat, lon := *p.Latitude, *p.Longitude
	if math.IsNaN(lat) || math.IsNaN(lon) || math.IsInf(lat, 0) || math.IsInf(lon, 0) {
		return false
	}
	return lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}

// ImageList returns the gallery, falling back to the local image and then
// to DefaultImage so the list is never empty.
func (p *PropertyRecord) ImageList() []string {
	if len(p.Images) > 0 {
		return p.Images
	}
	if p.LocalImage != "" {
		return []string{p.LocalImage}
	}
	return []string{DefaultImage}
}

// ImageCount is always >= 1
func (p *PropertyRecord) ImageCount() int {
	return len(p.ImageList())
}

// SortOrder selects the ordering of a result set
type SortOrder string

const (
	SortNone        SortOrder = ""
	SortPriceAsc    SortOrder = "price_asc"
	SortPriceDesc   SortOrder = "price_desc"
	SortSurfaceDesc SortOrder = "surface_desc"
)

// FilterState is a snapshot of every search criterion. Empty strings and
// nil pointers mean the criterion is inactive.
type FilterState struct {
	Search       string   `json:"search,omitempty"`
	Localisation string   `json:"localisation,omitempty"`
	Type         string   `json:"type,omitempty"`
	PriceMax     *float64 `json:"price_max,omitempty"`
	SurfaceMin   *float64 `json:"surface_min,omitempty"`
	SurfaceMax   *float64 `json:"surface_max,omitempty"`
	RoomsMin     *float64 `json:"rooms_min,omitempty"`
	BedroomsMin  *float64 `json:"bedrooms_min,omitempty"`
	Feature1     string   `json:"feature1,omitempty"`
	Feature2     string   `json:"feature2,omitempty"`
	RentType     RentType `json:"rent_type,omitempty"`

	RadiusKm      float64 `json:"radius_km"`
	RadiusEnabled bool    `json:"radius_enabled"`

	Sort SortOrder `json:"sort,omitempty"`
}

// DefaultFilterState returns an inactive state with the given radius preset
func DefaultFilterState(radiusKm float64) FilterState {
	return FilterState{RadiusKm: radiusKm}
}

// Reset clears a single field by its assignment key (see filter.ParseAssignments).
// It returns false for unknown keys.
func (f *FilterState) Reset(field string) bool {
	switch field {
	case "search", "q":
		f.Search = ""
	case "localisation", "city":
		f.Localisation = ""
	case "type":
		f.Type = ""
	case "price_max":
		f.PriceMax = nil
	case "surface_min":
		f.SurfaceMin = nil
	case "surface_max":
		f.SurfaceMax = nil
	case "rooms_min":
		f.RoomsMin = nil
	case "bedrooms_min":
		f.BedroomsMin = nil
	case "feature1":
		f.Feature1 = ""
	case "feature2":
		f.Feature2 = ""
	case "rent_type":
		f.RentType = ""
	case "radius":
		f.RadiusEnabled = false
	case "sort":
		f.Sort = SortNone
	default:
		return false
	}
	return true
}

// Key is a canonical encoding of the state, stable across equal values
func (f FilterState) Key() string {
	var sb strings.Builder
	writeStr := func(s string) {
		sb.WriteString(strconv.Quote(s))
		sb.WriteByte('|')
	}
	writeNum := func(v *float64) {
		if v == nil {
			sb.WriteString("-")
		} else {
			sb.WriteString(strconv.FormatFloat(*v, 'g', -1, 64))
		}
		sb.WriteByte('|')
	}
	writeStr(f.Search)
	writeStr(f.Localisation)
	writeStr(f.Type)
	writeNum(f.PriceMax)
	writeNum(f.SurfaceMin)
	writeNum(f.SurfaceMax)
	writeNum(f.RoomsMin)
	writeNum(f.BedroomsMin)
	writeStr(f.Feature1)
	writeStr(f.Feature2)
	writeStr(string(f.RentType))
	sb.WriteString(strconv.FormatFloat(f.RadiusKm, 'g', -1, 64))
	sb.WriteByte('|')
	sb.WriteString(strconv.FormatBool(f.RadiusEnabled))
	sb.WriteByte('|')
	sb.WriteString(string(f.Sort))
	return sb.String()
}

// ListingSnapshot is the last successfully fetched record set of a rent type
type ListingSnapshot struct {
	RentType  RentType         `json:"rent_type"`
	Records   []PropertyRecord `json:"records"`
	FetchedAt time.Time        `json:"fetched_at"`
}

// VisitRequest is a user's request to visit a listing
type VisitRequest struct {
	ID         string    `json:"id"`
	PropertyID string    `json:"propertyId"`
	Message    string    `json:"message"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"createdAt"`
}

// ActivityLog for debugging and audit
type ActivityLog struct {
	ID         int64     `json:"id"`
	Action     string    `json:"action"`
	EntityType string    `json:"entity_type,omitempty"`
	EntityID   string    `json:"entity_id,omitempty"`
	Details    string    `json:"details,omitempty"`
	ErrorMsg   string    `json:"error_msg,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// VisitRequest status constants
const (
	VisitStatusPending = "pending"
	VisitStatusSent    = "sent"
)

// ActivityAction constants
const (
	ActionListingsLoaded   = "listings_loaded"
	ActionListingsFallback = "listings_fallback"
	ActionVisitRequested   = "visit_requested"
	ActionVisitDuplicate   = "visit_duplicate"
	ActionVisitFailed      = "visit_failed"
	ActionNewListing       = "new_listing"
)

// Float returns a pointer to v, for building optional fields
func Float(v float64) *float64 {
	return &v
}
