// Package ingest converts loosely-typed backend or sample payloads into
// canonical domain.PropertyRecord values.
package ingest

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/julianbeese/immo_search/internal/domain"
	"github.com/julianbeese/immo_search/internal/features"
	"github.com/julianbeese/immo_search/internal/geo"
)

// Options controls which records survive ingestion
type Options struct {
	// RentStatus is the status a record needs to be listed. Empty disables the check.
	RentStatus string
}

// Report summarizes an ingestion pass
type Report struct {
	Total      int
	Kept       int
	MissingID  int
	Duplicate  int
	NotForRent int
}

// Records ingests a batch, preserving input order. Records without an id,
// with a duplicate id, or with the wrong status are dropped and counted.
func Records(raw []map[string]any, opts Options) ([]domain.PropertyRecord, Report) {
	report := Report{Total: len(raw)}
	records := make([]domain.PropertyRecord, 0, len(raw))
	seen := make(map[string]bool, len(raw))

	for _, r := range raw {
		rec, ok := Record(r)
		if !ok {
			report.MissingID++
			continue
		}
		if seen[rec.ID] {
			report.Duplicate++
			continue
		}
		if opts.RentStatus != "" && !strings.EqualFold(rec.Status, opts.RentStatus) {
			report.NotForRent++
			continue
		}
		seen[rec.ID] = true
		records = append(records, rec)
	}

	report.Kept = len(records)
	return records, report
}

// Record converts a single raw record. ok is false when no id can be found.
func Record(raw map[string]any) (domain.PropertyRecord, bool) {
	id := getID(raw, "id", "_id", "propertyId")
	if id == "" {
		return domain.PropertyRecord{}, false
	}

	rec := domain.PropertyRecord{
		ID:          id,
		Title:       getString(raw, "title", "titre", "name"),
		Description: getString(raw, "description"),
		City:        getString(raw, "city", "ville"),
		Address:     getString(raw, "address", "adresse"),
		ZipCode:     getString(raw, "zipCode", "zip_code", "zip", "postalCode", "codePostal"),
		Type:        getString(raw, "type", "propertyType", "typeBien"),
		Status:      getString(raw, "status", "statut"),
		Price:       getFloat(raw, "price", "prix", "loyer"),
		Surface:     getFloat(raw, "surface", "area", "livingSpace"),
		Rooms:       getFloat(raw, "rooms", "nbRooms"),
		Pieces:      getFloat(raw, "pieces", "nbPieces"),
		Bedrooms:    getFloat(raw, "bedrooms", "chambres", "nbChambres"),
		Bathrooms:   getFloat(raw, "bathrooms", "sallesDeBain"),
		Features:    features.Extract(first(raw, "features", "equipements", "amenities")),
		Images:      getImages(raw, "images", "photos"),
		LocalImage:  getString(raw, "localImage", "image"),
	}

	if rt, ok := domain.ParseRentType(getString(raw, "rentType", "rent_type", "typeLocation")); ok {
		rec.RentType = rt
	}

	// Negative values are as meaningless as missing ones
	for _, p := range []**float64{&rec.Price, &rec.Surface, &rec.Rooms, &rec.Pieces, &rec.Bedrooms, &rec.Bathrooms} {
		if *p != nil && **p < 0 {
			*p = nil
		}
	}

	lat := getFloat(raw, "latitude", "lat")
	lon := getFloat(raw, "longitude", "lng", "lon")
	if lat != nil && lon != nil && geo.ValidCoordinates(*lat, *lon) {
		rec.Latitude, rec.Longitude = lat, lon
	}

	return rec, true
}

// Coalesce returns the first non-nil value in priority order, or 0.
// Room counts use Coalesce(bedrooms, rooms, pieces) and bedroom counts
// Coalesce(bedrooms, rooms).
func Coalesce(values ...*float64) float64 {
	if v := First(values...); v != nil {
		return *v
	}
	return 0
}

// First returns the first non-nil value in priority order, or nil
func First(values ...*float64) *float64 {
	for _, v := range values {
		if v != nil {
			return v
		}
	}
	return nil
}

// Helper functions

func first(m map[string]any, keys ...string) any {
	for _, k := range keys {
		if v, ok := m[k]; ok && v != nil {
			return v
		}
	}
	return nil
}

func getString(m map[string]any, keys ...string) string {
	switch v := first(m, keys...).(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case json.Number:
		return v.String()
	}
	return ""
}

func getID(m map[string]any, keys ...string) string {
	switch v := first(m, keys...).(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return ""
		}
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case json.Number:
		return v.String()
	}
	return ""
}

func getFloat(m map[string]any, keys ...string) *float64 {
	var f float64
	switch v := first(m, keys...).(type) {
	case float64:
		f = v
	case int:
		f = float64(v)
	case int64:
		f = float64(v)
	case json.Number:
		parsed, err := v.Float64()
		if err != nil {
			return nil
		}
		f = parsed
	case string:
		parsed, ok := parseNumber(v)
		if !ok {
			return nil
		}
		f = parsed
	default:
		return nil
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

// parseNumber accepts "1200", "1 200", "1200,50" and "1200.50"
func parseNumber(s string) (float64, bool) {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\u00a0', '\u202f':
			return -1
		}
		return r
	}, strings.TrimSpace(s))
	if cleaned == "" {
		return 0, false
	}
	cleaned = strings.Replace(cleaned, ",", ".", 1)
	f, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

func getImages(m map[string]any, keys ...string) []string {
	var out []string
	switch v := first(m, keys...).(type) {
	case []string:
		for _, s := range v {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
	case []any:
		for _, item := range v {
			switch img := item.(type) {
			case string:
				if img = strings.TrimSpace(img); img != "" {
					out = append(out, img)
				}
			case map[string]any:
				if u := getString(img, "url", "src", "path"); u != "" {
					out = append(out, u)
				}
			}
		}
	case string:
		if s := strings.TrimSpace(v); s != "" {
			out = append(out, s)
		}
	}
	return out
}
