package filter

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/julianbeese/immo_search/internal/domain"
)

// AssignmentKeys lists the keys accepted by Apply, in help order
var AssignmentKeys = []string{
	"search", "localisation", "type", "price_max", "surface_min", "surface_max",
	"rooms_min", "bedrooms_min", "feature1", "feature2", "rent_type", "radius", "sort",
}

// ParseAssignments builds a state from key=value pairs on top of base
func ParseAssignments(base domain.FilterState, assignments []string) (domain.FilterState, error) {
	state := base
	for _, a := range assignments {
		key, value, ok := strings.Cut(a, "=")
		if !ok {
			return base, fmt.Errorf("%w: %q is not key=value", domain.ErrInvalidFilter, a)
		}
		if err := Apply(&state, strings.TrimSpace(strings.ToLower(key)), strings.TrimSpace(value)); err != nil {
			return base, err
		}
	}
	return state, nil
}

// Apply sets a single field. An empty value resets the field.
func Apply(state *domain.FilterState, key, value string) error {
	if value == "" {
		if !state.Reset(key) {
			return fmt.Errorf("%w: unknown key %q", domain.ErrInvalidFilter, key)
		}
		return nil
	}

	switch key {
	case "search", "q":
		state.Search = value
	case "localisation", "city":
		state.Localisation = value
	case "type":
		state.Type = value
	case "feature1":
		state.Feature1 = value
	case "feature2":
		state.Feature2 = value
	case "price_max", "surface_min", "surface_max", "rooms_min", "bedrooms_min":
		n, err := parseBound(key, value)
		if err != nil {
			return err
		}
		switch key {
		case "price_max":
			state.PriceMax = &n
		case "surface_min":
			state.SurfaceMin = &n
		case "surface_max":
			state.SurfaceMax = &n
		case "rooms_min":
			state.RoomsMin = &n
		case "bedrooms_min":
			state.BedroomsMin = &n
		}
	case "rent_type":
		rt, ok := domain.ParseRentType(value)
		if !ok {
			return fmt.Errorf("%w: unknown rent type %q", domain.ErrInvalidFilter, value)
		}
		state.RentType = rt
	case "radius":
		switch strings.ToLower(value) {
		case "off", "false", "0":
			state.RadiusEnabled = false
		case "on", "true":
			state.RadiusEnabled = true
		default:
			n, err := parseBound(key, value)
			if err != nil {
				return err
			}
			state.RadiusKm = n
			state.RadiusEnabled = true
		}
	case "sort":
		order := domain.SortOrder(strings.ToLower(value))
		if order == "none" {
			order = domain.SortNone
		}
		if !ValidSortOrder(order) {
			return fmt.Errorf("%w: unknown sort %q", domain.ErrInvalidFilter, value)
		}
		state.Sort = order
	default:
		return fmt.Errorf("%w: unknown key %q", domain.ErrInvalidFilter, key)
	}
	return nil
}

func parseBound(key, value string) (float64, error) {
	n, err := strconv.ParseFloat(strings.Replace(value, ",", ".", 1), 64)
	if err != nil || math.IsNaN(n) || math.IsInf(n, 0) || n < 0 {
		return 0, fmt.Errorf("%w: %s must be a non-negative number, got %q", domain.ErrInvalidFilter, key, value)
	}
	return n, nil
}
