package filter

import (
	"slices"

	"github.com/julianbeese/immo_search/internal/domain"
)

// Sort orders records in place, keeping input order among equal keys.
// Records missing the sort key go last.
func Sort(records []domain.PropertyRecord, order domain.SortOrder) {
	var key func(r *domain.PropertyRecord) *float64
	desc := false

	switch order {
	case domain.SortPriceAsc:
		key = func(r *domain.PropertyRecord) *float64 { return r.Price }
	case domain.SortPriceDesc:
		key = func(r *domain.PropertyRecord) *float64 { return r.Price }
		desc = true
	case domain.SortSurfaceDesc:
		key = func(r *domain.PropertyRecord) *float64 { return r.Surface }
		desc = true
	default:
		return
	}

	slices.SortStableFunc(records, func(a, b domain.PropertyRecord) int {
		ka, kb := key(&a), key(&b)
		switch {
		case ka == nil && kb == nil:
			return 0
		case ka == nil:
			return 1
		case kb == nil:
			return -1
		}
		c := 0
		if *ka < *kb {
			c = -1
		} else if *ka > *kb {
			c = 1
		}
		if desc {
			c = -c
		}
		return c
	})
}

// ValidSortOrder reports whether order is known
func ValidSortOrder(order domain.SortOrder) bool {
	switch order {
	case domain.SortNone, domain.SortPriceAsc, domain.SortPriceDesc, domain.SortSurfaceDesc:
		return true
	}
	return false
}
