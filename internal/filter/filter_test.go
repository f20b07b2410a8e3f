package filter

import (
	"math"
	"reflect"
	"testing"

	"github.com/julianbeese/immo_search/internal/domain"
)

var testOrigin = domain.Location{Lat: -20.882, Lon: 55.4507}

func ids(records []domain.PropertyRecord) []string {
	out := []string{}
	for _, r := range records {
		out = append(out, r.ID)
	}
	return out
}

func sampleRecords() []domain.PropertyRecord {
	return []domain.PropertyRecord{
		{
			ID: "1", Title: "T2 lumineux", Description: "Proche du centre", City: "Saint-Denis",
			Address: "5 rue de Paris", ZipCode: "97400", Type: "Appartement",
			Price: domain.Float(1000), Surface: domain.Float(50), Bedrooms: domain.Float(1), Rooms: domain.Float(2),
			Latitude: domain.Float(-20.88), Longitude: domain.Float(55.45),
			Features: []string{"Meublé", "Parking"}, RentType: domain.RentLongTerm,
		},
		{
			ID: "2", Title: "Villa avec piscine", Description: "Vue mer", City: "Saint-Paul",
			Address: "Chemin des Laves", ZipCode: "97460", Type: "Maison",
			Price: domain.Float(2000), Surface: domain.Float(80), Pieces: domain.Float(4),
			Latitude: domain.Float(-21.0096), Longitude: domain.Float(55.2707),
			Features: []string{"Piscine", "Jardin"},
		},
		{
			ID: "3", Title: "Studio", Description: "Parking inclus", City: "Le Tampon",
			Type: "Studio", Rooms: domain.Float(1),
		},
	}
}

func TestEndToEndScenarios(t *testing.T) {
	engine := NewEngine(testOrigin)
	records := []domain.PropertyRecord{
		{ID: "1", Price: domain.Float(1000), Surface: domain.Float(50), City: "Saint-Denis"},
		{ID: "2", Price: domain.Float(2000), Surface: domain.Float(80), City: "Saint-Paul"},
	}

	t.Run("price ceiling", func(t *testing.T) {
		got := engine.FilterListings(records, domain.FilterState{PriceMax: domain.Float(1500)})
		if !reflect.DeepEqual(ids(got), []string{"1"}) {
			t.Errorf("got %v, want [1]", ids(got))
		}
	})

	t.Run("localisation matches both", func(t *testing.T) {
		got := engine.FilterListings(records, domain.FilterState{Localisation: "saint"})
		if !reflect.DeepEqual(ids(got), []string{"1", "2"}) {
			t.Errorf("got %v, want [1 2]", ids(got))
		}
	})

	t.Run("radius includes nearby record", func(t *testing.T) {
		near := []domain.PropertyRecord{{ID: "n", Latitude: domain.Float(-20.88), Longitude: domain.Float(55.45)}}
		got := engine.FilterListings(near, domain.FilterState{RadiusKm: 5, RadiusEnabled: true})
		if !reflect.DeepEqual(ids(got), []string{"n"}) {
			t.Errorf("got %v, want [n]", ids(got))
		}
	})
}

func TestMatchers(t *testing.T) {
	engine := NewEngine(testOrigin)
	records := sampleRecords()

	tests := []struct {
		name     string
		state    domain.FilterState
		expected []string
	}{
		{"no criteria", domain.FilterState{}, []string{"1", "2", "3"}},
		{"search title", domain.FilterState{Search: "VILLA"}, []string{"2"}},
		{"search description", domain.FilterState{Search: "centre"}, []string{"1"}},
		{"search address", domain.FilterState{Search: "rue de"}, []string{"1"}},
		{"search whitespace only", domain.FilterState{Search: "   "}, []string{"1", "2", "3"}},
		{"type whitespace only", domain.FilterState{Type: " \t"}, []string{"1", "2", "3"}},
		{"feature whitespace only", domain.FilterState{Feature1: " ", Feature2: "  "}, []string{"1", "2", "3"}},
		{"localisation accents", domain.FilterState{Localisation: "Saint-Dénis"}, []string{"1"}},
		{"localisation zip", domain.FilterState{Localisation: "97460"}, []string{"2"}},
		{"localisation reverse containment", domain.FilterState{Localisation: "le tampon ile de la reunion"}, []string{"3"}},
		{"localisation symbols only", domain.FilterState{Localisation: "•"}, []string{"1", "2", "3"}},
		{"radius 5km", domain.FilterState{RadiusKm: 5, RadiusEnabled: true}, []string{"1"}},
		{"radius 50km", domain.FilterState{RadiusKm: 50, RadiusEnabled: true}, []string{"1", "2"}},
		{"radius disabled", domain.FilterState{RadiusKm: 0.001}, []string{"1", "2", "3"}},
		{"price ceiling excludes unset", domain.FilterState{PriceMax: domain.Float(5000)}, []string{"1", "2"}},
		{"price ceiling inclusive", domain.FilterState{PriceMax: domain.Float(1000)}, []string{"1"}},
		{"surface floor", domain.FilterState{SurfaceMin: domain.Float(60)}, []string{"2"}},
		{"surface ceiling", domain.FilterState{SurfaceMax: domain.Float(60)}, []string{"1"}},
		{"surface window", domain.FilterState{SurfaceMin: domain.Float(50), SurfaceMax: domain.Float(80)}, []string{"1", "2"}},
		{"type", domain.FilterState{Type: "mais"}, []string{"2"}},
		{"feature in list", domain.FilterState{Feature1: "piscine"}, []string{"2"}},
		{"feature in description", domain.FilterState{Feature1: "parking"}, []string{"1", "3"}},
		{"two features", domain.FilterState{Feature1: "parking", Feature2: "meublé"}, []string{"1"}},
		{"feature in type", domain.FilterState{Feature2: "studio"}, []string{"3"}},
		{"rooms prefer bedrooms", domain.FilterState{RoomsMin: domain.Float(2)}, []string{"2"}},
		{"rooms from pieces", domain.FilterState{RoomsMin: domain.Float(4)}, []string{"2"}},
		{"bedrooms ignore pieces", domain.FilterState{BedroomsMin: domain.Float(1)}, []string{"1", "3"}},
		{"rent type", domain.FilterState{RentType: domain.RentSeasonal}, []string{"2", "3"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ids(engine.FilterListings(records, tt.state))
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("FilterListings() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestRadiusFailsClosed(t *testing.T) {
	engine := NewEngine(testOrigin)
	records := []domain.PropertyRecord{
		{ID: "no-lat", Longitude: domain.Float(55.45)},
		{ID: "nan", Latitude: domain.Float(math.NaN()), Longitude: domain.Float(55.45)},
		{ID: "none"},
	}

	for _, radius := range []float64{0, 5, 1e6, math.Inf(1)} {
		got := engine.FilterListings(records, domain.FilterState{RadiusKm: radius, RadiusEnabled: true})
		if len(got) != 0 {
			t.Errorf("radius %v kept %v", radius, ids(got))
		}
	}
}

func TestAndComposition(t *testing.T) {
	engine := NewEngine(testOrigin)
	records := sampleRecords()

	a := domain.FilterState{PriceMax: domain.Float(2500)}
	b := domain.FilterState{Localisation: "saint"}
	ab := domain.FilterState{PriceMax: domain.Float(2500), Localisation: "saint"}

	c := domain.FilterState{Feature1: "parking"}
	d := domain.FilterState{RadiusKm: 50, RadiusEnabled: true}
	cd := domain.FilterState{Feature1: "parking", RadiusKm: 50, RadiusEnabled: true}

	pairs := []struct {
		x, y, both domain.FilterState
	}{
		{a, b, ab},
		{b, a, ab},
		{c, d, cd},
		{d, c, cd},
	}

	for _, p := range pairs {
		combined := ids(engine.FilterListings(records, p.both))
		chained := ids(engine.FilterListings(engine.FilterListings(records, p.x), p.y))
		if !reflect.DeepEqual(combined, chained) {
			t.Errorf("combined %v != chained %v", combined, chained)
		}
	}
}

func TestFilterReasons(t *testing.T) {
	engine := NewEngine(testOrigin)
	rec := domain.PropertyRecord{ID: "x", City: "Saint-Pierre"}

	result := engine.Filter(&rec, domain.FilterState{
		PriceMax:      domain.Float(100),
		SurfaceMin:    domain.Float(10),
		RadiusKm:      5,
		RadiusEnabled: true,
	})

	if result.Passed {
		t.Fatal("expected record to be filtered")
	}
	expected := []string{"no_location", "no_price", "no_surface"}
	if !reflect.DeepEqual(result.Reasons, expected) {
		t.Errorf("Reasons = %v, want %v", result.Reasons, expected)
	}
}

func TestFilterPreservesInputAndOrder(t *testing.T) {
	engine := NewEngine(testOrigin)
	records := sampleRecords()
	before := ids(records)

	got := engine.FilterListings(records, domain.FilterState{Localisation: "saint"})
	if !reflect.DeepEqual(ids(got), []string{"1", "2"}) {
		t.Errorf("got %v", ids(got))
	}
	if !reflect.DeepEqual(ids(records), before) {
		t.Errorf("input modified: %v", ids(records))
	}
}

func TestLocationIgnoresEmptyFields(t *testing.T) {
	engine := NewEngine(testOrigin)
	records := []domain.PropertyRecord{
		{ID: "blank", Title: "Appartement Saint-Denis"},
		{ID: "zip-only", ZipCode: "97400"},
		{ID: "city", City: "Saint-Denis"},
	}

	for _, query := range []string{"saint", "Saint-Denis 97400", "x"} {
		got := engine.FilterListings(records, domain.FilterState{Localisation: query})
		for _, r := range got {
			if r.ID == "blank" {
				t.Errorf("localisation %q matched a record without city, address or zip", query)
			}
		}
	}

	// only city and address are matched in reverse
	got := engine.FilterListings(records, domain.FilterState{Localisation: "Saint-Denis 97400"})
	if !reflect.DeepEqual(ids(got), []string{"city"}) {
		t.Errorf("got %v, want [city]", ids(got))
	}

	got = engine.FilterListings(records, domain.FilterState{Localisation: "974"})
	if !reflect.DeepEqual(ids(got), []string{"zip-only"}) {
		t.Errorf("got %v, want [zip-only]", ids(got))
	}
}
