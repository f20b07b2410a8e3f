package messenger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/julianbeese/immo_search/internal/domain"
)

func TestGenerateDefaultTemplate(t *testing.T) {
	g, err := NewGenerator(filepath.Join(t.TempDir(), "missing.tmpl"), Sender{Name: "Alex Payet", Phone: "0692 00 00 00", Email: "alex@example.com"})
	if err != nil {
		t.Fatalf("NewGenerator() error = %v", err)
	}

	msg, err := g.Generate(&domain.PropertyRecord{
		Title:    "T2 lumineux",
		City:     "Saint-Denis",
		Price:    domain.Float(850),
		RentType: domain.RentLongTerm,
	})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	for _, want := range []string{"« T2 lumineux »", "à Saint-Denis", "(850 €)", "location longue durée", "0692 00 00 00", "alex@example.com", "Alex Payet"} {
		if !strings.Contains(msg, want) {
			t.Errorf("message missing %q:\n%s", want, msg)
		}
	}
}

func TestGenerateCustomTemplate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "visit.tmpl")
	if err := os.WriteFile(path, []byte("{{.Title}} / {{.Surface}} m² / {{.SenderName}}"), 0o644); err != nil {
		t.Fatal(err)
	}

	g, err := NewGenerator(path, Sender{Name: "Sam"})
	if err != nil {
		t.Fatal(err)
	}
	msg, err := g.Generate(&domain.PropertyRecord{Title: "Villa", Surface: domain.Float(120.5)})
	if err != nil {
		t.Fatal(err)
	}
	if msg != "Villa / 120.5 m² / Sam" {
		t.Errorf("Generate() = %q", msg)
	}
}

func TestGenerateRoomPrecedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rooms.tmpl")
	if err := os.WriteFile(path, []byte("{{.Rooms}}"), 0o644); err != nil {
		t.Fatal(err)
	}
	g, err := NewGenerator(path, Sender{})
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name     string
		record   domain.PropertyRecord
		expected string
	}{
		{"bedrooms first", domain.PropertyRecord{Bedrooms: domain.Float(2), Rooms: domain.Float(3), Pieces: domain.Float(4)}, "2"},
		{"rooms before pieces", domain.PropertyRecord{Rooms: domain.Float(3), Pieces: domain.Float(4)}, "3"},
		{"pieces only", domain.PropertyRecord{Pieces: domain.Float(4)}, "4"},
		{"rooms only", domain.PropertyRecord{Rooms: domain.Float(1)}, "1"},
		{"none", domain.PropertyRecord{}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := g.Generate(&tt.record)
			if err != nil {
				t.Fatal(err)
			}
			if msg != tt.expected {
				t.Errorf("Generate() = %q, want %q", msg, tt.expected)
			}
		})
	}
}

func TestNewGeneratorInvalidTemplate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.tmpl")
	os.WriteFile(path, []byte("{{.Title"), 0o644)
	if _, err := NewGenerator(path, Sender{}); err == nil {
		t.Error("expected parse error")
	}
}

func TestFormatNumber(t *testing.T) {
	tests := []struct {
		in       *float64
		expected string
	}{
		{nil, ""},
		{domain.Float(850), "850"},
		{domain.Float(48.5), "48.5"},
		{domain.Float(0.25), "0.25"},
		{domain.Float(0), "0"},
	}
	for _, tt := range tests {
		if got := formatNumber(tt.in); got != tt.expected {
			t.Errorf("formatNumber(%v) = %q, want %q", tt.in, got, tt.expected)
		}
	}
}
