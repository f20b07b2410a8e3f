package textnorm

import "testing"

func TestNormalize(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"empty", "", ""},
		{"lowercase", "Saint-Paul", "saintpaul"},
		{"diacritics", "Étang-Salé", "etangsale"},
		{"cedilla and accents", "Façade rénovée à côté", "facade renovee a cote"},
		{"collapse whitespace", "  Saint   Denis \t 97400 ", "saint denis 97400"},
		{"punctuation dropped", "2 ch • Meublé, Parking!", "2 ch meuble parking"},
		{"only symbols", "€ • ---", ""},
		{"newlines", "Rue\nde\r\nParis", "rue de paris"},
		{"digits kept", "T3 75m²", "t3 75m"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Normalize(tt.input); got != tt.expected {
				t.Errorf("Normalize(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	inputs := []string{
		"", "Saint-Denis", "  Étang   Salé  ", "ŒUVRE ß naïve", "Le Tampon • 97430", "日本語 text", "áb",
	}
	for _, in := range inputs {
		once := Normalize(in)
		if twice := Normalize(once); twice != once {
			t.Errorf("Normalize not idempotent for %q: %q then %q", in, once, twice)
		}
	}
}
