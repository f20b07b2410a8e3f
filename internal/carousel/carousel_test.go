package carousel

import "testing"

func TestAdvanceWraparound(t *testing.T) {
	tests := []struct {
		name      string
		start     int
		total     int
		direction int
		expected  int
	}{
		{"forward wraps", 2, 3, +1, 0},
		{"backward wraps", 0, 3, -1, 2},
		{"forward", 0, 3, +1, 1},
		{"backward", 2, 3, -1, 1},
		{"single image forward", 0, 1, +1, 0},
		{"single image backward", 0, 1, -1, 0},
		{"zero direction", 1, 3, 0, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewStore()
			for i := 0; i < tt.start; i++ {
				s.Advance("p", tt.total, +1)
			}
			if got := s.Advance("p", tt.total, tt.direction); got != tt.expected {
				t.Errorf("Advance() = %d, want %d", got, tt.expected)
			}
			if got := s.Index("p"); got != tt.expected {
				t.Errorf("Index() = %d, want %d", got, tt.expected)
			}
		})
	}
}

func TestDefaultsAndIndependence(t *testing.T) {
	s := NewStore()
	if got := s.Index("unseen"); got != 0 {
		t.Errorf("Index(unseen) = %d", got)
	}

	s.Advance("a", 5, +1)
	s.Advance("a", 5, +1)
	s.Advance("b", 5, -1)

	if got := s.Index("a"); got != 2 {
		t.Errorf("Index(a) = %d, want 2", got)
	}
	if got := s.Index("b"); got != 4 {
		t.Errorf("Index(b) = %d, want 4", got)
	}
	if s.Len() != 2 {
		t.Errorf("Len() = %d", s.Len())
	}
}

func TestZeroTotalGuarded(t *testing.T) {
	s := NewStore()
	s.Advance("a", 3, +1)

	if got := s.Advance("a", 0, +1); got != 0 {
		t.Errorf("Advance(total=0) = %d", got)
	}
	if got := s.Index("a"); got != 1 {
		t.Errorf("cursor changed by invalid call: %d", got)
	}
	if got := s.Current("a", 0); got != 0 {
		t.Errorf("Current(total=0) = %d", got)
	}
}

func TestCurrentNormalizesShrunkGallery(t *testing.T) {
	s := NewStore()
	for i := 0; i < 4; i++ {
		s.Advance("a", 5, +1)
	}
	// gallery shrank from 5 to 3 images after a reload
	if got := s.Current("a", 3); got != 1 {
		t.Errorf("Current() = %d, want 1", got)
	}
	if got := s.Advance("a", 3, +1); got != 2 {
		t.Errorf("Advance() = %d, want 2", got)
	}
}
