package ledger

import (
	"sync"
	"testing"
)

func TestMarkSentIdempotent(t *testing.T) {
	l := New()
	if l.HasPendingOrSentRequest("1") {
		t.Fatal("unseen id must default to false")
	}

	l.MarkSent("1")
	l.MarkSent("1")

	if !l.HasPendingOrSentRequest("1") {
		t.Error("expected request to be recorded")
	}
	if l.Len() != 1 {
		t.Errorf("Len() = %d, want 1", l.Len())
	}
}

func TestSeed(t *testing.T) {
	l := New()
	l.Seed([]string{"a", "b", "", "a"})

	tests := []struct {
		id       string
		expected bool
	}{
		{"a", true},
		{"b", true},
		{"c", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := l.HasPendingOrSentRequest(tt.id); got != tt.expected {
			t.Errorf("HasPendingOrSentRequest(%q) = %v, want %v", tt.id, got, tt.expected)
		}
	}

	// seeding again never clears entries
	l.MarkSent("c")
	l.Seed(nil)
	if !l.HasPendingOrSentRequest("c") {
		t.Error("entry reverted to false")
	}
}

func TestConcurrentMarkSent(t *testing.T) {
	l := New()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.MarkSent("shared")
			_ = l.HasPendingOrSentRequest("shared")
		}()
	}
	wg.Wait()
	if !l.HasPendingOrSentRequest("shared") || l.Len() != 1 {
		t.Errorf("unexpected ledger state, len=%d", l.Len())
	}
}
