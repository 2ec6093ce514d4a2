package knowledge

import (
	"strings"
	"testing"
)

func TestSplitShortText(t *testing.T) {
	s := NewSplitter()
	got := s.Split("Appointment for Haircut on 2025-07-05 10:00")
	if len(got) != 1 {
		t.Fatalf("expected one window, got %d", len(got))
	}
}

func TestSplitEmpty(t *testing.T) {
	if got := NewSplitter().Split(""); got != nil {
		t.Fatalf("expected nil for empty input, got %v", got)
	}
}

func TestSplitOverlap(t *testing.T) {
	s := &Splitter{ChunkSize: 10, Overlap: 4}
	text := strings.Repeat("abcdef", 5) // 30 chars
	windows := s.Split(text)

	if len(windows) < 2 {
		t.Fatalf("expected multiple windows, got %d", len(windows))
	}
	for i, w := range windows[:len(windows)-1] {
		if len(w) != 10 {
			t.Errorf("window %d has size %d, want 10", i, len(w))
		}
	}
	// Consecutive windows share the overlap region.
	for i := 1; i < len(windows); i++ {
		prev := windows[i-1]
		tail := prev[len(prev)-4:]
		if !strings.HasPrefix(windows[i], tail) {
			t.Errorf("window %d does not start with previous overlap %q", i, tail)
		}
	}
}

func TestSplitDeterministic(t *testing.T) {
	s := NewSplitter()
	text := strings.Repeat("service availability sentence ", 100)
	a := s.Split(text)
	b := s.Split(text)
	if len(a) != len(b) {
		t.Fatalf("split is not deterministic: %d vs %d windows", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("window %d differs between runs", i)
		}
	}
}
