package gallery

import (
	"context"
	"errors"
	"sync"
	"testing"
)

// memoryGallery backs the counter interfaces with fixed maps for tests.
type memoryGallery struct {
	mu       sync.Mutex
	children map[string][]*Album
	photos   map[string]int
	calls    int
	failOn   string
}

func (g *memoryGallery) ChildAlbums(ctx context.Context, albumID string) ([]*Album, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.children[albumID], nil
}

func (g *memoryGallery) CountPhotos(ctx context.Context, albumID string) (int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	if albumID == g.failOn {
		return 0, errors.New("query failed")
	}
	return g.photos[albumID], nil
}

func TestCountRecursive(t *testing.T) {
	// root(1) -> a(2) -> b(1), root -> c(1): total 5 across depth 3
	g := &memoryGallery{
		children: map[string][]*Album{
			"root": {album("a", "root", "A", 0), album("c", "root", "C", 1)},
			"a":    {album("b", "a", "B", 0)},
		},
		photos: map[string]int{"root": 1, "a": 2, "b": 1, "c": 1},
	}

	total, err := NewCounter(g, g).Count(context.Background(), "root")
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if total != 5 {
		t.Errorf("expected 5 photos, got %d", total)
	}
	if g.calls != 4 {
		t.Errorf("expected 4 photo queries, got %d", g.calls)
	}
}

func TestCountLeaf(t *testing.T) {
	g := &memoryGallery{
		children: map[string][]*Album{},
		photos:   map[string]int{"leaf": 7},
	}
	total, err := NewCounter(g, g).Count(context.Background(), "leaf")
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if total != 7 {
		t.Errorf("expected 7, got %d", total)
	}
}

func TestCountEmptyTree(t *testing.T) {
	g := &memoryGallery{children: map[string][]*Album{}, photos: map[string]int{}}
	total, err := NewCounter(g, g).Count(context.Background(), "empty")
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if total != 0 {
		t.Errorf("expected 0, got %d", total)
	}
}

func TestCountPropagatesErrors(t *testing.T) {
	g := &memoryGallery{
		children: map[string][]*Album{
			"root": {album("a", "root", "A", 0)},
		},
		photos: map[string]int{"root": 1},
		failOn: "a",
	}
	if _, err := NewCounter(g, g).Count(context.Background(), "root"); err == nil {
		t.Fatal("expected error from failing subtree")
	}
}

func TestCountWideFanOut(t *testing.T) {
	// Many siblings exercise the concurrent fan-out path
	children := make([]*Album, 50)
	photos := map[string]int{"root": 0}
	for i := range children {
		id := string(rune('A' + i%26)) + string(rune('a'+i/26))
		children[i] = album(id, "root", id, i)
		photos[id] = 2
	}
	g := &memoryGallery{
		children: map[string][]*Album{"root": children},
		photos:   photos,
	}

	total, err := NewCounter(g, g).Count(context.Background(), "root")
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if total != 100 {
		t.Errorf("expected 100, got %d", total)
	}
}
