package storage

import (
	"testing"
)

func TestInsertTreePath(t *testing.T) {
	root := &TreeNode{Name: "/", Path: ""}
	for _, key := range []string{
		"albums/2024/a.jpg",
		"albums/2024/b.jpg",
		"albums/top.jpg",
		"covers/c.jpg",
	} {
		insertTreePath(root, "", key, MaxTreeDepth)
	}
	sortTree(root)

	if len(root.Children) != 2 {
		t.Fatalf("expected 2 top-level nodes, got %d", len(root.Children))
	}

	albums := root.Children[0]
	if albums.Name != "albums" || albums.IsFile {
		t.Fatalf("unexpected first child: %+v", albums)
	}
	// folders sort before files
	if albums.Children[0].Name != "2024" || albums.Children[0].IsFile {
		t.Errorf("expected 2024 folder first, got %+v", albums.Children[0])
	}
	if albums.Children[1].Name != "top.jpg" || !albums.Children[1].IsFile {
		t.Errorf("expected top.jpg file second, got %+v", albums.Children[1])
	}

	year := albums.Children[0]
	if len(year.Children) != 2 {
		t.Fatalf("expected 2 photos under 2024, got %d", len(year.Children))
	}
	if year.Children[0].Path != "albums/2024/a.jpg" {
		t.Errorf("unexpected leaf path: %s", year.Children[0].Path)
	}
}

func TestInsertTreePathDepthCap(t *testing.T) {
	root := &TreeNode{Name: "/", Path: ""}
	insertTreePath(root, "", "a/b/c/d.jpg", 2)

	a := root.Children[0]
	if a.Name != "a" {
		t.Fatalf("expected folder a, got %s", a.Name)
	}
	b := a.Children[0]
	if b.Name != "b" {
		t.Fatalf("expected folder b, got %s", b.Name)
	}
	if len(b.Children) != 0 {
		t.Errorf("depth cap not applied, found %d nodes below b", len(b.Children))
	}
}

func TestObjectStoreRejectsWrongID(t *testing.T) {
	if _, err := NewObjectStore(Local, ObjectStoreConfig{Bucket: "b"}); err == nil {
		t.Error("expected error for non object-store id")
	}
}

func TestNormalizeKey(t *testing.T) {
	cases := map[string]string{
		"/albums/x.jpg":  "albums/x.jpg",
		"albums//x.jpg":  "albums/x.jpg",
		"./albums/x.jpg": "albums/x.jpg",
		"":               "",
		"/":              "",
	}
	for in, want := range cases {
		if got := normalizeKey(in); got != want {
			t.Errorf("normalizeKey(%q) = %q, want %q", in, got, want)
		}
	}
}
