// Package gallery holds the album and photo domain model: the album tree,
// recursive photo counting, and the ordering rules the API surfaces follow.
//
// Counts span the whole subtree of the asked-for album regardless of who is
// asking; visibility is enforced where listings are built (FilterTree and
// the album read gate), not inside the arithmetic, so admins and guests
// agree on the count of any album both can reach.
package gallery

import (
	"sort"
	"time"

	"github.com/photarium/photarium/src/common/logs"
	"github.com/photarium/photarium/src/photariumd/access"
)

var log = logs.NewDefault()

// SetLogger sets the logger for the gallery package
func SetLogger(l *logs.Logger) {
	if l != nil {
		log = l
	}
}

// Album is a gallery album. Albums nest through ParentAlbumID; an empty
// parent id marks a root album.
type Album struct {
	ID            string            `json:"id"`
	Name          string            `json:"name"`
	Description   string            `json:"description,omitempty"`
	ParentAlbumID string            `json:"parentAlbumId,omitempty"`
	SortOrder     int               `json:"sortOrder"`
	CoverPhotoID  string            `json:"coverPhotoId,omitempty"`
	Visibility    access.Visibility `json:"visibility"`

	// PhotoCount caches the direct photo count at write time. The
	// recursive counter is authoritative; this field only seeds listings.
	PhotoCount int `json:"photoCount"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Photo is a stored photo belonging to exactly one album. Photos inherit
// their album's visibility; an unpublished photo additionally stays out of
// listings and counts until its owner flips IsPublished.
type Photo struct {
	ID          string    `json:"id"`
	AlbumID     string    `json:"albumId"`
	Title       string    `json:"title,omitempty"`
	Provider    string    `json:"provider"`
	Path        string    `json:"path"`
	ContentType string    `json:"contentType,omitempty"`
	Size        int64     `json:"size"`
	SortOrder   int       `json:"sortOrder"`
	IsPublished bool      `json:"isPublished"`
	TakenAt     time.Time `json:"takenAt,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// AlbumNode is an album with its resolved children, ready for the tree API.
type AlbumNode struct {
	*Album
	Children []*AlbumNode `json:"children,omitempty"`
}

// BuildTree assembles the album forest from a flat listing. Roots are
// albums with no parent; albums pointing at a parent absent from the
// listing are adopted as roots rather than dropped. Siblings order by
// SortOrder, ties by name.
func BuildTree(albums []*Album) []*AlbumNode {
	nodes := make(map[string]*AlbumNode, len(albums))
	for _, a := range albums {
		nodes[a.ID] = &AlbumNode{Album: a}
	}

	var roots []*AlbumNode
	for _, a := range albums {
		node := nodes[a.ID]
		if a.ParentAlbumID == "" {
			roots = append(roots, node)
			continue
		}
		parent, ok := nodes[a.ParentAlbumID]
		if !ok || a.ParentAlbumID == a.ID {
			log.Warn("Album has unresolvable parent, adopting as root",
				"album", a.ID, "parent", a.ParentAlbumID)
			roots = append(roots, node)
			continue
		}
		parent.Children = append(parent.Children, node)
	}

	// Albums caught in a parent cycle are attached to each other but
	// unreachable from any root. Surface them as roots so no album ever
	// silently disappears from the tree.
	reachable := make(map[string]bool, len(nodes))
	var mark func(n *AlbumNode)
	mark = func(n *AlbumNode) {
		if reachable[n.ID] {
			return
		}
		reachable[n.ID] = true
		for _, c := range n.Children {
			mark(c)
		}
	}
	for _, r := range roots {
		mark(r)
	}
	if len(reachable) != len(nodes) {
		for _, a := range albums {
			node := nodes[a.ID]
			if !reachable[a.ID] {
				log.Warn("Album is part of a parent cycle, detaching",
					"album", a.ID, "parent", a.ParentAlbumID)
				// Break the cycle at this node and recover its subtree
				if parent, ok := nodes[a.ParentAlbumID]; ok {
					parent.Children = removeChild(parent.Children, node)
				}
				roots = append(roots, node)
				mark(node)
			}
		}
	}

	sortNodes(roots)
	return roots
}

func removeChild(children []*AlbumNode, target *AlbumNode) []*AlbumNode {
	for i, c := range children {
		if c == target {
			return append(children[:i], children[i+1:]...)
		}
	}
	return children
}

func sortNodes(nodes []*AlbumNode) {
	sort.SliceStable(nodes, func(i, j int) bool {
		if nodes[i].SortOrder != nodes[j].SortOrder {
			return nodes[i].SortOrder < nodes[j].SortOrder
		}
		return nodes[i].Name < nodes[j].Name
	})
	for _, n := range nodes {
		sortNodes(n.Children)
	}
}

// FilterTree prunes albums the principal may not view. A hidden album hides
// its whole subtree, matching how nested shares behave everywhere else.
func FilterTree(roots []*AlbumNode, p *access.Principal) []*AlbumNode {
	var visible []*AlbumNode
	for _, r := range roots {
		if !access.CanView(p, r.Visibility) {
			continue
		}
		filtered := &AlbumNode{Album: r.Album}
		filtered.Children = FilterTree(r.Children, p)
		visible = append(visible, filtered)
	}
	return visible
}
