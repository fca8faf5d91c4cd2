package gallery

import (
	"context"
	"sync"

	apperrors "github.com/photarium/photarium/src/common/errors"
)

// AlbumSource lists the direct children of an album.
type AlbumSource interface {
	ChildAlbums(ctx context.Context, albumID string) ([]*Album, error)
}

// PhotoSource counts the published photos directly inside an album.
type PhotoSource interface {
	CountPhotos(ctx context.Context, albumID string) (int, error)
}

// Counter computes recursive photo counts over the album tree. Sibling
// subtrees are counted concurrently; a parent's total is only assembled
// after every child subtree has finished.
type Counter struct {
	albums AlbumSource
	photos PhotoSource
}

// NewCounter creates a recursive photo counter.
func NewCounter(albums AlbumSource, photos PhotoSource) *Counter {
	return &Counter{albums: albums, photos: photos}
}

// Count returns the total number of photos in an album and every album
// nested beneath it.
func (c *Counter) Count(ctx context.Context, albumID string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, apperrors.ErrInternal.WithMessage("count cancelled").WithCause(err)
	}

	direct, err := c.photos.CountPhotos(ctx, albumID)
	if err != nil {
		return 0, err
	}

	children, err := c.albums.ChildAlbums(ctx, albumID)
	if err != nil {
		return 0, err
	}
	if len(children) == 0 {
		return direct, nil
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		total    = direct
		firstErr error
	)
	for _, child := range children {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			n, err := c.Count(ctx, id)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if firstErr == nil {
					firstErr = err
				}
				return
			}
			total += n
		}(child.ID)
	}
	wg.Wait()

	if firstErr != nil {
		return 0, firstErr
	}
	return total, nil
}
