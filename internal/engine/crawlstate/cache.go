package crawlstate

import (
	"sync"

	"github.com/rendis/mapcrawl/internal/model"
)

// CoordBackend is an optional second-level store shared between processes.
type CoordBackend interface {
	GetCoords(placeID string) (*model.Coordinates, bool)
	SetCoords(placeID string, coords model.Coordinates, searchString string) error
}

type cachedPlace struct {
	coords       *model.Coordinates
	searchString string
}

// CoordinateCache maps place IDs to their last known coordinates so that a
// later occurrence without coordinates can inherit them. Entries are never deleted.
type CoordinateCache struct {
	mu      sync.RWMutex
	places  map[string]cachedPlace
	backend CoordBackend
	onError func(error)
}

func NewCoordinateCache(backend CoordBackend, onError func(error)) *CoordinateCache {
	return &CoordinateCache{
		places:  make(map[string]cachedPlace),
		backend: backend,
		onError: onError,
	}
}

// GetLocation returns the cached coordinates of a place, or nil.
func (c *CoordinateCache) GetLocation(placeID string) *model.Coordinates {
	c.mu.RLock()
	p, ok := c.places[placeID]
	c.mu.RUnlock()
	if ok && p.coords != nil {
		cp := *p.coords
		return &cp
	}
	if c.backend == nil {
		return nil
	}
	coords, ok := c.backend.GetCoords(placeID)
	if !ok || coords == nil {
		return nil
	}
	c.mu.Lock()
	if cur := c.places[placeID]; cur.coords == nil {
		c.places[placeID] = cachedPlace{coords: coords, searchString: cur.searchString}
	}
	c.mu.Unlock()
	cp := *coords
	return &cp
}

// AddLocation upserts a place. Nil coordinates never overwrite known ones.
func (c *CoordinateCache) AddLocation(placeID string, coords *model.Coordinates, searchString string) {
	c.mu.Lock()
	prev, ok := c.places[placeID]
	switch {
	case coords != nil:
		cp := *coords
		c.places[placeID] = cachedPlace{coords: &cp, searchString: searchString}
	case !ok:
		c.places[placeID] = cachedPlace{searchString: searchString}
	default:
		c.places[placeID] = prev
	}
	c.mu.Unlock()

	if coords == nil || c.backend == nil {
		return
	}
	if err := c.backend.SetCoords(placeID, *coords, searchString); err != nil && c.onError != nil {
		c.onError(err)
	}
}

// Len returns the number of cached places.
func (c *CoordinateCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.places)
}
