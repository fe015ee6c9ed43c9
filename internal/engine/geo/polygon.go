package geo

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"

	"github.com/rendis/mapcrawl/internal/model"
)

// Polygon is the target area of a crawl. A nil or empty Polygon accepts everything.
type Polygon struct {
	shape orb.MultiPolygon
}

func NewPolygon(mp orb.MultiPolygon) *Polygon {
	return &Polygon{shape: mp}
}

// IsSet reports whether a target area is configured.
func (p *Polygon) IsSet() bool {
	return p != nil && len(p.shape) > 0
}

// Contains reports whether c lies inside the polygon. Unknown coordinates and
// an unset polygon are always accepted.
func (p *Polygon) Contains(c *model.Coordinates) bool {
	if !p.IsSet() || c == nil {
		return true
	}
	return planar.MultiPolygonContains(p.shape, orb.Point{c.Lng, c.Lat}) // orb.Point is [lng, lat]
}

// Bound returns the bounding box of the polygon.
func (p *Polygon) Bound() orb.Bound {
	if !p.IsSet() {
		return orb.Bound{}
	}
	return p.shape.Bound()
}
