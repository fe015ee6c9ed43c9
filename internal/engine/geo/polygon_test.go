package geo

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"

	"github.com/rendis/mapcrawl/internal/model"
)

func square(minLng, minLat, maxLng, maxLat float64) orb.MultiPolygon {
	return orb.MultiPolygon{{{
		{minLng, minLat}, {maxLng, minLat}, {maxLng, maxLat}, {minLng, maxLat}, {minLng, minLat},
	}}}
}

func TestPolygonContains(t *testing.T) {
	p := NewPolygon(square(14, 50, 15, 51))

	tests := []struct {
		name   string
		coords *model.Coordinates
		want   bool
	}{
		{"inside", &model.Coordinates{Lat: 50.5, Lng: 14.5}, true},
		{"outside", &model.Coordinates{Lat: 52, Lng: 14.5}, false},
		{"swapped axes are outside", &model.Coordinates{Lat: 14.5, Lng: 50.5}, false},
		{"unknown coordinates pass", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, p.Contains(tt.coords))
		})
	}
}

func TestPolygonUnsetAcceptsEverything(t *testing.T) {
	var p *Polygon
	assert.False(t, p.IsSet())
	assert.True(t, p.Contains(&model.Coordinates{Lat: -33, Lng: 151}))
	assert.True(t, NewPolygon(nil).Contains(&model.Coordinates{Lat: 1, Lng: 1}))
}
