package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizedQueries(t *testing.T) {
	p := SearchParams{Queries: []string{" cafes ", "", "bars", "cafes", "  "}}
	assert.Equal(t, []string{"cafes", "bars"}, p.NormalizedQueries())

	empty := SearchParams{}
	assert.Empty(t, empty.NormalizedQueries())
}

func TestIsCoordMode(t *testing.T) {
	assert.False(t, (&SearchParams{}).IsCoordMode())
	assert.True(t, (&SearchParams{Lat: 50.08}).IsCoordMode())
}

func TestPlaceURL(t *testing.T) {
	assert.Equal(t,
		"https://www.google.com/maps/search/?api=1&query=coffee+shops&query_place_id=ChIJ123",
		PlaceURL("coffee shops", "ChIJ123"))
}
