package crawlstate

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rendis/mapcrawl/internal/model"
)

type mapBackend struct {
	coords map[string]model.Coordinates
	err    error
}

func (m *mapBackend) GetCoords(placeID string) (*model.Coordinates, bool) {
	c, ok := m.coords[placeID]
	if !ok {
		return nil, false
	}
	return &c, true
}

func (m *mapBackend) SetCoords(placeID string, coords model.Coordinates, _ string) error {
	if m.err != nil {
		return m.err
	}
	m.coords[placeID] = coords
	return nil
}

func TestCoordinateCacheNeverRegresses(t *testing.T) {
	c := NewCoordinateCache(nil, nil)
	c.AddLocation("p1", &model.Coordinates{Lat: 1, Lng: 2}, "pubs")
	c.AddLocation("p1", nil, "bars")

	assert.Equal(t, &model.Coordinates{Lat: 1, Lng: 2}, c.GetLocation("p1"))
	assert.Equal(t, 1, c.Len())
}

func TestCoordinateCacheUnknownPlace(t *testing.T) {
	c := NewCoordinateCache(nil, nil)
	c.AddLocation("p1", nil, "pubs")

	assert.Nil(t, c.GetLocation("p1"))
	assert.Nil(t, c.GetLocation("p2"))
	assert.Equal(t, 1, c.Len())
}

func TestCoordinateCacheUpdatesKnownPlace(t *testing.T) {
	c := NewCoordinateCache(nil, nil)
	c.AddLocation("p1", &model.Coordinates{Lat: 1, Lng: 2}, "pubs")
	c.AddLocation("p1", &model.Coordinates{Lat: 3, Lng: 4}, "pubs")

	assert.Equal(t, &model.Coordinates{Lat: 3, Lng: 4}, c.GetLocation("p1"))
}

func TestCoordinateCacheBackend(t *testing.T) {
	backend := &mapBackend{coords: map[string]model.Coordinates{"remote": {Lat: 5, Lng: 6}}}
	c := NewCoordinateCache(backend, nil)

	assert.Equal(t, &model.Coordinates{Lat: 5, Lng: 6}, c.GetLocation("remote"))

	c.AddLocation("local", &model.Coordinates{Lat: 7, Lng: 8}, "pubs")
	assert.Equal(t, model.Coordinates{Lat: 7, Lng: 8}, backend.coords["local"])
}

func TestCoordinateCacheBackendErrorsAreReported(t *testing.T) {
	var reported error
	backend := &mapBackend{coords: map[string]model.Coordinates{}, err: errors.New("down")}
	c := NewCoordinateCache(backend, func(err error) { reported = err })

	c.AddLocation("p1", &model.Coordinates{Lat: 1, Lng: 1}, "pubs")
	assert.EqualError(t, reported, "down")
	assert.NotNil(t, c.GetLocation("p1"))
}
