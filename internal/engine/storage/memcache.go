package storage

import (
	"encoding/json"
	"time"

	"github.com/bradfitz/gomemcache/memcache"

	"github.com/rendis/mapcrawl/internal/model"
)

type cachedCoords struct {
	Lat          float64 `json:"lat"`
	Lng          float64 `json:"lng"`
	SearchString string  `json:"searchString,omitempty"`
}

// MemcacheCoords shares place coordinates between crawler processes.
type MemcacheCoords struct {
	client     *memcache.Client
	prefix     string
	expiration time.Duration
}

// NewMemcacheCoords creates a coordinate backend on serverAddr. A zero expiration keeps entries until evicted.
func NewMemcacheCoords(serverAddr, prefix string, expiration time.Duration) *MemcacheCoords {
	if prefix == "" {
		prefix = "mapcrawl"
	}
	return &MemcacheCoords{
		client:     memcache.New(serverAddr),
		prefix:     prefix,
		expiration: expiration,
	}
}

func (m *MemcacheCoords) key(placeID string) string {
	return m.prefix + ":coords:" + placeID
}

// GetCoords implements crawlstate.CoordBackend. Misses and errors both report false.
func (m *MemcacheCoords) GetCoords(placeID string) (*model.Coordinates, bool) {
	item, err := m.client.Get(m.key(placeID))
	if err != nil {
		return nil, false
	}
	var c cachedCoords
	if err := json.Unmarshal(item.Value, &c); err != nil {
		return nil, false
	}
	return &model.Coordinates{Lat: c.Lat, Lng: c.Lng}, true
}

// SetCoords implements crawlstate.CoordBackend.
func (m *MemcacheCoords) SetCoords(placeID string, coords model.Coordinates, searchString string) error {
	value, err := json.Marshal(cachedCoords{Lat: coords.Lat, Lng: coords.Lng, SearchString: searchString})
	if err != nil {
		return err
	}
	return m.client.Set(&memcache.Item{
		Key:        m.key(placeID),
		Value:      value,
		Expiration: int32(m.expiration.Seconds()),
	})
}
