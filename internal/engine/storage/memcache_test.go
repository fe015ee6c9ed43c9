package storage

import (
	"testing"

	"github.com/bradfitz/gomemcache/memcache"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/mapcrawl/internal/model"
)

// This test requires a running memcached instance
func TestMemcacheCoords(t *testing.T) {
	m := NewMemcacheCoords("localhost:11211", "mapcrawl-test", 0)

	_, err := m.client.Get("probe")
	if err != nil && err != memcache.ErrCacheMiss {
		t.Skip("Memcached is not available, skipping test")
	}

	id := uuid.NewString()
	_, ok := m.GetCoords(id)
	assert.False(t, ok)

	require.NoError(t, m.SetCoords(id, model.Coordinates{Lat: 50.08, Lng: 14.42}, "pubs"))
	c, ok := m.GetCoords(id)
	require.True(t, ok)
	assert.Equal(t, &model.Coordinates{Lat: 50.08, Lng: 14.42}, c)

	require.NoError(t, m.client.Delete(m.key(id)))
}
