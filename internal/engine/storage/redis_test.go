package storage

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/mapcrawl/internal/model"
)

func newTestRedis(t *testing.T) *RedisStore {
	t.Helper()
	s := NewRedisStore("localhost:6379", 0, "mapcrawl-test-"+uuid.NewString())
	if err := s.Ping(context.Background()); err != nil {
		s.Close()
		t.Skip("Redis is not available, skipping test")
	}
	t.Cleanup(func() {
		ctx := context.Background()
		keys, _ := s.client.Keys(ctx, s.prefix+":*").Result()
		if len(keys) > 0 {
			s.client.Del(ctx, keys...)
		}
		s.Close()
	})
	return s
}

func TestRedisAddRequest(t *testing.T) {
	s := newTestRedis(t)
	ctx := context.Background()

	present, err := s.AddRequest(ctx, detailRequest("a", 1), false)
	require.NoError(t, err)
	assert.False(t, present)

	present, err = s.AddRequest(ctx, detailRequest("a", 2), true)
	require.NoError(t, err)
	assert.True(t, present)

	_, err = s.AddRequest(ctx, detailRequest("b", 3), true)
	require.NoError(t, err)

	reqs, err := s.ListRequests(ctx)
	require.NoError(t, err)
	require.Len(t, reqs, 2)
	assert.Equal(t, "b", reqs[0].UniqueKey)
	assert.Equal(t, 1, reqs[1].UserData.Rank)
}

func TestRedisExportsAndSnapshots(t *testing.T) {
	s := newTestRedis(t)
	ctx := context.Background()

	require.NoError(t, s.Push(ctx, model.ExportRecord{URL: "https://example.com/1"}))
	recs, err := s.ListExports(ctx)
	require.NoError(t, err)
	assert.Equal(t, []model.ExportRecord{{URL: "https://example.com/1"}}, recs)

	ref, err := s.PutSnapshot(ctx, "k1", []byte("body"), "text/plain")
	require.NoError(t, err)
	assert.Equal(t, "redis://"+s.prefix+":snapshot:k1", ref)

	blob, ct, err := s.GetSnapshot(ctx, "k1")
	require.NoError(t, err)
	assert.Equal(t, "body", string(blob))
	assert.Equal(t, "text/plain", ct)

	_, _, err = s.GetSnapshot(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}
