package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/rendis/mapcrawl/internal/model"
)

// addRequestScript adds a request only if its unique key is new, and queues its key.
var addRequestScript = redis.NewScript(`
if redis.call('HSETNX', KEYS[1], ARGV[1], ARGV[2]) == 0 then
	return 0
end
if ARGV[3] == '1' then
	redis.call('LPUSH', KEYS[2], ARGV[1])
else
	redis.call('RPUSH', KEYS[2], ARGV[1])
end
return 1
`)

// RedisStore shares the request queue, exports and snapshots between crawler processes.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore creates a store on addr. Keys are namespaced with prefix.
func NewRedisStore(addr string, db int, prefix string) *RedisStore {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})
	if prefix == "" {
		prefix = "mapcrawl"
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) key(parts ...string) string {
	k := s.prefix
	for _, p := range parts {
		k += ":" + p
	}
	return k
}

// Ping checks the connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// AddRequest stores req in a hash keyed by its unique key and queues the key.
func (s *RedisStore) AddRequest(ctx context.Context, req model.Request, forefront bool) (bool, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return false, fmt.Errorf("encoding request %s: %w", req.UniqueKey, err)
	}
	front := "0"
	if forefront {
		front = "1"
	}
	added, err := addRequestScript.Run(ctx, s.client,
		[]string{s.key("requests"), s.key("queue")},
		req.UniqueKey, payload, front,
	).Int()
	if err != nil {
		return false, fmt.Errorf("adding request %s: %w", req.UniqueKey, err)
	}
	return added == 0, nil
}

// ListRequests returns the queued requests in queue order.
func (s *RedisStore) ListRequests(ctx context.Context) ([]model.Request, error) {
	keys, err := s.client.LRange(ctx, s.key("queue"), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("reading queue: %w", err)
	}
	if len(keys) == 0 {
		return nil, nil
	}
	values, err := s.client.HMGet(ctx, s.key("requests"), keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("reading requests: %w", err)
	}

	out := make([]model.Request, 0, len(values))
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		var r model.Request
		if err := json.Unmarshal([]byte(raw), &r); err != nil {
			return nil, fmt.Errorf("decoding request %s: %w", keys[i], err)
		}
		out = append(out, r)
	}
	return out, nil
}

// Push appends an export record to the exports stream.
func (s *RedisStore) Push(ctx context.Context, rec model.ExportRecord) error {
	return s.client.XAdd(ctx, &redis.XAddArgs{
		Stream: s.key("exports"),
		Values: map[string]interface{}{
			"url": rec.URL,
		},
	}).Err()
}

// ListExports reads the whole exports stream.
func (s *RedisStore) ListExports(ctx context.Context) ([]model.ExportRecord, error) {
	msgs, err := s.client.XRange(ctx, s.key("exports"), "-", "+").Result()
	if err != nil {
		return nil, fmt.Errorf("reading exports: %w", err)
	}
	out := make([]model.ExportRecord, 0, len(msgs))
	for _, m := range msgs {
		if u, ok := m.Values["url"].(string); ok {
			out = append(out, model.ExportRecord{URL: u})
		}
	}
	return out, nil
}

// PutSnapshot stores blob with its content type under key.
func (s *RedisStore) PutSnapshot(ctx context.Context, key string, blob []byte, contentType string) (string, error) {
	k := s.key("snapshot", key)
	if err := s.client.HSet(ctx, k, "contentType", contentType, "body", blob).Err(); err != nil {
		return "", fmt.Errorf("storing snapshot %s: %w", key, err)
	}
	return "redis://" + k, nil
}

// GetSnapshot returns a stored blob and its content type.
func (s *RedisStore) GetSnapshot(ctx context.Context, key string) ([]byte, string, error) {
	vals, err := s.client.HMGet(ctx, s.key("snapshot", key), "body", "contentType").Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, "", fmt.Errorf("reading snapshot %s: %w", key, err)
	}
	body, ok := vals[0].(string)
	if !ok {
		return nil, "", ErrNotFound
	}
	contentType, _ := vals[1].(string)
	return []byte(body), contentType, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
