package redisx

import (
	"context"

	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
)

type Client struct{ Rdb *redis.Client }

func New(addr string, password string, db int) *Client {
	rdb := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	return &Client{Rdb: rdb}
}

func (c *Client) Ping(ctx context.Context) error {
	return c.Rdb.Ping(ctx).Err()
}

func (c *Client) Close() error { return c.Rdb.Close() }

// Read fetches keys with one MGET; missing keys are absent from the result.
func (c *Client) Read(ctx context.Context, keys []string) (map[string]string, error) {
	vals, err := c.Rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, eris.Wrap(err, "redis: mget")
	}
	out := make(map[string]string, len(keys))
	for i, v := range vals {
		if s, ok := v.(string); ok {
			out[keys[i]] = s
		}
	}
	return out, nil
}

// Write sets every key with one MSET, which Redis applies atomically.
func (c *Client) Write(ctx context.Context, kv map[string]string) error {
	if len(kv) == 0 {
		return nil
	}
	if err := c.Rdb.MSet(ctx, kv).Err(); err != nil {
		return eris.Wrap(err, "redis: mset")
	}
	return nil
}

func (c *Client) Delete(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := c.Rdb.Del(ctx, keys...).Err(); err != nil {
		return eris.Wrap(err, "redis: del")
	}
	return nil
}
