package valkey

import (
	"context"
	"fmt"
	"time"

	"github.com/valkey-io/valkey-go"
)

// Cache implements ports.CacheService using Valkey (Redis-compatible).
// Keys are namespaced so several deployments can share one instance.
type Cache struct {
	client    valkey.Client
	namespace string
}

// New creates a new Valkey cache client.
func New(addr, namespace string) (*Cache, error) {
	client, err := valkey.NewClient(valkey.ClientOption{
		InitAddress: []string{addr},
	})
	if err != nil {
		return nil, fmt.Errorf("valkey connect: %w", err)
	}
	return &Cache{client: client, namespace: namespace}, nil
}

func (c *Cache) key(k string) string {
	if c.namespace == "" {
		return k
	}
	return c.namespace + ":" + k
}

// Get retrieves a value by key.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, error) {
	return c.client.Do(ctx, c.client.B().Get().Key(c.key(key)).Build()).AsBytes()
}

// Set stores a value with a TTL in seconds.
func (c *Cache) Set(ctx context.Context, key string, value []byte, ttlSeconds int) error {
	cmd := c.client.Do(ctx,
		c.client.B().Set().Key(c.key(key)).Value(valkey.BinaryString(value)).Ex(time.Duration(ttlSeconds)*time.Second).Build(),
	)
	return cmd.Error()
}

// Delete removes a key.
func (c *Cache) Delete(ctx context.Context, key string) error {
	return c.client.Do(ctx, c.client.B().Del().Key(c.key(key)).Build()).Error()
}

// DeletePrefix removes every key starting with prefix and returns how many
// were deleted. Used to drop derived results after new crimes are loaded.
func (c *Cache) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	var cursor uint64
	deleted := 0
	for {
		entry, err := c.client.Do(ctx, c.client.B().Scan().Cursor(cursor).Match(c.key(prefix)+"*").Count(200).Build()).AsScanEntry()
		if err != nil {
			return deleted, fmt.Errorf("scan %s: %w", prefix, err)
		}
		if len(entry.Elements) > 0 {
			n, err := c.client.Do(ctx, c.client.B().Del().Key(entry.Elements...).Build()).AsInt64()
			if err != nil {
				return deleted, fmt.Errorf("delete %s: %w", prefix, err)
			}
			deleted += int(n)
		}
		cursor = entry.Cursor
		if cursor == 0 {
			return deleted, nil
		}
	}
}

// Ping checks connectivity.
func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Do(ctx, c.client.B().Ping().Build()).Error()
}

// IsMiss reports whether err means the key does not exist.
func IsMiss(err error) bool {
	return valkey.IsValkeyNil(err)
}

// Close releases the client.
func (c *Cache) Close() {
	c.client.Close()
}
