package usecases

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/samirrijal/chicrime/internal/core/ports"
	"github.com/samirrijal/chicrime/internal/pkg/metrics"
)

// cacheKey derives a stable key from the JSON encoding of params.
func cacheKey(prefix string, params any) (string, error) {
	data, err := json.Marshal(params)
	if err != nil {
		return "", fmt.Errorf("cache key: %w", err)
	}
	sum := sha256.Sum256(data)
	return prefix + "#" + hex.EncodeToString(sum[:8]), nil
}

func readCache(ctx context.Context, cache ports.CacheService, key string, dst any) bool {
	if cache == nil {
		return false
	}
	data, err := cache.Get(ctx, key)
	if err != nil {
		metrics.CacheMisses.WithLabelValues(cacheOp(key)).Inc()
		return false
	}
	if err := json.Unmarshal(data, dst); err != nil {
		metrics.CacheMisses.WithLabelValues(cacheOp(key)).Inc()
		return false
	}
	metrics.CacheHits.WithLabelValues(cacheOp(key)).Inc()
	return true
}

func writeCache(ctx context.Context, cache ports.CacheService, key string, v any, ttlSeconds int) {
	if cache == nil {
		return
	}
	if data, err := json.Marshal(v); err == nil {
		_ = cache.Set(ctx, key, data, ttlSeconds)
	}
}

// cacheOp is the key prefix before the parameter hash, used as a metric label.
func cacheOp(key string) string {
	for i := len(key) - 1; i >= 0; i-- {
		if key[i] == '#' {
			return key[:i]
		}
	}
	return key
}

func clampLimit(limit, def, max int) int {
	if limit <= 0 {
		return def
	}
	if limit > max {
		return max
	}
	return limit
}
