package ports

import (
	"context"

	"github.com/samirrijal/chicrime/internal/core/domain"
)

// EventPublisher publishes domain events to a message broker.
type EventPublisher interface {
	PublishHotspots(ctx context.Context, report *domain.HotspotReport) error
	PublishExperiment(ctx context.Context, run *domain.ExperimentRun) error
	PublishIngest(ctx context.Context, run *domain.IngestRun) error
}

// EventSubscriber consumes domain events.
type EventSubscriber interface {
	SubscribeIngest(ctx context.Context, handler func(ctx context.Context, run *domain.IngestRun) error) error
}

// CacheService provides read-through caching.
type CacheService interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttlSeconds int) error
	Delete(ctx context.Context, key string) error
}

// CachePurger drops every cached key under a prefix.
type CachePurger interface {
	DeletePrefix(ctx context.Context, prefix string) (int, error)
}
