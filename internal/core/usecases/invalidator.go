package usecases

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/samirrijal/chicrime/internal/core/domain"
	"github.com/samirrijal/chicrime/internal/core/ports"
)

// derivedPrefixes are the cache namespaces computed from stored crimes.
var derivedPrefixes = []string{"crimes:", "hotspots:", "analysis:"}

// Invalidator drops cached results once new crimes are ingested.
type Invalidator struct {
	purger ports.CachePurger
	logger *slog.Logger
}

// NewInvalidator creates a new Invalidator.
func NewInvalidator(purger ports.CachePurger, logger *slog.Logger) *Invalidator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Invalidator{purger: purger, logger: logger}
}

// OnIngest purges derived caches. Runs that inserted nothing are ignored.
func (i *Invalidator) OnIngest(ctx context.Context, run *domain.IngestRun) error {
	if run.Inserted == 0 {
		return nil
	}
	total := 0
	for _, prefix := range derivedPrefixes {
		n, err := i.purger.DeletePrefix(ctx, prefix)
		if err != nil {
			return fmt.Errorf("purge %s: %w", prefix, err)
		}
		total += n
	}
	i.logger.Info("cache invalidated after ingest",
		"source", run.Source, "inserted", run.Inserted, "keys", total)
	return nil
}
