package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	natsadapter "github.com/samirrijal/chicrime/internal/adapters/nats"
	"github.com/samirrijal/chicrime/internal/adapters/store"
	"github.com/samirrijal/chicrime/internal/core/domain"
	"github.com/samirrijal/chicrime/internal/core/ports"
	"github.com/samirrijal/chicrime/internal/ingest"
	"github.com/samirrijal/chicrime/internal/pkg/config"
	"github.com/samirrijal/chicrime/internal/pkg/logging"
	"github.com/samirrijal/chicrime/internal/pkg/metrics"
)

func main() {
	file := flag.String("file", "", "local CSV export; empty downloads from the portal")
	url := flag.String("url", ingest.PortalURL, "portal CSV endpoint")
	limit := flag.Int("limit", 50000, "records to download")
	batch := flag.Int("batch", 1000, "rows per insert")
	flag.Parse()

	cfg, err := config.Load("chicrime-ingestor")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Format)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := store.Open(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	src, source, err := open(ctx, *file, *url, *limit)
	if err != nil {
		log.Fatalf("open source: %v", err)
	}
	defer src.Close()

	slog.Info("ingesting crimes", "source", source, "driver", db.Driver())
	records, err := ingest.ReadCSV(src)
	if err != nil {
		log.Fatalf("read csv: %v", err)
	}

	crimes, stats := ingest.NewCleaner().CleanAll(records)
	for reason, n := range stats.Dropped {
		metrics.CrimesDropped.WithLabelValues(reason).Add(float64(n))
	}
	slog.Info("records cleaned", "read", stats.Read, "kept", stats.Kept, "dropped", stats.Dropped)

	// SQLite allows a single writer.
	workers := 4
	if db.Driver() == config.DriverSQLite {
		workers = 1
	}
	inserted, err := insertBatches(ctx, db.Crimes, crimes, *batch, workers)
	metrics.CrimesIngested.Add(float64(inserted))
	if err != nil {
		log.Fatalf("insert crimes: %v", err)
	}

	run := &domain.IngestRun{
		Source:     source,
		Read:       stats.Read,
		Kept:       stats.Kept,
		Inserted:   inserted,
		Dropped:    stats.Dropped,
		FinishedAt: time.Now().UTC(),
	}
	announce(ctx, cfg.NATS.URL, run)
	slog.Info("ingestion complete", "inserted", inserted)
}

func open(ctx context.Context, file, url string, limit int) (io.ReadCloser, string, error) {
	if file != "" {
		f, err := os.Open(file)
		if err != nil {
			return nil, "", err
		}
		return f, file, nil
	}
	client := &http.Client{Timeout: 5 * time.Minute}
	body, err := ingest.Fetch(ctx, client, url, limit)
	if err != nil {
		return nil, "", err
	}
	return body, url, nil
}

// insertBatches writes crimes in chunks of size and returns the number of
// rows the store accepted.
func insertBatches(ctx context.Context, repo ports.CrimeRepository, crimes []domain.Crime, size, workers int) (int, error) {
	if size <= 0 {
		size = 1000
	}
	chunks := (len(crimes) + size - 1) / size
	counts := make([]int, chunks)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := 0; i < chunks; i++ {
		lo, hi := i*size, min((i+1)*size, len(crimes))
		g.Go(func() error {
			n, err := repo.InsertBatch(ctx, crimes[lo:hi])
			if err != nil {
				return fmt.Errorf("batch %d: %w", i, err)
			}
			counts[i] = n
			slog.Debug("batch inserted", "batch", i, "rows", n)
			return nil
		})
	}
	err := g.Wait()

	total := 0
	for _, n := range counts {
		total += n
	}
	return total, err
}

// announce publishes the ingest summary so API instances drop stale cache
// entries. A missing broker only costs freshness.
func announce(ctx context.Context, natsURL string, run *domain.IngestRun) {
	pub, err := natsadapter.NewPublisher(natsURL)
	if err != nil {
		slog.Warn("nats unavailable, ingest event not published", "error", err)
		return
	}
	defer pub.Close()
	if err := pub.PublishIngest(ctx, run); err != nil {
		slog.Warn("publish ingest event failed", "error", err)
	}
}
