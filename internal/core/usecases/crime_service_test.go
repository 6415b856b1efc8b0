package usecases_test

import (
	"context"
	"testing"

	"github.com/samirrijal/chicrime/internal/core/domain"
	"github.com/samirrijal/chicrime/internal/core/usecases"
	"github.com/samirrijal/chicrime/internal/hotspot"
)

func TestCrimeService_ListClampsLimitAndCaches(t *testing.T) {
	var gotLimit int
	repo := &mockCrimeRepo{
		listFn: func(ctx context.Context, f domain.CrimeFilter) ([]domain.Crime, error) {
			gotLimit = f.Limit
			return []domain.Crime{{ID: 1, PrimaryType: "THEFT"}}, nil
		},
	}
	cache := newMockCache()
	svc := usecases.NewCrimeService(repo, cache)

	crimes, err := svc.List(context.Background(), domain.CrimeFilter{Limit: 1_000_000})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotLimit != usecases.MaxCrimeLimit {
		t.Errorf("expected limit %d, got %d", usecases.MaxCrimeLimit, gotLimit)
	}
	if len(crimes) != 1 {
		t.Fatalf("expected 1 crime, got %d", len(crimes))
	}

	if _, err := svc.List(context.Background(), domain.CrimeFilter{Limit: 1_000_000}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if repo.Calls() != 1 {
		t.Errorf("expected second call to be served from cache, repo called %d times", repo.Calls())
	}
}

func TestCrimeService_ListDefaultLimit(t *testing.T) {
	var gotLimit int
	repo := &mockCrimeRepo{
		listFn: func(ctx context.Context, f domain.CrimeFilter) ([]domain.Crime, error) {
			gotLimit = f.Limit
			return nil, nil
		},
	}
	svc := usecases.NewCrimeService(repo, nil)
	if _, err := svc.List(context.Background(), domain.CrimeFilter{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotLimit != usecases.DefaultCrimeLimit {
		t.Errorf("expected limit %d, got %d", usecases.DefaultCrimeLimit, gotLimit)
	}
}

func TestCrimeService_TypesPercentages(t *testing.T) {
	repo := &mockCrimeRepo{
		typesFn: func(ctx context.Context) ([]domain.TypeCount, error) {
			return []domain.TypeCount{
				{PrimaryType: "THEFT", Count: 2},
				{PrimaryType: "BATTERY", Count: 1},
			}, nil
		},
	}
	svc := usecases.NewCrimeService(repo, nil)
	counts, err := svc.Types(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if counts[0].Percentage != 66.67 {
		t.Errorf("expected 66.67, got %v", counts[0].Percentage)
	}
	if counts[1].Percentage != 33.33 {
		t.Errorf("expected 33.33, got %v", counts[1].Percentage)
	}
}

func TestCrimeService_GridHotspots(t *testing.T) {
	var ps hotspot.PointSet
	for i := 0; i < 7; i++ {
		ps = append(ps, hotspot.Incident{Location: hotspot.Point{Lat: 41.8811, Lon: -87.6302}})
	}
	for i := 0; i < 3; i++ {
		ps = append(ps, hotspot.Incident{Location: hotspot.Point{Lat: 41.9, Lon: -87.7}})
	}
	repo := &mockCrimeRepo{
		incidentsFn: func(ctx context.Context, f domain.CrimeFilter) (hotspot.PointSet, error) {
			if f.Start == nil {
				t.Error("expected a start date on the filter")
			}
			return ps, nil
		},
	}
	svc := usecases.NewCrimeService(repo, nil)
	cells, err := svc.GridHotspots(context.Background(), 30, 5, 50)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cells) != 1 {
		t.Fatalf("expected 1 cell, got %d", len(cells))
	}
	if cells[0].Count != 7 || cells[0].Lat != 41.881 || cells[0].Lon != -87.63 {
		t.Errorf("unexpected cell %+v", cells[0])
	}
}
