package http_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	stdhttp "net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	handler "github.com/samirrijal/chicrime/internal/adapters/http"
	"github.com/samirrijal/chicrime/internal/core/domain"
	"github.com/samirrijal/chicrime/internal/core/ports"
	"github.com/samirrijal/chicrime/internal/core/usecases"
	"github.com/samirrijal/chicrime/internal/experiment"
	"github.com/samirrijal/chicrime/internal/hotspot"
)

// ---- Mock repositories ----

type mockCrimeRepo struct {
	listFn      func(ctx context.Context, f domain.CrimeFilter) ([]domain.Crime, error)
	incidentsFn func(ctx context.Context, f domain.CrimeFilter) (hotspot.PointSet, error)
	typesFn     func(ctx context.Context) ([]domain.TypeCount, error)
	monthlyFn   func(ctx context.Context, months int) ([]domain.MonthlyCount, error)
	countFn     func(ctx context.Context) (int, error)
}

func (m *mockCrimeRepo) InsertBatch(ctx context.Context, crimes []domain.Crime) (int, error) {
	return len(crimes), nil
}
func (m *mockCrimeRepo) List(ctx context.Context, f domain.CrimeFilter) ([]domain.Crime, error) {
	if m.listFn != nil {
		return m.listFn(ctx, f)
	}
	return nil, nil
}
func (m *mockCrimeRepo) Incidents(ctx context.Context, f domain.CrimeFilter) (hotspot.PointSet, error) {
	if m.incidentsFn != nil {
		return m.incidentsFn(ctx, f)
	}
	return nil, nil
}
func (m *mockCrimeRepo) TypeCounts(ctx context.Context) ([]domain.TypeCount, error) {
	if m.typesFn != nil {
		return m.typesFn(ctx)
	}
	return nil, nil
}
func (m *mockCrimeRepo) MonthlyCounts(ctx context.Context, months int) ([]domain.MonthlyCount, error) {
	if m.monthlyFn != nil {
		return m.monthlyFn(ctx, months)
	}
	return nil, nil
}
func (m *mockCrimeRepo) DailyCounts(ctx context.Context, since time.Time, crimeType string) ([]domain.DailyCount, error) {
	return nil, nil
}
func (m *mockCrimeRepo) Count(ctx context.Context) (int, error) {
	if m.countFn != nil {
		return m.countFn(ctx)
	}
	return 0, nil
}

type mockExperimentRepo struct {
	mu   sync.Mutex
	runs []domain.ExperimentRun
}

func (m *mockExperimentRepo) SaveRun(ctx context.Context, run *domain.ExperimentRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs = append(m.runs, *run)
	return nil
}
func (m *mockExperimentRepo) ListRuns(ctx context.Context, offset, limit int) ([]domain.ExperimentRun, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if offset >= len(m.runs) {
		return nil, len(m.runs), nil
	}
	end := min(offset+limit, len(m.runs))
	return m.runs[offset:end], len(m.runs), nil
}
func (m *mockExperimentRepo) GetRun(ctx context.Context, id string) (*domain.ExperimentRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.runs {
		if m.runs[i].ID == id {
			r := m.runs[i]
			return &r, nil
		}
	}
	return nil, ports.ErrNotFound
}

type failingPinger struct{ err error }

func (p failingPinger) Ping(ctx context.Context) error { return p.err }

// ---- Test helpers ----

func setupApp(deps *handler.Dependencies) *fiber.App {
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	handler.SetupRoutes(app, deps)
	return app
}

func makeDeps(opts ...func(*handler.Dependencies)) *handler.Dependencies {
	crimes := &mockCrimeRepo{}
	d := &handler.Dependencies{
		Crimes:      usecases.NewCrimeService(crimes, nil),
		Hotspots:    usecases.NewHotspotService(crimes, nil, nil, usecases.HotspotOptions{}),
		Analysis:    usecases.NewAnalysisService(crimes, nil),
		Experiments: usecases.NewExperimentService(crimes, &mockExperimentRepo{}, nil, 1, nil),
		Version:     "test",
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// withCrimes rebuilds every service over repo.
func withCrimes(repo *mockCrimeRepo) func(*handler.Dependencies) {
	return func(d *handler.Dependencies) {
		d.Crimes = usecases.NewCrimeService(repo, nil)
		d.Hotspots = usecases.NewHotspotService(repo, nil, nil, usecases.HotspotOptions{})
		d.Analysis = usecases.NewAnalysisService(repo, nil)
	}
}

func withRuns(runs *mockExperimentRepo) func(*handler.Dependencies) {
	return func(d *handler.Dependencies) {
		d.Experiments = usecases.NewExperimentService(&mockCrimeRepo{}, runs, nil, 1, nil)
	}
}

// expectError checks the status and envelope code of an error response.
func expectError(t *testing.T, resp *stdhttp.Response, status int, code string) {
	t.Helper()
	if resp.StatusCode != status {
		t.Fatalf("expected %d, got %d", status, resp.StatusCode)
	}
	var apiErr handler.APIError
	if err := json.NewDecoder(resp.Body).Decode(&apiErr); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if apiErr.Code != code {
		t.Errorf("expected code %s, got %s", code, apiErr.Code)
	}
}

func readBody(t *testing.T, body io.Reader) []byte {
	t.Helper()
	b, err := io.ReadAll(body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return b
}

func loopIncidents(n int) hotspot.PointSet {
	rng := rand.New(rand.NewSource(11))
	ps := make(hotspot.PointSet, n)
	for i := range ps {
		ps[i] = hotspot.Incident{
			Location: hotspot.Point{
				Lat: 41.88 + rng.NormFloat64()*0.004,
				Lon: -87.63 + rng.NormFloat64()*0.004,
			},
			Category:   "THEFT",
			OccurredAt: time.Date(2024, 6, 1, i%24, 0, 0, 0, time.UTC),
		}
	}
	return ps
}

// ---- Health ----

func TestHealth_ReportsTotalCrimes(t *testing.T) {
	deps := makeDeps(withCrimes(&mockCrimeRepo{
		countFn: func(ctx context.Context) (int, error) { return 1234, nil },
	}))
	app := setupApp(deps)

	resp, err := app.Test(httptest.NewRequest("GET", "/v1/health", nil), -1)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var body struct {
		Status      string `json:"status"`
		TotalCrimes int    `json:"total_crimes"`
		Version     string `json:"version"`
	}
	json.NewDecoder(resp.Body).Decode(&body)
	if body.Status != "healthy" || body.TotalCrimes != 1234 || body.Version != "test" {
		t.Errorf("unexpected health body: %+v", body)
	}
}

func TestReady_DatabaseDown(t *testing.T) {
	deps := makeDeps(func(d *handler.Dependencies) {
		d.DB = failingPinger{err: errors.New("connection refused")}
	})
	app := setupApp(deps)

	resp, _ := app.Test(httptest.NewRequest("GET", "/v1/ready", nil), -1)
	if resp.StatusCode != 503 {
		t.Fatalf("expected 503, got %d", resp.StatusCode)
	}
}

func TestReady_AllUp(t *testing.T) {
	deps := makeDeps(func(d *handler.Dependencies) {
		d.DB = failingPinger{}
		d.Cache = failingPinger{}
	})
	app := setupApp(deps)

	resp, _ := app.Test(httptest.NewRequest("GET", "/v1/ready", nil), -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}

// ---- Crimes ----

func TestListCrimes_GeoJSON(t *testing.T) {
	var got domain.CrimeFilter
	deps := makeDeps(withCrimes(&mockCrimeRepo{
		listFn: func(ctx context.Context, f domain.CrimeFilter) ([]domain.Crime, error) {
			got = f
			return []domain.Crime{
				{ID: 1, PrimaryType: "THEFT", Location: domain.GeoPoint{Lat: 41.88, Lon: -87.63}},
				{ID: 2, PrimaryType: "THEFT", Location: domain.GeoPoint{Lat: 41.89, Lon: -87.62}},
			}, nil
		},
	}))
	app := setupApp(deps)

	req := httptest.NewRequest("GET", "/v1/crimes?crime_type=theft&start_date=2024-01-01&limit=10", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var fc struct {
		Type     string            `json:"type"`
		Features []json.RawMessage `json:"features"`
		Metadata struct {
			Count int `json:"count"`
		} `json:"metadata"`
	}
	json.NewDecoder(resp.Body).Decode(&fc)
	if fc.Type != "FeatureCollection" || len(fc.Features) != 2 || fc.Metadata.Count != 2 {
		t.Errorf("unexpected collection: type=%s features=%d count=%d", fc.Type, len(fc.Features), fc.Metadata.Count)
	}
	if got.CrimeType != "THEFT" {
		t.Errorf("expected crime type uppercased, got %q", got.CrimeType)
	}
	if got.Limit != 10 {
		t.Errorf("expected limit 10, got %d", got.Limit)
	}
	if got.Start == nil || got.Start.Year() != 2024 {
		t.Errorf("expected start date 2024-01-01, got %v", got.Start)
	}
}

func TestListCrimes_BadParams(t *testing.T) {
	app := setupApp(makeDeps())

	cases := []string{
		"/v1/crimes?start_date=yesterday",
		"/v1/crimes?start_date=2024-02-01&end_date=2024-01-01",
		"/v1/crimes?bbox=1,2,3",
		"/v1/crimes?bbox=-87.6,41.9,-87.7,41.8",
		"/v1/crimes?limit=0",
		"/v1/crimes?limit=abc",
	}
	for _, path := range cases {
		resp, _ := app.Test(httptest.NewRequest("GET", path, nil), -1)
		if resp.StatusCode != 400 {
			t.Errorf("%s: expected 400, got %d", path, resp.StatusCode)
			continue
		}
		var apiErr handler.APIError
		json.NewDecoder(resp.Body).Decode(&apiErr)
		if apiErr.Code != "bad_request" {
			t.Errorf("%s: expected bad_request, got %s", path, apiErr.Code)
		}
	}
}

func TestCrimeTypes_Percentages(t *testing.T) {
	deps := makeDeps(withCrimes(&mockCrimeRepo{
		typesFn: func(ctx context.Context) ([]domain.TypeCount, error) {
			return []domain.TypeCount{{PrimaryType: "THEFT", Count: 3}, {PrimaryType: "BATTERY", Count: 1}}, nil
		},
	}))
	app := setupApp(deps)

	resp, _ := app.Test(httptest.NewRequest("GET", "/v1/crimes/types", nil), -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var body struct {
		CrimeTypes []domain.TypeCount `json:"crime_types"`
		TotalTypes int                `json:"total_types"`
	}
	json.NewDecoder(resp.Body).Decode(&body)
	if body.TotalTypes != 2 || body.CrimeTypes[0].Percentage != 75 {
		t.Errorf("unexpected body: %+v", body)
	}
}

// ---- Hotspots ----

func TestHotspots_FeatureCollection(t *testing.T) {
	deps := makeDeps(withCrimes(&mockCrimeRepo{
		incidentsFn: func(ctx context.Context, f domain.CrimeFilter) (hotspot.PointSet, error) {
			return loopIncidents(300), nil
		},
	}))
	app := setupApp(deps)

	req := httptest.NewRequest("GET", "/v1/hotspots?bbox=-87.66,41.86,-87.60,41.90&grid_size=20", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, readBody(t, resp.Body))
	}
	var fc struct {
		Features []struct {
			Geometry struct {
				Type string `json:"type"`
			} `json:"geometry"`
			Properties map[string]any `json:"properties"`
		} `json:"features"`
		Metadata struct {
			RunID         string `json:"run_id"`
			IncidentCount int    `json:"incident_count"`
			HotspotCount  int    `json:"hotspot_count"`
		} `json:"metadata"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&fc); err != nil {
		t.Fatal(err)
	}
	if fc.Metadata.RunID == "" {
		t.Error("expected a run id in metadata")
	}
	if fc.Metadata.IncidentCount != 300 {
		t.Errorf("expected 300 incidents, got %d", fc.Metadata.IncidentCount)
	}
	if len(fc.Features) == 0 || len(fc.Features) != fc.Metadata.HotspotCount {
		t.Fatalf("expected hotspot features matching metadata, got %d vs %d", len(fc.Features), fc.Metadata.HotspotCount)
	}
	f := fc.Features[0]
	if f.Geometry.Type != "Polygon" {
		t.Errorf("expected Polygon geometry, got %s", f.Geometry.Type)
	}
	if _, ok := f.Properties["crime_count"]; !ok {
		t.Error("expected analysis properties on feature")
	}
}

func TestHotspots_NoIncidentsReturnsEmptyCollection(t *testing.T) {
	app := setupApp(makeDeps())

	resp, _ := app.Test(httptest.NewRequest("GET", "/v1/hotspots", nil), -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var fc struct {
		Type     string            `json:"type"`
		Features []json.RawMessage `json:"features"`
	}
	json.NewDecoder(resp.Body).Decode(&fc)
	if fc.Type != "FeatureCollection" || len(fc.Features) != 0 {
		t.Errorf("expected empty FeatureCollection, got %s with %d features", fc.Type, len(fc.Features))
	}
}

func TestHotspots_InvalidParameters(t *testing.T) {
	app := setupApp(makeDeps())

	for _, q := range []string{
		"bandwidth=0",
		"bandwidth=-0.1",
		"threshold=150",
		"grid_size=1",
		"grid_size=500",
		"min_points=0",
		"cluster_eps=-1",
		"cluster_eps=1e9",
		"cluster_eps=NaN",
		"bandwidth=NaN",
		"bandwidth=wide",
	} {
		resp, _ := app.Test(httptest.NewRequest("GET", "/v1/hotspots?"+q, nil), -1)
		if resp.StatusCode != 400 {
			t.Errorf("%s: expected 400, got %d", q, resp.StatusCode)
		}
	}
}

func TestHotspotDensity_NoData(t *testing.T) {
	app := setupApp(makeDeps())

	resp, _ := app.Test(httptest.NewRequest("GET", "/v1/hotspots/density", nil), -1)
	expectError(t, resp, 422, "no_data")
}

func TestHotspotHeatmap_PNG(t *testing.T) {
	deps := makeDeps(withCrimes(&mockCrimeRepo{
		incidentsFn: func(ctx context.Context, f domain.CrimeFilter) (hotspot.PointSet, error) {
			return loopIncidents(200), nil
		},
	}))
	app := setupApp(deps)

	req := httptest.NewRequest("GET", "/v1/hotspots/heatmap.png?grid_size=20&size=200", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "image/png" {
		t.Errorf("expected image/png, got %s", ct)
	}
	if body := readBody(t, resp.Body); !strings.HasPrefix(string(body), "\x89PNG") {
		t.Error("expected PNG signature")
	}
}

// ---- Analysis ----

func TestForecast_InsufficientHistory(t *testing.T) {
	deps := makeDeps(withCrimes(&mockCrimeRepo{
		monthlyFn: func(ctx context.Context, months int) ([]domain.MonthlyCount, error) {
			return []domain.MonthlyCount{{Year: 2024, Month: 1, Count: 10}}, nil
		},
	}))
	app := setupApp(deps)

	resp, _ := app.Test(httptest.NewRequest("GET", "/v1/forecast", nil), -1)
	expectError(t, resp, 422, "insufficient_history")
}

func TestForecast_Projection(t *testing.T) {
	deps := makeDeps(withCrimes(&mockCrimeRepo{
		monthlyFn: func(ctx context.Context, months int) ([]domain.MonthlyCount, error) {
			var out []domain.MonthlyCount
			for m := 1; m <= 12; m++ {
				out = append(out, domain.MonthlyCount{Year: 2024, Month: m, Count: 100 + m*5})
			}
			return out, nil
		},
	}))
	app := setupApp(deps)

	resp, _ := app.Test(httptest.NewRequest("GET", "/v1/forecast?periods=3", nil), -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var fc struct {
		Forecasts []struct {
			Date string `json:"date"`
		} `json:"forecasts"`
	}
	json.NewDecoder(resp.Body).Decode(&fc)
	if len(fc.Forecasts) != 3 {
		t.Fatalf("expected 3 forecast points, got %d", len(fc.Forecasts))
	}
	if fc.Forecasts[0].Date != "2025-01" {
		t.Errorf("expected first forecast 2025-01, got %s", fc.Forecasts[0].Date)
	}
}

func TestForecast_BadPeriods(t *testing.T) {
	app := setupApp(makeDeps())

	resp, _ := app.Test(httptest.NewRequest("GET", "/v1/forecast?periods=100", nil), -1)
	if resp.StatusCode != 400 {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

// ---- Experiments ----

func seededRuns(n int) *mockExperimentRepo {
	repo := &mockExperimentRepo{}
	for i := 0; i < n; i++ {
		repo.runs = append(repo.runs, domain.ExperimentRun{
			ID:        fmt.Sprintf("run-%d", i),
			Parameter: string(experiment.Bandwidth),
			Results: []experiment.Result{
				{Value: 0.005, HotspotCount: 3, Efficiency: 2.1, CoveragePercentage: 10},
				{Value: 0.01, HotspotCount: 2, Efficiency: 3.4, CoveragePercentage: 12},
			},
			BestValue: 0.01,
			Weights:   experiment.DefaultWeights(),
		})
	}
	return repo
}

func TestListExperiments_Pagination(t *testing.T) {
	app := setupApp(makeDeps(withRuns(seededRuns(5))))

	resp, _ := app.Test(httptest.NewRequest("GET", "/v1/experiments?offset=2&limit=2", nil), -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var result struct {
		Data       []domain.ExperimentRun `json:"data"`
		Pagination handler.Pagination     `json:"pagination"`
	}
	json.NewDecoder(resp.Body).Decode(&result)
	if result.Pagination.Total != 5 || result.Pagination.Offset != 2 || len(result.Data) != 2 {
		t.Errorf("unexpected page: %+v with %d runs", result.Pagination, len(result.Data))
	}
	link := resp.Header.Get("Link")
	if !strings.Contains(link, `rel="next"`) || !strings.Contains(link, `rel="prev"`) {
		t.Errorf("expected prev and next links, got %s", link)
	}
}

func TestGetExperiment_NotFound(t *testing.T) {
	app := setupApp(makeDeps(withRuns(seededRuns(1))))

	resp, _ := app.Test(httptest.NewRequest("GET", "/v1/experiments/missing", nil), -1)
	expectError(t, resp, 404, "not_found")
}

func TestGetExperiment_Success(t *testing.T) {
	app := setupApp(makeDeps(withRuns(seededRuns(2))))

	resp, _ := app.Test(httptest.NewRequest("GET", "/v1/experiments/run-1", nil), -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var run domain.ExperimentRun
	json.NewDecoder(resp.Body).Decode(&run)
	if run.ID != "run-1" || run.BestValue != 0.01 {
		t.Errorf("unexpected run: %+v", run)
	}
}

func TestExperimentChart_HTML(t *testing.T) {
	app := setupApp(makeDeps(withRuns(seededRuns(1))))

	resp, _ := app.Test(httptest.NewRequest("GET", "/v1/experiments/run-0/chart", nil), -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("expected text/html, got %s", ct)
	}
}

func TestRunExperiment_Validation(t *testing.T) {
	app := setupApp(makeDeps())

	for _, body := range []string{
		`{"parameter":"bandwidth","values":[]}`,
		`{"parameter":"colour","values":[1]}`,
		`not json`,
	} {
		req := httptest.NewRequest("POST", "/v1/experiments", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		resp, _ := app.Test(req, -1)
		if resp.StatusCode != 400 {
			t.Errorf("%s: expected 400, got %d", body, resp.StatusCode)
		}
	}
}

func TestRunExperiment_RejectsOutOfRangeConfigs(t *testing.T) {
	app := setupApp(makeDeps())

	for _, body := range []string{
		`{"parameter":"grid_resolution","values":[10,1000000000]}`,
		`{"parameter":"cluster_eps","values":[0.01,1e9]}`,
		`{"parameter":"min_points","values":[0]}`,
		`{"values":[2]}`,
		`{"parameter":"bandwidth","values":[0.01],"base":{"bandwidth":0.01,"threshold_percentile":95,"grid_resolution":1000000000,"min_points":3}}`,
		`{"parameter":"threshold_percentile","values":[90],"base":{"bandwidth":0.01,"threshold_percentile":95,"grid_resolution":50,"min_points":3,"cluster_eps":1e9}}`,
	} {
		req := httptest.NewRequest("POST", "/v1/experiments", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		resp, _ := app.Test(req, -1)
		expectError(t, resp, 400, "bad_request")
	}
}

func TestRunExperiment_NoViableConfiguration(t *testing.T) {
	app := setupApp(makeDeps())

	req := httptest.NewRequest("POST", "/v1/experiments", strings.NewReader(`{"parameter":"bandwidth","values":[0.01,0.02]}`))
	req.Header.Set("Content-Type", "application/json")
	resp, _ := app.Test(req, -1)
	expectError(t, resp, 422, "no_viable_configuration")
}

// ---- Legacy, GraphQL and middleware ----

func TestLegacyTypes_DeprecatedWithSuccessFlag(t *testing.T) {
	deps := makeDeps(withCrimes(&mockCrimeRepo{
		typesFn: func(ctx context.Context) ([]domain.TypeCount, error) {
			return []domain.TypeCount{{PrimaryType: "THEFT", Count: 1}}, nil
		},
	}))
	app := setupApp(deps)

	resp, _ := app.Test(httptest.NewRequest("GET", "/api/crimes/types", nil), -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if resp.Header.Get("Deprecation") != "true" {
		t.Error("expected Deprecation header")
	}
	if link := resp.Header.Get("Link"); !strings.Contains(link, "/v1/crimes/types") {
		t.Errorf("expected successor link, got %s", link)
	}
	var body struct {
		Success    bool `json:"success"`
		TotalTypes int  `json:"total_types"`
	}
	json.NewDecoder(resp.Body).Decode(&body)
	if !body.Success || body.TotalTypes != 1 {
		t.Errorf("unexpected legacy body: %+v", body)
	}
}

func TestGraphQL_CrimeTypes(t *testing.T) {
	deps := makeDeps(withCrimes(&mockCrimeRepo{
		typesFn: func(ctx context.Context) ([]domain.TypeCount, error) {
			return []domain.TypeCount{{PrimaryType: "BATTERY", Count: 4}}, nil
		},
	}))
	app := setupApp(deps)

	req := httptest.NewRequest("POST", "/graphql", strings.NewReader(`{"query":"{ crimeTypes { primary_type count percentage } }"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var result struct {
		Data struct {
			CrimeTypes []domain.TypeCount `json:"crimeTypes"`
		} `json:"data"`
		Errors []any `json:"errors"`
	}
	json.NewDecoder(resp.Body).Decode(&result)
	if len(result.Errors) > 0 {
		t.Fatalf("unexpected errors: %v", result.Errors)
	}
	if len(result.Data.CrimeTypes) != 1 || result.Data.CrimeTypes[0].Percentage != 100 {
		t.Errorf("unexpected data: %+v", result.Data.CrimeTypes)
	}
}

func TestGraphQL_ForecastPeriodsBounded(t *testing.T) {
	var called bool
	deps := makeDeps(withCrimes(&mockCrimeRepo{
		monthlyFn: func(ctx context.Context, months int) ([]domain.MonthlyCount, error) {
			called = true
			return []domain.MonthlyCount{{Year: 2024, Month: 1, Count: 10}, {Year: 2024, Month: 2, Count: 12}}, nil
		},
	}))
	app := setupApp(deps)

	for _, periods := range []string{"0", "25", "1000000000"} {
		query := `{"query":"{ forecast(periods: ` + periods + `) { mae } }"}`
		req := httptest.NewRequest("POST", "/graphql", strings.NewReader(query))
		req.Header.Set("Content-Type", "application/json")
		resp, _ := app.Test(req, -1)
		var result struct {
			Errors []any `json:"errors"`
		}
		json.NewDecoder(resp.Body).Decode(&result)
		if len(result.Errors) == 0 {
			t.Errorf("periods %s: expected an error", periods)
		}
	}
	if called {
		t.Error("out of range periods must not reach the repository")
	}
}

func TestETag_NotModified(t *testing.T) {
	app := setupApp(makeDeps())

	resp, _ := app.Test(httptest.NewRequest("GET", "/v1/stats/monthly", nil), -1)
	etag := resp.Header.Get("ETag")
	if etag == "" {
		t.Fatal("expected an ETag")
	}
	req := httptest.NewRequest("GET", "/v1/stats/monthly", nil)
	req.Header.Set("If-None-Match", etag)
	resp, _ = app.Test(req, -1)
	if resp.StatusCode != 304 {
		t.Fatalf("expected 304, got %d", resp.StatusCode)
	}
}

func TestCachingHeaders(t *testing.T) {
	app := setupApp(makeDeps())

	resp, _ := app.Test(httptest.NewRequest("GET", "/v1/crimes/types", nil), -1)
	if cc := resp.Header.Get("Cache-Control"); cc != "public, max-age=3600" {
		t.Errorf("expected hour-long caching for types, got %q", cc)
	}
	resp, _ = app.Test(httptest.NewRequest("GET", "/v1/health", nil), -1)
	if cc := resp.Header.Get("Cache-Control"); cc != "public, max-age=10" {
		t.Errorf("expected short caching for health, got %q", cc)
	}
}
