package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MeKo-Tech/congestionmap/internal/classify"
	"github.com/MeKo-Tech/congestionmap/internal/datasource"
	"github.com/MeKo-Tech/congestionmap/internal/projection"
	"github.com/MeKo-Tech/congestionmap/internal/types"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Helper: check if integration tests are enabled
func requireIntegration(t *testing.T) {
	if os.Getenv("CONGESTIONMAP_INTEGRATION") != "1" {
		t.Skip("Skipping integration test (set CONGESTIONMAP_INTEGRATION=1 to run)")
	}
}

var pune = Request{Lat: 18.5204, Lng: 73.8567, Radius: 600}

type element struct {
	Type     string            `json:"type"`
	ID       int64             `json:"id"`
	Tags     map[string]string `json:"tags"`
	Geometry []latLon          `json:"geometry"`
}

type latLon struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// puneFixture builds an Overpass response whose ways are laid out in
// meters around the query point.
func puneFixture(t *testing.T) []byte {
	t.Helper()
	tr, err := projection.New(pune.Lat, pune.Lng)
	require.NoError(t, err)
	c := tr.Forward(pune.Center())

	geom := func(offsets ...orb.Point) []latLon {
		out := make([]latLon, 0, len(offsets))
		for _, o := range offsets {
			g := tr.Inverse(orb.Point{c[0] + o[0], c[1] + o[1]})
			out = append(out, latLon{Lat: g.Lat, Lon: g.Lon})
		}
		return out
	}

	body, err := json.Marshal(map[string]any{
		"version":   0.6,
		"generator": "Overpass API 0.7.62",
		"osm3s":     map[string]string{"timestamp_osm_base": "2025-11-02T10:15:00Z"},
		"elements": []element{
			{
				Type: "way", ID: 1001,
				Tags:     map[string]string{"building": "house"},
				Geometry: geom(orb.Point{50, 40}, orb.Point{70, 40}, orb.Point{70, 50}, orb.Point{50, 50}, orb.Point{50, 40}),
			},
			{
				Type: "way", ID: 2001,
				Tags:     map[string]string{"highway": "residential"},
				Geometry: geom(orb.Point{-150, -20}, orb.Point{-50, -20}),
			},
			{
				Type: "way", ID: 3001,
				Tags:     map[string]string{"building": "yes"},
				Geometry: geom(orb.Point{0, 0}),
			},
		},
	})
	require.NoError(t, err)
	return body
}

func newFixtureServer(t *testing.T, body []byte) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(body)
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func overpassConfig(endpoints ...string) datasource.Config {
	cfg := datasource.DefaultConfig()
	cfg.Endpoints = endpoints
	cfg.TransientWait = time.Millisecond
	cfg.RetryWait = time.Millisecond
	cfg.Timeout = 5 * time.Second
	return cfg
}

type countingDataSource struct {
	calls atomic.Int32
}

func (ds *countingDataSource) Fetch(context.Context, types.BoundingBox) (*types.RawDataset, error) {
	ds.calls.Add(1)
	return &types.RawDataset{FetchedAt: time.Now(), Endpoint: "memory"}, nil
}

func TestAnalyze_PuneScenario(t *testing.T) {
	srv, hits := newFixtureServer(t, puneFixture(t))
	a := NewAnalyzer(datasource.NewOverpassDataSource(overpassConfig(srv.URL)), Config{})

	res, err := a.Analyze(context.Background(), pune)
	require.NoError(t, err)
	assert.Equal(t, int32(1), hits.Load())

	m := res.Metrics
	disk := math.Pi * 600 * 600
	assert.InDelta(t, 1130973.355, disk, 0.001)
	assert.InDelta(t, disk, m.AnalysisArea, 1e-6)
	assert.InDelta(t, 200.0, m.TotalBuildingArea, 0.01)
	assert.InDelta(t, 700.0, m.TotalRoadArea, 0.1)
	assert.Zero(t, m.WaterArea)
	assert.InDelta(t, 1130073.355, m.TrueOpenSpace, 0.2)
	assert.Equal(t, 1, m.DetectedBuildings)
	assert.InDelta(t, 200.0, m.BuildingTypesArea["building=house"], 0.01)

	require.Len(t, res.Roads, 1)
	assert.Equal(t, 7.0, res.Roads[0].Width)
	assert.Equal(t, classify.WidthSourceOSM, res.Roads[0].WidthSource)
	assert.Equal(t, 1, res.Diagnostics.ParseWarnings)

	assert.Equal(t, 43, res.Transform.Zone())
	assert.False(t, res.Transform.South())
	assert.Equal(t, 3, res.RawFeatures)
	assert.Equal(t, srv.URL, res.Endpoint)
	assert.NotEmpty(t, res.ID)
	assert.True(t, res.FetchBounds.Contains(pune.Center()))

	// (200 + 700) / disk is far below the baseline ratio
	assert.Equal(t, 0.0, res.Score.Value)
	assert.Equal(t, "LOW", string(res.Score.Level))
}

func TestAnalyze_AllEndpointsUnavailable(t *testing.T) {
	var hits atomic.Int32
	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer down.Close()

	a := NewAnalyzer(datasource.NewOverpassDataSource(overpassConfig(down.URL, down.URL+"/mirror")), Config{})
	res, err := a.Analyze(context.Background(), pune)

	require.Error(t, err)
	assert.Nil(t, res)
	assert.True(t, errors.Is(err, types.ErrDataFetch))
	assert.Equal(t, int32(6), hits.Load())
}

func TestAnalyze_InvalidInput(t *testing.T) {
	tests := []struct {
		name  string
		req   Request
		field string
	}{
		{"latitude too high", Request{Lat: 91, Lng: 0, Radius: 100}, "latitude"},
		{"latitude NaN", Request{Lat: math.NaN(), Lng: 0, Radius: 100}, "latitude"},
		{"longitude too low", Request{Lat: 0, Lng: -181, Radius: 100}, "longitude"},
		{"zero radius", Request{Lat: 0, Lng: 0, Radius: 0}, "radius"},
		{"negative radius", Request{Lat: 0, Lng: 0, Radius: -5}, "radius"},
		{"infinite radius", Request{Lat: 0, Lng: 0, Radius: math.Inf(1)}, "radius"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ds := &countingDataSource{}
			res, err := NewAnalyzer(ds, Config{}).Analyze(context.Background(), tt.req)

			require.Error(t, err)
			assert.Nil(t, res)
			assert.True(t, errors.Is(err, types.ErrInvalidInput))

			var inv *types.InvalidInputError
			require.True(t, errors.As(err, &inv))
			assert.Equal(t, tt.field, inv.Field)
			assert.Zero(t, ds.calls.Load(), "no fetch on invalid input")
		})
	}
}

func TestAnalyze_EmptyArea(t *testing.T) {
	ds := &countingDataSource{}
	res, err := NewAnalyzer(ds, Config{}).Analyze(context.Background(), Request{Lat: -33.8688, Lng: 151.2093, Radius: 250})
	require.NoError(t, err)

	assert.True(t, res.Transform.South())
	assert.Equal(t, 56, res.Transform.Zone())
	assert.InDelta(t, res.Metrics.AnalysisArea, res.Metrics.TrueOpenSpace, 1e-9)
	assert.Equal(t, 1.0, res.Metrics.TrueOpenSpaceRatio)
	assert.Empty(t, res.Buildings)
}

func TestAnalyze_ConcurrentCallsAreIndependent(t *testing.T) {
	srv, _ := newFixtureServer(t, puneFixture(t))
	a := NewAnalyzer(datasource.NewOverpassDataSource(overpassConfig(srv.URL)), Config{})

	const n = 4
	results := make([]*Result, n)
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = a.Analyze(context.Background(), pune)
		}(i)
	}
	wg.Wait()

	ids := make(map[string]bool)
	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, results[0].Metrics, results[i].Metrics)
		ids[results[i].ID] = true
	}
	assert.Len(t, ids, n)
}

func TestResultSummary(t *testing.T) {
	srv, _ := newFixtureServer(t, puneFixture(t))
	a := NewAnalyzer(datasource.NewOverpassDataSource(overpassConfig(srv.URL)), Config{})
	res, err := a.Analyze(context.Background(), pune)
	require.NoError(t, err)

	s := res.Summary()
	assert.Equal(t, 32643, s.EPSG)
	assert.Equal(t, 1, s.RoadSources[classify.WidthSourceOSM])
	require.Len(t, s.TopBuildingTypes, 1)
	assert.Equal(t, "House", s.TopBuildingTypes[0].Label)

	data, err := json.Marshal(s)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Contains(t, decoded, "metrics")
	assert.Contains(t, decoded["metrics"], "true_open_space_m2")
	assert.Contains(t, decoded["request"], "latitude")
}

func TestRequestValidate(t *testing.T) {
	assert.NoError(t, pune.Validate())
	assert.NoError(t, Request{Lat: -90, Lng: 180, Radius: 0.5}.Validate())

	err := Request{Lat: 0, Lng: 0, Radius: -1}.Validate()
	var inv *types.InvalidInputError
	require.True(t, errors.As(err, &inv))
	assert.Equal(t, "greater than 0", inv.Constraint)
	assert.Equal(t, -1.0, inv.Value)
}

func TestAnalyze_LivePune(t *testing.T) {
	requireIntegration(t)

	a := NewAnalyzer(datasource.NewOverpassDataSource(datasource.DefaultConfig()), Config{})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	res, err := a.Analyze(ctx, pune)
	require.NoError(t, err)
	t.Logf("score %.1f (%s), buildings %d, roads %d", res.Score.Value, res.Score.Level, len(res.Buildings), len(res.Roads))
	assert.Positive(t, res.Metrics.DetectedBuildings)
}
