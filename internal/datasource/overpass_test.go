package datasource

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MeKo-Christian/go-overpass"
	"github.com/MeKo-Tech/congestionmap/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requireIntegration(t *testing.T) {
	t.Helper()
	if os.Getenv("CONGESTIONMAP_INTEGRATION") != "1" {
		t.Skip("Skipping integration test (set CONGESTIONMAP_INTEGRATION=1 to run)")
	}
}

func testBounds() types.BoundingBox {
	return types.BoundsAround(types.GeoPoint{Lat: 18.5204, Lon: 73.8567}, 0.01)
}

func fastConfig(endpoints ...string) Config {
	cfg := DefaultConfig()
	cfg.Endpoints = endpoints
	cfg.TransientWait = time.Millisecond
	cfg.RetryWait = time.Millisecond
	cfg.Timeout = 5 * time.Second
	return cfg
}

func fixtureHandler(t *testing.T, hits *atomic.Int32) http.HandlerFunc {
	t.Helper()
	body, err := os.ReadFile("testdata/small.json")
	require.NoError(t, err)

	return func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(body)
	}
}

func statusHandler(code int, hits *atomic.Int32) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.Error(w, http.StatusText(code), code)
	}
}

func TestBuildQuery(t *testing.T) {
	q := BuildQuery(types.BoundingBox{MinLon: 73.8, MinLat: 18.5, MaxLon: 73.9, MaxLat: 18.6})

	bbox := "(18.500000,73.800000,18.600000,73.900000)"
	assert.Contains(t, q, "[out:json][timeout:90];")
	assert.Contains(t, q, `way["building"]`+bbox)
	assert.Contains(t, q, `way["highway"]`+bbox)
	assert.Contains(t, q, `way["natural"="water"]`+bbox)
	assert.Contains(t, q, `way["waterway"="riverbank"]`+bbox)
	assert.Contains(t, q, "out geom;")
}

func TestFetch_Success(t *testing.T) {
	var hits atomic.Int32
	var userAgent, query atomic.Value

	body, err := os.ReadFile("testdata/small.json")
	require.NoError(t, err)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		userAgent.Store(r.UserAgent())
		query.Store(r.FormValue("data"))
		_, _ = w.Write(body)
	}))
	defer srv.Close()

	ds := NewOverpassDataSource(fastConfig(srv.URL))
	data, err := ds.Fetch(context.Background(), testBounds())
	require.NoError(t, err)

	assert.Equal(t, int32(1), hits.Load())
	assert.Equal(t, DefaultUserAgent, userAgent.Load())
	assert.Contains(t, query.Load(), `way["highway"]`)
	assert.Equal(t, srv.URL, data.Endpoint)
	assert.False(t, data.FetchedAt.IsZero())

	require.Len(t, data.Features, 3)
	assert.Equal(t, int64(100), data.Features[0].ID)
	assert.Equal(t, int64(200), data.Features[1].ID)
	assert.Equal(t, int64(300), data.Features[2].ID)

	counts := data.CategoryCounts()
	assert.Equal(t, 1, counts[types.FeatureTypeBuilding])
	assert.Equal(t, 1, counts[types.FeatureTypeRoad])
	assert.Equal(t, 1, counts[types.FeatureTypeWater])

	road := data.Features[2]
	assert.Equal(t, "way/300", road.Ref())
	assert.Equal(t, "Fergusson College Road", road.Tags.Get("name"))
	require.Len(t, road.Geometry, 2)
	assert.Equal(t, types.GeoPoint{Lat: 18.5200, Lon: 73.8560}, road.Geometry[0])
}

func TestFetch_AllEndpointsUnavailable(t *testing.T) {
	var hitsA, hitsB atomic.Int32
	a := httptest.NewServer(statusHandler(http.StatusServiceUnavailable, &hitsA))
	defer a.Close()
	b := httptest.NewServer(statusHandler(http.StatusServiceUnavailable, &hitsB))
	defer b.Close()

	ds := NewOverpassDataSource(fastConfig(a.URL, b.URL))
	data, err := ds.Fetch(context.Background(), testBounds())
	require.Error(t, err)
	assert.Nil(t, data)

	assert.True(t, errors.Is(err, types.ErrDataFetch))
	var fetchErr *types.DataFetchError
	require.True(t, errors.As(err, &fetchErr))
	assert.Equal(t, 6, fetchErr.Attempts)
	assert.Equal(t, []string{a.URL, b.URL}, fetchErr.Endpoints)
	assert.True(t, IsTransient(err))

	assert.Equal(t, int32(3), hitsA.Load())
	assert.Equal(t, int32(3), hitsB.Load())
}

func TestFetch_FailoverToSecondEndpoint(t *testing.T) {
	var hitsA, hitsB atomic.Int32
	a := httptest.NewServer(statusHandler(http.StatusTooManyRequests, &hitsA))
	defer a.Close()
	b := httptest.NewServer(fixtureHandler(t, &hitsB))
	defer b.Close()

	ds := NewOverpassDataSource(fastConfig(a.URL, b.URL))
	data, err := ds.Fetch(context.Background(), testBounds())
	require.NoError(t, err)

	assert.Equal(t, b.URL, data.Endpoint)
	assert.Len(t, data.Features, 3)
	assert.Equal(t, int32(1), hitsA.Load())
	assert.Equal(t, int32(1), hitsB.Load())
}

func TestFetch_MalformedResponseIsRetried(t *testing.T) {
	body, err := os.ReadFile("testdata/small.json")
	require.NoError(t, err)

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			_, _ = w.Write([]byte("<html>rate limited</html>"))
			return
		}
		_, _ = w.Write(body)
	}))
	defer srv.Close()

	cfg := fastConfig(srv.URL)
	cfg.Retries = 2
	data, err := NewOverpassDataSource(cfg).Fetch(context.Background(), testBounds())
	require.NoError(t, err)
	assert.Len(t, data.Features, 3)
	assert.Equal(t, int32(2), hits.Load())
}

func TestFetch_NonTransientStatus(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(statusHandler(http.StatusBadRequest, &hits))
	defer srv.Close()

	cfg := fastConfig(srv.URL)
	cfg.Retries = 2
	_, err := NewOverpassDataSource(cfg).Fetch(context.Background(), testBounds())
	require.Error(t, err)
	assert.False(t, IsTransient(err))
	assert.Equal(t, int32(2), hits.Load())
}

func TestFetch_ContextCanceled(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(statusHandler(http.StatusServiceUnavailable, &hits))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewOverpassDataSource(fastConfig(srv.URL)).Fetch(ctx, testBounds())
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.True(t, errors.Is(err, types.ErrDataFetch))
}

func TestNewOverpassDataSource_Defaults(t *testing.T) {
	ds := NewOverpassDataSource(Config{Endpoints: []string{" ", ""}})
	assert.Equal(t, []string{DefaultEndpoint}, ds.Endpoints())
	assert.Equal(t, 3, ds.cfg.Retries)
	assert.Equal(t, 90*time.Second, ds.cfg.Timeout)
	assert.Equal(t, DefaultUserAgent, ds.cfg.UserAgent)
	assert.Nil(t, ds.limiter)

	paced := NewOverpassDataSource(Config{RequestsPerSecond: 0.5})
	assert.NotNil(t, paced.limiter)
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		code int
		want bool
	}{
		{http.StatusTooManyRequests, true},
		{http.StatusInternalServerError, true},
		{http.StatusBadGateway, true},
		{http.StatusServiceUnavailable, true},
		{http.StatusGatewayTimeout, true},
		{http.StatusBadRequest, false},
		{http.StatusNotFound, false},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.code), func(t *testing.T) {
			err := &StatusError{StatusCode: tt.code, Endpoint: "http://example"}
			assert.Equal(t, tt.want, IsTransient(err))
			assert.Contains(t, err.Error(), "http://example")
		})
	}
	assert.False(t, IsTransient(errors.New("connection reset")))
}

func TestDecodeResponse(t *testing.T) {
	body, err := os.ReadFile("testdata/small.json")
	require.NoError(t, err)

	features, err := DecodeResponse(body)
	require.NoError(t, err)
	require.Len(t, features, 3)

	assert.Equal(t, int64(100), features[0].ID)
	assert.Equal(t, "way", features[0].Kind)
	assert.Equal(t, "house", features[0].Tags.Get("building"))
	assert.Len(t, features[0].Geometry, 5)

	_, err = DecodeResponse([]byte("{"))
	assert.Error(t, err)
}

func TestExtractRawFeatures(t *testing.T) {
	result := &overpass.Result{
		Ways: map[int64]*overpass.Way{
			7: {
				Meta:     overpass.Meta{ID: 7, Tags: map[string]string{"highway": "service"}},
				Geometry: []overpass.Point{{Lat: 1, Lon: 2}, {Lat: 1.001, Lon: 2}},
			},
			3: {
				Meta: overpass.Meta{ID: 3, Tags: map[string]string{"building": "yes"}},
			},
			5: nil,
		},
	}

	features := ExtractRawFeatures(result)
	require.Len(t, features, 2)
	assert.Equal(t, int64(3), features[0].ID)
	assert.Empty(t, features[0].Geometry)
	assert.Equal(t, int64(7), features[1].ID)
	assert.Equal(t, types.GeoPoint{Lat: 1, Lon: 2}, features[1].Geometry[0])

	assert.Nil(t, ExtractRawFeatures(nil))
}

func TestFileDataSource(t *testing.T) {
	ds := NewFileDataSource("testdata/small.json")
	data, err := ds.Fetch(context.Background(), testBounds())
	require.NoError(t, err)
	assert.Len(t, data.Features, 3)
	assert.True(t, strings.HasPrefix(data.Endpoint, "file://"))

	_, err = NewFileDataSource("testdata/missing.json").Fetch(context.Background(), testBounds())
	assert.Error(t, err)
}

// TestFetchPune queries the public API around central Pune.
func TestFetchPune(t *testing.T) {
	requireIntegration(t)

	ds := NewOverpassDataSource(DefaultConfig())
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	start := time.Now()
	data, err := ds.Fetch(ctx, testBounds())
	require.NoError(t, err)
	t.Logf("fetched %d features from %s in %v", len(data.Features), data.Endpoint, time.Since(start))

	counts := data.CategoryCounts()
	assert.Positive(t, counts[types.FeatureTypeBuilding])
	assert.Positive(t, counts[types.FeatureTypeRoad])
}
