package datasource

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/MeKo-Christian/go-overpass"
	"github.com/MeKo-Tech/congestionmap/internal/types"
	"golang.org/x/time/rate"
)

const (
	DefaultEndpoint  = "https://overpass-api.de/api/interpreter"
	DefaultUserAgent = "UrbanCongestionDetector-IN/1.0"
)

// Config configures the Overpass data source.
type Config struct {
	// Endpoints are tried in order within every retry round.
	Endpoints []string
	// Retries is the number of rounds over all endpoints (default: 3).
	Retries int
	// TransientWait is the pause after a 429/5xx answer (default: 2s).
	TransientWait time.Duration
	// RetryWait is the pause after any other failure (default: 1s).
	RetryWait time.Duration
	// Timeout bounds a single HTTP attempt (default: 90s).
	Timeout time.Duration
	// UserAgent is sent with every request.
	UserAgent string
	// RequestsPerSecond paces attempts across all endpoints; 0 disables pacing.
	RequestsPerSecond float64
	// Transport overrides the HTTP transport (tests).
	Transport http.RoundTripper
	Logger    *slog.Logger
}

// DefaultConfig returns the settings used against the public Overpass API.
func DefaultConfig() Config {
	return Config{
		Endpoints:     []string{DefaultEndpoint},
		Retries:       3,
		TransientWait: 2 * time.Second,
		RetryWait:     time.Second,
		Timeout:       90 * time.Second,
		UserAgent:     DefaultUserAgent,
	}
}

// OverpassDataSource fetches OSM ways from one or more Overpass endpoints.
// It keeps no data between calls.
type OverpassDataSource struct {
	cfg     Config
	limiter *rate.Limiter
}

// NewOverpassDataSource creates a data source, filling unset fields from
// DefaultConfig.
func NewOverpassDataSource(cfg Config) *OverpassDataSource {
	def := DefaultConfig()
	var endpoints []string
	for _, e := range cfg.Endpoints {
		if e = strings.TrimSpace(e); e != "" {
			endpoints = append(endpoints, e)
		}
	}
	if len(endpoints) == 0 {
		endpoints = def.Endpoints
	}
	cfg.Endpoints = endpoints
	if cfg.Retries < 1 {
		cfg.Retries = def.Retries
	}
	if cfg.TransientWait < 0 {
		cfg.TransientWait = 0
	}
	if cfg.RetryWait < 0 {
		cfg.RetryWait = 0
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = def.UserAgent
	}

	ds := &OverpassDataSource{cfg: cfg}
	if cfg.RequestsPerSecond > 0 {
		ds.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}
	return ds
}

func (ds *OverpassDataSource) log() *slog.Logger {
	if ds.cfg.Logger != nil {
		return ds.cfg.Logger
	}
	return slog.Default()
}

// Endpoints returns the endpoints in failover order.
func (ds *OverpassDataSource) Endpoints() []string {
	return append([]string(nil), ds.cfg.Endpoints...)
}

// Fetch retrieves every building, highway and water way intersecting bounds.
// Each round tries all endpoints in order; the first successful answer wins.
// When every attempt fails the error is a *types.DataFetchError.
func (ds *OverpassDataSource) Fetch(ctx context.Context, bounds types.BoundingBox) (*types.RawDataset, error) {
	query := BuildQuery(bounds)
	total := ds.cfg.Retries * len(ds.cfg.Endpoints)

	var lastErr error
	attempts := 0
	for round := 0; round < ds.cfg.Retries; round++ {
		for _, endpoint := range ds.cfg.Endpoints {
			if err := ds.pace(ctx); err != nil {
				return nil, ds.fetchError(attempts, lastErr, err)
			}

			attempts++
			start := time.Now()
			result, err := ds.query(ctx, endpoint, query)
			if err == nil {
				features := ExtractRawFeatures(&result)
				ds.log().Debug("overpass query succeeded",
					"endpoint", endpoint,
					"attempt", attempts,
					"features", len(features),
					"duration", time.Since(start))
				return &types.RawDataset{
					FetchedAt: time.Now(),
					Endpoint:  endpoint,
					Features:  features,
				}, nil
			}
			lastErr = err

			if ctx.Err() != nil {
				return nil, ds.fetchError(attempts, lastErr, ctx.Err())
			}

			wait := ds.cfg.RetryWait
			if IsTransient(err) {
				wait = ds.cfg.TransientWait
			}
			ds.log().Warn("overpass query failed",
				"endpoint", endpoint,
				"attempt", attempts,
				"of", total,
				"transient", IsTransient(err),
				"error", err)

			if attempts >= total {
				break
			}
			if err := sleep(ctx, wait); err != nil {
				return nil, ds.fetchError(attempts, lastErr, err)
			}
		}
	}

	return nil, ds.fetchError(attempts, lastErr, nil)
}

// fetchError builds the terminal error. A context error takes precedence
// over the last attempt's cause so callers can detect cancellation.
func (ds *OverpassDataSource) fetchError(attempts int, lastErr, ctxErr error) error {
	cause := lastErr
	if ctxErr != nil {
		cause = ctxErr
	}
	if cause == nil {
		cause = errors.New("no attempt was made")
	}
	return &types.DataFetchError{
		Attempts:  attempts,
		Endpoints: ds.Endpoints(),
		Err:       cause,
	}
}

func (ds *OverpassDataSource) pace(ctx context.Context) error {
	if ds.limiter == nil {
		return nil
	}
	return ds.limiter.Wait(ctx)
}

// query runs one attempt against one endpoint. The overpass client takes no
// context, so a fresh client per attempt lets the transport carry the
// attempt deadline and report the HTTP status it saw.
func (ds *OverpassDataSource) query(ctx context.Context, endpoint, query string) (overpass.Result, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, ds.cfg.Timeout)
	defer cancel()

	rt := &attemptTransport{
		ctx:       attemptCtx,
		userAgent: ds.cfg.UserAgent,
		base:      ds.cfg.Transport,
	}
	httpClient := &http.Client{Transport: rt}
	client := overpass.NewWithSettings(endpoint, 1, httpClient)

	result, err := client.Query(query)
	if err != nil {
		if rt.status != 0 {
			return overpass.Result{}, &StatusError{StatusCode: rt.status, Endpoint: endpoint}
		}
		return overpass.Result{}, fmt.Errorf("overpass query against %s failed: %w", endpoint, err)
	}
	return result, nil
}

// BuildQuery creates the Overpass QL union of building, highway and water
// ways. Per-element bbox filters with "out geom" return the complete
// geometry of every way that intersects the box, so clipping happens
// locally against the analysis disk.
func BuildQuery(bounds types.BoundingBox) string {
	bbox := bounds.OverpassFilter()
	return fmt.Sprintf(`
[out:json][timeout:90];
(
  way["building"](%s);
  way["highway"](%s);
  way["natural"="water"](%s);
  way["waterway"="riverbank"](%s);
);
out geom;
`, bbox, bbox, bbox, bbox)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
