// Package pipeline wires projection, region, datasource, classification
// and aggregation into a single analysis step.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/MeKo-Tech/congestionmap/internal/classify"
	"github.com/MeKo-Tech/congestionmap/internal/metrics"
	"github.com/MeKo-Tech/congestionmap/internal/projection"
	"github.com/MeKo-Tech/congestionmap/internal/region"
	"github.com/MeKo-Tech/congestionmap/internal/types"
	"github.com/google/uuid"
)

// DataSource fetches raw OSM features intersecting a bounding box.
type DataSource interface {
	Fetch(context.Context, types.BoundingBox) (*types.RawDataset, error)
}

// Result is everything one analysis produced.
type Result struct {
	ID          string
	Request     Request
	Transform   *projection.Transform
	Disk        *region.Disk
	FetchBounds types.BoundingBox
	Endpoint    string
	FetchedAt   time.Time
	RawFeatures int
	Metrics     metrics.Metrics
	Score       metrics.Score
	Buildings   []classify.Building
	Roads       []classify.Road
	Water       []classify.Water
	Diagnostics classify.Diagnostics
	Duration    time.Duration
}

// Config configures an Analyzer.
type Config struct {
	Classifier classify.Config
	Logger     *slog.Logger
}

// Analyzer runs analyses against one data source. Every call builds its
// own transform, disk and collections, so an Analyzer can serve
// concurrent callers.
type Analyzer struct {
	ds         DataSource
	classifier *classify.Classifier
	logger     *slog.Logger
}

// NewAnalyzer creates an analyzer. A zero Config uses the default widths.
func NewAnalyzer(ds DataSource, cfg Config) *Analyzer {
	if cfg.Classifier.Logger == nil {
		cfg.Classifier.Logger = cfg.Logger
	}
	return &Analyzer{
		ds:         ds,
		classifier: classify.New(cfg.Classifier),
		logger:     cfg.Logger,
	}
}

func (a *Analyzer) log() *slog.Logger {
	if a.logger != nil {
		return a.logger
	}
	return slog.Default()
}

// Analyze validates req, fetches the surrounding map data and returns the
// land-cover metrics and score. Invalid input fails with
// *types.InvalidInputError before any network call; an unreachable
// provider fails with an error matching types.ErrDataFetch. No partial
// result is returned on error.
func (a *Analyzer) Analyze(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	id := uuid.NewString()
	logger := a.log().With("request_id", id)

	transform, err := projection.New(req.Lat, req.Lng)
	if err != nil {
		return nil, err
	}
	disk, err := region.NewDisk(transform, req.Radius)
	if err != nil {
		return nil, err
	}
	bounds := region.FetchBounds(req.Center(), req.Radius)
	if !disk.WithinBounds(transform, bounds) {
		logger.Warn("Fetch box does not cover the whole analysis disk",
			"request", req.String(),
			"bbox", bounds.String())
	}

	logger.Info("Fetching map data",
		"request", req.String(),
		"zone", transform.Zone(),
		"south", transform.South(),
		"bbox", bounds.String())
	data, err := a.ds.Fetch(ctx, bounds)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch map data: %w", err)
	}

	logger.Debug("Classifying features",
		"raw", len(data.Features),
		"categories", data.CategoryCounts(),
		"endpoint", data.Endpoint)
	classified := a.classifier.Classify(data.Features, transform, disk)

	m := metrics.Aggregate(disk.ExactArea(), classified)
	score := m.Score()

	res := &Result{
		ID:          id,
		Request:     req,
		Transform:   transform,
		Disk:        disk,
		FetchBounds: bounds,
		Endpoint:    data.Endpoint,
		FetchedAt:   data.FetchedAt,
		RawFeatures: len(data.Features),
		Metrics:     m,
		Score:       score,
		Buildings:   classified.Buildings,
		Roads:       classified.Roads,
		Water:       classified.Water,
		Diagnostics: classified.Diagnostics,
		Duration:    time.Since(start),
	}

	logger.Info("Analysis complete",
		"buildings", len(res.Buildings),
		"roads", len(res.Roads),
		"water", len(res.Water),
		"score", score.Value,
		"level", score.Level,
		"duration", res.Duration)
	return res, nil
}
