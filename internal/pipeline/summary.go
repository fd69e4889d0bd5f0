package pipeline

import (
	"time"

	"github.com/MeKo-Tech/congestionmap/internal/classify"
	"github.com/MeKo-Tech/congestionmap/internal/metrics"
)

// TopTypes is the number of building types listed in a summary.
const TopTypes = 10

// Summary is the JSON-friendly view of a Result without geometries.
type Summary struct {
	ID               string                       `json:"id"`
	Request          Request                      `json:"request"`
	UTMZone          int                          `json:"utm_zone"`
	EPSG             int                          `json:"epsg"`
	Endpoint         string                       `json:"endpoint"`
	FetchedAt        time.Time                    `json:"fetched_at"`
	RawFeatures      int                          `json:"raw_features"`
	Metrics          metrics.Metrics              `json:"metrics"`
	Score            metrics.Score                `json:"score"`
	TopBuildingTypes []metrics.TypeArea           `json:"top_building_types"`
	RoadSources      map[classify.WidthSource]int `json:"road_width_sources"`
	Diagnostics      DiagnosticsSummary           `json:"diagnostics"`
	DurationMS       int64                        `json:"duration_ms"`
}

// DiagnosticsSummary mirrors classify.Diagnostics for JSON output.
type DiagnosticsSummary struct {
	ParseWarnings  int            `json:"parse_warnings"`
	RepairFailures int            `json:"repair_failures"`
	Repaired       int            `json:"repaired"`
	Outside        int            `json:"outside"`
	Reasons        map[string]int `json:"reasons,omitempty"`
}

// Summary condenses the result for reports.
func (r *Result) Summary() Summary {
	sources := make(map[classify.WidthSource]int)
	for _, road := range r.Roads {
		sources[road.WidthSource]++
	}

	return Summary{
		ID:               r.ID,
		Request:          r.Request,
		UTMZone:          r.Transform.Zone(),
		EPSG:             r.Transform.EPSG(),
		Endpoint:         r.Endpoint,
		FetchedAt:        r.FetchedAt,
		RawFeatures:      r.RawFeatures,
		Metrics:          r.Metrics,
		Score:            r.Score,
		TopBuildingTypes: r.Metrics.TopBuildingTypes(TopTypes),
		RoadSources:      sources,
		Diagnostics: DiagnosticsSummary{
			ParseWarnings:  r.Diagnostics.ParseWarnings,
			RepairFailures: r.Diagnostics.RepairFailures,
			Repaired:       r.Diagnostics.Repaired,
			Outside:        r.Diagnostics.Outside,
			Reasons:        r.Diagnostics.Reasons,
		},
		DurationMS: r.Duration.Milliseconds(),
	}
}
