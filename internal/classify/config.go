// Package classify turns raw OSM ways into clipped, measured buildings,
// roads and water bodies inside an analysis disk.
package classify

import "log/slog"

// WidthSource names the tag evidence a road width was derived from.
type WidthSource string

const (
	WidthSourceOSM      WidthSource = "osm"
	WidthSourceLanes    WidthSource = "lanes"
	WidthSourceFallback WidthSource = "fallback"
)

// Config holds the static width table and thresholds. It never changes
// while a Classifier is in use.
type Config struct {
	// LaneWidth is the carriageway width per lane in meters.
	LaneWidth float64
	// MinExplicitWidth floors widths taken from a width tag.
	MinExplicitWidth float64
	// MinLanesWidth floors widths derived from a lanes tag.
	MinLanesWidth float64
	// DefaultWidth applies to highway classes missing from FallbackWidths.
	DefaultWidth float64
	// PromoteWidth is the width at or above which a segment without
	// explicit evidence is reported as "osm".
	PromoteWidth float64
	// MinLength drops projected and clipped road lines shorter than this.
	MinLength float64
	// FallbackWidths maps highway class to width in meters.
	FallbackWidths map[string]float64

	Logger *slog.Logger
}

// DefaultConfig returns the widths used for Indian urban roads.
func DefaultConfig() Config {
	return Config{
		LaneWidth:        3.5,
		MinExplicitWidth: 3.0,
		MinLanesWidth:    7.0,
		DefaultWidth:     7,
		PromoteWidth:     3.0,
		MinLength:        1.0,
		FallbackWidths: map[string]float64{
			"motorway":     24,
			"trunk":        22,
			"primary":      18,
			"secondary":    14,
			"tertiary":     10,
			"residential":  7,
			"unclassified": 7,
			"service":      6,
		},
	}
}
