// Package metrics aggregates classified land cover into area totals,
// coverage ratios and the congestion score.
package metrics

import (
	"math"
	"sort"
	"strings"

	"github.com/MeKo-Tech/congestionmap/internal/classify"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Metrics is the area bookkeeping of one analysis. All areas are in m²
// and all ratios are relative to AnalysisArea.
//
// Overlapping building footprints are not deduplicated, so a building
// mapped twice is counted twice and TrueOpenSpace may become negative.
type Metrics struct {
	AnalysisArea          float64            `json:"analysis_area_m2"`
	TotalBuildingArea     float64            `json:"total_building_area_m2"`
	BuildingCoverageRatio float64            `json:"building_coverage_ratio"`
	TotalRoadArea         float64            `json:"total_road_area_m2"`
	RoadAreaCoverage      float64            `json:"road_area_coverage"`
	WaterArea             float64            `json:"water_area_m2"`
	WaterCoverageRatio    float64            `json:"water_coverage_ratio"`
	EffectiveLandArea     float64            `json:"effective_land_area_m2"`
	TrueOpenSpace         float64            `json:"true_open_space_m2"`
	TrueOpenSpaceRatio    float64            `json:"true_open_space_ratio"`
	DetectedBuildings     int                `json:"detected_buildings"`
	BuildingTypesArea     map[string]float64 `json:"building_types_area"`
}

// Aggregate sums a classification against the exact disk area.
func Aggregate(analysisArea float64, c *classify.Classification) Metrics {
	m := Metrics{
		AnalysisArea:      analysisArea,
		BuildingTypesArea: make(map[string]float64),
	}
	if c != nil {
		for _, b := range c.Buildings {
			m.TotalBuildingArea += b.Area
			m.BuildingTypesArea[b.Tag] += b.Area
		}
		for _, r := range c.Roads {
			m.TotalRoadArea += r.Area()
		}
		for _, w := range c.Water {
			m.WaterArea += w.Area
		}
		m.DetectedBuildings = len(c.Buildings)
	}

	m.TrueOpenSpace = analysisArea - m.TotalBuildingArea - m.TotalRoadArea - m.WaterArea
	m.EffectiveLandArea = math.Max(analysisArea-m.WaterArea, 1)
	if analysisArea > 0 {
		m.BuildingCoverageRatio = m.TotalBuildingArea / analysisArea
		m.RoadAreaCoverage = m.TotalRoadArea / analysisArea
		m.WaterCoverageRatio = m.WaterArea / analysisArea
		m.TrueOpenSpaceRatio = m.TrueOpenSpace / analysisArea
	}
	return m
}

// UsedRatio is the built-up share of the land that is not water.
func (m Metrics) UsedRatio() float64 {
	return (m.TotalBuildingArea + m.TotalRoadArea) / math.Max(m.AnalysisArea-m.WaterArea, 1)
}

// TypeArea is the summed footprint of one building tag.
type TypeArea struct {
	Tag   string  `json:"tag"`
	Label string  `json:"label"`
	Area  float64 `json:"area_m2"`
	Share float64 `json:"share"` // of TotalBuildingArea
}

// TopBuildingTypes ranks building tags by total area, largest first, ties
// broken by tag. n <= 0 returns every tag.
func (m Metrics) TopBuildingTypes(n int) []TypeArea {
	out := make([]TypeArea, 0, len(m.BuildingTypesArea))
	for tag, area := range m.BuildingTypesArea {
		share := 0.0
		if m.TotalBuildingArea > 0 {
			share = area / m.TotalBuildingArea
		}
		out = append(out, TypeArea{Tag: tag, Label: TypeLabel(tag), Area: area, Share: share})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Area != out[j].Area {
			return out[i].Area > out[j].Area
		}
		return out[i].Tag < out[j].Tag
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

var titleCaser = cases.Title(language.English)

// TypeLabel turns "building=apartments" into "Apartments"; the generic
// building=yes reads as "Generic Building".
func TypeLabel(tag string) string {
	v := strings.TrimPrefix(tag, "building=")
	if v == "yes" {
		return "Generic Building"
	}
	return titleCaser.String(strings.ReplaceAll(v, "_", " "))
}
