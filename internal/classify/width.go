package classify

import (
	"math"
	"strconv"
	"strings"

	"github.com/MeKo-Tech/congestionmap/internal/types"
)

// parseLeadingNumber reads the first whitespace-separated token of v as a
// number, so "7.5 m" yields 7.5 while "7.5m" does not parse.
func parseLeadingNumber(v string) (float64, bool) {
	fields := strings.Fields(v)
	if len(fields) == 0 {
		return 0, false
	}
	f, err := strconv.ParseFloat(fields[0], 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// ParseWidth interprets a width tag value in meters.
func ParseWidth(v string) (float64, bool) {
	return parseLeadingNumber(v)
}

// ParseLanes interprets a lanes tag value.
func ParseLanes(v string) (float64, bool) {
	return parseLeadingNumber(v)
}

// WidthFor picks a road width from the strongest available evidence:
// an explicit width tag, then the lane count, then the highway class.
// The second return value reports whether a tag was unparseable.
func (c Config) WidthFor(tags types.Tags) (width float64, source WidthSource, malformed bool) {
	if v, ok := tags.Lookup("width"); ok {
		if w, ok := ParseWidth(v); ok {
			return math.Max(c.MinExplicitWidth, w), WidthSourceOSM, false
		}
		malformed = true
	}

	if v, ok := tags.Lookup("lanes"); ok {
		if n, ok := ParseLanes(v); ok {
			return math.Max(c.MinLanesWidth, n*c.LaneWidth), WidthSourceLanes, malformed
		}
		malformed = true
	}

	if w, ok := c.FallbackWidths[tags.Get("highway")]; ok {
		return w, WidthSourceFallback, malformed
	}
	return c.DefaultWidth, WidthSourceFallback, malformed
}

// ReportedSource applies the display rule for clipped segments: explicit
// and lane evidence is kept, any other width of at least PromoteWidth is
// reported as "osm".
func (c Config) ReportedSource(width float64, source WidthSource) WidthSource {
	switch {
	case source == WidthSourceOSM, source == WidthSourceLanes:
		return source
	case width >= c.PromoteWidth:
		return WidthSourceOSM
	default:
		return WidthSourceFallback
	}
}

// NormalizeBuildingTag maps a building tag value to its "building=<v>"
// label. Generic values collapse into building=yes.
func NormalizeBuildingTag(v string) string {
	v = strings.ToLower(strings.TrimSpace(v))
	switch v {
	case "yes", "1", "true":
		return "building=yes"
	}
	return "building=" + v
}
