package classify

import (
	"testing"

	"github.com/MeKo-Tech/congestionmap/internal/types"
	"github.com/stretchr/testify/assert"
)

func TestWidthFor(t *testing.T) {
	cfg := DefaultConfig()

	tests := []struct {
		name          string
		tags          map[string]string
		wantWidth     float64
		wantSource    WidthSource
		wantMalformed bool
	}{
		{"explicit width", map[string]string{"highway": "primary", "width": "12"}, 12, WidthSourceOSM, false},
		{"explicit width floored", map[string]string{"highway": "primary", "width": "2"}, 3, WidthSourceOSM, false},
		{"width with unit token", map[string]string{"highway": "primary", "width": "7.5 m"}, 7.5, WidthSourceOSM, false},
		{"width wins over lanes", map[string]string{"highway": "primary", "width": "9", "lanes": "4"}, 9, WidthSourceOSM, false},
		{"lanes", map[string]string{"highway": "primary", "lanes": "4"}, 14, WidthSourceLanes, false},
		{"single lane floored", map[string]string{"highway": "service", "lanes": "1"}, 7, WidthSourceLanes, false},
		{"bad width falls to lanes", map[string]string{"highway": "primary", "width": "wide", "lanes": "3"}, 10.5, WidthSourceLanes, true},
		{"glued unit falls to fallback", map[string]string{"highway": "service", "width": "3.5m"}, 6, WidthSourceFallback, true},
		{"fallback primary", map[string]string{"highway": "primary"}, 18, WidthSourceFallback, false},
		{"fallback motorway", map[string]string{"highway": "motorway"}, 24, WidthSourceFallback, false},
		{"fallback unknown class", map[string]string{"highway": "footway"}, 7, WidthSourceFallback, false},
		{"nan width rejected", map[string]string{"highway": "tertiary", "width": "NaN"}, 10, WidthSourceFallback, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			width, source, malformed := cfg.WidthFor(types.NewTags(tt.tags))
			assert.InDelta(t, tt.wantWidth, width, 1e-9)
			assert.Equal(t, tt.wantSource, source)
			assert.Equal(t, tt.wantMalformed, malformed)
		})
	}
}

func TestReportedSource(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, WidthSourceOSM, cfg.ReportedSource(7, WidthSourceFallback))
	assert.Equal(t, WidthSourceOSM, cfg.ReportedSource(3, WidthSourceFallback))
	assert.Equal(t, WidthSourceFallback, cfg.ReportedSource(2.5, WidthSourceFallback))
	assert.Equal(t, WidthSourceOSM, cfg.ReportedSource(3, WidthSourceOSM))
	assert.Equal(t, WidthSourceLanes, cfg.ReportedSource(14, WidthSourceLanes))
}

func TestNormalizeBuildingTag(t *testing.T) {
	tests := map[string]string{
		"yes":         "building=yes",
		" YES ":       "building=yes",
		"1":           "building=yes",
		"True":        "building=yes",
		"house":       "building=house",
		" Apartments": "building=apartments",
	}
	for in, want := range tests {
		assert.Equal(t, want, NormalizeBuildingTag(in), "input %q", in)
	}
}

func TestParseLeadingNumber(t *testing.T) {
	v, ok := ParseLanes("2;3")
	assert.False(t, ok)
	assert.Zero(t, v)

	v, ok = ParseLanes(" 2 ")
	assert.True(t, ok)
	assert.Equal(t, 2.0, v)

	_, ok = ParseWidth("")
	assert.False(t, ok)
}
