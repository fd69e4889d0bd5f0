package types

import (
	"sort"
	"strconv"
	"time"

	"github.com/paulmach/orb"
)

// FeatureType represents the land-cover class a raw OSM way is sorted into
type FeatureType string

const (
	FeatureTypeBuilding FeatureType = "building"
	FeatureTypeRoad     FeatureType = "road"
	FeatureTypeWater    FeatureType = "water"
	FeatureTypeUnknown  FeatureType = "unknown"
)

// GeoPoint is a WGS84 coordinate in degrees.
type GeoPoint struct {
	Lat float64
	Lon float64
}

// OrbPoint returns the point in orb's (lon, lat) axis order.
func (p GeoPoint) OrbPoint() orb.Point {
	return orb.Point{p.Lon, p.Lat}
}

// GeoPointFromOrb converts an orb (lon, lat) point.
func GeoPointFromOrb(p orb.Point) GeoPoint {
	return GeoPoint{Lat: p[1], Lon: p[0]}
}

// Tags is a read-only view over an OSM tag dictionary.
// OSM tagging is open-ended, so callers match on specific keys
// instead of assuming a schema.
type Tags struct {
	m map[string]string
}

// NewTags copies src so later changes to it are not observed.
func NewTags(src map[string]string) Tags {
	m := make(map[string]string, len(src))
	for k, v := range src {
		m[k] = v
	}
	return Tags{m: m}
}

// Get returns the value for key, or "" when absent.
func (t Tags) Get(key string) string {
	return t.m[key]
}

// Lookup returns the value and whether the key is present at all.
func (t Tags) Lookup(key string) (string, bool) {
	v, ok := t.m[key]
	return v, ok
}

// Has reports whether key is present (even with an empty value).
func (t Tags) Has(key string) bool {
	_, ok := t.m[key]
	return ok
}

// Keys returns the tag keys in sorted order.
func (t Tags) Keys() []string {
	keys := make([]string, 0, len(t.m))
	for k := range t.m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// RawFeature is a single element as returned by the map-data provider.
// Geometry may be degenerate and required tags may be missing.
type RawFeature struct {
	ID       int64
	Kind     string // OSM element type, e.g. "way"
	Tags     Tags
	Geometry []GeoPoint
}

// Ref returns the OSM reference, e.g. "way/12345".
func (f RawFeature) Ref() string {
	return f.Kind + "/" + strconv.FormatInt(f.ID, 10)
}

// Category returns the land-cover class suggested by the feature's tags.
func (f RawFeature) Category() FeatureType {
	switch {
	case IsWater(f.Tags):
		return FeatureTypeWater
	case IsRoad(f.Tags):
		return FeatureTypeRoad
	case IsBuilding(f.Tags):
		return FeatureTypeBuilding
	default:
		return FeatureTypeUnknown
	}
}

// RawDataset is everything one provider response yielded.
type RawDataset struct {
	FetchedAt time.Time
	Endpoint  string
	Features  []RawFeature
}

// CategoryCounts returns the number of raw features per class.
func (d RawDataset) CategoryCounts() map[FeatureType]int {
	counts := make(map[FeatureType]int, 4)
	for _, f := range d.Features {
		counts[f.Category()]++
	}
	return counts
}

// IsBuilding reports a non-empty building tag.
func IsBuilding(tags Tags) bool {
	return tags.Get("building") != ""
}

// IsRoad reports the presence of a highway tag.
func IsRoad(tags Tags) bool {
	return tags.Has("highway")
}

// IsWater reports a permanent water body: natural=water or waterway=riverbank.
func IsWater(tags Tags) bool {
	return tags.Get("natural") == "water" || tags.Get("waterway") == "riverbank"
}
