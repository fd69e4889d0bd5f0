// Package geojson exports analysis results as GeoJSON in geographic
// (lon, lat) coordinates.
package geojson

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/MeKo-Tech/congestionmap/internal/pipeline"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/project"
)

// LayerType names a group of exported features.
type LayerType string

const (
	LayerZone      LayerType = "analysis-zone"
	LayerBuildings LayerType = "buildings"
	LayerRoads     LayerType = "roads"
	LayerWater     LayerType = "water"
)

// AllLayers lists the layers in drawing order.
var AllLayers = []LayerType{LayerZone, LayerWater, LayerRoads, LayerBuildings}

// ToGeoJSON converts the requested layers of res (all layers when none
// are given) into one FeatureCollection. Every feature carries a "layer"
// property.
func ToGeoJSON(res *pipeline.Result, layers ...LayerType) (*geojson.FeatureCollection, error) {
	if res == nil || res.Transform == nil {
		return nil, fmt.Errorf("result has no transform")
	}
	if len(layers) == 0 {
		layers = AllLayers
	}

	fc := geojson.NewFeatureCollection()
	fc.BBox = geojson.NewBBox(res.FetchBounds.Bound())
	for _, layer := range layers {
		features, err := LayerFeatures(res, layer)
		if err != nil {
			return nil, err
		}
		for _, f := range features {
			fc.Append(f)
		}
	}
	return fc, nil
}

// Marshal encodes fc as indented GeoJSON
func Marshal(fc *geojson.FeatureCollection) ([]byte, error) {
	data, err := json.MarshalIndent(fc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal GeoJSON: %w", err)
	}

	return data, nil
}

// LayerFeatures returns the features of a single layer.
func LayerFeatures(res *pipeline.Result, layer LayerType) ([]*geojson.Feature, error) {
	inv := res.Transform.InverseProjection()

	switch layer {
	case LayerZone:
		f := newFeature(res.Disk.Polygon(), inv, layer)
		f.Properties["radius_m"] = res.Request.Radius
		f.Properties["area_m2"] = round1(res.Metrics.AnalysisArea)
		f.Properties["score"] = res.Score.Value
		f.Properties["level"] = string(res.Score.Level)
		f.Properties["utm_zone"] = res.Transform.Zone()
		return []*geojson.Feature{f}, nil

	case LayerBuildings:
		out := make([]*geojson.Feature, 0, len(res.Buildings))
		for _, b := range res.Buildings {
			f := newFeature(b.Geometry, inv, layer)
			f.Properties["osm_id"] = fmt.Sprintf("way/%d", b.ID)
			f.Properties["tag"] = b.Tag
			f.Properties["area_m2"] = round1(b.Area)
			out = append(out, f)
		}
		return out, nil

	case LayerRoads:
		out := make([]*geojson.Feature, 0, len(res.Roads))
		for _, r := range res.Roads {
			f := newFeature(r.Geometry, inv, layer)
			f.Properties["osm_id"] = fmt.Sprintf("way/%d", r.ID)
			f.Properties["width_m"] = r.Width
			f.Properties["width_source"] = string(r.WidthSource)
			f.Properties["highway"] = r.Highway
			f.Properties["length_m"] = round1(r.Length)
			if r.Name != "" {
				f.Properties["name"] = r.Name
			}
			out = append(out, f)
		}
		return out, nil

	case LayerWater:
		out := make([]*geojson.Feature, 0, len(res.Water))
		for _, w := range res.Water {
			f := newFeature(w.Geometry, inv, layer)
			f.Properties["osm_id"] = fmt.Sprintf("way/%d", w.ID)
			f.Properties["area_m2"] = round1(w.Area)
			out = append(out, f)
		}
		return out, nil
	}

	return nil, fmt.Errorf("unknown layer %q", layer)
}

// newFeature projects a copy of g back to lon/lat; result geometries are
// never modified.
func newFeature(g orb.Geometry, inv orb.Projection, layer LayerType) *geojson.Feature {
	f := geojson.NewFeature(project.Geometry(orb.Clone(g), inv))
	f.Properties["layer"] = string(layer)
	return f
}

// LayerSummary returns a summary of features per layer
func LayerSummary(fc *geojson.FeatureCollection) string {
	counts := make(map[string]int)
	for _, f := range fc.Features {
		counts[f.Properties.MustString("layer", "")]++
	}
	return fmt.Sprintf("Zone: %d, Water: %d, Roads: %d, Buildings: %d (Total: %d)",
		counts[string(LayerZone)], counts[string(LayerWater)], counts[string(LayerRoads)],
		counts[string(LayerBuildings)], len(fc.Features))
}

func round1(v float64) float64 {
	return math.RoundToEven(v*10) / 10
}
