package datasource

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/MeKo-Christian/go-overpass"
	"github.com/MeKo-Tech/congestionmap/internal/types"
)

// response is the subset of the Overpass JSON format that "out geom" yields.
type response struct {
	Elements []struct {
		Type     string            `json:"type"`
		ID       int64             `json:"id"`
		Tags     map[string]string `json:"tags"`
		Geometry []struct {
			Lat float64 `json:"lat"`
			Lon float64 `json:"lon"`
		} `json:"geometry"`
	} `json:"elements"`
}

// DecodeResponse parses a raw Overpass JSON document into raw features
// ordered by ID.
func DecodeResponse(data []byte) ([]types.RawFeature, error) {
	var resp response
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal overpass json: %w", err)
	}

	features := make([]types.RawFeature, 0, len(resp.Elements))
	for _, el := range resp.Elements {
		geometry := make([]types.GeoPoint, 0, len(el.Geometry))
		for _, p := range el.Geometry {
			geometry = append(geometry, types.GeoPoint{Lat: p.Lat, Lon: p.Lon})
		}
		features = append(features, types.RawFeature{
			ID:       el.ID,
			Kind:     el.Type,
			Tags:     types.NewTags(el.Tags),
			Geometry: geometry,
		})
	}

	sort.SliceStable(features, func(i, j int) bool {
		if features[i].ID != features[j].ID {
			return features[i].ID < features[j].ID
		}
		return features[i].Kind < features[j].Kind
	})
	return features, nil
}

// ExtractRawFeatures converts the ways of an Overpass result into raw
// features ordered by ID. Geometry is copied as-is; ways without geometry
// are kept so the classifier can count them as malformed.
func ExtractRawFeatures(result *overpass.Result) []types.RawFeature {
	if result == nil {
		return nil
	}

	features := make([]types.RawFeature, 0, len(result.Ways))
	for id, way := range result.Ways {
		if way == nil {
			continue
		}
		features = append(features, convertWay(id, way))
	}

	sort.Slice(features, func(i, j int) bool {
		return features[i].ID < features[j].ID
	})
	return features
}

func convertWay(id int64, way *overpass.Way) types.RawFeature {
	if way.ID != 0 {
		id = way.ID
	}

	geometry := make([]types.GeoPoint, 0, len(way.Geometry))
	for _, p := range way.Geometry {
		geometry = append(geometry, types.GeoPoint{Lat: p.Lat, Lon: p.Lon})
	}

	return types.RawFeature{
		ID:       id,
		Kind:     "way",
		Tags:     types.NewTags(way.Tags),
		Geometry: geometry,
	}
}

// FileDataSource serves a saved Overpass JSON response instead of querying
// the network. The bounding box is ignored; the file is expected to cover
// the analysis area.
type FileDataSource struct {
	path string
}

// NewFileDataSource creates a data source backed by the file at path.
func NewFileDataSource(path string) *FileDataSource {
	return &FileDataSource{path: path}
}

// Fetch reads and decodes the file on every call.
func (ds *FileDataSource) Fetch(ctx context.Context, _ types.BoundingBox) (*types.RawDataset, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(ds.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read overpass response: %w", err)
	}
	features, err := DecodeResponse(data)
	if err != nil {
		return nil, err
	}

	return &types.RawDataset{
		FetchedAt: time.Now(),
		Endpoint:  "file://" + ds.path,
		Features:  features,
	}, nil
}
