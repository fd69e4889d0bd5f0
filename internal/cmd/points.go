package cmd

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/MeKo-Tech/congestionmap/internal/pipeline"
	"github.com/MeKo-Tech/congestionmap/internal/types"
)

// parseCoord parses "lat, lng" as typed into a map search box.
func parseCoord(s string) (types.GeoPoint, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return types.GeoPoint{}, fmt.Errorf("expected \"lat, lng\", got %q", s)
	}

	var vals [2]float64
	for i, part := range parts {
		val, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return types.GeoPoint{}, fmt.Errorf("invalid number at position %d: %w", i, err)
		}
		vals[i] = val
	}
	return types.GeoPoint{Lat: vals[0], Lon: vals[1]}, nil
}

// PointsFile is the YAML document read by the batch command.
//
//	radius: 600
//	points:
//	  - name: FC Road
//	    coord: "18.5236, 73.8478"
//	  - name: Hinjewadi
//	    lat: 18.5913
//	    lng: 73.7389
//	    radius: 1000
type PointsFile struct {
	Radius float64      `yaml:"radius"`
	Points []PointEntry `yaml:"points"`
}

// PointEntry is one location to analyze. Coord takes precedence over
// Lat/Lng; a zero Radius falls back to the file default.
type PointEntry struct {
	Name   string   `yaml:"name"`
	Coord  string   `yaml:"coord"`
	Lat    *float64 `yaml:"lat"`
	Lng    *float64 `yaml:"lng"`
	Radius float64  `yaml:"radius"`
}

// loadPoints reads a points file and converts it into labelled requests.
func loadPoints(path string, defaultRadius float64) ([]string, []pipeline.Request, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read points file: %w", err)
	}
	return parsePoints(data, defaultRadius)
}

func parsePoints(data []byte, defaultRadius float64) ([]string, []pipeline.Request, error) {
	var doc PointsFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, nil, fmt.Errorf("failed to parse points file: %w", err)
	}
	if len(doc.Points) == 0 {
		return nil, nil, fmt.Errorf("points file lists no points")
	}
	if doc.Radius > 0 {
		defaultRadius = doc.Radius
	}

	labels := make([]string, 0, len(doc.Points))
	reqs := make([]pipeline.Request, 0, len(doc.Points))
	for i, p := range doc.Points {
		var center types.GeoPoint
		switch {
		case p.Coord != "":
			c, err := parseCoord(p.Coord)
			if err != nil {
				return nil, nil, fmt.Errorf("point %d: %w", i+1, err)
			}
			center = c
		case p.Lat != nil && p.Lng != nil:
			center = types.GeoPoint{Lat: *p.Lat, Lon: *p.Lng}
		default:
			return nil, nil, fmt.Errorf("point %d: needs coord or lat and lng", i+1)
		}

		radius := p.Radius
		if radius == 0 {
			radius = defaultRadius
		}

		label := p.Name
		if label == "" {
			label = fmt.Sprintf("%.4f,%.4f", center.Lat, center.Lon)
		}

		labels = append(labels, label)
		reqs = append(reqs, pipeline.Request{Lat: center.Lat, Lng: center.Lon, Radius: radius})
	}
	return labels, reqs, nil
}
