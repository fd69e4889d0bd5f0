package types

import (
	"fmt"

	"github.com/paulmach/orb"
)

// BoundingBox represents a geographic bounding box in WGS84 (EPSG:4326)
type BoundingBox struct {
	MinLon float64 // Western edge (degrees)
	MinLat float64 // Southern edge (degrees)
	MaxLon float64 // Eastern edge (degrees)
	MaxLat float64 // Northern edge (degrees)
}

// BoundsAround returns the box extending delta degrees from center in
// every direction. Longitude and latitude use the same delta.
func BoundsAround(center GeoPoint, delta float64) BoundingBox {
	return BoundingBox{
		MinLon: center.Lon - delta,
		MinLat: center.Lat - delta,
		MaxLon: center.Lon + delta,
		MaxLat: center.Lat + delta,
	}
}

// String returns a human-readable representation of the bounding box
func (b BoundingBox) String() string {
	return fmt.Sprintf("bbox(%.6f,%.6f,%.6f,%.6f)", b.MinLat, b.MinLon, b.MaxLat, b.MaxLon)
}

// OverpassFilter formats the box in Overpass QL order: south,west,north,east.
func (b BoundingBox) OverpassFilter() string {
	return fmt.Sprintf("%.6f,%.6f,%.6f,%.6f", b.MinLat, b.MinLon, b.MaxLat, b.MaxLon)
}

// Contains reports whether p lies inside or on the edge of the box.
func (b BoundingBox) Contains(p GeoPoint) bool {
	return p.Lat >= b.MinLat && p.Lat <= b.MaxLat && p.Lon >= b.MinLon && p.Lon <= b.MaxLon
}

// Bound converts the box to an orb.Bound in (lon, lat) order.
func (b BoundingBox) Bound() orb.Bound {
	return orb.Bound{
		Min: orb.Point{b.MinLon, b.MinLat},
		Max: orb.Point{b.MaxLon, b.MaxLat},
	}
}
