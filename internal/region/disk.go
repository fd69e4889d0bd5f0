// Package region builds the circular analysis area around a query point
// and the geographic box used to request map data for it.
package region

import (
	"fmt"
	"math"

	"github.com/MeKo-Tech/congestionmap/internal/geometry"
	"github.com/MeKo-Tech/congestionmap/internal/projection"
	"github.com/MeKo-Tech/congestionmap/internal/types"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

const (
	// Segments is the number of edges of the polygonal circle. With 128 the
	// polygon area is within 0.05% of the exact disk.
	Segments = 128

	// metersPerDegree is the rough length of one degree used for the fetch box.
	metersPerDegree = 111000.0

	// fetchSafetyFactor widens the fetch box so features that cross the
	// circle edge arrive with their full geometry.
	fetchSafetyFactor = 2.0
)

// Disk is the analysis area in the planar frame of a Transform.
type Disk struct {
	center orb.Point
	radius float64
	region *geometry.ConvexRegion
}

// NewDisk builds the disk of the given radius (meters) around the
// transform's query point.
func NewDisk(t *projection.Transform, radius float64) (*Disk, error) {
	if math.IsNaN(radius) || math.IsInf(radius, 0) || radius <= 0 {
		return nil, &types.InvalidInputError{Field: "radius", Value: radius, Constraint: "a positive number of meters"}
	}

	center := t.Forward(t.Center())
	ring := make(orb.Ring, 0, Segments+1)
	for i := 0; i < Segments; i++ {
		a := 2 * math.Pi * float64(i) / Segments
		ring = append(ring, orb.Point{
			center[0] + radius*math.Cos(a),
			center[1] + radius*math.Sin(a),
		})
	}
	ring = append(ring, ring[0])

	region, err := geometry.NewConvexRegion(ring)
	if err != nil {
		return nil, fmt.Errorf("failed to build analysis disk: %w", err)
	}

	return &Disk{center: center, radius: radius, region: region}, nil
}

// Center returns the disk center in planar meters.
func (d *Disk) Center() orb.Point {
	return d.center
}

// Radius returns the radius in meters.
func (d *Disk) Radius() float64 {
	return d.radius
}

// Region returns the clipping region backing the disk.
func (d *Disk) Region() *geometry.ConvexRegion {
	return d.region
}

// Polygon returns a copy of the polygonal approximation.
func (d *Disk) Polygon() orb.Polygon {
	return d.region.Polygon()
}

// Bound returns the planar bounding box of the disk polygon.
func (d *Disk) Bound() orb.Bound {
	return d.region.Bound()
}

// Area returns the area of the polygonal approximation.
func (d *Disk) Area() float64 {
	return planar.Area(d.region.Ring())
}

// ExactArea returns πr², the area used for all ratios.
func (d *Disk) ExactArea() float64 {
	return math.Pi * d.radius * d.radius
}

// WithinBounds reports whether every vertex of the disk polygon, mapped
// back through t, lies inside b. Far from the equator a box with equal
// degree offsets gets too narrow in longitude to cover the disk.
func (d *Disk) WithinBounds(t *projection.Transform, b types.BoundingBox) bool {
	for _, p := range d.region.Ring() {
		if !b.Contains(t.Inverse(p)) {
			return false
		}
	}
	return true
}

// FetchBounds returns the geographic box to request data for. The same
// degree offset is applied to latitude and longitude.
func FetchBounds(center types.GeoPoint, radius float64) types.BoundingBox {
	return types.BoundsAround(center, radius/metersPerDegree*fetchSafetyFactor)
}
