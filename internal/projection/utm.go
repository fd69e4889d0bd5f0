// Package projection maps WGS84 coordinates into a local UTM frame so that
// lengths and areas around a query point can be measured in meters.
package projection

import (
	"fmt"
	"math"

	"github.com/MeKo-Tech/congestionmap/internal/types"
	"github.com/paulmach/orb"
	"github.com/wroge/wgs84"
)

const (
	// inverseStep is the finite-difference step, in degrees, used to
	// linearize the forward projection while refining an inverse.
	inverseStep = 1e-6
	// inverseTolerance is the planar residual, in meters, accepted by
	// Inverse.
	inverseTolerance = 1e-6
	inverseMaxIter   = 8
)

// Transform is a forward/inverse pair between WGS84 and one UTM zone.
// It is derived from a single query point and must not be reused for a
// query in a different zone.
type Transform struct {
	center types.GeoPoint
	zone   int
	south  bool
	toUTM  wgs84.Func
	toGeo  wgs84.Func
}

// ZoneFor returns the 6°-wide UTM zone number (1..60) for a longitude.
func ZoneFor(lng float64) int {
	return int(math.Mod(math.Floor((lng+180)/6), 60)) + 1
}

// New selects the UTM zone and hemisphere for (lat, lng).
func New(lat, lng float64) (*Transform, error) {
	if math.IsNaN(lat) || lat < -90 || lat > 90 {
		return nil, &types.InvalidInputError{Field: "latitude", Value: lat, Constraint: "within [-90, 90]"}
	}
	if math.IsNaN(lng) || lng < -180 || lng > 180 {
		return nil, &types.InvalidInputError{Field: "longitude", Value: lng, Constraint: "within [-180, 180]"}
	}

	zone := ZoneFor(lng)
	south := lat < 0
	crs := wgs84.UTM(float64(zone), !south)

	return &Transform{
		center: types.GeoPoint{Lat: lat, Lon: lng},
		zone:   zone,
		south:  south,
		toUTM:  wgs84.LonLat().To(crs),
		toGeo:  wgs84.LonLat().From(crs),
	}, nil
}

// Zone returns the UTM zone number.
func (t *Transform) Zone() int {
	return t.zone
}

// South reports whether the southern-hemisphere variant is used.
func (t *Transform) South() bool {
	return t.south
}

// Center returns the query point the transform was derived from.
func (t *Transform) Center() types.GeoPoint {
	return t.center
}

// EPSG returns the EPSG code of the selected WGS84 / UTM zone.
func (t *Transform) EPSG() int {
	if t.south {
		return 32700 + t.zone
	}
	return 32600 + t.zone
}

// Proj4 returns the PROJ definition string of the selected zone.
func (t *Transform) Proj4() string {
	hemi := "north"
	if t.south {
		hemi = "south"
	}
	return fmt.Sprintf("+proj=utm +zone=%d +%s +datum=WGS84 +units=m +no_defs", t.zone, hemi)
}

// Forward projects a geographic point to planar (easting, northing) meters.
func (t *Transform) Forward(p types.GeoPoint) orb.Point {
	east, north, _ := t.toUTM(p.Lon, p.Lat, 0)
	return orb.Point{east, north}
}

// Inverse maps a planar point back to WGS84. The library inverse is used
// as the starting point and refined with Newton steps against Forward,
// so Inverse(Forward(p)) reproduces p to well below a millimeter.
func (t *Transform) Inverse(p orb.Point) types.GeoPoint {
	lon, lat, _ := t.toGeo(p[0], p[1], 0)

	for i := 0; i < inverseMaxIter; i++ {
		e0, n0, _ := t.toUTM(lon, lat, 0)
		de, dn := p[0]-e0, p[1]-n0
		if math.Abs(de) < inverseTolerance && math.Abs(dn) < inverseTolerance {
			break
		}

		e1, n1, _ := t.toUTM(lon+inverseStep, lat, 0)
		e2, n2, _ := t.toUTM(lon, lat+inverseStep, 0)
		dEdLon, dEdLat := (e1-e0)/inverseStep, (e2-e0)/inverseStep
		dNdLon, dNdLat := (n1-n0)/inverseStep, (n2-n0)/inverseStep

		det := dEdLon*dNdLat - dEdLat*dNdLon
		if det == 0 || math.IsNaN(det) {
			break
		}
		lon += (dNdLat*de - dEdLat*dn) / det
		lat += (dEdLon*dn - dNdLon*de) / det
	}

	return types.GeoPoint{Lat: lat, Lon: lon}
}

// ForwardProjection adapts Forward to orb's (lon, lat) convention for use
// with the orb/project helpers.
func (t *Transform) ForwardProjection() orb.Projection {
	return func(p orb.Point) orb.Point {
		return t.Forward(types.GeoPointFromOrb(p))
	}
}

// InverseProjection adapts Inverse to orb's (lon, lat) convention.
func (t *Transform) InverseProjection() orb.Projection {
	return func(p orb.Point) orb.Point {
		return t.Inverse(p).OrbPoint()
	}
}
