package geometry

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"github.com/peterstace/simplefeatures/geom"
)

// ConvexRegion is a convex clipping boundary, stored counter-clockwise.
type ConvexRegion struct {
	ring  orb.Ring
	bound orb.Bound
	shape geom.Geometry
}

// NewConvexRegion validates that r is a convex ring and normalizes its
// winding. Collinear vertices are allowed.
func NewConvexRegion(r orb.Ring) (*ConvexRegion, error) {
	if reason := CheckRing(r); reason != ReasonNone {
		return nil, errors.New("clip region: " + string(reason))
	}
	ring := orientCCW(closeRing(openVertices(r)))

	pts := openVertices(ring)
	n := len(pts)
	for i := 0; i < n; i++ {
		if cross(pts[i], pts[(i+1)%n], pts[(i+2)%n]) < 0 {
			return nil, errors.New("clip region: ring is not convex")
		}
	}

	return &ConvexRegion{
		ring:  ring,
		bound: ring.Bound(),
		shape: toPolygon(orb.Polygon{ring}).AsGeometry(),
	}, nil
}

// Ring returns the region boundary (closed, CCW).
func (c *ConvexRegion) Ring() orb.Ring {
	return c.ring
}

// Bound returns the bounding box of the region.
func (c *ConvexRegion) Bound() orb.Bound {
	return c.bound
}

// Polygon returns the region as a polygon.
func (c *ConvexRegion) Polygon() orb.Polygon {
	return orb.Polygon{c.ring.Clone()}
}

// Contains reports whether p is inside or on the region boundary.
func (c *ConvexRegion) Contains(p orb.Point) bool {
	pts := openVertices(c.ring)
	n := len(pts)
	for i := 0; i < n; i++ {
		if cross(pts[i], pts[(i+1)%n], p) < 0 {
			return false
		}
	}
	return true
}

func (c *ConvexRegion) containsAll(pts []orb.Point) bool {
	for _, p := range pts {
		if !c.Contains(p) {
			return false
		}
	}
	return true
}

// ClipMultiPolygon intersects a valid multipolygon with the region.
// Polygons whose shell lies inside the region are passed through as they
// are; the rest go through a polygon overlay. A concave polygon that leaves
// and re-enters the region comes back as several disjoint polygons. The
// result is empty when nothing of mp lies inside.
func (c *ConvexRegion) ClipMultiPolygon(mp orb.MultiPolygon) (orb.MultiPolygon, error) {
	var out, crossing orb.MultiPolygon
	for _, p := range mp {
		if len(p) == 0 || !c.bound.Intersects(p.Bound()) {
			continue
		}
		if c.containsAll(p[0]) {
			out = append(out, p)
			continue
		}
		crossing = append(crossing, p)
	}
	if len(crossing) == 0 {
		return out, nil
	}

	g, err := geom.Intersection(toMultiPolygon(crossing).AsGeometry(), c.shape)
	if err != nil {
		return nil, fmt.Errorf("failed to clip polygon: %w", err)
	}
	return append(out, polygonsOf(g)...), nil
}

// ClipLineString intersects a line with the region. Each maximal run
// inside the region becomes its own line, ordered and directed like ls,
// so a line that crosses the region twice yields two pieces.
func (c *ConvexRegion) ClipLineString(ls orb.LineString) (orb.MultiLineString, error) {
	route := dedupe(ls)
	if len(route) < 2 || !c.bound.Intersects(route.Bound()) {
		return nil, nil
	}
	if c.containsAll(route) {
		return orb.MultiLineString{route}, nil
	}

	g, err := geom.Intersection(toLineString(route).AsGeometry(), c.shape)
	if err != nil {
		return nil, fmt.Errorf("failed to clip line: %w", err)
	}
	return chainPieces(route, linesOf(g)), nil
}

// dedupe drops consecutive duplicate vertices.
func dedupe(ls orb.LineString) orb.LineString {
	out := make(orb.LineString, 0, len(ls))
	for _, p := range ls {
		if len(out) > 0 && out[len(out)-1] == p {
			continue
		}
		out = append(out, p)
	}
	return out
}

// chainPieces turns overlay output, which is split at every node and
// directed arbitrarily, back into runs that follow route.
func chainPieces(route orb.LineString, pieces []orb.LineString) orb.MultiLineString {
	type run struct {
		line  orb.LineString
		start float64
	}

	runs := make([]run, 0, len(pieces))
	for _, p := range pieces {
		if len(p) < 2 {
			continue
		}
		s0, s1 := position(route, p[0]), position(route, p[len(p)-1])
		if s1 < s0 {
			p = p.Clone()
			p.Reverse()
			s0 = s1
		}
		runs = append(runs, run{line: p, start: s0})
	}
	sort.SliceStable(runs, func(i, j int) bool { return runs[i].start < runs[j].start })

	var out orb.MultiLineString
	for _, r := range runs {
		if n := len(out); n > 0 {
			last := out[n-1]
			if last[len(last)-1] == r.line[0] {
				out[n-1] = append(last, r.line[1:]...)
				continue
			}
		}
		out = append(out, r.line.Clone())
	}
	return out
}

// position returns the distance along route to the point of route closest
// to p.
func position(route orb.LineString, p orb.Point) float64 {
	best, bestDist, walked := 0.0, math.Inf(1), 0.0
	for i := 0; i+1 < len(route); i++ {
		a, b := route[i], route[i+1]
		seg := planar.Distance(a, b)
		t := 0.0
		if seg > 0 {
			t = ((p[0]-a[0])*(b[0]-a[0]) + (p[1]-a[1])*(b[1]-a[1])) / (seg * seg)
			t = math.Max(0, math.Min(1, t))
		}
		if d := planar.Distance(p, lerp(a, b, t)); d < bestDist {
			best, bestDist = walked+t*seg, d
		}
		walked += seg
	}
	return best
}

func lerp(a, b orb.Point, t float64) orb.Point {
	if t == 0 {
		return a
	}
	if t == 1 {
		return b
	}
	return orb.Point{a[0] + t*(b[0]-a[0]), a[1] + t*(b[1]-a[1])}
}
