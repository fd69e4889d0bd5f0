// Package geometry holds the planar geometry operations the classifier
// needs beyond orb: validity checks, self-intersection repair and clipping
// against a convex analysis region. Overlay and validation run on
// simplefeatures.
package geometry

import (
	"math"

	"github.com/paulmach/orb"
)

// NewRing builds a closed ring from an ordered vertex list, dropping
// consecutive duplicates. The input slice is not modified.
func NewRing(pts []orb.Point) orb.Ring {
	r := make(orb.Ring, 0, len(pts)+1)
	for _, p := range pts {
		if len(r) > 0 && r[len(r)-1] == p {
			continue
		}
		r = append(r, p)
	}
	if len(r) > 1 && r[0] == r[len(r)-1] {
		r = r[:len(r)-1]
	}
	if len(r) > 0 {
		r = append(r, r[0])
	}
	return r
}

// openVertices returns the ring vertices without the closing point.
func openVertices(r orb.Ring) []orb.Point {
	if len(r) > 1 && r[0] == r[len(r)-1] {
		return r[:len(r)-1]
	}
	return r
}

// closeRing appends the first vertex when the list is not already closed.
func closeRing(pts []orb.Point) orb.Ring {
	r := make(orb.Ring, 0, len(pts)+1)
	r = append(r, pts...)
	if len(r) > 0 && r[0] != r[len(r)-1] {
		r = append(r, r[0])
	}
	return r
}

// signedArea is the shoelace area of a ring, positive for CCW.
func signedArea(r orb.Ring) float64 {
	if len(r) < 3 {
		return 0
	}
	ox, oy := r[0][0], r[0][1]
	area := 0.0
	for i := 1; i < len(r)-1; i++ {
		area += (r[i][0]-ox)*(r[i+1][1]-oy) - (r[i+1][0]-ox)*(r[i][1]-oy)
	}
	return area / 2
}

// orientCCW returns r wound counter-clockwise.
func orientCCW(r orb.Ring) orb.Ring {
	if signedArea(r) < 0 {
		out := r.Clone()
		out.Reverse()
		return out
	}
	return r
}

func finite(p orb.Point) bool {
	return !math.IsNaN(p[0]) && !math.IsNaN(p[1]) && !math.IsInf(p[0], 0) && !math.IsInf(p[1], 0)
}

// cross returns (b-a) x (c-a).
func cross(a, b, c orb.Point) float64 {
	return (b[0]-a[0])*(c[1]-a[1]) - (b[1]-a[1])*(c[0]-a[0])
}

// properCrossing reports whether segments pq and rs cross at a single
// interior point of both, and returns that point. Touching and collinear
// overlap are not proper crossings.
func properCrossing(p, q, r, s orb.Point) (orb.Point, bool) {
	scale := (q[0]-p[0])*(q[0]-p[0]) + (q[1]-p[1])*(q[1]-p[1]) +
		(s[0]-r[0])*(s[0]-r[0]) + (s[1]-r[1])*(s[1]-r[1])
	eps := 1e-12 * scale

	o1 := cross(p, q, r)
	o2 := cross(p, q, s)
	o3 := cross(r, s, p)
	o4 := cross(r, s, q)
	if math.Abs(o1) <= eps || math.Abs(o2) <= eps || math.Abs(o3) <= eps || math.Abs(o4) <= eps {
		return orb.Point{}, false
	}
	if (o1 > 0) == (o2 > 0) || (o3 > 0) == (o4 > 0) {
		return orb.Point{}, false
	}

	t := o3 / (o3 - o4)
	return orb.Point{p[0] + t*(q[0]-p[0]), p[1] + t*(q[1]-p[1])}, true
}

// firstRepeat finds the first vertex that occurs again later in pts and
// returns both indices. pts must not contain consecutive duplicates.
func firstRepeat(pts []orb.Point) (a, b int, found bool) {
	seen := make(map[orb.Point]int, len(pts))
	for b, p := range pts {
		if a, ok := seen[p]; ok {
			return a, b, true
		}
		seen[p] = b
	}
	return 0, 0, false
}

// firstCrossing finds the first pair of non-adjacent edges (i < j) that
// cross properly. Edge k runs from pts[k] to pts[(k+1)%n].
func firstCrossing(pts []orb.Point) (i, j int, x orb.Point, found bool) {
	n := len(pts)
	for i = 0; i < n; i++ {
		p, q := pts[i], pts[(i+1)%n]
		for j = i + 2; j < n; j++ {
			if i == 0 && j == n-1 {
				continue
			}
			if x, ok := properCrossing(p, q, pts[j], pts[(j+1)%n]); ok {
				return i, j, x, true
			}
		}
	}
	return 0, 0, orb.Point{}, false
}
