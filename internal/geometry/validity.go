package geometry

import (
	"github.com/paulmach/orb"
	"github.com/peterstace/simplefeatures/geom"
)

// Reason explains why a geometry is invalid. The empty Reason means valid.
type Reason string

const (
	ReasonNone             Reason = ""
	ReasonEmpty            Reason = "empty"
	ReasonTooFewPoints     Reason = "too few points"
	ReasonNonFinite        Reason = "non-finite coordinate"
	ReasonZeroArea         Reason = "zero area"
	ReasonSelfIntersection Reason = "self-intersection"
	ReasonRingLayout       Reason = "invalid ring layout"
	ReasonRepairFailed     Reason = "repair failed"
	ReasonClipFailed       Reason = "clip failed"
)

// maxSplits bounds the work Repair does on pathological rings.
const maxSplits = 256

// Outcome is the tagged result of a validity check, optionally after a
// repair step.
type Outcome struct {
	Geometry orb.MultiPolygon
	Valid    bool
	Repaired bool
	Reason   Reason
}

// CheckRing validates a single closed ring. Rings must have at least three
// distinct vertices, finite coordinates and non-zero area, and must be
// simple: no crossings, no self-tangency and no repeated vertex.
func CheckRing(r orb.Ring) Reason {
	pts := openVertices(r)
	if len(pts) == 0 {
		return ReasonEmpty
	}
	if len(pts) < 3 {
		return ReasonTooFewPoints
	}
	for _, p := range pts {
		if !finite(p) {
			return ReasonNonFinite
		}
	}
	if signedArea(closeRing(pts)) == 0 {
		return ReasonZeroArea
	}
	if !toLineString(closeRing(pts)).IsSimple() {
		return ReasonSelfIntersection
	}
	return ReasonNone
}

// CheckPolygon validates every ring of p and then how the rings sit
// relative to each other: holes inside the shell, not nested, touching
// at most once and leaving the interior connected.
func CheckPolygon(p orb.Polygon) Reason {
	if len(p) == 0 {
		return ReasonEmpty
	}
	for _, r := range p {
		if reason := CheckRing(r); reason != ReasonNone {
			return reason
		}
	}
	if err := toPolygon(p).Validate(); err != nil {
		return ReasonRingLayout
	}
	return ReasonNone
}

// CheckMultiPolygon validates every polygon of mp. Parts may touch at
// points but must not overlap.
func CheckMultiPolygon(mp orb.MultiPolygon) Reason {
	if len(mp) == 0 {
		return ReasonEmpty
	}
	for _, p := range mp {
		if reason := CheckPolygon(p); reason != ReasonNone {
			return reason
		}
	}
	if len(mp) > 1 {
		if err := toMultiPolygon(mp).Validate(); err != nil {
			return ReasonRingLayout
		}
	}
	return ReasonNone
}

// Check wraps CheckMultiPolygon into an Outcome without repairing.
func Check(mp orb.MultiPolygon) Outcome {
	reason := CheckMultiPolygon(mp)
	return Outcome{Geometry: mp, Valid: reason == ReasonNone, Reason: reason}
}

// MakeValid checks mp and, when invalid, runs one explicit repair step and
// checks the repaired geometry again.
func MakeValid(mp orb.MultiPolygon) Outcome {
	if out := Check(mp); out.Valid {
		return out
	}

	repaired, ok := Repair(mp)
	if !ok {
		return Outcome{Geometry: mp, Repaired: true, Reason: ReasonRepairFailed}
	}
	out := Check(repaired)
	out.Repaired = true
	return out
}

// Repair rebuilds mp under the even-odd rule. Every ring, shell or hole,
// is cleaned and cut into simple loops at its crossings and repeated
// vertices. The loops of one polygon are folded together with a symmetric
// difference, so a loop nested inside another becomes a hole, and the
// polygons are then unioned. The second return value is false when nothing
// with area is left, the rings are too tangled to split, or the overlay
// fails.
func Repair(mp orb.MultiPolygon) (orb.MultiPolygon, bool) {
	budget := maxSplits
	parts := make([]geom.Geometry, 0, len(mp))

	for _, poly := range mp {
		acc := geom.Geometry{}
		for _, ring := range poly {
			loops, ok := splitLoops(cleanVertices(openVertices(ring)), &budget)
			if !ok {
				return nil, false
			}
			for _, loop := range loops {
				var err error
				acc, err = geom.SymmetricDifference(acc, toPolygon(orb.Polygon{loop}).AsGeometry())
				if err != nil {
					return nil, false
				}
			}
		}
		if !acc.IsEmpty() {
			parts = append(parts, acc)
		}
	}
	if len(parts) == 0 {
		return nil, false
	}

	merged, err := geom.UnionMany(parts)
	if err != nil {
		return nil, false
	}
	out := polygonsOf(merged)
	if len(out) == 0 {
		return nil, false
	}
	return out, true
}

// cleanVertices drops non-finite points and consecutive duplicates.
func cleanVertices(pts []orb.Point) []orb.Point {
	out := make([]orb.Point, 0, len(pts))
	for _, p := range pts {
		if !finite(p) {
			continue
		}
		if len(out) > 0 && out[len(out)-1] == p {
			continue
		}
		out = append(out, p)
	}
	for len(out) > 1 && out[0] == out[len(out)-1] {
		out = out[:len(out)-1]
	}
	return out
}

// splitLoops recursively cuts a vertex loop at repeated vertices and
// proper self-crossings and returns the resulting rings, closed and wound
// CCW.
func splitLoops(pts []orb.Point, budget *int) ([]orb.Ring, bool) {
	if len(pts) < 3 {
		return nil, true
	}

	if a, b, found := firstRepeat(pts); found {
		*budget--
		if *budget < 0 {
			return nil, false
		}
		inner := append([]orb.Point(nil), pts[a:b]...)
		outer := append(append([]orb.Point(nil), pts[:a]...), pts[b:]...)
		return splitBoth(inner, outer, budget)
	}

	i, j, x, found := firstCrossing(pts)
	if !found {
		r := closeRing(pts)
		if signedArea(r) == 0 {
			return nil, true
		}
		return []orb.Ring{orientCCW(r)}, true
	}

	*budget--
	if *budget < 0 {
		return nil, false
	}

	// loop a: x -> pts[i+1] .. pts[j] -> x
	a := make([]orb.Point, 0, j-i+1)
	a = append(a, x)
	a = append(a, pts[i+1:j+1]...)

	// loop b: pts[0] .. pts[i] -> x -> pts[j+1] .. pts[n-1]
	b := make([]orb.Point, 0, len(pts)-(j-i)+1)
	b = append(b, pts[:i+1]...)
	b = append(b, x)
	b = append(b, pts[j+1:]...)

	return splitBoth(a, b, budget)
}

func splitBoth(a, b []orb.Point, budget *int) ([]orb.Ring, bool) {
	ra, ok := splitLoops(cleanVertices(a), budget)
	if !ok {
		return nil, false
	}
	rb, ok := splitLoops(cleanVertices(b), budget)
	if !ok {
		return nil, false
	}
	return append(ra, rb...), true
}
