package geometry

import (
	"github.com/paulmach/orb"
	"github.com/peterstace/simplefeatures/geom"
)

// The overlay and validation work runs on simplefeatures geometries; the
// rest of the module speaks orb. These helpers convert at the boundary.

func toSequence(pts []orb.Point) geom.Sequence {
	coords := make([]float64, 0, 2*len(pts))
	for _, p := range pts {
		coords = append(coords, p[0], p[1])
	}
	return geom.NewSequence(coords, geom.DimXY)
}

func fromSequence(seq geom.Sequence) []orb.Point {
	n := seq.Length()
	pts := make([]orb.Point, n)
	for i := 0; i < n; i++ {
		xy := seq.GetXY(i)
		pts[i] = orb.Point{xy.X, xy.Y}
	}
	return pts
}

func toLineString(pts []orb.Point) geom.LineString {
	return geom.NewLineString(toSequence(pts))
}

func toPolygon(p orb.Polygon) geom.Polygon {
	rings := make([]geom.LineString, 0, len(p))
	for _, r := range p {
		rings = append(rings, toLineString(closeRing(openVertices(r))))
	}
	return geom.NewPolygon(rings)
}

func toMultiPolygon(mp orb.MultiPolygon) geom.MultiPolygon {
	polys := make([]geom.Polygon, 0, len(mp))
	for _, p := range mp {
		polys = append(polys, toPolygon(p))
	}
	return geom.NewMultiPolygon(polys)
}

// polygonsOf collects the areal parts of g. Lines and points that an
// overlay may emit where inputs only touch are dropped.
func polygonsOf(g geom.Geometry) orb.MultiPolygon {
	var out orb.MultiPolygon
	for _, part := range g.Dump() {
		poly, ok := part.AsPolygon()
		if !ok || poly.IsEmpty() {
			continue
		}
		seqs := poly.Coordinates()
		p := make(orb.Polygon, 0, len(seqs))
		for _, seq := range seqs {
			p = append(p, orb.Ring(fromSequence(seq)))
		}
		out = append(out, p)
	}
	return out
}

// linesOf collects the linear parts of g.
func linesOf(g geom.Geometry) []orb.LineString {
	var out []orb.LineString
	for _, part := range g.Dump() {
		ls, ok := part.AsLineString()
		if !ok || ls.IsEmpty() {
			continue
		}
		out = append(out, orb.LineString(fromSequence(ls.Coordinates())))
	}
	return out
}
