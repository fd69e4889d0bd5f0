package classify

import (
	"log/slog"
	"math"
	"sort"

	"github.com/MeKo-Tech/congestionmap/internal/geometry"
	"github.com/MeKo-Tech/congestionmap/internal/projection"
	"github.com/MeKo-Tech/congestionmap/internal/region"
	"github.com/MeKo-Tech/congestionmap/internal/types"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// Building is a building footprint clipped to the analysis disk.
type Building struct {
	ID       int64
	Geometry orb.MultiPolygon
	Tag      string // normalized, e.g. "building=house"
	Area     float64
}

// Road is one clipped piece of a highway way. A way that crosses the disk
// boundary more than once yields several Roads sharing width and source.
type Road struct {
	ID          int64
	Geometry    orb.LineString
	Width       float64
	WidthSource WidthSource
	Highway     string
	Name        string
	Length      float64
}

// Area is the paved surface estimate of the piece.
func (r Road) Area() float64 {
	return r.Length * r.Width
}

// Water is a permanent water body clipped to the analysis disk.
type Water struct {
	ID       int64
	Geometry orb.MultiPolygon
	Area     float64
}

// Classification holds the per-category results of one Classify call.
type Classification struct {
	Buildings   []Building
	Roads       []Road
	Water       []Water
	Diagnostics Diagnostics
}

// Classifier sorts raw features into buildings, roads and water and clips
// them to a disk. It holds only static configuration and is safe for
// concurrent use.
type Classifier struct {
	cfg Config
}

// New creates a classifier. Unset numeric fields fall back to DefaultConfig.
func New(cfg Config) *Classifier {
	def := DefaultConfig()
	if cfg.LaneWidth <= 0 {
		cfg.LaneWidth = def.LaneWidth
	}
	if cfg.MinExplicitWidth <= 0 {
		cfg.MinExplicitWidth = def.MinExplicitWidth
	}
	if cfg.MinLanesWidth <= 0 {
		cfg.MinLanesWidth = def.MinLanesWidth
	}
	if cfg.DefaultWidth <= 0 {
		cfg.DefaultWidth = def.DefaultWidth
	}
	if cfg.PromoteWidth <= 0 {
		cfg.PromoteWidth = def.PromoteWidth
	}
	if cfg.MinLength <= 0 {
		cfg.MinLength = def.MinLength
	}

	widths := cfg.FallbackWidths
	if widths == nil {
		widths = def.FallbackWidths
	}
	cfg.FallbackWidths = make(map[string]float64, len(widths))
	for k, v := range widths {
		cfg.FallbackWidths[k] = v
	}

	return &Classifier{cfg: cfg}
}

// Config returns a copy of the classifier's configuration.
func (c *Classifier) Config() Config {
	cfg := c.cfg
	cfg.FallbackWidths = make(map[string]float64, len(c.cfg.FallbackWidths))
	for k, v := range c.cfg.FallbackWidths {
		cfg.FallbackWidths[k] = v
	}
	return cfg
}

func (c *Classifier) log() *slog.Logger {
	if c.cfg.Logger != nil {
		return c.cfg.Logger
	}
	return slog.Default()
}

// Classify projects every feature with t and clips it to disk. A feature
// whose tags match several categories is considered for each of them.
// Malformed features are counted in the diagnostics and skipped.
func (c *Classifier) Classify(features []types.RawFeature, t *projection.Transform, disk *region.Disk) *Classification {
	out := &Classification{Diagnostics: newDiagnostics()}
	for _, f := range features {
		if types.IsBuilding(f.Tags) {
			if b, ok := c.building(f, t, disk, &out.Diagnostics); ok {
				out.Buildings = append(out.Buildings, b)
			}
		}
		if types.IsRoad(f.Tags) {
			out.Roads = append(out.Roads, c.road(f, t, disk, &out.Diagnostics)...)
		}
		if types.IsWater(f.Tags) {
			if w, ok := c.water(f, t, disk, &out.Diagnostics); ok {
				out.Water = append(out.Water, w)
			}
		}
	}

	c.log().Debug("classified features",
		"raw", len(features),
		"buildings", len(out.Buildings),
		"roads", len(out.Roads),
		"water", len(out.Water),
		"parse_warnings", out.Diagnostics.ParseWarnings,
		"repair_failures", out.Diagnostics.RepairFailures)
	return out
}

func (c *Classifier) building(f types.RawFeature, t *projection.Transform, disk *region.Disk, d *Diagnostics) (Building, bool) {
	area, ok := c.area(f, types.FeatureTypeBuilding, t, disk, d)
	if !ok {
		return Building{}, false
	}
	return Building{
		ID:       f.ID,
		Geometry: area.geometry,
		Tag:      NormalizeBuildingTag(f.Tags.Get("building")),
		Area:     area.area,
	}, true
}

func (c *Classifier) water(f types.RawFeature, t *projection.Transform, disk *region.Disk, d *Diagnostics) (Water, bool) {
	area, ok := c.area(f, types.FeatureTypeWater, t, disk, d)
	if !ok {
		return Water{}, false
	}
	return Water{ID: f.ID, Geometry: area.geometry, Area: area.area}, true
}

type clippedArea struct {
	geometry orb.MultiPolygon
	area     float64
}

// area runs the polygon path shared by buildings and water: project,
// check and repair, clip to the disk, check and repair again.
func (c *Classifier) area(f types.RawFeature, kind types.FeatureType, t *projection.Transform, disk *region.Disk, d *Diagnostics) (clippedArea, bool) {
	if len(f.Geometry) < 3 {
		d.parseWarning(kind, "too few points")
		c.skip(f, kind, "too few points")
		return clippedArea{}, false
	}
	pts, ok := project(f.Geometry, t)
	if !ok {
		d.parseWarning(kind, "non-finite coordinate")
		c.skip(f, kind, "non-finite coordinate")
		return clippedArea{}, false
	}

	poly := geometry.MakeValid(orb.MultiPolygon{{geometry.NewRing(pts)}})
	if !poly.Valid {
		d.repairFailure(kind, poly.Reason)
		c.skip(f, kind, string(poly.Reason))
		return clippedArea{}, false
	}
	if poly.Repaired {
		d.Repaired++
	}

	clipped, err := disk.Region().ClipMultiPolygon(poly.Geometry)
	if err != nil {
		d.repairFailure(kind, geometry.ReasonClipFailed)
		c.log().Debug("skipping feature", "ref", f.Ref(), "category", kind, "error", err)
		return clippedArea{}, false
	}
	if len(clipped) == 0 {
		d.Outside++
		return clippedArea{}, false
	}

	result := geometry.MakeValid(clipped)
	if !result.Valid {
		d.repairFailure(kind, result.Reason)
		c.skip(f, kind, "clipped "+string(result.Reason))
		return clippedArea{}, false
	}
	if result.Repaired {
		d.Repaired++
	}

	return clippedArea{geometry: result.Geometry, area: planar.Area(result.Geometry)}, true
}

func (c *Classifier) road(f types.RawFeature, t *projection.Transform, disk *region.Disk, d *Diagnostics) []Road {
	const kind = types.FeatureTypeRoad

	if f.Kind != "way" {
		d.note(kind, "not a way")
		return nil
	}
	if len(f.Geometry) < 2 {
		d.parseWarning(kind, "too few points")
		c.skip(f, kind, "too few points")
		return nil
	}
	pts, ok := project(f.Geometry, t)
	if !ok {
		d.parseWarning(kind, "non-finite coordinate")
		c.skip(f, kind, "non-finite coordinate")
		return nil
	}

	line := orb.LineString(pts)
	if planar.Length(line) < c.cfg.MinLength {
		d.note(kind, "too short")
		return nil
	}

	width, source, malformed := c.cfg.WidthFor(f.Tags)
	if malformed {
		d.parseWarning(kind, "unparseable width or lanes")
	}

	pieces, err := disk.Region().ClipLineString(line)
	if err != nil {
		d.parseWarning(kind, string(geometry.ReasonClipFailed))
		c.log().Debug("skipping feature", "ref", f.Ref(), "category", kind, "error", err)
		return nil
	}
	total := 0.0
	for _, p := range pieces {
		total += planar.Length(p)
	}
	if len(pieces) == 0 {
		d.Outside++
		return nil
	}
	if total < c.cfg.MinLength {
		d.note(kind, "clipped too short")
		return nil
	}

	reported := c.cfg.ReportedSource(width, source)
	roads := make([]Road, 0, len(pieces))
	for _, p := range pieces {
		length := planar.Length(p)
		if length <= 0 {
			continue
		}
		roads = append(roads, Road{
			ID:          f.ID,
			Geometry:    p,
			Width:       width,
			WidthSource: reported,
			Highway:     f.Tags.Get("highway"),
			Name:        f.Tags.Get("name"),
			Length:      length,
		})
	}
	return roads
}

func (c *Classifier) skip(f types.RawFeature, kind types.FeatureType, reason string) {
	c.log().Debug("skipping feature", "ref", f.Ref(), "category", kind, "reason", reason, "tags", f.Tags.Keys())
}

// project maps geographic points into the planar frame and rejects
// non-finite results.
func project(geo []types.GeoPoint, t *projection.Transform) ([]orb.Point, bool) {
	pts := make([]orb.Point, 0, len(geo))
	for _, g := range geo {
		p := t.Forward(g)
		if math.IsNaN(p[0]) || math.IsNaN(p[1]) || math.IsInf(p[0], 0) || math.IsInf(p[1], 0) {
			return nil, false
		}
		pts = append(pts, p)
	}
	return pts, true
}

// Diagnostics counts what happened to features that did not make it into
// the classification. None of these abort a run.
type Diagnostics struct {
	// ParseWarnings counts malformed raw features and unparseable tags.
	ParseWarnings int
	// RepairFailures counts polygons that stayed invalid after repair.
	RepairFailures int
	// Repaired counts polygons that needed and passed a repair step.
	Repaired int
	// Outside counts features with nothing left after clipping.
	Outside int
	// Reasons counts every recorded event keyed by "<category>: <reason>".
	Reasons map[string]int
}

func newDiagnostics() Diagnostics {
	return Diagnostics{Reasons: make(map[string]int)}
}

func (d *Diagnostics) parseWarning(kind types.FeatureType, reason string) {
	d.ParseWarnings++
	d.note(kind, reason)
}

func (d *Diagnostics) repairFailure(kind types.FeatureType, reason geometry.Reason) {
	d.RepairFailures++
	d.note(kind, string(reason))
}

func (d *Diagnostics) note(kind types.FeatureType, reason string) {
	if d.Reasons == nil {
		d.Reasons = make(map[string]int)
	}
	d.Reasons[string(kind)+": "+reason]++
}

// ReasonKeys returns the recorded reason keys in sorted order.
func (d Diagnostics) ReasonKeys() []string {
	keys := make([]string, 0, len(d.Reasons))
	for k := range d.Reasons {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
