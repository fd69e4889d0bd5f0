package cmd

import (
	"fmt"
	"io"
	"math"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"

	"github.com/MeKo-Tech/congestionmap/internal/pipeline"
	"github.com/MeKo-Tech/congestionmap/internal/worker"
)

func squareMeters(v float64) string {
	return humanize.Comma(int64(math.Round(v))) + " m²"
}

func percent(num, den float64) string {
	if den <= 0 {
		return "0.0%"
	}
	return fmt.Sprintf("%.1f%%", num/den*100)
}

// writeReport prints the human-readable land-use summary of one analysis.
func writeReport(w io.Writer, res *pipeline.Result) {
	m := res.Metrics
	req := res.Request

	fmt.Fprintf(w, "Analysis zone: %s m radius around %.4f°, %.4f° (UTM %d%s, EPSG:%d)\n",
		humanize.Comma(int64(math.Round(req.Radius))), req.Lat, req.Lng,
		res.Transform.Zone(), hemisphere(res.Transform.South()), res.Transform.EPSG())
	fmt.Fprintf(w, "Projection: %s\n", res.Transform.Proj4())
	fmt.Fprintf(w, "Congestion: %.1f/10 (%s)\n\n", res.Score.Value, res.Score.Level)

	fmt.Fprintln(w, "Land use")
	fmt.Fprintf(w, "  Built-up area (on land): %.1f%%\n", res.Score.UsedRatio*100)
	fmt.Fprintf(w, "    Buildings: %s (%d detected)\n", squareMeters(m.TotalBuildingArea), m.DetectedBuildings)
	fmt.Fprintf(w, "    Roads:     %s\n", squareMeters(m.TotalRoadArea))
	fmt.Fprintf(w, "  True open space: %s (%s)\n", squareMeters(m.TrueOpenSpace), percent(m.TrueOpenSpace, m.EffectiveLandArea))
	fmt.Fprintf(w, "  Water bodies (excluded): %s (%s)\n", squareMeters(m.WaterArea), percent(m.WaterArea, m.AnalysisArea))

	top := m.TopBuildingTypes(pipeline.TopTypes)
	if len(top) > 0 {
		fmt.Fprintf(w, "\nTop %d building types\n", len(top))
		for _, t := range top {
			fmt.Fprintf(w, "  %s: %s (%.1f%%)\n", t.Label, squareMeters(t.Area), t.Share*100)
		}
	}

	d := res.Diagnostics
	if d.ParseWarnings+d.RepairFailures > 0 {
		fmt.Fprintf(w, "\nSkipped %d features (%d parse warnings, %d repair failures)\n",
			d.ParseWarnings+d.RepairFailures, d.ParseWarnings, d.RepairFailures)
		keys := d.ReasonKeys()
		for _, k := range keys {
			fmt.Fprintf(w, "  %s: %d\n", k, d.Reasons[k])
		}
	}

	fmt.Fprintf(w, "\nSource: %s (%s raw features, fetched %s)\n",
		res.Endpoint, humanize.Comma(int64(res.RawFeatures)), humanize.Time(res.FetchedAt))
}

func hemisphere(south bool) string {
	if south {
		return "S"
	}
	return "N"
}

// writeBatchTable prints one row per batch result.
func writeBatchTable(w io.Writer, results []worker.Result) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "POINT\tSCORE\tLEVEL\tBUILT-UP\tBUILDINGS\tROADS\tWATER\tERROR")
	for _, r := range results {
		if r.Err != nil {
			fmt.Fprintf(tw, "%s\t-\t-\t-\t-\t-\t-\t%s\n", r.Task.Label, oneLine(r.Err.Error()))
			continue
		}
		m := r.Analysis.Metrics
		fmt.Fprintf(tw, "%s\t%.1f\t%s\t%.1f%%\t%s\t%s\t%s\t\n",
			r.Task.Label, r.Analysis.Score.Value, r.Analysis.Score.Level,
			r.Analysis.Score.UsedRatio*100,
			squareMeters(m.TotalBuildingArea), squareMeters(m.TotalRoadArea), squareMeters(m.WaterArea))
	}
	return tw.Flush()
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
