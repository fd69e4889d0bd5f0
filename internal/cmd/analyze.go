package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/MeKo-Tech/congestionmap/internal/geojson"
	"github.com/MeKo-Tech/congestionmap/internal/pipeline"
)

// DefaultRadius is the analysis radius in meters when none is given.
const DefaultRadius = 600

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Analyze land cover and congestion around one point",
	Long: `Analyze fetches OpenStreetMap buildings, roads and water around a point
and prints the land-use summary and congestion score.

The point is given either as --lat/--lng or as --coord "lat, lng".`,
	Example: `  congestionmap analyze --coord "18.5204, 73.8567" --radius 800
  congestionmap analyze --lat 18.5204 --lng 73.8567 --format json
  congestionmap analyze --coord "18.5204, 73.8567" --geojson zone.geojson`,
	RunE: runAnalyze,
}

func init() {
	rootCmd.AddCommand(analyzeCmd)

	analyzeCmd.Flags().Float64("lat", 0, "Latitude of the analysis center")
	analyzeCmd.Flags().Float64("lng", 0, "Longitude of the analysis center")
	analyzeCmd.Flags().String("coord", "", "Analysis center as \"lat, lng\" (overrides --lat/--lng)")
	analyzeCmd.Flags().Float64P("radius", "r", DefaultRadius, "Analysis radius in meters")
	analyzeCmd.Flags().String("format", "text", "Report format: text or json")
	analyzeCmd.Flags().String("geojson", "", "Write the classified features as GeoJSON to this file")
	analyzeCmd.Flags().StringSlice("layers", nil, "GeoJSON layers to export (analysis-zone, water, roads, buildings)")
	analyzeCmd.Flags().String("overpass-file", "", "Read a saved Overpass JSON response instead of querying the API")

	bindFlags := []struct {
		key  string
		flag string
	}{
		{"analyze.lat", "lat"},
		{"analyze.lng", "lng"},
		{"analyze.coord", "coord"},
		{"analyze.radius", "radius"},
		{"analyze.format", "format"},
		{"analyze.geojson", "geojson"},
		{"analyze.layers", "layers"},
		{"analyze.overpass_file", "overpass-file"},
	}

	for _, bf := range bindFlags {
		if err := viper.BindPFlag(bf.key, analyzeCmd.Flags().Lookup(bf.flag)); err != nil {
			panic(fmt.Sprintf("failed to bind flag %s: %v", bf.flag, err))
		}
	}
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	if logger == nil {
		initLogging()
	}

	format := viper.GetString("analyze.format")
	if format != "text" && format != "json" {
		return fmt.Errorf("invalid format %q: must be 'text' or 'json'", format)
	}

	layers, err := parseLayers(viper.GetStringSlice("analyze.layers"))
	if err != nil {
		return err
	}

	req := pipeline.Request{
		Lat:    viper.GetFloat64("analyze.lat"),
		Lng:    viper.GetFloat64("analyze.lng"),
		Radius: viper.GetFloat64("analyze.radius"),
	}
	if coord := viper.GetString("analyze.coord"); coord != "" {
		center, err := parseCoord(coord)
		if err != nil {
			return fmt.Errorf("invalid --coord: %w", err)
		}
		req.Lat, req.Lng = center.Lat, center.Lon
	} else if !viper.IsSet("analyze.lat") || !viper.IsSet("analyze.lng") {
		return fmt.Errorf("a center is required: use --coord or --lat and --lng")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	analyzer := pipeline.NewAnalyzer(newDataSource(viper.GetString("analyze.overpass_file")), pipeline.Config{Logger: logger})
	res, err := analyzer.Analyze(ctx, req)
	if err != nil {
		return err
	}

	if path := viper.GetString("analyze.geojson"); path != "" {
		fc, err := geojson.ToGeoJSON(res, layers...)
		if err != nil {
			return fmt.Errorf("failed to export GeoJSON: %w", err)
		}
		data, err := geojson.Marshal(fc)
		if err != nil {
			return fmt.Errorf("failed to export GeoJSON: %w", err)
		}
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return fmt.Errorf("failed to write GeoJSON: %w", err)
		}
		logger.Info("GeoJSON written", "path", path, "bytes", len(data), "layers", geojson.LayerSummary(fc))
	}

	out := cmd.OutOrStdout()
	if format == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(res.Summary())
	}
	writeReport(out, res)
	return nil
}

// parseLayers maps layer names onto GeoJSON layers; none selects all.
func parseLayers(names []string) ([]geojson.LayerType, error) {
	layers := make([]geojson.LayerType, 0, len(names))
	for _, name := range names {
		layer := geojson.LayerType(name)
		switch layer {
		case geojson.LayerZone, geojson.LayerWater, geojson.LayerRoads, geojson.LayerBuildings:
			layers = append(layers, layer)
		default:
			return nil, fmt.Errorf("unknown layer %q", name)
		}
	}
	return layers, nil
}
