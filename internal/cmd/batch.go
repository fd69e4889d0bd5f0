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

	"github.com/MeKo-Tech/congestionmap/internal/pipeline"
	"github.com/MeKo-Tech/congestionmap/internal/worker"
)

var batchCmd = &cobra.Command{
	Use:   "batch <points.yaml>",
	Short: "Analyze every point listed in a YAML file",
	Long: `Batch runs one independent analysis per point listed in a YAML file and
prints a table (or JSON) with the score of each point.

Keep --workers low when using the public Overpass API; it rate limits
aggressively and answers with HTTP 429.`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)

	batchCmd.Flags().IntP("workers", "w", 1, "Number of analyses run in parallel")
	batchCmd.Flags().Float64P("radius", "r", DefaultRadius, "Radius in meters for points that do not set one")
	batchCmd.Flags().Bool("progress", true, "Show progress bar")
	batchCmd.Flags().String("format", "table", "Output format: table or json")
	batchCmd.Flags().Bool("allow-failures", false, "Exit successfully even if some points fail")

	bindFlags := []struct {
		key  string
		flag string
	}{
		{"batch.workers", "workers"},
		{"batch.radius", "radius"},
		{"batch.progress", "progress"},
		{"batch.format", "format"},
		{"batch.allow_failures", "allow-failures"},
	}

	for _, bf := range bindFlags {
		if err := viper.BindPFlag(bf.key, batchCmd.Flags().Lookup(bf.flag)); err != nil {
			panic(fmt.Sprintf("failed to bind flag %s: %v", bf.flag, err))
		}
	}
}

// batchEntry is one line of the JSON batch output.
type batchEntry struct {
	Point  string            `json:"point"`
	Result *pipeline.Summary `json:"result,omitempty"`
	Error  string            `json:"error,omitempty"`
}

func runBatch(cmd *cobra.Command, args []string) error {
	if logger == nil {
		initLogging()
	}

	format := viper.GetString("batch.format")
	if format != "table" && format != "json" {
		return fmt.Errorf("invalid format %q: must be 'table' or 'json'", format)
	}

	labels, reqs, err := loadPoints(args[0], viper.GetFloat64("batch.radius"))
	if err != nil {
		return err
	}

	tasks := make([]worker.Task, len(reqs))
	for i := range reqs {
		tasks[i] = worker.Task{Index: i, Label: labels[i], Request: reqs[i]}
	}

	workers := viper.GetInt("batch.workers")
	logger.Info("Starting batch analysis", "points", len(tasks), "workers", workers, "file", args[0])

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	progress := worker.NewProgress(len(tasks), viper.GetBool("batch.progress"))
	pool := worker.New(worker.Config{
		Workers:    workers,
		Analyzer:   pipeline.NewAnalyzer(newDataSource(""), pipeline.Config{Logger: logger}),
		OnProgress: progress.Callback(),
	})

	results := pool.Run(ctx, tasks)
	progress.Done()

	var failed int
	for _, r := range results {
		if r.Err != nil {
			failed++
			logger.Error("Analysis failed", "point", r.Task.Label, "request", r.Task.Request.String(), "error", r.Err)
		}
	}
	logger.Info(progress.Summary())

	out := cmd.OutOrStdout()
	if format == "json" {
		entries := make([]batchEntry, 0, len(results))
		for _, r := range results {
			e := batchEntry{Point: r.Task.Label}
			if r.Err != nil {
				e.Error = r.Err.Error()
			} else {
				s := r.Analysis.Summary()
				e.Result = &s
			}
			entries = append(entries, e)
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(entries); err != nil {
			return err
		}
	} else if err := writeBatchTable(out, results); err != nil {
		return err
	}

	if failed > 0 && !viper.GetBool("batch.allow_failures") {
		return fmt.Errorf("%d of %d points failed", failed, len(results))
	}
	return nil
}
