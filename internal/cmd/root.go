package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/MeKo-Tech/congestionmap/internal/datasource"
	"github.com/MeKo-Tech/congestionmap/internal/pipeline"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "congestionmap",
	Short: "Urban congestion estimates from OpenStreetMap land cover",
	Long: `CongestionMap estimates how built-up the area around a point is.

It fetches OpenStreetMap buildings, roads and water from an Overpass API,
clips them to a circular analysis zone in a local UTM frame and reports
the land-cover areas together with a 0-10 congestion score.`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	defaults := datasource.DefaultConfig()

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
	flags.Bool("verbose", false, "Enable verbose logging")
	flags.StringSlice("overpass-endpoint", defaults.Endpoints, "Overpass API endpoints, tried in order")
	flags.Int("overpass-retries", defaults.Retries, "Rounds over all endpoints before giving up")
	flags.Duration("overpass-timeout", defaults.Timeout, "Timeout per Overpass request")
	flags.Duration("overpass-transient-wait", defaults.TransientWait, "Wait after a rate-limit or server error")
	flags.Duration("overpass-retry-wait", defaults.RetryWait, "Wait after any other failed attempt")
	flags.Float64("overpass-rps", 0, "Maximum Overpass requests per second (0 = unlimited)")
	flags.String("user-agent", defaults.UserAgent, "User-Agent sent to the Overpass API")

	mustBind := func(key, name string) {
		if err := viper.BindPFlag(key, flags.Lookup(name)); err != nil {
			panic(fmt.Sprintf("failed to bind flag: %v", err))
		}
	}

	mustBind("verbose", "verbose")
	mustBind("overpass.endpoints", "overpass-endpoint")
	mustBind("overpass.retries", "overpass-retries")
	mustBind("overpass.timeout", "overpass-timeout")
	mustBind("overpass.transient_wait", "overpass-transient-wait")
	mustBind("overpass.retry_wait", "overpass-retry-wait")
	mustBind("overpass.rps", "overpass-rps")
	mustBind("overpass.user_agent", "user-agent")
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	viper.SetEnvPrefix("CONGESTIONMAP")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		if viper.GetBool("verbose") {
			fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
		}
	}
}

// overpassConfig assembles the fetcher settings from flags, config file
// and environment.
func overpassConfig() datasource.Config {
	return datasource.Config{
		Endpoints:         viper.GetStringSlice("overpass.endpoints"),
		Retries:           viper.GetInt("overpass.retries"),
		Timeout:           viper.GetDuration("overpass.timeout"),
		TransientWait:     viper.GetDuration("overpass.transient_wait"),
		RetryWait:         viper.GetDuration("overpass.retry_wait"),
		RequestsPerSecond: viper.GetFloat64("overpass.rps"),
		UserAgent:         viper.GetString("overpass.user_agent"),
		Logger:            logger,
	}
}

// newDataSource returns a file-backed source when path is set and the
// Overpass client otherwise.
func newDataSource(path string) pipeline.DataSource {
	if path != "" {
		logger.Info("Using local Overpass response", "path", path)
		return datasource.NewFileDataSource(path)
	}
	return datasource.NewOverpassDataSource(overpassConfig())
}
