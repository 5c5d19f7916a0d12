package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/ajitpratap0/trackpool/pkg/codec"
	"github.com/ajitpratap0/trackpool/pkg/config"
	"github.com/ajitpratap0/trackpool/pkg/index"
	"github.com/ajitpratap0/trackpool/pkg/logger"
)

var version = "0.1.0"

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	root := &cobra.Command{
		Use:   "trackpool",
		Short: "trackpool - pooled positional access to genomic annotation tracks",
		Long: `trackpool serves annotation tracks (BED, JSON lines) through pools of
positioned iterators and walks a reference shard by shard, reporting what
every track holds over each shard.`,
		SilenceUsage: true,
	}

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("trackpool v%s\n", version)
			fmt.Printf("Go version: %s\n", runtime.Version())
			fmt.Printf("OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	})
	root.AddCommand(newRunCommand())
	root.AddCommand(newIndexCommand())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRunCommand() *cobra.Command {
	var configFile string
	var names bool
	v := config.NewViper()

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Traverse the reference over every configured track",
		Long: `Traverse the reference (or the configured intervals) shard by shard and
write one JSON line per track and shard.

Settings come from the YAML file, then TRACKPOOL_* environment variables,
then flags.

Example:
  trackpool run --config tracks.yaml --workers 8 --shard-size 100000`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configFile)
			if err != nil {
				return err
			}
			cfg.Overlay(v)
			if err := cfg.Validate(); err != nil {
				return err
			}
			if err := logger.Init(loggerConfig(cfg.Logging)); err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			out, closeOut, err := openOutput(cfg.Traversal.Output)
			if err != nil {
				return err
			}
			defer closeOut()

			summary, err := execute(ctx, cfg, out, runOptions{names: names, logger: logger.Get()})
			if err != nil {
				return err
			}
			logger.Info("run complete",
				zap.Int("shards", summary.Shards),
				zap.Int("features", summary.Features),
				zap.Duration("duration", summary.Duration))
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&configFile, "config", "c", "", "Path to the YAML track configuration (required)")
	_ = cmd.MarkFlagRequired("config")
	flags.BoolVar(&names, "names", false, "Include record names in every result")

	flags.Int("workers", runtime.NumCPU(), "Number of shards processed concurrently. Stream tracks force one worker")
	flags.Int64("shard-size", 1_000_000, "Number of bases per shard")
	flags.StringSlice("intervals", nil, "Restrict traversal to these loci (chr1:100-200,chr2)")
	flags.StringP("output", "o", "", "Results file; empty or - writes to stdout")
	flags.String("log-level", "info", "Log level (debug, info, warn, error)")
	flags.String("log-file", "", "Also write logs to this rotated file")
	flags.String("metrics-addr", "", "Serve Prometheus metrics on this address")
	flags.Bool("trace", false, "Export OpenTelemetry spans to stderr")
	flags.Float64("trace-sample-rate", 1.0, "Fraction of traces sampled")

	bind(v, cmd, map[string]string{
		"traversal.workers":    "workers",
		"traversal.shard_size": "shard-size",
		"traversal.intervals":  "intervals",
		"traversal.output":     "output",
		"logging.level":        "log-level",
		"logging.file":         "log-file",
		"metrics.address":      "metrics-addr",
		"tracing.enabled":      "trace",
		"tracing.sample_rate":  "trace-sample-rate",
	})
	return cmd
}

func newIndexCommand() *cobra.Command {
	var format, configFile string

	cmd := &cobra.Command{
		Use:   "index <file>...",
		Short: "Build or refresh the interval index of plain track files",
		Long: `Build the sidecar index (<file>.tpi) of each file, or reuse it when it still
matches the file. Compressed files cannot be indexed.

Example:
  trackpool index calls.bed --format bed`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := codec.New(format)
			if err != nil {
				return err
			}
			cfg := config.Default()
			if configFile != "" {
				if cfg, err = config.Load(configFile); err != nil {
					return err
				}
			}
			if err := logger.Init(loggerConfig(cfg.Logging)); err != nil {
				return err
			}
			dict, err := cfg.Dictionary()
			if err != nil {
				return err
			}

			for _, path := range args {
				idx, err := index.LoadOrBuild(path, c, dict)
				if err != nil {
					return err
				}
				fmt.Printf("%s: %d records on %d contigs -> %s\n",
					path, idx.Len(), idx.Dictionary().Len(), index.SidecarPath(path))
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "bed", "Track format ("+strings.Join(codec.Names(), ", ")+")")
	cmd.Flags().StringVarP(&configFile, "config", "c", "", "Configuration providing the reference and logging settings")
	return cmd
}

// bind maps viper keys onto command flags.
func bind(v *viper.Viper, cmd *cobra.Command, keys map[string]string) {
	for key, flag := range keys {
		_ = v.BindPFlag(key, cmd.Flags().Lookup(flag))
	}
}

func loggerConfig(c config.LoggingConfig) logger.Config {
	return logger.Config{
		Level:       c.Level,
		Development: c.Development,
		Encoding:    c.Encoding,
		File:        c.File,
		MaxSizeMB:   c.MaxSizeMB,
		MaxBackups:  c.MaxBackups,
	}
}
