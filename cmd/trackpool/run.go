package main

import (
	"bufio"
	"context"
	"io"
	"net/http"
	"os"
	"time"

	json "github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/ajitpratap0/trackpool/internal/traversal"
	"github.com/ajitpratap0/trackpool/pkg/builder"
	"github.com/ajitpratap0/trackpool/pkg/config"
	"github.com/ajitpratap0/trackpool/pkg/errors"
	"github.com/ajitpratap0/trackpool/pkg/genome"
	"github.com/ajitpratap0/trackpool/pkg/index"
	"github.com/ajitpratap0/trackpool/pkg/observability"
)

type runOptions struct {
	names  bool
	logger *zap.Logger
}

// execute opens every track of cfg, traverses them and writes one JSON line
// per result to out.
func execute(ctx context.Context, cfg *config.Config, out io.Writer, opts runOptions) (summary traversal.Summary, err error) {
	log := opts.logger
	if log == nil {
		log = zap.NewNop()
	}
	log = log.With(zap.String("component", "trackpool-cli"))

	shutdownTracing, err := observability.Init(observability.TracingConfig{
		Enabled:        cfg.Tracing.Enabled,
		ServiceName:    cfg.Tracing.ServiceName,
		ServiceVersion: version,
		SamplingRate:   cfg.Tracing.SampleRate,
		BatchTimeout:   time.Second,
	})
	if err != nil {
		return summary, err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err = multierr.Append(err, shutdownTracing(sctx))
	}()

	if cfg.Metrics.Enabled {
		stop := serveMetrics(cfg.Metrics.Address, log)
		defer stop()
	}

	reference, err := cfg.Dictionary()
	if err != nil {
		return summary, err
	}
	cache, err := index.NewCache(cfg.Index.CacheSize)
	if err != nil {
		return summary, err
	}
	b, err := builder.New(
		builder.WithReference(reference),
		builder.WithIndexCache(cache),
		builder.WithLogger(log),
		builder.WithTracer(observability.Tracer("trackpool/track")),
		builder.WithMetrics(cfg.Metrics.Enabled),
	)
	if err != nil {
		return summary, err
	}

	sources, err := b.OpenAll(ctx, cfg.Tracks)
	if err != nil {
		return summary, err
	}
	defer func() { err = multierr.Append(err, builder.ShutdownAll(sources)) }()

	dict := reference
	if dict == nil {
		dict = sources[0].Dictionary()
	}
	intervals, err := parseIntervals(dict, cfg.Traversal.Intervals)
	if err != nil {
		return summary, err
	}

	engine, err := traversal.New(dict, sources, traversal.Config{
		Workers:   cfg.Traversal.GetWorkers(),
		ShardSize: cfg.Traversal.ShardSize,
		Intervals: intervals,
	},
		traversal.WithLogger(log),
		traversal.WithTracer(observability.NewStepTracer("traversal", observability.Tracer("trackpool/traversal"))),
		traversal.WithNames(opts.names),
	)
	if err != nil {
		return summary, err
	}

	w := bufio.NewWriter(out)
	enc := json.NewEncoder(w)
	summary, err = engine.Run(ctx, func(r traversal.ShardResult) error {
		if err := enc.Encode(r); err != nil {
			return errors.Wrap(err, errors.ErrorTypeFile, "writing result")
		}
		return nil
	})
	if ferr := w.Flush(); ferr != nil {
		err = multierr.Append(err, errors.Wrap(ferr, errors.ErrorTypeFile, "flushing results"))
	}
	return summary, err
}

func parseIntervals(dict *genome.Dictionary, specs []string) ([]genome.Loc, error) {
	out := make([]genome.Loc, 0, len(specs))
	for _, s := range specs {
		loc, err := dict.Parse(s)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeConfig, "invalid interval").WithDetail("interval", s)
		}
		out = append(out, loc)
	}
	return out, nil
}

// openOutput returns the results writer and the function closing it.
func openOutput(path string) (io.Writer, func(), error) {
	if path == "" || path == "-" {
		return os.Stdout, func() {}, nil
	}
	f, err := os.Create(path) //nolint:gosec // G304: output path comes from the operator
	if err != nil {
		return nil, nil, errors.Wrap(err, errors.ErrorTypeFile, "creating output file").WithDetail("path", path)
	}
	return f, func() { _ = f.Close() }, nil
}

// serveMetrics exposes /metrics until the returned function is called.
func serveMetrics(addr string, log *zap.Logger) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		log.Info("serving metrics", zap.String("address", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("metrics server failed", zap.Error(err))
		}
	}()
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}
