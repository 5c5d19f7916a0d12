// Package traversal walks the reference shard by shard and reads every track
// over each shard through its track.Source.
//
// # Architecture
//
// The reference (or the configured intervals) is cut into shards of at most
// ShardSize bases. Workers take shards in reference order; for every shard
// and track a worker:
//
//  1. leases an iterator with Seek(shard)
//  2. SeekForward to the first base of the shard
//  3. calls Next while the next covered site lies inside the shard
//
// and emits one ShardResult. Stream-backed tracks can only move forward, so
// a run that includes one uses a single worker.
package traversal

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ajitpratap0/trackpool/pkg/errors"
	"github.com/ajitpratap0/trackpool/pkg/genome"
	"github.com/ajitpratap0/trackpool/pkg/logger"
	"github.com/ajitpratap0/trackpool/pkg/metrics"
	"github.com/ajitpratap0/trackpool/pkg/observability"
	"github.com/ajitpratap0/trackpool/pkg/track"
)

// Config controls a traversal.
type Config struct {
	// Workers is the number of shards processed concurrently
	Workers int
	// ShardSize is the maximum number of bases per shard
	ShardSize int64
	// Intervals restricts traversal; empty means the whole reference
	Intervals []genome.Loc
}

// ShardResult is what one track holds over one shard.
type ShardResult struct {
	Track    string     `json:"track"`
	Shard    genome.Loc `json:"-"`
	Locus    string     `json:"shard"`
	Sites    int        `json:"sites"`
	Features int        `json:"features"`
	// Names lists the distinct records of the shard in the order first seen
	Names []string `json:"names,omitempty"`
}

// EmitFunc receives results. Calls are serialized.
type EmitFunc func(ShardResult) error

// Summary describes a finished run.
type Summary struct {
	Shards   int
	Features int
	Duration time.Duration
}

// Engine runs traversals over a fixed set of sources.
type Engine struct {
	dict      *genome.Dictionary
	sources   []*track.Source
	cfg       Config
	logger    *zap.Logger
	tracer    *observability.StepTracer
	withNames bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithTracer sets the tracer used for shard spans.
func WithTracer(t *observability.StepTracer) Option {
	return func(e *Engine) { e.tracer = t }
}

// WithNames includes record names in every ShardResult.
func WithNames(enabled bool) Option {
	return func(e *Engine) { e.withNames = enabled }
}

// New creates an engine. dict orders the shards; when nil the dictionary of
// the first source is used.
func New(dict *genome.Dictionary, sources []*track.Source, cfg Config, opts ...Option) (*Engine, error) {
	if len(sources) == 0 {
		return nil, errors.New(errors.ErrorTypeConfig, "traversal needs at least one track")
	}
	if dict == nil {
		dict = sources[0].Dictionary()
	}
	if cfg.ShardSize <= 0 {
		return nil, errors.New(errors.ErrorTypeConfig, "shard size must be positive")
	}
	e := &Engine{dict: dict, sources: sources, cfg: cfg}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = logger.Get()
	}
	e.logger = e.logger.With(zap.String("component", "traversal"))
	if e.tracer == nil {
		e.tracer = observability.NewStepTracer("traversal", nil)
	}

	if e.cfg.Workers <= 0 {
		e.cfg.Workers = 1
	}
	for _, s := range sources {
		if s.Storage() == track.StorageStream && e.cfg.Workers > 1 {
			e.logger.Info("stream track present, traversing with a single worker",
				zap.String("track", s.Name()),
				zap.Int("requested_workers", e.cfg.Workers))
			e.cfg.Workers = 1
			break
		}
	}
	return e, nil
}

// Workers returns the effective worker count.
func (e *Engine) Workers() int { return e.cfg.Workers }

// Shards returns the shards of the run in reference order.
func (e *Engine) Shards() ([]genome.Loc, error) {
	if len(e.cfg.Intervals) == 0 {
		return e.dict.Shards(e.cfg.ShardSize)
	}
	var out []genome.Loc
	for _, iv := range MergeIntervals(e.cfg.Intervals) {
		out = append(out, e.dict.Split(iv, e.cfg.ShardSize)...)
	}
	return out, nil
}

// Run traverses every shard and passes each result to emit. The first error
// cancels the remaining work.
func (e *Engine) Run(ctx context.Context, emit EmitFunc) (Summary, error) {
	start := time.Now()
	shards, err := e.Shards()
	if err != nil {
		return Summary{}, err
	}

	throughput := make(map[string]*metrics.ThroughputTracker, len(e.sources))
	for _, s := range e.sources {
		throughput[s.Name()] = metrics.NewThroughputTracker(s.Name())
	}

	var (
		mu      sync.Mutex
		summary Summary
	)
	deliver := func(results []ShardResult) error {
		mu.Lock()
		defer mu.Unlock()
		for _, r := range results {
			if err := emit(r); err != nil {
				return err
			}
			summary.Features += r.Features
		}
		summary.Shards++
		return nil
	}

	e.logger.Info("traversal started",
		zap.Int("shards", len(shards)),
		zap.Int("tracks", len(e.sources)),
		zap.Int("workers", e.cfg.Workers))

	g, gctx := errgroup.WithContext(ctx)
	work := make(chan genome.Loc)
	g.Go(func() error {
		defer close(work)
		for _, s := range shards {
			select {
			case work <- s:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})
	for w := 0; w < e.cfg.Workers; w++ {
		worker := w
		g.Go(func() (err error) {
			defer errors.RecoverViolation(&err)
			log := e.logger.With(zap.Int("worker", worker))
			wctx := context.WithValue(gctx, logger.WorkerKey, worker)
			for shard := range work {
				results, err := e.processShard(wctx, shard)
				if err != nil {
					metrics.ShardsProcessed.WithLabelValues("failure").Inc()
					log.Error("shard failed", zap.Stringer("shard", shard), zap.Error(err))
					return err
				}
				for _, r := range results {
					throughput[r.Track].Increment(int64(r.Features))
				}
				metrics.ShardsProcessed.WithLabelValues("success").Inc()
				if err := deliver(results); err != nil {
					return err
				}
			}
			return nil
		})
	}

	err = g.Wait()
	summary.Duration = time.Since(start)
	for name, t := range throughput {
		e.logger.Debug("track throughput", zap.String("track", name), zap.Float64("features_per_second", t.GetAndReset()))
	}
	if err != nil {
		if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
			err = errors.Wrap(err, errors.ErrorTypeCanceled, "traversal canceled")
		}
		return summary, err
	}
	e.logger.Info("traversal finished",
		zap.Int("shards", summary.Shards),
		zap.Int("features", summary.Features),
		zap.Duration("duration", summary.Duration))
	return summary, nil
}

func (e *Engine) processShard(ctx context.Context, shard genome.Loc) ([]ShardResult, error) {
	results := make([]ShardResult, 0, len(e.sources))
	err := e.tracer.Trace(ctx, "shard", func(ctx context.Context) error {
		for _, src := range e.sources {
			r, err := e.readShard(ctx, src, shard)
			if err != nil {
				return err
			}
			metrics.FeaturesEmitted.WithLabelValues(src.Name()).Add(float64(r.Features))
			results = append(results, r)
		}
		return nil
	}, attribute.String("shard", shard.String()))
	return results, err
}

// readShard collects the records of one track over one shard.
func (e *Engine) readShard(ctx context.Context, src *track.Source, shard genome.Loc) (ShardResult, error) {
	res := ShardResult{Track: src.Name(), Shard: shard, Locus: shard.String()}
	local, ok := translate(shard, src.Dictionary())
	if !ok {
		return res, nil
	}

	seen := make(map[track.Feature]struct{})
	collect := func(rl *track.RecordList) {
		if rl == nil {
			return
		}
		res.Sites++
		for _, f := range rl.Records {
			if _, dup := seen[f]; dup {
				continue
			}
			seen[f] = struct{}{}
			res.Features++
			if e.withNames {
				res.Names = append(res.Names, f.Name())
			}
		}
	}

	err := src.With(ctx, &local, func(it track.Iterator) error {
		rl, err := it.SeekForward(local.StartPoint())
		if err != nil {
			return err
		}
		collect(rl)
		for {
			next := it.PeekNextLocation()
			if next == nil || next.IsPast(local) {
				return nil
			}
			rl, err := it.Next()
			if err != nil {
				return err
			}
			collect(rl)
		}
	})
	if err != nil {
		return res, errors.Wrap(err, errors.ErrorTypeQuery, "reading shard").
			WithDetail("track", src.Name()).
			WithDetail("shard", shard.String())
	}
	return res, nil
}

// translate maps a shard onto a track's dictionary by contig name.
func translate(shard genome.Loc, dict *genome.Dictionary) (genome.Loc, bool) {
	i, ok := dict.IndexOf(shard.Contig)
	if !ok {
		return genome.Loc{}, false
	}
	shard.ContigIndex = i
	return shard, true
}

// MergeIntervals sorts intervals and joins those that overlap or abut.
func MergeIntervals(in []genome.Loc) []genome.Loc {
	if len(in) == 0 {
		return nil
	}
	sorted := append([]genome.Loc(nil), in...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Compare(sorted[j]) < 0 })

	out := []genome.Loc{sorted[0]}
	for _, iv := range sorted[1:] {
		last := &out[len(out)-1]
		if iv.SameContig(*last) && iv.Start <= last.Stop+1 {
			if iv.Stop > last.Stop {
				last.Stop = iv.Stop
			}
			continue
		}
		out = append(out, iv)
	}
	return out
}
