// Package builder turns track configuration into ready track sources: it
// picks the codec, resolves the storage kind, and wires stream files or
// interval indexes into a Descriptor.
package builder

import (
	"bufio"
	"context"
	"os"
	"strings"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/ajitpratap0/trackpool/pkg/codec"
	"github.com/ajitpratap0/trackpool/pkg/compression"
	"github.com/ajitpratap0/trackpool/pkg/config"
	"github.com/ajitpratap0/trackpool/pkg/errors"
	"github.com/ajitpratap0/trackpool/pkg/genome"
	"github.com/ajitpratap0/trackpool/pkg/index"
	"github.com/ajitpratap0/trackpool/pkg/metrics"
	"github.com/ajitpratap0/trackpool/pkg/track"
)

// Builder opens track sources from configuration.
type Builder struct {
	reference *genome.Dictionary
	cache     *index.Cache
	logger    *zap.Logger
	tracer    trace.Tracer
	metrics   bool
}

// Option configures a Builder.
type Option func(*Builder)

// WithReference sets the dictionary used by tracks that declare no contigs.
func WithReference(d *genome.Dictionary) Option {
	return func(b *Builder) { b.reference = d }
}

// WithIndexCache shares an index cache with the builder.
func WithIndexCache(c *index.Cache) Option {
	return func(b *Builder) { b.cache = c }
}

// WithLogger sets the logger handed to every source.
func WithLogger(l *zap.Logger) Option {
	return func(b *Builder) { b.logger = l }
}

// WithTracer sets the tracer handed to every source.
func WithTracer(t trace.Tracer) Option {
	return func(b *Builder) { b.tracer = t }
}

// WithMetrics attaches a Prometheus observer to every source.
func WithMetrics(enabled bool) Option {
	return func(b *Builder) { b.metrics = enabled }
}

// New creates a builder. Without WithIndexCache it gets a private cache.
func New(opts ...Option) (*Builder, error) {
	b := &Builder{}
	for _, opt := range opts {
		opt(b)
	}
	if b.logger == nil {
		b.logger = zap.NewNop()
	}
	if b.cache == nil {
		c, err := index.NewCache(index.DefaultCacheSize)
		if err != nil {
			return nil, err
		}
		b.cache = c
	}
	return b, nil
}

// ResolveStorage decides how a track is served. Auto storage streams
// standard input and compressed files and indexes everything else.
func ResolveStorage(tc config.TrackConfig) (track.StorageKind, error) {
	switch strings.ToLower(tc.Storage) {
	case config.StorageStream:
		return track.StorageStream, nil
	case config.StorageIndexed:
		if tc.Path == codec.Stdin {
			return 0, errors.Newf(errors.ErrorTypeConfig, "track %s: standard input cannot be indexed", tc.Name)
		}
		return track.StorageIndexed, nil
	case "", config.StorageAuto:
	default:
		return 0, errors.Newf(errors.ErrorTypeConfig, "track %s: unknown storage %q", tc.Name, tc.Storage)
	}

	if tc.Path == codec.Stdin {
		return track.StorageStream, nil
	}
	f, err := os.Open(tc.Path)
	if err != nil {
		return 0, errors.Wrap(err, errors.ErrorTypeFile, "opening track file").WithDetail("path", tc.Path)
	}
	defer f.Close()
	if compression.Detect(bufio.NewReaderSize(f, compression.SniffLen), tc.Path) != compression.None {
		return track.StorageStream, nil
	}
	return track.StorageIndexed, nil
}

// Descriptor builds the descriptor of one configured track.
func (b *Builder) Descriptor(tc config.TrackConfig) (track.Descriptor, error) {
	c, err := codec.New(tc.Format)
	if err != nil {
		return track.Descriptor{}, err
	}
	kind, err := ResolveStorage(tc)
	if err != nil {
		return track.Descriptor{}, err
	}

	desc := track.Descriptor{
		Name:         tc.Name,
		Type:         tc.Type,
		Storage:      kind,
		Flashback:    tc.FlashbackWindow(),
		MaxResources: tc.MaxResources,
	}
	if desc.Type == "" {
		desc.Type = c.Name()
	}

	path, ref, cache := tc.Path, b.reference, b.cache
	switch kind {
	case track.StorageStream:
		desc.OpenStream = func(context.Context) (track.FeatureReader, track.Opened, error) {
			return codec.OpenStream(path, c, ref)
		}
	case track.StorageIndexed:
		desc.OpenQuery = func(context.Context) (track.Queryable, track.Opened, error) {
			idx, err := cache.Get(path, c, ref)
			if err != nil {
				return nil, track.Opened{}, err
			}
			r, err := index.Open(path, idx, c)
			if err != nil {
				return nil, track.Opened{}, err
			}
			return r, idx.Opened(), nil
		}
	}
	return desc, nil
}

// Open builds a source for one configured track.
func (b *Builder) Open(ctx context.Context, tc config.TrackConfig) (*track.Source, error) {
	desc, err := b.Descriptor(tc)
	if err != nil {
		return nil, err
	}
	opts := []track.Option{track.WithLogger(b.logger)}
	if b.tracer != nil {
		opts = append(opts, track.WithTracer(b.tracer))
	}
	if b.metrics {
		opts = append(opts, track.WithObserver(metrics.NewTrackObserver(tc.Name)))
	}
	return track.NewSource(ctx, desc, opts...)
}

// OpenAll opens every configured track. On failure the sources already
// opened are shut down.
func (b *Builder) OpenAll(ctx context.Context, tracks []config.TrackConfig) ([]*track.Source, error) {
	sources := make([]*track.Source, 0, len(tracks))
	for _, tc := range tracks {
		src, err := b.Open(ctx, tc)
		if err != nil {
			return nil, multierr.Append(err, ShutdownAll(sources))
		}
		sources = append(sources, src)
	}
	return sources, nil
}

// ShutdownAll shuts every source down and combines their errors.
func ShutdownAll(sources []*track.Source) error {
	var err error
	for _, s := range sources {
		err = multierr.Append(err, s.Shutdown())
	}
	return err
}
