package track

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/ajitpratap0/trackpool/pkg/errors"
	"github.com/ajitpratap0/trackpool/pkg/genome"
	"github.com/ajitpratap0/trackpool/pkg/pool"
)

const tracerName = "github.com/ajitpratap0/trackpool/pkg/track"

// Observer extends pool.Observer with track-level events.
type Observer interface {
	pool.Observer
	Flashback()
}

type nopObserver struct{}

func (nopObserver) ResourceCreated()            {}
func (nopObserver) ResourceReused()             {}
func (nopObserver) LeaseWaited(time.Duration)   {}
func (nopObserver) SizeChanged(total, idle int) {}
func (nopObserver) Flashback()                  {}

// leaser is the part of a ResourcePool a Source drives. It hides the
// resource type so both policies fit behind one Source.
type leaser interface {
	Acquire(ctx context.Context, seg pool.Segment) (*lease, error)
	Release(it *lease) error
	Prime(ctx context.Context) error
	Close() error
	Stats() pool.Stats
}

type metadataSource interface {
	metadata() (Opened, bool)
}

// Option configures a Source.
type Option func(*sourceOptions)

type sourceOptions struct {
	logger   *zap.Logger
	observer Observer
	tracer   trace.Tracer
}

// WithLogger sets the logger for the source and its pool.
func WithLogger(l *zap.Logger) Option {
	return func(o *sourceOptions) { o.logger = l }
}

// WithObserver installs pool and flashback event observation.
func WithObserver(obs Observer) Option {
	return func(o *sourceOptions) { o.observer = obs }
}

// WithTracer overrides the tracer used for Seek spans.
func WithTracer(t trace.Tracer) Option {
	return func(o *sourceOptions) { o.tracer = t }
}

// Source is the consumer-facing handle on one track. Seek leases an
// iterator, Close returns it. A Source is safe for concurrent use; the
// iterators it hands out are not.
type Source struct {
	desc   Descriptor
	pool   leaser
	meta   metadataSource
	logger *zap.Logger
	tracer trace.Tracer

	header     Header
	dictionary *genome.Dictionary
}

// NewSource builds the pool for desc, opens one resource to read the
// track's header and dictionary, and leaves it idle for the first Seek.
func NewSource(ctx context.Context, desc Descriptor, opts ...Option) (*Source, error) {
	o := sourceOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	if o.observer == nil {
		o.observer = nopObserver{}
	}
	if o.tracer == nil {
		o.tracer = otel.Tracer(tracerName)
	}
	if desc.Name == "" {
		return nil, errors.New(errors.ErrorTypeValidation, "track needs a name")
	}

	logger := o.logger.With(zap.String("track", desc.Name), zap.Stringer("storage", desc.Storage))
	poolOpts := []pool.Option{pool.WithLogger(logger), pool.WithObserver(o.observer)}

	s := &Source{desc: desc, logger: logger, tracer: o.tracer}
	switch desc.Storage {
	case StorageStream:
		if desc.OpenStream == nil {
			return nil, errors.Newf(errors.ErrorTypeConfig, "stream track %s has no opener", desc.Name)
		}
		policy := newStreamPolicy(desc, logger, o.observer)
		s.pool = pool.NewResourcePool[*streamResource, *lease](desc.Name, policy, poolOpts...)
		s.meta = policy
	case StorageIndexed:
		if desc.OpenQuery == nil {
			return nil, errors.Newf(errors.ErrorTypeConfig, "indexed track %s has no opener", desc.Name)
		}
		policy := newIndexPolicy(desc, logger)
		s.pool = pool.NewResourcePool[*indexResource, *lease](desc.Name, policy, poolOpts...)
		s.meta = policy
	default:
		return nil, errors.Newf(errors.ErrorTypeConfig, "track %s has unknown storage %s", desc.Name, desc.Storage)
	}

	if err := s.pool.Prime(ctx); err != nil {
		_ = s.pool.Close()
		return nil, err
	}
	opened, ok := s.meta.metadata()
	if !ok {
		_ = s.pool.Close()
		return nil, errors.Newf(errors.ErrorTypeInternal, "track %s opened no resource", desc.Name)
	}
	s.header = opened.Header
	s.dictionary = opened.Dictionary

	logger.Info("track source ready",
		zap.String("type", desc.Type),
		zap.Int("header_lines", len(opened.Header.Lines)),
		zap.Int("contigs", opened.Dictionary.Len()))
	return s, nil
}

// Seek leases an iterator positioned for loc, or over the whole track when
// loc is nil. The caller must hand it back with Close.
func (s *Source) Seek(ctx context.Context, loc *genome.Loc) (Iterator, error) {
	seg := pool.EntireStream()
	if loc != nil {
		seg = pool.PositionedAt(*loc)
	}

	ctx, span := s.tracer.Start(ctx, "track.Seek", trace.WithAttributes(
		attribute.String("track.name", s.desc.Name),
		attribute.String("track.storage", s.desc.Storage.String()),
		attribute.String("track.segment", seg.String()),
	))
	defer span.End()

	l, err := s.pool.Acquire(ctx, seg)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	l.release = func() error { return s.pool.Release(l) }
	return l, nil
}

// Close returns an iterator obtained from Seek. Passing anything else, or
// the same iterator twice, is a contract violation.
func (s *Source) Close(it Iterator) error {
	l, ok := it.(*lease)
	if !ok {
		errors.Violation("track %s: closing an iterator that did not come from a source", s.desc.Name)
	}
	return s.pool.Release(l)
}

// With leases an iterator for loc, runs fn and always returns the iterator.
// fn may close the iterator itself.
func (s *Source) With(ctx context.Context, loc *genome.Loc, fn func(Iterator) error) (err error) {
	it, err := s.Seek(ctx, loc)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := it.Close(); err == nil {
			err = cerr
		}
	}()
	return fn(it)
}

// Name returns the track name.
func (s *Source) Name() string { return s.desc.Name }

// Type returns the codec name of the track.
func (s *Source) Type() string { return s.desc.Type }

// Storage returns how the track is accessed.
func (s *Source) Storage() StorageKind { return s.desc.Storage }

// Header returns the header read when the source was built.
func (s *Source) Header() Header { return s.header }

// Dictionary returns the track's coordinate system.
func (s *Source) Dictionary() *genome.Dictionary { return s.dictionary }

// Stats reports the pool behind the source.
func (s *Source) Stats() pool.Stats { return s.pool.Stats() }

// Shutdown closes every resource of the track.
func (s *Source) Shutdown() error {
	err := s.pool.Close()
	s.logger.Debug("track source shut down", zap.Error(err))
	return err
}
