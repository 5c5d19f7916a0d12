// Package codec decodes line-oriented track files into features. Codecs are
// looked up by name in a registry; bed and jsonl are built in.
package codec

import (
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/ajitpratap0/trackpool/pkg/errors"
	"github.com/ajitpratap0/trackpool/pkg/genome"
	"github.com/ajitpratap0/trackpool/pkg/logger"
	"github.com/ajitpratap0/trackpool/pkg/track"
)

// Codec turns one data line into a feature.
type Codec interface {
	// Name is the format name used in configuration.
	Name() string
	// IsHeader reports whether line belongs to the header block.
	IsHeader(line string) bool
	// Decode parses a data line. A nil feature with a nil error means the
	// line carries no record and is skipped.
	Decode(line string, dict *genome.Dictionary) (track.Feature, error)
}

// Record is the feature produced by the built-in codecs.
type Record struct {
	Loc        genome.Loc        `json:"-"`
	Label      string            `json:"name,omitempty"`
	Score      float64           `json:"score,omitempty"`
	Strand     string            `json:"strand,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// Location returns the 1-based closed interval of the record.
func (r *Record) Location() genome.Loc { return r.Loc }

// Name returns the record label, or its location when it has none.
func (r *Record) Name() string {
	if r.Label != "" {
		return r.Label
	}
	return r.Loc.String()
}

// Factory creates a codec instance.
type Factory func() Codec

// Registry maps format names to codec factories.
type Registry struct {
	factories map[string]Factory
	mu        sync.RWMutex
	logger    *zap.Logger
}

var globalRegistry = NewRegistry()

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
		logger:    logger.Get().With(zap.String("component", "codec_registry")),
	}
}

// Register adds a factory under name.
func (r *Registry) Register(name string, factory Factory) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[name]; exists {
		return errors.Newf(errors.ErrorTypeConfig, "codec %s already registered", name)
	}
	r.factories[name] = factory
	r.logger.Debug("codec registered", zap.String("name", name))
	return nil
}

// New creates the codec registered under name.
func (r *Registry) New(name string) (Codec, error) {
	r.mu.RLock()
	factory, exists := r.factories[name]
	r.mu.RUnlock()

	if !exists {
		return nil, errors.Newf(errors.ErrorTypeConfig, "codec %s not found", name).
			WithDetail("available", r.Names())
	}
	return factory(), nil
}

// Names lists the registered codecs in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Register adds a factory to the global registry.
func Register(name string, factory Factory) error {
	return globalRegistry.Register(name, factory)
}

// New creates a codec from the global registry.
func New(name string) (Codec, error) {
	return globalRegistry.New(name)
}

// Names lists the codecs of the global registry.
func Names() []string {
	return globalRegistry.Names()
}

// GetRegistry returns the global registry.
func GetRegistry() *Registry {
	return globalRegistry
}

func init() {
	_ = Register("bed", func() Codec { return BED{} })
	_ = Register("jsonl", func() Codec { return JSONL{} })
}
