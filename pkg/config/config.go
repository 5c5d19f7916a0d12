package config

import (
	"runtime"
	"strings"

	"go.uber.org/multierr"

	"github.com/ajitpratap0/trackpool/pkg/errors"
	"github.com/ajitpratap0/trackpool/pkg/genome"
)

// Storage values accepted by TrackConfig.Storage.
const (
	StorageAuto    = "auto"
	StorageStream  = "stream"
	StorageIndexed = "indexed"
)

// DefaultFlashback is the history kept by a stream track that sets no
// flashback of its own.
const DefaultFlashback = 64

// Config is the complete configuration of a trackpool run.
type Config struct {
	// Reference is the default sequence dictionary for tracks whose header
	// declares no contigs. It also defines the traversal order.
	Reference []ContigConfig `yaml:"reference,omitempty" json:"reference,omitempty" mapstructure:"reference"`
	// Tracks lists the annotation tracks to serve
	Tracks []TrackConfig `yaml:"tracks" json:"tracks" mapstructure:"tracks"`

	Traversal TraversalConfig `yaml:"traversal" json:"traversal" mapstructure:"traversal"`
	Index     IndexConfig     `yaml:"index" json:"index" mapstructure:"index"`
	Logging   LoggingConfig   `yaml:"logging" json:"logging" mapstructure:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics" json:"metrics" mapstructure:"metrics"`
	Tracing   TracingConfig   `yaml:"tracing" json:"tracing" mapstructure:"tracing"`
}

// ContigConfig is one reference sequence.
type ContigConfig struct {
	Name   string `yaml:"name" json:"name" mapstructure:"name"`
	Length int64  `yaml:"length" json:"length" mapstructure:"length"`
}

// TrackConfig describes one track file.
type TrackConfig struct {
	// Name identifies the track in output and metrics
	Name string `yaml:"name" json:"name" mapstructure:"name"`
	// Type is a free-form label such as "dbsnp" or "intervals"
	Type string `yaml:"type" json:"type" mapstructure:"type"`
	// Format names the codec (bed, jsonl)
	Format string `yaml:"format" json:"format" mapstructure:"format"`
	// Path is the data file, or "-" for standard input
	Path string `yaml:"path" json:"path" mapstructure:"path"`
	// Storage is auto, stream or indexed
	Storage string `yaml:"storage" json:"storage" mapstructure:"storage"`
	// Flashback is the history a stream track keeps for rewinding
	// (0 = DefaultFlashback, negative disables it)
	Flashback int `yaml:"flashback" json:"flashback" mapstructure:"flashback"`
	// MaxResources caps concurrent handles on an indexed track (0 = unbounded)
	MaxResources int `yaml:"max_resources" json:"max_resources" mapstructure:"max_resources"`
}

// FlashbackWindow resolves Flashback to the number of record lists a stream
// track remembers.
func (t TrackConfig) FlashbackWindow() int {
	switch {
	case t.Flashback < 0:
		return 0
	case t.Flashback == 0:
		return DefaultFlashback
	}
	return t.Flashback
}

// TraversalConfig controls how the reference is walked.
type TraversalConfig struct {
	// Workers is the number of shards processed concurrently
	Workers int `yaml:"workers" json:"workers" mapstructure:"workers"`
	// ShardSize is the number of bases per shard
	ShardSize int64 `yaml:"shard_size" json:"shard_size" mapstructure:"shard_size"`
	// Intervals restricts traversal to these loci (chr1:100-200 syntax)
	Intervals []string `yaml:"intervals,omitempty" json:"intervals,omitempty" mapstructure:"intervals"`
	// Output is the results file; empty or "-" writes to stdout
	Output string `yaml:"output" json:"output" mapstructure:"output"`
}

// IndexConfig controls interval index handling.
type IndexConfig struct {
	// CacheSize is the number of loaded indexes kept in memory
	CacheSize int `yaml:"cache_size" json:"cache_size" mapstructure:"cache_size"`
}

// LoggingConfig mirrors logger.Config.
type LoggingConfig struct {
	Level       string `yaml:"level" json:"level" mapstructure:"level"`
	Encoding    string `yaml:"encoding" json:"encoding" mapstructure:"encoding"`
	Development bool   `yaml:"development" json:"development" mapstructure:"development"`
	// File adds a rotated JSON log file
	File       string `yaml:"file" json:"file" mapstructure:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb" json:"max_size_mb" mapstructure:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups" json:"max_backups" mapstructure:"max_backups"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled" mapstructure:"enabled"`
	Address string `yaml:"address" json:"address" mapstructure:"address"`
}

// TracingConfig controls OpenTelemetry span export.
type TracingConfig struct {
	Enabled     bool    `yaml:"enabled" json:"enabled" mapstructure:"enabled"`
	SampleRate  float64 `yaml:"sample_rate" json:"sample_rate" mapstructure:"sample_rate"`
	ServiceName string  `yaml:"service_name" json:"service_name" mapstructure:"service_name"`
}

// Default returns a configuration with every optional setting filled in.
func Default() *Config {
	return &Config{
		Traversal: TraversalConfig{
			Workers:   runtime.NumCPU(),
			ShardSize: 1_000_000,
		},
		Index: IndexConfig{
			CacheSize: 64,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Encoding:   "json",
			MaxSizeMB:  100,
			MaxBackups: 3,
		},
		Metrics: MetricsConfig{
			Address: ":9090",
		},
		Tracing: TracingConfig{
			SampleRate:  1.0,
			ServiceName: "trackpool",
		},
	}
}

// Validate checks the configuration and reports every problem found.
func (c *Config) Validate() error {
	var err error
	fail := func(format string, args ...interface{}) {
		err = multierr.Append(err, errors.Newf(errors.ErrorTypeConfig, format, args...))
	}

	if len(c.Tracks) == 0 {
		fail("at least one track is required")
	}
	seen := make(map[string]bool, len(c.Tracks))
	stdin := 0
	for i, t := range c.Tracks {
		switch {
		case t.Name == "":
			fail("tracks[%d]: name is required", i)
		case seen[t.Name]:
			fail("tracks[%d]: duplicate track name %s", i, t.Name)
		}
		seen[t.Name] = true
		if t.Path == "" {
			fail("track %s: path is required", t.Name)
		}
		if t.Path == "-" {
			stdin++
		}
		if t.Format == "" {
			fail("track %s: format is required", t.Name)
		}
		switch strings.ToLower(t.Storage) {
		case "", StorageAuto, StorageStream:
		case StorageIndexed:
			if t.Path == "-" {
				fail("track %s: standard input cannot be indexed", t.Name)
			}
		default:
			fail("track %s: unknown storage %q", t.Name, t.Storage)
		}
		if t.MaxResources < 0 {
			fail("track %s: max_resources cannot be negative", t.Name)
		}
	}
	if stdin > 1 {
		fail("only one track can read standard input")
	}

	if c.Traversal.Workers < 0 {
		fail("traversal.workers cannot be negative")
	}
	if c.Traversal.ShardSize <= 0 {
		fail("traversal.shard_size must be positive")
	}
	if c.Index.CacheSize < 0 {
		fail("index.cache_size cannot be negative")
	}
	if c.Metrics.Enabled && c.Metrics.Address == "" {
		fail("metrics.address is required when metrics are enabled")
	}
	if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
		fail("tracing.sample_rate must be between 0 and 1")
	}
	if _, derr := c.Dictionary(); derr != nil {
		err = multierr.Append(err, derr)
	}
	return err
}

// GetWorkers returns the number of workers, ensuring it's at least 1
func (t *TraversalConfig) GetWorkers() int {
	if t.Workers <= 0 {
		return runtime.NumCPU()
	}
	return t.Workers
}

// Dictionary builds the reference dictionary. It returns nil, nil when no
// reference is configured.
func (c *Config) Dictionary() (*genome.Dictionary, error) {
	if len(c.Reference) == 0 {
		return nil, nil
	}
	contigs := make([]genome.Contig, len(c.Reference))
	for i, rc := range c.Reference {
		contigs[i] = genome.Contig{Name: rc.Name, Length: rc.Length}
	}
	dict, err := genome.NewDictionary(contigs)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "invalid reference")
	}
	return dict, nil
}

// Track returns the configuration of the named track.
func (c *Config) Track(name string) (TrackConfig, bool) {
	for _, t := range c.Tracks {
		if t.Name == name {
			return t, true
		}
	}
	return TrackConfig{}, false
}
