package config

import (
	"os"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/ajitpratap0/trackpool/pkg/errors"
)

// EnvPrefix is the prefix of environment variables that override settings.
const EnvPrefix = "TRACKPOOL"

// Load reads a YAML configuration file on top of the defaults, substituting
// ${VAR} references from the environment, and validates the result.
func Load(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath) //nolint:gosec // G304: File path is controlled by caller
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to read config file").
			WithDetail("path", filePath)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes YAML on top of the defaults without validating.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	content := substituteEnvVars(string(data))
	if err := yaml.Unmarshal([]byte(content), cfg); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to parse YAML")
	}
	return cfg, nil
}

// Save saves a configuration to a YAML file
func Save(filePath string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "failed to marshal YAML")
	}

	if err := os.WriteFile(filePath, data, 0644); err != nil { //nolint:gosec
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to write config file").
			WithDetail("path", filePath)
	}

	return nil
}

// NewViper returns a viper instance reading TRACKPOOL_* environment
// variables, where nested keys use underscores (TRACKPOOL_TRAVERSAL_WORKERS).
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Overlay applies the scalar settings set in v (flags or environment) over
// the file configuration.
func (c *Config) Overlay(v *viper.Viper) {
	if v.IsSet("traversal.workers") {
		c.Traversal.Workers = v.GetInt("traversal.workers")
	}
	if v.IsSet("traversal.shard_size") {
		c.Traversal.ShardSize = v.GetInt64("traversal.shard_size")
	}
	if v.IsSet("traversal.intervals") {
		if iv := v.GetStringSlice("traversal.intervals"); len(iv) > 0 {
			c.Traversal.Intervals = iv
		}
	}
	if v.IsSet("traversal.output") {
		c.Traversal.Output = v.GetString("traversal.output")
	}
	if v.IsSet("logging.level") {
		c.Logging.Level = v.GetString("logging.level")
	}
	if v.IsSet("logging.file") {
		c.Logging.File = v.GetString("logging.file")
	}
	if v.IsSet("metrics.address") {
		if addr := v.GetString("metrics.address"); addr != "" {
			c.Metrics.Enabled = true
			c.Metrics.Address = addr
		}
	}
	if v.IsSet("tracing.enabled") {
		c.Tracing.Enabled = v.GetBool("tracing.enabled")
	}
	if v.IsSet("tracing.sample_rate") {
		c.Tracing.SampleRate = v.GetFloat64("tracing.sample_rate")
	}
}

// substituteEnvVars replaces ${VAR_NAME} with environment variable values
func substituteEnvVars(content string) string {
	for {
		start := strings.Index(content, "${")
		if start == -1 {
			break
		}
		end := strings.Index(content[start:], "}")
		if end == -1 {
			break
		}
		end += start

		varName := content[start+2 : end]
		envValue := os.Getenv(varName)
		content = content[:start] + envValue + content[end+1:]
	}
	return content
}
