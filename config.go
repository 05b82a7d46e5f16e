package procmem

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/viant/afs"
	"github.com/viant/afs/storage"
	"github.com/viant/procmem/internal/env"
	"gopkg.in/yaml.v3"
)

// Config is a serialisable representation of the memory service settings.
// It can be populated from YAML or JSON; zero fields are filled from
// DefaultConfig by LoadConfig.
type Config struct {
	Memory   MemoryConfig   `json:"memory" yaml:"memory"`
	Snapshot SnapshotConfig `json:"snapshot" yaml:"snapshot"`
	Tracing  TracingConfig  `json:"tracing" yaml:"tracing"`
}

// MemoryConfig controls the default heap and shed of every process
type MemoryConfig struct {
	HeapSize         int    `json:"heapSize" yaml:"heapSize"`
	ShedSize         int    `json:"shedSize" yaml:"shedSize"`
	HeapID           string `json:"heapId" yaml:"heapId"`
	ShedID           string `json:"shedId" yaml:"shedId"`
	LenientAddresses bool   `json:"lenientAddresses" yaml:"lenientAddresses"`
	AutoExpand       bool   `json:"autoExpand" yaml:"autoExpand"`
}

// SnapshotConfig points at the snapshot location; an empty URL disables
// snapshots.
type SnapshotConfig struct {
	URL string `json:"url" yaml:"url"`
}

// TracingConfig enables the stdout OpenTelemetry exporter
type TracingConfig struct {
	Enabled        bool   `json:"enabled" yaml:"enabled"`
	ServiceName    string `json:"serviceName" yaml:"serviceName"`
	ServiceVersion string `json:"serviceVersion" yaml:"serviceVersion"`
	OutputFile     string `json:"outputFile" yaml:"outputFile"`
}

// DefaultConfig returns the settings used when none are supplied.
func DefaultConfig() *Config {
	return &Config{
		Memory: MemoryConfig{
			HeapSize:   1024,
			ShedSize:   1024,
			HeapID:     "0x1",
			ShedID:     "0x1",
			AutoExpand: true,
		},
		Tracing: TracingConfig{
			ServiceName:    "procmem",
			ServiceVersion: "0.1.0",
		},
	}
}

// Validate returns an error describing the first invalid setting or nil.
func (c *Config) Validate() error {
	if c == nil {
		return nil
	}
	if c.Memory.HeapSize < 0 {
		return errors.Newf("memory.heapSize must be >= 0, got %d", c.Memory.HeapSize)
	}
	if c.Memory.ShedSize < 0 {
		return errors.Newf("memory.shedSize must be >= 0, got %d", c.Memory.ShedSize)
	}
	if c.Memory.HeapID == "" {
		return errors.New("memory.heapId is required")
	}
	if c.Memory.ShedID == "" {
		return errors.New("memory.shedId is required")
	}
	if c.Tracing.Enabled && c.Tracing.ServiceName == "" {
		return errors.New("tracing.serviceName is required when tracing is enabled")
	}
	return nil
}

// LoadConfig reads a YAML config from URL through afs, expanding
// ${env.NAME} references before decoding. Fields absent from the document
// keep their DefaultConfig values.
func LoadConfig(ctx context.Context, URL string, options ...storage.Option) (*Config, error) {
	fs := afs.New()
	data, err := fs.DownloadWithURL(ctx, URL, options...)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load config from %s", URL)
	}
	ret := DefaultConfig()
	if err = yaml.Unmarshal([]byte(env.Expand(string(data))), ret); err != nil {
		return nil, errors.Wrapf(err, "failed to decode config from %s", URL)
	}
	if err = ret.Validate(); err != nil {
		return nil, errors.Wrapf(err, "invalid config %s", URL)
	}
	return ret, nil
}
