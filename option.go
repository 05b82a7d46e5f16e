package procmem

import (
	"log/slog"

	"github.com/viant/afs"
	"github.com/viant/procmem/service/dao"
	"github.com/viant/procmem/service/registry"
	"github.com/viant/procmem/space"
	"github.com/viant/procmem/tracing"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Option configures the Service
type Option func(s *Service)

// WithConfig sets the configuration; nil keeps DefaultConfig.
func WithConfig(config *Config) Option {
	return func(s *Service) {
		if config != nil {
			s.config = config
		}
	}
}

// WithLogger sets the logger shared by the facade, heaps, sheds and codec
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithRegistry sets the process-memory registry
func WithRegistry(reg registry.Registry) Option {
	return func(s *Service) {
		s.registry = reg
	}
}

// WithSnapshotDAO sets the snapshot store
func WithSnapshotDAO(snapshots dao.Service[string, space.Snapshot]) Option {
	return func(s *Service) {
		s.snapshots = snapshots
	}
}

// WithSnapshotURL stores snapshots as JSON files under URL; it overrides
// the configured snapshot URL.
func WithSnapshotURL(URL string) Option {
	return func(s *Service) {
		s.snapshotURL = URL
	}
}

// WithFileSystem sets the afs service used by the snapshot store
func WithFileSystem(fs afs.Service) Option {
	return func(s *Service) {
		s.fs = fs
	}
}

// WithTracing configures OpenTelemetry tracing with the stdout exporter. If
// outputFile is empty traces are written to os.Stdout.
func WithTracing(serviceName, serviceVersion, outputFile string) Option {
	return func(s *Service) {
		s.initErr = tracing.Init(serviceName, serviceVersion, outputFile)
	}
}

// WithTracingExporter configures OpenTelemetry tracing with a custom
// SpanExporter, for example OTLP, Jaeger or Zipkin.
func WithTracingExporter(serviceName, serviceVersion string, exporter sdktrace.SpanExporter) Option {
	return func(s *Service) {
		s.initErr = tracing.InitWithExporter(serviceName, serviceVersion, exporter)
	}
}
