package config

import "fmt"

// ObservabilityConfig holds observability configuration. Exporter endpoints
// and headers follow the standard OTEL_EXPORTER_OTLP_* environment variables
// read by the SDK.
type ObservabilityConfig struct {
	OTelEnabled bool   `env:"SCHEDULER_OTEL_ENABLED"`
	ServiceName string `env:"OTEL_SERVICE_NAME"`
}

// ArchiveConfig holds the optional audit archive destination: a GCS bucket
// in production, a local directory for development. Leaving both empty
// disables archival.
type ArchiveConfig struct {
	Bucket string `env:"SCHEDULER_AUDIT_ARCHIVE_BUCKET"`
	Prefix string `env:"SCHEDULER_AUDIT_ARCHIVE_PREFIX"`
	Dir    string `env:"SCHEDULER_AUDIT_ARCHIVE_DIR"`
}

// Validate validates the archive configuration.
func (c *ArchiveConfig) Validate() error {
	if c.Bucket != "" && c.Dir != "" {
		return fmt.Errorf("SCHEDULER_AUDIT_ARCHIVE_BUCKET and SCHEDULER_AUDIT_ARCHIVE_DIR are mutually exclusive")
	}
	return nil
}
