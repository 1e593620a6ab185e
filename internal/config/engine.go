package config

import (
	"fmt"
	"time"
)

// EngineConfig holds the materialization engine knobs.
type EngineConfig struct {
	// AdvanceDays is the weekly generation horizon in days, inclusive of the
	// base date. MonthlyMonthsAhead is the monthly horizon in calendar months.
	AdvanceDays        int `env:"SCHEDULER_ADVANCE_DAYS"`
	MonthlyMonthsAhead int `env:"SCHEDULER_MONTHLY_MONTHS_AHEAD"`

	// Batch sizing for destructive and bulk-insert phases. The engine sleeps
	// SleepBetweenBatches after each batch so the OLTP workload can interleave.
	DeleteBatchSize     int           `env:"SCHEDULER_DELETE_BATCH_SIZE"`
	InsertBatchSize     int           `env:"SCHEDULER_INSERT_BATCH_SIZE"`
	SleepBetweenBatches time.Duration `env:"SCHEDULER_SLEEP_BETWEEN_BATCHES"`

	// Transient database fault policy: MaxRetries attempts with exponential
	// backoff starting at RetryBaseDelay.
	MaxRetries     int           `env:"SCHEDULER_MAX_RETRIES"`
	RetryBaseDelay time.Duration `env:"SCHEDULER_RETRY_BASE_DELAY"`

	// HistoryRetentionDays bounds how long retracted shifts stay in the
	// shifts table; AuditRetentionDays bounds the audit and conflict tables.
	HistoryRetentionDays int `env:"SCHEDULER_HISTORY_RETENTION_DAYS"`
	AuditRetentionDays   int `env:"SCHEDULER_AUDIT_RETENTION_DAYS"`

	// SessionTimeZone is the IANA zone all schedule dates are derived in.
	// Derived dates are carried as UTC-tagged wall values, so database
	// sessions stay pinned to UTC; only the derivation uses this zone.
	SessionTimeZone string `env:"SCHEDULER_SESSION_TIME_ZONE"`

	// JobName keys the cross-process run session row. A session older than
	// SessionStaleAfter is treated as abandoned and taken over.
	JobName           string        `env:"SCHEDULER_JOB_NAME"`
	SessionStaleAfter time.Duration `env:"SCHEDULER_SESSION_STALE_AFTER"`

	// QueryTimeout bounds point reads and single-row writes; BulkTimeout
	// bounds snapshot loads and batched mutations.
	QueryTimeout time.Duration `env:"SCHEDULER_QUERY_TIMEOUT"`
	BulkTimeout  time.Duration `env:"SCHEDULER_BULK_TIMEOUT"`
}

// DefaultEngineConfig returns the production defaults.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		AdvanceDays:          45,
		MonthlyMonthsAhead:   3,
		DeleteBatchSize:      5000,
		InsertBatchSize:      1000,
		SleepBetweenBatches:  100 * time.Millisecond,
		MaxRetries:           5,
		RetryBaseDelay:       200 * time.Millisecond,
		HistoryRetentionDays: 120,
		AuditRetentionDays:   3,
		SessionTimeZone:      "US/Eastern",
		JobName:              "shift-scheduler",
		SessionStaleAfter:    2 * time.Hour,
		QueryTimeout:         30 * time.Second,
		BulkTimeout:          5 * time.Minute,
	}
}

// Validate validates the engine configuration.
func (c *EngineConfig) Validate() error {
	if c.AdvanceDays <= 0 {
		return fmt.Errorf("SCHEDULER_ADVANCE_DAYS must be positive, got %d", c.AdvanceDays)
	}
	if c.MonthlyMonthsAhead <= 0 {
		return fmt.Errorf("SCHEDULER_MONTHLY_MONTHS_AHEAD must be positive, got %d", c.MonthlyMonthsAhead)
	}
	if c.DeleteBatchSize <= 0 {
		return fmt.Errorf("SCHEDULER_DELETE_BATCH_SIZE must be positive, got %d", c.DeleteBatchSize)
	}
	if c.InsertBatchSize <= 0 {
		return fmt.Errorf("SCHEDULER_INSERT_BATCH_SIZE must be positive, got %d", c.InsertBatchSize)
	}
	if c.MaxRetries < 1 {
		return fmt.Errorf("SCHEDULER_MAX_RETRIES must be at least 1, got %d", c.MaxRetries)
	}
	if c.JobName == "" {
		return fmt.Errorf("SCHEDULER_JOB_NAME must not be empty")
	}
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("invalid SCHEDULER_SESSION_TIME_ZONE %q: %w", c.SessionTimeZone, err)
	}
	return nil
}

// Location resolves the configured session time zone.
func (c *EngineConfig) Location() (*time.Location, error) {
	return time.LoadLocation(c.SessionTimeZone)
}
