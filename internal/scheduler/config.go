package scheduler

import (
	"time"
)

// Config controls the polling loop and per-job cadence.
type Config struct {
	TickInterval time.Duration

	RelayInterval               time.Duration
	StuckRecoveryInterval       time.Duration
	CleanupInterval             time.Duration
	FailedRetryInterval         time.Duration
	FailedStuckRecoveryInterval time.Duration
	IncrementalSyncInterval     time.Duration
	FullSyncInterval            time.Duration

	// StartupFullSync rebuilds the ranked-set store once on boot so a cold
	// cache serves reads before the first scheduled full sync.
	StartupFullSync bool
}

func DefaultConfig() Config {
	return Config{
		TickInterval:                time.Second,
		RelayInterval:               5 * time.Second,
		StuckRecoveryInterval:       5 * time.Minute,
		CleanupInterval:             24 * time.Hour,
		FailedRetryInterval:         time.Minute,
		FailedStuckRecoveryInterval: 5 * time.Minute,
		IncrementalSyncInterval:     time.Hour,
		FullSyncInterval:            24 * time.Hour,
		StartupFullSync:             true,
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.TickInterval <= 0 {
		c.TickInterval = defaults.TickInterval
	}
	if c.RelayInterval <= 0 {
		c.RelayInterval = defaults.RelayInterval
	}
	if c.StuckRecoveryInterval <= 0 {
		c.StuckRecoveryInterval = defaults.StuckRecoveryInterval
	}
	if c.CleanupInterval <= 0 {
		c.CleanupInterval = defaults.CleanupInterval
	}
	if c.FailedRetryInterval <= 0 {
		c.FailedRetryInterval = defaults.FailedRetryInterval
	}
	if c.FailedStuckRecoveryInterval <= 0 {
		c.FailedStuckRecoveryInterval = defaults.FailedStuckRecoveryInterval
	}
	if c.IncrementalSyncInterval <= 0 {
		c.IncrementalSyncInterval = defaults.IncrementalSyncInterval
	}
	if c.FullSyncInterval <= 0 {
		c.FullSyncInterval = defaults.FullSyncInterval
	}
	return c
}
