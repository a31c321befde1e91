package service

import (
	"time"
)

// Config controls relay and quarantine budgets.
type Config struct {
	MaxRelayRetries  int
	RelayBatchSize   int
	MaxFailedRetries int
	FailedBatchSize  int
	StuckTimeout     time.Duration
	DoneRetention    time.Duration
}

func DefaultConfig() Config {
	return Config{
		MaxRelayRetries:  5,
		RelayBatchSize:   100,
		MaxFailedRetries: 5,
		FailedBatchSize:  100,
		StuckTimeout:     5 * time.Minute,
		DoneRetention:    7 * 24 * time.Hour,
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.MaxRelayRetries <= 0 {
		c.MaxRelayRetries = defaults.MaxRelayRetries
	}
	if c.RelayBatchSize <= 0 {
		c.RelayBatchSize = defaults.RelayBatchSize
	}
	if c.MaxFailedRetries <= 0 {
		c.MaxFailedRetries = defaults.MaxFailedRetries
	}
	if c.FailedBatchSize <= 0 {
		c.FailedBatchSize = defaults.FailedBatchSize
	}
	if c.StuckTimeout <= 0 {
		c.StuckTimeout = defaults.StuckTimeout
	}
	if c.DoneRetention <= 0 {
		c.DoneRetention = defaults.DoneRetention
	}
	return c
}
