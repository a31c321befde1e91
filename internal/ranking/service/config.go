package service

import "time"

type Config struct {
	// SyncBatchSize bounds relational paging and ranked-set pipeline writes.
	SyncBatchSize int
	// IncrementalLookback selects users with activity inside the window.
	IncrementalLookback time.Duration
}

func DefaultConfig() Config {
	return Config{
		SyncBatchSize:       1000,
		IncrementalLookback: 24 * time.Hour,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.SyncBatchSize <= 0 {
		c.SyncBatchSize = def.SyncBatchSize
	}
	if c.IncrementalLookback <= 0 {
		c.IncrementalLookback = def.IncrementalLookback
	}
	return c
}
