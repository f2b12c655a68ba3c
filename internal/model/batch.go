package model

import "time"

// BatchConfig bounds one batch run.
type BatchConfig struct {
	// MaxConcurrency is the number of records processed at once; values below 1 mean sequential.
	MaxConcurrency int
	// PerRecordTimeout bounds the store and delivery work of one record; zero means no bound.
	PerRecordTimeout time.Duration
	// RunTimeout stops dispatching new records once elapsed; zero means no bound.
	RunTimeout time.Duration
	// MaxRecords caps the rows dispatched in one run; zero means all rows.
	MaxRecords int
}

// Normalized returns cfg with out-of-range values clamped.
func (c BatchConfig) Normalized() BatchConfig {
	if c.MaxConcurrency < 1 {
		c.MaxConcurrency = 1
	}

	if c.PerRecordTimeout < 0 {
		c.PerRecordTimeout = 0
	}

	if c.RunTimeout < 0 {
		c.RunTimeout = 0
	}

	if c.MaxRecords < 0 {
		c.MaxRecords = 0
	}

	return c
}
