package config

import "time"

// JobConfig contains worker pool and watchdog configuration shared across
// all queues. Per-type soft/hard timeouts live in JobTypeTimeouts, since
// a fetch job and a full_pipeline job have very different expected
// durations (spec.md §4.2).
type JobConfig struct {
	// WorkerCount is the number of worker goroutines per replica/pod.
	WorkerCount int `yaml:"worker_count"`

	// MaxConcurrentPerQueue is the global limit of concurrently running
	// jobs on a single queue across all replicas, enforced by a
	// best-effort COUNT(*) check before claiming.
	MaxConcurrentPerQueue int `yaml:"max_concurrent_per_queue"`

	// PollInterval is the base interval for checking pending jobs.
	PollInterval time.Duration `yaml:"poll_interval"`

	// PollIntervalJitter is the random jitter added to PollInterval.
	// Actual interval: PollInterval ± PollIntervalJitter.
	PollIntervalJitter time.Duration `yaml:"poll_interval_jitter"`

	// DefaultJobTimeout applies to any JobType absent from
	// JobTypeTimeouts.
	DefaultJobTimeout time.Duration `yaml:"default_job_timeout"`

	// JobTypeTimeouts overrides DefaultJobTimeout per job type.
	JobTypeTimeouts map[string]time.Duration `yaml:"job_type_timeouts"`

	// HeartbeatInterval is how often a running worker updates its job's
	// LastHeartbeat.
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`

	// GracefulShutdownTimeout is defaulted and validated at load; Pool.Stop
	// does not read it and waits for in-flight jobs without a time limit.
	GracefulShutdownTimeout time.Duration `yaml:"graceful_shutdown_timeout"`

	// StaleSweepInterval is how often the watchdog scans for stale
	// running jobs.
	StaleSweepInterval time.Duration `yaml:"stale_sweep_interval"`

	// StaleThreshold is how long a running job can go without a
	// heartbeat before the watchdog reclaims it.
	StaleThreshold time.Duration `yaml:"stale_threshold"`
}

// DefaultJobConfig returns the built-in job queue defaults.
func DefaultJobConfig() *JobConfig {
	return &JobConfig{
		WorkerCount:           5,
		MaxConcurrentPerQueue: 10,
		PollInterval:          1 * time.Second,
		PollIntervalJitter:    500 * time.Millisecond,
		DefaultJobTimeout:     15 * time.Minute,
		JobTypeTimeouts: map[string]time.Duration{
			"fetch":           2 * time.Minute,
			"process_article": 5 * time.Minute,
			"batch_extract":   20 * time.Minute,
			"full_pipeline":   10 * time.Minute,
		},
		HeartbeatInterval:       10 * time.Second,
		GracefulShutdownTimeout: 15 * time.Minute,
		StaleSweepInterval:      5 * time.Minute,
		StaleThreshold:          5 * time.Minute,
	}
}

// TimeoutFor returns the configured timeout for jobType, falling back to
// DefaultJobTimeout.
func (c *JobConfig) TimeoutFor(jobType string) time.Duration {
	if d, ok := c.JobTypeTimeouts[jobType]; ok {
		return d
	}
	return c.DefaultJobTimeout
}
