package config

// Config is the root configuration for the insightd process.
type Config struct {
	Engine    EngineConfig    `toml:"engine"`
	Retention RetentionConfig `toml:"retention"`
	Urgent    UrgentConfig    `toml:"urgent"`
	Logging   LoggingConfig   `toml:"logging"`
	Metrics   MetricsConfig   `toml:"metrics"`
}

// EngineConfig controls the scheduler and its worker pool.
type EngineConfig struct {
	// Workers is the pool size. 0 derives it from available
	// parallelism, capped at 4 with a floor of 1.
	Workers int `toml:"workers"`
	// QueueCapacity bounds the pending task queue.
	QueueCapacity int `toml:"queue_capacity"`
	// MaxAttempts is the total execution budget per task, including
	// the first attempt. 1 disables retries.
	MaxAttempts int `toml:"max_attempts"`
}

// RetentionConfig controls insight store eviction.
type RetentionConfig struct {
	WindowHours            int `toml:"window_hours"`
	CleanupIntervalMinutes int `toml:"cleanup_interval_minutes"`
}

// UrgentConfig controls the synchronous urgent path.
type UrgentConfig struct {
	TimeoutSeconds int `toml:"timeout_seconds"`
}

// LoggingConfig mirrors logger.Config.
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
	Output string `toml:"output"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled    bool   `toml:"enabled"`
	ListenAddr string `toml:"listen_addr"`
}
