package config

// Default values applied to fields left unset in the config file.
const (
	DefaultQueueCapacity          = 50
	DefaultMaxAttempts            = 1
	DefaultRetentionWindowHours   = 24
	DefaultCleanupIntervalMinutes = 60
	DefaultUrgentTimeoutSeconds   = 30
	DefaultMetricsListenAddr      = ":9090"
)

func applyDefaults(cfg *Config) {
	if cfg.Engine.QueueCapacity == 0 {
		cfg.Engine.QueueCapacity = DefaultQueueCapacity
	}
	if cfg.Engine.MaxAttempts == 0 {
		cfg.Engine.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.Retention.WindowHours == 0 {
		cfg.Retention.WindowHours = DefaultRetentionWindowHours
	}
	if cfg.Retention.CleanupIntervalMinutes == 0 {
		cfg.Retention.CleanupIntervalMinutes = DefaultCleanupIntervalMinutes
	}
	if cfg.Urgent.TimeoutSeconds == 0 {
		cfg.Urgent.TimeoutSeconds = DefaultUrgentTimeoutSeconds
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}
	if cfg.Metrics.ListenAddr == "" {
		cfg.Metrics.ListenAddr = DefaultMetricsListenAddr
	}
}
