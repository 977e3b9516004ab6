package config

import (
	"fmt"
	"strings"
)

// Validate checks the configuration and returns every problem found.
func (c *Config) Validate() []error {
	var errs []error

	if c.Engine.Workers < 0 {
		errs = append(errs, fmt.Errorf("engine.workers must not be negative"))
	}
	if c.Engine.QueueCapacity <= 0 {
		errs = append(errs, fmt.Errorf("engine.queue_capacity must be positive"))
	}
	if c.Engine.MaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("engine.max_attempts must be at least 1"))
	}

	if c.Retention.WindowHours <= 0 {
		errs = append(errs, fmt.Errorf("retention.window_hours must be positive"))
	}
	if c.Retention.CleanupIntervalMinutes <= 0 {
		errs = append(errs, fmt.Errorf("retention.cleanup_interval_minutes must be positive"))
	}

	if c.Urgent.TimeoutSeconds <= 0 {
		errs = append(errs, fmt.Errorf("urgent.timeout_seconds must be positive"))
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, fmt.Errorf("invalid logging.level: %s (expected: debug, info, warn, error)", c.Logging.Level))
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		errs = append(errs, fmt.Errorf("invalid logging.format: %s (expected: json, text)", c.Logging.Format))
	}

	if c.Logging.Output == "" {
		errs = append(errs, fmt.Errorf("logging.output is required"))
	}

	if c.Metrics.Enabled && c.Metrics.ListenAddr == "" {
		errs = append(errs, fmt.Errorf("metrics.listen_addr is required when metrics are enabled"))
	}

	return errs
}
