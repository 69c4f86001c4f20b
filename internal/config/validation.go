package config

import (
	"fmt"
	"time"
)

// Validate checks the configuration for errors.
// Validate 检查配置是否存在错误。
func (c *GlobalConfig) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server config error: %w", err)
	}
	if err := c.Queue.Validate(); err != nil {
		return fmt.Errorf("queue config error: %w", err)
	}
	if err := c.Stream.Validate(); err != nil {
		return fmt.Errorf("stream config error: %w", err)
	}
	if err := c.Worker.Validate(); err != nil {
		return fmt.Errorf("worker config error: %w", err)
	}
	if err := c.Alerts.Validate(); err != nil {
		return fmt.Errorf("alerts config error: %w", err)
	}
	if err := c.Sink.Validate(); err != nil {
		return fmt.Errorf("sink config error: %w", err)
	}
	if err := c.Notify.Validate(); err != nil {
		return fmt.Errorf("notify config error: %w", err)
	}
	if err := c.AI.Validate(); err != nil {
		return fmt.Errorf("ai config error: %w", err)
	}
	if err := c.Tail.Validate(); err != nil {
		return fmt.Errorf("tail config error: %w", err)
	}
	if err := c.Metrics.Validate(); err != nil {
		return fmt.Errorf("metrics config error: %w", err)
	}
	return nil
}

func (c *ServerConfig) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d (must be 0-65535)", c.Port)
	}
	return nil
}

func (c *QueueConfig) Validate() error {
	if c.Backend != "" && c.Backend != "stream" && c.Backend != "bounded" {
		return fmt.Errorf("invalid backend '%s' (must be 'stream' or 'bounded')", c.Backend)
	}
	if c.MaxSize < 0 {
		return fmt.Errorf("invalid max_size: %d (must be >= 0)", c.MaxSize)
	}
	if c.RecentSize < 0 {
		return fmt.Errorf("invalid recent_size: %d (must be >= 0)", c.RecentSize)
	}
	return nil
}

func (c *StreamConfig) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("name cannot be empty")
	}
	if c.Group == "" {
		return fmt.Errorf("group cannot be empty")
	}
	if c.MaxLen < 0 {
		return fmt.Errorf("invalid max_len: %d (must be >= 0)", c.MaxLen)
	}
	if err := validateDuration(c.MinIdle); err != nil {
		return fmt.Errorf("invalid min_idle '%s': %w", c.MinIdle, err)
	}
	if err := validateDuration(c.SnapshotInterval); err != nil {
		return fmt.Errorf("invalid snapshot_interval '%s': %w", c.SnapshotInterval, err)
	}
	return nil
}

func (c *WorkerConfig) Validate() error {
	if c.BatchSize <= 0 {
		return fmt.Errorf("invalid batch_size: %d (must be > 0)", c.BatchSize)
	}
	if err := validateDuration(c.BlockTimeout); err != nil {
		return fmt.Errorf("invalid block_timeout '%s': %w", c.BlockTimeout, err)
	}
	if err := validateDuration(c.IdleSleep); err != nil {
		return fmt.Errorf("invalid idle_sleep '%s': %w", c.IdleSleep, err)
	}
	if err := validateDuration(c.ErrorBackoff); err != nil {
		return fmt.Errorf("invalid error_backoff '%s': %w", c.ErrorBackoff, err)
	}
	if err := validateDuration(c.ReclaimInterval); err != nil {
		return fmt.Errorf("invalid reclaim_interval '%s': %w", c.ReclaimInterval, err)
	}
	return nil
}

func (c *AlertsConfig) Validate() error {
	if err := validateDuration(c.Cooldown); err != nil {
		return fmt.Errorf("invalid cooldown '%s': %w", c.Cooldown, err)
	}
	if c.SpikeThreshold < 0 {
		return fmt.Errorf("invalid spike_threshold: %d (must be >= 0)", c.SpikeThreshold)
	}
	if c.ServiceThreshold < 0 {
		return fmt.Errorf("invalid service_threshold: %d (must be >= 0)", c.ServiceThreshold)
	}
	if c.RepeatThreshold < 0 {
		return fmt.Errorf("invalid repeat_threshold: %d (must be >= 0)", c.RepeatThreshold)
	}
	seen := make(map[string]bool)
	for i, rule := range c.Rules {
		if rule.ID == "" {
			return fmt.Errorf("invalid rule #%d: id cannot be empty", i)
		}
		if seen[rule.ID] {
			return fmt.Errorf("invalid rule #%d: duplicate id '%s'", i, rule.ID)
		}
		seen[rule.ID] = true
		if rule.Expression == "" {
			return fmt.Errorf("invalid rule #%d (%s): expression cannot be empty", i, rule.ID)
		}
		if rule.Severity != "" && rule.Severity != "critical" && rule.Severity != "warning" {
			return fmt.Errorf("invalid rule #%d (%s): invalid severity '%s'", i, rule.ID, rule.Severity)
		}
		if rule.Threshold < 0 {
			return fmt.Errorf("invalid rule #%d (%s): threshold must be >= 0", i, rule.ID)
		}
	}
	return nil
}

func (c *SinkConfig) Validate() error {
	switch c.Backend {
	case "", "memory":
	case "opensearch":
		if c.OpenSearch.URL == "" {
			return fmt.Errorf("opensearch url cannot be empty")
		}
		if err := validateDuration(c.OpenSearch.Timeout); err != nil {
			return fmt.Errorf("invalid opensearch timeout '%s': %w", c.OpenSearch.Timeout, err)
		}
		if c.OpenSearch.Retries < 0 {
			return fmt.Errorf("invalid opensearch retries: %d (must be >= 0)", c.OpenSearch.Retries)
		}
	case "file":
		if c.File.Path == "" {
			return fmt.Errorf("file path cannot be empty")
		}
	default:
		return fmt.Errorf("invalid backend '%s' (must be 'opensearch', 'file' or 'memory')", c.Backend)
	}
	return nil
}

func (c *NotifyConfig) Validate() error {
	if err := validateDuration(c.Telegram.Timeout); err != nil {
		return fmt.Errorf("invalid telegram timeout '%s': %w", c.Telegram.Timeout, err)
	}
	if c.Webhook.Enabled && c.Webhook.URL == "" {
		return fmt.Errorf("webhook url cannot be empty when enabled")
	}
	if err := validateDuration(c.Webhook.Timeout); err != nil {
		return fmt.Errorf("invalid webhook timeout '%s': %w", c.Webhook.Timeout, err)
	}
	if c.Webhook.Workers < 0 {
		return fmt.Errorf("invalid webhook workers: %d (must be >= 0)", c.Webhook.Workers)
	}
	if c.Webhook.QueueSize < 0 {
		return fmt.Errorf("invalid webhook queue_size: %d (must be >= 0)", c.Webhook.QueueSize)
	}
	if c.Webhook.MaxRetries < 0 {
		return fmt.Errorf("invalid webhook max_retries: %d (must be >= 0)", c.Webhook.MaxRetries)
	}
	return nil
}

func (c *AIConfig) Validate() error {
	if c.Enabled {
		if c.BaseURL == "" {
			return fmt.Errorf("base_url cannot be empty when enabled")
		}
		if c.Model == "" {
			return fmt.Errorf("model cannot be empty when enabled")
		}
	}
	if err := validateDuration(c.Timeout); err != nil {
		return fmt.Errorf("invalid timeout '%s': %w", c.Timeout, err)
	}
	if c.MaxTokens < 0 {
		return fmt.Errorf("invalid max_tokens: %d (must be >= 0)", c.MaxTokens)
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("invalid temperature: %g (must be 0-2)", c.Temperature)
	}
	return nil
}

func (c *TailConfig) Validate() error {
	for i, f := range c.Files {
		if f.Path == "" {
			return fmt.Errorf("invalid file #%d: path cannot be empty", i)
		}
		if f.Position != "" && f.Position != "start" && f.Position != "end" {
			return fmt.Errorf("invalid file #%d: invalid position '%s'", i, f.Position)
		}
	}
	return nil
}

func (c *MetricsConfig) Validate() error {
	if err := validateDuration(c.StatsInterval); err != nil {
		return fmt.Errorf("invalid stats_interval '%s': %w", c.StatsInterval, err)
	}
	if c.PushEnabled && c.PushGatewayAddr == "" {
		return fmt.Errorf("push_gateway_addr cannot be empty when push_enabled")
	}
	if err := validateDuration(c.PushInterval); err != nil {
		return fmt.Errorf("invalid push_interval '%s': %w", c.PushInterval, err)
	}
	return nil
}

// validateDuration accepts empty (defaults apply) or a positive Go duration.
func validateDuration(s string) error {
	if s == "" {
		return nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("not a valid duration")
	}
	if d <= 0 {
		return fmt.Errorf("must be positive")
	}
	return nil
}
