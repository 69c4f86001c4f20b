package metrics

import (
	"context"
	"sync"
	"time"

	"github.com/logward/logward/internal/config"
	"github.com/logward/logward/internal/queue"
	"github.com/logward/logward/internal/utils/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

// StatsProvider defines the interface for retrieving pipeline statistics.
type StatsProvider interface {
	QueueStats() queue.Stats
	StreamPending() int
}

// Collector refreshes the queue gauges from a StatsProvider and optionally
// pushes the registry to a PushGateway.
// Collector 从 StatsProvider 刷新队列仪表，并可选地将注册表推送到 PushGateway。
type Collector struct {
	config   *config.MetricsConfig
	provider StatsProvider
	running  bool
	mu       sync.RWMutex // Protects running field from concurrent access / 保护 running 字段免受并发访问
}

// NewCollector creates a new collector instance.
// NewCollector 创建一个新的收集器实例。
func NewCollector(cfg *config.MetricsConfig, provider StatsProvider) *Collector {
	return &Collector{
		config:   cfg,
		provider: provider,
	}
}

// isRunning returns whether the collector is running (thread-safe).
func (c *Collector) isRunning() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.running
}

// setRunning sets the running state (thread-safe).
func (c *Collector) setRunning(running bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.running = running
}

// Start launches the collection loop.
// Start 启动收集循环。
func (c *Collector) Start(ctx context.Context) error {
	if !c.config.Enabled {
		logger.Get(ctx).Infof("📊 Metrics collection is disabled via config.")
		return nil
	}

	c.setRunning(true)
	go c.collectStats(ctx)
	return nil
}

// Stop halts the collection loop.
// Stop 停止收集循环。
func (c *Collector) Stop() error {
	c.setRunning(false)
	return nil
}

// collectStats refreshes gauges periodically and drives the push schedule.
// collectStats 定期刷新仪表并驱动推送计划。
func (c *Collector) collectStats(ctx context.Context) {
	interval := config.ParseDurationOr(c.config.StatsInterval, 2*time.Second)
	pushInterval := config.ParseDurationOr(c.config.PushInterval, time.Minute)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	lastPush := time.Now()

	for c.isRunning() {
		select {
		case <-ticker.C:
			c.updateMetrics()

			if c.config.PushEnabled && time.Since(lastPush) >= pushInterval {
				c.pushMetrics(ctx)
				lastPush = time.Now()
			}
		case <-ctx.Done():
			return
		}
	}
}

// updateMetrics sets the queue gauges from the provider snapshot.
func (c *Collector) updateMetrics() {
	if c.provider == nil {
		return
	}

	st := c.provider.QueueStats()
	QueueDepth.Set(float64(st.Depth))
	QueueEnqueued.Set(float64(st.Enqueued))
	QueueDelivered.Set(float64(st.Delivered))
	QueueAcked.Set(float64(st.Acked))
	QueueDropped.Set(float64(st.Dropped))
	StreamPending.Set(float64(c.provider.StreamPending()))
}

// pushMetrics pushes the default registry to the configured PushGateway.
func (c *Collector) pushMetrics(ctx context.Context) {
	if c.config.PushGatewayAddr == "" {
		return
	}

	logger.Get(ctx).Infof("📤 Pushing metrics to %s", c.config.PushGatewayAddr)
	err := push.New(c.config.PushGatewayAddr, "logward").
		Gatherer(prometheus.DefaultGatherer).
		Push()
	if err != nil {
		logger.Get(ctx).Errorf("❌ Could not push to PushGateway: %v", err)
	}
}
