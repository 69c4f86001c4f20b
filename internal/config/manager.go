package config

import (
	"sync"

	"github.com/logward/logward/internal/utils/logger"
)

// ConfigManager handles all configuration-related operations in a centralized manner
// ConfigManager 以集中方式处理所有配置相关操作
type ConfigManager struct {
	configPath string
	mutex      sync.RWMutex
	config     *GlobalConfig
}

// NewConfigManager creates a new configuration manager instance
// NewConfigManager 创建新的配置管理器实例
func NewConfigManager(configPath string) *ConfigManager {
	return &ConfigManager{
		configPath: configPath,
	}
}

// LoadConfig loads the configuration from the specified path
// LoadConfig 从指定路径加载配置
func (cm *ConfigManager) LoadConfig() error {
	cm.mutex.Lock()
	defer cm.mutex.Unlock()

	config, err := LoadGlobalConfig(cm.configPath)
	if err != nil {
		return err
	}

	cm.config = config
	return nil
}

// SaveConfig saves the current configuration to the specified path
// SaveConfig 将当前配置保存到指定路径
func (cm *ConfigManager) SaveConfig() error {
	cm.mutex.RLock()
	defer cm.mutex.RUnlock()

	if cm.config == nil {
		return nil
	}

	return SaveGlobalConfig(cm.configPath, cm.config)
}

// GetConfig returns a copy of the current configuration
// GetConfig 返回当前配置的副本
func (cm *ConfigManager) GetConfig() *GlobalConfig {
	cm.mutex.RLock()
	defer cm.mutex.RUnlock()

	if cm.config == nil {
		return nil
	}

	// Return a copy to prevent external modifications
	cfgCopy := *cm.config
	return &cfgCopy
}

// UpdateConfig updates the current configuration
// UpdateConfig 更新当前配置
func (cm *ConfigManager) UpdateConfig(newConfig *GlobalConfig) {
	cm.mutex.Lock()
	defer cm.mutex.Unlock()

	cm.config = newConfig
}

// GetServerConfig returns the HTTP server configuration
// GetServerConfig 返回 HTTP 服务器配置
func (cm *ConfigManager) GetServerConfig() *ServerConfig {
	cm.mutex.RLock()
	defer cm.mutex.RUnlock()

	if cm.config == nil {
		return nil
	}

	serverCfg := cm.config.Server
	return &serverCfg
}

// GetQueueConfig returns the ingest queue configuration
// GetQueueConfig 返回采集队列配置
func (cm *ConfigManager) GetQueueConfig() *QueueConfig {
	cm.mutex.RLock()
	defer cm.mutex.RUnlock()

	if cm.config == nil {
		return nil
	}

	queueCfg := cm.config.Queue
	return &queueCfg
}

// GetStreamConfig returns the durable stream configuration
// GetStreamConfig 返回持久化流配置
func (cm *ConfigManager) GetStreamConfig() *StreamConfig {
	cm.mutex.RLock()
	defer cm.mutex.RUnlock()

	if cm.config == nil {
		return nil
	}

	streamCfg := cm.config.Stream
	return &streamCfg
}

// GetWorkerConfig returns the consumer worker configuration
// GetWorkerConfig 返回消费 Worker 配置
func (cm *ConfigManager) GetWorkerConfig() *WorkerConfig {
	cm.mutex.RLock()
	defer cm.mutex.RUnlock()

	if cm.config == nil {
		return nil
	}

	workerCfg := cm.config.Worker
	return &workerCfg
}

// GetAlertsConfig returns the alert engine configuration
// GetAlertsConfig 返回告警引擎配置
func (cm *ConfigManager) GetAlertsConfig() *AlertsConfig {
	cm.mutex.RLock()
	defer cm.mutex.RUnlock()

	if cm.config == nil {
		return nil
	}

	alertsCfg := cm.config.Alerts
	return &alertsCfg
}

// GetSinkConfig returns the sink configuration
// GetSinkConfig 返回持久化配置
func (cm *ConfigManager) GetSinkConfig() *SinkConfig {
	cm.mutex.RLock()
	defer cm.mutex.RUnlock()

	if cm.config == nil {
		return nil
	}

	sinkCfg := cm.config.Sink
	return &sinkCfg
}

// GetNotifyConfig returns the notifier configuration
// GetNotifyConfig 返回通知配置
func (cm *ConfigManager) GetNotifyConfig() *NotifyConfig {
	cm.mutex.RLock()
	defer cm.mutex.RUnlock()

	if cm.config == nil {
		return nil
	}

	notifyCfg := cm.config.Notify
	return &notifyCfg
}

// GetAIConfig returns the AI configuration
// GetAIConfig 返回AI配置
func (cm *ConfigManager) GetAIConfig() *AIConfig {
	cm.mutex.RLock()
	defer cm.mutex.RUnlock()

	if cm.config == nil {
		return nil
	}

	aiCfg := cm.config.AI
	return &aiCfg
}

// GetTailConfig returns the file tail configuration
// GetTailConfig 返回文件跟踪配置
func (cm *ConfigManager) GetTailConfig() *TailConfig {
	cm.mutex.RLock()
	defer cm.mutex.RUnlock()

	if cm.config == nil {
		return nil
	}

	tailCfg := cm.config.Tail
	return &tailCfg
}

// GetMetricsConfig returns the metrics configuration
// GetMetricsConfig 返回指标配置
func (cm *ConfigManager) GetMetricsConfig() *MetricsConfig {
	cm.mutex.RLock()
	defer cm.mutex.RUnlock()

	if cm.config == nil {
		return nil
	}

	metricsCfg := cm.config.Metrics
	return &metricsCfg
}

// GetLoggingConfig returns the logging configuration
// GetLoggingConfig 返回日志配置
func (cm *ConfigManager) GetLoggingConfig() *logger.LoggingConfig {
	cm.mutex.RLock()
	defer cm.mutex.RUnlock()

	if cm.config == nil {
		return nil
	}

	loggingCfg := cm.config.Logging
	return &loggingCfg
}

// SetServerConfig updates the HTTP server configuration
// SetServerConfig 更新 HTTP 服务器配置
func (cm *ConfigManager) SetServerConfig(serverConfig ServerConfig) {
	cm.mutex.Lock()
	defer cm.mutex.Unlock()

	if cm.config != nil {
		cm.config.Server = serverConfig
	}
}

// SetQueueConfig updates the ingest queue configuration
// SetQueueConfig 更新采集队列配置
func (cm *ConfigManager) SetQueueConfig(queueConfig QueueConfig) {
	cm.mutex.Lock()
	defer cm.mutex.Unlock()

	if cm.config != nil {
		cm.config.Queue = queueConfig
	}
}

// SetStreamConfig updates the durable stream configuration
// SetStreamConfig 更新持久化流配置
func (cm *ConfigManager) SetStreamConfig(streamConfig StreamConfig) {
	cm.mutex.Lock()
	defer cm.mutex.Unlock()

	if cm.config != nil {
		cm.config.Stream = streamConfig
	}
}

// SetWorkerConfig updates the consumer worker configuration
// SetWorkerConfig 更新消费 Worker 配置
func (cm *ConfigManager) SetWorkerConfig(workerConfig WorkerConfig) {
	cm.mutex.Lock()
	defer cm.mutex.Unlock()

	if cm.config != nil {
		cm.config.Worker = workerConfig
	}
}

// SetAlertsConfig updates the alert engine configuration
// SetAlertsConfig 更新告警引擎配置
func (cm *ConfigManager) SetAlertsConfig(alertsConfig AlertsConfig) {
	cm.mutex.Lock()
	defer cm.mutex.Unlock()

	if cm.config != nil {
		cm.config.Alerts = alertsConfig
	}
}

// SetSinkConfig updates the sink configuration
// SetSinkConfig 更新持久化配置
func (cm *ConfigManager) SetSinkConfig(sinkConfig SinkConfig) {
	cm.mutex.Lock()
	defer cm.mutex.Unlock()

	if cm.config != nil {
		cm.config.Sink = sinkConfig
	}
}

// SetNotifyConfig updates the notifier configuration
// SetNotifyConfig 更新通知配置
func (cm *ConfigManager) SetNotifyConfig(notifyConfig NotifyConfig) {
	cm.mutex.Lock()
	defer cm.mutex.Unlock()

	if cm.config != nil {
		cm.config.Notify = notifyConfig
	}
}

// SetAIConfig updates the AI configuration
// SetAIConfig 更新AI配置
func (cm *ConfigManager) SetAIConfig(aiConfig AIConfig) {
	cm.mutex.Lock()
	defer cm.mutex.Unlock()

	if cm.config != nil {
		cm.config.AI = aiConfig
	}
}

// SetTailConfig updates the file tail configuration
// SetTailConfig 更新文件跟踪配置
func (cm *ConfigManager) SetTailConfig(tailConfig TailConfig) {
	cm.mutex.Lock()
	defer cm.mutex.Unlock()

	if cm.config != nil {
		cm.config.Tail = tailConfig
	}
}

// SetMetricsConfig updates the metrics configuration
// SetMetricsConfig 更新指标配置
func (cm *ConfigManager) SetMetricsConfig(metricsConfig MetricsConfig) {
	cm.mutex.Lock()
	defer cm.mutex.Unlock()

	if cm.config != nil {
		cm.config.Metrics = metricsConfig
	}
}

// SetLoggingConfig updates the logging configuration
// SetLoggingConfig 更新日志配置
func (cm *ConfigManager) SetLoggingConfig(loggingConfig logger.LoggingConfig) {
	cm.mutex.Lock()
	defer cm.mutex.Unlock()

	if cm.config != nil {
		cm.config.Logging = loggingConfig
	}
}

// GetConfigPath returns the configuration file path
// GetConfigPath 返回配置文件路径
func (cm *ConfigManager) GetConfigPath() string {
	return cm.configPath
}

// Validate validates the current configuration
// Validate 验证当前配置
func (cm *ConfigManager) Validate() error {
	cm.mutex.RLock()
	defer cm.mutex.RUnlock()

	if cm.config == nil {
		return nil
	}

	return cm.config.Validate()
}
