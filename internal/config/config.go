package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/logward/logward/internal/utils/fileutil"
	"github.com/logward/logward/internal/utils/logger"
	"gopkg.in/yaml.v3"
)

// ConfigMu protects concurrent access to the configuration file.
// ConfigMu 保护对配置文件的并发访问。
var ConfigMu sync.RWMutex

// DefaultConfigTemplate defines the default configuration file structure with bilingual comments.
// This template is used to initialize new config files and to repair missing sections in existing files
// while preserving documentation.
const DefaultConfigTemplate = `# Logward Configuration File / Logward 配置文件
#

# HTTP Server Configuration / HTTP 服务器配置
server:
  enabled: true
  # Listen address (host:port is built from host and port)
  # 监听地址（由 host 和 port 组合而成）
  host: "0.0.0.0"
  port: 8000
  # Bearer token for /api/* endpoints. Empty disables auth.
  # /api/* 端点的 Bearer 令牌。为空则禁用认证。
  token: ""

# Ingest Queue Configuration / 采集队列配置
queue:
  # Backend: "stream" (durable, consumer groups, at-least-once)
  #          "bounded" (in-memory, drop-on-full, at-most-once)
  # 后端："stream"（持久化，消费者组，至少一次投递）
  #       "bounded"（内存队列，满则丢弃，至多一次投递）
  backend: "stream"

  # Bounded queue capacity. Enqueue fails fast once full.
  # 有界队列容量。队列满后入队立即失败。
  max_size: 10000

  # Recent ring buffer size for late-joining observers.
  # 供后来观察者使用的最近事件环形缓冲区大小。
  recent_size: 100

# Durable Stream Configuration / 持久化流配置
stream:
  # Stream name / 流名称
  name: "logward:logs"

  # Retention cap. Oldest entries are trimmed (approximately) past this length.
  # 保留上限。超过该长度后（近似地）裁剪最旧的条目。
  max_len: 100000

  # Consumer group name / 消费者组名称
  group: "log-processors"

  # Consumer identity. Empty derives "<hostname>-<pid>".
  # 消费者身份。为空时派生为 "<hostname>-<pid>"。
  consumer: ""

  # Pending entries idle longer than this become reclaimable by other consumers.
  # 挂起条目空闲超过该时长后可被其他消费者认领。
  min_idle: "60s"

  # Snapshot file for crash recovery. Empty disables persistence.
  # 用于崩溃恢复的快照文件。为空则禁用持久化。
  state_path: "/var/lib/logward/stream.json"

  # How often the snapshot is written / 快照写入间隔
  snapshot_interval: "30s"

# Consumer Worker Configuration / 消费 Worker 配置
worker:
  enabled: true

  # Max records per batch / 每批最大记录数
  batch_size: 50

  # How long DequeueBatch waits for the first record.
  # DequeueBatch 等待首条记录的时长。
  block_timeout: "1s"

  # Sleep between batches / 批次之间的休眠时长
  idle_sleep: "100ms"

  # Pause after a transient loop error / 瞬时循环错误后的暂停时长
  error_backoff: "5s"

  # How often stale pending entries are reclaimed (stream backend only).
  # 认领过期挂起条目的周期（仅 stream 后端）。
  reclaim_interval: "30s"

# Alert Engine Configuration / 告警引擎配置
alerts:
  enabled: true

  # A rule instance fires at most once per cooldown window.
  # 每个规则实例在一个冷却窗口内最多触发一次。
  cooldown: "5m"

  # ERROR events per batch to fire ERROR_SPIKE / 触发 ERROR_SPIKE 的每批 ERROR 数
  spike_threshold: 5

  # Error events per service per batch to fire SERVICE_FAIL
  # 触发 SERVICE_FAIL 的每批单服务错误数
  service_threshold: 3

  # Identical error messages per batch to fire RECURRING
  # 触发 RECURRING 的每批相同消息数
  repeat_threshold: 3

  # Custom rules: expression is evaluated against every event in the batch.
  # Environment: Level, Message, Service, ErrorType, Environment, Host.
  # 自定义规则：表达式对批次内每个事件求值。
  rules:
    - id: "CRASH"
      severity: "critical"
      title: "Crash detected"
      expression: 'any(["crash", "fatal", "panic", "oom", "killed"], lower(Message) contains #)'
      threshold: 1
    - id: "SLOW"
      severity: "warning"
      title: "Slow response"
      expression: 'any(["timeout", "slow", "latency"], lower(Message) contains #)'
      threshold: 1

# Sink Configuration / 持久化配置
sink:
  # Backend: "opensearch", "file", "memory"
  # 后端："opensearch"、"file"、"memory"
  backend: "memory"

  opensearch:
    url: "http://localhost:9200"
    username: ""
    password: ""
    # Daily indices are named <index_prefix>-YYYY.MM.DD
    # 每日索引命名为 <index_prefix>-YYYY.MM.DD
    index_prefix: "logs"
    timeout: "10s"
    # Bulk request retries on transient failures / 瞬时失败时的批量请求重试次数
    retries: 2

  file:
    path: "/var/log/logward/events.ndjson"
    # Rotation settings (MB / files / days) / 轮转设置（MB / 文件数 / 天数）
    max_size: 100
    max_backups: 5
    max_age: 14
    compress: true

# Notifier Configuration / 通知配置
notify:
  telegram:
    enabled: false
    # Falls back to TELEGRAM_BOT_TOKEN / TELEGRAM_CHAT_ID env vars when empty.
    # 为空时回退到 TELEGRAM_BOT_TOKEN / TELEGRAM_CHAT_ID 环境变量。
    bot_token: ""
    chat_id: ""
    timeout: "10s"

  webhook:
    enabled: false
    url: ""
    timeout: "10s"
    # Dispatch worker pool size / 派发工作池大小
    workers: 3
    # Pending alert buffer. Full buffer drops new alerts.
    # 待发送告警缓冲区。缓冲区满则丢弃新告警。
    queue_size: 100
    # Retries per alert on retryable failures / 可重试失败时每条告警的重试次数
    max_retries: 2

# AI Annotation Configuration / AI 注释配置
ai:
  enabled: false
  # Any OpenAI-compatible chat completions endpoint.
  # 任意兼容 OpenAI 的 chat completions 端点。
  base_url: "https://api.groq.com/openai/v1"
  model: "llama-3.1-70b-versatile"
  # Falls back to LOGWARD_AI_KEY env var when empty.
  # 为空时回退到 LOGWARD_AI_KEY 环境变量。
  api_key: ""
  timeout: "15s"
  max_tokens: 1024
  temperature: 0.3

# File Tail Producers / 文件跟踪生产者
tail:
  enabled: false
  # Use polling instead of inotify (needed on some filesystems).
  # 使用轮询代替 inotify（某些文件系统需要）。
  poll: false
  files: []
  # Example / 示例:
  # - path: "/var/log/app/app.log"
  #   service: "app"
  #   source: "app.log"
  #   # Position: "end" (default) or "start"
  #   # 读取位置："end"（默认）或 "start"
  #   position: "end"
  #   # Parse each line as a JSON record instead of plain text.
  #   # 将每行解析为 JSON 记录而不是纯文本。
  #   json: false

# Metrics Configuration / 监控指标配置
# Metrics are always served at /metrics on the HTTP server.
# 指标始终通过 HTTP 服务器的 /metrics 路径提供。
metrics:
  enabled: true
  # Gauge refresh interval / 仪表刷新间隔
  stats_interval: "2s"
  push_enabled: false
  push_gateway_addr: ""
  push_interval: "15s"

# Logging Configuration / 日志配置
logging:
  enabled: false
  # Log level: debug, info, warn, error / 日志级别
  level: "info"
  # Log file path
  # 日志文件路径
  path: "/var/log/logward/logward.log"
  # Max size in MB before rotation / 轮转前的最大大小 (MB)
  max_size: 10
  # Max number of old files to keep / 保留的旧文件最大数量
  max_backups: 3
  # Max number of days to keep old files / 保留旧文件的最大天数
  max_age: 30
  # Whether to compress old files / 是否压缩旧文件
  compress: true
`

// GlobalConfig represents the top-level configuration structure.
// GlobalConfig 表示顶级配置结构。
type GlobalConfig struct {
	Server  ServerConfig         `yaml:"server"`
	Queue   QueueConfig          `yaml:"queue"`
	Stream  StreamConfig         `yaml:"stream"`
	Worker  WorkerConfig         `yaml:"worker"`
	Alerts  AlertsConfig         `yaml:"alerts"`
	Sink    SinkConfig           `yaml:"sink"`
	Notify  NotifyConfig         `yaml:"notify"`
	AI      AIConfig             `yaml:"ai"`
	Tail    TailConfig           `yaml:"tail"`
	Metrics MetricsConfig        `yaml:"metrics"`
	Logging logger.LoggingConfig `yaml:"logging"`
}

// ServerConfig defines the configuration for the HTTP server.
// ServerConfig 定义 HTTP 服务器配置。
type ServerConfig struct {
	Enabled bool   `yaml:"enabled"`
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
	Token   string `yaml:"token"`
}

// QueueConfig selects and sizes the ingest queue backend.
// QueueConfig 选择并配置采集队列后端。
type QueueConfig struct {
	// "stream" or "bounded" / "stream" 或 "bounded"
	Backend string `yaml:"backend"`
	// Bounded queue capacity / 有界队列容量
	MaxSize int `yaml:"max_size"`
	// Recent ring size / 最近事件环大小
	RecentSize int `yaml:"recent_size"`
}

// StreamConfig defines the durable stream backend.
// StreamConfig 定义持久化流后端。
type StreamConfig struct {
	Name   string `yaml:"name"`
	MaxLen int    `yaml:"max_len"`
	Group  string `yaml:"group"`
	// Empty derives "<hostname>-<pid>" / 为空时派生 "<hostname>-<pid>"
	Consumer string `yaml:"consumer"`
	// Idle threshold for reclamation / 认领的空闲阈值
	MinIdle string `yaml:"min_idle"`
	// Snapshot file, empty disables / 快照文件，为空禁用
	StatePath        string `yaml:"state_path"`
	SnapshotInterval string `yaml:"snapshot_interval"`
}

// WorkerConfig defines the consumer worker loop.
// WorkerConfig 定义消费 worker 循环。
type WorkerConfig struct {
	Enabled         bool   `yaml:"enabled"`
	BatchSize       int    `yaml:"batch_size"`
	BlockTimeout    string `yaml:"block_timeout"`
	IdleSleep       string `yaml:"idle_sleep"`
	ErrorBackoff    string `yaml:"error_backoff"`
	ReclaimInterval string `yaml:"reclaim_interval"`
}

// AlertsConfig defines rule thresholds and the cooldown window.
// AlertsConfig 定义规则阈值和冷却窗口。
type AlertsConfig struct {
	Enabled          bool        `yaml:"enabled"`
	Cooldown         string      `yaml:"cooldown"`
	SpikeThreshold   int         `yaml:"spike_threshold"`
	ServiceThreshold int         `yaml:"service_threshold"`
	RepeatThreshold  int         `yaml:"repeat_threshold"`
	Rules            []AlertRule `yaml:"rules"`
}

// AlertRule is a config-declared custom rule evaluated against every event
// in a batch.
// AlertRule 是配置声明的自定义规则，对批次内每个事件求值。
type AlertRule struct {
	ID string `yaml:"id"`
	// "critical" or "warning" / "critical" 或 "warning"
	Severity string `yaml:"severity"`
	Title    string `yaml:"title"`
	// Boolean expr-lang expression over Level, Message, Service, ErrorType,
	// Environment, Host.
	// 基于 Level、Message、Service、ErrorType、Environment、Host 的布尔表达式。
	Expression string `yaml:"expression"`
	// Matches per batch needed to fire (default 1) / 每批触发所需匹配数（默认 1）
	Threshold int `yaml:"threshold"`
}

// SinkConfig selects the persistence backend.
// SinkConfig 选择持久化后端。
type SinkConfig struct {
	// "opensearch", "file" or "memory" / "opensearch"、"file" 或 "memory"
	Backend    string           `yaml:"backend"`
	OpenSearch OpenSearchConfig `yaml:"opensearch"`
	File       FileSinkConfig   `yaml:"file"`
}

// OpenSearchConfig defines the bulk-indexing sink.
// OpenSearchConfig 定义批量索引持久化配置。
type OpenSearchConfig struct {
	URL      string `yaml:"url"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	// Daily indices <prefix>-YYYY.MM.DD / 每日索引 <prefix>-YYYY.MM.DD
	IndexPrefix string `yaml:"index_prefix"`
	Timeout     string `yaml:"timeout"`
	Retries     int    `yaml:"retries"`
}

// FileSinkConfig defines the NDJSON file sink with rotation.
// FileSinkConfig 定义带轮转的 NDJSON 文件持久化配置。
type FileSinkConfig struct {
	Path       string `yaml:"path"`
	MaxSize    int    `yaml:"max_size"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAge     int    `yaml:"max_age"`
	Compress   bool   `yaml:"compress"`
}

// NotifyConfig groups the outbound alert channels.
// NotifyConfig 汇总出站告警通道。
type NotifyConfig struct {
	Telegram TelegramConfig `yaml:"telegram"`
	Webhook  WebhookConfig  `yaml:"webhook"`
}

// TelegramConfig defines the Telegram bot notifier.
// TelegramConfig 定义 Telegram 机器人通知配置。
type TelegramConfig struct {
	Enabled bool `yaml:"enabled"`
	// Falls back to TELEGRAM_BOT_TOKEN env / 为空时回退到 TELEGRAM_BOT_TOKEN 环境变量
	BotToken string `yaml:"bot_token"`
	// Falls back to TELEGRAM_CHAT_ID env / 为空时回退到 TELEGRAM_CHAT_ID 环境变量
	ChatID  string `yaml:"chat_id"`
	Timeout string `yaml:"timeout"`
}

// WebhookConfig defines the generic webhook notifier.
// WebhookConfig 定义通用 Webhook 通知配置。
type WebhookConfig struct {
	Enabled    bool   `yaml:"enabled"`
	URL        string `yaml:"url"`
	Timeout    string `yaml:"timeout"`
	Workers    int    `yaml:"workers"`
	QueueSize  int    `yaml:"queue_size"`
	MaxRetries int    `yaml:"max_retries"`
}

// AIConfig defines the annotation LLM client.
// AIConfig 定义注释 LLM 客户端配置。
type AIConfig struct {
	Enabled bool   `yaml:"enabled"`
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
	// Falls back to LOGWARD_AI_KEY env / 为空时回退到 LOGWARD_AI_KEY 环境变量
	APIKey      string  `yaml:"api_key"`
	Timeout     string  `yaml:"timeout"`
	MaxTokens   int     `yaml:"max_tokens"`
	Temperature float64 `yaml:"temperature"`
}

// TailConfig defines the file-follow producers.
// TailConfig 定义文件跟踪生产者配置。
type TailConfig struct {
	Enabled bool       `yaml:"enabled"`
	Poll    bool       `yaml:"poll"`
	Files   []TailFile `yaml:"files"`
}

// TailFile is one tailed file and its record labels.
// TailFile 是一个被跟踪的文件及其记录标签。
type TailFile struct {
	Path    string `yaml:"path"`
	Service string `yaml:"service"`
	Source  string `yaml:"source"`
	// "end" (default) or "start" / "end"（默认）或 "start"
	Position string `yaml:"position"`
	// Parse lines as JSON records / 将行解析为 JSON 记录
	JSON bool `yaml:"json"`
}

// MetricsConfig defines metrics collection and push.
// MetricsConfig 定义指标收集与推送配置。
type MetricsConfig struct {
	Enabled         bool   `yaml:"enabled"`
	StatsInterval   string `yaml:"stats_interval"`
	PushEnabled     bool   `yaml:"push_enabled"`
	PushGatewayAddr string `yaml:"push_gateway_addr"`
	PushInterval    string `yaml:"push_interval"`
}

// LoadGlobalConfig loads the configuration from a YAML file.
// LoadGlobalConfig 从 YAML 文件加载配置。
func LoadGlobalConfig(path string) (*GlobalConfig, error) {
	safePath := filepath.Clean(path) // Sanitize path to prevent directory traversal
	data, err := os.ReadFile(safePath)
	if err != nil {
		return nil, err
	}

	// Initialize with defaults / 使用默认值初始化
	cfg := Defaults()

	err = yaml.Unmarshal(data, cfg)
	if err != nil {
		return nil, err
	}

	// Validate configuration / 验证配置
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	// Check for missing keys and update file if needed
	checkForUpdates(path, data)

	return cfg, nil
}

// Defaults returns a GlobalConfig populated with the built-in defaults.
// Defaults 返回填充了内置默认值的 GlobalConfig。
func Defaults() *GlobalConfig {
	return &GlobalConfig{
		Server: ServerConfig{
			Enabled: true,
			Host:    "0.0.0.0",
			Port:    8000,
		},
		Queue: QueueConfig{
			Backend:    "stream",
			MaxSize:    10000,
			RecentSize: 100,
		},
		Stream: StreamConfig{
			Name:             "logward:logs",
			MaxLen:           100000,
			Group:            "log-processors",
			MinIdle:          "60s",
			SnapshotInterval: "30s",
		},
		Worker: WorkerConfig{
			Enabled:         true,
			BatchSize:       50,
			BlockTimeout:    "1s",
			IdleSleep:       "100ms",
			ErrorBackoff:    "5s",
			ReclaimInterval: "30s",
		},
		Alerts: AlertsConfig{
			Enabled:          true,
			Cooldown:         "5m",
			SpikeThreshold:   5,
			ServiceThreshold: 3,
			RepeatThreshold:  3,
			Rules:            DefaultAlertRules(),
		},
		Sink: SinkConfig{
			Backend: "memory",
			OpenSearch: OpenSearchConfig{
				URL:         "http://localhost:9200",
				IndexPrefix: "logs",
				Timeout:     "10s",
				Retries:     2,
			},
			File: FileSinkConfig{
				Path:       "/var/log/logward/events.ndjson",
				MaxSize:    100,
				MaxBackups: 5,
				MaxAge:     14,
				Compress:   true,
			},
		},
		Notify: NotifyConfig{
			Telegram: TelegramConfig{
				Timeout: "10s",
			},
			Webhook: WebhookConfig{
				Timeout:    "10s",
				Workers:    3,
				QueueSize:  100,
				MaxRetries: 2,
			},
		},
		AI: AIConfig{
			BaseURL:     "https://api.groq.com/openai/v1",
			Model:       "llama-3.1-70b-versatile",
			Timeout:     "15s",
			MaxTokens:   1024,
			Temperature: 0.3,
		},
		Metrics: MetricsConfig{
			Enabled:       true,
			StatsInterval: "2s",
			PushInterval:  "15s",
		},
		Logging: logger.LoggingConfig{
			Enabled:    false,
			Level:      "info",
			Path:       "/var/log/logward/logward.log",
			MaxSize:    10, // 10MB
			MaxBackups: 3,
			MaxAge:     30, // 30 days
			Compress:   true,
		},
	}
}

// DefaultAlertRules returns the built-in custom rules shipped in the template.
// DefaultAlertRules 返回模板内置的自定义规则。
func DefaultAlertRules() []AlertRule {
	return []AlertRule{
		{
			ID:         "CRASH",
			Severity:   "critical",
			Title:      "Crash detected",
			Expression: `any(["crash", "fatal", "panic", "oom", "killed"], lower(Message) contains #)`,
			Threshold:  1,
		},
		{
			ID:         "SLOW",
			Severity:   "warning",
			Title:      "Slow response",
			Expression: `any(["timeout", "slow", "latency"], lower(Message) contains #)`,
			Threshold:  1,
		},
	}
}

func checkForUpdates(path string, data []byte) {
	log := logger.Get(nil)
	// 1. Unmarshal default config (TEMPLATE) to Node (Source of Truth for structure & comments)
	// We use DefaultConfigTemplate instead of marshaling cfg to preserve comments.
	var defaultNode yaml.Node
	if err := yaml.Unmarshal([]byte(DefaultConfigTemplate), &defaultNode); err != nil {
		log.Warnf("[WARN]  Failed to parse default config template: %v", err)
		return
	}

	// 2. Unmarshal existing file to Node (Target to update)
	var fileNode yaml.Node
	if err := yaml.Unmarshal(data, &fileNode); err != nil {
		log.Warnf("[WARN]  Config file seems malformed, skipping auto-update check: %v", err)
		return
	}

	// 3. Merge missing keys from defaultNode into fileNode
	// defaultNode has comments. fileNode has user values.
	// Result: defaultNode structure + comments + user values + user extra keys.
	// This effectively "repairs" the config file structure while keeping values.
	MergeYamlNodes(&defaultNode, &fileNode)

	// Check if content changed before writing
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&defaultNode); err != nil {
		log.Warnf("[ERROR] Failed to encode updated config: %v", err)
		return
	}

	if bytes.Equal(buf.Bytes(), data) {
		// No changes (including comments), skip write
		return
	}

	log.Infof("[RELOAD] Refreshing configuration file structure and comments...")

	// Backup original
	backupPath := path + ".bak." + time.Now().Format("20060102-150405")
	if err := os.WriteFile(backupPath, data, 0600); err != nil {
		log.Warnf("[WARN]  Failed to backup config file, skipping update: %v", err)
		return
	}

	// Cleanup old backups (Keep latest 3) / 清理旧备份（保留最近 3 个）
	cleanupBackups(path, 3)

	// Write new config (defaultNode now contains merged state)
	// yaml.v3 Encoder adds a newline
	if err := fileutil.AtomicWriteFile(path, buf.Bytes(), 0600); err != nil {
		log.Warnf("[ERROR] Failed to update config file: %v", err)
	} else {
		log.Infof("[OK] Configuration file updated (comments restored/preserved).")
	}
}

func SaveGlobalConfig(path string, cfg *GlobalConfig) error {
	// 1. Marshal new config to Node
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	var newNode yaml.Node
	if unmarshalErr := yaml.Unmarshal(data, &newNode); unmarshalErr != nil {
		return unmarshalErr
	}

	// 2. Read existing file to Node (if exists)
	safePath := filepath.Clean(path) // Sanitize path to prevent directory traversal
	fileData, readErr := os.ReadFile(safePath)
	if readErr == nil {
		var fileNode yaml.Node
		if unmarshalErr := yaml.Unmarshal(fileData, &fileNode); unmarshalErr == nil {
			// 3. Merge new config INTO file config (preserving comments)
			MergeYamlNodes(&fileNode, &newNode)

			// Encode back
			var buf bytes.Buffer
			enc := yaml.NewEncoder(&buf)
			enc.SetIndent(2)
			if encodeErr := enc.Encode(&fileNode); encodeErr != nil {
				return encodeErr
			}
			return fileutil.AtomicWriteFile(path, buf.Bytes(), 0600)
		}
	}

	// Fallback if file doesn't exist or is malformed: just write the new config
	return fileutil.AtomicWriteFile(path, data, 0600)
}

// MergeYamlNodes updates target (existing file) with source (new config).
// It preserves comments from target where possible.
func MergeYamlNodes(target, source *yaml.Node) {
	if target.Kind == yaml.DocumentNode {
		if source.Kind == yaml.DocumentNode {
			MergeYamlNodes(target.Content[0], source.Content[0])
		}
		return
	}

	if target.Kind != yaml.MappingNode || source.Kind != yaml.MappingNode {
		// Replace target with source, but try to keep comments
		// Copy comments from target (old) to source (new)
		if source.HeadComment == "" {
			source.HeadComment = target.HeadComment
		}
		if source.LineComment == "" {
			source.LineComment = target.LineComment
		}
		if source.FootComment == "" {
			source.FootComment = target.FootComment
		}

		*target = *source
		return
	}

	// Both are MappingNodes.
	// We want to preserve Target's structure/comments (Default Config)
	// and update it with Source's values (User Config).
	// We also want to keep any extra keys from Source that are not in Target.

	// 1. Map Source keys for lookup
	sourceMap := make(map[string]int)
	for i := 0; i < len(source.Content); i += 2 {
		sourceMap[source.Content[i].Value] = i
	}

	var newContent []*yaml.Node
	processedSourceKeys := make(map[string]bool)

	// 2. Iterate Target (Default) keys
	for i := 0; i < len(target.Content); i += 2 {
		tKey := target.Content[i]
		tVal := target.Content[i+1]

		if sIdx, ok := sourceMap[tKey.Value]; ok {
			// Key exists in Source: Merge Source value into Target value
			sVal := source.Content[sIdx+1]
			MergeYamlNodes(tVal, sVal)
			processedSourceKeys[tKey.Value] = true
		}
		// Always append Target key/value (to keep comments and order)
		newContent = append(newContent, tKey, tVal)
	}

	// 3. Append keys from Source that were not in Target
	for i := 0; i < len(source.Content); i += 2 {
		sKey := source.Content[i]
		sVal := source.Content[i+1]
		if !processedSourceKeys[sKey.Value] {
			newContent = append(newContent, sKey, sVal)
		}
	}

	target.Content = newContent
}

// cleanupBackups keeps only the latest N backup files.
func cleanupBackups(originalPath string, keep int) {
	log := logger.Get(nil)
	dir := filepath.Dir(originalPath)
	baseName := filepath.Base(originalPath)
	pattern := baseName + ".bak.*"

	matches, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil {
		return
	}

	if len(matches) <= keep {
		return
	}

	// Sort by name (timestamp allows chronological sorting)
	sort.Strings(matches)

	// Remove oldest
	toRemove := matches[:len(matches)-keep]
	for _, f := range toRemove {
		if err := os.Remove(f); err == nil {
			log.Infof("[DELETE] Removed old backup: %s", f)
		}
	}
}

// ParseDurationOr parses a duration string, falling back to def when the
// value is empty or malformed.
// ParseDurationOr 解析时长字符串，为空或格式错误时回退到 def。
func ParseDurationOr(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return def
	}
	return d
}
