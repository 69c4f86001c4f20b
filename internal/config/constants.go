package config

import "github.com/logward/logward/internal/runtime"

const (
	// DefaultConfigPath is the standard location for the logward configuration file.
	// DefaultConfigPath 是 logward 配置文件的标准位置。
	DefaultConfigPath = "/etc/logward/config.yaml"

	// DefaultPidPath is the location of the daemon PID file.
	// DefaultPidPath 是守护进程 PID 文件的位置。
	DefaultPidPath = "/var/run/logward.pid"

	// DefaultStatePath is the default durable stream snapshot location.
	// DefaultStatePath 是持久化流快照的默认位置。
	DefaultStatePath = "/var/lib/logward/stream.json"
)

// GetDefaultConfigPath returns the default configuration file path
// GetDefaultConfigPath 返回默认配置文件路径
func GetDefaultConfigPath() string {
	return DefaultConfigPath
}

// GetConfigPath returns the configuration file path
// If runtime.ConfigPath is set (e.g., via CLI flag or test), it takes precedence.
// GetConfigPath 返回配置文件路径
// 如果 runtime.ConfigPath 已设置（例如通过 CLI 标志或测试），则优先使用它。
func GetConfigPath() string {
	if runtime.ConfigPath != "" {
		return runtime.ConfigPath
	}
	return DefaultConfigPath
}
