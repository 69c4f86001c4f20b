package runtime

// ConfigPath stores the path to the configuration file provided via CLI flags.
// ConfigPath 存储通过 CLI 标志提供的配置文件路径。
var ConfigPath string

// ConsumerName overrides the stream consumer identity provided via CLI flags.
// Distinct names let multiple worker processes share one consumer group.
// ConsumerName 存储通过 CLI 标志提供的流消费者身份覆盖值。
// 不同的名称允许多个 worker 进程共享同一个消费者组。
var ConsumerName string
