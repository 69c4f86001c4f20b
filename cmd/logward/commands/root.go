package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/logward/logward/internal/config"
	"github.com/logward/logward/internal/runtime"
	"github.com/logward/logward/internal/utils/logger"
)

var RootCmd = &cobra.Command{
	Use:   "logward",
	Short: "A log ingestion, enrichment and alerting pipeline",
	// Short: 日志采集、富化与告警管线
	Long: `logward ingests application log events through a durable queue,
enriches and classifies them, persists them, and raises deduplicated
operator alerts on anomalous patterns.
logward 通过持久化队列采集应用日志事件，对其富化与分类、落盘，
并针对异常模式发出去重后的运维告警。`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// Load configuration to get logging settings
		// 加载配置以获取日志设置
		cfgPath := runtime.ConfigPath
		if cfgPath == "" {
			cfgPath = config.DefaultConfigPath
		}

		globalCfg, err := config.LoadGlobalConfig(cfgPath)
		if err != nil {
			// If config fails to load, use default logging config (console only)
			// 如果加载配置失败，使用默认日志配置（仅控制台）
			logger.Init(logger.LoggingConfig{
				Enabled: true,
				Level:   "info",
			})
		} else {
			logger.Init(globalCfg.Logging)
		}

		// Inject logger into context
		// 将 Logger 注入 Context
		ctx := logger.WithContext(cmd.Context(), logger.Get(nil))
		cmd.SetContext(ctx)
	},
}

func init() {
	// Config file path
	// 配置文件路径
	RootCmd.PersistentFlags().StringVarP(&runtime.ConfigPath, "config", "c", "", fmt.Sprintf("Path to configuration file (default: %s)", config.DefaultConfigPath))

	// Stream consumer identity override, for scale-out worker processes
	// 流消费者身份覆盖，用于水平扩展的 worker 进程
	RootCmd.PersistentFlags().StringVar(&runtime.ConsumerName, "consumer", "", "Stream consumer name (default: <hostname>-<pid>)")

	RootCmd.AddCommand(ServeCmd)
	RootCmd.AddCommand(WorkerCmd)
	RootCmd.AddCommand(TailCmd)
	RootCmd.AddCommand(IngestCmd)
	RootCmd.AddCommand(InitCmd)
	RootCmd.AddCommand(CheckCmd)
	RootCmd.AddCommand(VersionCmd)

	RootCmd.CompletionOptions.DisableDescriptions = true
}

// createCustomCompletionCmd creates a custom completion command without powershell.
// createCustomCompletionCmd 创建不含 powershell 的自定义补全命令。
func createCustomCompletionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "completion [bash|zsh|fish]",
		Short: "Generate shell autocompletion script",
		Long: `Generate shell autocompletion script for logward.
生成 logward 的 shell 自动补全脚本。

Supported shells:
  bash - Generate for bash
  zsh  - Generate for zsh
  fish - Generate for fish

Examples:
  logward completion bash > /etc/bash_completion.d/logward
  logward completion zsh  > "${fpath[1]}/_logward"
  logward completion fish > ~/.config/fish/completions/logward.fish`,
		Args: cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			shell := args[0]
			switch shell {
			case "bash":
				if err := RootCmd.GenBashCompletionV2(os.Stdout, true); err != nil {
					fmt.Fprintf(os.Stderr, "Error: %v\n", err)
					os.Exit(1)
				}
			case "zsh":
				if err := RootCmd.GenZshCompletion(os.Stdout); err != nil {
					fmt.Fprintf(os.Stderr, "Error: %v\n", err)
					os.Exit(1)
				}
			case "fish":
				if err := RootCmd.GenFishCompletion(os.Stdout, true); err != nil {
					fmt.Fprintf(os.Stderr, "Error: %v\n", err)
					os.Exit(1)
				}
			default:
				fmt.Fprintf(os.Stderr, "Error: Unsupported shell: %s\nSupported: bash, zsh, fish\n", shell)
				os.Exit(1)
			}
		},
	}
}

func Execute() {
	// Replace default completion command with custom one (no powershell)
	// 用自定义补全命令替换默认命令（不含 powershell）
	for _, cmd := range RootCmd.Commands() {
		if cmd.Use == "completion" {
			RootCmd.RemoveCommand(cmd)
			break
		}
	}
	RootCmd.AddCommand(createCustomCompletionCmd())

	if err := RootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
