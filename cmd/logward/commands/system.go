package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/logward/logward/internal/config"
	"github.com/logward/logward/internal/utils/fileutil"
	"github.com/logward/logward/internal/utils/logger"
	"github.com/logward/logward/internal/version"
)

var initForce bool

// InitCmd writes the default configuration template.
// InitCmd 写出默认配置模板。
var InitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the default configuration file",
	// Short: 写出默认配置文件
	RunE: func(cmd *cobra.Command, args []string) error {
		path := config.GetConfigPath()
		if _, err := os.Stat(path); err == nil && !initForce {
			return fmt.Errorf("config file %s already exists (use --force to overwrite)", path)
		}

		if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
		if err := fileutil.AtomicWriteFile(path, []byte(config.DefaultConfigTemplate), 0600); err != nil {
			return fmt.Errorf("failed to write config: %w", err)
		}

		logger.Get(cmd.Context()).Infof("✅ Default configuration written to %s", path)
		return nil
	},
}

// CheckCmd validates the configuration file without starting anything.
// CheckCmd 只验证配置文件，不启动任何组件。
var CheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate the configuration file",
	// Short: 验证配置文件
	RunE: func(cmd *cobra.Command, args []string) error {
		path := config.GetConfigPath()
		log := logger.Get(cmd.Context())
		log.Infof("🔍 Checking configuration in %s...", path)

		cfg, err := config.LoadGlobalConfig(path)
		if err != nil {
			return fmt.Errorf("configuration invalid: %w", err)
		}

		log.Infof("✅ Configuration is valid (queue backend=%s, sink backend=%s)",
			cfg.Queue.Backend, cfg.Sink.Backend)
		return nil
	},
}

// VersionCmd prints the build metadata.
// VersionCmd 打印构建元数据。
var VersionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	// Short: 打印版本信息
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("logward %s\n", version.Version)
		fmt.Printf("  commit:     %s\n", version.GitCommit)
		fmt.Printf("  build time: %s\n", version.BuildTime)
	},
}

func init() {
	InitCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite an existing config file")
}
