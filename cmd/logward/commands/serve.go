package commands

import (
	"github.com/spf13/cobra"

	"github.com/logward/logward/internal/app"
)

// ServeCmd runs the full pipeline: queue, consumer worker, HTTP API and the
// configured file tailers.
// ServeCmd 运行全量管线：队列、消费 worker、HTTP API 与配置的文件跟踪器。
var ServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the full pipeline (queue + worker + API + tailers)",
	// Short: 运行全量管线（队列 + worker + API + 跟踪器）
	RunE: func(cmd *cobra.Command, args []string) error {
		return app.RunServe(cmd.Context())
	},
}

// WorkerCmd runs a consumer-only process. Multiple workers with distinct
// --consumer names share one consumer group on the stream backend.
// WorkerCmd 运行仅消费进程。多个使用不同 --consumer 名的 worker 在流后端
// 上共享同一消费者组。
var WorkerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run a consumer-only worker process (scale-out)",
	// Short: 运行仅消费的 worker 进程（水平扩展）
	RunE: func(cmd *cobra.Command, args []string) error {
		return app.RunWorker(cmd.Context())
	},
}

// TailCmd runs a producer-only process feeding the queue from files.
// TailCmd 运行仅生产进程，从文件向队列写入。
var TailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Run file tailers only, feeding the ingest queue",
	// Short: 仅运行文件跟踪器，向采集队列写入
	RunE: func(cmd *cobra.Command, args []string) error {
		return app.RunTail(cmd.Context())
	},
}
