package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/logward/logward/internal/api"
	"github.com/logward/logward/internal/config"
	"github.com/logward/logward/internal/metrics"
	"github.com/logward/logward/internal/utils/logger"
)

func managePidFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("PID file %s already exists. Is logward already running?", path)
	}
	pid := os.Getpid()
	if err := os.WriteFile(path, []byte(strconv.Itoa(pid)), 0644); err != nil {
		return fmt.Errorf("failed to write PID file: %v", err)
	}
	return nil
}

func removePidFile(path string) {
	if err := os.Remove(path); err != nil {
		logger.Get(nil).Warnf("⚠️ Failed to remove PID file: %v", err)
	}
}

// loadAndInit loads the configuration and re-initializes logging from it.
// loadAndInit 加载配置并据此重新初始化日志。
func loadAndInit(ctx context.Context) (*config.GlobalConfig, error) {
	configPath := config.GetConfigPath()
	cfg, err := config.LoadGlobalConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config %s: %w", configPath, err)
	}
	logger.Init(cfg.Logging)
	logger.Get(ctx).Infof("✅ Configuration loaded from %s", configPath)
	return cfg, nil
}

// RunServe runs the full pipeline: queue, consumer worker, HTTP API and,
// when configured, the file tailers. Blocks until SIGINT/SIGTERM or ctx
// cancellation, then drains.
// RunServe 运行全量管线：队列、消费 worker、HTTP API，以及配置时的文件
// 跟踪器。阻塞直到收到 SIGINT/SIGTERM 或 ctx 取消，然后排空退出。
func RunServe(ctx context.Context) error {
	cfg, err := loadAndInit(ctx)
	if err != nil {
		return err
	}
	return runPipeline(ctx, cfg, Options{Worker: cfg.Worker.Enabled, Tail: true}, cfg.Server.Enabled)
}

// RunWorker runs a consumer-only process against the shared stream. Start
// several with distinct --consumer names to scale out.
// RunWorker 运行仅消费进程，对接共享流。用不同的 --consumer 名启动多个
// 即可水平扩展。
func RunWorker(ctx context.Context) error {
	cfg, err := loadAndInit(ctx)
	if err != nil {
		return err
	}
	return runPipeline(ctx, cfg, Options{Worker: true}, false)
}

// RunTail runs a producer-only process: file tailers feeding the queue.
// RunTail 运行仅生产进程：文件跟踪器向队列写入。
func RunTail(ctx context.Context) error {
	cfg, err := loadAndInit(ctx)
	if err != nil {
		return err
	}
	if !cfg.Tail.Enabled || len(cfg.Tail.Files) == 0 {
		return fmt.Errorf("tail mode requires tail.enabled and at least one file in tail.files")
	}
	return runPipeline(ctx, cfg, Options{Tail: true}, false)
}

func runPipeline(ctx context.Context, cfg *config.GlobalConfig, opts Options, serveAPI bool) error {
	log := logger.Get(ctx)

	if err := managePidFile(config.DefaultPidPath); err != nil {
		// Worker and tail processes run alongside a serve process, so a
		// taken PID file only blocks the full-pipeline mode.
		// worker 与 tail 进程会和 serve 进程并存，因此 PID 文件被占用
		// 只阻止全量管线模式。
		if serveAPI {
			return err
		}
		log.Debugf("PID file busy, continuing in auxiliary mode: %v", err)
	} else {
		defer removePidFile(config.DefaultPidPath)
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pipeline, err := NewPipeline(ctx, cfg, opts)
	if err != nil {
		return err
	}
	defer pipeline.Close()

	var wg sync.WaitGroup

	if pipeline.Webhook != nil {
		pipeline.Webhook.Start(ctx)
	}
	if pipeline.Worker != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			pipeline.Worker.Run(ctx)
		}()
	}
	if pipeline.Tailer != nil {
		pipeline.Tailer.Start()
	}

	collector := metrics.NewCollector(&cfg.Metrics, pipeline)
	if err := collector.Start(ctx); err != nil {
		log.Warnf("⚠️ Metrics collector failed to start: %v", err)
	}
	defer func() { _ = collector.Stop() }()

	var server *api.Server
	if serveAPI {
		server = api.NewServer(api.Options{
			Queue:     pipeline.Queue,
			Stream:    pipeline.Stream,
			Memory:    pipeline.Memory,
			Sink:      pipeline.Sink,
			Notifier:  pipeline.Notifier,
			Annotator: pipeline.Annotator,
			Enricher:  pipeline.Enricher,
			Hub:       pipeline.Hub,
			Worker:    pipeline.Worker,
			Config:    cfg.Server,
		})
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := server.Start(); err != nil {
				log.Errorf("❌ API server failed: %v", err)
				stop()
			}
		}()
	}

	log.Infof("🛡️ Logward is running (backend=%s, worker=%v, api=%v, tail=%v)",
		cfg.Queue.Backend, pipeline.Worker != nil, serveAPI, pipeline.Tailer != nil)

	<-ctx.Done()
	log.Info("👋 Shutting down...")

	if server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Warnf("⚠️ API shutdown incomplete: %v", err)
		}
		cancel()
	}

	// The worker drains its in-flight batch before returning; wait for it.
	// worker 返回前会排空在途批次；等待它完成。
	wg.Wait()
	_ = logger.Sync()
	return nil
}
