package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"textsum/internal/config"
	"textsum/internal/scheduler"
	"textsum/internal/summarizer"
	"textsum/internal/web"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const (
	appTitle        = "Text Summarizer"
	qwenInstallHint = "npm i -g @qwen-code/qwen-code"
	shutdownTimeout = 15 * time.Second
)

func main() {
	start := time.Now()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.LoadConfig()
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stdout, nil)).ErrorContext(ctx, "Failed to load config",
			"error", err)

		os.Exit(1)
	}

	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(log)

	if err = run(ctx, cfg, log); err != nil {
		log.ErrorContext(ctx, "Exiting with error",
			"error", err,
			"uptimeSeconds", time.Since(start).Seconds())

		os.Exit(1)
	}

	log.InfoContext(ctx, "Exiting...",
		"uptimeSeconds", time.Since(start).Seconds())
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	tool, installHint := initTool(ctx, cfg, log)

	adapter := summarizer.NewAdapter(ctx, tool, summarizer.AdapterConfig{
		MaxConcurrent:      cfg.MaxConcurrent,
		BreakerFailures:    cfg.BreakerFailures,
		BreakerCooldown:    cfg.BreakerCooldown,
		CacheSize:          cfg.CacheSize,
		CacheTTL:           cfg.CacheTTL,
		DefaultTargetWords: cfg.DefaultTargetWords,
		StalePromptAge:     cfg.StalePromptAge,
	}, summarizer.NewMetrics(reg), log)

	srv, err := web.New(web.Config{
		Addr:               cfg.Addr,
		Title:              appTitle,
		InstallHint:        installHint,
		MaxInputLength:     cfg.MaxInputLength,
		MinTargetWords:     cfg.MinTargetWords,
		MaxTargetWords:     cfg.MaxTargetWords,
		DefaultTargetWords: cfg.DefaultTargetWords,
		TargetWordsStep:    cfg.TargetWordsStep,
		InvocationTimeout:  cfg.InvocationTimeout,
	}, adapter, reg, log)
	if err != nil {
		return err
	}

	sched := scheduler.New(ctx, cfg.JanitorSpec, adapter, log)

	if err = sched.Start(); err != nil {
		return err
	}
	defer sched.Stop()
	log.InfoContext(ctx, "Scheduler is started",
		"spec", sched.Spec(),
		"timezone", time.FixedZone(scheduler.Timezone, scheduler.TimezoneOffsetSeconds).String())

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.Start()
	}()
	log.InfoContext(ctx, "Server is started",
		"addr", cfg.Addr,
		"tool", adapter.ToolName(),
		"toolAvailable", adapter.Available())

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-c:
		log.InfoContext(ctx, "Shutdown signal is received",
			"signal", sig.String())
	case err = <-serveErr:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	if err = srv.Stop(shutdownCtx); err != nil {
		return err
	}
	log.InfoContext(ctx, "Server is stopped")

	return <-serveErr
}

// initTool returns nil when no backend can be built so fallback will be used.
func initTool(ctx context.Context, cfg config.Config, log *slog.Logger) (summarizer.Tool, string) {
	switch cfg.Backend {
	case config.BackendOpenAI:
		if cfg.OpenAIAPIKey == "" {
			log.WarnContext(ctx, "OPENAI_API_KEY is missing so fallback will be used",
				"envVar", "OPENAI_API_KEY")

			return nil, "Set OPENAI_API_KEY to enable OpenAI summaries."
		}

		log.InfoContext(ctx, "OpenAI summarizer is initialized",
			"provider", "openai")

		return summarizer.NewOpenAITool(cfg.OpenAIAPIKey), ""
	default:
		return summarizer.NewCLITool(summarizer.CLIConfig{
			Binary:            cfg.ToolBinary,
			Args:              cfg.ToolArgs,
			VersionFlag:       cfg.ToolVersionFlag,
			WorkDir:           cfg.ToolWorkDir,
			ProbeTimeout:      cfg.ProbeTimeout,
			InvocationTimeout: cfg.InvocationTimeout,
		}, log.With("component", "cli")), qwenInstallHint
	}
}
