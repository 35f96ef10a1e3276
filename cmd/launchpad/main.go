package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/rovshanmuradov/launchpad/internal/app"
	"github.com/rovshanmuradov/launchpad/internal/config"
	"github.com/rovshanmuradov/launchpad/internal/logger"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to the config file (empty for env and defaults only)")
	scenarioPath := flag.String("scenario", "", "scenario file to run")
	start := flag.Int64("start", 0, "clock reading the scenario starts at (default: now)")
	plain := flag.Bool("plain", false, "print the report without colors")
	flag.Parse()

	if err := run(*configPath, *scenarioPath, *start, *plain); err != nil {
		fmt.Fprintf(os.Stderr, "launchpad: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, scenarioPath string, start int64, plain bool) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return err
	}

	log, err := logger.New(logger.Config{
		Development: cfg.DebugLogging,
		Pretty:      cfg.PrettyLogging,
		LogFile:     cfg.LogFile,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() {
		_ = log.Sync()
		_ = log.Close()
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runLog := log.WithOperation("run")
	runner := app.NewRunner(cfg, runLog)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := runner.Shutdown(shutdownCtx); err != nil {
			runLog.Warn("Shutdown finished with errors", zap.Error(err))
		}
	}()

	if start == 0 {
		start = time.Now().Unix()
	}
	if err := runner.Start(ctx, start); err != nil {
		return err
	}
	if scenarioPath == "" {
		runLog.Info("No scenario given, exchange initialized")
		return nil
	}

	report, err := runner.RunScenario(ctx, scenarioPath)
	if err != nil {
		return err
	}
	paths, err := runner.Export(ctx)
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}
	for _, p := range paths {
		runLog.Info("Wrote export", zap.String("file", p))
	}

	snapshots, err := runner.Snapshots(ctx)
	if err != nil {
		return err
	}
	styles := app.NewReportStyles()
	if plain {
		styles = app.PlainReportStyles()
	}
	fmt.Println(app.RenderReport(report, snapshots, styles))

	if failed := len(report.Failed()); failed > 0 {
		return fmt.Errorf("%d steps did not behave as scripted", failed)
	}
	return nil
}
