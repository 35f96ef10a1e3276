// Package app wires configuration, storage, the exchange service and the
// scenario runner into one process.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"time"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/launchpad/internal/config"
	"github.com/rovshanmuradov/launchpad/internal/events"
	"github.com/rovshanmuradov/launchpad/internal/export"
	"github.com/rovshanmuradov/launchpad/internal/launchpad"
	"github.com/rovshanmuradov/launchpad/internal/ledger"
	"github.com/rovshanmuradov/launchpad/internal/logger"
	"github.com/rovshanmuradov/launchpad/internal/metrics"
	"github.com/rovshanmuradov/launchpad/internal/scenario"
	"github.com/rovshanmuradov/launchpad/internal/service"
	"github.com/rovshanmuradov/launchpad/internal/storage"
)

const (
	eventBufferSize    = 256
	eventFlushInterval = time.Second
	eventLogName       = "events.csv"
)

// Runner owns every long-lived component of a launchpad process.
type Runner struct {
	cfg      *config.Config
	logger   *zap.Logger
	shutdown *ShutdownHandler

	tokens  *ledger.Tokens
	vault   *ledger.Vault
	clock   *launchpad.ManualClock
	bus     *events.Bus
	metrics *metrics.Collector
	store   storage.Store
	service *service.Service
}

func NewRunner(cfg *config.Config, logger *zap.Logger) *Runner {
	return &Runner{
		cfg:      cfg,
		logger:   logger.Named("runner"),
		shutdown: NewShutdownHandler(logger, 10*time.Second),
	}
}

// Start opens storage, builds the service at clock reading start and makes
// sure the global configuration exists.
func (r *Runner) Start(ctx context.Context, start int64) error {
	store, err := openStore(ctx, r.cfg.Storage, r.logger)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	r.store = store
	r.shutdown.Add("store", store)

	r.tokens = ledger.NewTokens(r.logger)
	r.vault = ledger.NewVault(r.cfg.Vault.MinimumBalance, r.logger)
	r.clock = launchpad.NewManualClock(start)
	r.metrics = metrics.NewCollector(r.cfg.Metrics.Namespace)

	if err := r.startEventLog(); err != nil {
		return err
	}
	if r.cfg.Metrics.Listen != "" {
		r.serveMetrics()
	}

	exchange := launchpad.NewExchange(r.tokens, r.vault, launchpad.NewAddressBook(r.cfg.ProgramID()), r.logger)
	r.service = service.New(store, exchange, service.Options{
		Clock:              r.clock,
		Bus:                r.bus,
		Metrics:            r.metrics,
		DefaultTotalSupply: r.cfg.Exchange.TotalSupply,
	}, r.logger)

	_, err = r.service.Initialize(ctx, r.cfg.InitParams())
	switch {
	case errors.Is(err, service.ErrAlreadyInitialized):
		r.logger.Info("Exchange already initialized", zap.String("driver", r.cfg.Storage.Driver))
	case err != nil:
		return fmt.Errorf("initialize exchange: %w", err)
	}

	r.logger.Info("Runner started",
		zap.String("driver", r.cfg.Storage.Driver),
		zap.String("program_id", r.cfg.Exchange.ProgramID),
		zap.Int("workers", r.cfg.Workers))
	return nil
}

// startEventLog appends every bus event to a CSV file in the export dir.
func (r *Runner) startEventLog() error {
	path := filepath.Join(r.cfg.Export.Dir, eventLogName)
	w, err := logger.NewSafeCSVWriter(path, export.EventHeaders(), eventFlushInterval, r.logger)
	if err != nil {
		return fmt.Errorf("open event log: %w", err)
	}
	r.shutdown.Add("event_log", w)

	r.bus = events.NewBus(r.logger, eventBufferSize)
	r.bus.Subscribe(events.AllEvents, export.NewEventRecorder(w))
	r.shutdown.AddFunc("event_bus", func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return r.bus.Shutdown(ctx)
	})
	return nil
}

func (r *Runner) serveMetrics() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", r.metrics.Handler())
	srv := &http.Server{
		Addr:              r.cfg.Metrics.Listen,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		r.logger.Info("Serving metrics", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			r.logger.Error("Metrics server stopped", zap.Error(err))
		}
	}()
	r.shutdown.AddFunc("metrics_server", func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(ctx)
	})
}

// Service returns the exchange service; nil before Start.
func (r *Runner) Service() *service.Service { return r.service }

// Authority is the configured exchange authority.
func (r *Runner) Authority() solana.PublicKey { return r.cfg.InitParams().Authority }

// RunScenario loads and executes the scenario at path starting at the
// current clock reading.
func (r *Runner) RunScenario(ctx context.Context, path string) (*scenario.Report, error) {
	sc, err := scenario.NewLoader(r.logger).Load(path)
	if err != nil {
		return nil, err
	}

	runner := scenario.NewRunner(r.service, r.vault, r.tokens, r.clock, r.Authority(), r.cfg.Workers, r.logger)
	report, err := runner.Run(ctx, sc, r.clock.Now())
	if err != nil {
		return report, err
	}

	for _, res := range report.Failed() {
		r.logger.Warn("Step did not behave as scripted",
			zap.String("step", res.Step),
			zap.String("operation", string(res.Operation)),
			zap.Error(res.Err))
	}
	return report, nil
}

// Export writes the journal, market snapshots and the daily report for the
// current clock day. It returns the paths written.
func (r *Runner) Export(ctx context.Context) ([]string, error) {
	entries, err := r.service.Journal(ctx, storage.JournalFilter{})
	if err != nil {
		return nil, fmt.Errorf("read journal: %w", err)
	}
	snapshots, err := r.service.Snapshots(ctx)
	if err != nil {
		return nil, fmt.Errorf("read markets: %w", err)
	}

	exporter := export.NewExporter(r.logger)
	opts := export.ExportOptions{
		Format:    export.ExportFormat(r.cfg.Export.Format),
		OutputDir: r.cfg.Export.Dir,
	}

	var paths []string
	if len(entries) > 0 {
		path, err := exporter.ExportJournal(entries, opts)
		if err != nil {
			return paths, err
		}
		paths = append(paths, path)

		daily, err := exporter.ExportDailyReport(entries, time.Unix(r.clock.Now(), 0), r.cfg.Export.Dir)
		if err != nil {
			return paths, err
		}
		if daily != "" {
			paths = append(paths, daily)
		}
	}
	if len(snapshots) > 0 {
		path, err := exporter.ExportSnapshots(snapshots, opts)
		if err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// Snapshots returns the current state of every market.
func (r *Runner) Snapshots(ctx context.Context) ([]*service.MarketSnapshot, error) {
	return r.service.Snapshots(ctx)
}

// Shutdown closes everything Start opened.
func (r *Runner) Shutdown(ctx context.Context) error {
	r.logger.Info("Launchpad shutting down gracefully")
	return r.shutdown.Shutdown(ctx)
}
