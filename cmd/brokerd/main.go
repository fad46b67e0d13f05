// Command brokerd runs the broker: it loads configuration, brings up the
// journal, seeds the address settings repository, and serves the configured
// acceptors until interrupted.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/c360/brokerkit/broker"
	"github.com/c360/brokerkit/config"
	"github.com/c360/brokerkit/journal"
	"github.com/c360/brokerkit/metric"
	"github.com/c360/brokerkit/settings"
)

func main() {
	configPath := flag.String("config", "", "path to broker configuration file")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
	flag.Parse()

	logger := newLogger(*logLevel)
	slog.SetDefault(logger)

	if err := run(*configPath, logger); err != nil {
		logger.Error("broker exited with error", "error", err)
		os.Exit(1)
	}
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

func run(configPath string, logger *slog.Logger) error {
	cfg := config.Default()
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	registry := metric.NewMetricsRegistry()

	repo := settings.NewAddressSettingsRepository(
		settings.WithLogger[*settings.AddressSettings](logger),
		settings.WithMetricsRegistry[*settings.AddressSettings](registry),
	)
	repo.SetDefault(&settings.AddressSettings{})
	if err := seedAddressSettings(repo, cfg); err != nil {
		return err
	}

	factory, journalFile, err := startJournal(cfg, logger, registry)
	if err != nil {
		return err
	}
	defer func() {
		if err := factory.Stop(); err != nil {
			logger.Warn("journal stop failed", "error", err)
		}
	}()

	handler := broker.NewCoreHandler(repo, journalFile, logger)
	server := broker.NewServer(cfg, handler, logger, registry)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	group, ctx := errgroup.WithContext(ctx)

	if err := server.Start(ctx); err != nil {
		return err
	}
	logger.Info("broker started", "name", cfg.Broker.Name, "acceptors", len(cfg.Acceptors))

	var metricsServer *http.Server
	if cfg.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle(cfg.Metrics.Path, registry.Handler())
		metricsServer = &http.Server{Addr: cfg.Metrics.Address, Handler: mux}
		group.Go(func() error {
			logger.Info("metrics endpoint listening", "address", cfg.Metrics.Address, "path", cfg.Metrics.Path)
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return err
			}
			return nil
		})
	}

	group.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down")

		if metricsServer != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = metricsServer.Shutdown(shutdownCtx)
		}
		return server.Stop()
	})

	return group.Wait()
}

// startJournal brings up the sequential file factory and opens the active
// journal file with the timed buffer attached.
func startJournal(cfg *config.Config, logger *slog.Logger, registry *metric.MetricsRegistry) (*journal.NIOSequentialFileFactory, journal.SequentialFile, error) {
	opts := []journal.Option{
		journal.WithLogger(logger),
		journal.WithMetricsRegistry(registry),
		journal.WithCriticalErrorListener(&haltOnIOError{logger: logger}),
		journal.WithLogRates(cfg.Journal.LogRates),
	}
	if cfg.Journal.BufferSize > 0 {
		opts = append(opts, journal.WithTimedBuffer(cfg.Journal.BufferSize, cfg.Journal.BufferTimeout()))
	}

	factory := journal.NewNIOFactory(cfg.Journal.Directory, opts...)
	if err := factory.CreateDirs(); err != nil {
		return nil, nil, err
	}
	if err := factory.Start(); err != nil {
		return nil, nil, err
	}

	existing, err := factory.ListFiles(cfg.Journal.FileExtension)
	if err != nil {
		_ = factory.Stop()
		return nil, nil, err
	}
	logger.Info("journal directory opened", "directory", cfg.Journal.Directory, "files", len(existing))

	name := journal.FileName(cfg.Journal.FilePrefix, int64(len(existing)+1), cfg.Journal.FileExtension)
	file := factory.CreateSequentialFile(name)
	if err := file.Open(); err != nil {
		_ = factory.Stop()
		return nil, nil, err
	}
	factory.ActivateBuffer(file)

	return factory, file, nil
}

// seedAddressSettings installs the configured per-pattern settings. Patterns
// from the main configuration are immutable: they can be overwritten later
// but never removed.
func seedAddressSettings(repo settings.Repository[*settings.AddressSettings], cfg *config.Config) error {
	for pattern, as := range cfg.Addresses {
		value := &settings.AddressSettings{
			MaxSizeBytes:        as.MaxSizeBytes,
			MaxDeliveryAttempts: as.MaxDeliveryAttempts,
			ExpiryAddress:       as.ExpiryAddress,
			DeadLetterAddress:   as.DeadLetterAddress,
		}
		if as.RedeliveryDelayMillis != nil {
			delay := time.Duration(*as.RedeliveryDelayMillis) * time.Millisecond
			value.RedeliveryDelay = &delay
		}
		if as.FullPolicy != nil {
			policy, err := parseFullPolicy(*as.FullPolicy)
			if err != nil {
				return err
			}
			value.FullPolicy = &policy
		}
		if err := repo.AddImmutableMatch(pattern, value); err != nil {
			return err
		}
	}
	return nil
}

func parseFullPolicy(name string) (settings.AddressFullPolicy, error) {
	switch name {
	case config.FullPolicyPage:
		return settings.PolicyPage, nil
	case config.FullPolicyDrop:
		return settings.PolicyDrop, nil
	case config.FullPolicyBlock:
		return settings.PolicyBlock, nil
	default:
		return 0, fmt.Errorf("unknown address full policy %q", name)
	}
}

// haltOnIOError is the critical-error listener for the daemon: an
// unrecoverable journal error takes the broker down.
type haltOnIOError struct {
	logger *slog.Logger
}

func (h *haltOnIOError) OnIOError(err error, message string, file journal.SequentialFile) {
	name := ""
	if file != nil {
		name = file.FileName()
	}
	h.logger.Error("critical journal I/O error", "error", err, "message", message, "file", name)
	os.Exit(1)
}
