package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/DarkoDimitrov/Cloud-Resource-Manager/pkg/cloud"
	"github.com/DarkoDimitrov/Cloud-Resource-Manager/pkg/cloud/factory"
	"github.com/DarkoDimitrov/Cloud-Resource-Manager/pkg/config"
	"github.com/DarkoDimitrov/Cloud-Resource-Manager/pkg/crypto"
	"github.com/DarkoDimitrov/Cloud-Resource-Manager/pkg/engine"
	"github.com/DarkoDimitrov/Cloud-Resource-Manager/pkg/stores"
	"github.com/DarkoDimitrov/Cloud-Resource-Manager/pkg/telemetry"
)

// actor is the identity recorded in audit entries for CLI-driven
// operations.
const actor = "cli"

// app holds the wired application for one command invocation.
type app struct {
	cfg     *config.Config
	store   *stores.SQLiteStore
	engine  *engine.Engine
	logger  *telemetry.Logger
	tracer  *telemetry.Tracer
	metrics *telemetry.Metrics
}

// newApp loads configuration and wires the store, cipher, telemetry, and
// engine. Callers must Close the returned app.
func newApp(ctx context.Context, version string) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	tcfg := cfg.Telemetry(version)
	if err := tcfg.Validate(); err != nil {
		return nil, err
	}

	logger, err := telemetry.NewLogger(tcfg.Logging)
	if err != nil {
		return nil, err
	}
	if verbose {
		logger.SetLevel("debug")
	}

	metrics, err := telemetry.NewMetrics(tcfg.Metrics)
	if err != nil {
		return nil, err
	}
	if err := metrics.StartMetricsServer(logger); err != nil {
		return nil, err
	}

	tracer, err := telemetry.NewTracer(tcfg.Tracing, tcfg.ServiceName, version, tcfg.Environment)
	if err != nil {
		return nil, err
	}

	if cfg.Encryption.KeyHex == "" {
		return nil, fmt.Errorf("encryption key required: set encryption.key_hex or CRM_ENCRYPTION_KEY (generate one with 'crm keygen')")
	}
	cipher, err := crypto.NewCipherFromHex(cfg.Encryption.KeyHex)
	if err != nil {
		return nil, err
	}

	store, err := stores.NewSQLiteStore(cfg.Store())
	if err != nil {
		return nil, err
	}
	if err := store.Init(ctx); err != nil {
		return nil, err
	}
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, err
	}

	eng := engine.New(store, cipher, factory.New(logger), logger, metrics, tracer, engine.Options{
		Adapter: cloud.Options{
			OperationTimeout: cfg.Sync.OperationTimeout,
			PricingTimeout:   cfg.Sync.PricingTimeout,
			ZoneWorkers:      cfg.Sync.ZoneWorkers,
		},
		SyncWorkers: cfg.Sync.SyncWorkers,
	})

	// Log level follows the config file while the command runs.
	if err := config.Watch(ctx, configPath, logger, func(next *config.Config) {
		logger.SetLevel(next.Logging.Level)
	}); err != nil {
		logger.WithError(err).Warn("config watching unavailable")
	}

	return &app{
		cfg:     cfg,
		store:   store,
		engine:  eng,
		logger:  logger,
		tracer:  tracer,
		metrics: metrics,
	}, nil
}

// Close flushes telemetry and closes the store.
func (a *app) Close(ctx context.Context) {
	if err := a.tracer.Shutdown(ctx); err != nil {
		a.logger.WithError(err).Warn("tracer shutdown failed")
	}
	if err := a.store.Close(); err != nil {
		a.logger.WithError(err).Warn("store close failed")
	}
}

// resolveProvider accepts a provider id or name.
func (a *app) resolveProvider(ctx context.Context, ref string) (*stores.Provider, error) {
	if provider, err := a.store.GetProvider(ctx, ref); err == nil {
		return provider, nil
	}
	return a.store.GetProviderByName(ctx, ref)
}

// printJSON writes v as indented JSON to stdout.
func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
