package main

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/FACorreiaa/delivery-ledger/internal/domain/delivery/extraction"
	"github.com/FACorreiaa/delivery-ledger/internal/domain/delivery/normalizer"
	"github.com/FACorreiaa/delivery-ledger/internal/domain/delivery/reconcile"
	"github.com/FACorreiaa/delivery-ledger/internal/domain/delivery/repository"
	"github.com/FACorreiaa/delivery-ledger/internal/domain/delivery/service"
	"github.com/FACorreiaa/delivery-ledger/pkg/config"
	"github.com/FACorreiaa/delivery-ledger/pkg/db"
	"github.com/FACorreiaa/delivery-ledger/pkg/metrics"
	"github.com/FACorreiaa/delivery-ledger/pkg/storage"
)

// Dependencies holds all application dependencies
type Dependencies struct {
	Config *config.Config
	DB     *db.DB
	Logger *slog.Logger

	Registry *prometheus.Registry
	Metrics  *metrics.Metrics

	Repository *repository.PostgresRepository
	Staging    storage.Storage
	Pipeline   *extraction.Pipeline
	Engine     *reconcile.Engine
	Service    *service.Service
}

// InitDependencies wires the application. Without a database the service can
// still preview and sweep, but Commit is unavailable.
func InitDependencies(ctx context.Context, cfg *config.Config, logger *slog.Logger, withDatabase bool) (*Dependencies, error) {
	deps := &Dependencies{
		Config:   cfg,
		Logger:   logger,
		Registry: prometheus.NewRegistry(),
	}
	deps.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	deps.Metrics = metrics.New(deps.Registry)

	if withDatabase {
		if err := deps.initDatabase(ctx); err != nil {
			deps.Cleanup()
			return nil, fmt.Errorf("failed to init database: %w", err)
		}
		deps.Repository = repository.NewPostgresRepository(deps.DB.Pool)
	}

	if err := deps.initServices(); err != nil {
		deps.Cleanup()
		return nil, fmt.Errorf("failed to init services: %w", err)
	}

	logger.Info("all dependencies initialized successfully", slog.Bool("database", withDatabase))
	return deps, nil
}

// initDatabase connects the pool and runs migrations
func (d *Dependencies) initDatabase(ctx context.Context) error {
	dbCfg := d.Config.Database
	database, err := db.New(db.Config{
		DSN:             dbCfg.DSN(),
		MaxConns:        dbCfg.MaxConns,
		MinConns:        dbCfg.MinConns,
		MaxConnLifetime: dbCfg.MaxConnLifetime,
		MaxConnIdleTime: dbCfg.MaxConnIdleTime,
	}, d.Logger)
	if err != nil {
		return err
	}

	d.DB = database

	if err := d.DB.RunMigrations(ctx); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	d.Logger.Info("database connected and migrations completed successfully")
	return nil
}

// initServices builds the extraction pipeline, engine and orchestration service
func (d *Dependencies) initServices() error {
	ext := d.Config.Extraction

	pdfOpts := extraction.DefaultPDFOptions()
	if ext.TableYTolerance > 0 {
		pdfOpts.RowTolerance = ext.TableYTolerance
	}
	if ext.TableXGap > 0 {
		pdfOpts.ColumnTolerance = ext.TableXGap
	}

	siteRules := extraction.DefaultSiteRules()
	if ext.SiteMarker != "" {
		marker, err := regexp.Compile(`(?i)\b` + regexp.QuoteMeta(ext.SiteMarker))
		if err != nil {
			return fmt.Errorf("invalid site marker: %w", err)
		}
		siteRules = []extraction.SiteRule{{Marker: marker, Site: ext.DefaultSite}}
	}

	d.Pipeline = extraction.NewPipeline(extraction.Config{
		SuffixTokens:     ext.SuffixTokens,
		ReferenceHeaders: ext.ReferenceHeaders,
		QuantityHeaders:  ext.QuantityHeaders,
		SiteRules:        siteRules,
		PDF:              pdfOpts,
	}, d.Logger).WithMetrics(d.Metrics)

	staging, err := storage.NewLocalStorage(d.Config.Storage.StagingPath)
	if err != nil {
		return fmt.Errorf("failed to init staging storage: %w", err)
	}
	d.Staging = staging

	var forecasts repository.ForecastStore
	if d.Repository != nil {
		d.Engine = reconcile.NewEngine(d.Repository, d.Logger).WithMetrics(d.Metrics)
		forecasts = d.Repository
	}

	d.Service = service.NewService(d.Staging, d.Engine, forecasts, d.Logger).
		WithPipeline(d.Pipeline, ext.DefaultSite).
		WithReferenceNormalizer(normalizer.NewReferenceNormalizer(ext.SuffixTokens)).
		WithMetrics(d.Metrics)

	d.Logger.Info("services initialized")
	return nil
}

// Cleanup closes all resources. It is safe to call more than once.
func (d *Dependencies) Cleanup() {
	if d.DB != nil {
		d.DB.Close()
		d.DB = nil
	}
	d.Logger.Info("cleanup completed")
}
