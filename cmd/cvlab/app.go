package main

import (
	"context"
	"fmt"
	"time"

	"voltammetry-lab/internal/analysis"
	"voltammetry-lab/internal/calibration"
	"voltammetry-lab/internal/config"
	"voltammetry-lab/internal/storage"
	chstore "voltammetry-lab/internal/storage/clickhouse"
	"voltammetry-lab/internal/storage/memory"
	"voltammetry-lab/internal/storage/migrations"
	pgstore "voltammetry-lab/internal/storage/postgres"
)

// app holds the stores and shared components of one command invocation.
type app struct {
	measurements storage.MeasurementStore
	waveforms    storage.WaveformStore
	models       storage.CalibrationModelStore
	runs         storage.TrainingRunStore
	closers      []func()
}

// openApp connects the configured storage backend.
func openApp(ctx context.Context) (*app, error) {
	switch cfg.Storage.Backend {
	case config.BackendMemory:
		logger.Debug("using in-memory storage, nothing persists after exit")
		return &app{
			measurements: memory.NewMeasurementStore(),
			waveforms:    memory.NewWaveformStore(),
			models:       memory.NewCalibrationModelStore(),
			runs:         memory.NewTrainingRunStore(),
		}, nil
	case config.BackendPostgres:
		return openPersistent(ctx)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}

// openPersistent keeps metadata and models in PostgreSQL and samples in ClickHouse.
func openPersistent(ctx context.Context) (*app, error) {
	pool, err := pgstore.NewPool(ctx, cfg.Storage.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	a := &app{closers: []func(){pool.Close}}

	var chConn *chstore.Conn
	if cfg.Storage.Migrate {
		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			a.Close()
			return nil, fmt.Errorf("postgres migrations: %w", err)
		}
		chConn, err = migrations.RunClickhouseMigrations(ctx, cfg.Storage.ClickHouseDSN)
	} else {
		chConn, err = chstore.NewConn(ctx, cfg.Storage.ClickHouseDSN)
	}
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("connect to clickhouse: %w", err)
	}
	a.closers = append(a.closers, func() { _ = chConn.Close() })

	a.measurements = pgstore.NewMeasurementStore(pool)
	a.models = pgstore.NewCalibrationModelStore(pool)
	a.runs = pgstore.NewTrainingRunStore(pool)
	a.waveforms = chstore.NewWaveformStore(chConn)
	return a, nil
}

// Close releases connections in reverse order.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func (a *app) analyzer() (*analysis.Analyzer, error) {
	return analysis.New(cfg.AnalysisOptions(logger))
}

func (a *app) dataset(an *analysis.Analyzer) *calibration.Dataset {
	return &calibration.Dataset{
		Measurements: a.measurements,
		Waveforms:    a.waveforms,
		Analyzer:     an,
		Logger:       logger,
	}
}

// registry returns a registry populated from the model store.
func (a *app) registry(ctx context.Context) (*calibration.Registry, error) {
	reg := calibration.NewRegistry(calibration.RegistryOptions{
		Store:         a.models,
		RSquaredFloor: cfg.Calibration.RSquaredFloor,
		RecordMetrics: cfg.Analysis.RecordMetrics,
		Logger:        logger,
	})
	if err := reg.Load(ctx); err != nil {
		return nil, fmt.Errorf("load calibration models: %w", err)
	}
	return reg, nil
}

func (a *app) trainer(reg *calibration.Registry) (*calibration.Trainer, error) {
	b, err := calibration.NewBuilder(cfg.Calibration.BuilderConfig, time.Now)
	if err != nil {
		return nil, err
	}
	return calibration.NewTrainer(calibration.TrainerOptions{
		Builder:       b,
		Registry:      reg,
		Runs:          a.runs,
		RecordMetrics: cfg.Analysis.RecordMetrics,
		Logger:        logger,
	}), nil
}
