package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"gorm.io/gorm"

	"sprout/internal/config"
	"sprout/internal/database"
	"sprout/internal/optimizer"
	"sprout/internal/pipeline"
	"sprout/internal/schedule"
	"sprout/internal/sizes"
	"sprout/internal/transform"
	"sprout/pkg/logger"
)

// app is the wired process: storage, queue and the pipeline service.
type app struct {
	cfg        *config.Config
	db         *gorm.DB
	dispatcher *schedule.Dispatcher
	periodic   *schedule.Periodic
	svc        *pipeline.Service

	closers []func() error
}

// buildApp wires the process. syncOverride, when non-empty, replaces every
// other source of the image size sync strategy.
func buildApp(ctx context.Context, cfg *config.Config, syncOverride schedule.Strategy) (*app, error) {
	a := &app{cfg: cfg}

	db, err := database.Open(cfg.Database.Path)
	if err != nil {
		return nil, err
	}
	a.db = db
	a.closers = append(a.closers, func() error { return database.Close(db) })

	queue, err := openQueue(ctx, cfg)
	if err != nil {
		a.Close()
		return nil, err
	}
	if rq, ok := queue.(*schedule.RedisQueue); ok {
		a.closers = append(a.closers, rq.Close)
	}

	store := database.NewAttachmentStore(db)
	a.dispatcher = schedule.NewDispatcher(queue, cfg.JobDelay())
	a.periodic = schedule.NewPeriodic()

	strategy := schedule.Resolve(schedule.Sources{
		Override:   syncOverride,
		Env:        os.LookupEnv,
		Configured: cfg.ImageSizeSync.Strategy,
	})

	a.svc = pipeline.New(pipeline.Deps{
		Store:  store,
		Sizes:  sizes.NewNormalizer(cfg.RawImageSizes),
		Engine: transform.NewImagingEngine(transform.Options{JPEGQuality: cfg.Media.JPEGQuality}),
		Optimizer: optimizer.New(optimizer.ExecRunner{}, store, cfg.Media.Root, optimizer.Options{
			Workers: cfg.Optimizer.Workers,
			Timeout: cfg.OptimizerTimeout(),
		}),
		Dispatcher: a.dispatcher,
		Periodic:   a.periodic,
		Options:    database.NewOptionStore(db),
	}, pipeline.Options{
		MediaRoot:         cfg.Media.Root,
		FocalMode:         cfg.FocalMode(),
		AutoOptimize:      cfg.AutoOptimizeImages,
		ConvertToAVIF:     cfg.ConvertToAVIF,
		SyncStrategy:      strategy,
		SyncInterval:      cfg.ImageSizeSync.CronInterval,
		BigImageThreshold: cfg.Media.BigImageThreshold,
	})
	a.svc.RegisterJobs()

	if err := os.MkdirAll(cfg.Media.Root, 0o755); err != nil {
		a.Close()
		return nil, fmt.Errorf("create media root: %w", err)
	}
	return a, nil
}

func openQueue(ctx context.Context, cfg *config.Config) (schedule.Queue, error) {
	if cfg.Jobs.Backend == "redis" {
		q, err := schedule.NewRedisQueue(ctx, cfg.Jobs.RedisURL)
		if err != nil {
			return nil, err
		}
		logger.LogInfo("Deferred jobs stored in Redis")
		return q, nil
	}
	return schedule.NewMemoryQueue(), nil
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
