// Package app assembles a task store and its collaborators from config. Each
// binary builds exactly one App at startup and hands its Store to whichever
// adapter drives it.
package app

import (
	"fmt"
	"io"
	"os"

	"cybertodo/internal/clock"
	"cybertodo/internal/config"
	"cybertodo/internal/jsonlog"
	"cybertodo/internal/model"
	"cybertodo/internal/storage"
	"cybertodo/internal/task"
	"cybertodo/internal/telemetry"
)

type App struct {
	Config   *config.Config
	Logger   *jsonlog.Logger
	KV       storage.KV
	Slot     *storage.Slot
	Activity *telemetry.MemoryRepository
	Store    *task.Store
}

type Options struct {
	// LogOutput defaults to stderr.
	LogOutput io.Writer
	Clock     clock.Clock
}

func Open(cfg *config.Config, opts Options) (*App, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if opts.LogOutput == nil {
		opts.LogOutput = os.Stderr
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real{}
	}

	logger := jsonlog.New(opts.LogOutput, jsonlog.Format(cfg.Log.Format))

	kv, err := openKV(cfg)
	if err != nil {
		return nil, err
	}
	slot := task.NewSlot(kv, cfg.Storage.Key)
	activity := telemetry.NewMemoryRepository(opts.Clock, cfg.Activity.Limit)

	prio, _ := model.ParsePriority(cfg.Defaults.Priority)
	store, err := task.NewStore(slot,
		task.WithClock(opts.Clock),
		task.WithLogger(logger),
		task.WithRecorder(activity),
		task.WithDefaults(task.Defaults{Priority: prio, Category: cfg.Defaults.Category}),
		task.WithCategorySearch(cfg.MatchCategory()),
	)
	if err != nil {
		return nil, err
	}

	return &App{
		Config:   cfg,
		Logger:   logger,
		KV:       kv,
		Slot:     slot,
		Activity: activity,
		Store:    store,
	}, nil
}

func openKV(cfg *config.Config) (storage.KV, error) {
	switch cfg.Storage.Backend {
	case "memory":
		return storage.NewMemoryKV(), nil
	case "file":
		kv, err := storage.NewFileKV(cfg.DataDir)
		if err != nil {
			return nil, fmt.Errorf("open data dir: %w", err)
		}
		return kv, nil
	}
	return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
}
