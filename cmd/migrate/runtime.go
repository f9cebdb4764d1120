// cmd/migrate/runtime.go
package main

import (
	"context"
	"errors"
	"io"

	"github.com/andresuchdata/cloudmigrate/internal/cache"
	"github.com/andresuchdata/cloudmigrate/internal/config"
	"github.com/andresuchdata/cloudmigrate/internal/ledger"
	"github.com/andresuchdata/cloudmigrate/internal/migration"
	"github.com/andresuchdata/cloudmigrate/internal/namer"
	"github.com/andresuchdata/cloudmigrate/internal/storage"
	"github.com/andresuchdata/cloudmigrate/internal/transfer"
	"github.com/rs/zerolog/log"
)

// runtime holds the collaborators a storage command needs.
type runtime struct {
	cfg     *config.Config
	svc     *migration.Service
	closers []func() error
}

func newRuntime(ctx context.Context, cfg *config.Config) (*runtime, error) {
	rt := &runtime{cfg: cfg}

	store, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		return nil, err
	}
	if closer, ok := store.(io.Closer); ok {
		rt.closers = append(rt.closers, closer.Close)
	}

	recorder, closeLedger, err := ledger.Setup(ctx, cfg.Database)
	if err != nil {
		rt.close()
		return nil, err
	}
	rt.closers = append(rt.closers, closeLedger)

	claimer, err := cache.NewNameClaimer(cfg.Cache, namer.FileClaimer{})
	if err != nil {
		rt.close()
		return nil, err
	}

	engine := transfer.NewEngine(
		transfer.WithWorkers(cfg.Transfer.Workers),
		transfer.WithItemTimeout(cfg.Transfer.ItemTimeout),
	)

	rt.svc = migration.NewService(store,
		migration.WithEngine(engine),
		migration.WithRecorder(recorder),
		migration.WithClaimer(claimer),
		migration.WithBackend(cfg.Storage.Backend),
		migration.WithDownloadDir(cfg.App.DownloadDir),
	)
	return rt, nil
}

func (rt *runtime) close() {
	var errs []error
	for i := len(rt.closers) - 1; i >= 0; i-- {
		errs = append(errs, rt.closers[i]())
	}
	if err := errors.Join(errs...); err != nil {
		log.Warn().Err(err).Msg("migrate: closing resources failed")
	}
}
