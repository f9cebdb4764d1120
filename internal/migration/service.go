// Package migration moves files between local disk, Google Drive and object
// storage. Single-item operations return errors to the caller unchanged;
// batch operations run through the transfer engine and report per item.
package migration

import (
	"context"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"

	"github.com/andresuchdata/cloudmigrate/internal/ledger"
	"github.com/andresuchdata/cloudmigrate/internal/namer"
	"github.com/andresuchdata/cloudmigrate/internal/storage"
	"github.com/andresuchdata/cloudmigrate/internal/transfer"
	"github.com/andresuchdata/cloudmigrate/pkg/logger"
)

// Batch modes recorded in the ledger.
const (
	ModeMigrate     = "migrate"
	ModeDownloadAll = "download-all"
	ModeDrive       = "migrate-drive"
)

const defaultDownloadDir = "downloads"

// Service wires an ObjectStorage to the transfer engine, the name claimer and
// the run ledger.
type Service struct {
	store       storage.ObjectStorage
	engine      *transfer.Engine
	recorder    ledger.Recorder
	claimer     namer.Claimer
	backend     string
	downloadDir string
	log         zerolog.Logger
}

type Option func(*Service)

func WithEngine(e *transfer.Engine) Option {
	return func(s *Service) { s.engine = e }
}

func WithRecorder(r ledger.Recorder) Option {
	return func(s *Service) { s.recorder = r }
}

// WithClaimer replaces the filesystem claimer used to pick download names.
func WithClaimer(c namer.Claimer) Option {
	return func(s *Service) { s.claimer = c }
}

// WithBackend names the storage backend in ledger rows.
func WithBackend(name string) Option {
	return func(s *Service) { s.backend = name }
}

func WithDownloadDir(dir string) Option {
	return func(s *Service) { s.downloadDir = dir }
}

func WithLogger(l zerolog.Logger) Option {
	return func(s *Service) { s.log = l }
}

func NewService(store storage.ObjectStorage, opts ...Option) *Service {
	s := &Service{
		store:       store,
		engine:      transfer.NewEngine(),
		recorder:    ledger.NopRecorder{},
		claimer:     namer.FileClaimer{},
		downloadDir: defaultDownloadDir,
		log:         logger.Component("migration"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Store exposes the underlying object storage.
func (s *Service) Store() storage.ObjectStorage {
	return s.store
}

// Upload copies localPath to remoteName, which defaults to the file's base name.
func (s *Service) Upload(ctx context.Context, localPath, remoteName string) (storage.TransferStats, error) {
	if remoteName == "" {
		remoteName = filepath.Base(localPath)
	}

	stats, err := s.store.UploadFile(ctx, localPath, remoteName)
	if err != nil {
		return stats, err
	}

	s.log.Info().
		Str("file", localPath).
		Str("size", humanize.IBytes(uint64(stats.Bytes))).
		Float64("size_mb", float64(stats.Bytes)/(1024*1024)).
		Dur("elapsed", stats.Elapsed).
		Str("url", s.store.URL(remoteName)).
		Msgf("Uploaded %s (%.2f MB) in %.2f seconds", localPath, float64(stats.Bytes)/(1024*1024), stats.Elapsed.Seconds())

	return stats, nil
}

// Download fetches remoteName into localPath, or into the download directory
// when localPath is empty. An existing file is never overwritten: the name
// gets a "(N)" suffix instead. It returns the path actually written. A
// remote name that would resolve outside the download directory is refused
// with ErrUnsafeKey.
func (s *Service) Download(ctx context.Context, remoteName, localPath string) (string, storage.TransferStats, error) {
	if localPath == "" {
		target, err := localTarget(s.downloadDir, remoteName, remoteName)
		if err != nil {
			return "", storage.TransferStats{}, err
		}
		localPath = target
	}

	dest, err := namer.Resolve(ctx, localPath, s.claimer)
	if err != nil {
		return "", storage.TransferStats{}, err
	}

	stats, err := s.store.DownloadObject(ctx, remoteName, dest)
	if err != nil {
		s.release(dest)
		return "", stats, err
	}

	s.log.Info().
		Str("object", remoteName).
		Str("path", dest).
		Str("size", humanize.IBytes(uint64(stats.Bytes))).
		Dur("elapsed", stats.Elapsed).
		Msgf("Downloaded %s to %s", remoteName, dest)

	return dest, stats, nil
}

// List returns the objects under prefix.
func (s *Service) List(ctx context.Context, prefix string) ([]storage.ObjectInfo, error) {
	return s.store.ListObjects(ctx, prefix)
}

// Runs returns recent batch runs from the ledger.
func (s *Service) Runs(ctx context.Context, limit int) ([]ledger.Run, error) {
	return s.recorder.ListRuns(ctx, limit)
}

func (s *Service) release(path string) {
	if err := s.claimer.Release(context.Background(), path); err != nil {
		s.log.Warn().Err(err).Str("path", path).Msg("migration: release claimed name failed")
	}
}

// finish logs the failures of a batch and records it in the ledger. A ledger
// error never fails the batch.
func (s *Service) finish(ctx context.Context, mode string, report *transfer.Report) {
	for _, o := range report.Failures() {
		s.log.Warn().
			Str("source", o.Source).
			Str("destination", o.Destination).
			Str("kind", string(o.Kind)).
			Msgf("Failed: %s: %s", o.Source, o.Error)
	}

	meta := ledger.RunMeta{Mode: mode, Backend: s.backend, Bucket: s.store.Bucket()}
	id, err := s.recorder.RecordReport(context.WithoutCancel(ctx), meta, report)
	if err != nil {
		s.log.Warn().Err(err).Str("mode", mode).Msg("migration: recording run failed")
		return
	}
	if id != 0 {
		s.log.Debug().Int64("run_id", id).Str("mode", mode).Msg("migration: run recorded")
	}
}
