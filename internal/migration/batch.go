package migration

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/andresuchdata/cloudmigrate/internal/drive"
	"github.com/andresuchdata/cloudmigrate/internal/namer"
	"github.com/andresuchdata/cloudmigrate/internal/storage"
	"github.com/andresuchdata/cloudmigrate/internal/transfer"
)

// ErrUnsafeKey marks an object key that resolves outside the download directory.
var ErrUnsafeKey = errors.New("object key escapes download directory")

// DirectoryItems walks dir recursively and pairs every regular file with an
// object name equal to its slash-separated path relative to dir.
func DirectoryItems(dir string) ([]transfer.WorkItem, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("folder %s: %w", dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("folder %s: not a directory", dir)
	}

	items := []transfer.WorkItem{}
	err = filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		items = append(items, transfer.WorkItem{Source: p, Destination: filepath.ToSlash(rel)})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", dir, err)
	}
	return items, nil
}

// MigrateDirectory uploads every file under dir. Per-file failures are
// reported in the returned Report; only an unreadable dir is an error.
func (s *Service) MigrateDirectory(ctx context.Context, dir string) (*transfer.Report, error) {
	items, err := DirectoryItems(dir)
	if err != nil {
		return nil, err
	}

	s.log.Info().Int("files", len(items)).Str("dir", dir).Msgf("Found %d files to migrate", len(items))

	report := s.engine.Run(ctx, items, s.progress(len(items), func(ctx context.Context, src, dst string) (transfer.Result, error) {
		stats, err := s.store.UploadFile(ctx, src, dst)
		return transfer.FromStats(stats), err
	}))

	s.log.Info().
		Int("succeeded", report.Succeeded).
		Int("failed", report.Failed).
		Int("total", report.Total).
		Msgf("Migration completed: %d successful, %d failed out of %d files.", report.Succeeded, report.Failed, report.Total)

	s.finish(ctx, ModeMigrate, report)
	return report, nil
}

// PlanPrefix lists the objects under prefix and maps each onto a local path
// inside destDir. Names are picked against c, so the destinations are
// distinct from each other and from what c considers taken. A key that would
// land outside destDir keeps an empty Destination and claims nothing.
func (s *Service) PlanPrefix(ctx context.Context, prefix, destDir string, c namer.Claimer) ([]transfer.WorkItem, error) {
	objects, err := s.store.ListObjects(ctx, prefix)
	if err != nil {
		return nil, err
	}
	if destDir == "" {
		destDir = s.downloadDir
	}

	items := make([]transfer.WorkItem, 0, len(objects))
	for _, obj := range objects {
		target, err := localTarget(destDir, obj.Key, objectRelativePath(prefix, obj.Key))
		if err != nil {
			s.log.Warn().Str("object", obj.Key).Str("dir", destDir).Msg("migration: refusing object key outside download directory")
			items = append(items, transfer.WorkItem{Source: obj.Key})
			continue
		}
		dest, err := namer.Resolve(ctx, target, c)
		if err != nil {
			for _, planned := range items {
				if planned.Destination != "" {
					_ = c.Release(context.Background(), planned.Destination)
				}
			}
			return nil, err
		}
		items = append(items, transfer.WorkItem{Source: obj.Key, Destination: dest})
	}
	return items, nil
}

// DownloadPrefix downloads every object under prefix into destDir. With
// dryRun set nothing is written and the planned items are returned instead.
func (s *Service) DownloadPrefix(ctx context.Context, prefix, destDir string, dryRun bool) ([]transfer.WorkItem, *transfer.Report, error) {
	if dryRun {
		items, err := s.PlanPrefix(ctx, prefix, destDir, namer.NewMemoryClaimer(namer.FileExists))
		return items, nil, err
	}

	items, err := s.PlanPrefix(ctx, prefix, destDir, s.claimer)
	if err != nil {
		return nil, nil, err
	}

	report := s.engine.Run(ctx, items, s.progress(len(items), func(ctx context.Context, key, dest string) (transfer.Result, error) {
		if dest == "" {
			return transfer.Result{}, unsafeKey(key)
		}
		stats, err := s.store.DownloadObject(ctx, key, dest)
		if err != nil {
			s.release(dest)
		}
		return transfer.FromStats(stats), err
	}))

	// Items the engine never started still hold their claimed names.
	for _, o := range report.Outcomes {
		if o.Kind == storage.KindCanceled && o.Destination != "" {
			s.release(o.Destination)
		}
	}

	s.log.Info().
		Int("succeeded", report.Succeeded).
		Int("failed", report.Failed).
		Int("total", report.Total).
		Msgf("Download completed: %d successful, %d failed out of %d files.", report.Succeeded, report.Failed, report.Total)

	s.finish(ctx, ModeDownloadAll, report)
	return items, report, nil
}

// DriveSource is the part of the Drive client a folder migration needs.
type DriveSource interface {
	ListFiles(ctx context.Context, folderID string) ([]drive.File, error)
	Open(ctx context.Context, fileID string) (io.ReadCloser, error)
}

// DriveOptions controls MigrateDriveFolder.
type DriveOptions struct {
	FolderID string
	// Prefix is prepended to every object name.
	Prefix string
	// ConvertXLSX stores the first sheet of .xlsx files as .csv objects.
	ConvertXLSX bool
}

// MigrateDriveFolder streams the files of a Drive folder into object storage.
// Folders and native Google documents are skipped.
func (s *Service) MigrateDriveFolder(ctx context.Context, src DriveSource, opts DriveOptions) (*transfer.Report, error) {
	files, err := src.ListFiles(ctx, opts.FolderID)
	if err != nil {
		return nil, err
	}

	convert := make(map[string]bool, len(files))
	items := make([]transfer.WorkItem, 0, len(files))
	for _, f := range files {
		if !f.Downloadable() {
			s.log.Debug().Str("name", f.Name).Str("mime", f.MimeType).Msg("migration: skipping non-binary drive item")
			continue
		}
		name := f.Name
		if opts.ConvertXLSX && drive.IsXLSX(name) {
			name = drive.CSVName(name)
			convert[f.ID] = true
		}
		items = append(items, transfer.WorkItem{Source: f.ID, Destination: joinKey(opts.Prefix, name)})
	}

	report := s.engine.Run(ctx, items, s.progress(len(items), func(ctx context.Context, fileID, key string) (transfer.Result, error) {
		rc, err := src.Open(ctx, fileID)
		if err != nil {
			return transfer.Result{}, err
		}
		defer rc.Close()

		var body io.Reader = rc
		if convert[fileID] {
			pr, pw := io.Pipe()
			go func() {
				pw.CloseWithError(drive.ConvertXLSXToCSV(rc, pw))
			}()
			defer pr.Close()
			body = pr
		}

		stats, err := s.store.UploadObject(ctx, key, body)
		return transfer.FromStats(stats), err
	}))

	s.log.Info().
		Int("succeeded", report.Succeeded).
		Int("failed", report.Failed).
		Int("total", report.Total).
		Msgf("Drive migration completed: %d successful, %d failed out of %d files.", report.Succeeded, report.Failed, report.Total)

	s.finish(ctx, ModeDrive, report)
	return report, nil
}

// progress logs "Processing file i of N" as each item starts.
func (s *Service) progress(total int, fn transfer.Func) transfer.Func {
	var started atomic.Int64
	return func(ctx context.Context, src, dst string) (transfer.Result, error) {
		i := started.Add(1)
		s.log.Info().Int64("index", i).Int("total", total).Msgf("Processing file %d of %d: %s", i, total, dst)
		return fn(ctx, src, dst)
	}
}

func objectRelativePath(prefix, key string) string {
	prefixTrimmed := strings.TrimSuffix(strings.TrimSpace(prefix), "/")
	if prefixTrimmed == "" {
		return key
	}
	rel := strings.TrimPrefix(key, prefixTrimmed+"/")
	if rel == "" || rel == key {
		return path.Base(key)
	}
	return rel
}

// localTarget joins rel onto dir and rejects results that leave dir.
func localTarget(dir, key, rel string) (string, error) {
	target := filepath.Join(dir, filepath.FromSlash(rel))
	within, err := filepath.Rel(dir, target)
	if err != nil || within == "." || !filepath.IsLocal(within) {
		return "", unsafeKey(key)
	}
	return target, nil
}

func unsafeKey(key string) error {
	return &storage.Error{Op: "download", Key: key, Err: fmt.Errorf("%w: %w", storage.ErrTransfer, ErrUnsafeKey)}
}

func joinKey(prefix, name string) string {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return name
	}
	return prefix + "/" + name
}
