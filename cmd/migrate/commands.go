// cmd/migrate/commands.go
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/andresuchdata/cloudmigrate/internal/api"
	"github.com/andresuchdata/cloudmigrate/internal/config"
	"github.com/andresuchdata/cloudmigrate/internal/drive"
	"github.com/andresuchdata/cloudmigrate/internal/generator"
	"github.com/andresuchdata/cloudmigrate/internal/migration"
	"github.com/andresuchdata/cloudmigrate/internal/storage"
	"github.com/andresuchdata/cloudmigrate/internal/transfer"
	"github.com/andresuchdata/cloudmigrate/pkg/logger"
	"github.com/dustin/go-humanize"
	"github.com/gin-gonic/gin"
	"github.com/urfave/cli/v2"
)

// withRuntime builds the storage runtime, runs fn and releases resources.
// Interrupts cancel the context passed to fn.
func withRuntime(c *cli.Context, fn func(ctx context.Context, rt *runtime) error) error {
	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := newRuntime(ctx, configFrom(c))
	if err != nil {
		return err
	}
	defer rt.close()

	return fn(ctx, rt)
}

func requireArg(c *cli.Context, name string) (string, error) {
	if c.NArg() < 1 || c.Args().First() == "" {
		return "", cli.Exit(fmt.Sprintf("missing %s; usage: %s %s", name, c.Command.Name, c.Command.ArgsUsage), 1)
	}
	return c.Args().First(), nil
}

func runUpload(c *cli.Context) error {
	local, err := requireArg(c, "local path")
	if err != nil {
		return err
	}
	return withRuntime(c, func(ctx context.Context, rt *runtime) error {
		remote := c.Args().Get(1)
		if _, err := rt.svc.Upload(ctx, local, remote); err != nil {
			return err
		}
		if remote == "" {
			remote = filepath.Base(local)
		}
		fmt.Fprintln(c.App.Writer, rt.svc.Store().URL(remote))
		return nil
	})
}

func runDownload(c *cli.Context) error {
	remote, err := requireArg(c, "remote name")
	if err != nil {
		return err
	}
	return withRuntime(c, func(ctx context.Context, rt *runtime) error {
		path, _, err := rt.svc.Download(ctx, remote, c.Args().Get(1))
		if err != nil {
			return err
		}
		fmt.Fprintln(c.App.Writer, path)
		return nil
	})
}

func runList(c *cli.Context) error {
	return withRuntime(c, func(ctx context.Context, rt *runtime) error {
		objects, err := rt.svc.List(ctx, c.String("prefix"))
		if err != nil {
			return err
		}
		printObjects(c.App.Writer, objects, c.Bool("details"))
		return nil
	})
}

func printObjects(w io.Writer, objects []storage.ObjectInfo, details bool) {
	if !details {
		for _, o := range objects {
			fmt.Fprintln(w, o.Key)
		}
		return
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tSIZE\tSIZE (MB)\tCREATED\tTYPE")
	for _, o := range objects {
		created := "-"
		if !o.Created.IsZero() {
			created = fmt.Sprintf("%s (%s)", o.Created.Format(time.RFC3339), humanize.Time(o.Created))
		}
		contentType := o.ContentType
		if contentType == "" {
			contentType = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%.2f\t%s\t%s\n", o.Key, humanize.IBytes(uint64(o.Size)), o.SizeMB(), created, contentType)
	}
	tw.Flush()
}

func runMigrate(c *cli.Context) error {
	return withRuntime(c, func(ctx context.Context, rt *runtime) error {
		dir := c.Args().First()
		if dir == "" {
			dir = rt.cfg.App.DataDir
		}
		report, err := rt.svc.MigrateDirectory(ctx, dir)
		if err != nil {
			return err
		}
		printReport(c.App.Writer, "Migration", report)
		return nil
	})
}

func runDownloadAll(c *cli.Context) error {
	return withRuntime(c, func(ctx context.Context, rt *runtime) error {
		items, report, err := rt.svc.DownloadPrefix(ctx, c.String("prefix"), c.String("dest"), c.Bool("dry-run"))
		if err != nil {
			return err
		}
		if report == nil {
			for _, item := range items {
				if item.Destination == "" {
					fmt.Fprintf(c.App.Writer, "%s -> refused: outside destination\n", item.Source)
					continue
				}
				fmt.Fprintf(c.App.Writer, "%s -> %s\n", item.Source, item.Destination)
			}
			return nil
		}
		printReport(c.App.Writer, "Download", report)
		return nil
	})
}

func runMigrateDrive(c *cli.Context) error {
	return withRuntime(c, func(ctx context.Context, rt *runtime) error {
		if rt.cfg.Drive.CredentialsJSON == "" {
			return &config.ConfigurationError{Key: "GOOGLE_DRIVE_CREDENTIALS_JSON", Reason: "must be set"}
		}
		src, err := drive.NewService(ctx, rt.cfg.Drive.CredentialsJSON)
		if err != nil {
			return err
		}

		folderID := c.String("folder-id")
		if path := c.String("folder-path"); path != "" {
			if folderID, err = src.FindFolderByPath(ctx, path); err != nil {
				return err
			}
		}

		report, err := rt.svc.MigrateDriveFolder(ctx, src, migration.DriveOptions{
			FolderID:    folderID,
			Prefix:      c.String("prefix"),
			ConvertXLSX: c.Bool("xlsx-to-csv"),
		})
		if err != nil {
			return err
		}
		printReport(c.App.Writer, "Drive migration", report)
		return nil
	})
}

func runGenerate(c *cli.Context) error {
	cfg := configFrom(c)

	seed := cfg.App.Seed
	if c.IsSet("seed") {
		seed = c.Uint64("seed")
	}
	out := c.String("out")
	if out == "" {
		out = cfg.App.DataDir
	}
	format := c.String("format")

	gen := generator.New(seed, time.Now())
	for _, n := range c.IntSlice("count") {
		emails := gen.Generate(n)
		path, err := generator.Save(out, generator.SampleName(n, format), format, emails)
		if err != nil {
			return err
		}
		logger.Log.Info().Str("path", path).Int("records", len(emails)).Msg("generate: saved sample")
		fmt.Fprintln(c.App.Writer, path)
	}
	return nil
}

func runRuns(c *cli.Context) error {
	return withRuntime(c, func(ctx context.Context, rt *runtime) error {
		runs, err := rt.svc.Runs(ctx, c.Int("limit"))
		if err != nil {
			return err
		}

		tw := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tMODE\tBUCKET\tOK\tFAILED\tTOTAL\tBYTES\tSTARTED\tDURATION")
		for _, r := range runs {
			fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%d\t%d\t%s\t%s\t%s\n",
				r.ID, r.Mode, r.Bucket, r.Succeeded, r.Failed, r.Total,
				humanize.IBytes(uint64(r.Bytes)), r.StartedAt.Format(time.RFC3339),
				(time.Duration(r.DurationMS) * time.Millisecond).String())
		}
		return tw.Flush()
	})
}

func runServe(c *cli.Context) error {
	return withRuntime(c, func(ctx context.Context, rt *runtime) error {
		cfg := rt.cfg
		if cfg.Server.Mode == "debug" {
			gin.SetMode(gin.DebugMode)
		} else {
			gin.SetMode(gin.ReleaseMode)
		}

		services := &api.Services{Migration: rt.svc, DataDir: cfg.App.DataDir}
		if cfg.Drive.CredentialsJSON != "" {
			src, err := drive.NewService(ctx, cfg.Drive.CredentialsJSON)
			if err != nil {
				return err
			}
			services.Drive = src
		}

		port := cfg.Server.Port
		if c.IsSet("port") {
			port = c.String("port")
		}

		srv := &http.Server{
			Addr:         ":" + port,
			Handler:      api.NewRouter(services, cfg.Server.AllowedOrigins),
			ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
			WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			logger.Log.Info().Str("port", port).Msg("Starting server")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
			close(errCh)
		}()

		select {
		case err := <-errCh:
			return err
		case <-ctx.Done():
		}

		logger.Log.Info().Msg("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}
		logger.Log.Info().Msg("Server exiting")
		return nil
	})
}

func printReport(w io.Writer, label string, report *transfer.Report) {
	fmt.Fprintf(w, "%s completed: %d successful, %d failed out of %d files.\n",
		label, report.Succeeded, report.Failed, report.Total)
	for _, o := range report.Failures() {
		fmt.Fprintf(w, "  failed: %s (%s): %s\n", o.Source, o.Kind, o.Error)
	}
}
