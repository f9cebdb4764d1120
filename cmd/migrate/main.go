// cmd/migrate/main.go
package main

import (
	"errors"
	"os"

	"github.com/andresuchdata/cloudmigrate/internal/config"
	"github.com/andresuchdata/cloudmigrate/pkg/logger"
	"github.com/spf13/viper"
	"github.com/urfave/cli/v2"
)

func main() {
	app := newApp()

	if err := app.Run(os.Args); err != nil {
		var cfgErr *config.ConfigurationError
		if errors.As(err, &cfgErr) {
			logger.Log.Error().Str("key", cfgErr.Key).Msg(cfgErr.Error())
			os.Exit(2)
		}
		logger.Log.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "migrate",
		Usage: "Move files between local disk, Google Drive and cloud object storage",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "backend",
				Usage:   "Storage backend: gcs, minio, sevalla or local",
				EnvVars: []string{"STORAGE_BACKEND"},
			},
			&cli.IntFlag{
				Name:    "workers",
				Usage:   "Concurrent transfers for batch commands",
				EnvVars: []string{"TRANSFER_WORKERS"},
			},
			&cli.DurationFlag{
				Name:    "item-timeout",
				Usage:   "Deadline for each transfer in a batch (0 disables)",
				EnvVars: []string{"TRANSFER_ITEM_TIMEOUT"},
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				EnvVars: []string{"LOG_LEVEL"},
			},
		},
		Before: loadConfig,
		Commands: []*cli.Command{
			{
				Name:      "upload",
				Usage:     "Upload one local file",
				ArgsUsage: "<local-path> [remote-name]",
				Action:    runUpload,
			},
			{
				Name:      "download",
				Usage:     "Download one object without overwriting existing files",
				ArgsUsage: "<remote-name> [local-path]",
				Action:    runDownload,
			},
			{
				Name:  "list",
				Usage: "List objects in the bucket",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "prefix", Usage: "Only list objects under this prefix"},
					&cli.BoolFlag{Name: "details", Usage: "Show size, creation time and content type"},
				},
				Action: runList,
			},
			{
				Name:      "migrate",
				Usage:     "Upload every file under a directory, keeping relative paths",
				ArgsUsage: "[dir]",
				Action:    runMigrate,
			},
			{
				Name:  "download-all",
				Usage: "Download every object under a prefix",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "prefix", Usage: "Object prefix to download"},
					&cli.StringFlag{Name: "dest", Usage: "Destination directory (defaults to the download dir)"},
					&cli.BoolFlag{Name: "dry-run", Usage: "Print the planned local paths without downloading"},
				},
				Action: runDownloadAll,
			},
			{
				Name:  "migrate-drive",
				Usage: "Copy the files of a Google Drive folder into the bucket",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "folder-id", Usage: "Drive folder ID", EnvVars: []string{"GOOGLE_DRIVE_FOLDER_ID"}},
					&cli.StringFlag{Name: "folder-path", Usage: "Drive folder path from the root, instead of an ID"},
					&cli.StringFlag{Name: "prefix", Usage: "Object name prefix"},
					&cli.BoolFlag{Name: "xlsx-to-csv", Usage: "Store the first sheet of .xlsx files as .csv"},
				},
				Action: runMigrateDrive,
			},
			{
				Name:  "generate",
				Usage: "Write synthetic EmailMessage sample files",
				Flags: []cli.Flag{
					&cli.IntSliceFlag{Name: "count", Usage: "Records per file; repeat for several files", Value: cli.NewIntSlice(100, 5000)},
					&cli.StringFlag{Name: "format", Usage: "csv or xlsx", Value: "csv"},
					&cli.Uint64Flag{Name: "seed", Usage: "Random seed", EnvVars: []string{"GENERATOR_SEED"}},
					&cli.StringFlag{Name: "out", Usage: "Output directory (defaults to the data dir)"},
				},
				Action: runGenerate,
			},
			{
				Name:  "runs",
				Usage: "Show recent batch runs from the ledger",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "limit", Value: 20},
				},
				Action: runRuns,
			},
			{
				Name:  "serve",
				Usage: "Serve the HTTP API",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "port", Usage: "Listen port", EnvVars: []string{"SERVER_PORT"}},
				},
				Action: runServe,
			},
		},
	}
}

// loadConfig reads the environment and applies global flag overrides.
func loadConfig(c *cli.Context) error {
	// Bucket selection depends on the backend, so it is overridden before loading.
	if c.IsSet("backend") {
		viper.Set("STORAGE_BACKEND", c.String("backend"))
	}
	cfg := config.Load()

	if c.IsSet("workers") {
		cfg.Transfer.Workers = c.Int("workers")
	}
	if c.IsSet("item-timeout") {
		cfg.Transfer.ItemTimeout = c.Duration("item-timeout")
	}
	if c.IsSet("log-level") {
		cfg.Log.Level = c.String("log-level")
	}

	if cfg.Log.Format == "json" {
		logger.SetJSON(os.Stdout)
	}
	logger.SetLevel(cfg.Log.Level)

	c.App.Metadata = map[string]interface{}{"config": cfg}
	return nil
}

func configFrom(c *cli.Context) *config.Config {
	if cfg, ok := c.App.Metadata["config"].(*config.Config); ok {
		return cfg
	}
	return config.Load()
}
