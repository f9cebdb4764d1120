// internal/api/handlers/migration_handler.go
package handlers

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/andresuchdata/cloudmigrate/internal/ledger"
	"github.com/andresuchdata/cloudmigrate/internal/storage"
	"github.com/andresuchdata/cloudmigrate/internal/transfer"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// Migrator is what the HTTP layer needs from the migration service.
type Migrator interface {
	List(ctx context.Context, prefix string) ([]storage.ObjectInfo, error)
	MigrateDirectory(ctx context.Context, dir string) (*transfer.Report, error)
	Runs(ctx context.Context, limit int) ([]ledger.Run, error)
}

type MigrationHandler struct {
	migrator Migrator
	dataDir  string
}

func NewMigrationHandler(migrator Migrator, dataDir string) *MigrationHandler {
	return &MigrationHandler{migrator: migrator, dataDir: dataDir}
}

// ListObjects returns the objects under ?prefix=.
func (h *MigrationHandler) ListObjects(c *gin.Context) {
	objects, err := h.migrator.List(c.Request.Context(), c.Query("prefix"))
	if err != nil {
		errorResponse(c, statusFor(err), err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"objects": objects, "count": len(objects)})
}

type migrateRequest struct {
	// Dir is relative to the server's data directory; empty means the whole of it.
	Dir string `json:"dir"`
}

// Migrate uploads a directory below the data dir and returns the batch report.
func (h *MigrationHandler) Migrate(c *gin.Context) {
	var req migrateRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
	}

	dir, ok := h.resolveDir(req.Dir)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "dir must stay inside the data directory"})
		return
	}

	report, err := h.migrator.MigrateDirectory(c.Request.Context(), dir)
	if err != nil {
		errorResponse(c, statusFor(err), err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// ListRuns returns recent ledger runs, ?limit= defaulting to 20.
func (h *MigrationHandler) ListRuns(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
		return
	}

	runs, err := h.migrator.Runs(c.Request.Context(), limit)
	if err != nil {
		errorResponse(c, statusFor(err), err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs})
}

func (h *MigrationHandler) resolveDir(rel string) (string, bool) {
	rel = strings.TrimSpace(rel)
	if filepath.IsAbs(rel) {
		return "", false
	}
	joined := filepath.Join(h.dataDir, rel)
	within, err := filepath.Rel(h.dataDir, joined)
	if err != nil || within == ".." || strings.HasPrefix(within, ".."+string(filepath.Separator)) {
		return "", false
	}
	return joined, true
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, storage.ErrNotFound), errors.Is(err, os.ErrNotExist):
		return http.StatusNotFound
	case errors.Is(err, ledger.ErrDisabled):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

func errorResponse(c *gin.Context, statusCode int, err error) {
	if statusCode >= http.StatusInternalServerError {
		log.Error().Err(err).Str("path", c.Request.URL.Path).Msg("api: request failed")
	}
	c.JSON(statusCode, gin.H{"error": err.Error()})
}
