// internal/api/handlers/drive_handler.go
package handlers

import (
	"context"
	"net/http"

	"github.com/andresuchdata/cloudmigrate/internal/drive"
	"github.com/andresuchdata/cloudmigrate/internal/storage"
	"github.com/gin-gonic/gin"
)

// DriveBrowser lists Drive folders.
type DriveBrowser interface {
	ListFiles(ctx context.Context, folderID string) ([]drive.File, error)
	FindFolderByPath(ctx context.Context, path string) (string, error)
}

type DriveHandler struct {
	drive DriveBrowser
}

func NewDriveHandler(d DriveBrowser) *DriveHandler {
	return &DriveHandler{drive: d}
}

// ListFiles lists a folder given by ?folderId= or ?path=.
func (h *DriveHandler) ListFiles(c *gin.Context) {
	ctx := c.Request.Context()
	folderID := c.Query("folderId")

	if folderPath := c.Query("path"); folderPath != "" {
		id, err := h.drive.FindFolderByPath(ctx, folderPath)
		if err != nil {
			status := http.StatusBadGateway
			if storage.IsNotFound(err) {
				status = http.StatusNotFound
			}
			errorResponse(c, status, err)
			return
		}
		folderID = id
	}

	files, err := h.drive.ListFiles(ctx, folderID)
	if err != nil {
		errorResponse(c, http.StatusBadGateway, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"files": files})
}
