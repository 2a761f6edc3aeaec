package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/andresuchdata/reorder-ai/internal/ingest"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

type IngestHandler struct {
	importer *ingest.Importer
}

func NewIngestHandler(importer *ingest.Importer) *IngestHandler {
	return &IngestHandler{importer: importer}
}

// ListFiles lists a Drive folder, addressed by folderId or by path.
func (h *IngestHandler) ListFiles(c *gin.Context) {
	drive := h.importer.Drive()
	if drive == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": ingest.ErrDriveNotConfigured.Error()})
		return
	}

	folderID := c.Query("folderId")
	if folderPath := strings.TrimSpace(c.Query("path")); folderPath != "" {
		id, err := drive.FindFolderByPath(c.Request.Context(), folderPath)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		folderID = id
	}

	files, err := drive.ListFiles(c.Request.Context(), folderID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list files", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, files)
}

// ImportSales imports one Drive file (fileId) or a whole folder (folderId).
func (h *IngestHandler) ImportSales(c *gin.Context) {
	fileID := strings.TrimSpace(c.Query("fileId"))
	folderID := strings.TrimSpace(c.Query("folderId"))
	if fileID == "" && folderID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "fileId or folderId parameter is required"})
		return
	}

	var (
		result *ingest.ImportResult
		err    error
	)
	if fileID != "" {
		result, err = h.importer.ImportDriveFile(c.Request.Context(), fileID)
	} else {
		result, err = h.importer.ImportDriveFolder(c.Request.Context(), folderID)
	}
	if err != nil {
		if errors.Is(err, ingest.ErrDriveNotConfigured) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
			return
		}
		log.Error().Err(err).Msg("sales import failed")
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "ingestion failed", "details": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "success", "result": result})
}
