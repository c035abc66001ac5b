package handlers

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/File-Sharing-BondBridg/Link-Service/internal/models"
	"github.com/File-Sharing-BondBridg/Link-Service/internal/services"
	"github.com/File-Sharing-BondBridg/Link-Service/internal/storage"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// UploadResult is the per-file result object returned to the client.
type UploadResult struct {
	Success bool                 `json:"success"`
	File    *models.FileMetadata `json:"file,omitempty"`
	Error   string               `json:"error,omitempty"`
}

// FileUploadedEvent is published on files.uploaded and consumed by the scanner.
type FileUploadedEvent struct {
	FileID     string    `json:"file_id"`
	ObjectName string    `json:"object_name"`
	FileType   string    `json:"file_type"`
	Size       int64     `json:"size"`
	UserID     string    `json:"user_id"`
	UploadedAt time.Time `json:"uploaded_at"`
}

type FileDeletedEvent struct {
	FileID string `json:"file_id"`
	UserID string `json:"user_id"`
}

// UploadFile supports both single and multiple file uploads.
func (h *Handler) UploadFile(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return
	}

	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to parse multipart form: " + err.Error()})
		return
	}

	files := form.File["files"]
	if len(files) == 0 {
		files = form.File["file"]
	}
	if len(files) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no files provided"})
		return
	}

	for _, fh := range files {
		if fh.Size > h.maxUploadBytes {
			c.JSON(http.StatusBadRequest, gin.H{"error": "file too large: " + fh.Filename})
			return
		}
	}

	var folderID *string
	if v := strings.TrimSpace(c.PostForm("folder_id")); v != "" {
		folder, err := h.registry.GetFolder(c.Request.Context(), v)
		if err != nil || folder.UserID != userID {
			c.JSON(http.StatusNotFound, gin.H{"error": "Folder not found"})
			return
		}
		folderID = &v
	}

	results := make([]UploadResult, 0, len(files))
	for _, fh := range files {
		meta, err := h.processSingleFile(c.Request.Context(), fh, userID, folderID)
		if err != nil {
			h.log.Error().Err(err).Str("file", fh.Filename).Msg("upload failed")
			results = append(results, UploadResult{Success: false, Error: err.Error()})
			continue
		}
		results = append(results, UploadResult{Success: true, File: &meta})
	}

	c.JSON(http.StatusOK, gin.H{"results": results})
}

func (h *Handler) processSingleFile(ctx context.Context, fh *multipart.FileHeader, userID string, folderID *string) (models.FileMetadata, error) {
	fileID := uuid.New().String()
	ext := strings.ToLower(filepath.Ext(fh.Filename))

	file, err := fh.Open()
	if err != nil {
		return models.FileMetadata{}, fmt.Errorf("failed to open uploaded file: %w", err)
	}
	defer file.Close()

	// Objects live under the owner's prefix so an account purge can sweep them.
	objectName := userID + "/" + fileID + ext
	contentType := services.GetContentType(ext)

	if err := h.objects.Upload(ctx, file, fh.Size, objectName, contentType); err != nil {
		return models.FileMetadata{}, fmt.Errorf("failed to upload to storage: %w", err)
	}

	meta := models.FileMetadata{
		ID:           fileID,
		Name:         strings.TrimSuffix(fh.Filename, ext),
		OriginalName: fh.Filename,
		Size:         fh.Size,
		Type:         services.FileType(ext),
		Extension:    ext,
		ContentType:  contentType,
		UploadedAt:   h.now().UTC(),
		ObjectName:   objectName,
		UserID:       userID,
		FolderID:     folderID,
		ScanStatus:   models.ScanPending,
	}

	if err := h.registry.SaveFile(ctx, meta); err != nil {
		if delErr := h.objects.Delete(ctx, objectName); delErr != nil {
			h.log.Warn().Err(delErr).Str("object", objectName).Msg("failed to cleanup object after metadata save failure")
		}
		return models.FileMetadata{}, fmt.Errorf("failed to save file metadata: %w", err)
	}

	h.publish(services.SubjectFileUploaded, FileUploadedEvent{
		FileID:     meta.ID,
		ObjectName: objectName,
		FileType:   meta.Type,
		Size:       meta.Size,
		UserID:     userID,
		UploadedAt: meta.UploadedAt,
	})

	return meta, nil
}

func (h *Handler) ListFiles(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		page = 1
	}
	pageSize, err := strconv.Atoi(c.DefaultQuery("pageSize", "50"))
	if err != nil || pageSize < 1 {
		pageSize = 50
	}
	if pageSize > 500 {
		pageSize = 500
	}

	files, err := h.registry.ListFiles(c.Request.Context(), userID, c.Query("folder_id"))
	if err != nil {
		h.log.Error().Err(err).Msg("failed to list files")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch files"})
		return
	}

	total := len(files)
	start := min((page-1)*pageSize, total)
	end := min(start+pageSize, total)
	totalPages := (total + pageSize - 1) / pageSize

	c.JSON(http.StatusOK, gin.H{
		"files":      files[start:end],
		"page":       page,
		"pageSize":   pageSize,
		"total":      total,
		"totalPages": totalPages,
	})
}

// ownedFile loads a file and writes the 404/403 response itself when the
// caller may not touch it.
func (h *Handler) ownedFile(c *gin.Context) (models.FileMetadata, bool) {
	userID, ok := userIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return models.FileMetadata{}, false
	}

	meta, err := h.registry.GetFile(c.Request.Context(), c.Param("id"))
	if errors.Is(err, storage.ErrFileNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "File not found"})
		return models.FileMetadata{}, false
	}
	if err != nil {
		h.log.Error().Err(err).Msg("failed to load file")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch file"})
		return models.FileMetadata{}, false
	}
	if meta.UserID != userID {
		c.JSON(http.StatusForbidden, gin.H{"error": "Access denied"})
		return models.FileMetadata{}, false
	}
	return meta, true
}

func (h *Handler) GetFile(c *gin.Context) {
	meta, ok := h.ownedFile(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"file": meta})
}

func (h *Handler) DownloadFile(c *gin.Context) {
	meta, ok := h.ownedFile(c)
	if !ok {
		return
	}
	if meta.ScanStatus == models.ScanInfected {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "file failed the virus scan"})
		return
	}
	h.streamObject(c, meta.ObjectName, meta.OriginalName)
}

func (h *Handler) DeleteFile(c *gin.Context) {
	meta, ok := h.ownedFile(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	if err := h.objects.Delete(ctx, meta.ObjectName); err != nil && !errors.Is(err, services.ErrObjectNotFound) {
		h.log.Error().Err(err).Str("file_id", meta.ID).Msg("failed to delete object")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete file from storage"})
		return
	}
	if err := h.registry.DeleteFile(ctx, meta.ID, meta.UserID); err != nil && !errors.Is(err, storage.ErrFileNotFound) {
		h.log.Error().Err(err).Str("file_id", meta.ID).Msg("failed to delete metadata")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete file metadata"})
		return
	}

	h.publish(services.SubjectFileDeleted, FileDeletedEvent{FileID: meta.ID, UserID: meta.UserID})
	c.JSON(http.StatusOK, gin.H{"message": "File deleted successfully", "id": meta.ID})
}

func (h *Handler) GetMyFileStats(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return
	}

	stats, err := h.registry.Stats(c.Request.Context(), userID)
	if err != nil {
		h.log.Error().Err(err).Msg("failed to fetch stats")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch file stats"})
		return
	}
	c.JSON(http.StatusOK, stats)
}

// streamObject copies an object to the response as an attachment without
// exposing its locator.
func (h *Handler) streamObject(c *gin.Context, objectName, fileName string) {
	reader, info, err := h.objects.Open(c.Request.Context(), objectName)
	if errors.Is(err, services.ErrObjectNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "file no longer available"})
		return
	}
	if err != nil {
		h.log.Error().Err(err).Msg("failed to open object")
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Storage service not available"})
		return
	}
	defer reader.Close()

	contentType := info.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.DataFromReader(http.StatusOK, info.Size, contentType, reader, map[string]string{
		"Content-Disposition": mime.FormatMediaType("attachment", map[string]string{"filename": fileName}),
		"Cache-Control":       "no-store",
	})
}
