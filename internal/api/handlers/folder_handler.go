package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/File-Sharing-BondBridg/Link-Service/internal/models"
	"github.com/File-Sharing-BondBridg/Link-Service/internal/services"
	"github.com/File-Sharing-BondBridg/Link-Service/internal/storage"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type createFolderRequest struct {
	Name string `json:"name" binding:"required,max=255"`
}

func (h *Handler) CreateFolder(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return
	}

	var req createFolderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "folder name is required"})
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "folder name is required"})
		return
	}

	folder := models.Folder{
		ID:        uuid.New().String(),
		Name:      name,
		UserID:    userID,
		CreatedAt: h.now().UTC(),
	}
	if err := h.registry.CreateFolder(c.Request.Context(), folder); err != nil {
		h.log.Error().Err(err).Msg("failed to create folder")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create folder"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"folder": folder})
}

func (h *Handler) ListFolders(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return
	}

	folders, err := h.registry.ListFolders(c.Request.Context(), userID)
	if err != nil {
		h.log.Error().Err(err).Msg("failed to list folders")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch folders"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"folders": folders})
}

// DeleteFolder removes the folder together with every file filed in it.
// Links to those files stay in place and fail at delivery.
func (h *Handler) DeleteFolder(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return
	}

	ctx := c.Request.Context()
	removed, err := h.registry.DeleteFolder(ctx, c.Param("id"), userID)
	if errors.Is(err, storage.ErrFolderNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Folder not found"})
		return
	}
	if err != nil {
		h.log.Error().Err(err).Msg("failed to delete folder")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete folder"})
		return
	}

	for _, f := range removed {
		if err := h.objects.Delete(ctx, f.ObjectName); err != nil && !errors.Is(err, services.ErrObjectNotFound) {
			h.log.Warn().Err(err).Str("file_id", f.ID).Msg("failed to delete object of removed folder")
		}
		h.publish(services.SubjectFileDeleted, FileDeletedEvent{FileID: f.ID, UserID: f.UserID})
	}

	c.JSON(http.StatusOK, gin.H{"message": "Folder deleted", "deleted_files": len(removed)})
}
