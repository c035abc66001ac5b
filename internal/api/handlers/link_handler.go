package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/File-Sharing-BondBridg/Link-Service/internal/models"
	"github.com/File-Sharing-BondBridg/Link-Service/internal/services"
	"github.com/File-Sharing-BondBridg/Link-Service/internal/sharing"
	"github.com/File-Sharing-BondBridg/Link-Service/internal/storage"
	"github.com/gin-gonic/gin"
	"gopkg.in/DataDog/dd-trace-go.v1/ddtrace/tracer"
)

type issueLinkRequest struct {
	Expiry      string `json:"expiry"`
	CustomValue int    `json:"custom_value"`
	CustomUnit  string `json:"custom_unit"`
	AccessLevel string `json:"access_level"`
}

// LinkEvent is published on links.*. The token itself never leaves the service.
type LinkEvent struct {
	FileID        string             `json:"file_id"`
	OwnerID       string             `json:"owner_id"`
	AccessLevel   models.AccessLevel `json:"access_level,omitempty"`
	ExpiresAt     *time.Time         `json:"expires_at,omitempty"`
	DownloadCount int64              `json:"download_count,omitempty"`
}

type linkView struct {
	models.ShareLink
	URL string `json:"url"`
}

func (h *Handler) IssueLink(c *gin.Context) {
	span, ctx := tracer.StartSpanFromContext(c.Request.Context(), "links.issue")
	defer span.Finish()

	userID, ok := userIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return
	}

	var req issueLinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	level := models.AccessDownload
	if req.AccessLevel != "" {
		parsed, err := sharing.ParseAccessLevel(req.AccessLevel)
		if err != nil {
			writeLinkError(c, err)
			return
		}
		level = parsed
	}

	file, err := h.registry.GetFile(ctx, c.Param("id"))
	if errors.Is(err, storage.ErrFileNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "File not found"})
		return
	}
	if err != nil {
		h.log.Error().Err(err).Msg("failed to load file for sharing")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch file"})
		return
	}

	issued, err := h.issuer.Issue(ctx, sharing.IssueRequest{
		File:       file,
		OwnerID:    userID,
		OwnerEmail: c.GetString(userEmailKey),
		Expiry: sharing.ExpirySelection{
			Selector:  sharing.ExpirySelector(req.Expiry),
			Magnitude: req.CustomValue,
			Unit:      sharing.ExpiryUnit(req.CustomUnit),
		},
		AccessLevel: level,
	})
	if err != nil {
		span.SetTag("error", err)
		writeLinkError(c, err)
		return
	}

	span.SetTag("access_level", string(issued.Link.AccessLevel))
	h.publish(services.SubjectLinkIssued, LinkEvent{
		FileID:      issued.Link.FileID,
		OwnerID:     issued.Link.OwnerID,
		AccessLevel: issued.Link.AccessLevel,
		ExpiresAt:   &issued.Link.ExpiresAt,
	})
	c.JSON(http.StatusCreated, issued)
}

func (h *Handler) ListLinks(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return
	}

	links, err := h.issuer.List(c.Request.Context(), userID)
	if err != nil {
		writeLinkError(c, err)
		return
	}

	views := make([]linkView, 0, len(links))
	for _, l := range links {
		views = append(views, linkView{ShareLink: l, URL: h.issuer.URLFor(l.Token)})
	}
	c.JSON(http.StatusOK, gin.H{"links": views})
}

func (h *Handler) DeactivateLink(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return
	}

	if err := h.issuer.Deactivate(c.Request.Context(), c.Param("token"), userID); err != nil {
		writeLinkError(c, err)
		return
	}

	h.publish(services.SubjectLinkDeactivated, LinkEvent{OwnerID: userID})
	c.JSON(http.StatusOK, gin.H{"message": "link deactivated"})
}
