package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/File-Sharing-BondBridg/Link-Service/internal/logger"
	"github.com/File-Sharing-BondBridg/Link-Service/internal/services"
	"github.com/File-Sharing-BondBridg/Link-Service/internal/sharing"
	"github.com/File-Sharing-BondBridg/Link-Service/internal/storage"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

const (
	userIDKey    = "user_id"
	userEmailKey = "user_email"

	defaultMaxUploadBytes = 200 << 20
)

// ObjectStore is the subset of services.MinioService the handlers use.
type ObjectStore interface {
	Upload(ctx context.Context, reader io.Reader, size int64, objectName, contentType string) error
	Open(ctx context.Context, objectName string) (io.ReadCloser, services.ObjectInfo, error)
	Delete(ctx context.Context, objectName string) error
	CheckConnection(ctx context.Context) error
}

type EventPublisher interface {
	Publish(subject string, payload any) error
}

type VirusScanner interface {
	Scan(ctx context.Context, r io.Reader) (services.ScanResult, error)
}

// Deps wires a Handler. Events and Scanner may be nil.
type Deps struct {
	Registry       storage.Registry
	Objects        ObjectStore
	Issuer         *sharing.Issuer
	Redeemer       *sharing.Redeemer
	Events         EventPublisher
	Scanner        VirusScanner
	MaxUploadBytes int64
	Now            func() time.Time
}

type Handler struct {
	registry       storage.Registry
	objects        ObjectStore
	issuer         *sharing.Issuer
	redeemer       *sharing.Redeemer
	events         EventPublisher
	scanner        VirusScanner
	maxUploadBytes int64
	now            func() time.Time
	log            zerolog.Logger
}

func New(d Deps) *Handler {
	h := &Handler{
		registry:       d.Registry,
		objects:        d.Objects,
		issuer:         d.Issuer,
		redeemer:       d.Redeemer,
		events:         d.Events,
		scanner:        d.Scanner,
		maxUploadBytes: d.MaxUploadBytes,
		now:            d.Now,
		log:            logger.With("api"),
	}
	if h.maxUploadBytes <= 0 {
		h.maxUploadBytes = defaultMaxUploadBytes
	}
	if h.now == nil {
		h.now = time.Now
	}
	return h
}

func (h *Handler) HealthCheck(c *gin.Context) {
	if err := h.objects.CheckConnection(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "error": "object storage unreachable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// publish is fire-and-forget: a lost event never fails the request.
func (h *Handler) publish(subject string, payload any) {
	if h.events == nil {
		return
	}
	if err := h.events.Publish(subject, payload); err != nil {
		h.log.Warn().Err(err).Str("subject", subject).Msg("failed to publish event")
	}
}

func userIDFromContext(c *gin.Context) (string, bool) {
	id := c.GetString(userIDKey)
	return id, id != ""
}

// writeLinkError maps share-link errors onto HTTP responses. Not-found and
// expired deliberately share one response.
func writeLinkError(c *gin.Context, err error) {
	var verr *sharing.ValidationError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, gin.H{"error": verr.Error(), "field": verr.Field})
	case errors.Is(err, sharing.ErrNotOwner):
		c.JSON(http.StatusForbidden, gin.H{"error": "Access denied"})
	case errors.Is(err, sharing.ErrFileQuarantined):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case errors.Is(err, sharing.ErrLinkNotFound), errors.Is(err, sharing.ErrLinkExpired):
		c.JSON(http.StatusNotFound, gin.H{"error": "link not found or expired"})
	case errors.Is(err, sharing.ErrLinkDeactivated):
		c.JSON(http.StatusGone, gin.H{"error": "link has been deactivated"})
	case errors.Is(err, sharing.ErrStorage):
		c.Header("Retry-After", "5")
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "link storage unavailable, try again"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
