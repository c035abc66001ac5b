package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/File-Sharing-BondBridg/Link-Service/internal/models"
	"github.com/File-Sharing-BondBridg/Link-Service/internal/services"
	"github.com/File-Sharing-BondBridg/Link-Service/internal/storage"
	"github.com/nats-io/nats.go"
)

const scanTimeout = 2 * time.Minute

// HandleFileUploaded scans a fresh upload and records the verdict. Infected
// objects are removed; the metadata row stays so the owner sees why.
func (h *Handler) HandleFileUploaded(msg *nats.Msg) {
	var payload FileUploadedEvent
	if err := json.Unmarshal(msg.Data, &payload); err != nil || payload.FileID == "" {
		h.log.Warn().Err(err).Msg("files.uploaded: invalid payload")
		h.term(msg)
		return
	}

	if h.scanner == nil {
		h.ack(msg)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), scanTimeout)
	defer cancel()

	status, err := h.scanFile(ctx, payload.FileID)
	if err != nil {
		h.log.Error().Err(err).Str("file_id", payload.FileID).Msg("scan failed")
		h.nak(msg)
		return
	}

	h.log.Info().Str("file_id", payload.FileID).Str("status", status).Msg("scan finished")
	h.ack(msg)
}

// scanFile returns the recorded status, or "" when the file is already gone.
func (h *Handler) scanFile(ctx context.Context, fileID string) (string, error) {
	meta, err := h.registry.GetFile(ctx, fileID)
	if errors.Is(err, storage.ErrFileNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}

	reader, _, err := h.objects.Open(ctx, meta.ObjectName)
	if errors.Is(err, services.ErrObjectNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	result, err := h.scanner.Scan(ctx, reader)
	reader.Close()
	if err != nil {
		return "", err
	}

	status := models.ScanClean
	if result.Infected {
		status = models.ScanInfected
		h.log.Warn().Str("file_id", fileID).Str("signature", result.Signature).Msg("virus detected")
		if err := h.objects.Delete(ctx, meta.ObjectName); err != nil && !errors.Is(err, services.ErrObjectNotFound) {
			return "", err
		}
	}

	if err := h.registry.UpdateScanStatus(ctx, fileID, status, h.now().UTC()); err != nil && !errors.Is(err, storage.ErrFileNotFound) {
		return "", err
	}
	return status, nil
}

func (h *Handler) ack(msg *nats.Msg) {
	if err := msg.Ack(); err != nil {
		h.log.Debug().Err(err).Msg("failed to ack message")
	}
}

// nak asks JetStream to redeliver.
func (h *Handler) nak(msg *nats.Msg) {
	if err := msg.Nak(); err != nil {
		h.log.Debug().Err(err).Msg("failed to nak message")
	}
}

// term drops a message that can never succeed.
func (h *Handler) term(msg *nats.Msg) {
	if err := msg.Term(); err != nil {
		h.log.Debug().Err(err).Msg("failed to term message")
	}
}
