package handlers

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/File-Sharing-BondBridg/Link-Service/internal/services"
	"github.com/nats-io/nats.go"
)

type prefixDeleter interface {
	DeleteObjectsByPrefix(ctx context.Context, prefix string) error
}

type UserDeletedPayload struct {
	UserID string `json:"user_id"`
}

// HandleUserDeleted revokes the user's links, then removes their objects and
// metadata. Every step is safe to repeat on redelivery.
func (h *Handler) HandleUserDeleted(msg *nats.Msg) {
	var payload UserDeletedPayload
	if err := json.Unmarshal(msg.Data, &payload); err != nil {
		h.log.Warn().Err(err).Msg("users.deleted: invalid JSON")
		h.term(msg)
		return
	}
	if payload.UserID == "" {
		h.log.Warn().Msg("users.deleted: missing user_id")
		h.term(msg)
		return
	}

	if err := h.purgeUser(context.Background(), payload.UserID); err != nil {
		h.log.Error().Err(err).Str("user_id", payload.UserID).Msg("user cleanup failed")
		h.nak(msg)
		return
	}
	h.ack(msg)
}

func (h *Handler) purgeUser(ctx context.Context, userID string) error {
	revoked, err := h.issuer.DeactivateAll(ctx, userID)
	if err != nil {
		return err
	}

	files, err := h.registry.ListFiles(ctx, userID, "")
	if err != nil {
		return err
	}
	for _, f := range files {
		if err := h.objects.Delete(ctx, f.ObjectName); err != nil && !errors.Is(err, services.ErrObjectNotFound) {
			return err
		}
	}

	// Sweep leftovers under the user's prefix, e.g. from uploads whose
	// metadata write failed.
	if sweeper, ok := h.objects.(prefixDeleter); ok {
		if err := sweeper.DeleteObjectsByPrefix(ctx, userID+"/"); err != nil {
			return err
		}
	}

	removed, err := h.registry.DeleteAllForUser(ctx, userID)
	if err != nil {
		return err
	}

	h.log.Info().
		Str("user_id", userID).
		Int("links_revoked", revoked).
		Int("files_removed", len(removed)).
		Msg("cleaned up deleted user")
	return nil
}
