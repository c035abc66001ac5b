package nats

import (
	"github.com/File-Sharing-BondBridg/Link-Service/internal/api/handlers"
	"github.com/File-Sharing-BondBridg/Link-Service/internal/services"
	"github.com/nats-io/nats.go"
)

func Routes(h *handlers.Handler) map[string]nats.MsgHandler {
	return map[string]nats.MsgHandler{
		// User events
		services.SubjectUserDeleted: h.HandleUserDeleted,

		// File events
		services.SubjectFileUploaded: h.HandleFileUploaded,
	}
}
