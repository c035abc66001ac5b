package handlers

import (
	"net/http"

	"github.com/File-Sharing-BondBridg/Link-Service/internal/services"
	"github.com/gin-gonic/gin"
	"gopkg.in/DataDog/dd-trace-go.v1/ddtrace/tracer"
)

const viewOnlyNotice = "This link is view-only. Downloads are disabled."

// RedeemLink is the public entry point of a share URL. Download links stream
// the file; view-only links answer with metadata only.
func (h *Handler) RedeemLink(c *gin.Context) {
	span, ctx := tracer.StartSpanFromContext(c.Request.Context(), "links.redeem")
	defer span.Finish()

	res, err := h.redeemer.Redeem(ctx, c.Param("token"), h.now())
	span.SetTag("outcome", string(res.Outcome))
	if err != nil {
		writeLinkError(c, err)
		return
	}

	h.publish(services.SubjectLinkRedeemed, LinkEvent{
		AccessLevel:   res.AccessLevel,
		DownloadCount: res.DownloadCount,
	})

	if !res.Permissions.CanDownload {
		c.JSON(http.StatusOK, gin.H{"share": res, "notice": viewOnlyNotice})
		return
	}
	h.streamObject(c, res.FileRef, res.FileName)
}

// LinkInfo reports what a token grants without counting a use.
func (h *Handler) LinkInfo(c *gin.Context) {
	res, err := h.redeemer.Inspect(c.Request.Context(), c.Param("token"), h.now())
	if err != nil {
		writeLinkError(c, err)
		return
	}

	body := gin.H{"share": res}
	if !res.Permissions.CanDownload {
		body["notice"] = viewOnlyNotice
	}
	c.JSON(http.StatusOK, body)
}
