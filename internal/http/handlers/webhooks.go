package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/geocoder89/whatsflow/internal/ingress"
	"github.com/gin-gonic/gin"
)

// WebhooksHandler exposes the inbound webhook surface: Altegio booking
// events and the WhatsApp Cloud API verify/ingest endpoints.
type WebhooksHandler struct {
	dedup             *ingress.Deduplicator
	whatsAppVerifyTok string
}

func NewWebhooksHandler(dedup *ingress.Deduplicator, whatsAppVerifyToken string) *WebhooksHandler {
	return &WebhooksHandler{dedup: dedup, whatsAppVerifyTok: whatsAppVerifyToken}
}

func flatQuery(c *gin.Context) map[string]string {
	out := make(map[string]string, len(c.Request.URL.Query()))
	for k, v := range c.Request.URL.Query() {
		if len(v) > 0 {
			out[k] = v[0]
		}
	}
	return out
}

// POST /webhooks/altegio
func (h *WebhooksHandler) Altegio(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		RespondBadRequest(c, "Could not read request body", nil)
		return
	}

	err = h.dedup.IngestAltegio(c.Request.Context(), body, flatQuery(c), c.Request.Header)
	if err != nil {
		if errors.Is(err, ingress.ErrBadSecret) {
			RespondError(c, http.StatusForbidden, "invalid_secret", "Invalid webhook secret", nil)
			return
		}
		RespondBadRequest(c, "Invalid JSON", nil)
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// GET /webhook/whatsapp — Meta's subscription verification challenge.
func (h *WebhooksHandler) WhatsAppVerify(c *gin.Context) {
	mode := c.Query("hub.mode")
	token := c.Query("hub.verify_token")
	challenge := c.Query("hub.challenge")

	if mode != "subscribe" || challenge == "" {
		RespondBadRequest(c, "Invalid verify request", nil)
		return
	}
	if token != h.whatsAppVerifyTok {
		RespondError(c, http.StatusForbidden, "verify_token_mismatch", "Verify token mismatch", nil)
		return
	}

	c.String(http.StatusOK, challenge)
}

// POST /webhook/whatsapp
func (h *WebhooksHandler) WhatsAppIngest(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		RespondBadRequest(c, "Could not read request body", nil)
		return
	}

	if err := h.dedup.IngestWhatsApp(c.Request.Context(), body, flatQuery(c), c.Request.Header); err != nil {
		RespondBadRequest(c, "Invalid JSON", nil)
		return
	}

	c.Status(http.StatusOK)
}
