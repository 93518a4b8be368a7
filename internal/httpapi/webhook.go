package httpapi

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
)

// webhookPayload is the inbound SMS/WhatsApp-style body §6 defines.
type webhookPayload struct {
	FromNumber string `json:"from_number"`
	Content    string `json:"content"`
	MediaURL   string `json:"media_url"`
}

// handleWebhook accepts one inbound message, drops it per §6's rules, and
// otherwise runs a conversation turn in the background -- the webhook
// caller gets an immediate ack regardless of how long the model takes.
func (s *Server) handleWebhook(c echo.Context) error {
	var body webhookPayload
	if err := c.Bind(&body); err != nil {
		return errJSON(c, http.StatusBadRequest, "invalid webhook payload")
	}

	if s.webhookUser != "" && body.FromNumber != s.webhookUser {
		return c.JSON(http.StatusOK, map[string]string{"status": "ignored"})
	}
	if s.webhookSender != "" && body.FromNumber == s.webhookSender {
		return c.JSON(http.StatusOK, map[string]string{"status": "ignored"})
	}
	if body.Content == "" && body.MediaURL == "" {
		return c.JSON(http.StatusOK, map[string]string{"status": "ignored"})
	}

	text := body.Content
	if text == "" {
		text = "(received an attachment with no message)"
	}

	if s.conv != nil {
		go func() {
			if _, err := s.conv.Send(context.Background(), text); err != nil && s.log != nil {
				s.log.WithError(err).Warn("conversation turn from webhook failed")
			}
		}()
	}

	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}
