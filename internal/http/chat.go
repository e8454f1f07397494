package http

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/jmehdipour/leadsite/internal/chat"
	"github.com/jmehdipour/leadsite/internal/features"
)

type chatReq struct {
	Message      string `json:"message"`
	BusinessType string `json:"businessType"`
}

func chatHandler(r *chat.Responder, client features.ClientConfig) echo.HandlerFunc {
	return func(c echo.Context) error {
		if !client.IsFeatureEnabled(features.Chatbot) {
			return c.JSON(http.StatusForbidden, map[string]any{"success": false, "error": "Chat is not enabled for this site."})
		}

		var req chatReq
		if err := c.Bind(&req); err != nil {
			return c.JSON(http.StatusBadRequest, map[string]any{"success": false, "error": "Invalid request body."})
		}

		reply := r.Respond(c.Request().Context(), req.Message, req.BusinessType)
		if !reply.Success {
			status := http.StatusInternalServerError
			if reply.Source == chat.SourceValidation {
				status = http.StatusBadRequest
			}
			return c.JSON(status, map[string]any{"success": false, "error": reply.Message})
		}

		return c.JSON(http.StatusOK, map[string]any{
			"success": true,
			"response": map[string]string{
				"message": reply.Message,
				"source":  reply.Source,
			},
		})
	}
}
