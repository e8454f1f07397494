package http

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/jmehdipour/leadsite/internal/features"
	"github.com/jmehdipour/leadsite/internal/service/leads"
)

type followUpsReq struct {
	Action string `json:"action"` // "" | "opt-out"
	Email  string `json:"email"`
}

func followUpsHandler(svc *leads.Service, client features.ClientConfig, dev bool, lg *zap.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		if !client.IsFeatureEnabled(features.FollowUps) {
			return c.JSON(http.StatusForbidden, map[string]any{
				"success": false,
				"error":   "Follow-ups are not included in your package.",
			})
		}

		// the body is optional
		var req followUpsReq
		if err := c.Bind(&req); err != nil && !errors.Is(err, io.EOF) {
			return c.JSON(http.StatusBadRequest, map[string]any{"success": false, "error": "Invalid request body."})
		}

		switch strings.ToLower(strings.TrimSpace(req.Action)) {
		case "":
			sum, err := svc.ProcessFollowUps(c.Request().Context())
			if err != nil {
				return writeError(c, err, dev, lg)
			}
			return c.JSON(http.StatusOK, map[string]any{
				"success":   true,
				"processed": sum.Processed,
				"sent":      sum.Sent,
				"skipped":   sum.Skipped,
				"errors":    sum.Errors,
			})
		case "opt-out", "optout", "unsubscribe":
			if err := svc.OptOut(c.Request().Context(), req.Email); err != nil {
				return writeError(c, err, dev, lg)
			}
			return c.JSON(http.StatusOK, map[string]any{
				"success": true,
				"message": "You have been unsubscribed from follow-up messages.",
			})
		default:
			return c.JSON(http.StatusBadRequest, map[string]any{"success": false, "error": "Unknown action."})
		}
	}
}
