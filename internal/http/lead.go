package http

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/jmehdipour/leadsite/internal/service/leads"
	"github.com/jmehdipour/leadsite/internal/validation"
)

func leadHandler(svc *leads.Service, timeout time.Duration, dev bool, lg *zap.Logger) echo.HandlerFunc {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return func(c echo.Context) error {
		var req validation.LeadInput
		if err := c.Bind(&req); err != nil {
			return c.JSON(http.StatusBadRequest, map[string]any{"success": false, "error": "Invalid request body."})
		}

		ctx, cancel := context.WithTimeout(c.Request().Context(), timeout)
		defer cancel()

		res, err := svc.Submit(ctx, req)
		if err != nil {
			return writeError(c, err, dev, lg)
		}

		return c.JSON(http.StatusOK, map[string]any{
			"success": true,
			"message": "Thanks! We'll be in touch shortly.",
			"lead": map[string]string{
				"name":    res.Lead.Name,
				"email":   res.Lead.Email,
				"service": res.Lead.Service,
			},
		})
	}
}

// listLeadsHandler has no auth unless an admin key is configured.
func listLeadsHandler(svc *leads.Service, dev bool, lg *zap.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		list, err := svc.List(c.Request().Context())
		if err != nil {
			return writeError(c, err, dev, lg)
		}
		return c.JSON(http.StatusOK, map[string]any{
			"success": true,
			"leads":   list,
			"count":   len(list),
		})
	}
}
