package http

import (
	"net/http"
	"strconv"
	"time"

	echo "github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/jmehdipour/leadsite/internal/features"
	"github.com/jmehdipour/leadsite/internal/repository"
)

func reportsHandler(events repository.EventsRepository, client features.ClientConfig, lg *zap.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		if !client.IsFeatureEnabled(features.Reports) {
			return c.JSON(http.StatusForbidden, map[string]any{"success": false, "error": "Reports are not included in your package."})
		}
		if events == nil {
			return c.JSON(http.StatusServiceUnavailable, map[string]any{"success": false, "error": "Reports store is not configured."})
		}

		days := 30
		if v := c.QueryParam("days"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 365 {
				days = n
			}
		}

		since := time.Now().UTC().AddDate(0, 0, -days)
		sum, err := events.Summary(c.Request().Context(), since)
		if err != nil {
			lg.Error("clickhouse summary failed", zap.Error(err))
			return c.JSON(http.StatusInternalServerError, map[string]any{"success": false, "error": "query failed"})
		}

		return c.JSON(http.StatusOK, map[string]any{
			"success": true,
			"days":    days,
			"since":   sum.Since,
			"totals":  sum.Totals,
			"results": sum.Rows,
		})
	}
}

func configHandler(client features.ClientConfig) echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]any{
			"success":     true,
			"package":     client.Tier,
			"features":    client.EnabledFeatures(),
			"bookingLink": client.BookingLink(),
			"missing":     client.Validate(),
		})
	}
}
