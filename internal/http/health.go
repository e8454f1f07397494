package http

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// healthHandler reports which integrations are configured. Store reachability
// is checked with a short ping and reported separately so a slow spreadsheet
// never fails the probe.
func healthHandler(d Deps, started time.Time) echo.HandlerFunc {
	return func(c echo.Context) error {
		storeUp := false
		if d.Store != nil {
			ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
			storeUp = d.Store.Ping(ctx) == nil
			cancel()
		}

		chatbot := false
		if d.Chat != nil {
			chatbot = d.Chat.ModelConfigured()
		}

		return c.JSON(http.StatusOK, map[string]any{
			"status":  "healthy",
			"uptime":  time.Since(started).Seconds(),
			"package": d.Client.Tier,
			"services": map[string]bool{
				"googleSheets": d.Client.SheetsConfigured(),
				"email":        d.Client.EmailConfigured(),
				"whatsapp":     d.Client.WhatsAppConfigured(),
				"chatbot":      chatbot,
				"store":        storeUp,
				"reports":      d.Events != nil,
			},
		})
	}
}
