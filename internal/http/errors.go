package http

import (
	"errors"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/jmehdipour/leadsite/internal/apperr"
	"github.com/jmehdipour/leadsite/internal/validation"
)

const genericError = "Something went wrong. Please try again later."

// writeError renders err as {success:false, ...} with the status of its kind.
// The raw error is only exposed in development.
func writeError(c echo.Context, err error, dev bool, lg *zap.Logger) error {
	kind := apperr.KindOf(err)
	status := apperr.HTTPStatus(kind)
	body := map[string]any{"success": false}

	switch kind {
	case apperr.KindValidation:
		var fe validation.FieldErrors
		if errors.As(err, &fe) {
			body["errors"] = fe
		} else {
			body["error"] = apperr.MessageOf(err, "Invalid request.")
		}
	case apperr.KindDuplicate:
		body["duplicate"] = true
		body["error"] = apperr.MessageOf(err, "Duplicate submission.")
	default:
		body["error"] = apperr.MessageOf(err, genericError)
		if hint := apperr.HintOf(err); hint != "" {
			body["help"] = hint
		}
	}

	if status >= 500 {
		lg.Error("request failed", zap.String("path", c.Path()), zap.Stringer("kind", kind), zap.Error(err))
		if dev {
			body["detail"] = err.Error()
		}
	}
	return c.JSON(status, body)
}
