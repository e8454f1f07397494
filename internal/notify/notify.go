// Package notify sends lead notifications over email and WhatsApp. A Sender never
// returns an error: every outcome, including "channel absent", is a Result.
package notify

import (
	"context"

	"github.com/jmehdipour/leadsite/internal/model"
)

type Result struct {
	Success           bool   `json:"success"`
	Skipped           bool   `json:"skipped,omitempty"`
	Error             string `json:"error,omitempty"`
	ProviderMessageID string `json:"providerMessageId,omitempty"`
}

// Outcome is a short label for logs and metrics.
func (r Result) Outcome() string {
	switch {
	case r.Success && r.Skipped:
		return "duplicate"
	case r.Success:
		return "sent"
	case r.Skipped:
		return "skipped"
	default:
		return "failed"
	}
}

type Sender interface {
	Channel() model.Channel
	Send(ctx context.Context, to, templateName string, data TemplateData, messageType string) Result
}

func failed(err error) Result { return Result{Error: err.Error()} }

func softSkip(reason string) Result { return Result{Skipped: true, Error: reason} }

func duplicate() Result { return Result{Success: true, Skipped: true} }
