package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jmehdipour/leadsite/internal/model"
)

var ErrLeadNotFound = errors.New("lead not found")

// DuplicateWindow is how far back Save looks for an earlier row with the same email.
const DuplicateWindow = 5 * time.Minute

type SaveResult struct {
	Success   bool
	Duplicate bool
}

// LeadStore persists leads. Save stamps the submission time and refuses a repeat
// of the same email inside DuplicateWindow without writing anything.
type LeadStore interface {
	Save(ctx context.Context, lead *model.Lead) (SaveResult, error)
	List(ctx context.Context) ([]model.Lead, error)
	UpdateStatus(ctx context.Context, email string, patch model.LeadPatch) error
	Ping(ctx context.Context) error
}
