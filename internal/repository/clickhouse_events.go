package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/jmehdipour/leadsite/internal/model"
)

// EventsRepository stores lead lifecycle events in ClickHouse and summarizes them.
type EventsRepository interface {
	InsertBatch(ctx context.Context, events []model.LeadEvent) error
	Summary(ctx context.Context, since time.Time) (EventSummary, error)
}

type EventCount struct {
	Type    string `json:"type"    db:"type"`
	Service string `json:"service" db:"service"`
	Count   uint64 `json:"count"   db:"cnt"`
}

type EventSummary struct {
	Since  time.Time         `json:"since"`
	Totals map[string]uint64 `json:"totals"`
	Rows   []EventCount      `json:"rows"`
}

type chEventsRepository struct {
	ch *sqlx.DB // ClickHouse connection
}

func NewEventsRepository(ch *sqlx.DB) EventsRepository {
	return &chEventsRepository{ch: ch}
}

// InsertBatch writes events in one ClickHouse block. The driver requires the
// batch to be prepared inside a transaction.
func (r *chEventsRepository) InsertBatch(ctx context.Context, events []model.LeadEvent) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := r.ch.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO leadsite.lead_events
		    (id, type, email, service, business_type, status, occurred_at)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, e := range events {
		if _, err := stmt.ExecContext(ctx,
			e.ID, e.Type.String(), e.Email, e.Service, e.BusinessType, e.Status, e.OccurredAt.UTC(),
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (r *chEventsRepository) Summary(ctx context.Context, since time.Time) (EventSummary, error) {
	const q = `
		SELECT type, service, count() AS cnt
		FROM leadsite.lead_events
		WHERE occurred_at >= ?
		GROUP BY type, service
		ORDER BY type, cnt DESC
	`
	var rows []EventCount
	if err := r.ch.SelectContext(ctx, &rows, q, since.UTC()); err != nil {
		return EventSummary{}, err
	}

	sum := EventSummary{Since: since.UTC(), Totals: make(map[string]uint64), Rows: rows}
	for _, row := range rows {
		sum.Totals[row.Type] += row.Count
	}
	if sum.Rows == nil {
		sum.Rows = []EventCount{}
	}
	return sum, nil
}
