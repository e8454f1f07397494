package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/jmehdipour/leadsite/internal/model"
	"github.com/jmehdipour/leadsite/internal/util"
)

// MySQLLeadStore keeps leads in the leads table; the (email, submitted_at_ms)
// index serves the duplicate lookup.
type MySQLLeadStore struct {
	db  *sqlx.DB
	Now func() time.Time
}

var _ LeadStore = (*MySQLLeadStore)(nil)

func NewMySQLLeadStore(db *sqlx.DB) *MySQLLeadStore {
	return &MySQLLeadStore{db: db, Now: time.Now}
}

func (r *MySQLLeadStore) withTx(ctx context.Context, fn func(*sqlx.Tx) error) error {
	t, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = t.Rollback() }()
	if err := fn(t); err != nil {
		return err
	}
	return t.Commit()
}

func (r *MySQLLeadStore) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *MySQLLeadStore) Save(ctx context.Context, lead *model.Lead) (SaveResult, error) {
	now := r.Now()
	email := strings.ToLower(strings.TrimSpace(lead.Email))

	var res SaveResult
	err := r.withTx(ctx, func(tx *sqlx.Tx) error {
		var one int
		err := tx.QueryRowxContext(ctx, `
			SELECT 1 FROM leads
			 WHERE email = ? AND submitted_at_ms >= ?
			 LIMIT 1 FOR UPDATE
		`, email, now.Add(-DuplicateWindow).UnixMilli()).Scan(&one)
		switch {
		case err == nil:
			res.Duplicate = true
			return nil
		case !errors.Is(err, sql.ErrNoRows):
			return err
		}

		lead.Email = email
		lead.Stamp(now)
		if lead.ID == "" {
			lead.ID = util.NewIDAt(now)
		}
		if !lead.Status.Valid() {
			lead.Status = model.StatusNotContacted
		}

		_, err = tx.NamedExecContext(ctx, `
			INSERT INTO leads
			    (id, name, email, phone, company, service, budget, preferred_time, message,
			     business_type, submitted_at, submitted_at_ms, status, opt_out, last_follow_up_ms)
			VALUES
			    (:id, :name, :email, :phone, :company, :service, :budget, :preferred_time, :message,
			     :business_type, :submitted_at, :submitted_at_ms, :status, :opt_out, :last_follow_up_ms)
		`, lead)
		if err != nil {
			return err
		}
		res.Success = true
		return nil
	})
	if err != nil {
		return SaveResult{}, err
	}
	return res, nil
}

func (r *MySQLLeadStore) List(ctx context.Context) ([]model.Lead, error) {
	var rows []model.Lead
	err := r.db.SelectContext(ctx, &rows, `
		SELECT id, name, email, phone, company, service, budget, preferred_time, message,
		       business_type, submitted_at, submitted_at_ms, status, opt_out, last_follow_up_ms
		  FROM leads
		 ORDER BY submitted_at_ms DESC
	`)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// UpdateStatus patches the most recent lead for email.
func (r *MySQLLeadStore) UpdateStatus(ctx context.Context, email string, patch model.LeadPatch) error {
	email = strings.ToLower(strings.TrimSpace(email))
	return r.withTx(ctx, func(tx *sqlx.Tx) error {
		var l model.Lead
		err := tx.GetContext(ctx, &l, `
			SELECT id, status, opt_out, last_follow_up_ms
			  FROM leads
			 WHERE email = ?
			 ORDER BY submitted_at_ms DESC
			 LIMIT 1 FOR UPDATE
		`, email)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrLeadNotFound
		}
		if err != nil {
			return err
		}

		patch.Apply(&l)
		_, err = tx.ExecContext(ctx, `
			UPDATE leads SET status = ?, opt_out = ?, last_follow_up_ms = ?
			 WHERE id = ?
		`, l.Status.String(), l.OptOut, l.LastFollowUpAt, l.ID)
		return err
	})
}
