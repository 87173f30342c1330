package pgrepos

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/mwalimu/darasa/core/activity"
)

type activityRow struct {
	ID        string       `db:"id"`
	UserID    string       `db:"user_id"`
	Date      time.Time    `db:"date"`
	Present   null.Bool    `db:"present"`
	Score     null.Float64 `db:"score"`
	Note      string       `db:"note"`
	CreatedAt time.Time    `db:"created_at"`
}

type activityRepository struct {
	db *sqlx.DB
}

var _ activity.Repository = (*activityRepository)(nil) // interface compliance check

func NewActivityRepository(db *sqlx.DB) *activityRepository {
	return &activityRepository{db: db}
}

func (repo activityRepository) unrow(r activityRow) activity.Entry {
	return activity.Entry{
		ID:        r.ID,
		UserID:    r.UserID,
		Date:      r.Date,
		Present:   r.Present.Ptr(),
		Score:     r.Score.Ptr(),
		Note:      r.Note,
		CreatedAt: r.CreatedAt,
	}
}

func (repo activityRepository) CreateEntry(ctx context.Context, e activity.Entry) (activity.Entry, error) {
	r := activityRow{
		ID:        uuid.New().String(),
		UserID:    e.UserID,
		Date:      e.Date.UTC().Truncate(24 * time.Hour),
		Present:   null.BoolFromPtr(e.Present),
		Score:     null.Float64FromPtr(e.Score),
		Note:      e.Note,
		CreatedAt: e.CreatedAt.UTC(),
	}
	q := `
	INSERT INTO activity_log (id, user_id, date, present, score, note, created_at)
	VALUES (:id, :user_id, :date, :present, :score, :note, :created_at)`
	if _, err := repo.db.NamedExecContext(ctx, q, r); err != nil {
		return activity.Entry{}, errors.Wrap(err, "inserting activity entry")
	}
	return repo.unrow(r), nil
}

func (repo activityRepository) QueryEntries(ctx context.Context, filter *activity.QueryFilter) ([]activity.Entry, error) {
	q := `SELECT * FROM activity_log`
	var where []string
	var args []interface{}

	if filter != nil {
		if filter.UserID != "" {
			args = append(args, filter.UserID)
			where = append(where, `user_id = $`+strconv.Itoa(len(args)))
		}
		if len(filter.UserIDs) > 0 {
			args = append(args, pqStringArray(filter.UserIDs))
			where = append(where, `user_id = ANY($`+strconv.Itoa(len(args))+`)`)
		}
		if !filter.From.IsZero() {
			args = append(args, filter.From.UTC())
			where = append(where, `date >= $`+strconv.Itoa(len(args)))
		}
		if !filter.To.IsZero() {
			args = append(args, filter.To.UTC())
			where = append(where, `date <= $`+strconv.Itoa(len(args)))
		}
		if filter.AttendanceOnly {
			where = append(where, `present IS NOT NULL`)
		}
	}

	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	q += ` ORDER BY date DESC, created_at DESC`

	var rows []activityRow
	if err := repo.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying activity entries")
	}
	entries := make([]activity.Entry, 0, len(rows))
	for _, r := range rows {
		entries = append(entries, repo.unrow(r))
	}
	return entries, nil
}
