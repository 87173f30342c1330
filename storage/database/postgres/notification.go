package pgrepos

import (
	"context"
	"database/sql"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/mwalimu/darasa/core"
	"github.com/mwalimu/darasa/core/notification"
)

type notificationRow struct {
	ID         string    `db:"id"`
	SenderID   string    `db:"sender_id"`
	ReceiverID string    `db:"receiver_id"`
	Title      string    `db:"title"`
	Message    string    `db:"message"`
	IsRead     bool      `db:"is_read"`
	CreatedAt  time.Time `db:"created_at"`
}

type notificationRepository struct {
	db *sqlx.DB
}

var _ notification.Repository = (*notificationRepository)(nil) // interface compliance check

func NewNotificationRepository(db *sqlx.DB) *notificationRepository {
	return &notificationRepository{db: db}
}

func (repo notificationRepository) unrow(r notificationRow) notification.Notification {
	return notification.Notification{
		ID:         r.ID,
		SenderID:   r.SenderID,
		ReceiverID: r.ReceiverID,
		Title:      r.Title,
		Message:    r.Message,
		IsRead:     r.IsRead,
		CreatedAt:  r.CreatedAt,
	}
}

func (repo notificationRepository) CreateNotifications(ctx context.Context, notifs ...notification.Notification) error {
	if len(notifs) == 0 {
		return nil
	}
	rows := make([]notificationRow, 0, len(notifs))
	for _, n := range notifs {
		rows = append(rows, notificationRow{
			ID:         uuid.New().String(),
			SenderID:   n.SenderID,
			ReceiverID: n.ReceiverID,
			Title:      n.Title,
			Message:    n.Message,
			IsRead:     n.IsRead,
			CreatedAt:  n.CreatedAt.UTC(),
		})
	}
	q := `
	INSERT INTO notification (id, sender_id, receiver_id, title, message, is_read, created_at)
	VALUES (:id, :sender_id, :receiver_id, :title, :message, :is_read, :created_at)`
	if _, err := repo.db.NamedExecContext(ctx, q, rows); err != nil {
		return errors.Wrap(err, "inserting notifications")
	}
	return nil
}

func (repo notificationRepository) GetNotificationByID(ctx context.Context, id string) (notification.Notification, error) {
	var r notificationRow
	if err := repo.db.GetContext(ctx, &r, `SELECT * FROM notification WHERE id = $1`, id); err != nil {
		if err == sql.ErrNoRows {
			return notification.Notification{}, notification.ErrNotFound
		}
		return notification.Notification{}, errors.Wrap(err, "getting notification by id")
	}
	return repo.unrow(r), nil
}

func (repo notificationRepository) QueryNotifications(ctx context.Context, filter *notification.QueryFilter, ordering []core.DBOrdering) ([]notification.Notification, error) {
	q := `SELECT * FROM notification`
	var where []string
	var args []interface{}

	if filter != nil {
		if filter.ReceiverID != "" {
			args = append(args, filter.ReceiverID)
			where = append(where, `receiver_id = $`+strconv.Itoa(len(args)))
		}
		if filter.IsRead != nil {
			args = append(args, *filter.IsRead)
			where = append(where, `is_read = $`+strconv.Itoa(len(args)))
		}
	}

	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	q += orderBy(ordering, "", "created_at DESC")

	var rows []notificationRow
	if err := repo.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying notifications")
	}
	notifs := make([]notification.Notification, 0, len(rows))
	for _, r := range rows {
		notifs = append(notifs, repo.unrow(r))
	}
	return notifs, nil
}

func (repo notificationRepository) MarkNotificationRead(ctx context.Context, id string) (notification.Notification, error) {
	var r notificationRow
	q := `UPDATE notification SET is_read = TRUE WHERE id = $1 RETURNING *`
	if err := repo.db.GetContext(ctx, &r, q, id); err != nil {
		if err == sql.ErrNoRows {
			return notification.Notification{}, notification.ErrNotFound
		}
		return notification.Notification{}, errors.Wrap(err, "marking notification read")
	}
	return repo.unrow(r), nil
}

func (repo notificationRepository) DeleteNotificationsByID(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	q, args, err := sqlx.In(`DELETE FROM notification WHERE id IN (?)`, ids)
	if err != nil {
		return errors.Wrap(err, "building delete query")
	}
	if _, err = repo.db.ExecContext(ctx, repo.db.Rebind(q), args...); err != nil {
		return errors.Wrap(err, "deleting notifications")
	}
	return nil
}
