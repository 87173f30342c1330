package dummydb

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/mwalimu/darasa/core"
	"github.com/mwalimu/darasa/core/notification"
)

type notificationRepository struct {
	db *notificationTable
}

var _ notification.Repository = (*notificationRepository)(nil) // interface compliance check

func NewNotificationRepository(db *DB) *notificationRepository {
	return &notificationRepository{db: db.notification}
}

func (repo *notificationRepository) CreateNotifications(ctx context.Context, notifs ...notification.Notification) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	for _, n := range notifs {
		n.ID = uuid.New().String()
		n := n
		repo.db.table[n.ID] = &n
	}
	return nil
}

func (repo *notificationRepository) GetNotificationByID(ctx context.Context, id string) (notification.Notification, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if n, ok := repo.db.table[id]; ok {
		return *n, nil
	}
	return notification.Notification{}, notification.ErrNotFound
}

func (repo *notificationRepository) QueryNotifications(ctx context.Context, filter *notification.QueryFilter, ordering []core.DBOrdering) ([]notification.Notification, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var notifs []notification.Notification
	for _, n := range repo.db.table {
		if filter != nil {
			if filter.ReceiverID != "" && n.ReceiverID != filter.ReceiverID {
				continue
			}
			if filter.IsRead != nil && n.IsRead != *filter.IsRead {
				continue
			}
		}
		notifs = append(notifs, *n)
	}
	sort.Slice(notifs, func(i, j int) bool { return notifs[i].CreatedAt.After(notifs[j].CreatedAt) })
	return notifs, nil
}

func (repo *notificationRepository) MarkNotificationRead(ctx context.Context, id string) (notification.Notification, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	n, ok := repo.db.table[id]
	if !ok {
		return notification.Notification{}, notification.ErrNotFound
	}
	n.IsRead = true
	return *n, nil
}

func (repo *notificationRepository) DeleteNotificationsByID(ctx context.Context, ids ...string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	for _, id := range ids {
		delete(repo.db.table, id)
	}
	return nil
}
