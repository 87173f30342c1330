package notification

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/mwalimu/darasa/core"
)

var ErrNotFound = errors.New("notification not found")

type (
	Repository interface {
		CreateNotifications(ctx context.Context, notifs ...Notification) error
		GetNotificationByID(ctx context.Context, id string) (Notification, error)
		QueryNotifications(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Notification, error)
		MarkNotificationRead(ctx context.Context, id string) (Notification, error)
		DeleteNotificationsByID(ctx context.Context, ids ...string) error
	}

	Service interface {
		Notify(ctx context.Context, senderID, receiverID, title, message string) error
		NotifyAll(ctx context.Context, senderID string, receiverIDs []string, title, message string) error
		GetByID(ctx context.Context, id string) (Notification, error)
		QueryForReceiver(ctx context.Context, receiverID string, unreadOnly bool) ([]Notification, error)
		MarkRead(ctx context.Context, id string) (Notification, error)
		Delete(ctx context.Context, ids ...string) error
	}

	service struct {
		repo Repository
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func (svc *service) Notify(ctx context.Context, senderID, receiverID, title, message string) error {
	return svc.NotifyAll(ctx, senderID, []string{receiverID}, title, message)
}

// NotifyAll writes one notification row per receiver. A single write,
// no retry; failure surfaces to the triggering request.
func (svc *service) NotifyAll(ctx context.Context, senderID string, receiverIDs []string, title, message string) error {
	if len(receiverIDs) == 0 {
		return nil
	}
	now := time.Now().UTC()
	notifs := make([]Notification, 0, len(receiverIDs))
	for _, rid := range receiverIDs {
		notifs = append(notifs, Notification{
			SenderID:   senderID,
			ReceiverID: rid,
			Title:      title,
			Message:    message,
			CreatedAt:  now,
		})
	}
	return svc.repo.CreateNotifications(ctx, notifs...)
}

func (svc *service) GetByID(ctx context.Context, id string) (Notification, error) {
	return svc.repo.GetNotificationByID(ctx, id)
}

func (svc *service) QueryForReceiver(ctx context.Context, receiverID string, unreadOnly bool) ([]Notification, error) {
	filter := &QueryFilter{ReceiverID: receiverID}
	if unreadOnly {
		f := false
		filter.IsRead = &f
	}
	ordering := []core.DBOrdering{{Field: "created_at", Ascending: false}}
	return svc.repo.QueryNotifications(ctx, filter, ordering)
}

func (svc *service) MarkRead(ctx context.Context, id string) (Notification, error) {
	return svc.repo.MarkNotificationRead(ctx, id)
}

func (svc *service) Delete(ctx context.Context, ids ...string) error {
	return svc.repo.DeleteNotificationsByID(ctx, ids...)
}
