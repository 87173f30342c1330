package activity

import (
	"context"
	"time"
)

type (
	Repository interface {
		CreateEntry(ctx context.Context, e Entry) (Entry, error)
		QueryEntries(ctx context.Context, filter *QueryFilter) ([]Entry, error)
	}

	Service interface {
		RecordAttendance(ctx context.Context, na NewAttendance) (Entry, error)
		RecordScore(ctx context.Context, userID string, score float64, note string) (Entry, error)
		Query(ctx context.Context, filter *QueryFilter) ([]Entry, error)
	}

	service struct {
		repo Repository
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func (svc *service) RecordAttendance(ctx context.Context, na NewAttendance) (Entry, error) {
	return svc.repo.CreateEntry(ctx, Entry{
		UserID:    na.UserID,
		Date:      na.Date.UTC().Truncate(24 * time.Hour),
		Present:   na.Present,
		Note:      na.Note,
		CreatedAt: time.Now().UTC(),
	})
}

func (svc *service) RecordScore(ctx context.Context, userID string, score float64, note string) (Entry, error) {
	now := time.Now().UTC()
	return svc.repo.CreateEntry(ctx, Entry{
		UserID:    userID,
		Date:      now.Truncate(24 * time.Hour),
		Score:     &score,
		Note:      note,
		CreatedAt: now,
	})
}

func (svc *service) Query(ctx context.Context, filter *QueryFilter) ([]Entry, error) {
	return svc.repo.QueryEntries(ctx, filter)
}
