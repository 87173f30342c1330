package dummydb

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/mwalimu/darasa/core/activity"
)

type activityRepository struct {
	db *activityTable
}

var _ activity.Repository = (*activityRepository)(nil) // interface compliance check

func NewActivityRepository(db *DB) *activityRepository {
	return &activityRepository{db: db.activity}
}

func (repo *activityRepository) CreateEntry(ctx context.Context, e activity.Entry) (activity.Entry, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	e.ID = uuid.New().String()
	e.Date = e.Date.UTC().Truncate(24 * time.Hour)
	repo.db.table[e.ID] = &e
	return e, nil
}

func (repo *activityRepository) QueryEntries(ctx context.Context, filter *activity.QueryFilter) ([]activity.Entry, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	inIDs := func(id string, ids []string) bool {
		for _, v := range ids {
			if v == id {
				return true
			}
		}
		return false
	}

	var entries []activity.Entry
	for _, e := range repo.db.table {
		if filter != nil {
			if filter.UserID != "" && e.UserID != filter.UserID {
				continue
			}
			if len(filter.UserIDs) > 0 && !inIDs(e.UserID, filter.UserIDs) {
				continue
			}
			if !filter.From.IsZero() && e.Date.Before(filter.From) {
				continue
			}
			if !filter.To.IsZero() && e.Date.After(filter.To) {
				continue
			}
			if filter.AttendanceOnly && !e.IsAttendance() {
				continue
			}
		}
		entries = append(entries, *e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Date.After(entries[j].Date) })
	return entries, nil
}
