// Package dummydb is an in-memory database engine used by tests.
package dummydb

import (
	"sync"
	"time"

	"github.com/mwalimu/darasa/core/activity"
	"github.com/mwalimu/darasa/core/assignment"
	"github.com/mwalimu/darasa/core/classroom"
	"github.com/mwalimu/darasa/core/notification"
	"github.com/mwalimu/darasa/core/user"
)

type (
	DB struct {
		user         *userTable
		classroom    *classroomTable
		assignment   *assignmentTable
		notification *notificationTable
		activity     *activityTable
	}

	userTable struct {
		sync.RWMutex
		table map[string]*user.User
	}

	membership struct {
		classroomID string
		userID      string
		role        classroom.MemberRole
		assignedAt  time.Time
	}

	classroomTable struct {
		sync.RWMutex
		table   map[string]*classroom.Classroom
		members []membership
	}

	assignmentTable struct {
		sync.RWMutex
		table map[string]*assignment.Assignment
		subs  map[string]*assignment.StudentAssignment
		files map[string]*assignment.SubmissionFile
	}

	notificationTable struct {
		sync.RWMutex
		table map[string]*notification.Notification
	}

	activityTable struct {
		sync.RWMutex
		table map[string]*activity.Entry
	}
)

func Open() (*DB, error) {
	db := &DB{
		user:      &userTable{table: make(map[string]*user.User)},
		classroom: &classroomTable{table: make(map[string]*classroom.Classroom)},
		assignment: &assignmentTable{
			table: make(map[string]*assignment.Assignment),
			subs:  make(map[string]*assignment.StudentAssignment),
			files: make(map[string]*assignment.SubmissionFile),
		},
		notification: &notificationTable{table: make(map[string]*notification.Notification)},
		activity:     &activityTable{table: make(map[string]*activity.Entry)},
	}
	return db, nil
}
