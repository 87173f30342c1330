package activity

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/mwalimu/darasa/core"
)

// Entry is an activity log row. The table intentionally serves two uses:
// attendance records carry Present, performance records carry Score.
type Entry struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Date      time.Time `json:"date"` // UTC, day precision
	Present   *bool     `json:"present,omitempty"`
	Score     *float64  `json:"score,omitempty"` // 0-100
	Note      string    `json:"note,omitempty"`
	CreatedAt time.Time `json:"created_at"` // UTC
}

func (e *Entry) IsAttendance() bool { return e.Present != nil }

// NewAttendance records a student's presence for a date.
type NewAttendance struct {
	UserID  string    `json:"user_id" validate:"required"`
	Date    time.Time `json:"date" validate:"required"`
	Present *bool     `json:"present" validate:"required"`
	Note    string    `json:"note"`
}

func (na *NewAttendance) Validate(validate *validator.Validate) error {
	na.UserID = core.CleanString(na.UserID)
	na.Note = core.CleanString(na.Note)
	return validate.Struct(na)
}

// QueryFilter selects entries. Fields are ANDed; zero values are skipped.
type QueryFilter struct {
	UserID         string
	UserIDs        []string
	From           time.Time
	To             time.Time
	AttendanceOnly bool
}
