package assignment

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/mwalimu/darasa/core"
)

// StudentAssignment statuses
const (
	StatusPending   = "pending"
	StatusCompleted = "completed"
	StatusOverdue   = "overdue"
)

type Assignment struct {
	ID          string     `json:"id"`
	ClassroomID string     `json:"classroom_id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	DueDate     *time.Time `json:"due_date"` // UTC; nil = no deadline
	ClassWide   bool       `json:"class_wide"`
	CreatedBy   string     `json:"created_by"`
	IsActive    bool       `json:"is_active"`
	CreatedAt   time.Time  `json:"created_at"` // UTC
	UpdatedAt   time.Time  `json:"updated_at"` // UTC
}

// PastDue reports whether the assignment deadline has passed at `now`.
func (a *Assignment) PastDue(now time.Time) bool {
	return a.DueDate != nil && now.After(*a.DueDate)
}

// StudentAssignment is the per-student submission/grade record:
// one row per (assignment, student) pair.
type StudentAssignment struct {
	ID           string     `json:"id"`
	AssignmentID string     `json:"assignment_id"`
	StudentID    string     `json:"student_id"`
	Status       string     `json:"status"`
	Grade        *float64   `json:"grade"` // 0-100; nil = not graded
	Feedback     string     `json:"feedback"`
	Content      string     `json:"content"`
	SubmittedAt  *time.Time `json:"submitted_at"` // UTC
	CreatedAt    time.Time  `json:"created_at"`   // UTC
	UpdatedAt    time.Time  `json:"updated_at"`   // UTC
}

// RefreshStatus computes the lazy overdue transition at read time:
// a pending row whose assignment deadline has passed reads as overdue.
func (sa *StudentAssignment) RefreshStatus(a Assignment, now time.Time) {
	if sa.Status == StatusPending && a.PastDue(now) {
		sa.Status = StatusOverdue
	}
}

func (sa *StudentAssignment) IsCompleted() bool { return sa.Status == StatusCompleted }
func (sa *StudentAssignment) IsGraded() bool    { return sa.Grade != nil }

// SubmissionFile is an uploaded file attached to a StudentAssignment.
type SubmissionFile struct {
	ID                  string    `json:"id"`
	StudentAssignmentID string    `json:"student_assignment_id"`
	FileName            string    `json:"file_name"` // original name, kept as metadata
	StoragePath         string    `json:"-"`
	Size                int64     `json:"size"`
	MimeType            string    `json:"mime_type"`
	CreatedAt           time.Time `json:"created_at"` // UTC
}

// NewAssignment contains information needed to create a new Assignment.
type NewAssignment struct {
	Title       string     `json:"title" validate:"required"`
	Description string     `json:"description"`
	DueDate     *time.Time `json:"due_date"`
	ClassWide   bool       `json:"class_wide"`
	// StudentIDs lists the targeted students; ignored for class-wide assignments.
	StudentIDs []string `json:"student_ids" validate:"required_unless=ClassWide true,omitempty,min=1"`
}

func (na *NewAssignment) Validate(validate *validator.Validate) error {
	na.Title = core.CleanString(na.Title)
	na.Description = core.CleanString(na.Description)
	return validate.Struct(na)
}

// UpdateAssignment defines what information may be provided to modify an existing Assignment.
type UpdateAssignment struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	DueDate     *time.Time `json:"due_date"`
	IsActive    *bool      `json:"is_active"`
}

func (ua *UpdateAssignment) Validate(validate *validator.Validate, orig Assignment) error {
	if title := core.CleanString(ua.Title); title != "" {
		ua.Title = title
	} else {
		ua.Title = orig.Title
	}
	if desc := core.CleanString(ua.Description); desc != "" {
		ua.Description = desc
	} else {
		ua.Description = orig.Description
	}
	if ua.DueDate == nil {
		ua.DueDate = orig.DueDate
	}
	return validate.Struct(ua)
}

// Submission carries a student's submission content. Files ride along
// in the multipart form and are validated separately.
type Submission struct {
	Content string `json:"content" validate:"required"`
}

func (s *Submission) Validate(validate *validator.Validate) error {
	s.Content = core.CleanString(s.Content)
	return validate.Struct(s)
}

// NewSubmissionFile describes an uploaded file already written to the
// file store, pending its database record.
type NewSubmissionFile struct {
	FileName    string
	StoragePath string
	Size        int64
	MimeType    string
}

// GradeSubmission carries a teacher's grade and feedback for a submission.
type GradeSubmission struct {
	Grade    *float64 `json:"grade" validate:"required,gte=0,lte=100"`
	Feedback string   `json:"feedback"`
}

func (gs *GradeSubmission) Validate(validate *validator.Validate) error {
	gs.Feedback = core.CleanString(gs.Feedback)
	return validate.Struct(gs)
}

// SubmissionFilter selects StudentAssignment rows.
// Fields are ANDed; zero values are skipped.
type SubmissionFilter struct {
	AssignmentID string
	StudentID    string
	ClassroomID  string
	Status       string
}
