package assignment

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/mwalimu/darasa/core"
	"github.com/mwalimu/darasa/core/classroom"
)

var (
	// errors
	ErrNotFound           = errors.New("assignment not found")
	ErrSubmissionNotFound = errors.New("submission not found")
	ErrFileNotFound       = errors.New("file not found")
	ErrAlreadySubmitted   = errors.New("assignment has already been submitted")
	ErrNotEnrolled        = errors.New("student is not enrolled in this classroom")
	ErrNotGradable        = errors.New("submission cannot be graded before it leaves pending")
)

type (
	Repository interface {
		// CreateAssignment inserts the assignment and one pending
		// StudentAssignment row per student, atomically.
		CreateAssignment(ctx context.Context, a Assignment, studentIDs []string) (Assignment, error)
		GetAssignmentByID(ctx context.Context, id string) (Assignment, error)
		QueryAssignments(ctx context.Context, filter *AssignmentFilter, ordering []core.DBOrdering) ([]Assignment, error)
		UpdateAssignment(ctx context.Context, a Assignment, isActive *bool) (Assignment, error)
		// DeleteAssignmentsByID cascades to StudentAssignment rows and their
		// file records; it returns the storage paths of removed files so the
		// caller can clean up the file store.
		DeleteAssignmentsByID(ctx context.Context, ids ...string) ([]string, error)

		GetStudentAssignmentByID(ctx context.Context, id string) (StudentAssignment, error)
		GetStudentAssignment(ctx context.Context, assignmentID, studentID string) (StudentAssignment, error)
		QueryStudentAssignments(ctx context.Context, filter *SubmissionFilter) ([]StudentAssignment, error)
		// SubmitStudentAssignment marks the row completed, records the
		// uploaded files and writes an activity log entry in one
		// all-or-nothing transaction.
		SubmitStudentAssignment(ctx context.Context, sub StudentAssignment, files []NewSubmissionFile) (StudentAssignment, []SubmissionFile, error)
		GradeStudentAssignment(ctx context.Context, sub StudentAssignment) (StudentAssignment, error)

		GetSubmissionFileByID(ctx context.Context, id string) (SubmissionFile, error)
		QuerySubmissionFiles(ctx context.Context, studentAssignmentID string) ([]SubmissionFile, error)
		DeleteSubmissionFilesByID(ctx context.Context, ids ...string) ([]string, error)
	}

	// Notifier is any service that can fan out an in-app notification.
	Notifier interface {
		NotifyAll(ctx context.Context, senderID string, receiverIDs []string, title, message string) error
	}

	// FileStore removes stored upload blobs once their records are gone.
	FileStore interface {
		Remove(storagePath string) error
	}

	Service interface {
		Create(ctx context.Context, room classroom.Classroom, creatorID string, na NewAssignment) (Assignment, error)
		GetByID(ctx context.Context, id string) (Assignment, error)
		Query(ctx context.Context, filter *AssignmentFilter, ordering []core.DBOrdering) ([]Assignment, error)
		Update(ctx context.Context, id string, ua UpdateAssignment) (Assignment, error)
		Delete(ctx context.Context, ids ...string) error

		Submissions(ctx context.Context, a Assignment) ([]StudentAssignment, error)
		GetSubmission(ctx context.Context, id string) (StudentAssignment, error)
		QuerySubmissions(ctx context.Context, filter *SubmissionFilter) ([]StudentAssignment, error)
		SubmissionForStudent(ctx context.Context, a Assignment, studentID string) (StudentAssignment, error)
		Submit(ctx context.Context, a Assignment, studentID string, data Submission, files []NewSubmissionFile) (StudentAssignment, error)
		Grade(ctx context.Context, sub StudentAssignment, data GradeSubmission) (StudentAssignment, error)
		Remind(ctx context.Context, a Assignment, senderID string) (int, error)

		GetFile(ctx context.Context, id string) (SubmissionFile, error)
		Files(ctx context.Context, studentAssignmentID string) ([]SubmissionFile, error)
		DeleteFile(ctx context.Context, id string) error
	}

	service struct {
		repo     Repository
		roomSvc  classroom.Service
		notifier Notifier
		files    FileStore
	}
)

// AssignmentFilter selects assignments. Fields are ANDed; zero values are skipped.
type AssignmentFilter struct {
	ClassroomID string
	CreatedBy   string
	StudentID   string
	IsActive    *bool
}

var _ Service = (*service)(nil)

func NewService(repo Repository, roomSvc classroom.Service, notifier Notifier, files FileStore) Service {
	return &service{
		repo:     repo,
		roomSvc:  roomSvc,
		notifier: notifier,
		files:    files,
	}
}

func (svc *service) Create(ctx context.Context, room classroom.Classroom, creatorID string, na NewAssignment) (Assignment, error) {
	studentIDs := na.StudentIDs
	if na.ClassWide {
		members, err := svc.roomSvc.Students(ctx, room.ID)
		if err != nil {
			return Assignment{}, errors.Wrap(err, "querying classroom students")
		}
		studentIDs = make([]string, 0, len(members))
		for _, m := range members {
			studentIDs = append(studentIDs, m.User.ID)
		}
	} else {
		// targeted assignments may only address enrolled students
		for _, id := range studentIDs {
			enrolled, err := svc.roomSvc.IsStudent(ctx, room.ID, id)
			if err != nil {
				return Assignment{}, errors.Wrap(err, "checking enrollment")
			}
			if !enrolled {
				return Assignment{}, core.NewValidationError(
					ErrNotEnrolled, core.FieldError{Field: "student_ids", Error: fmt.Sprintf("%s: %v", id, ErrNotEnrolled)})
			}
		}
	}

	now := time.Now().UTC()
	a := Assignment{
		ClassroomID: room.ID,
		Title:       na.Title,
		Description: na.Description,
		DueDate:     na.DueDate,
		ClassWide:   na.ClassWide,
		CreatedBy:   creatorID,
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	return svc.repo.CreateAssignment(ctx, a, studentIDs)
}

func (svc *service) GetByID(ctx context.Context, id string) (Assignment, error) {
	return svc.repo.GetAssignmentByID(ctx, id)
}

func (svc *service) Query(ctx context.Context, filter *AssignmentFilter, ordering []core.DBOrdering) ([]Assignment, error) {
	return svc.repo.QueryAssignments(ctx, filter, ordering)
}

func (svc *service) Update(ctx context.Context, id string, ua UpdateAssignment) (Assignment, error) {
	a := Assignment{
		ID:          id,
		Title:       ua.Title,
		Description: ua.Description,
		DueDate:     ua.DueDate,
		UpdatedAt:   time.Now().UTC(),
	}
	return svc.repo.UpdateAssignment(ctx, a, ua.IsActive)
}

func (svc *service) Delete(ctx context.Context, ids ...string) error {
	paths, err := svc.repo.DeleteAssignmentsByID(ctx, ids...)
	if err != nil {
		return err
	}
	svc.removeFiles(paths)
	return nil
}

func (svc *service) Submissions(ctx context.Context, a Assignment) ([]StudentAssignment, error) {
	subs, err := svc.repo.QueryStudentAssignments(ctx, &SubmissionFilter{AssignmentID: a.ID})
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	for i := range subs {
		subs[i].RefreshStatus(a, now)
	}
	return subs, nil
}

func (svc *service) QuerySubmissions(ctx context.Context, filter *SubmissionFilter) ([]StudentAssignment, error) {
	return svc.repo.QueryStudentAssignments(ctx, filter)
}

func (svc *service) GetSubmission(ctx context.Context, id string) (StudentAssignment, error) {
	sub, err := svc.repo.GetStudentAssignmentByID(ctx, id)
	if err != nil {
		return StudentAssignment{}, err
	}
	a, err := svc.repo.GetAssignmentByID(ctx, sub.AssignmentID)
	if err != nil {
		return StudentAssignment{}, err
	}
	sub.RefreshStatus(a, time.Now().UTC())
	return sub, nil
}

func (svc *service) SubmissionForStudent(ctx context.Context, a Assignment, studentID string) (StudentAssignment, error) {
	sub, err := svc.repo.GetStudentAssignment(ctx, a.ID, studentID)
	if err != nil {
		return StudentAssignment{}, err
	}
	sub.RefreshStatus(a, time.Now().UTC())
	return sub, nil
}

// Submit marks the student's row completed and records the uploaded files.
// A previously completed submission is rejected without mutating state.
func (svc *service) Submit(ctx context.Context, a Assignment, studentID string, data Submission, files []NewSubmissionFile) (StudentAssignment, error) {
	sub, err := svc.repo.GetStudentAssignment(ctx, a.ID, studentID)
	if err != nil {
		return StudentAssignment{}, err
	}
	if sub.IsCompleted() {
		return StudentAssignment{}, core.NewValidationError(ErrAlreadySubmitted)
	}

	now := time.Now().UTC()
	sub.Status = StatusCompleted
	sub.Content = data.Content
	sub.SubmittedAt = &now
	sub.UpdatedAt = now

	sub, _, err = svc.repo.SubmitStudentAssignment(ctx, sub, files)
	if err != nil {
		// the blobs are already on disk; do not leave orphans behind
		for _, f := range files {
			_ = svc.files.Remove(f.StoragePath)
		}
		return StudentAssignment{}, err
	}
	return sub, nil
}

func (svc *service) Grade(ctx context.Context, sub StudentAssignment, data GradeSubmission) (StudentAssignment, error) {
	a, err := svc.repo.GetAssignmentByID(ctx, sub.AssignmentID)
	if err != nil {
		return StudentAssignment{}, err
	}
	sub.RefreshStatus(a, time.Now().UTC())
	if sub.Status == StatusPending {
		return StudentAssignment{}, core.NewValidationError(ErrNotGradable)
	}

	sub.Grade = data.Grade
	sub.Feedback = data.Feedback
	sub.UpdatedAt = time.Now().UTC()
	return svc.repo.GradeStudentAssignment(ctx, sub)
}

// Remind creates one notification per student who has not yet submitted.
// It returns the number of students notified.
func (svc *service) Remind(ctx context.Context, a Assignment, senderID string) (int, error) {
	subs, err := svc.Submissions(ctx, a)
	if err != nil {
		return 0, err
	}

	receiverIDs := make([]string, 0, len(subs))
	for _, sub := range subs {
		if !sub.IsCompleted() {
			receiverIDs = append(receiverIDs, sub.StudentID)
		}
	}
	if len(receiverIDs) == 0 {
		return 0, nil
	}

	msg := fmt.Sprintf("The assignment %q is awaiting your submission.", a.Title)
	if a.DueDate != nil {
		msg = fmt.Sprintf("%s It is due on %s.", msg, a.DueDate.Format("Jan 2, 2006 15:04 MST"))
	}
	if err = svc.notifier.NotifyAll(ctx, senderID, receiverIDs, "Assignment reminder", msg); err != nil {
		return 0, errors.Wrap(err, "sending reminders")
	}
	return len(receiverIDs), nil
}

func (svc *service) GetFile(ctx context.Context, id string) (SubmissionFile, error) {
	return svc.repo.GetSubmissionFileByID(ctx, id)
}

func (svc *service) Files(ctx context.Context, studentAssignmentID string) ([]SubmissionFile, error) {
	return svc.repo.QuerySubmissionFiles(ctx, studentAssignmentID)
}

func (svc *service) DeleteFile(ctx context.Context, id string) error {
	paths, err := svc.repo.DeleteSubmissionFilesByID(ctx, id)
	if err != nil {
		return err
	}
	svc.removeFiles(paths)
	return nil
}

func (svc *service) removeFiles(paths []string) {
	for _, p := range paths {
		_ = svc.files.Remove(p)
	}
}
