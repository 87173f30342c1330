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
	"github.com/volatiletech/null/v8"

	"github.com/mwalimu/darasa/core"
	"github.com/mwalimu/darasa/core/assignment"
)

type assignmentRow struct {
	ID          string    `db:"id"`
	ClassroomID string    `db:"classroom_id"`
	Title       string    `db:"title"`
	Description string    `db:"description"`
	DueDate     null.Time `db:"due_date"`
	ClassWide   bool      `db:"class_wide"`
	CreatedBy   string    `db:"created_by"`
	IsActive    bool      `db:"is_active"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

type studentAssignmentRow struct {
	ID           string       `db:"id"`
	AssignmentID string       `db:"assignment_id"`
	StudentID    string       `db:"student_id"`
	Status       string       `db:"status"`
	Grade        null.Float64 `db:"grade"`
	Feedback     string       `db:"feedback"`
	Content      string       `db:"content"`
	SubmittedAt  null.Time    `db:"submitted_at"`
	CreatedAt    time.Time    `db:"created_at"`
	UpdatedAt    time.Time    `db:"updated_at"`
}

type submissionFileRow struct {
	ID                  string    `db:"id"`
	StudentAssignmentID string    `db:"student_assignment_id"`
	FileName            string    `db:"file_name"`
	StoragePath         string    `db:"storage_path"`
	Size                int64     `db:"size"`
	MimeType            string    `db:"mime_type"`
	CreatedAt           time.Time `db:"created_at"`
}

type assignmentRepository struct {
	db *sqlx.DB
}

var _ assignment.Repository = (*assignmentRepository)(nil) // interface compliance check

func NewAssignmentRepository(db *sqlx.DB) *assignmentRepository {
	return &assignmentRepository{db: db}
}

func (repo assignmentRepository) row(a assignment.Assignment) assignmentRow {
	r := assignmentRow{
		ID:          a.ID,
		ClassroomID: a.ClassroomID,
		Title:       a.Title,
		Description: a.Description,
		ClassWide:   a.ClassWide,
		CreatedBy:   a.CreatedBy,
		IsActive:    a.IsActive,
		CreatedAt:   a.CreatedAt.UTC(),
		UpdatedAt:   a.UpdatedAt.UTC(),
	}
	if a.DueDate != nil {
		r.DueDate = null.TimeFrom(a.DueDate.UTC())
	}
	return r
}

func (repo assignmentRepository) unrow(r assignmentRow) assignment.Assignment {
	return assignment.Assignment{
		ID:          r.ID,
		ClassroomID: r.ClassroomID,
		Title:       r.Title,
		Description: r.Description,
		DueDate:     r.DueDate.Ptr(),
		ClassWide:   r.ClassWide,
		CreatedBy:   r.CreatedBy,
		IsActive:    r.IsActive,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

func (repo assignmentRepository) subRow(sub assignment.StudentAssignment) studentAssignmentRow {
	r := studentAssignmentRow{
		ID:           sub.ID,
		AssignmentID: sub.AssignmentID,
		StudentID:    sub.StudentID,
		Status:       sub.Status,
		Grade:        null.Float64FromPtr(sub.Grade),
		Feedback:     sub.Feedback,
		Content:      sub.Content,
		CreatedAt:    sub.CreatedAt.UTC(),
		UpdatedAt:    sub.UpdatedAt.UTC(),
	}
	if sub.SubmittedAt != nil {
		r.SubmittedAt = null.TimeFrom(sub.SubmittedAt.UTC())
	}
	return r
}

func (repo assignmentRepository) unrowSub(r studentAssignmentRow) assignment.StudentAssignment {
	return assignment.StudentAssignment{
		ID:           r.ID,
		AssignmentID: r.AssignmentID,
		StudentID:    r.StudentID,
		Status:       r.Status,
		Grade:        r.Grade.Ptr(),
		Feedback:     r.Feedback,
		Content:      r.Content,
		SubmittedAt:  r.SubmittedAt.Ptr(),
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

func (repo assignmentRepository) unrowFile(r submissionFileRow) assignment.SubmissionFile {
	return assignment.SubmissionFile{
		ID:                  r.ID,
		StudentAssignmentID: r.StudentAssignmentID,
		FileName:            r.FileName,
		StoragePath:         r.StoragePath,
		Size:                r.Size,
		MimeType:            r.MimeType,
		CreatedAt:           r.CreatedAt,
	}
}

// inTx runs fn in a transaction, rolling back on error.
func (repo assignmentRepository) inTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}
	if err = fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return errors.Wrap(tx.Commit(), "committing transaction")
}

func (repo assignmentRepository) CreateAssignment(ctx context.Context, a assignment.Assignment, studentIDs []string) (assignment.Assignment, error) {
	a.ID = uuid.New().String()
	r := repo.row(a)

	err := repo.inTx(ctx, func(tx *sqlx.Tx) error {
		q := `
		INSERT INTO assignment (id, classroom_id, title, description, due_date, class_wide, created_by, is_active, created_at, updated_at)
		VALUES (:id, :classroom_id, :title, :description, :due_date, :class_wide, :created_by, :is_active, :created_at, :updated_at)`
		if _, err := tx.NamedExecContext(ctx, q, r); err != nil {
			return errors.Wrap(err, "inserting assignment")
		}

		subQ := `
		INSERT INTO student_assignment (id, assignment_id, student_id, status, feedback, content, created_at, updated_at)
		VALUES (:id, :assignment_id, :student_id, :status, :feedback, :content, :created_at, :updated_at)`
		for _, studentID := range studentIDs {
			sub := studentAssignmentRow{
				ID:           uuid.New().String(),
				AssignmentID: a.ID,
				StudentID:    studentID,
				Status:       assignment.StatusPending,
				CreatedAt:    r.CreatedAt,
				UpdatedAt:    r.UpdatedAt,
			}
			if _, err := tx.NamedExecContext(ctx, subQ, sub); err != nil {
				return errors.Wrap(err, "inserting student assignment")
			}
		}
		return nil
	})
	if err != nil {
		return assignment.Assignment{}, err
	}
	return repo.unrow(r), nil
}

func (repo assignmentRepository) GetAssignmentByID(ctx context.Context, id string) (assignment.Assignment, error) {
	var r assignmentRow
	if err := repo.db.GetContext(ctx, &r, `SELECT * FROM assignment WHERE id = $1`, id); err != nil {
		if err == sql.ErrNoRows {
			return assignment.Assignment{}, assignment.ErrNotFound
		}
		return assignment.Assignment{}, errors.Wrap(err, "getting assignment by id")
	}
	return repo.unrow(r), nil
}

func (repo assignmentRepository) QueryAssignments(ctx context.Context, filter *assignment.AssignmentFilter, ordering []core.DBOrdering) ([]assignment.Assignment, error) {
	q := `SELECT a.* FROM assignment a`
	var where []string
	var args []interface{}

	if filter != nil {
		if filter.StudentID != "" {
			args = append(args, filter.StudentID)
			q += ` JOIN student_assignment sa ON sa.assignment_id = a.id AND sa.student_id = $` + strconv.Itoa(len(args))
		}
		if filter.ClassroomID != "" {
			args = append(args, filter.ClassroomID)
			where = append(where, `a.classroom_id = $`+strconv.Itoa(len(args)))
		}
		if filter.CreatedBy != "" {
			args = append(args, filter.CreatedBy)
			where = append(where, `a.created_by = $`+strconv.Itoa(len(args)))
		}
		if filter.IsActive != nil {
			args = append(args, *filter.IsActive)
			where = append(where, `a.is_active = $`+strconv.Itoa(len(args)))
		}
	}

	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	q += orderBy(ordering, "a", "a.created_at DESC")

	var rows []assignmentRow
	if err := repo.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying assignments")
	}
	assignments := make([]assignment.Assignment, 0, len(rows))
	for _, r := range rows {
		assignments = append(assignments, repo.unrow(r))
	}
	return assignments, nil
}

func (repo assignmentRepository) UpdateAssignment(ctx context.Context, a assignment.Assignment, isActive *bool) (assignment.Assignment, error) {
	a.UpdatedAt = time.Now().UTC()

	// only set provided fields; classroom, creator and the class-wide
	// flag keep their stored values
	sets := []string{"title = :title", "description = :description", "due_date = :due_date", "updated_at = :updated_at"}
	if isActive != nil {
		a.IsActive = *isActive
		sets = append(sets, "is_active = :is_active")
	}

	q := `UPDATE assignment SET ` + strings.Join(sets, ", ") + ` WHERE id = :id`
	res, err := repo.db.NamedExecContext(ctx, q, repo.row(a))
	if err != nil {
		return assignment.Assignment{}, errors.Wrap(err, "updating assignment")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return assignment.Assignment{}, assignment.ErrNotFound
	}
	return repo.GetAssignmentByID(ctx, a.ID)
}

func (repo assignmentRepository) DeleteAssignmentsByID(ctx context.Context, ids ...string) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	var paths []string
	err := repo.inTx(ctx, func(tx *sqlx.Tx) error {
		q, args, err := sqlx.In(`
		SELECT f.storage_path
		FROM submission_file f
		JOIN student_assignment sa ON sa.id = f.student_assignment_id
		WHERE sa.assignment_id IN (?)`, ids)
		if err != nil {
			return errors.Wrap(err, "building file path query")
		}
		if err = tx.SelectContext(ctx, &paths, tx.Rebind(q), args...); err != nil {
			return errors.Wrap(err, "collecting file paths")
		}

		q, args, err = sqlx.In(`DELETE FROM assignment WHERE id IN (?)`, ids)
		if err != nil {
			return errors.Wrap(err, "building delete query")
		}
		if _, err = tx.ExecContext(ctx, tx.Rebind(q), args...); err != nil {
			return errors.Wrap(err, "deleting assignments")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return paths, nil
}

func (repo assignmentRepository) GetStudentAssignmentByID(ctx context.Context, id string) (assignment.StudentAssignment, error) {
	var r studentAssignmentRow
	if err := repo.db.GetContext(ctx, &r, `SELECT * FROM student_assignment WHERE id = $1`, id); err != nil {
		if err == sql.ErrNoRows {
			return assignment.StudentAssignment{}, assignment.ErrSubmissionNotFound
		}
		return assignment.StudentAssignment{}, errors.Wrap(err, "getting student assignment by id")
	}
	return repo.unrowSub(r), nil
}

func (repo assignmentRepository) GetStudentAssignment(ctx context.Context, assignmentID, studentID string) (assignment.StudentAssignment, error) {
	var r studentAssignmentRow
	q := `SELECT * FROM student_assignment WHERE assignment_id = $1 AND student_id = $2`
	if err := repo.db.GetContext(ctx, &r, q, assignmentID, studentID); err != nil {
		if err == sql.ErrNoRows {
			return assignment.StudentAssignment{}, assignment.ErrSubmissionNotFound
		}
		return assignment.StudentAssignment{}, errors.Wrap(err, "getting student assignment")
	}
	return repo.unrowSub(r), nil
}

func (repo assignmentRepository) QueryStudentAssignments(ctx context.Context, filter *assignment.SubmissionFilter) ([]assignment.StudentAssignment, error) {
	q := `SELECT sa.* FROM student_assignment sa`
	var where []string
	var args []interface{}

	if filter != nil {
		if filter.ClassroomID != "" {
			args = append(args, filter.ClassroomID)
			q += ` JOIN assignment a ON a.id = sa.assignment_id AND a.classroom_id = $` + strconv.Itoa(len(args))
		}
		if filter.AssignmentID != "" {
			args = append(args, filter.AssignmentID)
			where = append(where, `sa.assignment_id = $`+strconv.Itoa(len(args)))
		}
		if filter.StudentID != "" {
			args = append(args, filter.StudentID)
			where = append(where, `sa.student_id = $`+strconv.Itoa(len(args)))
		}
		if filter.Status != "" {
			args = append(args, filter.Status)
			where = append(where, `sa.status = $`+strconv.Itoa(len(args)))
		}
	}

	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	q += ` ORDER BY sa.created_at`

	var rows []studentAssignmentRow
	if err := repo.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying student assignments")
	}
	subs := make([]assignment.StudentAssignment, 0, len(rows))
	for _, r := range rows {
		subs = append(subs, repo.unrowSub(r))
	}
	return subs, nil
}

func (repo assignmentRepository) SubmitStudentAssignment(ctx context.Context, sub assignment.StudentAssignment, files []assignment.NewSubmissionFile) (assignment.StudentAssignment, []assignment.SubmissionFile, error) {
	sub.UpdatedAt = time.Now().UTC()
	r := repo.subRow(sub)

	fileRows := make([]submissionFileRow, 0, len(files))
	err := repo.inTx(ctx, func(tx *sqlx.Tx) error {
		q := `
		UPDATE student_assignment
		SET status = :status, content = :content, submitted_at = :submitted_at, updated_at = :updated_at
		WHERE id = :id`
		res, err := tx.NamedExecContext(ctx, q, r)
		if err != nil {
			return errors.Wrap(err, "updating student assignment")
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return assignment.ErrSubmissionNotFound
		}

		fileQ := `
		INSERT INTO submission_file (id, student_assignment_id, file_name, storage_path, size, mime_type, created_at)
		VALUES (:id, :student_assignment_id, :file_name, :storage_path, :size, :mime_type, :created_at)`
		for _, f := range files {
			fr := submissionFileRow{
				ID:                  uuid.New().String(),
				StudentAssignmentID: sub.ID,
				FileName:            f.FileName,
				StoragePath:         f.StoragePath,
				Size:                f.Size,
				MimeType:            f.MimeType,
				CreatedAt:           r.UpdatedAt,
			}
			if _, err = tx.NamedExecContext(ctx, fileQ, fr); err != nil {
				return errors.Wrap(err, "inserting submission file")
			}
			fileRows = append(fileRows, fr)
		}

		logQ := `
		INSERT INTO activity_log (id, user_id, date, score, note, created_at)
		VALUES ($1, $2, $3, NULL, $4, $5)`
		note := "submitted assignment " + sub.AssignmentID
		_, err = tx.ExecContext(ctx, logQ, uuid.New().String(), sub.StudentID, r.UpdatedAt.Truncate(24*time.Hour), note, r.UpdatedAt)
		return errors.Wrap(err, "logging submission activity")
	})
	if err != nil {
		return assignment.StudentAssignment{}, nil, err
	}

	saved := make([]assignment.SubmissionFile, 0, len(fileRows))
	for _, fr := range fileRows {
		saved = append(saved, repo.unrowFile(fr))
	}
	return sub, saved, nil
}

func (repo assignmentRepository) GradeStudentAssignment(ctx context.Context, sub assignment.StudentAssignment) (assignment.StudentAssignment, error) {
	sub.UpdatedAt = time.Now().UTC()
	r := repo.subRow(sub)
	q := `
	UPDATE student_assignment
	SET grade = :grade, feedback = :feedback, updated_at = :updated_at
	WHERE id = :id`
	res, err := repo.db.NamedExecContext(ctx, q, r)
	if err != nil {
		return assignment.StudentAssignment{}, errors.Wrap(err, "grading student assignment")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return assignment.StudentAssignment{}, assignment.ErrSubmissionNotFound
	}
	return sub, nil
}

func (repo assignmentRepository) GetSubmissionFileByID(ctx context.Context, id string) (assignment.SubmissionFile, error) {
	var r submissionFileRow
	if err := repo.db.GetContext(ctx, &r, `SELECT * FROM submission_file WHERE id = $1`, id); err != nil {
		if err == sql.ErrNoRows {
			return assignment.SubmissionFile{}, assignment.ErrFileNotFound
		}
		return assignment.SubmissionFile{}, errors.Wrap(err, "getting submission file by id")
	}
	return repo.unrowFile(r), nil
}

func (repo assignmentRepository) QuerySubmissionFiles(ctx context.Context, studentAssignmentID string) ([]assignment.SubmissionFile, error) {
	var rows []submissionFileRow
	q := `SELECT * FROM submission_file WHERE student_assignment_id = $1 ORDER BY created_at`
	if err := repo.db.SelectContext(ctx, &rows, q, studentAssignmentID); err != nil {
		return nil, errors.Wrap(err, "querying submission files")
	}
	files := make([]assignment.SubmissionFile, 0, len(rows))
	for _, r := range rows {
		files = append(files, repo.unrowFile(r))
	}
	return files, nil
}

func (repo assignmentRepository) DeleteSubmissionFilesByID(ctx context.Context, ids ...string) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	q, args, err := sqlx.In(`DELETE FROM submission_file WHERE id IN (?) RETURNING storage_path`, ids)
	if err != nil {
		return nil, errors.Wrap(err, "building delete query")
	}
	var paths []string
	if err = repo.db.SelectContext(ctx, &paths, repo.db.Rebind(q), args...); err != nil {
		return nil, errors.Wrap(err, "deleting submission files")
	}
	return paths, nil
}
