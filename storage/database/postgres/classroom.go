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
	"github.com/mwalimu/darasa/core/classroom"
)

type classroomRow struct {
	ID          string    `db:"id"`
	Name        string    `db:"name"`
	Description string    `db:"description"`
	CreatedBy   string    `db:"created_by"`
	IsActive    bool      `db:"is_active"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

type memberRow struct {
	userRow
	AssignedAt time.Time `db:"assigned_at"`
}

type classroomRepository struct {
	db *sqlx.DB
}

var _ classroom.Repository = (*classroomRepository)(nil) // interface compliance check

func NewClassroomRepository(db *sqlx.DB) *classroomRepository {
	return &classroomRepository{db: db}
}

// memberTable resolves the join table for a membership role.
func memberTable(role classroom.MemberRole) string {
	if role == classroom.MemberTeacher {
		return "classroom_teacher"
	}
	return "classroom_student"
}

func (repo classroomRepository) row(room classroom.Classroom) classroomRow {
	return classroomRow{
		ID:          room.ID,
		Name:        room.Name,
		Description: room.Description,
		CreatedBy:   room.CreatedBy,
		IsActive:    room.IsActive,
		CreatedAt:   room.CreatedAt.UTC(),
		UpdatedAt:   room.UpdatedAt.UTC(),
	}
}

func (repo classroomRepository) unrow(r classroomRow) classroom.Classroom {
	return classroom.Classroom{
		ID:          r.ID,
		Name:        r.Name,
		Description: r.Description,
		CreatedBy:   r.CreatedBy,
		IsActive:    r.IsActive,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

// trapNoRowsErr maps psql "no rows" err to classroom.ErrNotFound
func (repo classroomRepository) trapNoRowsErr(err error, msg string) error {
	if err == sql.ErrNoRows {
		return classroom.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

func (repo classroomRepository) CreateClassroom(ctx context.Context, room classroom.Classroom) (classroom.Classroom, error) {
	room.ID = uuid.New().String()
	r := repo.row(room)
	q := `
	INSERT INTO classroom (id, name, description, created_by, is_active, created_at, updated_at)
	VALUES (:id, :name, :description, :created_by, :is_active, :created_at, :updated_at)`
	if _, err := repo.db.NamedExecContext(ctx, q, r); err != nil {
		return classroom.Classroom{}, errors.Wrap(err, "inserting classroom")
	}
	return repo.unrow(r), nil
}

func (repo classroomRepository) GetClassroomByID(ctx context.Context, id string) (classroom.Classroom, error) {
	var r classroomRow
	if err := repo.db.GetContext(ctx, &r, `SELECT * FROM classroom WHERE id = $1`, id); err != nil {
		return classroom.Classroom{}, repo.trapNoRowsErr(err, "getting classroom by id")
	}
	return repo.unrow(r), nil
}

func (repo classroomRepository) QueryClassrooms(ctx context.Context, filter *classroom.QueryFilter, ordering []core.DBOrdering) ([]classroom.Classroom, error) {
	q := `SELECT c.* FROM classroom c`
	var where []string
	var args []interface{}

	if filter != nil {
		if filter.TeacherID != "" {
			args = append(args, filter.TeacherID)
			q += ` JOIN classroom_teacher ct ON ct.classroom_id = c.id AND ct.user_id = $` + strconv.Itoa(len(args))
		}
		if filter.StudentID != "" {
			args = append(args, filter.StudentID)
			q += ` JOIN classroom_student cs ON cs.classroom_id = c.id AND cs.user_id = $` + strconv.Itoa(len(args))
		}
		if filter.Search != "" {
			args = append(args, "%"+filter.Search+"%")
			where = append(where, `c.name ILIKE $`+strconv.Itoa(len(args)))
		}
		if filter.IsActive != nil {
			args = append(args, *filter.IsActive)
			where = append(where, `c.is_active = $`+strconv.Itoa(len(args)))
		}
		if filter.CreatorID != "" {
			args = append(args, filter.CreatorID)
			where = append(where, `c.created_by = $`+strconv.Itoa(len(args)))
		}
	}

	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	q += orderBy(ordering, "c", "c.created_at DESC")

	var rows []classroomRow
	if err := repo.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying classrooms")
	}
	rooms := make([]classroom.Classroom, 0, len(rows))
	for _, r := range rows {
		rooms = append(rooms, repo.unrow(r))
	}
	return rooms, nil
}

func (repo classroomRepository) UpdateClassroom(ctx context.Context, room classroom.Classroom, isActive *bool) (classroom.Classroom, error) {
	room.UpdatedAt = time.Now().UTC()

	// only set provided fields; creator and the active flag keep their
	// stored values unless explicitly changed
	sets := []string{"name = :name", "description = :description", "updated_at = :updated_at"}
	if isActive != nil {
		room.IsActive = *isActive
		sets = append(sets, "is_active = :is_active")
	}

	q := `UPDATE classroom SET ` + strings.Join(sets, ", ") + ` WHERE id = :id`
	res, err := repo.db.NamedExecContext(ctx, q, repo.row(room))
	if err != nil {
		return classroom.Classroom{}, errors.Wrap(err, "updating classroom")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return classroom.Classroom{}, classroom.ErrNotFound
	}
	return repo.GetClassroomByID(ctx, room.ID)
}

func (repo classroomRepository) DeleteClassroomsByID(ctx context.Context, ids ...string) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	var paths []string
	err := repo.inTx(ctx, func(tx *sqlx.Tx) error {
		// memberships, assignments and submissions go with the FK cascade,
		// but the blobs on disk need their paths collected first
		q, args, err := sqlx.In(`
		SELECT f.storage_path
		FROM submission_file f
		JOIN student_assignment sa ON sa.id = f.student_assignment_id
		JOIN assignment a ON a.id = sa.assignment_id
		WHERE a.classroom_id IN (?)`, ids)
		if err != nil {
			return errors.Wrap(err, "building file path query")
		}
		if err = tx.SelectContext(ctx, &paths, tx.Rebind(q), args...); err != nil {
			return errors.Wrap(err, "collecting file paths")
		}

		q, args, err = sqlx.In(`DELETE FROM classroom WHERE id IN (?)`, ids)
		if err != nil {
			return errors.Wrap(err, "building delete query")
		}
		if _, err = tx.ExecContext(ctx, tx.Rebind(q), args...); err != nil {
			return errors.Wrap(err, "deleting classrooms")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return paths, nil
}

// inTx runs fn in a transaction, rolling back on error.
func (repo classroomRepository) inTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
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

func (repo classroomRepository) AddMember(ctx context.Context, classroomID, userID string, role classroom.MemberRole, assignedAt time.Time) error {
	q := `INSERT INTO ` + memberTable(role) + ` (classroom_id, user_id, assigned_at) VALUES ($1, $2, $3)`
	if _, err := repo.db.ExecContext(ctx, q, classroomID, userID, assignedAt.UTC()); err != nil {
		if isUniqueViolation(err) {
			return classroom.ErrAlreadyMember
		}
		return errors.Wrap(err, "adding member")
	}
	return nil
}

func (repo classroomRepository) RemoveMember(ctx context.Context, classroomID, userID string, role classroom.MemberRole) error {
	q := `DELETE FROM ` + memberTable(role) + ` WHERE classroom_id = $1 AND user_id = $2`
	res, err := repo.db.ExecContext(ctx, q, classroomID, userID)
	if err != nil {
		return errors.Wrap(err, "removing member")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return classroom.ErrNotMember
	}
	return nil
}

func (repo classroomRepository) QueryMembers(ctx context.Context, classroomID string, role classroom.MemberRole) ([]classroom.Member, error) {
	q := `
	SELECT u.*, m.assigned_at
	FROM ` + memberTable(role) + ` m
	JOIN "user" u ON u.id = m.user_id
	WHERE m.classroom_id = $1
	ORDER BY m.assigned_at`
	var rows []memberRow
	if err := repo.db.SelectContext(ctx, &rows, q, classroomID); err != nil {
		return nil, errors.Wrap(err, "querying members")
	}

	usrRepo := userRepository{db: repo.db}
	members := make([]classroom.Member, 0, len(rows))
	for _, r := range rows {
		members = append(members, classroom.Member{
			User:       usrRepo.unrow(r.userRow),
			AssignedAt: r.AssignedAt,
		})
	}
	return members, nil
}

func (repo classroomRepository) IsMember(ctx context.Context, classroomID, userID string, role classroom.MemberRole) (bool, error) {
	q := `SELECT EXISTS (SELECT 1 FROM ` + memberTable(role) + ` WHERE classroom_id = $1 AND user_id = $2)`
	var exists bool
	if err := repo.db.GetContext(ctx, &exists, q, classroomID, userID); err != nil {
		return false, errors.Wrap(err, "checking membership")
	}
	return exists, nil
}
