package classroom

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/mwalimu/darasa/core"
)

var (
	// errors
	ErrNotFound      = errors.New("classroom not found")
	ErrAlreadyMember = errors.New("user is already a member of this classroom")
	ErrNotMember     = errors.New("user is not a member of this classroom")
)

type (
	Repository interface {
		CreateClassroom(ctx context.Context, room Classroom) (Classroom, error)
		GetClassroomByID(ctx context.Context, id string) (Classroom, error)
		// QueryClassrooms applies AND operation on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on Classroom.Name.
		QueryClassrooms(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Classroom, error)
		UpdateClassroom(ctx context.Context, room Classroom, isActive *bool) (Classroom, error)
		// DeleteClassroomsByID also deletes membership rows and cascades to
		// the classrooms' assignments, submissions and file records; it
		// returns the storage paths of removed files so the caller can clean
		// up the file store.
		DeleteClassroomsByID(ctx context.Context, ids ...string) ([]string, error)

		AddMember(ctx context.Context, classroomID, userID string, role MemberRole, assignedAt time.Time) error
		RemoveMember(ctx context.Context, classroomID, userID string, role MemberRole) error
		QueryMembers(ctx context.Context, classroomID string, role MemberRole) ([]Member, error)
		IsMember(ctx context.Context, classroomID, userID string, role MemberRole) (bool, error)
	}

	Service interface {
		Create(ctx context.Context, creatorID string, nc NewClassroom) (Classroom, error)
		GetByID(ctx context.Context, id string) (Classroom, error)
		Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Classroom, error)
		Update(ctx context.Context, id string, uc UpdateClassroom) (Classroom, error)
		Delete(ctx context.Context, ids ...string) error

		AddTeacher(ctx context.Context, classroomID, userID string) error
		RemoveTeacher(ctx context.Context, classroomID, userID string) error
		AddStudent(ctx context.Context, classroomID, userID string) error
		RemoveStudent(ctx context.Context, classroomID, userID string) error
		Teachers(ctx context.Context, classroomID string) ([]Member, error)
		Students(ctx context.Context, classroomID string) ([]Member, error)
		IsTeacher(ctx context.Context, classroomID, userID string) (bool, error)
		IsStudent(ctx context.Context, classroomID, userID string) (bool, error)
	}

	// FileStore removes stored upload blobs once their records are gone.
	FileStore interface {
		Remove(storagePath string) error
	}

	service struct {
		repo  Repository
		files FileStore
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, files FileStore) Service {
	return &service{repo: repo, files: files}
}

func (svc *service) Create(ctx context.Context, creatorID string, nc NewClassroom) (Classroom, error) {
	now := time.Now().UTC()
	room := Classroom{
		Name:        nc.Name,
		Description: nc.Description,
		CreatedBy:   creatorID,
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	return svc.repo.CreateClassroom(ctx, room)
}

func (svc *service) GetByID(ctx context.Context, id string) (Classroom, error) {
	return svc.repo.GetClassroomByID(ctx, id)
}

func (svc *service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Classroom, error) {
	return svc.repo.QueryClassrooms(ctx, filter, ordering)
}

func (svc *service) Update(ctx context.Context, id string, uc UpdateClassroom) (Classroom, error) {
	room := Classroom{
		ID:          id,
		Name:        uc.Name,
		Description: uc.Description,
		UpdatedAt:   time.Now().UTC(),
	}
	return svc.repo.UpdateClassroom(ctx, room, uc.IsActive)
}

func (svc *service) Delete(ctx context.Context, ids ...string) error {
	paths, err := svc.repo.DeleteClassroomsByID(ctx, ids...)
	if err != nil {
		return err
	}
	for _, p := range paths {
		_ = svc.files.Remove(p)
	}
	return nil
}

func (svc *service) addMember(ctx context.Context, classroomID, userID string, role MemberRole) error {
	if err := svc.repo.AddMember(ctx, classroomID, userID, role, time.Now().UTC()); err != nil {
		if errors.Cause(err) == ErrAlreadyMember {
			return core.NewValidationError(err, core.FieldError{Field: "user_id", Error: err.Error()})
		}
		return err
	}
	return nil
}

func (svc *service) AddTeacher(ctx context.Context, classroomID, userID string) error {
	return svc.addMember(ctx, classroomID, userID, MemberTeacher)
}

func (svc *service) RemoveTeacher(ctx context.Context, classroomID, userID string) error {
	return svc.repo.RemoveMember(ctx, classroomID, userID, MemberTeacher)
}

func (svc *service) AddStudent(ctx context.Context, classroomID, userID string) error {
	return svc.addMember(ctx, classroomID, userID, MemberStudent)
}

func (svc *service) RemoveStudent(ctx context.Context, classroomID, userID string) error {
	return svc.repo.RemoveMember(ctx, classroomID, userID, MemberStudent)
}

func (svc *service) Teachers(ctx context.Context, classroomID string) ([]Member, error) {
	return svc.repo.QueryMembers(ctx, classroomID, MemberTeacher)
}

func (svc *service) Students(ctx context.Context, classroomID string) ([]Member, error) {
	return svc.repo.QueryMembers(ctx, classroomID, MemberStudent)
}

func (svc *service) IsTeacher(ctx context.Context, classroomID, userID string) (bool, error) {
	return svc.repo.IsMember(ctx, classroomID, userID, MemberTeacher)
}

func (svc *service) IsStudent(ctx context.Context, classroomID, userID string) (bool, error) {
	return svc.repo.IsMember(ctx, classroomID, userID, MemberStudent)
}
