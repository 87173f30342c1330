package dummydb

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mwalimu/darasa/core"
	"github.com/mwalimu/darasa/core/classroom"
)

type classroomRepository struct {
	db    *classroomTable
	users *userTable
	assg  *assignmentTable
}

var _ classroom.Repository = (*classroomRepository)(nil) // interface compliance check

func NewClassroomRepository(db *DB) *classroomRepository {
	return &classroomRepository{db: db.classroom, users: db.user, assg: db.assignment}
}

func (repo *classroomRepository) query() []classroom.Classroom {
	rooms := make([]classroom.Classroom, 0, len(repo.db.table))
	for _, room := range repo.db.table {
		rooms = append(rooms, *room)
	}
	return rooms
}

func (repo *classroomRepository) isMember(classroomID, userID string, role classroom.MemberRole) bool {
	for _, m := range repo.db.members {
		if m.classroomID == classroomID && m.userID == userID && m.role == role {
			return true
		}
	}
	return false
}

func (repo *classroomRepository) CreateClassroom(ctx context.Context, room classroom.Classroom) (classroom.Classroom, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	room.ID = uuid.New().String()
	repo.db.table[room.ID] = &room
	return room, nil
}

func (repo *classroomRepository) GetClassroomByID(ctx context.Context, id string) (classroom.Classroom, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if room, ok := repo.db.table[id]; ok {
		return *room, nil
	}
	return classroom.Classroom{}, classroom.ErrNotFound
}

func (repo *classroomRepository) QueryClassrooms(ctx context.Context, filter *classroom.QueryFilter, ordering []core.DBOrdering) ([]classroom.Classroom, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	rooms := repo.query()
	if filter != nil {
		filtered := rooms[:0]
		search := strings.ToLower(filter.Search)
		for _, room := range rooms {
			if search != "" && !strings.Contains(strings.ToLower(room.Name), search) {
				continue
			}
			if filter.IsActive != nil && room.IsActive != *filter.IsActive {
				continue
			}
			if filter.CreatorID != "" && room.CreatedBy != filter.CreatorID {
				continue
			}
			if filter.TeacherID != "" && !repo.isMember(room.ID, filter.TeacherID, classroom.MemberTeacher) {
				continue
			}
			if filter.StudentID != "" && !repo.isMember(room.ID, filter.StudentID, classroom.MemberStudent) {
				continue
			}
			filtered = append(filtered, room)
		}
		rooms = filtered
	}

	sort.Slice(rooms, func(i, j int) bool { return rooms[i].CreatedAt.After(rooms[j].CreatedAt) })
	return rooms, nil
}

func (repo *classroomRepository) UpdateClassroom(ctx context.Context, room classroom.Classroom, isActive *bool) (classroom.Classroom, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	// only save set fields; creator and timestamps are immutable
	orig, ok := repo.db.table[room.ID]
	if !ok {
		return classroom.Classroom{}, classroom.ErrNotFound
	}
	if isActive != nil {
		orig.IsActive = *isActive
	}
	orig.Name = room.Name
	orig.Description = room.Description
	orig.UpdatedAt = time.Now().UTC()
	return *orig, nil
}

func (repo *classroomRepository) DeleteClassroomsByID(ctx context.Context, ids ...string) ([]string, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	var paths []string
	for _, id := range ids {
		delete(repo.db.table, id)

		members := repo.db.members[:0]
		for _, m := range repo.db.members {
			if m.classroomID != id {
				members = append(members, m)
			}
		}
		repo.db.members = members

		// cascade to the classroom's assignments
		repo.assg.Lock()
		for assgID, a := range repo.assg.table {
			if a.ClassroomID != id {
				continue
			}
			delete(repo.assg.table, assgID)
			for subID, sub := range repo.assg.subs {
				if sub.AssignmentID != assgID {
					continue
				}
				delete(repo.assg.subs, subID)
				for fileID, f := range repo.assg.files {
					if f.StudentAssignmentID == subID {
						paths = append(paths, f.StoragePath)
						delete(repo.assg.files, fileID)
					}
				}
			}
		}
		repo.assg.Unlock()
	}
	return paths, nil
}

func (repo *classroomRepository) AddMember(ctx context.Context, classroomID, userID string, role classroom.MemberRole, assignedAt time.Time) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if repo.isMember(classroomID, userID, role) {
		return classroom.ErrAlreadyMember
	}
	repo.db.members = append(repo.db.members, membership{
		classroomID: classroomID,
		userID:      userID,
		role:        role,
		assignedAt:  assignedAt.UTC(),
	})
	return nil
}

func (repo *classroomRepository) RemoveMember(ctx context.Context, classroomID, userID string, role classroom.MemberRole) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	for i, m := range repo.db.members {
		if m.classroomID == classroomID && m.userID == userID && m.role == role {
			repo.db.members = append(repo.db.members[:i], repo.db.members[i+1:]...)
			return nil
		}
	}
	return classroom.ErrNotMember
}

func (repo *classroomRepository) QueryMembers(ctx context.Context, classroomID string, role classroom.MemberRole) ([]classroom.Member, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	repo.users.RLock()
	defer repo.users.RUnlock()

	var members []classroom.Member
	for _, m := range repo.db.members {
		if m.classroomID != classroomID || m.role != role {
			continue
		}
		usr, ok := repo.users.table[m.userID]
		if !ok {
			continue
		}
		members = append(members, classroom.Member{User: *usr, AssignedAt: m.assignedAt})
	}
	sort.Slice(members, func(i, j int) bool { return members[i].AssignedAt.Before(members[j].AssignedAt) })
	return members, nil
}

func (repo *classroomRepository) IsMember(ctx context.Context, classroomID, userID string, role classroom.MemberRole) (bool, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	return repo.isMember(classroomID, userID, role), nil
}
