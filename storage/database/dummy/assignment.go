package dummydb

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/mwalimu/darasa/core"
	"github.com/mwalimu/darasa/core/activity"
	"github.com/mwalimu/darasa/core/assignment"
)

type assignmentRepository struct {
	db  *assignmentTable
	act *activityTable
}

var _ assignment.Repository = (*assignmentRepository)(nil) // interface compliance check

func NewAssignmentRepository(db *DB) *assignmentRepository {
	return &assignmentRepository{db: db.assignment, act: db.activity}
}

func (repo *assignmentRepository) CreateAssignment(ctx context.Context, a assignment.Assignment, studentIDs []string) (assignment.Assignment, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	a.ID = uuid.New().String()
	repo.db.table[a.ID] = &a

	for _, studentID := range studentIDs {
		sub := assignment.StudentAssignment{
			ID:           uuid.New().String(),
			AssignmentID: a.ID,
			StudentID:    studentID,
			Status:       assignment.StatusPending,
			CreatedAt:    a.CreatedAt,
			UpdatedAt:    a.UpdatedAt,
		}
		repo.db.subs[sub.ID] = &sub
	}
	return a, nil
}

func (repo *assignmentRepository) GetAssignmentByID(ctx context.Context, id string) (assignment.Assignment, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if a, ok := repo.db.table[id]; ok {
		return *a, nil
	}
	return assignment.Assignment{}, assignment.ErrNotFound
}

func (repo *assignmentRepository) QueryAssignments(ctx context.Context, filter *assignment.AssignmentFilter, ordering []core.DBOrdering) ([]assignment.Assignment, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var assignments []assignment.Assignment
	for _, a := range repo.db.table {
		if filter != nil {
			if filter.ClassroomID != "" && a.ClassroomID != filter.ClassroomID {
				continue
			}
			if filter.CreatedBy != "" && a.CreatedBy != filter.CreatedBy {
				continue
			}
			if filter.IsActive != nil && a.IsActive != *filter.IsActive {
				continue
			}
			if filter.StudentID != "" && !repo.hasStudent(a.ID, filter.StudentID) {
				continue
			}
		}
		assignments = append(assignments, *a)
	}
	sort.Slice(assignments, func(i, j int) bool { return assignments[i].CreatedAt.After(assignments[j].CreatedAt) })
	return assignments, nil
}

func (repo *assignmentRepository) hasStudent(assignmentID, studentID string) bool {
	for _, sub := range repo.db.subs {
		if sub.AssignmentID == assignmentID && sub.StudentID == studentID {
			return true
		}
	}
	return false
}

func (repo *assignmentRepository) UpdateAssignment(ctx context.Context, a assignment.Assignment, isActive *bool) (assignment.Assignment, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	// only save set fields; parent classroom, creator and the class-wide
	// flag are immutable
	orig, ok := repo.db.table[a.ID]
	if !ok {
		return assignment.Assignment{}, assignment.ErrNotFound
	}
	if isActive != nil {
		orig.IsActive = *isActive
	}
	orig.Title = a.Title
	orig.Description = a.Description
	orig.DueDate = a.DueDate
	orig.UpdatedAt = time.Now().UTC()
	return *orig, nil
}

func (repo *assignmentRepository) DeleteAssignmentsByID(ctx context.Context, ids ...string) ([]string, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	var paths []string
	for _, id := range ids {
		delete(repo.db.table, id)
		for subID, sub := range repo.db.subs {
			if sub.AssignmentID != id {
				continue
			}
			delete(repo.db.subs, subID)
			for fileID, f := range repo.db.files {
				if f.StudentAssignmentID == subID {
					paths = append(paths, f.StoragePath)
					delete(repo.db.files, fileID)
				}
			}
		}
	}
	return paths, nil
}

func (repo *assignmentRepository) GetStudentAssignmentByID(ctx context.Context, id string) (assignment.StudentAssignment, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if sub, ok := repo.db.subs[id]; ok {
		return *sub, nil
	}
	return assignment.StudentAssignment{}, assignment.ErrSubmissionNotFound
}

func (repo *assignmentRepository) GetStudentAssignment(ctx context.Context, assignmentID, studentID string) (assignment.StudentAssignment, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, sub := range repo.db.subs {
		if sub.AssignmentID == assignmentID && sub.StudentID == studentID {
			return *sub, nil
		}
	}
	return assignment.StudentAssignment{}, assignment.ErrSubmissionNotFound
}

func (repo *assignmentRepository) QueryStudentAssignments(ctx context.Context, filter *assignment.SubmissionFilter) ([]assignment.StudentAssignment, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var subs []assignment.StudentAssignment
	for _, sub := range repo.db.subs {
		if filter != nil {
			if filter.AssignmentID != "" && sub.AssignmentID != filter.AssignmentID {
				continue
			}
			if filter.StudentID != "" && sub.StudentID != filter.StudentID {
				continue
			}
			if filter.Status != "" && sub.Status != filter.Status {
				continue
			}
			if filter.ClassroomID != "" {
				a, ok := repo.db.table[sub.AssignmentID]
				if !ok || a.ClassroomID != filter.ClassroomID {
					continue
				}
			}
		}
		subs = append(subs, *sub)
	}
	sort.Slice(subs, func(i, j int) bool { return subs[i].CreatedAt.Before(subs[j].CreatedAt) })
	return subs, nil
}

func (repo *assignmentRepository) SubmitStudentAssignment(ctx context.Context, sub assignment.StudentAssignment, files []assignment.NewSubmissionFile) (assignment.StudentAssignment, []assignment.SubmissionFile, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.subs[sub.ID]; !ok {
		return assignment.StudentAssignment{}, nil, assignment.ErrSubmissionNotFound
	}
	sub.UpdatedAt = time.Now().UTC()
	repo.db.subs[sub.ID] = &sub

	saved := make([]assignment.SubmissionFile, 0, len(files))
	for _, f := range files {
		rec := assignment.SubmissionFile{
			ID:                  uuid.New().String(),
			StudentAssignmentID: sub.ID,
			FileName:            f.FileName,
			StoragePath:         f.StoragePath,
			Size:                f.Size,
			MimeType:            f.MimeType,
			CreatedAt:           sub.UpdatedAt,
		}
		repo.db.files[rec.ID] = &rec
		saved = append(saved, rec)
	}

	repo.act.Lock()
	entry := activity.Entry{
		ID:        uuid.New().String(),
		UserID:    sub.StudentID,
		Date:      sub.UpdatedAt.Truncate(24 * time.Hour),
		Note:      "submitted assignment " + sub.AssignmentID,
		CreatedAt: sub.UpdatedAt,
	}
	repo.act.table[entry.ID] = &entry
	repo.act.Unlock()

	return sub, saved, nil
}

func (repo *assignmentRepository) GradeStudentAssignment(ctx context.Context, sub assignment.StudentAssignment) (assignment.StudentAssignment, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.subs[sub.ID]; !ok {
		return assignment.StudentAssignment{}, assignment.ErrSubmissionNotFound
	}
	sub.UpdatedAt = time.Now().UTC()
	repo.db.subs[sub.ID] = &sub
	return sub, nil
}

func (repo *assignmentRepository) GetSubmissionFileByID(ctx context.Context, id string) (assignment.SubmissionFile, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if f, ok := repo.db.files[id]; ok {
		return *f, nil
	}
	return assignment.SubmissionFile{}, assignment.ErrFileNotFound
}

func (repo *assignmentRepository) QuerySubmissionFiles(ctx context.Context, studentAssignmentID string) ([]assignment.SubmissionFile, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var files []assignment.SubmissionFile
	for _, f := range repo.db.files {
		if f.StudentAssignmentID == studentAssignmentID {
			files = append(files, *f)
		}
	}
	sort.Slice(files, func(i, j int) bool { return files[i].CreatedAt.Before(files[j].CreatedAt) })
	return files, nil
}

func (repo *assignmentRepository) DeleteSubmissionFilesByID(ctx context.Context, ids ...string) ([]string, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	var paths []string
	for _, id := range ids {
		if f, ok := repo.db.files[id]; ok {
			paths = append(paths, f.StoragePath)
			delete(repo.db.files, id)
		}
	}
	return paths, nil
}
