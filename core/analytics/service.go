package analytics

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/mwalimu/darasa/core/activity"
	"github.com/mwalimu/darasa/core/assignment"
	"github.com/mwalimu/darasa/core/classroom"
	"github.com/mwalimu/darasa/core/user"
)

type (
	// StudentStats are derived statistics for one student,
	// recomputed from raw rows on every request.
	StudentStats struct {
		StudentID      string  `json:"student_id"`
		Total          int     `json:"total_assignments"`
		Pending        int     `json:"pending"`
		Completed      int     `json:"completed"`
		Overdue        int     `json:"overdue"`
		GradedCount    int     `json:"graded_count"`
		AverageScore   float64 `json:"average_score"`
		CompletionRate float64 `json:"completion_rate"`
		AttendanceRate float64 `json:"attendance_rate"`
		Tier           string  `json:"tier"`
	}

	// ClassroomStats are derived statistics for one classroom.
	ClassroomStats struct {
		ClassroomID     string       `json:"classroom_id"`
		StudentCount    int          `json:"student_count"`
		TeacherCount    int          `json:"teacher_count"`
		AssignmentCount int          `json:"assignment_count"`
		GradedCount     int          `json:"graded_count"`
		AverageScore    float64      `json:"average_score"`
		CompletionRate  float64      `json:"completion_rate"`
		AttendanceRate  float64      `json:"attendance_rate"`
		Tiers           TierCounts   `json:"tiers"`
		Trend           []TrendPoint `json:"trend"`
	}

	// AdminStats is the dashboard aggregate over the whole system.
	AdminStats struct {
		TotalUsers     int     `json:"total_users"`
		ActiveUsers    int     `json:"active_users"`
		Admins         int     `json:"admins"`
		Teachers       int     `json:"teachers"`
		Students       int     `json:"students"`
		Classrooms     int     `json:"classrooms"`
		Assignments    int     `json:"assignments"`
		Submissions    int     `json:"submissions"`
		GradedCount    int     `json:"graded_count"`
		AverageScore   float64 `json:"average_score"`
		CompletionRate float64 `json:"completion_rate"`
	}

	Service interface {
		ForStudent(ctx context.Context, studentID string) (StudentStats, error)
		ForClassroom(ctx context.Context, room classroom.Classroom) (ClassroomStats, error)
		ForAdmin(ctx context.Context) (AdminStats, error)
	}

	service struct {
		usrSvc      user.Service
		roomSvc     classroom.Service
		assgSvc     assignment.Service
		activitySvc activity.Service
	}
)

var _ Service = (*service)(nil)

func NewService(usrSvc user.Service, roomSvc classroom.Service, assgSvc assignment.Service, activitySvc activity.Service) Service {
	return &service{
		usrSvc:      usrSvc,
		roomSvc:     roomSvc,
		assgSvc:     assgSvc,
		activitySvc: activitySvc,
	}
}

// refreshed fetches the student assignment rows matching filter and applies
// the lazy overdue transition using their parent assignments.
func (svc *service) refreshed(ctx context.Context, subFilter *assignment.SubmissionFilter, assgFilter *assignment.AssignmentFilter) ([]assignment.StudentAssignment, error) {
	subs, err := svc.assgSvc.QuerySubmissions(ctx, subFilter)
	if err != nil {
		return nil, errors.Wrap(err, "querying submissions")
	}
	assgs, err := svc.assgSvc.Query(ctx, assgFilter, nil)
	if err != nil {
		return nil, errors.Wrap(err, "querying assignments")
	}

	byID := make(map[string]assignment.Assignment, len(assgs))
	for _, a := range assgs {
		byID[a.ID] = a
	}
	now := time.Now().UTC()
	for i := range subs {
		if a, ok := byID[subs[i].AssignmentID]; ok {
			subs[i].RefreshStatus(a, now)
		}
	}
	return subs, nil
}

func (svc *service) ForStudent(ctx context.Context, studentID string) (StudentStats, error) {
	subs, err := svc.refreshed(ctx,
		&assignment.SubmissionFilter{StudentID: studentID},
		&assignment.AssignmentFilter{StudentID: studentID},
	)
	if err != nil {
		return StudentStats{}, err
	}

	entries, err := svc.activitySvc.Query(ctx, &activity.QueryFilter{UserID: studentID, AttendanceOnly: true})
	if err != nil {
		return StudentStats{}, errors.Wrap(err, "querying attendance")
	}

	stats := StudentStats{
		StudentID:      studentID,
		Total:          len(subs),
		CompletionRate: CompletionRate(subs),
		AttendanceRate: AttendanceRate(entries),
	}
	stats.Pending, stats.Completed, stats.Overdue = StatusCounts(subs)
	stats.AverageScore, stats.GradedCount = AverageScore(subs)
	stats.Tier = Tier(stats.AverageScore)
	return stats, nil
}

func (svc *service) ForClassroom(ctx context.Context, room classroom.Classroom) (ClassroomStats, error) {
	subs, err := svc.refreshed(ctx,
		&assignment.SubmissionFilter{ClassroomID: room.ID},
		&assignment.AssignmentFilter{ClassroomID: room.ID},
	)
	if err != nil {
		return ClassroomStats{}, err
	}

	students, err := svc.roomSvc.Students(ctx, room.ID)
	if err != nil {
		return ClassroomStats{}, errors.Wrap(err, "querying students")
	}
	teachers, err := svc.roomSvc.Teachers(ctx, room.ID)
	if err != nil {
		return ClassroomStats{}, errors.Wrap(err, "querying teachers")
	}
	assgs, err := svc.assgSvc.Query(ctx, &assignment.AssignmentFilter{ClassroomID: room.ID}, nil)
	if err != nil {
		return ClassroomStats{}, errors.Wrap(err, "querying assignments")
	}

	studentIDs := make([]string, 0, len(students))
	for _, m := range students {
		studentIDs = append(studentIDs, m.User.ID)
	}
	var attendanceRate float64
	if len(studentIDs) > 0 {
		entries, err := svc.activitySvc.Query(ctx, &activity.QueryFilter{UserIDs: studentIDs, AttendanceOnly: true})
		if err != nil {
			return ClassroomStats{}, errors.Wrap(err, "querying attendance")
		}
		attendanceRate = AttendanceRate(entries)
	}

	stats := ClassroomStats{
		ClassroomID:     room.ID,
		StudentCount:    len(students),
		TeacherCount:    len(teachers),
		AssignmentCount: len(assgs),
		CompletionRate:  CompletionRate(subs),
		AttendanceRate:  attendanceRate,
		Trend:           WeeklyTrend(subs, time.Now()),
	}
	stats.AverageScore, stats.GradedCount = AverageScore(subs)

	// tier each student by their own average; students with no graded
	// work are left out of the breakdown
	byStudent := make(map[string][]assignment.StudentAssignment)
	for _, sub := range subs {
		byStudent[sub.StudentID] = append(byStudent[sub.StudentID], sub)
	}
	for _, rows := range byStudent {
		avg, graded := AverageScore(rows)
		if graded == 0 {
			continue
		}
		switch Tier(avg) {
		case TierHigh:
			stats.Tiers.High++
		case TierAverage:
			stats.Tiers.Average++
		default:
			stats.Tiers.Low++
		}
	}
	return stats, nil
}

func (svc *service) ForAdmin(ctx context.Context) (AdminStats, error) {
	users, err := svc.usrSvc.Query(ctx, nil, nil)
	if err != nil {
		return AdminStats{}, errors.Wrap(err, "querying users")
	}
	rooms, err := svc.roomSvc.Query(ctx, nil, nil)
	if err != nil {
		return AdminStats{}, errors.Wrap(err, "querying classrooms")
	}
	assgs, err := svc.assgSvc.Query(ctx, nil, nil)
	if err != nil {
		return AdminStats{}, errors.Wrap(err, "querying assignments")
	}
	subs, err := svc.assgSvc.QuerySubmissions(ctx, nil)
	if err != nil {
		return AdminStats{}, errors.Wrap(err, "querying submissions")
	}

	stats := AdminStats{
		TotalUsers:     len(users),
		Classrooms:     len(rooms),
		Assignments:    len(assgs),
		Submissions:    len(subs),
		CompletionRate: CompletionRate(subs),
	}
	for _, usr := range users {
		if usr.IsActive {
			stats.ActiveUsers++
		}
		switch usr.Role {
		case user.RoleAdmin:
			stats.Admins++
		case user.RoleTeacher:
			stats.Teachers++
		case user.RoleStudent:
			stats.Students++
		}
	}
	stats.AverageScore, stats.GradedCount = AverageScore(subs)
	return stats, nil
}
