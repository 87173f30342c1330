package analytics

import (
	"time"

	"github.com/mwalimu/darasa/core"
	"github.com/mwalimu/darasa/core/activity"
	"github.com/mwalimu/darasa/core/assignment"
)

// Performance tiers (inclusive boundaries).
const (
	TierHigh    = "high"    // >= 80
	TierAverage = "average" // 60 - 79
	TierLow     = "low"     // < 60

	trendWeeks = 6
)

// TierCounts buckets students by their average score.
type TierCounts struct {
	High    int `json:"high"`
	Average int `json:"average"`
	Low     int `json:"low"`
}

// TrendPoint is one bucket of the fixed weekly trend series.
type TrendPoint struct {
	WeekStart    time.Time `json:"week_start"` // UTC, Monday 00:00
	AverageScore float64   `json:"average_score"`
	GradedCount  int       `json:"graded_count"`
}

// Tier classifies an average score.
func Tier(avg float64) string {
	switch {
	case avg >= 80:
		return TierHigh
	case avg >= 60:
		return TierAverage
	default:
		return TierLow
	}
}

// AverageScore is the arithmetic mean of non-null grades, rounded to 2
// decimal places. Ungraded rows are excluded from both numerator and
// denominator; 0 if no graded rows.
func AverageScore(subs []assignment.StudentAssignment) (avg float64, graded int) {
	var sum float64
	for _, sub := range subs {
		if sub.Grade != nil {
			sum += *sub.Grade
			graded++
		}
	}
	if graded == 0 {
		return 0, 0
	}
	return core.Round2(sum / float64(graded)), graded
}

// CompletionRate is count(completed) / total * 100, rounded to 2 decimal
// places. 0 for an empty set, never a division error.
func CompletionRate(subs []assignment.StudentAssignment) float64 {
	if len(subs) == 0 {
		return 0
	}
	var completed int
	for _, sub := range subs {
		if sub.IsCompleted() {
			completed++
		}
	}
	return core.Round2(float64(completed) / float64(len(subs)) * 100)
}

// AttendanceRate is count(present) / count(attendance records) * 100,
// rounded to 2 decimal places. Non-attendance entries are ignored.
func AttendanceRate(entries []activity.Entry) float64 {
	var present, total int
	for _, e := range entries {
		if !e.IsAttendance() {
			continue
		}
		total++
		if *e.Present {
			present++
		}
	}
	if total == 0 {
		return 0
	}
	return core.Round2(float64(present) / float64(total) * 100)
}

// StatusCounts tallies rows per status.
func StatusCounts(subs []assignment.StudentAssignment) (pending, completed, overdue int) {
	for _, sub := range subs {
		switch sub.Status {
		case assignment.StatusCompleted:
			completed++
		case assignment.StatusOverdue:
			overdue++
		default:
			pending++
		}
	}
	return
}

// WeeklyTrend buckets graded submissions by submitted-at week into a fixed
// 6-point series ending with the week containing `now`. Empty buckets carry
// a zero average.
func WeeklyTrend(subs []assignment.StudentAssignment, now time.Time) []TrendPoint {
	end := weekStart(now.UTC())
	start := end.AddDate(0, 0, -7*(trendWeeks-1))

	points := make([]TrendPoint, trendWeeks)
	sums := make([]float64, trendWeeks)
	for i := range points {
		points[i].WeekStart = start.AddDate(0, 0, 7*i)
	}

	for _, sub := range subs {
		if sub.Grade == nil || sub.SubmittedAt == nil {
			continue
		}
		idx := int(weekStart(sub.SubmittedAt.UTC()).Sub(start).Hours() / (24 * 7))
		if idx < 0 || idx >= trendWeeks {
			continue
		}
		sums[idx] += *sub.Grade
		points[idx].GradedCount++
	}

	for i := range points {
		if points[i].GradedCount > 0 {
			points[i].AverageScore = core.Round2(sums[i] / float64(points[i].GradedCount))
		}
	}
	return points
}

// weekStart truncates t to Monday 00:00 UTC of its week.
func weekStart(t time.Time) time.Time {
	t = t.UTC().Truncate(24 * time.Hour)
	wd := (int(t.Weekday()) + 6) % 7 // Monday = 0
	return t.AddDate(0, 0, -wd)
}
