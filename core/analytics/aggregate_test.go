package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/mwalimu/darasa/core/activity"
	"github.com/mwalimu/darasa/core/assignment"
)

func gradePtr(g float64) *float64 { return &g }
func boolPtr(b bool) *bool        { return &b }

func TestAverageScore(t *testing.T) {
	tests := []struct {
		name       string
		subs       []assignment.StudentAssignment
		wantAvg    float64
		wantGraded int
	}{
		{"no submissions", nil, 0, 0},
		{"all ungraded", []assignment.StudentAssignment{{}, {}}, 0, 0},
		{
			"ungraded rows excluded from denominator",
			[]assignment.StudentAssignment{
				{Grade: gradePtr(80)},
				{Grade: gradePtr(90)},
				{Grade: gradePtr(100)},
				{}, // submitted but ungraded
			},
			90.00, 3,
		},
		{
			"rounded to 2 decimal places",
			[]assignment.StudentAssignment{
				{Grade: gradePtr(70)},
				{Grade: gradePtr(80)},
				{Grade: gradePtr(80)},
			},
			76.67, 3,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			avg, graded := AverageScore(tt.subs)
			assert.Equal(t, tt.wantAvg, avg)
			assert.Equal(t, tt.wantGraded, graded)
		})
	}
}

func TestCompletionRate(t *testing.T) {
	tests := []struct {
		name string
		subs []assignment.StudentAssignment
		want float64
	}{
		{"zero assignments", nil, 0},
		{
			"one of three completed",
			[]assignment.StudentAssignment{
				{Status: assignment.StatusCompleted},
				{Status: assignment.StatusPending},
				{Status: assignment.StatusOverdue},
			},
			33.33,
		},
		{
			"all completed",
			[]assignment.StudentAssignment{
				{Status: assignment.StatusCompleted},
				{Status: assignment.StatusCompleted},
			},
			100,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CompletionRate(tt.subs))
		})
	}
}

func TestAttendanceRate(t *testing.T) {
	score := 15.0
	tests := []struct {
		name    string
		entries []activity.Entry
		want    float64
	}{
		{"no records", nil, 0},
		{
			"score entries ignored",
			[]activity.Entry{
				{Present: boolPtr(true)},
				{Present: boolPtr(false)},
				{Score: &score},
			},
			50,
		},
		{
			"all present",
			[]activity.Entry{
				{Present: boolPtr(true)},
				{Present: boolPtr(true)},
				{Present: boolPtr(true)},
			},
			100,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, AttendanceRate(tt.entries))
		})
	}
}

func TestTier(t *testing.T) {
	assert.Equal(t, TierHigh, Tier(80))
	assert.Equal(t, TierHigh, Tier(95.5))
	assert.Equal(t, TierAverage, Tier(79.99))
	assert.Equal(t, TierAverage, Tier(60))
	assert.Equal(t, TierLow, Tier(59.99))
	assert.Equal(t, TierLow, Tier(0))
}

func TestWeeklyTrend(t *testing.T) {
	// Wednesday; its week starts Monday 2026-08-24.
	now := time.Date(2026, 8, 26, 15, 0, 0, 0, time.UTC)

	at := func(t time.Time) *time.Time { return &t }
	subs := []assignment.StudentAssignment{
		// current week: two grades
		{Grade: gradePtr(90), SubmittedAt: at(time.Date(2026, 8, 24, 9, 0, 0, 0, time.UTC))},
		{Grade: gradePtr(70), SubmittedAt: at(time.Date(2026, 8, 30, 23, 0, 0, 0, time.UTC))},
		// three weeks back
		{Grade: gradePtr(50), SubmittedAt: at(time.Date(2026, 8, 5, 12, 0, 0, 0, time.UTC))},
		// older than the window, dropped
		{Grade: gradePtr(100), SubmittedAt: at(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))},
		// graded but never submitted, dropped
		{Grade: gradePtr(100)},
		// submitted but ungraded, dropped
		{SubmittedAt: at(now)},
	}

	points := WeeklyTrend(subs, now)
	assert.Len(t, points, trendWeeks)

	first := time.Date(2026, 7, 20, 0, 0, 0, 0, time.UTC)
	for i, p := range points {
		assert.Equal(t, first.AddDate(0, 0, 7*i), p.WeekStart, "week %d start", i)
	}

	last := points[trendWeeks-1]
	assert.Equal(t, 2, last.GradedCount)
	assert.Equal(t, 80.0, last.AverageScore)

	wk := points[2] // week of 2026-08-03
	assert.Equal(t, 1, wk.GradedCount)
	assert.Equal(t, 50.0, wk.AverageScore)

	for i, p := range points {
		if i == 2 || i == trendWeeks-1 {
			continue
		}
		assert.Zero(t, p.GradedCount, "week %d", i)
		assert.Zero(t, p.AverageScore, "week %d", i)
	}
}
