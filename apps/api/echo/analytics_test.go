package echoapi

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/mwalimu/darasa/core/analytics"
	"github.com/mwalimu/darasa/core/assignment"
	"github.com/mwalimu/darasa/core/user"
)

func Test_analyticsApi_studentStats(t *testing.T) {
	env := setup(t)

	admin := env.createUser(t, "Admin", "Root", "admin@test.cd", user.RoleAdmin, true)
	teacher := env.createUser(t, "Teacher", "One", "teacher@test.cd", user.RoleTeacher, true)
	student := env.createUser(t, "Hero", "Kid", "hero@test.cd", user.RoleStudent, true)
	other := env.createUser(t, "Side", "Kick", "side@test.cd", user.RoleStudent, true)

	room := env.createRoom(t, teacher, "Math 101", []user.User{teacher}, []user.User{student})
	a := env.createAssignment(t, room, teacher, "Quiz", assignment.NewAssignment{ClassWide: true})

	req, rec := newSubmitRequest(t, "/v1/assignments/"+a.ID+"/submit", getToken(t, student), "done")
	env.app.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("submit failed: code %v, body %s", rec.Code, rec.Body.String())
	}

	path := "/v1/students/" + student.ID + "/stats"

	t.Run("other students cannot peek", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, path, getToken(t, other))
		env.app.ServeHTTP(rec, req)
		if rec.Code != http.StatusNotFound {
			t.Errorf("code = %v; want 404", rec.Code)
		}
	})

	t.Run("unknown student", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/students/nope/stats", getToken(t, admin))
		env.app.ServeHTTP(rec, req)
		if rec.Code != http.StatusNotFound {
			t.Errorf("code = %v; want 404", rec.Code)
		}
	})

	for _, actor := range []user.User{student, teacher, admin} {
		t.Run("readable by "+actor.Role, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodGet, path, getToken(t, actor))
			env.app.ServeHTTP(rec, req)
			if rec.Code != http.StatusOK {
				t.Fatalf("code = %v; want 200, body %s", rec.Code, rec.Body.String())
			}
			var stats analytics.StudentStats
			if err := json.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
				t.Fatalf("unmarshalling StudentStats: %v", err)
			}
			if stats.Total != 1 || stats.Completed != 1 {
				t.Errorf("stats = %+v; want 1 assignment, completed", stats)
			}
			if stats.CompletionRate != 100 {
				t.Errorf("CompletionRate = %v; want 100", stats.CompletionRate)
			}
		})
	}
}

func Test_analyticsApi_adminStats(t *testing.T) {
	env := setup(t)

	admin := env.createUser(t, "Admin", "Root", "admin@test.cd", user.RoleAdmin, true)
	teacher := env.createUser(t, "Teacher", "One", "teacher@test.cd", user.RoleTeacher, true)
	student := env.createUser(t, "Hero", "Kid", "hero@test.cd", user.RoleStudent, true)

	room := env.createRoom(t, teacher, "Math 101", []user.User{teacher}, []user.User{student})
	env.createAssignment(t, room, teacher, "Quiz", assignment.NewAssignment{ClassWide: true})

	t.Run("admin only", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/admin/stats", getToken(t, teacher))
		env.app.ServeHTTP(rec, req)
		if rec.Code != http.StatusForbidden {
			t.Errorf("code = %v; want 403", rec.Code)
		}
	})

	t.Run("system aggregates", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/admin/stats", getToken(t, admin))
		env.app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("code = %v; want 200, body %s", rec.Code, rec.Body.String())
		}
		var stats analytics.AdminStats
		if err := json.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
			t.Fatalf("unmarshalling AdminStats: %v", err)
		}
		if stats.TotalUsers != 3 || stats.Teachers != 1 || stats.Students != 1 || stats.Admins != 1 {
			t.Errorf("user counts = %+v; want 3 users split 1/1/1", stats)
		}
		if stats.Classrooms != 1 || stats.Assignments != 1 || stats.Submissions != 1 {
			t.Errorf("stats = %+v; want 1 classroom, 1 assignment, 1 submission", stats)
		}
	})
}
