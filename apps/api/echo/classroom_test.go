package echoapi

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/mwalimu/darasa/core/analytics"
	"github.com/mwalimu/darasa/core/assignment"
	"github.com/mwalimu/darasa/core/classroom"
	"github.com/mwalimu/darasa/core/user"
)

func Test_classroomApi_create(t *testing.T) {
	env := setup(t)

	teacher := env.createUser(t, "Teacher", "One", "teacher@test.cd", user.RoleTeacher, true)
	student := env.createUser(t, "Hero", "Kid", "hero@test.cd", user.RoleStudent, true)

	tests := []httpTest{
		{
			name: "auth required", body: marshallObj(t, map[string]string{"name": "Math 101"}),
			wantCode: http.StatusUnauthorized, wantData: marshallObj(t, errMissingToken),
		},
		{
			name: "students cannot create", token: getToken(t, student),
			body:     marshallObj(t, map[string]string{"name": "Math 101"}),
			wantCode: http.StatusForbidden, wantData: marshallObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name: "name required", token: getToken(t, teacher), body: []byte("{}"),
			wantCode: http.StatusBadRequest,
		},
		{
			name: "teacher can create", token: getToken(t, teacher),
			body:     marshallObj(t, map[string]string{"name": "Math 101", "description": "Numbers"}),
			wantCode: http.StatusCreated,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodPost, "/v1/classrooms", tt.token, tt.body)
			env.app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}

	rooms, err := env.roomSvc.Query(context.Background(), nil, nil)
	if err != nil {
		t.Fatalf("Query() failed: %v", err)
	}
	if len(rooms) != 1 {
		t.Fatalf("got %d classrooms, want 1", len(rooms))
	}
	if rooms[0].CreatedBy != teacher.ID || !rooms[0].IsActive {
		t.Errorf("classroom = %+v; want active, created by teacher", rooms[0])
	}
}

func Test_classroomApi_query(t *testing.T) {
	env := setup(t)

	admin := env.createUser(t, "Admin", "Root", "admin@test.cd", user.RoleAdmin, true)
	teacher := env.createUser(t, "Teacher", "One", "teacher@test.cd", user.RoleTeacher, true)
	other := env.createUser(t, "Teacher", "Two", "teacher2@test.cd", user.RoleTeacher, true)
	student := env.createUser(t, "Hero", "Kid", "hero@test.cd", user.RoleStudent, true)

	math := env.createRoom(t, teacher, "Math 101", []user.User{teacher}, []user.User{student})
	bio := env.createRoom(t, other, "Biology", []user.User{other}, nil)

	tests := []httpTest{
		{
			name: "admin sees all", token: getToken(t, admin),
			wantCode: http.StatusOK, wantData: marshallList(t, math, bio),
		},
		{
			name: "teacher sees own rooms", token: getToken(t, teacher),
			wantCode: http.StatusOK, wantData: marshallList(t, math),
		},
		{
			name: "student sees enrollments", token: getToken(t, student),
			wantCode: http.StatusOK, wantData: marshallList(t, math),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodGet, "/v1/classrooms", tt.token)
			env.app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_classroomApi_retrieve(t *testing.T) {
	env := setup(t)

	teacher := env.createUser(t, "Teacher", "One", "teacher@test.cd", user.RoleTeacher, true)
	student := env.createUser(t, "Hero", "Kid", "hero@test.cd", user.RoleStudent, true)
	outsider := env.createUser(t, "Out", "Sider", "out@test.cd", user.RoleStudent, true)

	room := env.createRoom(t, teacher, "Math 101", []user.User{teacher}, []user.User{student})

	tests := []httpTest{
		{
			name: "teacher can read", path: "/v1/classrooms/" + room.ID, token: getToken(t, teacher),
			wantCode: http.StatusOK, wantData: marshallObj(t, room),
		},
		{
			name: "enrolled student can read", path: "/v1/classrooms/" + room.ID, token: getToken(t, student),
			wantCode: http.StatusOK, wantData: marshallObj(t, room),
		},
		{
			name: "outsider gets 404", path: "/v1/classrooms/" + room.ID, token: getToken(t, outsider),
			wantCode: http.StatusNotFound, wantData: marshallObj(t, httpErr{Error: "not found"}),
		},
		{
			name: "unknown id", path: "/v1/classrooms/nope", token: getToken(t, teacher),
			wantCode: http.StatusNotFound, wantData: marshallObj(t, httpErr{Error: "not found"}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodGet, tt.path, tt.token)
			env.app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_classroomApi_members(t *testing.T) {
	env := setup(t)

	teacher := env.createUser(t, "Teacher", "One", "teacher@test.cd", user.RoleTeacher, true)
	student := env.createUser(t, "Hero", "Kid", "hero@test.cd", user.RoleStudent, true)
	newKid := env.createUser(t, "New", "Kid", "new@test.cd", user.RoleStudent, true)

	room := env.createRoom(t, teacher, "Math 101", []user.User{teacher}, []user.User{student})
	teacherToken := getToken(t, teacher)

	tests := []httpTest{
		{
			name: "student cannot add members", method: http.MethodPost,
			path: "/v1/classrooms/" + room.ID + "/students", token: getToken(t, student),
			body:     marshallObj(t, map[string]string{"user_id": newKid.ID}),
			wantCode: http.StatusForbidden, wantData: marshallObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name: "teacher role required for teacher slot", method: http.MethodPost,
			path: "/v1/classrooms/" + room.ID + "/teachers", token: teacherToken,
			body:     marshallObj(t, map[string]string{"user_id": newKid.ID}),
			wantCode: http.StatusBadRequest,
		},
		{
			name: "unknown user rejected", method: http.MethodPost,
			path: "/v1/classrooms/" + room.ID + "/students", token: teacherToken,
			body:     marshallObj(t, map[string]string{"user_id": "nope"}),
			wantCode: http.StatusBadRequest, wantData: marshallObj(t, map[string]string{"user_id": "user not found"}),
		},
		{
			name: "teacher can enroll student", method: http.MethodPost,
			path: "/v1/classrooms/" + room.ID + "/students", token: teacherToken,
			body:     marshallObj(t, map[string]string{"user_id": newKid.ID}),
			wantCode: http.StatusCreated,
		},
		{
			name: "double enrollment rejected", method: http.MethodPost,
			path: "/v1/classrooms/" + room.ID + "/students", token: teacherToken,
			body:     marshallObj(t, map[string]string{"user_id": newKid.ID}),
			wantCode: http.StatusBadRequest,
		},
		{
			name: "teacher can remove student", method: http.MethodDelete,
			path: "/v1/classrooms/" + room.ID + "/students/" + newKid.ID, token: teacherToken,
			wantCode: http.StatusNoContent,
		},
		{
			name: "removing a non-member is 404", method: http.MethodDelete,
			path: "/v1/classrooms/" + room.ID + "/students/" + newKid.ID, token: teacherToken,
			wantCode: http.StatusNotFound, wantData: marshallObj(t, httpErr{Error: "not found"}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			env.app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}

	members, err := env.roomSvc.Students(context.Background(), room.ID)
	if err != nil {
		t.Fatalf("Students() failed: %v", err)
	}
	if len(members) != 1 || members[0].User.ID != student.ID {
		t.Errorf("students = %+v; want only the original student", members)
	}
}

func Test_classroomApi_stats(t *testing.T) {
	env := setup(t)

	teacher := env.createUser(t, "Teacher", "One", "teacher@test.cd", user.RoleTeacher, true)
	student := env.createUser(t, "Hero", "Kid", "hero@test.cd", user.RoleStudent, true)

	room := env.createRoom(t, teacher, "Math 101", []user.User{teacher}, []user.User{student})

	t.Run("students cannot read stats", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/classrooms/"+room.ID+"/stats", getToken(t, student))
		env.app.ServeHTTP(rec, req)
		if rec.Code != http.StatusForbidden {
			t.Errorf("code = %v; want 403", rec.Code)
		}
	})

	t.Run("teacher gets aggregates", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/classrooms/"+room.ID+"/stats", getToken(t, teacher))
		env.app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("code = %v; want 200, body %s", rec.Code, rec.Body.String())
		}
		var stats analytics.ClassroomStats
		if err := json.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
			t.Fatalf("unmarshalling ClassroomStats: %v", err)
		}
		if stats.ClassroomID != room.ID {
			t.Errorf("ClassroomID = %q; want %q", stats.ClassroomID, room.ID)
		}
		if stats.StudentCount != 1 || stats.TeacherCount != 1 {
			t.Errorf("counts = %d students %d teachers; want 1 and 1", stats.StudentCount, stats.TeacherCount)
		}
	})
}

func Test_classroomApi_destroy(t *testing.T) {
	env := setup(t)
	ctx := context.Background()

	teacher := env.createUser(t, "Teacher", "One", "teacher@test.cd", user.RoleTeacher, true)
	student := env.createUser(t, "Hero", "Kid", "hero@test.cd", user.RoleStudent, true)

	room := env.createRoom(t, teacher, "Math 101", []user.User{teacher}, []user.User{student})
	a := env.createAssignment(t, room, teacher, "Quiz", assignment.NewAssignment{ClassWide: true})

	req, rec := newSubmitRequest(t, "/v1/assignments/"+a.ID+"/submit", getToken(t, student), "my answers", "hw.pdf")
	env.app.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("submit failed: code %v, body %s", rec.Code, rec.Body.String())
	}
	var sub assignment.StudentAssignment
	if err := json.Unmarshal(rec.Body.Bytes(), &sub); err != nil {
		t.Fatalf("unmarshalling StudentAssignment: %v", err)
	}
	fls, err := env.assgSvc.Files(ctx, sub.ID)
	if err != nil || len(fls) != 1 {
		t.Fatalf("Files() = %v, %v; want one file", fls, err)
	}

	t.Run("students cannot delete", func(t *testing.T) {
		tt := httpTest{
			wantCode: http.StatusForbidden,
			wantData: marshallObj(t, httpErr{Error: "permission denied"}),
		}
		req, rec := newAuthRequest(http.MethodDelete, "/v1/classrooms/"+room.ID, getToken(t, student))
		env.app.ServeHTTP(rec, req)
		checkCodeAndData(t, tt, rec)
	})

	t.Run("delete cascades to assignments and upload blobs", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodDelete, "/v1/classrooms/"+room.ID, getToken(t, teacher))
		env.app.ServeHTTP(rec, req)
		if rec.Code != http.StatusNoContent {
			t.Fatalf("code = %v; want 204", rec.Code)
		}

		if _, err := env.roomSvc.GetByID(ctx, room.ID); err != classroom.ErrNotFound {
			t.Errorf("GetByID() error = %v; want ErrNotFound", err)
		}
		if _, err := env.assgSvc.GetByID(ctx, a.ID); err != assignment.ErrNotFound {
			t.Errorf("assignment GetByID() error = %v; want ErrNotFound", err)
		}
		if _, err := env.store.Open(fls[0].StoragePath); err == nil {
			t.Error("upload blob still on disk after classroom delete")
		}
	})
}
