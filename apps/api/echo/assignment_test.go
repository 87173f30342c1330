package echoapi

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mwalimu/darasa/core/assignment"
	"github.com/mwalimu/darasa/core/user"
)

func newSubmitRequest(t *testing.T, path, token, content string, fileNames ...string) (*http.Request, *httptest.ResponseRecorder) {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	if err := w.WriteField("content", content); err != nil {
		t.Fatalf("WriteField() failed: %v", err)
	}
	for _, name := range fileNames {
		fw, err := w.CreateFormFile("files", name)
		if err != nil {
			t.Fatalf("CreateFormFile() failed: %v", err)
		}
		if _, err = fw.Write([]byte("%PDF-1.4 homework")); err != nil {
			t.Fatalf("writing file part: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("closing multipart writer: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	return req, rec
}

func Test_assignmentApi_create(t *testing.T) {
	env := setup(t)

	teacher := env.createUser(t, "Teacher", "One", "teacher@test.cd", user.RoleTeacher, true)
	student1 := env.createUser(t, "Hero", "Kid", "hero@test.cd", user.RoleStudent, true)
	student2 := env.createUser(t, "Side", "Kick", "side@test.cd", user.RoleStudent, true)
	outsider := env.createUser(t, "Out", "Sider", "out@test.cd", user.RoleStudent, true)

	room := env.createRoom(t, teacher, "Math 101", []user.User{teacher}, []user.User{student1, student2})
	path := "/v1/classrooms/" + room.ID + "/assignments"

	tests := []httpTest{
		{
			name: "students cannot create", token: getToken(t, student1),
			body:     marshallObj(t, map[string]interface{}{"title": "Essay", "class_wide": true}),
			wantCode: http.StatusForbidden,
		},
		{
			name: "outsiders never learn the room exists", token: getToken(t, outsider),
			body:     marshallObj(t, map[string]interface{}{"title": "Essay", "class_wide": true}),
			wantCode: http.StatusNotFound,
		},
		{
			name: "title required", token: getToken(t, teacher), body: []byte(`{"class_wide": true}`),
			wantCode: http.StatusBadRequest,
		},
		{
			name: "targeted needs student ids", token: getToken(t, teacher),
			body:     marshallObj(t, map[string]interface{}{"title": "Essay"}),
			wantCode: http.StatusBadRequest,
		},
		{
			name: "outsiders cannot be targeted", token: getToken(t, teacher),
			body:     marshallObj(t, map[string]interface{}{"title": "Essay", "student_ids": []string{outsider.ID}}),
			wantCode: http.StatusBadRequest,
		},
		{
			name: "targeted assignment", token: getToken(t, teacher),
			body:     marshallObj(t, map[string]interface{}{"title": "Essay", "student_ids": []string{student1.ID}}),
			wantCode: http.StatusCreated,
		},
		{
			name: "class-wide assignment", token: getToken(t, teacher),
			body:     marshallObj(t, map[string]interface{}{"title": "Quiz", "class_wide": true}),
			wantCode: http.StatusCreated,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodPost, path, tt.token, tt.body)
			env.app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}

	ctx := context.Background()
	assignments, err := env.assgSvc.Query(ctx, &assignment.AssignmentFilter{ClassroomID: room.ID}, nil)
	if err != nil {
		t.Fatalf("Query() failed: %v", err)
	}
	if len(assignments) != 2 {
		t.Fatalf("got %d assignments, want 2", len(assignments))
	}
	for _, a := range assignments {
		subs, err := env.assgSvc.Submissions(ctx, a)
		if err != nil {
			t.Fatalf("Submissions() failed: %v", err)
		}
		want := 1 // targeted
		if a.ClassWide {
			want = 2
		}
		if len(subs) != want {
			t.Errorf("%s: got %d submission rows, want %d", a.Title, len(subs), want)
		}
		for _, sub := range subs {
			if sub.Status != assignment.StatusPending {
				t.Errorf("%s: status = %q, want pending", a.Title, sub.Status)
			}
		}
	}
}

func Test_assignmentApi_query(t *testing.T) {
	env := setup(t)

	teacher := env.createUser(t, "Teacher", "One", "teacher@test.cd", user.RoleTeacher, true)
	student := env.createUser(t, "Hero", "Kid", "hero@test.cd", user.RoleStudent, true)
	outsider := env.createUser(t, "Out", "Sider", "out@test.cd", user.RoleStudent, true)

	room := env.createRoom(t, teacher, "Math 101", []user.User{teacher}, []user.User{student})
	a := env.createAssignment(t, room, teacher, "Quiz", assignment.NewAssignment{ClassWide: true})

	tests := []httpTest{
		{
			name: "teacher sees created", path: "/v1/assignments", token: getToken(t, teacher),
			wantCode: http.StatusOK, wantData: marshallList(t, a),
		},
		{
			name: "student sees targeted", path: "/v1/assignments", token: getToken(t, student),
			wantCode: http.StatusOK, wantData: marshallList(t, a),
		},
		{
			name: "outsider sees nothing", path: "/v1/assignments", token: getToken(t, outsider),
			wantCode: http.StatusOK, wantData: marshallList(t),
		},
		{
			name: "detail hidden from outsider", path: "/v1/assignments/" + a.ID, token: getToken(t, outsider),
			wantCode: http.StatusNotFound, wantData: marshallObj(t, httpErr{Error: "not found"}),
		},
		{
			name: "detail for member", path: "/v1/assignments/" + a.ID, token: getToken(t, student),
			wantCode: http.StatusOK, wantData: marshallObj(t, a),
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

func Test_assignmentApi_submitAndGrade(t *testing.T) {
	env := setup(t)
	ctx := context.Background()

	teacher := env.createUser(t, "Teacher", "One", "teacher@test.cd", user.RoleTeacher, true)
	student1 := env.createUser(t, "Hero", "Kid", "hero@test.cd", user.RoleStudent, true)
	student2 := env.createUser(t, "Side", "Kick", "side@test.cd", user.RoleStudent, true)

	room := env.createRoom(t, teacher, "Math 101", []user.User{teacher}, []user.User{student1, student2})
	a := env.createAssignment(t, room, teacher, "Quiz", assignment.NewAssignment{ClassWide: true})

	submitPath := "/v1/assignments/" + a.ID + "/submit"

	t.Run("teachers cannot submit", func(t *testing.T) {
		req, rec := newSubmitRequest(t, submitPath, getToken(t, teacher), "my answers")
		env.app.ServeHTTP(rec, req)
		if rec.Code != http.StatusForbidden {
			t.Errorf("code = %v; want 403", rec.Code)
		}
	})

	t.Run("disallowed file type rejected", func(t *testing.T) {
		req, rec := newSubmitRequest(t, submitPath, getToken(t, student1), "my answers", "virus.exe")
		env.app.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("code = %v; want 400", rec.Code)
		}
	})

	var sub assignment.StudentAssignment
	t.Run("student submits with file", func(t *testing.T) {
		req, rec := newSubmitRequest(t, submitPath, getToken(t, student1), "my answers", "hw.pdf")
		env.app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("code = %v; want 200, body %s", rec.Code, rec.Body.String())
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &sub); err != nil {
			t.Fatalf("unmarshalling StudentAssignment: %v", err)
		}
		if sub.Status != assignment.StatusCompleted {
			t.Errorf("status = %q; want completed", sub.Status)
		}
		if sub.SubmittedAt == nil {
			t.Error("SubmittedAt not set")
		}

		fls, err := env.assgSvc.Files(ctx, sub.ID)
		if err != nil {
			t.Fatalf("Files() failed: %v", err)
		}
		if len(fls) != 1 || fls[0].FileName != "hw.pdf" {
			t.Fatalf("files = %+v; want one hw.pdf", fls)
		}
	})

	t.Run("double submission rejected", func(t *testing.T) {
		req, rec := newSubmitRequest(t, submitPath, getToken(t, student1), "again")
		env.app.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("code = %v; want 400", rec.Code)
		}
	})

	gradePath := "/v1/submissions/" + sub.ID + "/grade"
	gradeBody := func(grade float64) []byte {
		return marshallObj(t, map[string]interface{}{"grade": grade, "feedback": "good work"})
	}

	t.Run("students cannot grade their own work", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPut, gradePath, getToken(t, student1), gradeBody(100))
		env.app.ServeHTTP(rec, req)
		if rec.Code != http.StatusForbidden {
			t.Errorf("code = %v; want 403", rec.Code)
		}
	})

	t.Run("other students cannot see the submission", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPut, gradePath, getToken(t, student2), gradeBody(100))
		env.app.ServeHTTP(rec, req)
		if rec.Code != http.StatusNotFound {
			t.Errorf("code = %v; want 404", rec.Code)
		}
	})

	t.Run("grade out of range rejected", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPut, gradePath, getToken(t, teacher), gradeBody(142))
		env.app.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("code = %v; want 400", rec.Code)
		}
	})

	t.Run("teacher grades", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPut, gradePath, getToken(t, teacher), gradeBody(85))
		env.app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("code = %v; want 200, body %s", rec.Code, rec.Body.String())
		}
		var graded assignment.StudentAssignment
		if err := json.Unmarshal(rec.Body.Bytes(), &graded); err != nil {
			t.Fatalf("unmarshalling StudentAssignment: %v", err)
		}
		if graded.Grade == nil || *graded.Grade != 85 {
			t.Errorf("grade = %v; want 85", graded.Grade)
		}
		if graded.Feedback != "good work" {
			t.Errorf("feedback = %q; want %q", graded.Feedback, "good work")
		}
	})

	t.Run("pending submission cannot be graded", func(t *testing.T) {
		pending, err := env.assgSvc.SubmissionForStudent(ctx, a, student2.ID)
		if err != nil {
			t.Fatalf("SubmissionForStudent() failed: %v", err)
		}
		req, rec := newAuthRequest(http.MethodPut, "/v1/submissions/"+pending.ID+"/grade", getToken(t, teacher), gradeBody(50))
		env.app.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("code = %v; want 400", rec.Code)
		}
	})
}

func Test_assignmentApi_files(t *testing.T) {
	env := setup(t)
	ctx := context.Background()

	teacher := env.createUser(t, "Teacher", "One", "teacher@test.cd", user.RoleTeacher, true)
	student := env.createUser(t, "Hero", "Kid", "hero@test.cd", user.RoleStudent, true)
	outsider := env.createUser(t, "Out", "Sider", "out@test.cd", user.RoleStudent, true)

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
	filePath := "/v1/files/" + fls[0].ID

	t.Run("outsider cannot download", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, filePath, getToken(t, outsider))
		env.app.ServeHTTP(rec, req)
		if rec.Code != http.StatusNotFound {
			t.Errorf("code = %v; want 404", rec.Code)
		}
	})

	t.Run("owner downloads original content", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, filePath, getToken(t, student))
		env.app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("code = %v; want 200", rec.Code)
		}
		if got := rec.Body.String(); got != "%PDF-1.4 homework" {
			t.Errorf("body = %q; want the uploaded bytes", got)
		}
		if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, "hw.pdf") {
			t.Errorf("Content-Disposition = %q; want the original file name", cd)
		}
	})

	t.Run("submitting student cannot delete their own file", func(t *testing.T) {
		tt := httpTest{
			wantCode: http.StatusForbidden, wantData: marshallObj(t, httpErr{Error: "permission denied"}),
		}
		req, rec := newAuthRequest(http.MethodDelete, filePath, getToken(t, student))
		env.app.ServeHTTP(rec, req)
		checkCodeAndData(t, tt, rec)
	})

	t.Run("outsider cannot see the file record at all", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodDelete, filePath, getToken(t, outsider))
		env.app.ServeHTTP(rec, req)
		if rec.Code != http.StatusNotFound {
			t.Errorf("code = %v; want 404", rec.Code)
		}
	})

	t.Run("teacher deletes the file record and blob", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodDelete, filePath, getToken(t, teacher))
		env.app.ServeHTTP(rec, req)
		if rec.Code != http.StatusNoContent {
			t.Fatalf("code = %v; want 204", rec.Code)
		}
		if _, err := env.assgSvc.GetFile(ctx, fls[0].ID); err == nil {
			t.Error("file record still exists after delete")
		}
	})
}

func Test_assignmentApi_remind(t *testing.T) {
	env := setup(t)

	teacher := env.createUser(t, "Teacher", "One", "teacher@test.cd", user.RoleTeacher, true)
	student1 := env.createUser(t, "Hero", "Kid", "hero@test.cd", user.RoleStudent, true)
	student2 := env.createUser(t, "Side", "Kick", "side@test.cd", user.RoleStudent, true)

	room := env.createRoom(t, teacher, "Math 101", []user.User{teacher}, []user.User{student1, student2})
	a := env.createAssignment(t, room, teacher, "Quiz", assignment.NewAssignment{ClassWide: true})

	req, rec := newSubmitRequest(t, "/v1/assignments/"+a.ID+"/submit", getToken(t, student1), "done")
	env.app.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("submit failed: code %v, body %s", rec.Code, rec.Body.String())
	}

	remindPath := "/v1/assignments/" + a.ID + "/remind"

	t.Run("students cannot remind", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, remindPath, getToken(t, student1))
		env.app.ServeHTTP(rec, req)
		if rec.Code != http.StatusForbidden {
			t.Errorf("code = %v; want 403", rec.Code)
		}
	})

	t.Run("only pending students are notified", func(t *testing.T) {
		tt := httpTest{
			wantCode: http.StatusOK,
			wantData: marshallObj(t, RemindResponse{Notified: 1}),
		}
		req, rec := newAuthRequest(http.MethodPost, remindPath, getToken(t, teacher))
		env.app.ServeHTTP(rec, req)
		checkCodeAndData(t, tt, rec)

		notifs, err := env.notifSvc.QueryForReceiver(context.Background(), student2.ID, true)
		if err != nil {
			t.Fatalf("QueryForReceiver() failed: %v", err)
		}
		if len(notifs) != 1 {
			t.Errorf("got %d notifications, want 1", len(notifs))
		}
	})
}

func Test_assignmentApi_destroy(t *testing.T) {
	env := setup(t)

	teacher := env.createUser(t, "Teacher", "One", "teacher@test.cd", user.RoleTeacher, true)
	student := env.createUser(t, "Hero", "Kid", "hero@test.cd", user.RoleStudent, true)

	room := env.createRoom(t, teacher, "Math 101", []user.User{teacher}, []user.User{student})
	a := env.createAssignment(t, room, teacher, "Quiz", assignment.NewAssignment{ClassWide: true})

	req, rec := newSubmitRequest(t, "/v1/assignments/"+a.ID+"/submit", getToken(t, student), "done")
	env.app.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("submit failed: code %v, body %s", rec.Code, rec.Body.String())
	}

	t.Run("students cannot delete", func(t *testing.T) {
		tt := httpTest{
			wantCode: http.StatusForbidden,
			wantData: marshallObj(t, httpErr{Error: "permission denied"}),
		}
		req, rec := newAuthRequest(http.MethodDelete, "/v1/assignments/"+a.ID, getToken(t, student))
		env.app.ServeHTTP(rec, req)
		checkCodeAndData(t, tt, rec)
	})

	t.Run("delete cascades to submission rows", func(t *testing.T) {
		ctx := context.Background()

		sub, err := env.assgSvc.SubmissionForStudent(ctx, a, student.ID)
		if err != nil {
			t.Fatalf("SubmissionForStudent() failed: %v", err)
		}

		req, rec := newAuthRequest(http.MethodDelete, "/v1/assignments/"+a.ID, getToken(t, teacher))
		env.app.ServeHTTP(rec, req)
		if rec.Code != http.StatusNoContent {
			t.Fatalf("code = %v; want 204", rec.Code)
		}

		if _, err = env.assgSvc.GetByID(ctx, a.ID); err != assignment.ErrNotFound {
			t.Errorf("GetByID() error = %v; want ErrNotFound", err)
		}
		if _, err = env.assgSvc.GetSubmission(ctx, sub.ID); err != assignment.ErrSubmissionNotFound {
			t.Errorf("GetSubmission() error = %v; want ErrSubmissionNotFound", err)
		}
	})
}
