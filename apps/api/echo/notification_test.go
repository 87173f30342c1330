package echoapi

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/mwalimu/darasa/core/notification"
	"github.com/mwalimu/darasa/core/user"
)

func Test_notificationApi(t *testing.T) {
	env := setup(t)
	ctx := context.Background()

	teacher := env.createUser(t, "Teacher", "One", "teacher@test.cd", user.RoleTeacher, true)
	student := env.createUser(t, "Hero", "Kid", "hero@test.cd", user.RoleStudent, true)
	other := env.createUser(t, "Side", "Kick", "side@test.cd", user.RoleStudent, true)

	t.Run("teacher sends notifications", func(t *testing.T) {
		tt := httpTest{wantCode: http.StatusCreated}
		body := marshallObj(t, NotifyRequest{
			ReceiverIDs: []string{student.ID, other.ID},
			Title:       "Class moved",
			Message:     "We meet in room B tomorrow.",
		})
		req, rec := newAuthRequest(http.MethodPost, "/v1/notifications", getToken(t, teacher), body)
		env.app.ServeHTTP(rec, req)
		checkCodeAndData(t, tt, rec)
	})

	t.Run("students cannot send", func(t *testing.T) {
		body := marshallObj(t, NotifyRequest{ReceiverIDs: []string{other.ID}, Title: "hi"})
		req, rec := newAuthRequest(http.MethodPost, "/v1/notifications", getToken(t, student), body)
		env.app.ServeHTTP(rec, req)
		if rec.Code != http.StatusForbidden {
			t.Errorf("code = %v; want 403", rec.Code)
		}
	})

	var notif notification.Notification
	t.Run("receiver lists own notifications", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/notifications", getToken(t, student))
		env.app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("code = %v; want 200", rec.Code)
		}
		var notifs []notification.Notification
		if err := json.Unmarshal(rec.Body.Bytes(), &notifs); err != nil {
			t.Fatalf("unmarshalling notifications: %v", err)
		}
		if len(notifs) != 1 {
			t.Fatalf("got %d notifications, want 1", len(notifs))
		}
		notif = notifs[0]
		if notif.ReceiverID != student.ID || notif.IsRead {
			t.Errorf("notification = %+v; want unread, for student", notif)
		}
	})

	t.Run("others cannot mark it read", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/notifications/"+notif.ID+"/read", getToken(t, other))
		env.app.ServeHTTP(rec, req)
		if rec.Code != http.StatusNotFound {
			t.Errorf("code = %v; want 404", rec.Code)
		}
	})

	t.Run("receiver marks it read", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/notifications/"+notif.ID+"/read", getToken(t, student))
		env.app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("code = %v; want 200", rec.Code)
		}
		var read notification.Notification
		if err := json.Unmarshal(rec.Body.Bytes(), &read); err != nil {
			t.Fatalf("unmarshalling notification: %v", err)
		}
		if !read.IsRead {
			t.Error("notification still unread")
		}

		unread, err := env.notifSvc.QueryForReceiver(ctx, student.ID, true)
		if err != nil {
			t.Fatalf("QueryForReceiver() failed: %v", err)
		}
		if len(unread) != 0 {
			t.Errorf("got %d unread, want 0", len(unread))
		}
	})

	t.Run("receiver deletes it", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodDelete, "/v1/notifications/"+notif.ID, getToken(t, student))
		env.app.ServeHTTP(rec, req)
		if rec.Code != http.StatusNoContent {
			t.Fatalf("code = %v; want 204", rec.Code)
		}
		if _, err := env.notifSvc.GetByID(ctx, notif.ID); err == nil {
			t.Error("notification still exists after delete")
		}
	})
}
