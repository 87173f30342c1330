package echoapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"

	"github.com/mwalimu/darasa/core"
	"github.com/mwalimu/darasa/core/activity"
	"github.com/mwalimu/darasa/core/analytics"
	"github.com/mwalimu/darasa/core/assignment"
	"github.com/mwalimu/darasa/core/classroom"
	"github.com/mwalimu/darasa/core/notification"
	"github.com/mwalimu/darasa/core/user"
	emailsvc "github.com/mwalimu/darasa/services/email"
	logsvc "github.com/mwalimu/darasa/services/logger"
	dummydb "github.com/mwalimu/darasa/storage/database/dummy"
	"github.com/mwalimu/darasa/storage/files"
)

var errMissingToken = httpErr{Error: "missing or malformed jwt"}

type testEnv struct {
	app  Server
	conf *core.Config

	usrRepo user.Repository
	usrSvc  user.Service

	roomSvc     classroom.Service
	assgSvc     assignment.Service
	notifSvc    notification.Service
	activitySvc activity.Service
	store       *files.LocalStore
}

func setup(t *testing.T) *testEnv {
	t.Helper()

	conf := core.NewTestConfig()
	conf.Debug = false // keep error responses deterministic
	conf.Uploads.Dir = t.TempDir()

	validate := validator.New()
	translator := newTestTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)

	logger := logsvc.NewRollbarLogger(log.New(io.Discard, "", 0), conf)
	logger.Enable(false)

	db, err := dummydb.Open()
	if err != nil {
		t.Fatalf("dummydb.Open() failed: %v", err)
	}
	usrRepo := dummydb.NewUserRepository(db)

	store, err := files.NewLocalStore(conf)
	if err != nil {
		t.Fatalf("files.NewLocalStore() failed: %v", err)
	}

	mailSvc := emailsvc.NewConsoleServiceMock(conf)
	usrSvc := user.NewService(usrRepo, mailSvc, conf)
	roomSvc := classroom.NewService(dummydb.NewClassroomRepository(db), store)
	notifSvc := notification.NewService(dummydb.NewNotificationRepository(db))
	activitySvc := activity.NewService(dummydb.NewActivityRepository(db))
	assgSvc := assignment.NewService(dummydb.NewAssignmentRepository(db), roomSvc, notifSvc, store)
	analyticsSvc := analytics.NewService(usrSvc, roomSvc, assgSvc, activitySvc)

	app := NewServer(
		&Options{
			Conf:            conf,
			Logger:          logger,
			DisableReqLogs:  true,
			Validate:        validate,
			Translator:      translator,
			UserSvc:         usrSvc,
			ClassroomSvc:    roomSvc,
			AssignmentSvc:   assgSvc,
			NotificationSvc: notifSvc,
			ActivitySvc:     activitySvc,
			AnalyticsSvc:    analyticsSvc,
			FileStore:       store,
			SignalShutdown:  func() {},
		},
	)

	return &testEnv{
		app:         app,
		conf:        conf,
		usrRepo:     usrRepo,
		usrSvc:      usrSvc,
		roomSvc:     roomSvc,
		assgSvc:     assgSvc,
		notifSvc:    notifSvc,
		activitySvc: activitySvc,
		store:       store,
	}
}

func newTestTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}

func (env *testEnv) createUser(t *testing.T, first, last, email, role string, isActive bool) user.User {
	t.Helper()
	now := time.Now().UTC()
	usr := user.User{
		FirstName: first,
		LastName:  last,
		Email:     email,
		Role:      role,
		IsActive:  isActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := usr.SetPassword("V3ryZtr0ngPa55!"); err != nil {
		t.Fatalf("SetPassword() failed: %v", err)
	}
	usr, err := env.usrRepo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

func (env *testEnv) createRoom(t *testing.T, creator user.User, name string, teachers, students []user.User) classroom.Classroom {
	t.Helper()
	ctx := context.Background()
	room, err := env.roomSvc.Create(ctx, creator.ID, classroom.NewClassroom{Name: name})
	if err != nil {
		t.Fatalf("roomSvc.Create() failed: %v", err)
	}
	for _, usr := range teachers {
		if err = env.roomSvc.AddTeacher(ctx, room.ID, usr.ID); err != nil {
			t.Fatalf("roomSvc.AddTeacher() failed: %v", err)
		}
	}
	for _, usr := range students {
		if err = env.roomSvc.AddStudent(ctx, room.ID, usr.ID); err != nil {
			t.Fatalf("roomSvc.AddStudent() failed: %v", err)
		}
	}
	return room
}

func (env *testEnv) createAssignment(t *testing.T, room classroom.Classroom, creator user.User, title string, na assignment.NewAssignment) assignment.Assignment {
	t.Helper()
	na.Title = title
	a, err := env.assgSvc.Create(context.Background(), room, creator.ID, na)
	if err != nil {
		t.Fatalf("assgSvc.Create() failed: %v", err)
	}
	return a
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
	extra    interface{}
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

func getToken(t *testing.T, usr user.User) string {
	t.Helper()
	claims := GetUserClaims(usr)
	token, err := GenerateToken(claims)
	if err != nil {
		t.Fatalf("getToken() failed: %v", err)
	}
	return token
}

func marshallObj(t *testing.T, obj interface{}) []byte {
	t.Helper()
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marshallObj() failed: %v", err)
	}
	return data
}

func marshallList(t *testing.T, objs ...interface{}) []byte {
	t.Helper()
	if objs == nil {
		objs = []interface{}{} // handlers render empty lists as [], never null
	}
	data, err := json.Marshal(objs)
	if err != nil {
		t.Fatalf("marshallList() failed: %v", err)
	}
	return data
}

func jsonBytesEqual(t *testing.T, b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	if reflect.DeepEqual(j1, j2) {
		return true, nil
	}
	if j1 == nil || j2 == nil {
		return false, nil
	}
	return assert.ElementsMatch(t, j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	t.Helper()
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
	}
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(t, rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}
