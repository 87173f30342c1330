package main

import (
	"context"
	"expvar"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"

	echoapi "github.com/mwalimu/darasa/apps/api/echo"
	"github.com/mwalimu/darasa/core"
	"github.com/mwalimu/darasa/core/activity"
	"github.com/mwalimu/darasa/core/analytics"
	"github.com/mwalimu/darasa/core/assignment"
	"github.com/mwalimu/darasa/core/classroom"
	"github.com/mwalimu/darasa/core/notification"
	"github.com/mwalimu/darasa/core/user"
	emailsvc "github.com/mwalimu/darasa/services/email"
	logsvc "github.com/mwalimu/darasa/services/logger"
	"github.com/mwalimu/darasa/storage/database"
	pgrepos "github.com/mwalimu/darasa/storage/database/postgres"
	"github.com/mwalimu/darasa/storage/files"
)

func main() {
	// =========================================================================
	// Set up Dependencies

	conf := core.NewConfig()

	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	logger.Enable(!conf.Debug)

	db, err := setUpDB(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	defer func() {
		if err = db.Close(); err != nil {
			logger.Error(fmt.Sprintf("closing database: %v", err), err)
		}
	}()

	var mailSvc core.EmailService
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService(conf)
	} else {
		mailSvc = emailsvc.NewSendgridService(conf, logger)
	}

	fileStore, err := files.NewLocalStore(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up file store: %v", err), err)
	}

	usrSvc := user.NewService(pgrepos.NewUserRepository(db), mailSvc, conf)
	roomSvc := classroom.NewService(pgrepos.NewClassroomRepository(db), fileStore)
	notifSvc := notification.NewService(pgrepos.NewNotificationRepository(db))
	activitySvc := activity.NewService(pgrepos.NewActivityRepository(db))
	assgSvc := assignment.NewService(pgrepos.NewAssignmentRepository(db), roomSvc, notifSvc, fileStore)
	analyticsSvc := analytics.NewService(usrSvc, roomSvc, assgSvc, activitySvc)

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	validate := validator.New()
	translator := newTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)

	core.ParseEmailTemplates(conf, logger)
	user.LoadCommonPasswords(conf, logger)

	// =========================================================================
	// Start Debug Service
	//
	// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
	// /debug/vars - Added to the default mux by importing the expvar package.

	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)

	go func() {
		if err := http.ListenAndServe(conf.Server.DebugHost, http.DefaultServeMux); err != nil {
			logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
	}()

	// =========================================================================
	// Start API Service

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	server := echoapi.NewServer(
		&echoapi.Options{
			Conf:            conf,
			Logger:          logger,
			Validate:        validate,
			Translator:      translator,
			UserSvc:         usrSvc,
			ClassroomSvc:    roomSvc,
			AssignmentSvc:   assgSvc,
			NotificationSvc: notifSvc,
			ActivitySvc:     activitySvc,
			AnalyticsSvc:    analyticsSvc,
			FileStore:       fileStore,
			SignalShutdown:  func() { shutdown <- syscall.SIGTERM },
		},
	)

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info(fmt.Sprintf("API listening on %s", conf.Server.Addr()))
		serverErrors <- server.Start()
	}()

	// =========================================================================
	// Shutdown

	select {
	case err = <-serverErrors:
		logger.Fatal(fmt.Sprintf("server error: %v", err), err)

	case sig := <-shutdown:
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests a deadline for completion
		ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer cancel()

		if err = server.Stop(ctx); err != nil {
			logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)
		}
	}
}

func setUpDB(conf *core.Config) (*sqlx.DB, error) {
	if err := database.CreateIfNotExist(conf); err != nil {
		return nil, err
	}

	db, err := database.Open(conf)
	if err != nil {
		return nil, err
	}

	if err = database.Migrate(db.DB); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func newTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}
