package main

import (
	"context"
	"database/sql"
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

	echoapi "github.com/lojf/nextgen/apps/api/echo"
	"github.com/lojf/nextgen/core"
	"github.com/lojf/nextgen/core/attendance"
	"github.com/lojf/nextgen/core/child"
	"github.com/lojf/nextgen/core/messaging"
	"github.com/lojf/nextgen/core/schedule"
	"github.com/lojf/nextgen/core/staff"
	cachesvc "github.com/lojf/nextgen/services/cache"
	emailsvc "github.com/lojf/nextgen/services/email"
	filestoresvc "github.com/lojf/nextgen/services/filestore"
	logsvc "github.com/lojf/nextgen/services/logger"
	schedulingsvc "github.com/lojf/nextgen/services/scheduling"
	"github.com/lojf/nextgen/storage/database"
	sqlxrepos "github.com/lojf/nextgen/storage/database/sqlx"
)

func main() {
	// =========================================================================
	// Set up Dependencies

	conf := core.NewConfig()

	// set up loggers
	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	logger.Enable(!conf.Debug)

	// set up DB
	db, err := setUpDB(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	defer func() {
		if err = db.Close(); err != nil {
			logger.Error("failed to close DB", err)
		}
	}()

	// set up cache; fall back to an in-process cache when redis is unreachable
	var cache core.Cache
	if redisCache, cerr := cachesvc.NewRedisCache(conf); cerr == nil {
		defer func() { _ = redisCache.Close() }()
		cache = redisCache
	} else {
		logger.Warn(fmt.Sprintf("redis unavailable, using in-memory cache: %v", cerr))
		cache = cachesvc.NewMemoryCache()
	}

	// set up object storage
	store, err := filestoresvc.NewMinioStore(context.Background(), conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up object storage: %v", err), err)
	}

	// set up services
	var mailSvc core.EmailService
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService(conf)
	} else {
		mailSvc = emailsvc.NewSendgridService(conf, logger)
	}

	staffSvc := staff.NewService(sqlxrepos.NewStaffRepository(db), mailSvc, conf)
	childSvc := child.NewService(sqlxrepos.NewChildRepository(db))
	scheduleSvc := schedule.NewService(
		sqlxrepos.NewScheduleRepository(db), staffSvc, schedulingsvc.NewClient(conf), conf)
	attendanceSvc := attendance.NewService(
		sqlxrepos.NewAttendanceRepository(db), childSvc, scheduleSvc, cache, conf)
	messagingSvc := messaging.NewService(sqlxrepos.NewMessagingRepository(db), mailSvc, conf)

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	validate := validator.New()
	translator := newTranslator()
	core.InitValidators(validate, translator)
	staff.InitValidators(validate, translator)

	// =========================================================================
	// Start Debug Service
	//
	// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
	// /debug/vars - Added to the default mux by importing the expvar package.

	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)

	go func() {
		if err := http.ListenAndServe(conf.Server.DebugAddr, http.DefaultServeMux); err != nil {
			logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
	}()

	// =========================================================================
	// Start API Service

	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, os.Interrupt, syscall.SIGTERM)

	server := echoapi.NewServer(&echoapi.Options{
		Addr:          conf.Server.Addr,
		Conf:          conf,
		Logger:        logger,
		StaffSvc:      staffSvc,
		ChildSvc:      childSvc,
		ScheduleSvc:   scheduleSvc,
		AttendanceSvc: attendanceSvc,
		MessagingSvc:  messagingSvc,
		FileStore:     store,
		MailSvc:       mailSvc,
		Shutdown:      func() { shutdownCh <- syscall.SIGTERM },
	})

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info(fmt.Sprintf("API server listening on %s", conf.Server.Addr))
		serverErrors <- server.Start()
	}()

	// =========================================================================
	// Shutdown

	select {
	case err = <-serverErrors:
		logger.Fatal(fmt.Sprintf("server error: %v", err), err)

	case sig := <-shutdownCh:
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests a deadline for completion
		ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer cancel()

		if err = server.Stop(ctx); err != nil {
			logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)
		}
	}
}

func setUpDB(conf *core.Config) (*sql.DB, error) {
	if err := database.CreateIfNotExist(conf); err != nil {
		return nil, err
	}

	db, err := database.Open(conf)
	if err != nil {
		return nil, err
	}

	if err = database.Migrate(db); err != nil {
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
