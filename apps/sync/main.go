package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/lojf/nextgen/core"
	"github.com/lojf/nextgen/core/schedule"
	"github.com/lojf/nextgen/core/staff"
	emailsvc "github.com/lojf/nextgen/services/email"
	logsvc "github.com/lojf/nextgen/services/logger"
	schedulingsvc "github.com/lojf/nextgen/services/scheduling"
	"github.com/lojf/nextgen/storage/database"
	sqlxrepos "github.com/lojf/nextgen/storage/database/sqlx"
)

// One-shot reconciliation of assignments against the scheduling SaaS.
// Meant to run from cron; exits non-zero on failure.
func main() {
	conf := core.NewConfig()

	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "SYNC : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	logger.Enable(!conf.Debug)

	db, err := database.Open(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("opening database: %v", err), err)
	}
	defer db.Close()
	if err = db.Ping(); err != nil {
		logger.Fatal(fmt.Sprintf("pinging database: %v", err), err)
	}

	var mailSvc core.EmailService
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService(conf)
	} else {
		mailSvc = emailsvc.NewSendgridService(conf, logger)
	}

	staffSvc := staff.NewService(sqlxrepos.NewStaffRepository(db), mailSvc, conf)
	scheduleSvc := schedule.NewService(
		sqlxrepos.NewScheduleRepository(db), staffSvc, schedulingsvc.NewClient(conf), conf)

	res, err := scheduleSvc.Sync(context.Background())
	if err != nil {
		logger.Fatal(fmt.Sprintf("sync failed: %v", err), err)
	}
	logger.Info(fmt.Sprintf(
		"sync done: fetched=%d created=%d updated=%d skipped=%d deleted=%d",
		res.Fetched, res.Created, res.Updated, res.Skipped, res.Deleted,
	))
}
