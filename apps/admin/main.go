package main

import (
	"log"
	"os"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/enrolment"
	"github.com/trezcool/shule/storage/database"
	"github.com/trezcool/shule/storage/database/gormrepos"
)

var logger *log.Logger

func main() {
	logger = log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	conf := core.NewConfig()

	// set up DB
	db, err := database.Open(conf)
	errAndDie(err)
	gdb, err := database.NewGorm(db, conf, logger)
	errAndDie(err)
	store := gormrepos.NewStore(gdb)

	// start CLI
	cli := commandLine{
		db:      db.DB,
		usrRepo: gormrepos.NewUserRepository(store),
		syncer: enrolment.NewService(
			gormrepos.NewEnrolmentRepository(store), gormrepos.NewSchoolRepository(store), store, store,
		),
		out: os.Stdout,
	}
	err = cli.run(os.Args)
	_ = db.Close()
	if err != nil {
		if err != errHelp {
			logger.Printf("\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}

func errAndDie(err error) {
	if err != nil {
		logger.Fatal(err)
	}
}
