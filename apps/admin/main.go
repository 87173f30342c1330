package main

import (
	"log"
	"os"

	"github.com/jmoiron/sqlx"

	"github.com/mwalimu/darasa/core"
	"github.com/mwalimu/darasa/storage/database"
	pgrepos "github.com/mwalimu/darasa/storage/database/postgres"
)

var logger *log.Logger

func main() {
	defer os.Exit(0)

	logger = log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)

	conf := core.NewConfig()

	// set up DB
	var db *sqlx.DB
	err := database.CreateIfNotExist(conf)
	errAndDie(err)
	db, err = database.Open(conf)
	errAndDie(err)
	defer db.Close()

	// start CLI
	cli := commandLine{
		db:      db,
		usrRepo: pgrepos.NewUserRepository(db),
	}
	if err := cli.run(os.Args); err != nil {
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
