package main

import (
	"errors"

	"github.com/mwalimu/darasa/storage/database"
)

var runMigrationFunc = database.RunMigrationCommand // mockable

var errNoDatabase = errors.New("database not configured")

// migrate runs a goose command against the embedded migrations;
// no arguments means "up".
func (cli *commandLine) migrate(args []string) error {
	if cli.db == nil {
		return errNoDatabase
	}
	command := "up"
	if len(args) > 0 {
		command = args[0]
		args = args[1:]
	}
	return runMigrationFunc(cli.db.DB, command, args...)
}
