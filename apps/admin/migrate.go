package main

import (
	"github.com/pkg/errors"

	"github.com/trezcool/mahudhurio/storage/database"
)

var runMigrationsFunc = database.RunMigrations // mockable

var errNoDatabase = errors.New("migrations only apply to the postgres storage driver")

func (cli *commandLine) migrate(args []string) error {
	if cli.db == nil {
		return errNoDatabase
	}
	return runMigrationsFunc(cli.db, args[0], args[1:]...)
}
