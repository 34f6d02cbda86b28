package main

import (
	"log"
	"os"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/profile"
	"github.com/trezcool/mahudhurio/core/user"
	logsvc "github.com/trezcool/mahudhurio/services/logger"
	"github.com/trezcool/mahudhurio/storage"
	"github.com/trezcool/mahudhurio/storage/database"
)

var logger core.Logger

func main() {
	conf := core.NewConfig()
	rollbarLogger := logsvc.NewRollbarLogger(log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile), conf)
	logger = rollbarLogger

	code := 0
	defer func() {
		_ = rollbarLogger.Close()
		os.Exit(code)
	}()

	cli := commandLine{out: os.Stdout}
	if len(os.Args) > 1 && os.Args[1] == "migrate" {
		if conf.Storage.Driver == core.StoragePostgres {
			errAndDie(database.CreateIfNotExist(conf))
			db, err := database.Open(conf)
			errAndDie(err)
			defer func() { _ = db.Close() }()
			cli.db = db
		}
	} else {
		store, err := storage.Open(conf)
		errAndDie(err)
		defer func() { _ = store.Close() }()

		translator := core.NewTranslator()
		validate := validator.New()
		core.InitValidators(validate, translator)
		user.RegisterValidators(validate, translator)

		cli.usrSvc = user.NewService(store.Users, validate, nil)
		cli.profileSvc = profile.NewService(store.Profiles, profile.Options{Logger: logger})
	}

	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			logger.Error("command failed", err)
		}
		code = 1
	}
}

func errAndDie(err error) {
	if err != nil {
		logger.Fatal(err.Error(), err)
	}
}
