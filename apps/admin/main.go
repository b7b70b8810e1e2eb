package main

import (
	"log"
	"os"

	"github.com/go-playground/validator/v10"

	"github.com/thesispool/thesispool/core"
	"github.com/thesispool/thesispool/core/user"
	appfs "github.com/thesispool/thesispool/fs"
	logsvc "github.com/thesispool/thesispool/services/logger"
	"github.com/thesispool/thesispool/storage/database"
	sqlxrepos "github.com/thesispool/thesispool/storage/database/sqlx"
)

func main() {
	conf := core.NewConfig()

	stdLogger := log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug)

	translator := core.NewTranslator()
	validate := validator.New()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	user.LoadCommonPasswords(appfs.FS, appfs.CommonPasswordsGZ, logger)

	// set up DB
	db, err := database.Open(conf)
	if err != nil {
		logger.Fatal("opening database", err)
	}

	// start CLI
	cli := commandLine{
		db:         db.DB,
		usrSvc:     user.NewService(conf, logger, sqlxrepos.NewUserRepository(db), nil /* local users only */),
		validate:   validate,
		translator: translator,
	}
	err = cli.run(os.Args)
	_ = db.Close()
	if err != nil {
		if err != errHelp {
			stdLogger.Printf("\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}
