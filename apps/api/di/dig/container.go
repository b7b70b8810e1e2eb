package dig_container

import (
	"fmt"
	"log"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	echoapi "github.com/thesispool/thesispool/apps/api/echo"
	"github.com/thesispool/thesispool/core"
	"github.com/thesispool/thesispool/core/student"
	"github.com/thesispool/thesispool/core/thesis"
	"github.com/thesispool/thesispool/core/user"
	"github.com/thesispool/thesispool/services/directory"
	emailsvc "github.com/thesispool/thesispool/services/email"
	logsvc "github.com/thesispool/thesispool/services/logger"
	"github.com/thesispool/thesispool/services/pdf"
	"github.com/thesispool/thesispool/storage/database"
	sqlxrepos "github.com/thesispool/thesispool/storage/database/sqlx"
	"github.com/thesispool/thesispool/storage/faculty"
)

type DBLoggerParam struct {
	dig.In
	Logger core.Logger `name:"dbLogger"`
}

func newLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "API : ", log.LstdFlags)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug)
	return logger
}

func newDBLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug)
	return logger
}

func newDB(conf *core.Config, loggerParam DBLoggerParam) *sqlx.DB {
	setUp := func() (*sqlx.DB, error) {
		if err := database.CreateIfNotExist(conf); err != nil {
			return nil, err
		}

		db, err := database.Open(conf)
		if err != nil {
			return nil, err
		}

		if err = database.Migrate(db.DB); err != nil {
			return nil, err
		}
		return db, nil
	}

	db, err := setUp()
	if err != nil {
		loggerParam.Logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	return db
}

// newRoster connects to the faculty database. When disabled, students are served from the local cache only.
func newRoster(conf *core.Config, loggerParam DBLoggerParam) student.Roster {
	if !conf.Faculty.Enabled {
		return nil
	}
	db, err := faculty.Open(conf)
	if err != nil {
		loggerParam.Logger.Error(fmt.Sprintf("opening faculty database: %v", err), err)
		return nil
	}
	return faculty.NewRoster(db)
}

func newEmailService(conf *core.Config, logger core.Logger) core.EmailService {
	if conf.Debug {
		return emailsvc.NewConsoleService(conf, logger)
	}
	return emailsvc.NewSendgridService(conf, logger)
}

func newServerDeps(
	usrSvc *user.Service,
	thesisSvc *thesis.Service,
	students *student.Manager,
	gen echoapi.PDFGenerator,
) *echoapi.Deps {
	return &echoapi.Deps{
		UserSvc:   usrSvc,
		ThesisSvc: thesisSvc,
		Students:  students,
		PDF:       gen,
	}
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newDB))
	must(c.Provide(database.NewTxRunner))
	must(c.Provide(newEmailService))
	must(c.Provide(validator.New))
	must(c.Provide(core.NewTranslator))

	// repositories
	must(c.Provide(sqlxrepos.NewUserRepository, dig.As(new(user.Repository))))
	must(c.Provide(sqlxrepos.NewThesisRepository, dig.As(new(thesis.Repository))))
	must(c.Provide(sqlxrepos.NewSupervisorRepository, dig.As(new(thesis.SupervisorRepository))))
	must(c.Provide(sqlxrepos.NewAssessorRepository, dig.As(new(thesis.AssessorRepository))))
	must(c.Provide(sqlxrepos.NewChairmanRepository, dig.As(new(thesis.ChairmanRepository))))
	must(c.Provide(sqlxrepos.NewStudentCache, dig.As(new(student.Cache))))
	must(c.Provide(newRoster))

	// services
	must(c.Provide(directory.NewDirectory, dig.As(new(thesis.Directory), new(user.Authenticator))))
	must(c.Provide(pdf.NewGenerator, dig.As(new(echoapi.PDFGenerator))))
	must(c.Provide(student.NewManager))
	must(c.Provide(thesis.NewService))
	must(c.Provide(user.NewService))

	must(c.Provide(newServerDeps))
	must(c.Provide(echoapi.NewServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
