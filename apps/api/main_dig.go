package main

import (
	"context"
	"expvar"
	"fmt"
	"log"
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/dig"

	dig_container "github.com/thesispool/thesispool/apps/api/di/dig"
	echoapi "github.com/thesispool/thesispool/apps/api/echo"
	"github.com/thesispool/thesispool/core"
	"github.com/thesispool/thesispool/core/student"
	"github.com/thesispool/thesispool/core/thesis"
	"github.com/thesispool/thesispool/core/user"
	appfs "github.com/thesispool/thesispool/fs"
)

// apiApp is the API process as resolved from the dig container.
type apiApp struct {
	dig.In

	Conf       *core.Config
	Logger     core.Logger
	DBLogger   core.Logger `name:"dbLogger"`
	DB         *sqlx.DB
	Validate   *validator.Validate
	Translator ut.Translator
	Theses     *thesis.Service
	Server     *echoapi.Server
}

func startWithDig() {
	c := dig_container.New()
	must(c.Invoke(func(app apiApp) {
		app.Logger.Info(fmt.Sprintf("Application initializing : version %q", app.Conf.Build))
		app.init()

		defer func() {
			if err := app.DB.Close(); err != nil {
				app.DBLogger.Fatal("Failed to close", err)
			}
		}()
		defer app.Logger.Info("Application stopped")

		go app.serveDebug()
		go app.Server.Start()
		app.waitForShutdown()
	}))
}

// init registers the validators and loads the embedded templates and password list.
func (app apiApp) init() {
	core.InitValidators(app.Validate, app.Translator)
	student.InitValidators(app.Validate, app.Translator)
	thesis.InitValidators(app.Validate, app.Translator)
	user.InitValidators(app.Validate, app.Translator)

	core.ParseEmailTemplates(appfs.FS, appfs.EmailTemplatesDir, !app.Conf.Debug, app.Logger)
	user.LoadCommonPasswords(appfs.FS, appfs.CommonPasswordsGZ, app.Logger)
}

// serveDebug exposes /debug/vars on the debug host.
func (app apiApp) serveDebug() {
	expvar.NewString("build").Set(app.Conf.Build)
	expvar.NewString("env").Set(app.Conf.Env)
	expvar.Publish("pending_approvals", expvar.Func(func() interface{} {
		theses, err := app.Theses.PendingApprovals(context.Background())
		if err != nil {
			return err.Error()
		}
		return len(theses)
	}))

	if err := http.ListenAndServe(app.Conf.Server.DebugHost, http.DefaultServeMux); err != nil {
		app.Logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
	}
}

// waitForShutdown blocks until the server fails or is asked to stop, then drains outstanding requests.
func (app apiApp) waitForShutdown() {
	select {
	case err := <-app.Server.Errors():
		app.Logger.Fatal(fmt.Sprintf("server error: %v", err), err)

	case sig := <-app.Server.ShutdownSignal():
		app.Logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		ctx, cancel := context.WithTimeout(context.Background(), app.Conf.Server.ShutdownTimeout)
		defer cancel()

		if err := app.Server.Shutdown(ctx); err != nil {
			app.Logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

			if err = app.Server.Close(); err != nil {
				app.Logger.Fatal(fmt.Sprintf("could not force stop server: %v", err), err)
			}
		}
	}
}

func must(err error) {
	if err != nil {
		log.Fatal(err)
	}
}
