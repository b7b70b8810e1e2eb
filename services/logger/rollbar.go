package logsvc

import (
	"log"

	"github.com/rollbar/rollbar-go"
	"github.com/rollbar/rollbar-go/errors"

	"github.com/thesispool/thesispool/core"
	"github.com/thesispool/thesispool/core/thesis"
	"github.com/thesispool/thesispool/core/user"
)

// RollbarLogger prints to a std logger and reports to rollbar.
//
// Log arguments may be an error, a user.User (the acting user), a thesis.Thesis
// or a map[string]interface{} of custom fields; anything else is only printed.
type RollbarLogger struct {
	std *log.Logger
}

var _ core.Logger = (*RollbarLogger)(nil) // interface compliance check

func NewRollbarLogger(std *log.Logger, conf *core.Config) *RollbarLogger {
	rollbar.SetToken(conf.RollbarToken)
	rollbar.SetEnvironment(conf.Env)
	rollbar.SetServerHost(conf.Server.Host)
	rollbar.SetCodeVersion(conf.Build)
	rollbar.SetStackTracer(errors.StackTracer)
	return &RollbarLogger{std: std}
}

func (l RollbarLogger) Enable(enabled bool) {
	rollbar.SetEnabled(enabled)
}

// entry is one log call sorted into what rollbar understands.
type entry struct {
	msg    string
	err    error
	actor  *user.User
	fields map[string]interface{}
	extras []interface{}
}

func newEntry(msg string, args []interface{}) entry {
	e := entry{msg: msg}
	for _, arg := range args {
		switch a := arg.(type) {
		case error:
			if e.err == nil {
				e.err = a
				continue
			}
		case user.User:
			if e.actor == nil {
				e.actor = &a
			}
			continue
		case thesis.Thesis:
			e.addFields(map[string]interface{}{
				"thesis":     a.SurrogateKey.String(),
				"student":    a.Student.ID,
				"supervisor": a.Supervisor.ID,
				"status":     string(a.Status),
			})
			continue
		case map[string]interface{}:
			e.addFields(a)
			continue
		}
		e.extras = append(e.extras, arg)
	}
	return e
}

func (e *entry) addFields(fields map[string]interface{}) {
	if e.fields == nil {
		e.fields = make(map[string]interface{}, len(fields))
	}
	for k, v := range fields {
		e.fields[k] = v
	}
}

// rollbarArgs returns the arguments of the rollbar call; the acting user is set as the rollbar person.
func (e entry) rollbarArgs() []interface{} {
	if e.actor != nil {
		rollbar.SetPerson(e.actor.Username, e.actor.Name(), "")
	} else {
		rollbar.ClearPerson()
	}
	args := []interface{}{e.msg}
	if e.err != nil {
		args = append(args, e.err)
	}
	if e.fields != nil {
		args = append(args, e.fields)
	}
	return args
}

func (l RollbarLogger) print(level string, e entry) {
	l.std.Printf("[%s] %s", level, e.msg)
	if e.err != nil {
		l.std.Printf("  %+v", e.err)
	}
	for k, v := range e.fields {
		l.std.Printf("  %s: %v", k, v)
	}
	for _, arg := range e.extras {
		l.std.Printf("  %+v", arg)
	}
	if e.actor != nil {
		l.std.Printf("  user: %s", e.actor.Username)
	}
}

func (l RollbarLogger) Debug(msg string, args ...interface{}) {
	e := newEntry(msg, args)
	rollbar.Debug(e.rollbarArgs()...)
	l.print("DEBUG", e)
}

func (l RollbarLogger) Info(msg string, args ...interface{}) {
	e := newEntry(msg, args)
	rollbar.Info(e.rollbarArgs()...)
	l.print("INFO", e)
}

func (l RollbarLogger) Warn(msg string, args ...interface{}) {
	e := newEntry(msg, args)
	rollbar.Warning(e.rollbarArgs()...)
	l.print("WARN", e)
}

func (l RollbarLogger) Error(msg string, args ...interface{}) {
	e := newEntry(msg, args)
	rollbar.Error(e.rollbarArgs()...)
	l.print("ERROR", e)
}

func (l RollbarLogger) Fatal(msg string, args ...interface{}) {
	e := newEntry(msg, args)
	rollbar.Critical(e.rollbarArgs()...)
	l.print("FATAL", e)
	rollbar.Wait()
	l.std.Fatal(msg)
}
