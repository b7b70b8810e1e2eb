package logsvc

import (
	"bytes"
	"fmt"
	"log"
	"testing"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thesispool/thesispool/core"
	"github.com/thesispool/thesispool/core/student"
	"github.com/thesispool/thesispool/core/thesis"
	"github.com/thesispool/thesispool/core/user"
)

func newTestLogger(buf *bytes.Buffer) *RollbarLogger {
	l := NewRollbarLogger(log.New(buf, "", 0), &core.Config{Env: "TEST", Build: "test"})
	l.Enable(false)
	return l
}

func Test_newEntry(t *testing.T) {
	err := errors.New("boom")
	usr := user.User{Username: "miller", FirstName: "Anna", LastName: "Miller"}
	key := uuid.New()
	th := thesis.Thesis{
		SurrogateKey: key,
		Status:       thesis.StatusApplied,
		Student:      student.Student{ID: 123456},
		Supervisor:   thesis.Supervisor{ID: "miller"},
	}

	e := newEntry("msg", []interface{}{err, usr, map[string]interface{}{"key": "value"}, th, user.User{Username: "other"}, errors.New("second"), 42})
	assert.Equal(t, "msg", e.msg)
	assert.Equal(t, err, e.err)
	require.NotNil(t, e.actor)
	assert.Equal(t, "miller", e.actor.Username, "first user is the actor")
	assert.Equal(t, map[string]interface{}{
		"key":        "value",
		"thesis":     key.String(),
		"student":    123456,
		"supervisor": "miller",
		"status":     "AP",
	}, e.fields)
	require.Len(t, e.extras, 2)
	assert.EqualError(t, e.extras[0].(error), "second")
	assert.Equal(t, 42, e.extras[1])

	args := e.rollbarArgs()
	require.Len(t, args, 3, "users and extras are not forwarded")
	assert.Equal(t, "msg", args[0])
	assert.Equal(t, err, args[1])
	assert.Equal(t, e.fields, args[2])

	assert.Equal(t, []interface{}{"only msg"}, newEntry("only msg", nil).rollbarArgs())
}

func TestRollbarLogger_print(t *testing.T) {
	var buf bytes.Buffer
	l := newTestLogger(&buf)

	l.Warn("directory down", fmt.Errorf("connection refused"), user.User{Username: "miller"}, map[string]interface{}{"host": "ldap"})
	assert.Equal(t, "[WARN] directory down\n  connection refused\n  host: ldap\n  user: miller\n", buf.String())
}
