package main

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"strconv"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thesispool/thesispool/core"
	"github.com/thesispool/thesispool/core/user"
	inmemdb "github.com/thesispool/thesispool/storage/database/inmem"
)

const strongPwd = "Gr4nd-Th3sis!"

type nopLogger struct{}

func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
func (nopLogger) Fatal(string, ...interface{}) {}

func setup(t *testing.T) (*commandLine, user.Repository) {
	t.Helper()
	translator := core.NewTranslator()
	validate := validator.New()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)

	repo := inmemdb.NewUserRepository(inmemdb.Open())
	return &commandLine{
		usrSvc:     user.NewService(&core.Config{}, nopLogger{}, repo, nil),
		validate:   validate,
		translator: translator,
	}, repo
}

// mockPasswords answers successive prompts with pwds, then with empty input.
func mockPasswords(t *testing.T, pwds ...string) {
	orig := readPasswordFunc
	t.Cleanup(func() { readPasswordFunc = orig })

	readPasswordFunc = func(fd int) ([]byte, error) {
		if len(pwds) == 0 {
			return nil, nil
		}
		pwd := pwds[0]
		pwds = pwds[1:]
		return []byte(pwd), nil
	}
}

type cliTest struct {
	name       string
	args       []string // without program name
	pwds       []string
	wantErr    error
	wantErrStr string
}

func (tt cliTest) check(t *testing.T, err error) {
	t.Helper()
	switch {
	case tt.wantErr != nil:
		assert.Equal(t, tt.wantErr, err)
	case tt.wantErrStr != "":
		require.Error(t, err)
		assert.Contains(t, err.Error(), tt.wantErrStr)
	default:
		assert.NoError(t, err)
	}
}

func Test_commandLine_run(t *testing.T) {
	cli, _ := setup(t)

	tests := []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, cli.run(append([]string{"admin"}, tt.args...)))
		})
	}
}

func Test_commandLine_migrate(t *testing.T) {
	cli, _ := setup(t)

	var gotCommand, gotDir string
	orig := gooseRunFunc
	t.Cleanup(func() { gooseRunFunc = orig })
	gooseRunFunc = func(command string, db *sql.DB, fsys fs.FS, dir string, args ...string) error {
		gotCommand, gotDir = command, dir
		switch command {
		case "up", "up-by-one", "down", "fix", "redo", "reset", "status", "version": // pass
		case "up-to", "down-to":
			if len(args) == 0 {
				return fmt.Errorf("%s must be of form: goose [OPTIONS] DRIVER DBSTRING %s VERSION", command, command)
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		case "create":
			if len(args) == 0 {
				return fmt.Errorf("create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]")
			}
		default:
			return fmt.Errorf("%q: no such command", command)
		}
		return nil
	}

	tests := []cliTest{
		{name: "no subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: "\"lol\": no such command"},
		{name: "up-to: no args", args: []string{"migrate", "up-to"}, wantErrStr: "up-to must be of form"},
		{name: "up-to: non-int arg", args: []string{"migrate", "up-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "create: no args", args: []string{"migrate", "create"}, wantErrStr: "create must be of form"},
		{name: "down-to: non-int arg", args: []string{"migrate", "down-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "up-to", args: []string{"migrate", "up-to", "2"}},
		{name: "down-to", args: []string{"migrate", "down-to", "1"}},
		{name: "redo", args: []string{"migrate", "redo"}},
		{name: "status", args: []string{"migrate", "status"}},
		{name: "create", args: []string{"migrate", "create", "thesis_notes", "sql"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, cli.run(append([]string{"admin"}, tt.args...)))
		})
	}

	assert.Equal(t, "create", gotCommand)
	assert.Equal(t, "migrations", gotDir)
}

func Test_commandLine_addUser(t *testing.T) {
	cli, repo := setup(t)
	ctx := context.Background()

	tests := []cliTest{
		{name: "no args", args: []string{"adduser"}, wantErr: errHelp},
		{name: "no password", args: []string{"adduser", "-username", "office"}, wantErr: errHelp},
		{
			name: "invalid username", args: []string{"adduser", "-username", "Office Admin"},
			pwds: []string{strongPwd, strongPwd}, wantErrStr: "username may only contain",
		},
		{
			name: "weak password", args: []string{"adduser", "-username", "office"},
			pwds: []string{"password", "password"}, wantErrStr: "password must contain at least 10 characters",
		},
		{
			name: "password mismatch", args: []string{"adduser", "-username", "office"},
			pwds: []string{strongPwd, strongPwd + "?"}, wantErrStr: "password_confirm",
		},
		{
			name: "create", args: []string{"adduser", "-username", " Office ", "-first", "Anna", "-last", "Berg", "-initials", "ab", "-excom"},
			pwds: []string{strongPwd, strongPwd},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockPasswords(t, tt.pwds...)
			tt.check(t, cli.run(append([]string{"admin"}, tt.args...)))
		})
	}

	usr, err := repo.GetUser(ctx, "office")
	require.NoError(t, err)
	assert.Equal(t, "Anna", usr.FirstName)
	assert.Equal(t, "AB", usr.Initials)
	assert.True(t, usr.IsActive)
	assert.True(t, usr.IsSecretary)
	assert.True(t, usr.IsExcom)
	assert.False(t, usr.IsHead)
	assert.NoError(t, usr.CheckPassword(strongPwd))

	t.Run("update existing", func(t *testing.T) {
		mockPasswords(t, strongPwd+"2", strongPwd+"2")
		require.NoError(t, cli.run([]string{"admin", "adduser", "-username", "office", "-secretary=false"}))

		usr, err := repo.GetUser(ctx, "office")
		require.NoError(t, err)
		assert.False(t, usr.IsSecretary)
		assert.False(t, usr.IsExcom)
		assert.NoError(t, usr.CheckPassword(strongPwd+"2"))
	})
}

func Test_commandLine_resetPassword(t *testing.T) {
	cli, repo := setup(t)
	ctx := context.Background()

	mockPasswords(t, strongPwd, strongPwd)
	require.NoError(t, cli.run([]string{"admin", "adduser", "-username", "office"}))
	orig, err := repo.GetUser(ctx, "office")
	require.NoError(t, err)

	newPwd := "N3w-Semester#"
	tests := []cliTest{
		{name: "no args", args: []string{"resetpassword"}, wantErr: errHelp},
		{name: "username but no password", args: []string{"resetpassword", "-username", "office"}, wantErr: errHelp},
		{
			name: "user not found", args: []string{"resetpassword", "-username", "nobody"},
			pwds: []string{newPwd, newPwd}, wantErr: user.ErrNotFound,
		},
		{
			name: "all numeric", args: []string{"resetpassword", "-username", "office"},
			pwds: []string{"1234567890", "1234567890"}, wantErrStr: "password cannot be entirely numeric",
		},
		{name: "reset", args: []string{"resetpassword", "-username", "OFFICE"}, pwds: []string{newPwd, newPwd}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockPasswords(t, tt.pwds...)
			tt.check(t, cli.run(append([]string{"admin"}, tt.args...)))
		})
	}

	usr, err := repo.GetUser(ctx, "office")
	require.NoError(t, err)
	assert.NotEqual(t, orig.PasswordHash, usr.PasswordHash)
	assert.NoError(t, usr.CheckPassword(newPwd))
	assert.Error(t, usr.CheckPassword(strongPwd))
}
