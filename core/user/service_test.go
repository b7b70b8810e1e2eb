package user

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thesispool/thesispool/core"
)

type nopLogger struct{}

func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
func (nopLogger) Fatal(string, ...interface{}) {}

type mapRepo struct {
	mu    sync.Mutex
	users map[string]User
}

func newMapRepo(users ...User) *mapRepo {
	r := &mapRepo{users: make(map[string]User)}
	for _, u := range users {
		r.users[u.Username] = u
	}
	return r
}

func (r *mapRepo) GetUser(_ context.Context, username string, _ ...core.DBExecutor) (User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.users[username]; ok {
		return u, nil
	}
	return User{}, ErrNotFound
}

func (r *mapRepo) SaveUser(_ context.Context, usr User, _ ...core.DBExecutor) (User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if usr.PasswordHash == nil {
		usr.PasswordHash = r.users[usr.Username].PasswordHash
	}
	r.users[usr.Username] = usr
	return usr, nil
}

type fakeDirectory struct {
	identities map[string]Identity // username: identity
	password   string
	err        error
}

func (d fakeDirectory) Authenticate(_ context.Context, username, password string) (Identity, error) {
	if d.err != nil {
		return Identity{}, d.err
	}
	id, ok := d.identities[username]
	if !ok || password != d.password {
		return Identity{}, ErrAuthenticationFailed
	}
	return id, nil
}

func testConfig() *core.Config {
	return &core.Config{LDAP: core.LDAPConfig{DenyGroupDN: studentsDN, GroupFlags: flagTable}}
}

func TestService_Authenticate(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2020, 1, 15, 10, 0, 0, 0, time.UTC)
	nowFunc = func() time.Time { return now }
	defer func() { nowFunc = time.Now }()

	dir := fakeDirectory{
		password: "ldap-pass",
		identities: map[string]Identity{
			"t.smits":  {Username: "t.smits", FirstName: "Thomas", LastName: "Smits", Initials: "SMI", Groups: []string{profDN, excomDN}},
			"s.sekr":   {Username: "s.sekr", FirstName: "Sabine", LastName: "Sekr", Groups: []string{staffDN, secretaryDN}},
			"1234567":  {Username: "1234567", FirstName: "Eva", LastName: "Maier", Groups: []string{studentsDN}},
			"inactive": {Username: "inactive", Groups: []string{profDN}},
		},
	}

	admin := User{Username: "admin", IsActive: true, Flags: Flags{IsSecretary: true}}
	require.NoError(t, admin.SetPassword("Wg7#kd92!Lp"))
	retired := User{Username: "retired", IsActive: false}
	require.NoError(t, retired.SetPassword("Wg7#kd92!Lp"))

	t.Run("directory user", func(t *testing.T) {
		repo := newMapRepo()
		svc := NewService(testConfig(), nopLogger{}, repo, dir)

		usr, err := svc.Authenticate(ctx, " T.Smits ", "ldap-pass")
		require.NoError(t, err)
		assert.Equal(t, "t.smits", usr.Username)
		assert.Equal(t, "Smits", usr.LastName)
		assert.Equal(t, Flags{IsProf: true, IsExcom: true}, usr.Flags)
		assert.True(t, usr.IsActive)
		assert.Equal(t, now, usr.LastLogin.Time)
		assert.Equal(t, now, usr.CreatedAt)

		stored, err := repo.GetUser(ctx, "t.smits")
		require.NoError(t, err)
		assert.Equal(t, usr.Flags, stored.Flags)
	})

	t.Run("flags refreshed on login", func(t *testing.T) {
		repo := newMapRepo(User{Username: "s.sekr", IsActive: true, Flags: Flags{IsExcom: true}})
		svc := NewService(testConfig(), nopLogger{}, repo, dir)

		usr, err := svc.Authenticate(ctx, "s.sekr", "ldap-pass")
		require.NoError(t, err)
		assert.Equal(t, Flags{IsStaff: true, IsSecretary: true}, usr.Flags)
	})

	t.Run("deny group", func(t *testing.T) {
		svc := NewService(testConfig(), nopLogger{}, newMapRepo(), dir)
		_, err := svc.Authenticate(ctx, "1234567", "ldap-pass")
		assert.Equal(t, ErrAccountDenied, err)
	})

	t.Run("deactivated directory user", func(t *testing.T) {
		svc := NewService(testConfig(), nopLogger{}, newMapRepo(User{Username: "inactive"}), dir)
		_, err := svc.Authenticate(ctx, "inactive", "ldap-pass")
		assert.Equal(t, ErrAccountDeactivated, err)
	})

	t.Run("wrong directory password", func(t *testing.T) {
		svc := NewService(testConfig(), nopLogger{}, newMapRepo(), dir)
		_, err := svc.Authenticate(ctx, "t.smits", "nope")
		assert.Equal(t, ErrAuthenticationFailed, err)
	})

	localTests := []struct {
		name    string
		dir     Authenticator
		uname   string
		pwd     string
		wantErr error
	}{
		{name: "local admin", dir: dir, uname: "admin", pwd: "Wg7#kd92!Lp"},
		{name: "local admin without directory", uname: "admin", pwd: "Wg7#kd92!Lp"},
		{name: "local admin while directory is down", dir: fakeDirectory{err: errors.New("connection refused")}, uname: "admin", pwd: "Wg7#kd92!Lp"},
		{name: "wrong local password", dir: dir, uname: "admin", pwd: "nope", wantErr: ErrAuthenticationFailed},
		{name: "unknown user", dir: dir, uname: "nobody", pwd: "nope", wantErr: ErrAuthenticationFailed},
		{name: "deactivated local user", dir: dir, uname: "retired", pwd: "Wg7#kd92!Lp", wantErr: ErrAccountDeactivated},
	}
	for _, tt := range localTests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewService(testConfig(), nopLogger{}, newMapRepo(admin, retired), tt.dir)
			usr, err := svc.Authenticate(ctx, tt.uname, tt.pwd)
			if tt.wantErr != nil {
				assert.Equal(t, tt.wantErr, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, usr.IsSecretary)
			assert.Equal(t, now, usr.LastLogin.Time)
		})
	}
}

func TestService_LocalUsers(t *testing.T) {
	ctx := context.Background()
	repo := newMapRepo()
	svc := NewService(testConfig(), nopLogger{}, repo, nil)

	usr, err := svc.AddLocalUser(ctx, NewUser{Username: "admin", Password: "Wg7#kd92!Lp", Flags: Flags{IsSecretary: true, IsExcom: true}})
	require.NoError(t, err)
	assert.True(t, usr.IsActive)
	assert.True(t, usr.IsExcom)
	require.NoError(t, usr.CheckPassword("Wg7#kd92!Lp"))

	_, err = svc.SetPassword(ctx, SetPassword{Username: "admin", Password: "N3w-Pa55word"})
	require.NoError(t, err)
	_, err = svc.Authenticate(ctx, "admin", "Wg7#kd92!Lp")
	assert.Equal(t, ErrAuthenticationFailed, err)
	_, err = svc.Authenticate(ctx, "admin", "N3w-Pa55word")
	assert.NoError(t, err)

	_, err = svc.SetPassword(ctx, SetPassword{Username: "nobody", Password: "N3w-Pa55word"})
	assert.Equal(t, ErrNotFound, err)

	_, err = svc.CheckActive(ctx, "admin")
	assert.NoError(t, err)
}
