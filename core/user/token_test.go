package user

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thesispool/thesispool/core"
)

func TestFeedToken(t *testing.T) {
	now := time.Date(2020, 1, 15, 10, 0, 0, 0, time.UTC)
	nowFunc = func() time.Time { return now }
	defer func() { nowFunc = time.Now }()

	conf := &core.Config{SecretKey: "secret", Server: core.ServerConfig{FeedTokenExpirationDelta: 30 * 24 * time.Hour}}
	usr := User{Username: "t.smits", Flags: Flags{IsProf: true}, IsActive: true}

	token, err := MakeFeedToken(conf, usr)
	require.NoError(t, err)

	t.Run("valid", func(t *testing.T) {
		assert.NoError(t, verifyFeedToken(conf, usr, token))
	})

	invalid := []struct {
		name  string
		conf  *core.Config
		usr   User
		token string
	}{
		{name: "empty", conf: conf, usr: usr, token: ""},
		{name: "no timestamp", conf: conf, usr: usr, token: "abc"},
		{name: "bad timestamp", conf: conf, usr: usr, token: "!!!-abc"},
		{name: "tampered", conf: conf, usr: usr, token: token + "x"},
		{name: "other user", conf: conf, usr: User{Username: "s.sekr", Flags: usr.Flags}, token: token},
		{name: "flags changed", conf: conf, usr: User{Username: usr.Username, Flags: Flags{IsProf: true, IsExcom: true}}, token: token},
		{name: "other secret", conf: &core.Config{SecretKey: "other", Server: conf.Server}, usr: usr, token: token},
	}
	for _, tt := range invalid {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, ErrInvalidToken, verifyFeedToken(tt.conf, tt.usr, tt.token))
		})
	}

	t.Run("expired", func(t *testing.T) {
		nowFunc = func() time.Time { return now.Add(29 * 24 * time.Hour) }
		assert.NoError(t, verifyFeedToken(conf, usr, token))

		nowFunc = func() time.Time { return now.Add(32 * 24 * time.Hour) }
		assert.Equal(t, ErrInvalidToken, verifyFeedToken(conf, usr, token))
	})
}

func TestService_FeedUser(t *testing.T) {
	ctx := context.Background()
	conf := &core.Config{SecretKey: "secret", Server: core.ServerConfig{FeedTokenExpirationDelta: 24 * time.Hour}}
	active := User{Username: "t.smits", IsActive: true}
	retired := User{Username: "retired"}
	svc := NewService(conf, nopLogger{}, newMapRepo(active, retired), nil)

	uid, token, err := svc.FeedToken(active)
	require.NoError(t, err)
	usr, err := svc.FeedUser(ctx, uid, token)
	require.NoError(t, err)
	assert.Equal(t, "t.smits", usr.Username)

	_, err = svc.FeedUser(ctx, "%%%", token)
	assert.Equal(t, ErrInvalidToken, err, "undecodable uid")

	_, err = svc.FeedUser(ctx, EncodeUID(User{Username: "ghost"}), token)
	assert.Equal(t, ErrInvalidToken, err, "unknown user")

	uid, token, err = svc.FeedToken(retired)
	require.NoError(t, err)
	_, err = svc.FeedUser(ctx, uid, token)
	assert.Equal(t, ErrAccountDeactivated, err)
}
