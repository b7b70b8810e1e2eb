//go:build integration

package sqlxrepos_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"

	"github.com/thesispool/thesispool/core/user"
	sqlxrepos "github.com/thesispool/thesispool/storage/database/sqlx"
)

func TestUserRepository(t *testing.T) {
	repo := sqlxrepos.NewUserRepository(setupDB(t))
	now := time.Date(2020, 3, 1, 12, 0, 0, 0, time.UTC)

	_, err := repo.GetUser(ctx, "admin")
	assert.Equal(t, user.ErrNotFound, err)

	admin := user.User{
		Username:     "admin",
		FirstName:    "Ada",
		LastName:     "Admin",
		Flags:        user.Flags{IsStaff: true, IsSecretary: true},
		IsActive:     true,
		PasswordHash: []byte("hash"),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	saved, err := repo.SaveUser(ctx, admin)
	require.NoError(t, err)
	assert.Equal(t, admin, saved)

	t.Run("nil password hash keeps the stored one", func(t *testing.T) {
		upd := saved
		upd.PasswordHash = nil
		upd.IsExcom = true
		upd.LastLogin = null.TimeFrom(now.Add(time.Hour))
		upd.UpdatedAt = now.Add(time.Hour)

		got, err := repo.SaveUser(ctx, upd)
		require.NoError(t, err)
		assert.Equal(t, []byte("hash"), got.PasswordHash)
		assert.True(t, got.IsExcom)
		assert.True(t, got.LastLogin.Valid)
		assert.Equal(t, now, got.CreatedAt)
	})
}
