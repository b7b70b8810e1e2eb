package inmemdb

import (
	"context"

	"github.com/thesispool/thesispool/core"
	"github.com/thesispool/thesispool/core/user"
)

type userRepository struct {
	db *DB
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *DB) *userRepository {
	return &userRepository{db: db}
}

func (repo *userRepository) GetUser(ctx context.Context, username string, exec ...core.DBExecutor) (user.User, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()
	if usr, ok := repo.db.t.users[username]; ok {
		return usr, nil
	}
	return user.User{}, user.ErrNotFound
}

// SaveUser inserts or updates the user; a nil password hash keeps the stored one.
func (repo *userRepository) SaveUser(ctx context.Context, usr user.User, exec ...core.DBExecutor) (user.User, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if orig, ok := repo.db.t.users[usr.Username]; ok {
		usr.CreatedAt = orig.CreatedAt
		if usr.PasswordHash == nil {
			usr.PasswordHash = orig.PasswordHash
		}
	}
	repo.db.t.users[usr.Username] = usr
	return usr, nil
}
