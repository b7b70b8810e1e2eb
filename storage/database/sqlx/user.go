package sqlxrepos

import (
	"context"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/thesispool/thesispool/core"
	"github.com/thesispool/thesispool/core/user"
)

const userTable = "app_user"

var userColumns = []string{
	"username", "first_name", "last_name", "initials",
	"is_prof", "is_staff", "is_secretary", "is_excom", "is_head",
	"is_active", "password_hash", "created_at", "updated_at", "last_login",
}

type userRepository struct {
	repository
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *sqlx.DB) *userRepository {
	return &userRepository{repository{db: db}}
}

func (repo userRepository) GetUser(ctx context.Context, username string, exec ...core.DBExecutor) (user.User, error) {
	query, args, err := psql.Select(userColumns...).From(userTable).Where(sq.Eq{"username": username}).ToSql()
	if err != nil {
		return user.User{}, errors.Wrap(err, "building query")
	}
	var usr user.User
	if err = sqlx.GetContext(ctx, repo.getExec(exec), &usr, query, args...); err != nil {
		return user.User{}, trapNoRowsErr(err, user.ErrNotFound, "getting user")
	}
	usr.CreatedAt = usr.CreatedAt.UTC()
	usr.UpdatedAt = usr.UpdatedAt.UTC()
	return usr, nil
}

func (repo userRepository) SaveUser(ctx context.Context, usr user.User, exec ...core.DBExecutor) (user.User, error) {
	// a NULL password hash keeps the stored one
	query, args, err := psql.Insert(userTable).
		Columns(userColumns...).
		Values(
			usr.Username, usr.FirstName, usr.LastName, usr.Initials,
			usr.IsProf, usr.IsStaff, usr.IsSecretary, usr.IsExcom, usr.IsHead,
			usr.IsActive, usr.PasswordHash, usr.CreatedAt.UTC(), usr.UpdatedAt.UTC(), usr.LastLogin,
		).
		Suffix(`ON CONFLICT (username) DO UPDATE SET
			first_name = EXCLUDED.first_name, last_name = EXCLUDED.last_name, initials = EXCLUDED.initials,
			is_prof = EXCLUDED.is_prof, is_staff = EXCLUDED.is_staff, is_secretary = EXCLUDED.is_secretary,
			is_excom = EXCLUDED.is_excom, is_head = EXCLUDED.is_head, is_active = EXCLUDED.is_active,
			password_hash = COALESCE(EXCLUDED.password_hash, app_user.password_hash),
			updated_at = EXCLUDED.updated_at, last_login = EXCLUDED.last_login`).
		ToSql()
	if err != nil {
		return user.User{}, errors.Wrap(err, "building query")
	}
	exe := repo.getExec(exec)
	if _, err = exe.ExecContext(ctx, query, args...); err != nil {
		return user.User{}, errors.Wrap(err, "saving user")
	}
	return repo.GetUser(ctx, usr.Username, exec...)
}
