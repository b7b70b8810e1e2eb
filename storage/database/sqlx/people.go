package sqlxrepos

import (
	"context"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/thesispool/thesispool/core"
	"github.com/thesispool/thesispool/core/thesis"
)

type supervisorRepository struct {
	repository
}

var _ thesis.SupervisorRepository = (*supervisorRepository)(nil) // interface compliance check

func NewSupervisorRepository(db *sqlx.DB) *supervisorRepository {
	return &supervisorRepository{repository{db: db}}
}

func (repo supervisorRepository) SaveSupervisor(ctx context.Context, s thesis.Supervisor, exec ...core.DBExecutor) error {
	query, args, err := psql.Insert("supervisor").
		Columns("id", "first_name", "last_name", "initials").
		Values(s.ID, s.FirstName, s.LastName, s.Initials).
		Suffix("ON CONFLICT (id) DO UPDATE SET first_name = EXCLUDED.first_name, last_name = EXCLUDED.last_name, initials = EXCLUDED.initials").
		ToSql()
	if err != nil {
		return errors.Wrap(err, "building query")
	}
	_, err = repo.getExec(exec).ExecContext(ctx, query, args...)
	return errors.Wrap(err, "saving supervisor")
}

func (repo supervisorRepository) GetSupervisor(ctx context.Context, id string, exec ...core.DBExecutor) (thesis.Supervisor, error) {
	var s thesis.Supervisor
	err := sqlx.GetContext(ctx, repo.getExec(exec), &s,
		"SELECT id, first_name, last_name, initials FROM supervisor WHERE id = $1", id)
	if err != nil {
		return thesis.Supervisor{}, trapNoRowsErr(err, thesis.ErrSupervisorNotFound, "getting supervisor")
	}
	return s, nil
}

func (repo supervisorRepository) DeleteSupervisor(ctx context.Context, id string, exec ...core.DBExecutor) error {
	res, err := repo.getExec(exec).ExecContext(ctx, "DELETE FROM supervisor WHERE id = $1", id)
	if err != nil {
		return errors.Wrap(err, "deleting supervisor")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return thesis.ErrSupervisorNotFound
	}
	return nil
}

type assessorRepository struct {
	repository
}

var _ thesis.AssessorRepository = (*assessorRepository)(nil) // interface compliance check

func NewAssessorRepository(db *sqlx.DB) *assessorRepository {
	return &assessorRepository{repository{db: db}}
}

func (repo assessorRepository) GetOrCreateAssessor(ctx context.Context, a thesis.Assessor, exec ...core.DBExecutor) (thesis.Assessor, error) {
	// the no-op update makes RETURNING yield the existing row too
	query, args, err := psql.Insert("assessor").
		Columns("first_name", "last_name", "email").
		Values(a.FirstName, a.LastName, a.Email).
		Suffix("ON CONFLICT (email) DO UPDATE SET email = EXCLUDED.email RETURNING id, first_name, last_name, email").
		ToSql()
	if err != nil {
		return thesis.Assessor{}, errors.Wrap(err, "building query")
	}
	var saved thesis.Assessor
	if err = sqlx.GetContext(ctx, repo.getExec(exec), &saved, query, args...); err != nil {
		return thesis.Assessor{}, errors.Wrap(err, "getting or creating assessor")
	}
	return saved, nil
}

func (repo assessorRepository) GetAssessor(ctx context.Context, id int, exec ...core.DBExecutor) (thesis.Assessor, error) {
	var a thesis.Assessor
	err := sqlx.GetContext(ctx, repo.getExec(exec), &a,
		"SELECT id, first_name, last_name, email FROM assessor WHERE id = $1", id)
	if err != nil {
		return thesis.Assessor{}, trapNoRowsErr(err, thesis.ErrAssessorNotFound, "getting assessor")
	}
	return a, nil
}

func (repo assessorRepository) QueryAssessors(ctx context.Context, exec ...core.DBExecutor) ([]thesis.Assessor, error) {
	query, args, err := psql.Select("id", "first_name", "last_name", "email").
		From("assessor").
		OrderBy("last_name ASC", "first_name ASC", "id ASC").
		ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "building query")
	}
	assessors := make([]thesis.Assessor, 0)
	if err = sqlx.SelectContext(ctx, repo.getExec(exec), &assessors, query, args...); err != nil {
		return nil, errors.Wrap(err, "querying assessors")
	}
	return assessors, nil
}

func (repo assessorRepository) DeleteAssessor(ctx context.Context, id int, exec ...core.DBExecutor) error {
	query, args, err := psql.Delete("assessor").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return errors.Wrap(err, "building query")
	}
	res, err := repo.getExec(exec).ExecContext(ctx, query, args...)
	if err != nil {
		return errors.Wrap(err, "deleting assessor")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return thesis.ErrAssessorNotFound
	}
	return nil
}

type chairmanRepository struct {
	repository
}

var _ thesis.ChairmanRepository = (*chairmanRepository)(nil) // interface compliance check

func NewChairmanRepository(db *sqlx.DB) *chairmanRepository {
	return &chairmanRepository{repository{db: db}}
}

func (repo chairmanRepository) SaveChairman(ctx context.Context, c thesis.ExcomChairman, exec ...core.DBExecutor) error {
	query, args, err := psql.Insert("excom_chairman").
		Columns("id", "first_name", "last_name", "initials").
		Values(c.ID, c.FirstName, c.LastName, c.Initials).
		Suffix("ON CONFLICT (id) DO UPDATE SET first_name = EXCLUDED.first_name, last_name = EXCLUDED.last_name, initials = EXCLUDED.initials").
		ToSql()
	if err != nil {
		return errors.Wrap(err, "building query")
	}
	_, err = repo.getExec(exec).ExecContext(ctx, query, args...)
	return errors.Wrap(err, "saving chairman")
}
