package sqlxrepos

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/thesispool/thesispool/core/student"
)

// studentCache is the local copy of the students referenced by theses.
type studentCache struct {
	repository
}

var _ student.Cache = (*studentCache)(nil) // interface compliance check

func NewStudentCache(db *sqlx.DB) *studentCache {
	return &studentCache{repository{db: db}}
}

func (repo studentCache) GetStudent(ctx context.Context, id int) (student.Student, error) {
	var st student.Student
	err := sqlx.GetContext(ctx, repo.db, &st, "SELECT id, first_name, last_name, program FROM student WHERE id = $1", id)
	if err != nil {
		return student.Student{}, trapNoRowsErr(err, student.ErrNotFound, "getting student")
	}
	return st, nil
}

func (repo studentCache) SaveStudent(ctx context.Context, st student.Student) error {
	query, args, err := psql.Insert("student").
		Columns("id", "first_name", "last_name", "program").
		Values(st.ID, st.FirstName, st.LastName, st.Program).
		Suffix("ON CONFLICT (id) DO UPDATE SET first_name = EXCLUDED.first_name, last_name = EXCLUDED.last_name, program = EXCLUDED.program").
		ToSql()
	if err != nil {
		return errors.Wrap(err, "building query")
	}
	_, err = repo.db.ExecContext(ctx, query, args...)
	return errors.Wrap(err, "saving student")
}

func (repo studentCache) DeleteStudent(ctx context.Context, id int) error {
	res, err := repo.db.ExecContext(ctx, "DELETE FROM student WHERE id = $1", id)
	if err != nil {
		return errors.Wrap(err, "deleting student")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return student.ErrNotFound
	}
	return nil
}
