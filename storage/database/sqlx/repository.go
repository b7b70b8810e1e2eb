package sqlxrepos

import (
	"database/sql"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/thesispool/thesispool/core"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

type repository struct {
	db *sqlx.DB
}

// getExec returns the transaction the service runs in, if any.
func (repo repository) getExec(svcExec []core.DBExecutor) sqlx.ExtContext {
	if len(svcExec) > 0 && svcExec[0] != nil {
		switch exec := svcExec[0].(type) {
		case sqlx.ExtContext:
			return exec
		case *sql.Tx:
			return &sqlx.Tx{Tx: exec, Mapper: repo.db.Mapper}
		}
	}
	return repo.db
}

// trapNoRowsErr maps psql "no rows" err to notFound
func trapNoRowsErr(err error, notFound error, msg string) error {
	if errors.Cause(err) == sql.ErrNoRows {
		return notFound
	}
	return errors.Wrap(err, msg)
}

func orderBy(ordering []core.DBOrdering, prefix string) []string {
	clauses := make([]string, 0, len(ordering))
	for _, ord := range ordering {
		ord.Field = prefix + ord.Field
		clauses = append(clauses, ord.String())
	}
	return clauses
}
