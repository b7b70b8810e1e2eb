package inmemdb

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"github.com/thesispool/thesispool/core"
	"github.com/thesispool/thesispool/core/student"
	"github.com/thesispool/thesispool/core/thesis"
	"github.com/thesispool/thesispool/core/user"
)

var errForeignKey = errors.New("foreign key violation")

type (
	tables struct {
		theses      map[int]thesis.Thesis
		supervisors map[string]thesis.Supervisor
		assessors   map[int]thesis.Assessor
		chairmen    map[string]thesis.ExcomChairman
		students    map[int]student.Student
		users       map[string]user.User
		thesisSeq   int
		assessorSeq int
	}

	// DB keeps all tables in memory; meant for tests and local development.
	DB struct {
		mu   sync.RWMutex
		txMu sync.Mutex
		t    tables
	}
)

func Open() *DB {
	return &DB{t: tables{
		theses:      make(map[int]thesis.Thesis),
		supervisors: make(map[string]thesis.Supervisor),
		assessors:   make(map[int]thesis.Assessor),
		chairmen:    make(map[string]thesis.ExcomChairman),
		students:    make(map[int]student.Student),
		users:       make(map[string]user.User),
	}}
}

func (t tables) clone() tables {
	c := t
	c.theses = make(map[int]thesis.Thesis, len(t.theses))
	for k, v := range t.theses {
		c.theses[k] = v
	}
	c.supervisors = make(map[string]thesis.Supervisor, len(t.supervisors))
	for k, v := range t.supervisors {
		c.supervisors[k] = v
	}
	c.assessors = make(map[int]thesis.Assessor, len(t.assessors))
	for k, v := range t.assessors {
		c.assessors[k] = v
	}
	c.chairmen = make(map[string]thesis.ExcomChairman, len(t.chairmen))
	for k, v := range t.chairmen {
		c.chairmen[k] = v
	}
	c.students = make(map[int]student.Student, len(t.students))
	for k, v := range t.students {
		c.students[k] = v
	}
	c.users = make(map[string]user.User, len(t.users))
	for k, v := range t.users {
		c.users[k] = v
	}
	return c
}

type txRunner struct {
	db *DB
}

var _ core.TxRunner = (*txRunner)(nil) // interface compliance check

func NewTxRunner(db *DB) core.TxRunner {
	return &txRunner{db: db}
}

// RunInTx serializes transactions and restores the tables when fn fails.
// Repositories ignore the exec they receive.
func (r *txRunner) RunInTx(ctx context.Context, fn func(exec core.DBExecutor) error) error {
	r.db.txMu.Lock()
	defer r.db.txMu.Unlock()

	r.db.mu.RLock()
	snapshot := r.db.t.clone()
	r.db.mu.RUnlock()

	if err := fn(nil); err != nil {
		r.db.mu.Lock()
		r.db.t = snapshot
		r.db.mu.Unlock()
		return err
	}
	return nil
}
