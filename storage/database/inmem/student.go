package inmemdb

import (
	"context"

	"github.com/thesispool/thesispool/core/student"
	"github.com/thesispool/thesispool/core/thesis"
)

type studentCache struct {
	db *DB
}

var _ student.Cache = (*studentCache)(nil) // interface compliance check

func NewStudentCache(db *DB) *studentCache {
	return &studentCache{db: db}
}

func (repo *studentCache) GetStudent(ctx context.Context, id int) (student.Student, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()
	if st, ok := repo.db.t.students[id]; ok {
		return st, nil
	}
	return student.Student{}, student.ErrNotFound
}

func (repo *studentCache) SaveStudent(ctx context.Context, st student.Student) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()
	repo.db.t.students[st.ID] = st
	return nil
}

// DeleteStudent cascades to the student's theses.
func (repo *studentCache) DeleteStudent(ctx context.Context, id int) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()
	if _, ok := repo.db.t.students[id]; !ok {
		return student.ErrNotFound
	}
	deleteTheses(&repo.db.t, func(th thesis.Thesis) bool { return th.Student.ID == id })
	delete(repo.db.t.students, id)
	return nil
}
