package inmemdb

import (
	"context"
	"sort"
	"strings"

	"github.com/thesispool/thesispool/core"
	"github.com/thesispool/thesispool/core/thesis"
)

type supervisorRepository struct {
	db *DB
}

var _ thesis.SupervisorRepository = (*supervisorRepository)(nil) // interface compliance check

func NewSupervisorRepository(db *DB) *supervisorRepository {
	return &supervisorRepository{db: db}
}

func (repo *supervisorRepository) SaveSupervisor(ctx context.Context, s thesis.Supervisor, exec ...core.DBExecutor) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()
	repo.db.t.supervisors[s.ID] = s
	return nil
}

func (repo *supervisorRepository) GetSupervisor(ctx context.Context, id string, exec ...core.DBExecutor) (thesis.Supervisor, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()
	if s, ok := repo.db.t.supervisors[id]; ok {
		return s, nil
	}
	return thesis.Supervisor{}, thesis.ErrSupervisorNotFound
}

// DeleteSupervisor cascades to the supervisor's theses.
func (repo *supervisorRepository) DeleteSupervisor(ctx context.Context, id string, exec ...core.DBExecutor) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()
	if _, ok := repo.db.t.supervisors[id]; !ok {
		return thesis.ErrSupervisorNotFound
	}
	deleteTheses(&repo.db.t, func(th thesis.Thesis) bool { return th.Supervisor.ID == id })
	delete(repo.db.t.supervisors, id)
	return nil
}

type assessorRepository struct {
	db *DB
}

var _ thesis.AssessorRepository = (*assessorRepository)(nil) // interface compliance check

func NewAssessorRepository(db *DB) *assessorRepository {
	return &assessorRepository{db: db}
}

func (repo *assessorRepository) GetOrCreateAssessor(ctx context.Context, a thesis.Assessor, exec ...core.DBExecutor) (thesis.Assessor, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	for _, existing := range repo.db.t.assessors {
		if existing.Email == a.Email {
			return existing, nil
		}
	}
	repo.db.t.assessorSeq++
	a.ID = repo.db.t.assessorSeq
	repo.db.t.assessors[a.ID] = a
	return a, nil
}

func (repo *assessorRepository) GetAssessor(ctx context.Context, id int, exec ...core.DBExecutor) (thesis.Assessor, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()
	if a, ok := repo.db.t.assessors[id]; ok {
		return a, nil
	}
	return thesis.Assessor{}, thesis.ErrAssessorNotFound
}

func (repo *assessorRepository) QueryAssessors(ctx context.Context, exec ...core.DBExecutor) ([]thesis.Assessor, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	assessors := make([]thesis.Assessor, 0, len(repo.db.t.assessors))
	for _, a := range repo.db.t.assessors {
		assessors = append(assessors, a)
	}
	sort.Slice(assessors, func(i, j int) bool {
		ai, aj := assessors[i], assessors[j]
		if c := strings.Compare(ai.LastName, aj.LastName); c != 0 {
			return c < 0
		}
		if c := strings.Compare(ai.FirstName, aj.FirstName); c != 0 {
			return c < 0
		}
		return ai.ID < aj.ID
	})
	return assessors, nil
}

// DeleteAssessor removes the assessor from its theses.
func (repo *assessorRepository) DeleteAssessor(ctx context.Context, id int, exec ...core.DBExecutor) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()
	if _, ok := repo.db.t.assessors[id]; !ok {
		return thesis.ErrAssessorNotFound
	}
	clearAssessor(&repo.db.t, id)
	delete(repo.db.t.assessors, id)
	return nil
}

type chairmanRepository struct {
	db *DB
}

var _ thesis.ChairmanRepository = (*chairmanRepository)(nil) // interface compliance check

func NewChairmanRepository(db *DB) *chairmanRepository {
	return &chairmanRepository{db: db}
}

func (repo *chairmanRepository) SaveChairman(ctx context.Context, c thesis.ExcomChairman, exec ...core.DBExecutor) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()
	repo.db.t.chairmen[c.ID] = c
	return nil
}
