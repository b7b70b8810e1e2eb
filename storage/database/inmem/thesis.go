package inmemdb

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/thesispool/thesispool/core"
	"github.com/thesispool/thesispool/core/thesis"
)

type thesisRepository struct {
	db *DB
}

var _ thesis.Repository = (*thesisRepository)(nil) // interface compliance check

func NewThesisRepository(db *DB) *thesisRepository {
	return &thesisRepository{db: db}
}

// join refreshes the referenced rows the way the SQL joins would.
func (repo *thesisRepository) join(th thesis.Thesis) thesis.Thesis {
	t := repo.db.t
	th.Student = t.students[th.Student.ID]
	th.Supervisor = t.supervisors[th.Supervisor.ID]
	if th.Assessor != nil {
		if a, ok := t.assessors[th.Assessor.ID]; ok {
			th.Assessor = &a
		} else {
			th.Assessor = nil
		}
	}
	if th.Chairman != nil {
		if c, ok := t.chairmen[th.Chairman.ID]; ok {
			th.Chairman = &c
		} else {
			th.Chairman = nil
		}
	}
	return th
}

func (repo *thesisRepository) checkRefs(th thesis.Thesis) error {
	t := repo.db.t
	if _, ok := t.students[th.Student.ID]; !ok {
		return errForeignKey
	}
	if _, ok := t.supervisors[th.Supervisor.ID]; !ok {
		return errForeignKey
	}
	if th.Assessor != nil {
		if _, ok := t.assessors[th.Assessor.ID]; !ok {
			return errForeignKey
		}
	}
	if th.Chairman != nil {
		if _, ok := t.chairmen[th.Chairman.ID]; !ok {
			return errForeignKey
		}
	}
	return nil
}

func (repo *thesisRepository) CreateThesis(ctx context.Context, th thesis.Thesis, exec ...core.DBExecutor) (thesis.Thesis, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if err := repo.checkRefs(th); err != nil {
		return thesis.Thesis{}, err
	}
	repo.db.t.thesisSeq++
	th.ID = repo.db.t.thesisSeq
	repo.db.t.theses[th.ID] = th
	return repo.join(th), nil
}

func (repo *thesisRepository) GetThesis(ctx context.Context, key uuid.UUID, exec ...core.DBExecutor) (thesis.Thesis, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	for _, th := range repo.db.t.theses {
		if th.SurrogateKey == key {
			return repo.join(th), nil
		}
	}
	return thesis.Thesis{}, thesis.ErrNotFound
}

func matches(th thesis.Thesis, filter thesis.QueryFilter) bool {
	if filter.SupervisorID != "" && th.Supervisor.ID != filter.SupervisorID {
		return false
	}
	if filter.NotApproved && th.IsApproved() {
		return false
	}
	if len(filter.Statuses) > 0 {
		for _, s := range filter.Statuses {
			if th.Status == s {
				return true
			}
		}
		return false
	}
	return true
}

// compare compares two theses on an ordering field: <0, 0 or >0.
func compare(a, b thesis.Thesis, field string) int {
	switch field {
	case "due_date":
		return a.DueDate.Compare(b.DueDate)
	case "begin_date":
		return a.BeginDate.Compare(b.BeginDate)
	case "created_at":
		return a.CreatedAt.Compare(b.CreatedAt)
	case "title":
		return strings.Compare(a.Title, b.Title)
	case "status":
		return strings.Compare(string(a.Status), string(b.Status))
	}
	return 0
}

func (repo *thesisRepository) QueryTheses(ctx context.Context, filter thesis.QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]thesis.Thesis, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	theses := make([]thesis.Thesis, 0)
	for _, th := range repo.db.t.theses {
		if matches(th, filter) {
			theses = append(theses, repo.join(th))
		}
	}
	sort.Slice(theses, func(i, j int) bool {
		for _, ord := range ordering {
			c := compare(theses[i], theses[j], ord.Field)
			if c == 0 {
				continue
			}
			if ord.Ascending {
				return c < 0
			}
			return c > 0
		}
		return theses[i].ID < theses[j].ID
	})
	return theses, nil
}

func (repo *thesisRepository) UpdateThesis(ctx context.Context, th thesis.Thesis, exec ...core.DBExecutor) (thesis.Thesis, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	orig, ok := repo.db.t.theses[th.ID]
	if !ok {
		return thesis.Thesis{}, thesis.ErrNotFound
	}
	if err := repo.checkRefs(th); err != nil {
		return thesis.Thesis{}, err
	}
	// immutable columns
	th.SurrogateKey = orig.SurrogateKey
	th.CreatedAt = orig.CreatedAt

	repo.db.t.theses[th.ID] = th
	return repo.join(th), nil
}

func (repo *thesisRepository) deleteWhere(pred func(thesis.Thesis) bool) int {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()
	return deleteTheses(&repo.db.t, pred)
}

func deleteTheses(t *tables, pred func(thesis.Thesis) bool) int {
	n := 0
	for id, th := range t.theses {
		if pred(th) {
			delete(t.theses, id)
			n++
		}
	}
	return n
}

func (repo *thesisRepository) DeleteThesis(ctx context.Context, id int, exec ...core.DBExecutor) error {
	if repo.deleteWhere(func(th thesis.Thesis) bool { return th.ID == id }) == 0 {
		return thesis.ErrNotFound
	}
	return nil
}

func (repo *thesisRepository) DeleteThesesBySupervisor(ctx context.Context, supervisorID string, exec ...core.DBExecutor) (int, error) {
	return repo.deleteWhere(func(th thesis.Thesis) bool { return th.Supervisor.ID == supervisorID }), nil
}

func (repo *thesisRepository) DeleteThesesByStudent(ctx context.Context, studentID int, exec ...core.DBExecutor) (int, error) {
	return repo.deleteWhere(func(th thesis.Thesis) bool { return th.Student.ID == studentID }), nil
}

func (repo *thesisRepository) ClearAssessor(ctx context.Context, assessorID int, exec ...core.DBExecutor) (int, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()
	return clearAssessor(&repo.db.t, assessorID), nil
}

func clearAssessor(t *tables, assessorID int) int {
	n := 0
	for id, th := range t.theses {
		if th.Assessor != nil && th.Assessor.ID == assessorID {
			th.Assessor = nil
			t.theses[id] = th
			n++
		}
	}
	return n
}
