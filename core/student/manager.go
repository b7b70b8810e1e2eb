package student

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/thesispool/thesispool/core"
)

var (
	// errors
	ErrNotFound = core.NewDomainError(core.KindNotFound, "student not found")
	ErrExists   = errors.New("a student with this id already exists")
)

type (
	// Roster is the read-only faculty roster, source of truth for students.
	Roster interface {
		FindStudent(ctx context.Context, id int) (Student, error)
	}

	// Cache holds the local copies of students referenced by theses.
	Cache interface {
		GetStudent(ctx context.Context, id int) (Student, error)
		SaveStudent(ctx context.Context, s Student) error // insert or update
		DeleteStudent(ctx context.Context, id int) error
	}

	// Manager looks students up in the roster first and falls back to the local cache.
	Manager struct {
		roster Roster // nil when no roster is configured
		cache  Cache
		logger core.Logger
	}
)

func NewManager(cache Cache, roster Roster, logger core.Logger) *Manager {
	return &Manager{
		roster: roster,
		cache:  cache,
		logger: logger,
	}
}

func (m *Manager) fromRoster(ctx context.Context, id int) (Student, bool) {
	if m.roster == nil {
		return Student{}, false
	}
	st, err := m.roster.FindStudent(ctx, id)
	if err != nil {
		if errors.Cause(err) != ErrNotFound {
			m.logger.Warn(fmt.Sprintf("roster lookup of student %d: %v", id, err), err)
		}
		return Student{}, false
	}
	return st, true
}

// Find returns the student with the given matriculation number.
// Roster values win over cached ones; a stale cache row is refreshed.
func (m *Manager) Find(ctx context.Context, id int) (Student, error) {
	ext, inRoster := m.fromRoster(ctx, id)

	cached, err := m.cache.GetStudent(ctx, id)
	inCache := err == nil
	if err != nil && errors.Cause(err) != ErrNotFound {
		return Student{}, errors.Wrap(err, "getting cached student")
	}

	switch {
	case inRoster && inCache:
		if cached != ext {
			if err := m.cache.SaveStudent(ctx, ext); err != nil {
				return Student{}, errors.Wrap(err, "refreshing cached student")
			}
		}
		return ext, nil
	case inRoster:
		return ext, nil
	case inCache:
		return cached, nil
	}
	return Student{}, ErrNotFound
}

// EnsureCached writes the student to the local cache, on first association with a thesis.
func (m *Manager) EnsureCached(ctx context.Context, s Student) error {
	cached, err := m.cache.GetStudent(ctx, s.ID)
	if err == nil && cached == s {
		return nil
	}
	if err != nil && errors.Cause(err) != ErrNotFound {
		return errors.Wrap(err, "getting cached student")
	}
	return errors.Wrap(m.cache.SaveStudent(ctx, s), "caching student")
}

// Create adds a student missing from the roster to the local cache.
func (m *Manager) Create(ctx context.Context, ns NewStudent) (Student, error) {
	if _, err := m.Find(ctx, ns.ID); err == nil {
		return Student{}, core.NewValidationError(ErrExists, core.FieldError{Field: "id", Error: ErrExists.Error()})
	} else if err != ErrNotFound {
		return Student{}, err
	}

	st := Student{
		ID:        ns.ID,
		FirstName: ns.FirstName,
		LastName:  ns.LastName,
		Program:   ns.Program,
	}
	if err := m.cache.SaveStudent(ctx, st); err != nil {
		return Student{}, errors.Wrap(err, "saving student")
	}
	return st, nil
}

// Uncache removes the local copy of a student. Missing rows are ignored.
func (m *Manager) Uncache(ctx context.Context, id int) error {
	if err := m.cache.DeleteStudent(ctx, id); err != nil && errors.Cause(err) != ErrNotFound {
		return errors.Wrap(err, "deleting cached student")
	}
	return nil
}
