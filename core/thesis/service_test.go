package thesis_test

import (
	"context"
	"sync"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thesispool/thesispool/core"
	"github.com/thesispool/thesispool/core/student"
	"github.com/thesispool/thesispool/core/thesis"
	inmemdb "github.com/thesispool/thesispool/storage/database/inmem"
)

type nopLogger struct{}

func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
func (nopLogger) Fatal(string, ...interface{}) {}

type rosterMap map[int]student.Student

func (r rosterMap) FindStudent(_ context.Context, id int) (student.Student, error) {
	if st, ok := r[id]; ok {
		return st, nil
	}
	return student.Student{}, student.ErrNotFound
}

type directoryMap map[string]thesis.Supervisor

func (d directoryMap) FetchSupervisor(_ context.Context, uid string) (thesis.Supervisor, bool) {
	s, ok := d[uid]
	return s, ok
}

func (d directoryMap) FetchSupervisors(context.Context) []thesis.Supervisor {
	sups := make([]thesis.Supervisor, 0, len(d))
	for _, s := range d {
		sups = append(sups, s)
	}
	return sups
}

type mailRecorder struct {
	mu   sync.Mutex
	sent []*core.EmailMessage
}

func (m *mailRecorder) SendMessages(messages ...*core.EmailMessage) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, messages...)
}

var (
	miller = thesis.Actor{Username: "miller", FirstName: "Anna", LastName: "Miller", Initials: "AM"}
	excom  = thesis.Actor{Username: "schmidt", FirstName: "Karl", LastName: "Schmidt", Initials: "KS"}
	office = thesis.Actor{Username: "office", FirstName: "Eva", LastName: "Braun", Initials: "EB"}

	alice = student.Student{ID: 123456, FirstName: "Alice", LastName: "Doe", Program: "IB"}
	bob   = student.Student{ID: 234567, FirstName: "Bob", LastName: "Roe", Program: "IM"}
)

type fixture struct {
	svc      *thesis.Service
	validate *validator.Validate
	students *student.Manager
	mails    *mailRecorder
}

// newFixture wires a service on an in-memory database; wrap decorates its thesis repository.
func newFixture(t *testing.T, wrap ...func(thesis.Repository) thesis.Repository) fixture {
	t.Helper()

	translator := core.NewTranslator()
	validate := validator.New()
	core.InitValidators(validate, translator)
	thesis.InitValidators(validate, translator)

	conf := &core.Config{Mail: core.MailConfig{
		StudentDomain:     "stud.example.org",
		StaffDomain:       "example.org",
		NotifySupervisors: true,
	}}
	db := inmemdb.Open()
	students := student.NewManager(inmemdb.NewStudentCache(db), rosterMap{alice.ID: alice, bob.ID: bob}, nopLogger{})
	dir := directoryMap{"weber": {ID: "weber", FirstName: "Tom", LastName: "Weber", Initials: "TW"}}
	mails := &mailRecorder{}

	var repo thesis.Repository = inmemdb.NewThesisRepository(db)
	for _, w := range wrap {
		repo = w(repo)
	}

	svc := thesis.NewService(
		conf, nopLogger{}, inmemdb.NewTxRunner(db),
		repo,
		inmemdb.NewSupervisorRepository(db),
		inmemdb.NewAssessorRepository(db),
		inmemdb.NewChairmanRepository(db),
		students, dir, mails,
	)
	return fixture{svc: svc, validate: validate, students: students, mails: mails}
}

var errUpdate = errors.New("connection reset")

type failingUpdates struct {
	thesis.Repository
}

func (r failingUpdates) UpdateThesis(context.Context, thesis.Thesis, ...core.DBExecutor) (thesis.Thesis, error) {
	return thesis.Thesis{}, errUpdate
}

func (f fixture) newThesis(t *testing.T, studentID int, title string, assessorEmail string) thesis.NewThesis {
	t.Helper()
	nt := thesis.NewThesis{
		StudentID: studentID,
		UpdateThesis: thesis.UpdateThesis{
			Title:     title,
			BeginDate: "2018-01-01",
			DueDate:   "2018-06-30",
		},
	}
	if assessorEmail != "" {
		nt.Assessor = &thesis.NewAssessor{FirstName: "Paul", LastName: "Second", Email: assessorEmail}
	}
	require.NoError(t, nt.Validate(f.validate))
	return nt
}

func (f fixture) create(t *testing.T, studentID int, title string, assessorEmail string) thesis.Thesis {
	t.Helper()
	th, err := f.svc.Create(context.Background(), miller, false, f.newThesis(t, studentID, title, assessorEmail))
	require.NoError(t, err)
	return th
}

func TestService_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("supervisor applies", func(t *testing.T) {
		f := newFixture(t)
		th := f.create(t, alice.ID, "Distributed caching", "paul@partner.example.com")

		assert.NotZero(t, th.ID)
		assert.Equal(t, thesis.StatusApplied, th.Status)
		assert.Equal(t, thesis.ApprovalPending, th.ApprovalStatus)
		assert.Equal(t, alice, th.Student)
		assert.Equal(t, "IB", th.Program)
		assert.Equal(t, "123456@stud.example.org", th.StudentEmail)
		assert.Equal(t, "miller", th.Supervisor.ID)
		require.NotNil(t, th.Assessor)
		assert.Equal(t, "paul@partner.example.com", th.Assessor.Email)

		got, err := f.svc.Get(ctx, th.SurrogateKey)
		require.NoError(t, err)
		assert.Equal(t, th, got)
	})

	t.Run("assessor reused by email", func(t *testing.T) {
		f := newFixture(t)
		th1 := f.create(t, alice.ID, "First", "paul@partner.example.com")
		th2 := f.create(t, bob.ID, "Second", "paul@partner.example.com")

		assert.Equal(t, th1.Assessor.ID, th2.Assessor.ID)
		assessors, err := f.svc.Assessors(ctx)
		require.NoError(t, err)
		assert.Len(t, assessors, 1)
	})

	t.Run("unknown student", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.Create(ctx, miller, false, f.newThesis(t, 999999, "Title", ""))
		require.Error(t, err)
		var verr *core.ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, "student_id", verr.Fields[0].Field)
	})

	t.Run("secretary on behalf of a supervisor", func(t *testing.T) {
		f := newFixture(t)
		nt := f.newThesis(t, alice.ID, "Title", "")
		nt.SupervisorID = "weber"
		th, err := f.svc.Create(ctx, office, true, nt)
		require.NoError(t, err)
		assert.Equal(t, "weber", th.Supervisor.ID)
		assert.Equal(t, "Weber", th.Supervisor.LastName)
	})

	t.Run("secretary without supervisor", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.Create(ctx, office, true, f.newThesis(t, alice.ID, "Title", ""))
		assert.True(t, core.IsValidationError(err))
	})

	t.Run("secretary with unknown supervisor", func(t *testing.T) {
		f := newFixture(t)
		nt := f.newThesis(t, alice.ID, "Title", "")
		nt.SupervisorID = "nobody"
		_, err := f.svc.Create(ctx, office, true, nt)
		assert.True(t, core.IsValidationError(err))
	})
}

func TestService_Query(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	first := f.create(t, alice.ID, "B title", "")
	second := f.create(t, bob.ID, "A title", "")

	nt := f.newThesis(t, alice.ID, "C title", "")
	nt.SupervisorID = "weber"
	_, err := f.svc.Create(ctx, office, true, nt)
	require.NoError(t, err)

	theses, err := f.svc.ForSupervisor(ctx, "miller")
	require.NoError(t, err)
	require.Len(t, theses, 2)
	assert.Equal(t, first.ID, theses[0].ID) // same due date, by id

	theses, err = f.svc.Query(ctx, thesis.QueryFilter{}, []core.DBOrdering{{Field: "title", Ascending: true}})
	require.NoError(t, err)
	require.Len(t, theses, 3)
	assert.Equal(t, second.ID, theses[0].ID)

	theses, err = f.svc.Query(ctx, thesis.QueryFilter{}, []core.DBOrdering{{Field: "student_email", Ascending: true}})
	require.NoError(t, err)
	assert.Equal(t, first.ID, theses[0].ID) // unknown ordering ignored

	_, _, err = f.svc.Approve(ctx, excom, first)
	require.NoError(t, err)
	pending, err := f.svc.PendingApprovals(ctx)
	require.NoError(t, err)
	assert.Len(t, pending, 2)
	for _, th := range pending {
		assert.NotEqual(t, first.ID, th.ID)
	}
}

func TestService_Transitions(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	th := f.create(t, alice.ID, "Title", "paul@partner.example.com")

	pt := thesis.ProlongThesis{ProlongationDate: "2018-07-31", Reason: "illness", Weeks: 4}
	require.NoError(t, pt.Validate(f.validate, th))
	th, ok, err := f.svc.Prolong(ctx, th, pt)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, thesis.StatusProlonged, th.Status)

	hi := thesis.HandInThesis{HandedInDate: "2018-07-20", NewTitle: "Final title"}
	require.NoError(t, hi.Validate(f.validate))
	th, ok, err = f.svc.HandIn(ctx, th, hi)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, thesis.StatusHandedIn, th.Status)
	assert.Equal(t, "Final title", th.Title)
	assert.False(t, th.IsLate())

	_, ok, err = f.svc.HandIn(ctx, th, hi)
	require.NoError(t, err)
	assert.False(t, ok, "handed in twice")

	_, ok, err = f.svc.Prolong(ctx, th, pt)
	require.NoError(t, err)
	assert.False(t, ok, "prolonged after hand-in")

	assert.ErrorIs(t, f.svc.Delete(ctx, th), thesis.ErrCannotDelete)

	grade, assessorGrade := 1.7, 2.3
	gt := thesis.GradeThesis{Grade: &grade, AssessorGrade: &assessorGrade, ExaminationDate: "2018-08-15"}
	require.NoError(t, gt.Validate(f.validate))
	th, ok, err = f.svc.Grade(ctx, th, gt)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, thesis.StatusGraded, th.Status)
	assert.Equal(t, 1.7, th.Grade.Float64)
	assert.Equal(t, 2.3, th.AssessorGrade.Float64)

	_, ok, err = f.svc.Grade(ctx, th, gt)
	require.NoError(t, err)
	assert.False(t, ok, "graded twice")

	got, err := f.svc.Get(ctx, th.SurrogateKey)
	require.NoError(t, err)
	assert.Equal(t, th, got)
}

func TestService_Decisions(t *testing.T) {
	ctx := context.Background()

	t.Run("approve", func(t *testing.T) {
		f := newFixture(t)
		th := f.create(t, alice.ID, "Title", "")

		th, ok, err := f.svc.Approve(ctx, excom, th)
		require.NoError(t, err)
		require.True(t, ok)
		assert.True(t, th.IsApproved())
		assert.True(t, th.ApprovalDate.Valid)
		require.NotNil(t, th.Chairman)
		assert.Equal(t, "schmidt", th.Chairman.ID)

		require.Len(t, f.mails.sent, 1)
		msg := f.mails.sent[0]
		assert.Equal(t, "thesis_approved", msg.TemplateName)
		assert.Equal(t, "miller@example.org", msg.To[0].Address)

		_, ok, err = f.svc.Approve(ctx, excom, th)
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Len(t, f.mails.sent, 1)

		_, ok, err = f.svc.Reject(ctx, excom, th, thesis.RejectThesis{Reason: "too late"})
		require.NoError(t, err)
		assert.False(t, ok, "rejected after approval")
	})

	t.Run("reject then approve", func(t *testing.T) {
		f := newFixture(t)
		th := f.create(t, alice.ID, "Title", "")

		th, ok, err := f.svc.Reject(ctx, excom, th, thesis.RejectThesis{Reason: "topic unclear"})
		require.NoError(t, err)
		require.True(t, ok)
		assert.True(t, th.IsRejected())
		assert.Equal(t, "topic unclear", th.RejectReason.String)
		require.Len(t, f.mails.sent, 1)
		assert.Equal(t, "thesis_rejected", f.mails.sent[0].TemplateName)

		_, ok, err = f.svc.Reject(ctx, excom, th, thesis.RejectThesis{Reason: "again"})
		require.NoError(t, err)
		assert.False(t, ok)

		th, ok, err = f.svc.Approve(ctx, excom, th)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.True(t, th.IsApproved())
	})

	t.Run("failed update rolls back", func(t *testing.T) {
		f := newFixture(t, func(repo thesis.Repository) thesis.Repository { return failingUpdates{repo} })
		th := f.create(t, alice.ID, "Title", "")

		_, ok, err := f.svc.Approve(ctx, excom, th)
		assert.False(t, ok)
		assert.True(t, errors.Is(err, errUpdate))

		_, ok, err = f.svc.Reject(ctx, excom, th, thesis.RejectThesis{Reason: "topic unclear"})
		assert.False(t, ok)
		assert.True(t, errors.Is(err, errUpdate))
		assert.Empty(t, f.mails.sent)

		stored, err := f.svc.Get(ctx, th.SurrogateKey)
		require.NoError(t, err)
		assert.Equal(t, thesis.ApprovalPending, stored.ApprovalStatus)
		assert.Nil(t, stored.Chairman)

		upd := f.newThesis(t, alice.ID, "New title", "paul@partner.example.com").UpdateThesis
		_, err = f.svc.Update(ctx, stored, upd)
		assert.True(t, errors.Is(err, errUpdate))
		assessors, err := f.svc.Assessors(ctx)
		require.NoError(t, err)
		assert.Empty(t, assessors, "assessor created in the failed transaction")
	})

	t.Run("reject without reason", func(t *testing.T) {
		f := newFixture(t)
		th := f.create(t, alice.ID, "Title", "")
		_, ok, err := f.svc.Reject(ctx, excom, th, thesis.RejectThesis{Reason: "  "})
		assert.False(t, ok)
		assert.True(t, core.IsValidationError(err))
		assert.Empty(t, f.mails.sent)
	})
}

func TestService_Deletes(t *testing.T) {
	ctx := context.Background()

	t.Run("thesis", func(t *testing.T) {
		f := newFixture(t)
		th := f.create(t, alice.ID, "Title", "")
		require.NoError(t, f.svc.Delete(ctx, th))
		_, err := f.svc.Get(ctx, th.SurrogateKey)
		assert.ErrorIs(t, err, thesis.ErrNotFound)
	})

	t.Run("supervisor cascades", func(t *testing.T) {
		f := newFixture(t)
		th := f.create(t, alice.ID, "Title", "")
		require.NoError(t, f.svc.DeleteSupervisor(ctx, "miller"))
		_, err := f.svc.Get(ctx, th.SurrogateKey)
		assert.ErrorIs(t, err, thesis.ErrNotFound)

		assert.ErrorIs(t, f.svc.DeleteSupervisor(ctx, "miller"), thesis.ErrSupervisorNotFound)
	})

	t.Run("assessor is cleared", func(t *testing.T) {
		f := newFixture(t)
		th := f.create(t, alice.ID, "Title", "paul@partner.example.com")
		require.NoError(t, f.svc.DeleteAssessor(ctx, th.Assessor.ID))

		got, err := f.svc.Get(ctx, th.SurrogateKey)
		require.NoError(t, err)
		assert.Nil(t, got.Assessor)

		assert.ErrorIs(t, f.svc.DeleteAssessor(ctx, th.Assessor.ID), thesis.ErrAssessorNotFound)
	})

	t.Run("student cascades", func(t *testing.T) {
		f := newFixture(t)
		th := f.create(t, alice.ID, "Title", "")
		other := f.create(t, bob.ID, "Other", "")

		require.NoError(t, f.svc.DeleteStudent(ctx, alice.ID))
		_, err := f.svc.Get(ctx, th.SurrogateKey)
		assert.ErrorIs(t, err, thesis.ErrNotFound)
		_, err = f.svc.Get(ctx, other.SurrogateKey)
		assert.NoError(t, err)

		// still in the roster
		_, err = f.students.Find(ctx, alice.ID)
		assert.NoError(t, err)
		assert.ErrorIs(t, f.svc.DeleteStudent(ctx, 999999), student.ErrNotFound)
	})
}
