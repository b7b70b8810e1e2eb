package thesis

import (
	"context"
	"fmt"
	"net/mail"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/thesispool/thesispool/core"
	"github.com/thesispool/thesispool/core/student"
)

var (
	nowFunc = time.Now // mockable

	// errors
	ErrNotFound           = core.NewDomainError(core.KindNotFound, "thesis not found")
	ErrSupervisorNotFound = core.NewDomainError(core.KindNotFound, "supervisor not found")
	ErrAssessorNotFound   = core.NewDomainError(core.KindNotFound, "assessor not found")
	ErrCannotDelete       = core.NewDomainError(core.KindConflict, "thesis can no longer be deleted")

	// fields the overview may be ordered by
	orderingFields  = []string{"due_date", "begin_date", "title", "status", "created_at"}
	defaultOrdering = []core.DBOrdering{{Field: "due_date", Ascending: true}}
)

type (
	Repository interface {
		CreateThesis(ctx context.Context, th Thesis, exec ...core.DBExecutor) (Thesis, error)
		GetThesis(ctx context.Context, key uuid.UUID, exec ...core.DBExecutor) (Thesis, error)
		QueryTheses(ctx context.Context, filter QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]Thesis, error)
		UpdateThesis(ctx context.Context, th Thesis, exec ...core.DBExecutor) (Thesis, error)
		DeleteThesis(ctx context.Context, id int, exec ...core.DBExecutor) error
		DeleteThesesBySupervisor(ctx context.Context, supervisorID string, exec ...core.DBExecutor) (int, error)
		DeleteThesesByStudent(ctx context.Context, studentID int, exec ...core.DBExecutor) (int, error)
		// ClearAssessor nulls the assessor reference of all theses of the given assessor.
		ClearAssessor(ctx context.Context, assessorID int, exec ...core.DBExecutor) (int, error)
	}

	SupervisorRepository interface {
		SaveSupervisor(ctx context.Context, s Supervisor, exec ...core.DBExecutor) error // insert or update
		GetSupervisor(ctx context.Context, id string, exec ...core.DBExecutor) (Supervisor, error)
		DeleteSupervisor(ctx context.Context, id string, exec ...core.DBExecutor) error
	}

	AssessorRepository interface {
		// GetOrCreateAssessor looks the assessor up by email and creates it if missing.
		GetOrCreateAssessor(ctx context.Context, a Assessor, exec ...core.DBExecutor) (Assessor, error)
		GetAssessor(ctx context.Context, id int, exec ...core.DBExecutor) (Assessor, error)
		QueryAssessors(ctx context.Context, exec ...core.DBExecutor) ([]Assessor, error)
		DeleteAssessor(ctx context.Context, id int, exec ...core.DBExecutor) error
	}

	ChairmanRepository interface {
		SaveChairman(ctx context.Context, c ExcomChairman, exec ...core.DBExecutor) error // insert or update
	}

	// Directory resolves supervisors from the department directory.
	// Lookup failures are reported as not found.
	Directory interface {
		FetchSupervisor(ctx context.Context, uid string) (Supervisor, bool)
		FetchSupervisors(ctx context.Context) []Supervisor
	}

	Service struct {
		conf      *core.Config
		logger    core.Logger
		tx        core.TxRunner
		repo      Repository
		supRepo   SupervisorRepository
		assRepo   AssessorRepository
		chairRepo ChairmanRepository
		students  *student.Manager
		directory Directory
		mailSvc   core.EmailService
	}
)

func NewService(
	conf *core.Config,
	logger core.Logger,
	tx core.TxRunner,
	repo Repository,
	supRepo SupervisorRepository,
	assRepo AssessorRepository,
	chairRepo ChairmanRepository,
	students *student.Manager,
	directory Directory,
	mailSvc core.EmailService,
) *Service {
	return &Service{
		conf:      conf,
		logger:    logger,
		tx:        tx,
		repo:      repo,
		supRepo:   supRepo,
		assRepo:   assRepo,
		chairRepo: chairRepo,
		students:  students,
		directory: directory,
		mailSvc:   mailSvc,
	}
}

func (svc *Service) findStudent(ctx context.Context, id int) (student.Student, error) {
	st, err := svc.students.Find(ctx, id)
	if err != nil {
		if err == student.ErrNotFound {
			return student.Student{}, core.NewValidationError(err, core.FieldError{Field: "student_id", Error: studentNotFoundText})
		}
		return student.Student{}, errors.Wrap(err, "finding student")
	}
	return st, nil
}

// resolveSupervisor returns the supervisor the thesis is applied for:
// the actor, or for secretaries the one named in the request.
func (svc *Service) resolveSupervisor(ctx context.Context, actor Actor, onBehalf bool, supervisorID string) (Supervisor, error) {
	if !onBehalf {
		return SupervisorFromActor(actor), nil
	}
	if supervisorID == "" {
		return Supervisor{}, core.NewFieldValidationError("supervisor_id", requiredText)
	}
	if sup, ok := svc.directory.FetchSupervisor(ctx, supervisorID); ok {
		return sup, nil
	}
	sup, err := svc.supRepo.GetSupervisor(ctx, supervisorID)
	if err != nil {
		if errors.Cause(err) == ErrSupervisorNotFound {
			return Supervisor{}, core.NewFieldValidationError("supervisor_id", supervisorNotFoundText)
		}
		return Supervisor{}, errors.Wrap(err, "getting supervisor")
	}
	return sup, nil
}

func (svc *Service) resolveAssessor(ctx context.Context, na *NewAssessor, exec core.DBExecutor) (*Assessor, error) {
	a := na.toAssessor()
	if a == nil {
		return nil, nil
	}
	saved, err := svc.assRepo.GetOrCreateAssessor(ctx, *a, exec)
	if err != nil {
		return nil, errors.Wrap(err, "getting or creating assessor")
	}
	return &saved, nil
}

// Create applies for a new thesis. Secretaries (onBehalf) name the supervisor in nt.
func (svc *Service) Create(ctx context.Context, actor Actor, onBehalf bool, nt NewThesis) (Thesis, error) {
	st, err := svc.findStudent(ctx, nt.StudentID)
	if err != nil {
		return Thesis{}, err
	}
	sup, err := svc.resolveSupervisor(ctx, actor, onBehalf, nt.SupervisorID)
	if err != nil {
		return Thesis{}, err
	}
	if err = svc.students.EnsureCached(ctx, st); err != nil {
		return Thesis{}, errors.Wrap(err, "caching student")
	}

	contact := nt.StudentContact
	if contact == "" {
		contact = st.Email(svc.conf.Mail.StudentDomain)
	}
	now := nowFunc().UTC()
	th := Thesis{
		SurrogateKey:   uuid.New(),
		Title:          nt.Title,
		BeginDate:      nt.begin,
		DueDate:        nt.due,
		External:       nt.External,
		ExternalWhere:  nt.ExternalWhere,
		StudentEmail:   contact,
		Program:        st.Program,
		Status:         StatusApplied,
		ApprovalStatus: ApprovalPending,
		Student:        st,
		Supervisor:     sup,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	err = svc.tx.RunInTx(ctx, func(exec core.DBExecutor) error {
		if err := svc.supRepo.SaveSupervisor(ctx, sup, exec); err != nil {
			return errors.Wrap(err, "saving supervisor")
		}
		if th.Assessor, err = svc.resolveAssessor(ctx, nt.Assessor, exec); err != nil {
			return err
		}
		th, err = svc.repo.CreateThesis(ctx, th, exec)
		return errors.Wrap(err, "creating thesis")
	})
	if err != nil {
		return Thesis{}, err
	}
	return th, nil
}

func (svc *Service) Get(ctx context.Context, key uuid.UUID) (Thesis, error) {
	return svc.repo.GetThesis(ctx, key)
}

// Query lists theses ordered by due date unless other allowed orderings are given.
func (svc *Service) Query(ctx context.Context, filter QueryFilter, ordering []core.DBOrdering) ([]Thesis, error) {
	ordering = core.FilterOrderings(ordering, orderingFields...)
	if len(ordering) == 0 {
		ordering = defaultOrdering
	}
	return svc.repo.QueryTheses(ctx, filter, ordering)
}

// ForSupervisor lists the theses of a supervisor by due date.
func (svc *Service) ForSupervisor(ctx context.Context, supervisorID string) ([]Thesis, error) {
	return svc.Query(ctx, QueryFilter{SupervisorID: supervisorID}, nil)
}

// PendingApprovals lists the theses the examination committee has not approved yet.
func (svc *Service) PendingApprovals(ctx context.Context) ([]Thesis, error) {
	return svc.Query(ctx, QueryFilter{NotApproved: true}, nil)
}

func (svc *Service) Update(ctx context.Context, th Thesis, upd UpdateThesis) (Thesis, error) {
	if th.WasProlonged() && !th.ProlongationDate.Time.After(upd.due) {
		return Thesis{}, core.NewFieldValidationError("due_date", prolongBeforeDueText)
	}

	th.Title = upd.Title
	th.BeginDate = upd.begin
	th.DueDate = upd.due
	th.External = upd.External
	th.ExternalWhere = upd.ExternalWhere
	if upd.StudentContact != "" {
		th.StudentEmail = upd.StudentContact
	}
	th.UpdatedAt = nowFunc().UTC()

	err := svc.tx.RunInTx(ctx, func(exec core.DBExecutor) error {
		var err error
		if th.Assessor, err = svc.resolveAssessor(ctx, upd.Assessor, exec); err != nil {
			return err
		}
		th, err = svc.repo.UpdateThesis(ctx, th, exec)
		return errors.Wrap(err, "updating thesis")
	})
	if err != nil {
		return Thesis{}, err
	}
	return th, nil
}

// Delete removes a thesis on which nothing but the application has been recorded.
func (svc *Service) Delete(ctx context.Context, th Thesis) error {
	if !th.CanDelete() {
		return ErrCannotDelete
	}
	return errors.Wrap(svc.repo.DeleteThesis(ctx, th.ID), "deleting thesis")
}

func (svc *Service) save(ctx context.Context, th Thesis) (Thesis, error) {
	th.UpdatedAt = nowFunc().UTC()
	saved, err := svc.repo.UpdateThesis(ctx, th)
	return saved, errors.Wrap(err, "updating thesis")
}

// Prolong returns false, with th unchanged, when the thesis can no longer be prolonged.
func (svc *Service) Prolong(ctx context.Context, th Thesis, pt ProlongThesis) (Thesis, bool, error) {
	ok, err := th.Prolong(pt.date, pt.Reason, pt.Weeks)
	if err != nil || !ok {
		return th, false, err
	}
	th, err = svc.save(ctx, th)
	return th, err == nil, err
}

// HandIn returns false, with th unchanged, when the thesis was handed in already.
func (svc *Service) HandIn(ctx context.Context, th Thesis, hi HandInThesis) (Thesis, bool, error) {
	orig := th
	if !th.HandIn(hi.date, hi.RestrictionNote) {
		return orig, false, nil
	}
	if hi.NewTitle != "" {
		th.Title = hi.NewTitle
	}
	th, err := svc.save(ctx, th)
	return th, err == nil, err
}

// Grade returns false, with th unchanged, when the thesis was graded already.
func (svc *Service) Grade(ctx context.Context, th Thesis, gt GradeThesis) (Thesis, bool, error) {
	ok, err := th.AssignGrade(*gt.Grade, gt.assessorGrade(), gt.examination, gt.RestrictionNote)
	if err != nil || !ok {
		return th, false, err
	}
	if !th.IsHandedIn() && !gt.handedIn.IsZero() {
		th.HandedInDate.SetValid(gt.handedIn)
	}
	th, err = svc.save(ctx, th)
	return th, err == nil, err
}

// Approve records the approval and the chairman in one transaction, then notifies the supervisor.
func (svc *Service) Approve(ctx context.Context, actor Actor, th Thesis) (Thesis, bool, error) {
	if !th.Approve(actor, nowFunc()) {
		return th, false, nil
	}
	th, err := svc.decide(ctx, th)
	if err != nil {
		return Thesis{}, false, err
	}
	svc.logger.Info(fmt.Sprintf("thesis %s approved by %s", th.SurrogateKey, actor.Username), th)
	svc.notify(th, "thesis_approved", "Thesis approved")
	return th, true, nil
}

// Reject records the rejection and the chairman in one transaction, then notifies the supervisor.
func (svc *Service) Reject(ctx context.Context, actor Actor, th Thesis, rt RejectThesis) (Thesis, bool, error) {
	ok, err := th.Reject(actor, rt.Reason, nowFunc())
	if err != nil || !ok {
		return th, false, err
	}
	if th, err = svc.decide(ctx, th); err != nil {
		return Thesis{}, false, err
	}
	svc.logger.Info(fmt.Sprintf("thesis %s rejected by %s", th.SurrogateKey, actor.Username), th)
	svc.notify(th, "thesis_rejected", "Thesis rejected")
	return th, true, nil
}

func (svc *Service) decide(ctx context.Context, th Thesis) (Thesis, error) {
	th.UpdatedAt = nowFunc().UTC()
	err := svc.tx.RunInTx(ctx, func(exec core.DBExecutor) error {
		if err := svc.chairRepo.SaveChairman(ctx, *th.Chairman, exec); err != nil {
			return errors.Wrap(err, "saving chairman")
		}
		var err error
		th, err = svc.repo.UpdateThesis(ctx, th, exec)
		return errors.Wrap(err, "updating thesis")
	})
	return th, err
}

type decisionMailData struct {
	Supervisor Supervisor
	Thesis     Thesis
}

func (svc *Service) notify(th Thesis, tmpl, subject string) {
	if !svc.conf.Mail.NotifySupervisors || svc.conf.Mail.StaffDomain == "" {
		return
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To: []mail.Address{{
			Name:    th.Supervisor.FirstName + " " + th.Supervisor.LastName,
			Address: th.Supervisor.ID + "@" + svc.conf.Mail.StaffDomain,
		}},
		Subject:      subject,
		TemplateName: tmpl,
		TemplateData: decisionMailData{Supervisor: th.Supervisor, Thesis: th},
	})
}

// Supervisors lists the professors of the department directory.
func (svc *Service) Supervisors(ctx context.Context) []Supervisor {
	return svc.directory.FetchSupervisors(ctx)
}

// DeleteSupervisor deletes the supervisor along with all of its theses.
func (svc *Service) DeleteSupervisor(ctx context.Context, id string) error {
	return svc.tx.RunInTx(ctx, func(exec core.DBExecutor) error {
		if _, err := svc.supRepo.GetSupervisor(ctx, id, exec); err != nil {
			return err
		}
		n, err := svc.repo.DeleteThesesBySupervisor(ctx, id, exec)
		if err != nil {
			return errors.Wrap(err, "deleting supervisor theses")
		}
		svc.logger.Info(fmt.Sprintf("deleting supervisor %q along with %d theses", id, n))
		return errors.Wrap(svc.supRepo.DeleteSupervisor(ctx, id, exec), "deleting supervisor")
	})
}

func (svc *Service) Assessors(ctx context.Context) ([]Assessor, error) {
	return svc.assRepo.QueryAssessors(ctx)
}

// DeleteAssessor deletes the assessor; its theses are kept without assessor.
func (svc *Service) DeleteAssessor(ctx context.Context, id int) error {
	return svc.tx.RunInTx(ctx, func(exec core.DBExecutor) error {
		if _, err := svc.assRepo.GetAssessor(ctx, id, exec); err != nil {
			return err
		}
		n, err := svc.repo.ClearAssessor(ctx, id, exec)
		if err != nil {
			return errors.Wrap(err, "clearing assessor")
		}
		svc.logger.Info(fmt.Sprintf("deleting assessor %d, removed from %d theses", id, n))
		return errors.Wrap(svc.assRepo.DeleteAssessor(ctx, id, exec), "deleting assessor")
	})
}

// DeleteStudent deletes the cached student along with all of its theses.
func (svc *Service) DeleteStudent(ctx context.Context, id int) error {
	if _, err := svc.students.Find(ctx, id); err != nil {
		return err
	}
	n, err := svc.repo.DeleteThesesByStudent(ctx, id)
	if err != nil {
		return errors.Wrap(err, "deleting student theses")
	}
	svc.logger.Info(fmt.Sprintf("deleting student %d along with %d theses", id, n))
	return svc.students.Uncache(ctx, id)
}
