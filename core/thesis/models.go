package thesis

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/volatiletech/null/v8"

	"github.com/thesispool/thesispool/core"
	"github.com/thesispool/thesispool/core/student"
)

// Status is the lifecycle status of a Thesis. Statuses are ordered.
type Status string

const (
	StatusApplied   Status = "AP"
	StatusProlonged Status = "PL"
	StatusHandedIn  Status = "HI"
	StatusGraded    Status = "GD"
)

var statusRanks = map[Status]int{
	StatusApplied:   0,
	StatusProlonged: 1,
	StatusHandedIn:  2,
	StatusGraded:    3,
}

func (s Status) Before(other Status) bool { return statusRanks[s] < statusRanks[other] }

func (s Status) Label() string {
	switch s {
	case StatusApplied:
		return "Angemeldet"
	case StatusProlonged:
		return "Verlängert"
	case StatusHandedIn:
		return "Abgegeben"
	case StatusGraded:
		return "Benotet"
	}
	return string(s)
}

// ApprovalStatus is the examination committee decision on a Thesis.
type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "pending"
	ApprovalApproved ApprovalStatus = "approved"
	ApprovalRejected ApprovalStatus = "rejected"
)

type (
	Supervisor struct {
		ID        string `json:"id" db:"id"` // directory username
		FirstName string `json:"first_name" db:"first_name"`
		LastName  string `json:"last_name" db:"last_name"`
		Initials  string `json:"initials" db:"initials"`
	}

	Assessor struct {
		ID        int    `json:"id" db:"id"`
		FirstName string `json:"first_name" db:"first_name"`
		LastName  string `json:"last_name" db:"last_name"`
		Email     string `json:"email" db:"email"`
	}

	ExcomChairman struct {
		ID        string `json:"id" db:"id"` // directory username
		FirstName string `json:"first_name" db:"first_name"`
		LastName  string `json:"last_name" db:"last_name"`
		Initials  string `json:"initials" db:"initials"`
	}

	// Actor is the authenticated person performing a transition.
	Actor struct {
		Username  string
		FirstName string
		LastName  string
		Initials  string
	}
)

func initial(name string) string {
	for _, r := range name {
		return string(r)
	}
	return ""
}

// ShortName formats the supervisor as "F. Last".
func (s Supervisor) ShortName() string {
	return fmt.Sprintf("%s. %s", initial(s.FirstName), s.LastName)
}

func (s Supervisor) String() string {
	return fmt.Sprintf("%s %s (%s)", s.FirstName, s.LastName, s.Initials)
}

// ShortName formats the assessor as "F.Last".
func (a Assessor) ShortName() string {
	return fmt.Sprintf("%s.%s", initial(a.FirstName), a.LastName)
}

func (a Assessor) String() string {
	return fmt.Sprintf("%s %s (%s)", a.FirstName, a.LastName, a.Email)
}

func SupervisorFromActor(a Actor) Supervisor {
	return Supervisor{ID: a.Username, FirstName: a.FirstName, LastName: a.LastName, Initials: a.Initials}
}

func ChairmanFromActor(a Actor) ExcomChairman {
	return ExcomChairman{ID: a.Username, FirstName: a.FirstName, LastName: a.LastName, Initials: a.Initials}
}

// Thesis is one student's thesis tracked through its administrative lifecycle.
// All dates are calendar days at midnight UTC.
type Thesis struct {
	ID            int       `json:"-"`
	SurrogateKey  uuid.UUID `json:"key"`
	Title         string    `json:"title"`
	BeginDate     time.Time `json:"begin_date"`
	DueDate       time.Time `json:"due_date"`
	External      bool      `json:"external"`
	ExternalWhere string    `json:"external_where"`
	StudentEmail  string    `json:"student_contact"`
	Program       string    `json:"thesis_program"`

	Status Status `json:"status"`

	ProlongationDate   null.Time   `json:"prolongation_date"`
	ProlongationReason null.String `json:"prolongation_reason"`
	ProlongationWeeks  null.Int    `json:"prolongation_weeks"`

	HandedInDate    null.Time `json:"handed_in_date"`
	RestrictionNote bool      `json:"restriction_note"`

	Grade           null.Float64 `json:"grade"`
	AssessorGrade   null.Float64 `json:"assessor_grade"`
	ExaminationDate null.Time    `json:"examination_date"`

	ApprovalStatus ApprovalStatus `json:"approval_status"`
	ApprovalDate   null.Time      `json:"approval_date"`
	RejectionDate  null.Time      `json:"rejection_date"`
	RejectReason   null.String    `json:"reject_reason"`

	Student    student.Student `json:"student"`
	Supervisor Supervisor      `json:"supervisor"`
	Assessor   *Assessor       `json:"assessor"`
	Chairman   *ExcomChairman  `json:"chairman"`

	CreatedAt time.Time `json:"created_at"` // UTC
	UpdatedAt time.Time `json:"updated_at"` // UTC
}

func (t *Thesis) String() string {
	return fmt.Sprintf("'%s' (%s)", t.Title, t.Student)
}

func (t *Thesis) WasProlonged() bool { return t.ProlongationDate.Valid }
func (t *Thesis) IsHandedIn() bool   { return t.HandedInDate.Valid }
func (t *Thesis) IsGraded() bool     { return t.Status == StatusGraded }
func (t *Thesis) IsApproved() bool   { return t.ApprovalStatus == ApprovalApproved }
func (t *Thesis) IsRejected() bool   { return t.ApprovalStatus == ApprovalRejected }
func (t *Thesis) IsMaster() bool     { return t.Program == student.ProgramMaster }

// Deadline is the prolongation date if prolonged, else the due date.
func (t *Thesis) Deadline() time.Time {
	if t.WasProlonged() {
		return t.ProlongationDate.Time
	}
	return t.DueDate
}

// IsLate reports whether the thesis was handed in after its deadline.
func (t *Thesis) IsLate() bool {
	if !t.IsHandedIn() {
		return false
	}
	return core.Date(t.HandedInDate.Time).After(core.Date(t.Deadline()))
}

// CanDelete reports whether nothing but the application has been recorded yet.
func (t *Thesis) CanDelete() bool {
	return t.Status == StatusApplied && t.ApprovalStatus == ApprovalPending
}

// Prolong moves the deadline to date. It returns false, without any change,
// once the thesis has been handed in.
func (t *Thesis) Prolong(date time.Time, reason string, weeks int) (bool, error) {
	if !t.Status.Before(StatusHandedIn) {
		return false, nil
	}

	date = core.Date(date)
	if !date.After(core.Date(t.DueDate)) {
		return false, core.NewFieldValidationError("prolongation_date", prolongBeforeDueText)
	}
	if strings.TrimSpace(reason) == "" {
		return false, core.NewFieldValidationError("reason", requiredText)
	}
	if weeks < 1 || weeks > 99 {
		return false, core.NewFieldValidationError("weeks", "weeks must be between 1 and 99")
	}

	t.ProlongationDate = null.TimeFrom(date)
	t.ProlongationReason = null.StringFrom(strings.TrimSpace(reason))
	t.ProlongationWeeks = null.IntFrom(weeks)
	t.Status = StatusProlonged
	return true, nil
}

// HandIn records the hand-in. A graded thesis keeps its status.
func (t *Thesis) HandIn(date time.Time, restrictionNote bool) bool {
	if t.Status == StatusHandedIn {
		return false
	}

	t.HandedInDate = null.TimeFrom(core.Date(date))
	t.RestrictionNote = restrictionNote
	if t.Status.Before(StatusHandedIn) {
		t.Status = StatusHandedIn
	}
	return true
}

// AssignGrade grades the thesis, once. A valid assessor grade is dropped when there is no assessor.
func (t *Thesis) AssignGrade(grade float64, assessorGrade null.Float64, examinationDate time.Time, restrictionNote bool) (bool, error) {
	if !t.Status.Before(StatusGraded) {
		return false, nil
	}

	var flds []core.FieldError
	if !ValidGrade(grade) {
		flds = append(flds, core.FieldError{Field: "grade", Error: errInvalidGrade.Error()})
	}
	if assessorGrade.Valid && !ValidGrade(assessorGrade.Float64) {
		flds = append(flds, core.FieldError{Field: "assessor_grade", Error: errInvalidGrade.Error()})
	}
	if flds != nil {
		return false, core.NewValidationError(errInvalidGrade, flds...)
	}
	if t.Assessor == nil {
		assessorGrade = null.Float64{}
	}

	t.Grade = null.Float64From(RoundGrade(grade))
	if assessorGrade.Valid {
		assessorGrade = null.Float64From(RoundGrade(assessorGrade.Float64))
	}
	t.AssessorGrade = assessorGrade
	t.ExaminationDate = null.TimeFrom(core.Date(examinationDate))
	t.RestrictionNote = restrictionNote
	t.Status = StatusGraded
	return true, nil
}

// Approve records the chairman's approval. It returns false if already approved.
func (t *Thesis) Approve(actor Actor, now time.Time) bool {
	if t.ApprovalStatus == ApprovalApproved {
		return false
	}

	chairman := ChairmanFromActor(actor)
	t.Chairman = &chairman
	t.ApprovalDate = null.TimeFrom(core.Date(now))
	t.ApprovalStatus = ApprovalApproved
	return true
}

// Reject records the chairman's rejection. It returns false unless the decision is pending.
func (t *Thesis) Reject(actor Actor, reason string, now time.Time) (bool, error) {
	if t.ApprovalStatus != ApprovalPending {
		return false, nil
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return false, core.NewFieldValidationError("reason", requiredText)
	}

	chairman := ChairmanFromActor(actor)
	t.Chairman = &chairman
	t.RejectReason = null.StringFrom(reason)
	t.RejectionDate = null.TimeFrom(core.Date(now))
	t.ApprovalStatus = ApprovalRejected
	return true, nil
}
