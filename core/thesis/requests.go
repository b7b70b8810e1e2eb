package thesis

import (
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/thesispool/thesispool/core"
)

const DateLayout = "2006-01-02"

var (
	gradeTag  = "grade"
	gradeText = errInvalidGrade.Error()

	dueBeforeBeginText     = "due date must be later than begin date"
	prolongBeforeDueText   = "prolongation date must be later than due date"
	requiredText           = "this field is required"
	studentNotFoundText    = "student does not exist"
	supervisorNotFoundText = "supervisor does not exist"
)

// InitValidators registers the thesis validators.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(gradeTag, gradeValidation)
	core.RegisterCustomTranslation(validate, translator, gradeTag, gradeText)
}

func gradeValidation(fl validator.FieldLevel) bool {
	if g, ok := fl.Field().Interface().(float64); ok {
		return ValidGrade(g)
	}
	return false
}

func parseDate(s string) time.Time {
	d, _ := time.Parse(DateLayout, s) // format checked by the `datetime` tag
	return d
}

type NewAssessor struct {
	FirstName string `json:"first_name" validate:"max=30"`
	LastName  string `json:"last_name" validate:"max=30"`
	Email     string `json:"email" validate:"omitempty,email,max=80"`
}

func (na *NewAssessor) clean() {
	na.FirstName = core.CleanString(na.FirstName)
	na.LastName = core.CleanString(na.LastName)
	na.Email = core.CleanString(na.Email, true /* lower */)
}

// toAssessor returns nil when no assessor email was given.
func (na *NewAssessor) toAssessor() *Assessor {
	if na == nil || na.Email == "" {
		return nil
	}
	return &Assessor{FirstName: na.FirstName, LastName: na.LastName, Email: na.Email}
}

// UpdateThesis defines what information may be provided to modify an existing Thesis.
type UpdateThesis struct {
	Title          string       `json:"title" validate:"notblank,max=300"`
	BeginDate      string       `json:"begin_date" validate:"required,datetime=2006-01-02"`
	DueDate        string       `json:"due_date" validate:"required,datetime=2006-01-02"`
	External       bool         `json:"external"`
	ExternalWhere  string       `json:"external_where" validate:"max=300"`
	StudentContact string       `json:"student_contact" validate:"omitempty,email"`
	Assessor       *NewAssessor `json:"assessor"`

	begin, due time.Time
}

func (upd *UpdateThesis) clean() {
	upd.Title = core.CleanString(upd.Title)
	upd.ExternalWhere = core.CleanString(upd.ExternalWhere)
	upd.StudentContact = core.CleanString(upd.StudentContact, true /* lower */)
	if upd.Assessor != nil {
		upd.Assessor.clean()
	}
	if !upd.External {
		upd.ExternalWhere = ""
	}
}

func (upd *UpdateThesis) parseDates() error {
	upd.begin, upd.due = parseDate(upd.BeginDate), parseDate(upd.DueDate)
	if !upd.due.After(upd.begin) {
		return core.NewFieldValidationError("due_date", dueBeforeBeginText)
	}
	return nil
}

func (upd *UpdateThesis) Validate(validate *validator.Validate) error {
	upd.clean()
	if err := validate.Struct(upd); err != nil {
		return err
	}
	return upd.parseDates()
}

// NewThesis contains information needed to apply for a new Thesis.
type NewThesis struct {
	StudentID    int    `json:"student_id" validate:"required,gt=0"`
	SupervisorID string `json:"supervisor_id"` // secretaries apply on behalf of a supervisor
	UpdateThesis
}

func (nt *NewThesis) Validate(validate *validator.Validate) error {
	nt.SupervisorID = core.CleanString(nt.SupervisorID, true /* lower */)
	nt.UpdateThesis.clean()
	if err := validate.Struct(nt); err != nil {
		return err
	}
	return nt.UpdateThesis.parseDates()
}

type ProlongThesis struct {
	ProlongationDate string `json:"prolongation_date" validate:"required,datetime=2006-01-02"`
	Reason           string `json:"reason" validate:"notblank,max=2000"`
	Weeks            int    `json:"weeks" validate:"required,min=1,max=99"`

	date time.Time
}

// Validate skips the checks once th can no longer be prolonged; Thesis.Prolong refuses it then.
func (pt *ProlongThesis) Validate(validate *validator.Validate, th Thesis) error {
	if !th.Status.Before(StatusHandedIn) {
		return nil
	}
	pt.Reason = core.CleanString(pt.Reason)
	if err := validate.Struct(pt); err != nil {
		return err
	}
	pt.date = parseDate(pt.ProlongationDate)
	if !pt.date.After(core.Date(th.DueDate)) {
		return core.NewFieldValidationError("prolongation_date", prolongBeforeDueText)
	}
	return nil
}

type HandInThesis struct {
	HandedInDate    string `json:"handed_in_date" validate:"required,datetime=2006-01-02"`
	RestrictionNote bool   `json:"restriction_note"`
	NewTitle        string `json:"new_title" validate:"max=300"` // keeps the title when blank

	date time.Time
}

func (hi *HandInThesis) Validate(validate *validator.Validate) error {
	hi.NewTitle = core.CleanString(hi.NewTitle)
	if err := validate.Struct(hi); err != nil {
		return err
	}
	hi.date = parseDate(hi.HandedInDate)
	return nil
}

type GradeThesis struct {
	Grade           *float64 `json:"grade" validate:"required,grade"`
	AssessorGrade   *float64 `json:"assessor_grade" validate:"omitempty,grade"`
	ExaminationDate string   `json:"examination_date" validate:"required,datetime=2006-01-02"`
	RestrictionNote bool     `json:"restriction_note"`
	HandedInDate    string   `json:"handed_in_date" validate:"omitempty,datetime=2006-01-02"` // recorded when missing

	examination, handedIn time.Time
}

func (gt *GradeThesis) Validate(validate *validator.Validate) error {
	if err := validate.Struct(gt); err != nil {
		return err
	}
	gt.examination = parseDate(gt.ExaminationDate)
	if gt.HandedInDate != "" {
		gt.handedIn = parseDate(gt.HandedInDate)
	}
	return nil
}

func (gt *GradeThesis) assessorGrade() null.Float64 {
	return null.Float64FromPtr(gt.AssessorGrade)
}

type RejectThesis struct {
	Reason string `json:"reason" validate:"notblank,max=2000"`
}

func (rt *RejectThesis) Validate(validate *validator.Validate) error {
	rt.Reason = core.CleanString(rt.Reason)
	return validate.Struct(rt)
}

type QueryFilter struct {
	SupervisorID string   `query:"supervisor"`
	Statuses     []Status `query:"status"`
	NotApproved  bool     `query:"-"`
}
