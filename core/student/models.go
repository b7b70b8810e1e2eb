package student

import (
	"fmt"
	"strconv"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/thesispool/thesispool/core"
)

// Programs
const (
	ProgramMaster = "IM"
)

var (
	Programs = []string{"IB", "IMB", "UIB", "CSB", ProgramMaster}

	programTag  = "program"
	programText = "unknown program"
)

// InitValidators registers the student validators.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(programTag, programValidation)
	core.RegisterCustomTranslation(validate, translator, programTag, programText)
}

func programValidation(fl validator.FieldLevel) bool {
	if prg, ok := fl.Field().Interface().(string); ok {
		for _, p := range Programs {
			if p == prg {
				return true
			}
		}
	}
	return false
}

// Student is identified by the matriculation number.
type Student struct {
	ID        int    `json:"id" db:"id"`
	FirstName string `json:"first_name" db:"first_name"`
	LastName  string `json:"last_name" db:"last_name"`
	Program   string `json:"program" db:"program"`
}

// Email builds the student mail address from the matriculation number.
func (s Student) Email(domain string) string {
	return strconv.Itoa(s.ID) + "@" + domain
}

func (s Student) IsMaster() bool   { return s.Program == ProgramMaster }
func (s Student) IsBachelor() bool { return !s.IsMaster() }

func (s Student) String() string {
	return fmt.Sprintf("%s %s (%s)", s.FirstName, s.LastName, s.Program)
}

// NewStudent contains information needed to create a local Student record.
type NewStudent struct {
	ID        int    `json:"id" validate:"required,gt=0"`
	FirstName string `json:"first_name" validate:"notblank,max=30"`
	LastName  string `json:"last_name" validate:"notblank,max=30"`
	Program   string `json:"program" validate:"required,program"`
}

func (ns *NewStudent) Validate(validate *validator.Validate) error {
	ns.FirstName = core.CleanString(ns.FirstName)
	ns.LastName = core.CleanString(ns.LastName)
	ns.Program = core.CleanString(ns.Program)
	return validate.Struct(ns)
}
