package core

import "github.com/pkg/errors"

// ErrorKind tells the outer layers how a domain error should be reported.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindNotFound
	KindConflict       // the record is in a state that forbids the operation
	KindDenied         // the account may not do this
	KindBadCredentials // login failed
)

type domainError struct {
	kind ErrorKind
	msg  string
}

func (e *domainError) Error() string {
	return e.msg
}

// NewDomainError returns a sentinel error of the given kind.
func NewDomainError(kind ErrorKind, msg string) error {
	return &domainError{kind: kind, msg: msg}
}

// KindOf returns the kind of the first domain error in the chain of err.
func KindOf(err error) ErrorKind {
	var de *domainError
	if errors.As(err, &de) {
		return de.kind
	}
	return KindUnknown
}

// FieldError is one invalid request field and its user facing message.
type FieldError struct {
	Field string
	Error string
}

// ValidationError is a bad request; Fields is empty when no single field is to blame.
type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{Err: err, Fields: flds}
}

// NewFieldValidationError is a shortcut for a ValidationError on a single field.
func NewFieldValidationError(field, msg string) error {
	return &ValidationError{Err: errors.New(msg), Fields: []FieldError{{Field: field, Error: msg}}}
}

func (err ValidationError) Error() string {
	if err.Err == nil {
		return ""
	}
	return err.Err.Error()
}

// FieldMap returns the messages keyed by field, or nil without field errors.
func (err ValidationError) FieldMap() map[string]string {
	if len(err.Fields) == 0 {
		return nil
	}
	m := make(map[string]string, len(err.Fields))
	for _, f := range err.Fields {
		m[f.Field] = f.Error
	}
	return m
}

// IsValidationError reports whether the cause of err is a *ValidationError.
func IsValidationError(err error) bool {
	_, ok := errors.Cause(err).(*ValidationError)
	return ok
}

// shutdown errors make the API server stop gracefully, e.g. on data integrity issues.
type shutdown struct {
	message string
}

func NewShutdownError(msg string) error {
	return &shutdown{message: msg}
}

func (s *shutdown) Error() string {
	return s.message
}

func IsShutdown(err error) bool {
	var s *shutdown
	return errors.As(err, &s)
}
