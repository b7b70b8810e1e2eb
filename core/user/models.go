package user

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"
	"golang.org/x/crypto/bcrypt"

	"github.com/thesispool/thesispool/core"
	"github.com/thesispool/thesispool/core/thesis"
)

// Flags granted by directory group memberships (see core.LDAPConfig.GroupFlags)
const (
	FlagProf      = "is_prof"
	FlagStaff     = "is_staff"
	FlagSecretary = "is_secretary"
	FlagExcom     = "is_excom"
	FlagHead      = "is_head"
)

type Flags struct {
	IsProf      bool `json:"is_prof" db:"is_prof"`
	IsStaff     bool `json:"is_staff" db:"is_staff"`
	IsSecretary bool `json:"is_secretary" db:"is_secretary"`
	IsExcom     bool `json:"is_excom" db:"is_excom"`
	IsHead      bool `json:"is_head" db:"is_head"`
}

func (f *Flags) set(flag string) {
	switch flag {
	case FlagProf:
		f.IsProf = true
	case FlagStaff:
		f.IsStaff = true
	case FlagSecretary:
		f.IsSecretary = true
	case FlagExcom:
		f.IsExcom = true
	case FlagHead:
		f.IsHead = true
	}
}

// FlagsFromGroups maps the group DNs of a directory user through table ({groupDN: flag}).
// DNs are compared case-insensitively.
func FlagsFromGroups(groupDNs []string, table map[string]string) Flags {
	var flags Flags
	for dn, flag := range table {
		for _, g := range groupDNs {
			if strings.EqualFold(dn, g) {
				flags.set(flag)
				break
			}
		}
	}
	return flags
}

type User struct {
	Username  string `json:"username" db:"username"`
	FirstName string `json:"first_name" db:"first_name"`
	LastName  string `json:"last_name" db:"last_name"`
	Initials  string `json:"initials" db:"initials"`
	Flags
	IsActive     bool      `json:"is_active" db:"is_active"`
	PasswordHash []byte    `json:"-" db:"password_hash"`       // local administrators only
	CreatedAt    time.Time `json:"created_at" db:"created_at"` // UTC
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"` // UTC
	LastLogin    null.Time `json:"last_login" db:"last_login"` // UTC
}

func (u User) Name() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

func (u User) String() string {
	return fmt.Sprintf("%s (%s)", u.Name(), u.Username)
}

// Actor is the user as seen by the thesis workflow.
func (u User) Actor() thesis.Actor {
	return thesis.Actor{Username: u.Username, FirstName: u.FirstName, LastName: u.LastName, Initials: u.Initials}
}

func (u *User) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

func (u *User) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(pwd))
}

func (u *User) HasUsablePassword() bool { return len(u.PasswordHash) > 0 }

// Identity is what the directory knows about an authenticated user.
type Identity struct {
	Username  string
	FirstName string
	LastName  string
	Initials  string
	Groups    []string // group DNs
}

func (id Identity) IsMember(groupDN string) bool {
	if groupDN == "" {
		return false
	}
	for _, g := range id.Groups {
		if strings.EqualFold(g, groupDN) {
			return true
		}
	}
	return false
}

// NewUser contains information needed to create a local administrator.
type NewUser struct {
	Username        string `json:"username" validate:"required,min=2,max=30,username"`
	FirstName       string `json:"first_name" validate:"max=30"`
	LastName        string `json:"last_name" validate:"max=30"`
	Initials        string `json:"initials" validate:"max=5"`
	Password        string `json:"password" validate:"required"`
	PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=Password"`
	Flags
}

func (nu *NewUser) Validate(validate *validator.Validate) error {
	nu.Username = core.CleanString(nu.Username, true /* lower */)
	nu.FirstName = core.CleanString(nu.FirstName)
	nu.LastName = core.CleanString(nu.LastName)
	nu.Initials = strings.ToUpper(core.CleanString(nu.Initials))
	return validate.Struct(nu)
}

// SetPassword changes the password of an existing local user.
type SetPassword struct {
	Username        string `json:"username" validate:"required"`
	Password        string `json:"password" validate:"required"`
	PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=Password"`
}

func (sp *SetPassword) Validate(validate *validator.Validate) error {
	sp.Username = core.CleanString(sp.Username, true /* lower */)
	return validate.Struct(sp)
}

type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

func (lr *LoginRequest) Validate(validate *validator.Validate) error {
	lr.Username = core.CleanString(lr.Username, true /* lower */)
	return validate.Struct(lr)
}
