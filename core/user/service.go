package user

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/thesispool/thesispool/core"
)

var (
	nowFunc = time.Now // mockable

	// errors
	ErrNotFound             = core.NewDomainError(core.KindNotFound, "user not found")
	ErrAuthenticationFailed = core.NewDomainError(core.KindBadCredentials, "authentication failed")
	ErrAccountDenied        = core.NewDomainError(core.KindDenied, "account not allowed to log in")
	ErrAccountDeactivated   = core.NewDomainError(core.KindDenied, "account deactivated")
)

type (
	Repository interface {
		GetUser(ctx context.Context, username string, exec ...core.DBExecutor) (User, error)
		// SaveUser inserts or updates the user. A nil PasswordHash keeps the stored one.
		SaveUser(ctx context.Context, usr User, exec ...core.DBExecutor) (User, error)
	}

	// Authenticator checks credentials against the department directory.
	// Wrong credentials and unknown users are reported as ErrAuthenticationFailed.
	Authenticator interface {
		Authenticate(ctx context.Context, username, password string) (Identity, error)
	}

	Service struct {
		conf   *core.Config
		logger core.Logger
		repo   Repository
		auth   Authenticator // nil disables directory logins
	}
)

func NewService(conf *core.Config, logger core.Logger, repo Repository, auth Authenticator) *Service {
	return &Service{
		conf:   conf,
		logger: logger,
		repo:   repo,
		auth:   auth,
	}
}

func (svc *Service) Get(ctx context.Context, username string) (User, error) {
	return svc.repo.GetUser(ctx, core.CleanString(username, true /* lower */))
}

// Authenticate logs a user in through the directory, falling back to local administrator accounts.
// Directory users get their flags from their group memberships, refreshed on every login.
func (svc *Service) Authenticate(ctx context.Context, username, password string) (User, error) {
	username = core.CleanString(username, true /* lower */)

	if svc.auth != nil {
		id, err := svc.auth.Authenticate(ctx, username, password)
		if err == nil {
			return svc.directoryLogin(ctx, id)
		}
		if errors.Cause(err) != ErrAuthenticationFailed {
			svc.logger.Warn(fmt.Sprintf("directory login of %q: %v", username, err), err)
		}
	}
	return svc.localLogin(ctx, username, password)
}

func (svc *Service) directoryLogin(ctx context.Context, id Identity) (User, error) {
	if id.IsMember(svc.conf.LDAP.DenyGroupDN) {
		return User{}, ErrAccountDenied
	}

	now := nowFunc().UTC()
	usr, err := svc.repo.GetUser(ctx, id.Username)
	switch {
	case err == nil:
		if !usr.IsActive {
			return User{}, ErrAccountDeactivated
		}
	case errors.Cause(err) == ErrNotFound:
		usr = User{Username: id.Username, IsActive: true, CreatedAt: now}
	default:
		return User{}, errors.Wrap(err, "getting user")
	}

	usr.FirstName = id.FirstName
	usr.LastName = id.LastName
	usr.Initials = id.Initials
	usr.Flags = FlagsFromGroups(id.Groups, svc.conf.LDAP.GroupFlags)
	usr.UpdatedAt = now
	usr.LastLogin = null.TimeFrom(now)
	usr.PasswordHash = nil

	usr, err = svc.repo.SaveUser(ctx, usr)
	return usr, errors.Wrap(err, "saving user")
}

func (svc *Service) localLogin(ctx context.Context, username, password string) (User, error) {
	usr, err := svc.repo.GetUser(ctx, username)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return User{}, ErrAuthenticationFailed
		}
		return User{}, errors.Wrap(err, "getting user")
	}
	if !usr.HasUsablePassword() || usr.CheckPassword(password) != nil {
		return User{}, ErrAuthenticationFailed
	}
	if !usr.IsActive {
		return User{}, ErrAccountDeactivated
	}

	now := nowFunc().UTC()
	usr.LastLogin = null.TimeFrom(now)
	usr.UpdatedAt = now
	usr, err = svc.repo.SaveUser(ctx, usr)
	return usr, errors.Wrap(err, "saving user")
}

// CheckActive verifies that a token holder may still act, e.g. on token refresh.
func (svc *Service) CheckActive(ctx context.Context, username string) (User, error) {
	usr, err := svc.repo.GetUser(ctx, username)
	if err != nil {
		return User{}, err
	}
	if !usr.IsActive {
		return User{}, ErrAccountDeactivated
	}
	return usr, nil
}

// AddLocalUser creates or updates a local administrator.
func (svc *Service) AddLocalUser(ctx context.Context, nu NewUser) (User, error) {
	now := nowFunc().UTC()
	usr, err := svc.repo.GetUser(ctx, nu.Username)
	if err != nil {
		if errors.Cause(err) != ErrNotFound {
			return User{}, errors.Wrap(err, "getting user")
		}
		usr = User{Username: nu.Username, CreatedAt: now}
	}
	usr.FirstName = nu.FirstName
	usr.LastName = nu.LastName
	usr.Initials = nu.Initials
	usr.Flags = nu.Flags
	usr.IsActive = true
	usr.UpdatedAt = now
	if err = usr.SetPassword(nu.Password); err != nil {
		return User{}, errors.Wrap(err, "setting password")
	}

	usr, err = svc.repo.SaveUser(ctx, usr)
	return usr, errors.Wrap(err, "saving user")
}

// SetPassword changes the password of an existing user.
func (svc *Service) SetPassword(ctx context.Context, sp SetPassword) (User, error) {
	usr, err := svc.repo.GetUser(ctx, sp.Username)
	if err != nil {
		return User{}, err
	}
	if err = usr.SetPassword(sp.Password); err != nil {
		return User{}, errors.Wrap(err, "setting password")
	}
	usr.UpdatedAt = nowFunc().UTC()

	usr, err = svc.repo.SaveUser(ctx, usr)
	return usr, errors.Wrap(err, "saving user")
}

// FeedToken returns the encoded username and a signed token authenticating the calendar feed of usr.
func (svc *Service) FeedToken(usr User) (uid, token string, err error) {
	token, err = MakeFeedToken(svc.conf, usr)
	if err != nil {
		return "", "", errors.Wrap(err, "making feed token")
	}
	return EncodeUID(usr), token, nil
}

// FeedUser returns the active user a calendar feed token was made for.
func (svc *Service) FeedUser(ctx context.Context, uid, token string) (User, error) {
	username, err := decodeUID(uid)
	if err != nil {
		return User{}, ErrInvalidToken
	}
	usr, err := svc.repo.GetUser(ctx, username)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return User{}, ErrInvalidToken
		}
		return User{}, errors.Wrap(err, "getting user")
	}
	if err = verifyFeedToken(svc.conf, usr, token); err != nil {
		return User{}, err
	}
	if !usr.IsActive {
		return User{}, ErrAccountDeactivated
	}
	return usr, nil
}
