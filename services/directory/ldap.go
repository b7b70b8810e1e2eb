// Package directory resolves supervisors and logins against the department LDAP.
package directory

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/url"
	"regexp"
	"sort"

	"github.com/go-ldap/ldap/v3"
	"github.com/pkg/errors"

	"github.com/thesispool/thesispool/core"
	"github.com/thesispool/thesispool/core/thesis"
	"github.com/thesispool/thesispool/core/user"
)

var (
	dialFunc = dial // mockable

	uidRgx = regexp.MustCompile(`^[a-zA-Z0-9._-]+$`)

	userAttributes = []string{"uid", "givenName", "sn", "initials"}
)

type conn interface {
	Bind(username, password string) error
	Search(req *ldap.SearchRequest) (*ldap.SearchResult, error)
	Close()
}

type ldapConn struct {
	*ldap.Conn
}

func (c ldapConn) Close() { c.Conn.Close() }

func dial(conf core.LDAPConfig) (conn, error) {
	l, err := ldap.DialURL(conf.URL)
	if err != nil {
		return nil, errors.Wrap(err, "dialing ldap")
	}
	if conf.StartTLS {
		var host string
		if u, err := url.Parse(conf.URL); err == nil {
			host = u.Hostname()
		}
		err = l.StartTLS(&tls.Config{ServerName: host, InsecureSkipVerify: conf.InsecureSkipVerify})
		if err != nil {
			l.Close()
			return nil, errors.Wrap(err, "starting tls")
		}
	}
	return ldapConn{l}, nil
}

// Directory talks to the department LDAP; one connection per call.
type Directory struct {
	conf   core.LDAPConfig
	logger core.Logger
}

var (
	_ thesis.Directory   = (*Directory)(nil) // interface compliance check
	_ user.Authenticator = (*Directory)(nil) // interface compliance check
)

func NewDirectory(conf *core.Config, logger core.Logger) *Directory {
	return &Directory{conf: conf.LDAP, logger: logger}
}

func (d *Directory) userDN(uid string) string {
	return fmt.Sprintf(d.conf.UserDNTemplate, uid)
}

func firstValue(e *ldap.Entry, attr string) (string, error) {
	v := core.CleanString(e.GetAttributeValue(attr))
	if v == "" {
		return "", errors.Errorf("entry %q has no %s", e.DN, attr)
	}
	return v, nil
}

func supervisorFromEntry(e *ldap.Entry) (thesis.Supervisor, error) {
	var s thesis.Supervisor
	var err error
	if s.ID, err = firstValue(e, "uid"); err != nil {
		return thesis.Supervisor{}, err
	}
	if s.FirstName, err = firstValue(e, "givenName"); err != nil {
		return thesis.Supervisor{}, err
	}
	if s.LastName, err = firstValue(e, "sn"); err != nil {
		return thesis.Supervisor{}, err
	}
	if s.Initials, err = firstValue(e, "initials"); err != nil {
		return thesis.Supervisor{}, err
	}
	return s, nil
}

func (d *Directory) lookupUser(c conn, uid string) (*ldap.Entry, error) {
	res, err := c.Search(ldap.NewSearchRequest(
		d.userDN(uid), ldap.ScopeBaseObject, ldap.NeverDerefAliases, 1, 0, false,
		"(objectClass=*)", userAttributes, nil,
	))
	if err != nil {
		return nil, errors.Wrapf(err, "searching user %q", uid)
	}
	if len(res.Entries) == 0 {
		return nil, errors.Errorf("user %q not found", uid)
	}
	return res.Entries[0], nil
}

func (d *Directory) fetchSupervisor(c conn, uid string) (thesis.Supervisor, error) {
	e, err := d.lookupUser(c, uid)
	if err != nil {
		return thesis.Supervisor{}, err
	}
	return supervisorFromEntry(e)
}

// FetchSupervisor reports false when the uid is unknown or the directory fails.
func (d *Directory) FetchSupervisor(ctx context.Context, uid string) (thesis.Supervisor, bool) {
	if !uidRgx.MatchString(uid) || ctx.Err() != nil {
		return thesis.Supervisor{}, false
	}
	c, err := dialFunc(d.conf)
	if err != nil {
		d.logger.Error(fmt.Sprintf("directory.FetchSupervisor: %v", err), err)
		return thesis.Supervisor{}, false
	}
	defer c.Close()

	s, err := d.fetchSupervisor(c, uid)
	if err != nil {
		d.logger.Warn(fmt.Sprintf("directory.FetchSupervisor: %v", err), err)
		return thesis.Supervisor{}, false
	}
	return s, true
}

// FetchSupervisors lists the members of the professor group, by last name.
// Members that cannot be resolved are skipped.
func (d *Directory) FetchSupervisors(ctx context.Context) []thesis.Supervisor {
	sups := make([]thesis.Supervisor, 0)
	if ctx.Err() != nil {
		return sups
	}
	c, err := dialFunc(d.conf)
	if err != nil {
		d.logger.Error(fmt.Sprintf("directory.FetchSupervisors: %v", err), err)
		return sups
	}
	defer c.Close()

	res, err := c.Search(ldap.NewSearchRequest(
		d.conf.ProfGroupDN, ldap.ScopeBaseObject, ldap.NeverDerefAliases, 1, 0, false,
		"(objectClass=*)", []string{"memberUid"}, nil,
	))
	if err != nil || len(res.Entries) == 0 {
		d.logger.Error(fmt.Sprintf("directory.FetchSupervisors: professor group: %v", err), err)
		return sups
	}

	for _, uid := range res.Entries[0].GetAttributeValues("memberUid") {
		if ctx.Err() != nil {
			break
		}
		s, err := d.fetchSupervisor(c, uid)
		if err != nil {
			d.logger.Warn(fmt.Sprintf("directory.FetchSupervisors: %v", err), err)
			continue
		}
		sups = append(sups, s)
	}
	sort.Slice(sups, func(i, j int) bool {
		if sups[i].LastName != sups[j].LastName {
			return sups[i].LastName < sups[j].LastName
		}
		return sups[i].FirstName < sups[j].FirstName
	})
	return sups
}

// Authenticate binds as the user and reads its attributes and posix group memberships.
// Wrong credentials yield user.ErrAuthenticationFailed.
func (d *Directory) Authenticate(ctx context.Context, username, password string) (user.Identity, error) {
	// an empty password would be an unauthenticated bind
	if password == "" || !uidRgx.MatchString(username) {
		return user.Identity{}, user.ErrAuthenticationFailed
	}
	if err := ctx.Err(); err != nil {
		return user.Identity{}, err
	}

	c, err := dialFunc(d.conf)
	if err != nil {
		return user.Identity{}, err
	}
	defer c.Close()

	if err = c.Bind(d.userDN(username), password); err != nil {
		if ldap.IsErrorWithCode(err, ldap.LDAPResultInvalidCredentials) || ldap.IsErrorWithCode(err, ldap.LDAPResultNoSuchObject) {
			return user.Identity{}, user.ErrAuthenticationFailed
		}
		return user.Identity{}, errors.Wrap(err, "binding")
	}

	e, err := d.lookupUser(c, username)
	if err != nil {
		return user.Identity{}, err
	}
	id := user.Identity{
		Username:  username,
		FirstName: core.CleanString(e.GetAttributeValue("givenName")),
		LastName:  core.CleanString(e.GetAttributeValue("sn")),
		Initials:  core.CleanString(e.GetAttributeValue("initials")),
	}

	res, err := c.Search(ldap.NewSearchRequest(
		d.conf.GroupBaseDN, ldap.ScopeWholeSubtree, ldap.NeverDerefAliases, 0, 0, false,
		fmt.Sprintf("(&(objectClass=posixGroup)(memberUid=%s))", ldap.EscapeFilter(username)),
		[]string{"cn"}, nil,
	))
	if err != nil {
		return user.Identity{}, errors.Wrap(err, "searching groups")
	}
	for _, g := range res.Entries {
		id.Groups = append(id.Groups, g.DN)
	}
	return id, nil
}
