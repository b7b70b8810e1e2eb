package user

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

const (
	profDN      = "cn=profI,ou=groups,dc=informatik,dc=hs-mannheim,dc=de"
	staffDN     = "cn=staff,ou=groups,dc=informatik,dc=hs-mannheim,dc=de"
	secretaryDN = "cn=sekretariat,ou=groups,dc=informatik,dc=hs-mannheim,dc=de"
	excomDN     = "cn=excom,ou=groups,dc=informatik,dc=hs-mannheim,dc=de"
	headDN      = "cn=dekanat,ou=groups,dc=informatik,dc=hs-mannheim,dc=de"
	studentsDN  = "cn=students,ou=groups,dc=informatik,dc=hs-mannheim,dc=de"
)

// keys come lowercased out of viper
var flagTable = map[string]string{
	"cn=profi,ou=groups,dc=informatik,dc=hs-mannheim,dc=de":       FlagProf,
	"cn=staff,ou=groups,dc=informatik,dc=hs-mannheim,dc=de":       FlagStaff,
	"cn=sekretariat,ou=groups,dc=informatik,dc=hs-mannheim,dc=de": FlagSecretary,
	"cn=excom,ou=groups,dc=informatik,dc=hs-mannheim,dc=de":       FlagExcom,
	"cn=dekanat,ou=groups,dc=informatik,dc=hs-mannheim,dc=de":     FlagHead,
}

func TestFlagsFromGroups(t *testing.T) {
	tests := []struct {
		name   string
		groups []string
		want   Flags
	}{
		{name: "no groups"},
		{name: "unknown group", groups: []string{studentsDN}},
		{name: "professor", groups: []string{profDN}, want: Flags{IsProf: true}},
		{name: "professor in excom", groups: []string{profDN, excomDN}, want: Flags{IsProf: true, IsExcom: true}},
		{name: "secretary", groups: []string{staffDN, secretaryDN}, want: Flags{IsStaff: true, IsSecretary: true}},
		{name: "head", groups: []string{headDN}, want: Flags{IsHead: true}},
		{name: "case insensitive", groups: []string{"CN=ProfI,OU=Groups,DC=informatik,DC=hs-mannheim,DC=de"}, want: Flags{IsProf: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FlagsFromGroups(tt.groups, flagTable))
		})
	}
}

func TestIdentity_IsMember(t *testing.T) {
	id := Identity{Username: "t.smits", Groups: []string{profDN, excomDN}}
	assert.True(t, id.IsMember(profDN))
	assert.True(t, id.IsMember("cn=profi,ou=groups,dc=informatik,dc=hs-mannheim,dc=de"))
	assert.False(t, id.IsMember(studentsDN))
	assert.False(t, id.IsMember(""))
}

func TestUser(t *testing.T) {
	usr := User{Username: "t.smits", FirstName: "Thomas", LastName: "Smits", Initials: "SMI"}
	assert.Equal(t, "Thomas Smits", usr.Name())
	assert.Equal(t, "Thomas Smits (t.smits)", usr.String())

	actor := usr.Actor()
	assert.Equal(t, "t.smits", actor.Username)
	assert.Equal(t, "SMI", actor.Initials)

	assert.False(t, usr.HasUsablePassword())
	assert.NoError(t, usr.SetPassword("Sup3r-Secret!"))
	assert.True(t, usr.HasUsablePassword())
	assert.NoError(t, usr.CheckPassword("Sup3r-Secret!"))
	assert.Error(t, usr.CheckPassword("sup3r-secret!"))
}
