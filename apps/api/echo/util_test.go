package echoapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"

	"github.com/thesispool/thesispool/core"
	"github.com/thesispool/thesispool/core/student"
	"github.com/thesispool/thesispool/core/thesis"
	"github.com/thesispool/thesispool/core/user"
	"github.com/thesispool/thesispool/services/pdf"
	inmemdb "github.com/thesispool/thesispool/storage/database/inmem"
)

const (
	denyGroup  = "cn=students,ou=groups,dc=example,dc=org"
	profGroup  = "cn=profI,ou=groups,dc=example,dc=org"
	excomGroup = "cn=excom,ou=groups,dc=example,dc=org"
)

var (
	ctxBg = context.Background()

	errMissingToken = httpErr{Error: "missing or malformed jwt"}
	errForbidden    = httpErr{Error: "permission denied"}
	errNotFound     = httpErr{Error: "not found"}

	alice = student.Student{ID: 123456, FirstName: "Alice", LastName: "Doe", Program: "IB"}
	bob   = student.Student{ID: 234567, FirstName: "Bob", LastName: "Roe", Program: "IM"}

	weber = thesis.Supervisor{ID: "weber", FirstName: "Tom", LastName: "Weber", Initials: "TW"}

	miller  = user.User{Username: "miller", FirstName: "Anna", LastName: "Miller", Initials: "AM", Flags: user.Flags{IsProf: true}, IsActive: true}
	lang    = user.User{Username: "lang", FirstName: "Jan", LastName: "Lang", Initials: "JL", Flags: user.Flags{IsProf: true}, IsActive: true}
	office  = user.User{Username: "office", FirstName: "Eva", LastName: "Braun", Initials: "EB", Flags: user.Flags{IsSecretary: true}, IsActive: true}
	schmidt = user.User{Username: "schmidt", FirstName: "Karl", LastName: "Schmidt", Initials: "KS", Flags: user.Flags{IsProf: true, IsExcom: true}, IsActive: true}
	retired = user.User{Username: "retired", FirstName: "Old", LastName: "Timer", Flags: user.Flags{IsProf: true}, IsActive: false}
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

// fakeDirectory serves supervisors and logins: {username: password}.
type fakeDirectory struct {
	supervisors []thesis.Supervisor
	passwords   map[string]string
	identities  map[string]user.Identity
}

func (d fakeDirectory) FetchSupervisor(_ context.Context, uid string) (thesis.Supervisor, bool) {
	for _, s := range d.supervisors {
		if s.ID == uid {
			return s, true
		}
	}
	return thesis.Supervisor{}, false
}

func (d fakeDirectory) FetchSupervisors(context.Context) []thesis.Supervisor {
	return d.supervisors
}

func (d fakeDirectory) Authenticate(_ context.Context, username, password string) (user.Identity, error) {
	if pwd, ok := d.passwords[username]; !ok || pwd != password {
		return user.Identity{}, user.ErrAuthenticationFailed
	}
	return d.identities[username], nil
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

type pdfStub struct {
	forms []pdf.Form
}

func (p *pdfStub) Generate(_ context.Context, th thesis.Thesis, form pdf.Form) (pdf.Document, error) {
	p.forms = append(p.forms, form)
	return pdf.Document{
		Filename: pdf.Filename(th, form, time.Date(2018, 7, 2, 0, 0, 0, 0, time.UTC)),
		Content:  []byte("%PDF-1.4"),
	}, nil
}

type testApp struct {
	*Server
	conf     *core.Config
	validate *validator.Validate
	users    user.Repository
	theses   *thesis.Service
	pdf      *pdfStub
	mails    *mailRecorder
}

func setup(t *testing.T) testApp {
	t.Helper()

	conf := &core.Config{
		AppName:   "Thesispool",
		TestMode:  true,
		SecretKey: "test-secret",
		Server: core.ServerConfig{
			JWTExpirationDelta:        time.Hour,
			JWTRefreshExpirationDelta: 7 * 24 * time.Hour,
			FeedTokenExpirationDelta:  30 * 24 * time.Hour,
		},
		LDAP: core.LDAPConfig{
			DenyGroupDN: denyGroup,
			GroupFlags: map[string]string{
				profGroup:  user.FlagProf,
				excomGroup: user.FlagExcom,
			},
		},
		Mail: core.MailConfig{
			StudentDomain:     "stud.example.org",
			StaffDomain:       "example.org",
			NotifySupervisors: true,
		},
	}

	translator := core.NewTranslator()
	validate := validator.New()
	core.InitValidators(validate, translator)
	student.InitValidators(validate, translator)
	thesis.InitValidators(validate, translator)

	// set up DB & repos
	db := inmemdb.Open()
	usrRepo := inmemdb.NewUserRepository(db)
	for _, usr := range []user.User{miller, lang, office, schmidt, retired} {
		_, err := usrRepo.SaveUser(context.Background(), usr)
		require.NoError(t, err)
	}

	// set up services
	dir := fakeDirectory{
		supervisors: []thesis.Supervisor{weber},
		passwords:   map[string]string{"miller": "secret", "student": "secret"},
		identities: map[string]user.Identity{
			"miller":  {Username: "miller", FirstName: "Anna", LastName: "Miller", Initials: "AM", Groups: []string{profGroup, excomGroup}},
			"student": {Username: "student", FirstName: "Stu", LastName: "Dent", Groups: []string{denyGroup}},
		},
	}
	mails := &mailRecorder{}
	students := student.NewManager(inmemdb.NewStudentCache(db), rosterMap{alice.ID: alice, bob.ID: bob}, nopLogger{})
	thesisSvc := thesis.NewService(
		conf, nopLogger{}, inmemdb.NewTxRunner(db),
		inmemdb.NewThesisRepository(db),
		inmemdb.NewSupervisorRepository(db),
		inmemdb.NewAssessorRepository(db),
		inmemdb.NewChairmanRepository(db),
		students, dir, mails,
	)
	gen := &pdfStub{}

	// set up server
	server := NewServer(conf, nopLogger{}, validate, translator, &Deps{
		UserSvc:   user.NewService(conf, nopLogger{}, usrRepo, dir),
		ThesisSvc: thesisSvc,
		Students:  students,
		PDF:       gen,
	})

	return testApp{
		Server:   server,
		conf:     conf,
		validate: validate,
		users:    usrRepo,
		theses:   thesisSvc,
		pdf:      gen,
		mails:    mails,
	}
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

func (app testApp) do(method, path, token string, data ...[]byte) *httptest.ResponseRecorder {
	req, rec := newAuthRequest(method, path, token, data...)
	app.ServeHTTP(rec, req)
	return rec
}

func (app testApp) getToken(t *testing.T, usr user.User) string {
	t.Helper()
	token, err := GenerateToken(app.conf, GetUserClaims(app.conf, usr))
	if err != nil {
		t.Fatalf("getToken(): %v", err)
	}
	return token
}

func (app testApp) runTests(t *testing.T, tests []httpTest) {
	t.Helper()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			method := tt.method
			if method == "" {
				method = http.MethodGet
			}
			rec := app.do(method, tt.path, tt.token, tt.body)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func marshalObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marshalObj(): %v", err)
	}
	return data
}

func unmarshalThesis(t *testing.T, rec *httptest.ResponseRecorder) thesis.Thesis {
	t.Helper()
	var th thesis.Thesis
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &th), rec.Body.String())
	return th
}

func jsonBytesEqual(b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	return reflect.DeepEqual(j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
	}
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}
