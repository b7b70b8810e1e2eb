package core

import (
	"log"
	"net"
	"net/mail"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	Config struct {
		AppName      string
		Env          string // DEV (local; default), TEST, QA, PROD
		Build        string
		Debug        bool
		TestMode     bool
		SecretKey    string
		WorkDir      string
		RollbarToken string

		Server   ServerConfig
		Database DatabaseConfig
		Faculty  FacultyConfig
		LDAP     LDAPConfig
		PDF      PDFConfig
		Mail     MailConfig
	}

	ServerConfig struct {
		Host                      string
		DebugHost                 string
		ShutdownTimeout           time.Duration
		JWTExpirationDelta        time.Duration
		JWTRefreshExpirationDelta time.Duration
		FeedTokenExpirationDelta  time.Duration // calendar feed links
	}

	DatabaseConfig struct {
		Engine        string
		Host          string
		Port          int
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
	}

	// FacultyConfig points to the read-only faculty database holding the student roster.
	FacultyConfig struct {
		Enabled bool
		DSN     string
	}

	LDAPConfig struct {
		URL                string
		StartTLS           bool
		InsecureSkipVerify bool
		UserDNTemplate     string // e.g. uid=%s,ou=Users,dc=example,dc=org
		GroupBaseDN        string // posix groups, members listed by memberUid
		ProfGroupDN        string
		DenyGroupDN        string
		// GroupFlags maps a group DN to the user flag it grants (see user.Flag*).
		GroupFlags map[string]string
	}

	PDFConfig struct {
		TemplateDir string
		TmpDir      string
		PdftkPath   string
	}

	MailConfig struct {
		DefaultFrom       string
		SendgridAPIKey    string
		StudentDomain     string
		StaffDomain       string
		NotifySupervisors bool
	}
)

func (dbc DatabaseConfig) Address() string {
	return net.JoinHostPort(dbc.Host, strconv.Itoa(dbc.Port))
}

func (mc MailConfig) DefaultFromEmail() mail.Address {
	addr, err := mail.ParseAddress(mc.DefaultFrom)
	if err != nil {
		return mail.Address{Address: mc.DefaultFrom}
	}
	return *addr
}

// NewConfig reads the configuration from defaults, the optional `config/.env.<env>` file and the environment.
func NewConfig() *Config {
	v := viper.New()

	// defaults
	v.SetTypeByDefaultValue(true)
	v.SetDefault("appName", "Thesispool")
	v.SetDefault("build", "develop")
	v.SetDefault("debug", true)
	v.SetDefault("testMode", false)
	v.SetDefault("secretKey", "e3k!v9)qz+2m#hw0rl^8tq&d(5o1u=a7bx$yf4nc@j6p-gs")
	v.SetDefault("rollbarToken", "")

	v.SetDefault("server.host", ":8000")
	v.SetDefault("server.debugHost", ":4000")
	v.SetDefault("server.shutdownTimeout", 5*time.Second)
	v.SetDefault("server.jwtExpirationDelta", 8*time.Hour)
	v.SetDefault("server.jwtRefreshExpirationDelta", 7*24*time.Hour)
	v.SetDefault("server.feedTokenExpirationDelta", 365*24*time.Hour)

	v.SetDefault("database.engine", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "thesispool")
	v.SetDefault("database.user", "thesispool")
	v.SetDefault("database.password", "thesispool")
	v.SetDefault("database.adminUser", "")
	v.SetDefault("database.adminPassword", "")
	v.SetDefault("database.disableTLS", true)

	v.SetDefault("faculty.enabled", false)
	v.SetDefault("faculty.dsn", "")

	v.SetDefault("ldap.url", "ldap://localhost:389")
	v.SetDefault("ldap.startTLS", true)
	v.SetDefault("ldap.insecureSkipVerify", true) // self signed certs
	v.SetDefault("ldap.userDNTemplate", "uid=%s,ou=Users,dc=informatik,dc=hs-mannheim,dc=de")
	v.SetDefault("ldap.groupBaseDN", "ou=groups,dc=informatik,dc=hs-mannheim,dc=de")
	v.SetDefault("ldap.profGroupDN", "cn=profI,ou=groups,dc=informatik,dc=hs-mannheim,dc=de")
	v.SetDefault("ldap.denyGroupDN", "cn=students,ou=groups,dc=informatik,dc=hs-mannheim,dc=de")
	v.SetDefault("ldap.groupFlags", map[string]string{
		"cn=profI,ou=groups,dc=informatik,dc=hs-mannheim,dc=de":       "is_prof",
		"cn=staff,ou=groups,dc=informatik,dc=hs-mannheim,dc=de":       "is_staff",
		"cn=sekretariat,ou=groups,dc=informatik,dc=hs-mannheim,dc=de": "is_secretary",
		"cn=excom,ou=groups,dc=informatik,dc=hs-mannheim,dc=de":       "is_excom",
		"cn=dekanat,ou=groups,dc=informatik,dc=hs-mannheim,dc=de":     "is_head",
	})

	v.SetDefault("pdf.templateDir", "")
	v.SetDefault("pdf.tmpDir", filepath.Join(os.TempDir(), "thesispool"))
	v.SetDefault("pdf.pdftkPath", "pdftk")

	v.SetDefault("mail.defaultFrom", "Thesispool <noreply@localhost>")
	v.SetDefault("mail.sendgridAPIKey", "")
	v.SetDefault("mail.studentDomain", "stud.hs-mannheim.de")
	v.SetDefault("mail.staffDomain", "hs-mannheim.de")
	v.SetDefault("mail.notifySupervisors", true)

	env := strings.ToUpper(os.Getenv("ENV")) // DEV (local; default), TEST, QA, PROD
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		v.SetDefault("testMode", true)
	}
	v.SetEnvPrefix(env)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	workDir := Getwd()

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(workDir, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	templateDir := v.GetString("pdf.templateDir")
	if templateDir == "" {
		templateDir = filepath.Join(workDir, "assets", "pdf")
	}

	return &Config{
		AppName:      v.GetString("appName"),
		Env:          env,
		Build:        v.GetString("build"),
		Debug:        v.GetBool("debug"),
		TestMode:     v.GetBool("testMode"),
		SecretKey:    v.GetString("secretKey"),
		WorkDir:      workDir,
		RollbarToken: v.GetString("rollbarToken"),
		Server: ServerConfig{
			Host:                      v.GetString("server.host"),
			DebugHost:                 v.GetString("server.debugHost"),
			ShutdownTimeout:           v.GetDuration("server.shutdownTimeout"),
			JWTExpirationDelta:        v.GetDuration("server.jwtExpirationDelta"),
			JWTRefreshExpirationDelta: v.GetDuration("server.jwtRefreshExpirationDelta"),
			FeedTokenExpirationDelta:  v.GetDuration("server.feedTokenExpirationDelta"),
		},
		Database: DatabaseConfig{
			Engine:        v.GetString("database.engine"),
			Host:          v.GetString("database.host"),
			Port:          v.GetInt("database.port"),
			Name:          v.GetString("database.name"),
			User:          v.GetString("database.user"),
			Password:      v.GetString("database.password"),
			AdminUser:     v.GetString("database.adminUser"),
			AdminPassword: v.GetString("database.adminPassword"),
			DisableTLS:    v.GetBool("database.disableTLS"),
		},
		Faculty: FacultyConfig{
			Enabled: v.GetBool("faculty.enabled"),
			DSN:     v.GetString("faculty.dsn"),
		},
		LDAP: LDAPConfig{
			URL:                v.GetString("ldap.url"),
			StartTLS:           v.GetBool("ldap.startTLS"),
			InsecureSkipVerify: v.GetBool("ldap.insecureSkipVerify"),
			UserDNTemplate:     v.GetString("ldap.userDNTemplate"),
			GroupBaseDN:        v.GetString("ldap.groupBaseDN"),
			ProfGroupDN:        v.GetString("ldap.profGroupDN"),
			DenyGroupDN:        v.GetString("ldap.denyGroupDN"),
			GroupFlags:         v.GetStringMapString("ldap.groupFlags"),
		},
		PDF: PDFConfig{
			TemplateDir: templateDir,
			TmpDir:      v.GetString("pdf.tmpDir"),
			PdftkPath:   v.GetString("pdf.pdftkPath"),
		},
		Mail: MailConfig{
			DefaultFrom:       v.GetString("mail.defaultFrom"),
			SendgridAPIKey:    v.GetString("mail.sendgridAPIKey"),
			StudentDomain:     v.GetString("mail.studentDomain"),
			StaffDomain:       v.GetString("mail.staffDomain"),
			NotifySupervisors: v.GetBool("mail.notifySupervisors"),
		},
	}
}
