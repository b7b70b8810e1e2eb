package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"sort"
	"strings"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"golang.org/x/term"

	"github.com/thesispool/thesispool/core/user"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	db         *sql.DB
	usrSvc     *user.Service
	validate   *validator.Validate
	translator ut.Translator
}

func (cli *commandLine) printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  migrate COMMAND [ARGS] - run a goose command (up, up-by-one, up-to, down, down-to, redo, reset, status, version, create, fix)")
	fmt.Println("  adduser -username USERNAME [-first FIRST -last LAST -initials XY -secretary -excom -head] - create or update a local administrator")
	fmt.Println("  resetpassword -username USERNAME - reset a local user's password")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	migrateCmd := flag.NewFlagSet("migrate", flag.ExitOnError)

	addUserCmd := flag.NewFlagSet("adduser", flag.ExitOnError)
	addUserUname := addUserCmd.String("username", "", "The user's username. The password will be prompted next.")
	addUserFirst := addUserCmd.String("first", "", "First name")
	addUserLast := addUserCmd.String("last", "", "Last name")
	addUserInitials := addUserCmd.String("initials", "", "Initials, up to 5 characters")
	addUserSecretary := addUserCmd.Bool("secretary", true, "Grant examination office rights")
	addUserExcom := addUserCmd.Bool("excom", false, "Grant examination committee rights")
	addUserHead := addUserCmd.Bool("head", false, "Grant head of department rights")

	resetPasswordCmd := flag.NewFlagSet("resetpassword", flag.ExitOnError)
	resetPasswordUname := resetPasswordCmd.String("username", "", "The user's username. The password will be prompted next.")

	switch args[1] {
	case "migrate":
		if err := migrateCmd.Parse(args[2:]); err != nil {
			return err
		}
		if migrateCmd.NArg() == 0 {
			migrateCmd.Usage()
			return errHelp
		}
		return cli.migrate(migrateCmd.Args())

	case "adduser":
		if err := addUserCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *addUserUname == "" {
			addUserCmd.Usage()
			return errHelp
		}
		pwd, confirm, err := promptPassword()
		if err != nil {
			return err
		}
		if pwd == "" {
			addUserCmd.Usage()
			return errHelp
		}
		return cli.addUser(user.NewUser{
			Username:        *addUserUname,
			FirstName:       *addUserFirst,
			LastName:        *addUserLast,
			Initials:        *addUserInitials,
			Password:        pwd,
			PasswordConfirm: confirm,
			Flags: user.Flags{
				IsStaff:     true,
				IsSecretary: *addUserSecretary,
				IsExcom:     *addUserExcom,
				IsHead:      *addUserHead,
			},
		})

	case "resetpassword":
		if err := resetPasswordCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *resetPasswordUname == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		pwd, confirm, err := promptPassword()
		if err != nil {
			return err
		}
		if pwd == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		return cli.resetPassword(user.SetPassword{
			Username:        *resetPasswordUname,
			Password:        pwd,
			PasswordConfirm: confirm,
		})

	default:
		cli.printUsage()
		return errHelp
	}
}

func promptPassword() (pwd, confirm string, err error) {
	fmt.Print("Enter password:")
	b, err := readPasswordFunc(int(syscall.Stdin))
	fmt.Println()
	if err != nil || len(b) == 0 {
		return "", "", err
	}
	pwd = string(b)

	fmt.Print("Confirm password:")
	b, err = readPasswordFunc(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return "", "", err
	}
	return pwd, string(b), nil
}

// validationError flattens validator errors into a single readable error.
func (cli *commandLine) validationError(err error) error {
	var vErrs validator.ValidationErrors
	if !errors.As(err, &vErrs) {
		return err
	}
	msgs := make([]string, 0, len(vErrs))
	for _, vErr := range vErrs {
		msgs = append(msgs, fmt.Sprintf("%s: %s", vErr.Field(), vErr.Translate(cli.translator)))
	}
	sort.Strings(msgs)
	return errors.New(strings.Join(msgs, "; "))
}
