package main

import (
	"context"
	"fmt"

	"github.com/thesispool/thesispool/core/user"
)

// addUser creates a local administrator, or updates it when the username is taken.
func (cli *commandLine) addUser(nu user.NewUser) error {
	if err := nu.Validate(cli.validate); err != nil {
		return cli.validationError(err)
	}
	usr, err := cli.usrSvc.AddLocalUser(context.Background(), nu)
	if err != nil {
		return err
	}
	fmt.Printf("User %q saved.\n", usr.Username)
	return nil
}
