package main

import (
	"context"

	"github.com/pkg/errors"

	"github.com/thesispool/thesispool/core/user"
)

func (cli *commandLine) resetPassword(sp user.SetPassword) error {
	if err := sp.Validate(cli.validate); err != nil {
		return cli.validationError(err)
	}
	_, err := cli.usrSvc.SetPassword(context.Background(), sp)
	return errors.Cause(err)
}
