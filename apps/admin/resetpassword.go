package main

import (
	"context"

	"github.com/trezcool/masomo-obe/core/user"
)

func (cli *commandLine) resetPassword(uname, pwd string) error {
	ctx := context.Background()
	usr, err := cli.usrSvc.GetByUsernameOrEmail(ctx, uname)
	if err != nil {
		return err
	}
	uu := user.UpdateUser{Password: pwd, PasswordConfirm: pwd}
	if err := uu.Validate(cli.validate, usr); err != nil {
		return err
	}
	if _, err := cli.usrSvc.Update(ctx, usr, uu); err != nil {
		return err
	}
	return nil
}
