package main

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/trezcool/masomo-obe/core"
	"github.com/trezcool/masomo-obe/core/user"
)

var roles = map[string][]string{
	"admin":   {user.RoleAdmin},
	"super":   {user.RoleSuperAdmin},
	"teacher": {user.RoleTeacher},
	"student": {user.RoleStudent},
}

// addUser creates the user, or gives an existing one the role and password and reactivates them.
func (cli *commandLine) addUser(nu user.NewUser) error {
	ctx := context.Background()

	lookup := nu.Username
	if lookup == "" {
		lookup = nu.Email
	}
	usr, err := cli.usrSvc.GetByUsernameOrEmail(ctx, lookup)
	if err != nil {
		if !errors.Is(err, core.ErrNotFound) {
			return err
		}
		if err := nu.Validate(cli.validate); err != nil {
			return err
		}
		usr, err = cli.usrSvc.Create(ctx, nu)
		if err != nil {
			return err
		}
		fmt.Printf("created user %q (%d)\n", usr.Username, usr.ID)
		return nil
	}

	isActive := true
	uu := user.UpdateUser{
		Name:            nu.Name,
		Roles:           mergeRoles(usr.Roles, nu.Roles),
		IsActive:        &isActive,
		Password:        nu.Password,
		PasswordConfirm: nu.PasswordConfirm,
	}
	if err := uu.Validate(cli.validate, usr); err != nil {
		return err
	}
	if usr, err = cli.usrSvc.Update(ctx, usr, uu); err != nil {
		return err
	}
	fmt.Printf("updated user %q (%d)\n", usr.Username, usr.ID)
	return nil
}

func mergeRoles(have, add []string) []string {
	merged := append([]string{}, have...)
	for _, r := range add {
		found := false
		for _, h := range have {
			if h == r {
				found = true
				break
			}
		}
		if !found {
			merged = append(merged, r)
		}
	}
	return merged
}
