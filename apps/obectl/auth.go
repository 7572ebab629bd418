package main

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func newLoginCmd(a *app) *cobra.Command {
	var username string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in to the OBE API; the password is prompted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			if username == "" {
				if username, err = a.prompt("Username: "); err != nil {
					return err
				}
			}
			if username == "" {
				return errors.New("a username is required")
			}
			pwd, err := a.promptPassword()
			if err != nil {
				return err
			}

			p, err := a.client.Login(cmd.Context(), username, pwd)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "logged in as %s\n", p.Username)
			return nil
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "username or email")
	return cmd
}

func newLogoutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the login session",
		Args:  cobra.NoArgs,
		Run: func(*cobra.Command, []string) {
			a.client.Logout()
			fmt.Fprintln(a.out, "logged out")
		},
	}
}

func newWhoamiCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged in user",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			p, ok := a.sess.Profile()
			if !ok || !a.sess.Active() {
				return errors.New("not logged in")
			}
			fmt.Fprintf(a.out, "%s <%s> (%s)\n", p.Username, p.Email, strings.Join(p.Roles, ", "))
			return nil
		},
	}
}
