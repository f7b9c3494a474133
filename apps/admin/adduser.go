package main

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/academia/core/access"
	"github.com/trezcool/academia/core/user"
)

// addUser updates or creates an active user.User with the given role.
func (cli *commandLine) addUser(name, email, pwd string, role access.Role) error {
	ctx := context.Background()

	usr, err := cli.usrSvc.GetByEmail(ctx, email)
	switch errors.Cause(err) {
	case nil:
		usr.IsActive = true
		if usr, err = cli.usrSvc.SetPassword(ctx, usr, pwd); err != nil {
			return err
		}
		cli.printf("updated user %s\n", usr.Email)
	case user.ErrNotFound:
		nu := user.NewUser{Name: name, Email: email, Password: pwd, PasswordConfirm: pwd}
		if err = nu.Validate(cli.validate); err != nil {
			return err
		}
		if usr, err = cli.usrSvc.Create(ctx, nu); err != nil {
			return err
		}
		cli.printf("created user %s\n", usr.Email)
	default:
		return errors.Wrap(err, "finding user by email")
	}

	return errors.Wrap(cli.roles.AssignRole(ctx, usr.ID, role), "assigning role")
}
