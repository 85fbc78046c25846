package main

import (
	"context"
	"fmt"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/user"
)

// resetPassword sets the password of the user identified by its username or email.
func (cli *commandLine) resetPassword(login, pwd string) error {
	ctx := context.Background()
	login = core.CleanString(login, true /* lower */)

	usr, err := cli.usrRepo.GetUser(ctx, user.GetFilter{UsernameOrEmail: []string{login}})
	if err != nil {
		return err
	}
	if err = usr.SetPassword(pwd); err != nil {
		return err
	}
	usr.UpdatedAt = core.NowFunc()
	if _, err = cli.usrRepo.UpdateUser(ctx, usr); err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "password of %s reset\n", usr.Username)
	return nil
}
