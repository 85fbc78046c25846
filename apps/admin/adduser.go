package main

import (
	"context"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/user"
)

// addUser updates or creates a user.User
func (cli *commandLine) addUser(uname, email, pwd string, isAdmin bool) error {
	ctx := context.Background()
	uname = core.CleanString(uname, true /* lower */)
	email = core.CleanString(email, true /* lower */)

	usr, err := cli.usrRepo.GetUser(ctx, user.GetFilter{UsernameOrEmail: []string{uname, email}})
	exists := err == nil
	if err != nil {
		if err != user.ErrNotFound {
			return err
		}
		now := core.NowFunc()
		usr = user.User{
			Name:      uname,
			Username:  uname,
			Email:     email,
			Roles:     []string{},
			CreatedAt: now,
			UpdatedAt: now,
		}
	}
	if isAdmin {
		usr.Roles = user.AllRoles
	}
	active := true
	usr.IsActive = &active
	if err = usr.SetPassword(pwd); err != nil {
		return err
	}

	if exists {
		usr.UpdatedAt = core.NowFunc()
		_, err = cli.usrRepo.UpdateUser(ctx, usr)
		return err
	}
	_, err = cli.usrRepo.CreateUser(ctx, usr)
	return err
}
