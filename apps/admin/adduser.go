package main

import (
	"context"
	"time"

	"github.com/mwalimu/darasa/core"
	"github.com/mwalimu/darasa/core/user"
)

// addUser creates a user or updates an existing one by email.
func (cli *commandLine) addUser(email, first, last, pwd string, isAdmin bool) error {
	ctx := context.Background()
	email = core.CleanString(email, true /* lower */)

	usr, err := cli.usrRepo.GetUserByEmail(ctx, email)
	if err != nil {
		if err != user.ErrNotFound {
			return err
		}
		now := time.Now().UTC()
		usr = user.User{
			Email:     email,
			Role:      user.RoleStudent,
			CreatedAt: now,
			UpdatedAt: now,
		}
	}
	if first != "" {
		usr.FirstName = core.CleanString(first)
	}
	if last != "" {
		usr.LastName = core.CleanString(last)
	}
	if isAdmin {
		usr.Role = user.RoleAdmin
	}
	usr.IsActive = true
	if err := usr.SetPassword(pwd); err != nil {
		return err
	}

	if usr.ID == "" {
		_, err = cli.usrRepo.CreateUser(ctx, usr)
	} else {
		_, err = cli.usrRepo.UpdateUser(ctx, usr, nil)
	}
	return err
}
