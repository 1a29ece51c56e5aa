package main

import (
	"context"
	"fmt"

	"github.com/trezcool/reviewdesk/core"
	"github.com/trezcool/reviewdesk/core/user"
)

type newUserArgs struct {
	name, username, email, password string
	admin, reviewer                 bool
	sections                        []string
}

func (a newUserArgs) roles() []string {
	var roles []string
	if a.admin {
		roles = append(roles, user.RoleAdmin)
	}
	if a.reviewer {
		roles = append(roles, user.RoleReviewer)
	}
	return roles
}

// addUser updates or creates a user.User
func (cli *commandLine) addUser(args newUserArgs) error {
	ctx := context.Background()
	args.username = core.CleanString(args.username, true /* lower */)
	args.email = core.CleanString(args.email, true /* lower */)
	args.name = core.CleanString(args.name)
	if args.name == "" {
		args.name = args.username
	}

	lookup := args.username
	if lookup == "" {
		lookup = args.email
	}
	usr, err := cli.usrSvc.GetByUsernameOrEmail(ctx, lookup)
	if err != nil && !core.IsNotFound(err) {
		return err
	}

	if core.IsNotFound(err) {
		usr, err = cli.usrSvc.Create(ctx, user.NewUser{
			Name:     args.name,
			Username: args.username,
			Email:    args.email,
			Password: args.password,
			Roles:    args.roles(),
			Sections: user.CleanSections(args.sections),
		})
		if err != nil {
			return err
		}
		cli.logger.Info(fmt.Sprintf("user %q created", usr.Identity()))
		return nil
	}

	active := true
	uu := user.UpdateUser{
		Name:     usr.Name,
		Username: usr.Username,
		Email:    usr.Email,
		IsActive: &active,
		Password: args.password,
		Sections: user.CleanSections(args.sections),
	}
	if args.email != "" {
		uu.Email = args.email
	}
	if roles := args.roles(); roles != nil {
		uu.Roles = roles
	}
	if usr, err = cli.usrSvc.Update(ctx, usr, uu); err != nil {
		return err
	}
	cli.logger.Info(fmt.Sprintf("user %q updated", usr.Identity()))
	return nil
}
