package main

import (
	"fmt"

	"github.com/trezcool/mahudhurio/core/user"
)

func (cli *commandLine) addUser(nu user.NewUser) error {
	usr, err := cli.usrSvc.Signup(nu)
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "user %q created (id %d)\n", usr.Username, usr.ID)
	return nil
}

func (cli *commandLine) resetPassword(uname, pwd, confirm string) error {
	usr, err := cli.usrSvc.ResetPassword(user.ResetUserPassword{
		Username:        uname,
		Password:        pwd,
		PasswordConfirm: confirm,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "password of %q updated\n", usr.Username)
	return nil
}
