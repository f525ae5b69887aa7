package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/certifychain/certifychain/internal/client"
	"github.com/certifychain/certifychain/internal/models"
	"github.com/rs/zerolog/log"
)

// RegisterCmd creates employer and institution accounts.
type RegisterCmd struct {
	Employer    RegisterEmployerCmd    `cmd:"" help:"Register an employer account"`
	Institution RegisterInstitutionCmd `cmd:"" help:"Register an institution account"`
}

// AccountFlags are shared by both account types.
type AccountFlags struct {
	Email           string `help:"Account email" env:"CERTIFYCHAIN_EMAIL" required:""`
	Password        string `help:"Account password" env:"CERTIFYCHAIN_PASSWORD" required:""`
	ConfirmPassword string `help:"Repeat the password (default: --password)"`
	FirstName       string `help:"First name"`
	LastName        string `help:"Last name"`
}

func (f AccountFlags) registration() client.Registration {
	confirm := f.ConfirmPassword
	if confirm == "" {
		confirm = f.Password
	}
	return client.Registration{
		Email:           f.Email,
		Password:        f.Password,
		ConfirmPassword: confirm,
		FirstName:       f.FirstName,
		LastName:        f.LastName,
	}
}

type RegisterEmployerCmd struct {
	AccountFlags `embed:""`
}

func (c *RegisterEmployerCmd) Run(ctx context.Context, globals *Globals) error {
	a, err := newApp(globals)
	if err != nil {
		return err
	}

	user, err := a.auth.RegisterEmployer(ctx, c.registration())
	return reportRegistration(globals, user, err)
}

type RegisterInstitutionCmd struct {
	AccountFlags `embed:""`

	InstitutionName    string `help:"Institution name" required:""`
	InstitutionAddress string `help:"Institution postal address" required:""`
	InstitutionWebsite string `help:"Institution website URL"`
}

func (c *RegisterInstitutionCmd) Run(ctx context.Context, globals *Globals) error {
	a, err := newApp(globals)
	if err != nil {
		return err
	}

	r := c.registration()
	r.InstitutionName = c.InstitutionName
	r.InstitutionAddress = c.InstitutionAddress
	r.InstitutionWebsite = c.InstitutionWebsite

	user, err := a.auth.RegisterInstitution(ctx, r)
	return reportRegistration(globals, user, err)
}

func reportRegistration(globals *Globals, user *models.User, err error) error {
	if err != nil {
		log.Debug().Err(err).Msg("registration failed")
		return errors.New(client.RegisterErrorText(err))
	}

	fmt.Fprintf(globals.stdout(), "Registered %s account for %s. Run 'certifychain login' to sign in.\n",
		user.UserType, user.Email)
	return nil
}
