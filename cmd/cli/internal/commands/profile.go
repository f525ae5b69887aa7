package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/certifychain/certifychain/internal/client"
)

// ProfileCmd edits the signed-in user's profile.
type ProfileCmd struct {
	Update ProfileUpdateCmd `cmd:"" help:"Change your name"`
}

type ProfileUpdateCmd struct {
	FirstName string `help:"New first name"`
	LastName  string `help:"New last name"`
}

func (c *ProfileUpdateCmd) Run(ctx context.Context, globals *Globals) error {
	if c.FirstName == "" && c.LastName == "" {
		return errors.New("nothing to update, pass --first-name or --last-name")
	}

	a, err := newApp(globals)
	if err != nil {
		return err
	}

	if err := a.requireLogin(ctx); err != nil {
		return err
	}

	user, err := a.api.UpdateProfile(ctx, client.ProfileUpdate{FirstName: c.FirstName, LastName: c.LastName})
	if err != nil {
		if client.IsUnauthorized(err) {
			return ErrSessionExpired
		}
		return fmt.Errorf("failed to update profile: %w", err)
	}

	fmt.Fprintf(globals.stdout(), "Profile updated: %s <%s>\n", user.DisplayName(), user.Email)
	return nil
}
