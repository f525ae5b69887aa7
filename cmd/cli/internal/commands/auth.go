package commands

import (
	"context"
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/certifychain/certifychain/internal/client"
	"github.com/certifychain/certifychain/internal/credentials"
	"github.com/rs/zerolog/log"
)

// LoginCmd exchanges email and password for a token pair.
type LoginCmd struct {
	Email    string `help:"Account email" env:"CERTIFYCHAIN_EMAIL" required:""`
	Password string `help:"Account password" env:"CERTIFYCHAIN_PASSWORD" required:""`
}

func (c *LoginCmd) Run(ctx context.Context, globals *Globals) error {
	a, err := newApp(globals)
	if err != nil {
		return err
	}

	tokens, err := a.auth.Login(ctx, c.Email, c.Password)
	if err != nil {
		log.Debug().Err(err).Msg("login failed")
		return errors.New(client.LoginErrorText(err))
	}

	if err := a.manager.Login(ctx, tokens.Access, tokens.Refresh, tokens.User); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}

	s := a.manager.Session()
	if !s.Authenticated {
		return fmt.Errorf("server returned an expired access token")
	}

	name := c.Email
	if s.User != nil {
		name = s.User.DisplayName()
	}
	fmt.Fprintf(globals.stdout(), "Logged in as %s\n", name)

	return nil
}

// LogoutCmd removes the stored tokens.
type LogoutCmd struct{}

func (c *LogoutCmd) Run(ctx context.Context, globals *Globals) error {
	a, err := newApp(globals)
	if err != nil {
		return err
	}

	a.manager.Logout(ctx)
	fmt.Fprintln(globals.stdout(), "Logged out.")

	return nil
}

// StatusCmd restores the session and prints its state.
type StatusCmd struct{}

func (c *StatusCmd) Run(ctx context.Context, globals *Globals) error {
	a, err := newApp(globals)
	if err != nil {
		return err
	}

	if err := a.manager.Initialize(ctx); err != nil {
		fmt.Fprintf(globals.stderr(), "Failed to restore session: %v\n", err)
	}

	s := a.manager.Session()

	w := tabwriter.NewWriter(globals.stdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Server:\t%s\n", a.api.Config().ServerURL)
	fmt.Fprintf(w, "Session file:\t%s\n", a.store.Path())
	fmt.Fprintf(w, "State:\t%s\n", a.manager.State())

	if s.User != nil {
		fmt.Fprintf(w, "User:\t%s <%s>\n", s.User.DisplayName(), s.User.Email)
		if s.User.UserType != "" {
			fmt.Fprintf(w, "Type:\t%s\n", s.User.UserType)
		}
	}
	if s.Authenticated {
		fmt.Fprintf(w, "Access token:\t%s\n", describeToken(s.AccessToken))
		if s.RefreshToken != "" {
			fmt.Fprintf(w, "Refresh token:\t%s\n", describeToken(s.RefreshToken))
		}
	}

	return w.Flush()
}

func describeToken(token string) string {
	exp, err := credentials.ExpiresAt(token)
	if err != nil {
		return fmt.Sprintf("%s (no expiry)", credentials.Fingerprint(token))
	}
	return fmt.Sprintf("%s (expires %s)", credentials.Fingerprint(token), exp.Local().Format(time.RFC3339))
}

// WhoamiCmd fetches the signed-in user's profile.
type WhoamiCmd struct{}

func (c *WhoamiCmd) Run(ctx context.Context, globals *Globals) error {
	a, err := newApp(globals)
	if err != nil {
		return err
	}

	if err := a.requireLogin(ctx); err != nil {
		return err
	}

	user, err := a.api.Profile(ctx)
	if err != nil {
		if client.IsUnauthorized(err) {
			return ErrSessionExpired
		}
		return fmt.Errorf("failed to fetch profile: %w", err)
	}

	w := tabwriter.NewWriter(globals.stdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Name:\t%s\n", user.DisplayName())
	fmt.Fprintf(w, "Email:\t%s\n", user.Email)
	if user.UserType != "" {
		fmt.Fprintf(w, "Type:\t%s\n", user.UserType)
	}
	if user.Institution != nil {
		fmt.Fprintf(w, "Institution:\t%d\n", *user.Institution)
	}

	return w.Flush()
}
