package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/certifychain/certifychain/internal/client"
	"github.com/certifychain/certifychain/internal/credentials"
	"github.com/certifychain/certifychain/internal/session"
)

// SessionExpiredMessage is printed when a request leaves the session
// unauthenticated.
const SessionExpiredMessage = "Session expired. Run 'certifychain login' to sign in again."

// ErrSessionExpired is returned when the backend rejects the session even
// after a refresh attempt.
var ErrSessionExpired = errors.New("session expired")

type Globals struct {
	Debug   bool
	Version string
	Server  string
	Home    string
	Timeout time.Duration

	// Stdout and Stderr default to the process streams.
	Stdout io.Writer
	Stderr io.Writer
}

func (g *Globals) stdout() io.Writer {
	if g.Stdout != nil {
		return g.Stdout
	}
	return os.Stdout
}

func (g *Globals) stderr() io.Writer {
	if g.Stderr != nil {
		return g.Stderr
	}
	return os.Stderr
}

func (g *Globals) home() (string, error) {
	if g.Home != "" {
		return g.Home, nil
	}
	return credentials.DefaultDir()
}

func (g *Globals) clientConfig() client.Config {
	config := client.DefaultConfig()
	if g.Server != "" {
		config.ServerURL = g.Server
	}
	if g.Timeout > 0 {
		config.Timeout = g.Timeout
	}
	config.Debug = g.Debug
	return config
}

// app is the wiring shared by every command: the token store, the session
// manager and the two HTTP clients.
type app struct {
	store   *credentials.FileStore
	auth    *client.AuthClient
	manager *session.Manager
	api     *client.Client
}

func newApp(globals *Globals) (*app, error) {
	home, err := globals.home()
	if err != nil {
		return nil, err
	}

	store, err := credentials.NewFileStore(home)
	if err != nil {
		return nil, fmt.Errorf("failed to open token store: %w", err)
	}

	config := globals.clientConfig()

	auth, err := client.NewAuthClient(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create auth client: %w", err)
	}

	stderr := globals.stderr()
	manager := session.NewManager(store,
		session.WithRefresher(auth),
		session.WithProfileFetcher(auth),
		session.WithUnauthenticatedHook(func() {
			fmt.Fprintln(stderr, SessionExpiredMessage)
		}),
	)

	api, err := client.New(config, manager)
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}

	return &app{store: store, auth: auth, manager: manager, api: api}, nil
}

// requireLogin restores the session and fails if nobody is signed in.
func (a *app) requireLogin(ctx context.Context) error {
	if err := a.manager.Initialize(ctx); err != nil {
		return fmt.Errorf("not logged in (%v), run 'certifychain login'", err)
	}
	if !a.manager.Session().Authenticated {
		return fmt.Errorf("not logged in, run 'certifychain login'")
	}
	return nil
}
