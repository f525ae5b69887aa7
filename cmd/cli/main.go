package main

import (
	"context"
	"os"
	"os/signal"
	"time"

	"github.com/alecthomas/kong"
	"github.com/certifychain/certifychain/cmd/cli/internal/commands"
	"github.com/certifychain/certifychain/internal/logger"
	"github.com/certifychain/certifychain/internal/telemetry"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

var (
	version = "dev"
	cli     struct {
		Register     commands.RegisterCmd     `cmd:"" help:"Create an employer or institution account"`
		Login        commands.LoginCmd        `cmd:"" help:"Sign in and store the session"`
		Logout       commands.LogoutCmd       `cmd:"" help:"Sign out and clear the stored session"`
		Status       commands.StatusCmd       `cmd:"" help:"Show the stored session"`
		Whoami       commands.WhoamiCmd       `cmd:"" help:"Show the signed-in user's profile"`
		Profile      commands.ProfileCmd      `cmd:"" help:"Edit the signed-in user's profile"`
		Certificates commands.CertificatesCmd `cmd:"" help:"Browse certificates"`
		Verify       commands.VerifyCmd       `cmd:"" help:"Verify a certificate"`
		Issue        commands.IssueCmd        `cmd:"" help:"Issue a certificate"`
		Institutions commands.InstitutionsCmd `cmd:"" help:"Browse institutions"`

		Server  string        `help:"Backend URL" default:"http://127.0.0.1:8000" env:"CERTIFYCHAIN_SERVER"`
		Home    string        `help:"Directory holding the session file (default: ~/.certifychain)" env:"CERTIFYCHAIN_HOME"`
		Timeout time.Duration `help:"HTTP request timeout" default:"5s" env:"CERTIFYCHAIN_TIMEOUT"`
		Debug   bool          `help:"Enable debug mode."`
		Otel    bool          `help:"Export traces and metrics over OTLP." env:"CERTIFYCHAIN_OTEL"`
		Version kong.VersionFlag
	}
)

func main() {
	// A missing .env file is not an error.
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cmd := kong.Parse(&cli,
		kong.Name("certifychain"),
		kong.Description("CertifyChain certificate client."),
		kong.Configuration(commands.YAMLConfig, commands.DefaultConfigFile),
		kong.Vars{
			"version": version,
			"today":   time.Now().Format("2006-01-02"),
		},
		kong.BindTo(ctx, (*context.Context)(nil)))

	log.Logger = logger.Setup(cli.Debug)

	var shutdown telemetry.ShutdownFunc
	if cli.Otel {
		var err error
		shutdown, err = telemetry.InitTelemetry(ctx, "certifychain", version)
		cmd.FatalIfErrorf(err)
	}

	err := cmd.Run(&commands.Globals{
		Debug:   cli.Debug,
		Version: version,
		Server:  cli.Server,
		Home:    cli.Home,
		Timeout: cli.Timeout,
	})

	// Flush before FatalIfErrorf exits the process.
	if shutdown != nil {
		if serr := shutdown(context.Background()); serr != nil {
			log.Error().Err(serr).Msg("failed to shut down telemetry")
		}
	}

	cmd.FatalIfErrorf(err)
}
