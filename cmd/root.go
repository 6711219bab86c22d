package cmd

import (
	"context"
	"fmt"
	"os"

	"afctl/internal/api"
	"afctl/internal/cli"
	"afctl/internal/config"
	"afctl/internal/gateway"
	"afctl/internal/session"
	"afctl/internal/store"
	"afctl/pkg/logging"

	"github.com/spf13/cobra"
)

// Exit codes for CLI commands.
const (
	// ExitCodeSuccess indicates successful execution.
	ExitCodeSuccess = 0
	// ExitCodeError indicates a general error (command failed, invalid arguments).
	ExitCodeError = 1
	// ExitCodeAuthRequired indicates no usable operator session.
	ExitCodeAuthRequired = 2
	// ExitCodeAuthFailed indicates a browser authorization failed or timed out.
	ExitCodeAuthFailed = 3
)

var globalFlags cli.CommandFlags

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "afctl",
	Short: "Provision agent credentials and tool connections on Agentic Fabriq",
	Long: `afctl provisions machine credentials for automation agents and links your
accounts at external tool providers through the Agentic Fabriq gateway.

Typical flow:
  afctl auth login                                  # sign in
  afctl tools add slack --connection-id work --method oauth3
  afctl tools connect work                          # authorize in the browser
  afctl applications register --app-id reporter --connections slack:work
  afctl applications connect reporter --token <activation-token>`,
	// Errors are printed by Execute together with a remediation hint.
	SilenceUsage:  true,
	SilenceErrors: true,
}

// SetVersion sets the version reported by the root command.
func SetVersion(v string) {
	rootCmd.Version = v
}

// GetVersion returns the current version of the application.
func GetVersion() string {
	return rootCmd.Version
}

// Execute runs the root command and exits with a code derived from the
// error kind.
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "afctl version %s\n" .Version}}`)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, cli.FormatError(err))
		os.Exit(getExitCode(err))
	}
}

// getExitCode maps an error to a semantic exit code for scripting.
func getExitCode(err error) int {
	if err == nil {
		return ExitCodeSuccess
	}
	switch api.KindOf(err) {
	case api.KindUnauthenticated:
		return ExitCodeAuthRequired
	case api.KindAuthorizationTimeout:
		return ExitCodeAuthFailed
	default:
		return ExitCodeError
	}
}

func init() {
	cli.RegisterGlobalFlags(rootCmd, &globalFlags)
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newSelfUpdateCmd())
}

// environment is what a command needs after configuration is loaded.
type environment struct {
	cfg      config.Config
	printer  *cli.Printer
	prompter *cli.Prompter
	sessions *session.Manager
}

// setup loads .env and the config directory, initializes logging and
// builds the printer for cmd.
func setup(cmd *cobra.Command) (*environment, error) {
	config.LoadDotEnv()

	dir := globalFlags.ConfigPath
	if dir == "" {
		var err error
		if dir, err = config.DefaultDir(); err != nil {
			return nil, err
		}
	}

	cfg, err := config.Load(dir)
	if err != nil {
		return nil, err
	}

	level := logging.LevelWarn
	if cfg.Verbose {
		level = logging.LevelInfo
	}
	if globalFlags.Debug {
		level = logging.LevelDebug
	}
	logging.InitForCLI(level, cmd.ErrOrStderr())

	format, err := globalFlags.ResolveFormat(cfg.OutputFormat)
	if err != nil {
		return nil, err
	}
	printer := cli.NewPrinter(format, globalFlags.Quiet, globalFlags.NoHeaders)
	printer.Out = cmd.OutOrStdout()
	printer.Err = cmd.ErrOrStderr()

	return &environment{
		cfg:      cfg,
		printer:  printer,
		prompter: &cli.Prompter{In: cmd.InOrStdin(), Out: cmd.ErrOrStderr()},
		sessions: session.NewManager(cfg),
	}, nil
}

// requireSession fails fast when no usable session is stored.
func (e *environment) requireSession() error {
	if !e.sessions.Valid() {
		return api.NewError(api.KindUnauthenticated, "not logged in or session expired")
	}
	return nil
}

// gateway returns a client authenticated with the operator session.
func (e *environment) gateway(ctx context.Context) (*gateway.Client, error) {
	return gateway.New(gateway.Options{
		BaseURL:     e.cfg.GatewayURL,
		TokenSource: e.sessions.TokenSource(ctx),
		UserAgent:   "afctl/" + GetVersion(),
	})
}

// store opens the configured local application cache.
func (e *environment) store() (store.Store, error) {
	return store.Open(e.cfg)
}
