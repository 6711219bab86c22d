package cmd

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"afctl/internal/activation"
	"afctl/internal/api"
	"afctl/internal/cli"
	"afctl/internal/reconciler"
	"afctl/internal/store"

	"github.com/spf13/cobra"
)

// applicationsCmd represents the applications command group
var applicationsCmd = &cobra.Command{
	Use:     "applications",
	Aliases: []string{"apps", "app"},
	Short:   "Provision credentials for automation agents",
	Long: `Register applications and activate their credentials.

Registration returns a one-time activation token valid for one hour.
Activating exchanges it for a permanent secret that is cached locally.

Examples:
  afctl applications register --app-id reporter --connections slack:work,google_docs:docs
  afctl applications connect reporter --token <activation-token>
  afctl applications list
  afctl applications show reporter --reveal-secret
  afctl applications delete reporter`,
}

var appsRegisterCmd = &cobra.Command{
	Use:   "register",
	Short: "Register a new application and get its activation token",
	Args:  cobra.NoArgs,
	RunE:  runAppsRegister,
}

var appsConnectCmd = &cobra.Command{
	Use:   "connect APP_ID",
	Short: "Activate an application with its activation token",
	Args:  cobra.ExactArgs(1),
	RunE:  runAppsConnect,
}

var appsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List cached applications",
	Long: `List the applications cached on this machine.

Unless --no-sync is given, applications the server no longer knows about are
removed from the local cache first. Without a session, or when the server
cannot be reached, the cache is listed unchanged.`,
	Args: cobra.NoArgs,
	RunE: runAppsList,
}

var appsShowCmd = &cobra.Command{
	Use:   "show APP_ID",
	Short: "Show a cached application",
	Args:  cobra.ExactArgs(1),
	RunE:  runAppsShow,
}

var appsDeleteCmd = &cobra.Command{
	Use:   "delete APP_ID",
	Short: "Delete an application on the server and locally",
	Args:  cobra.ExactArgs(1),
	RunE:  runAppsDelete,
}

var (
	registerAppID       string
	registerConnections string
	registerScopes      string
	activateToken       string
	listNoSync          bool
	showRevealSecret    bool
	deleteYes           bool
)

func init() {
	rootCmd.AddCommand(applicationsCmd)
	applicationsCmd.AddCommand(appsRegisterCmd)
	applicationsCmd.AddCommand(appsConnectCmd)
	applicationsCmd.AddCommand(appsListCmd)
	applicationsCmd.AddCommand(appsShowCmd)
	applicationsCmd.AddCommand(appsDeleteCmd)

	appsRegisterCmd.Flags().StringVar(&registerAppID, "app-id", "", "Application id")
	appsRegisterCmd.Flags().StringVar(&registerConnections, "connections", "", "Tool connections as tool:connection-id,...")
	appsRegisterCmd.Flags().StringVar(&registerScopes, "scopes", "", "Scopes granted on every connection, comma separated")
	_ = appsRegisterCmd.MarkFlagRequired("app-id")
	_ = appsRegisterCmd.MarkFlagRequired("connections")

	appsConnectCmd.Flags().StringVar(&activateToken, "token", "", "Activation token returned by register")
	_ = appsConnectCmd.MarkFlagRequired("token")

	appsListCmd.Flags().BoolVar(&listNoSync, "no-sync", false, "List the local cache without contacting the server")
	appsShowCmd.Flags().BoolVar(&showRevealSecret, "reveal-secret", false, "Print the secret key in clear text")
	appsDeleteCmd.Flags().BoolVarP(&deleteYes, "yes", "y", false, "Skip the confirmation prompt")
}

// activationFlow builds the flow over the session-authenticated gateway
// and the configured cache.
func (e *environment) activationFlow(cmd *cobra.Command) (*activation.Flow, store.Store, error) {
	gw, err := e.gateway(cmd.Context())
	if err != nil {
		return nil, nil, err
	}
	st, err := e.store()
	if err != nil {
		return nil, nil, err
	}
	return activation.NewFlow(gw, st, e.sessions.Valid), st, nil
}

func runAppsRegister(cmd *cobra.Command, args []string) error {
	connections, err := activation.ParseConnections(registerConnections)
	if err != nil {
		return err
	}
	activation.ApplyScopes(connections, activation.ParseScopes(registerScopes))

	env, err := setup(cmd)
	if err != nil {
		return err
	}
	if err := env.requireSession(); err != nil {
		return err
	}
	flow, st, err := env.activationFlow(cmd)
	if err != nil {
		return err
	}
	defer st.Close()

	sp := env.printer.StartSpinner("Registering application...")
	ticket, err := flow.Register(cmd.Context(), registerAppID, connections)
	if err != nil {
		sp.Fail("Registration failed")
		return err
	}
	sp.Stop()

	p := env.printer
	if p.Structured() {
		return p.Data(ticket)
	}
	p.Success("Registered application %s", ticket.AppID)
	p.KeyValues("Activation", [][2]string{
		{"App ID", ticket.AppID},
		{"Activation Token", ticket.ActivationToken},
		{"Expires", formatExpiry(ticket.ExpiresAt.Time, time.Now())},
	})
	p.Hint("The token is shown once. Activate it within one hour:")
	p.Hint("afctl applications connect %s --token %s", ticket.AppID, ticket.ActivationToken)
	return nil
}

func runAppsConnect(cmd *cobra.Command, args []string) error {
	env, err := setup(cmd)
	if err != nil {
		return err
	}
	if err := env.requireSession(); err != nil {
		return err
	}
	flow, st, err := env.activationFlow(cmd)
	if err != nil {
		return err
	}
	defer st.Close()

	sp := env.printer.StartSpinner("Activating application...")
	app, err := flow.Activate(cmd.Context(), args[0], activateToken)
	if err != nil {
		sp.Fail("Activation failed")
		return err
	}
	sp.Stop()

	p := env.printer
	// The secret is printed unmasked once here; later views mask it.
	if p.Structured() {
		return p.Data(app)
	}
	p.Success("Activated application %s", app.AppID)
	printApplication(p, *app)
	p.Notice("Save the secret key now, it won't be shown again.")
	p.Hint("Later views mask it unless 'afctl applications show %s --reveal-secret' is used.", app.AppID)
	return nil
}

func runAppsList(cmd *cobra.Command, args []string) error {
	env, err := setup(cmd)
	if err != nil {
		return err
	}
	flow, st, err := env.activationFlow(cmd)
	if err != nil {
		return err
	}
	defer st.Close()

	apps, result, err := flow.List(cmd.Context(), !listNoSync)
	if err != nil {
		return err
	}
	reportReconcile(env.printer, result)

	p := env.printer
	if p.Structured() {
		redacted := make([]api.Application, 0, len(apps))
		for _, a := range apps {
			redacted = append(redacted, a.Redacted())
		}
		return p.Data(redacted)
	}

	rows := make([][]string, 0, len(apps))
	for _, a := range apps {
		rows = append(rows, []string{a.AppID, connectionSummary(a.ToolConnections), a.CreatedAt.Date(), a.GatewayURL})
	}
	p.Table([]string{"APP ID", "CONNECTIONS", "CREATED", "GATEWAY"}, rows, "No applications cached. Register one with 'afctl applications register'.")
	if len(apps) > 0 {
		p.Footer("Total: %d application(s)", len(apps))
	}
	return nil
}

// reportReconcile tells the operator whether the cache was synchronized.
func reportReconcile(p *cli.Printer, result reconciler.Result) {
	switch {
	case result.Outcome == reconciler.OutcomeFetchFailed, len(result.Failed) > 0:
		p.Warn("%s", result.Summary("applications"))
	case result.Outcome == reconciler.OutcomeNoSession, len(result.Purged) > 0:
		p.Info("%s", result.Summary("applications"))
	}
}

func runAppsShow(cmd *cobra.Command, args []string) error {
	env, err := setup(cmd)
	if err != nil {
		return err
	}
	st, err := env.store()
	if err != nil {
		return err
	}
	defer st.Close()

	app, err := st.Get(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	if !showRevealSecret {
		app = app.Redacted()
	}

	p := env.printer
	if p.Structured() {
		return p.Data(app)
	}
	printApplication(p, app)
	return nil
}

func runAppsDelete(cmd *cobra.Command, args []string) error {
	env, err := setup(cmd)
	if err != nil {
		return err
	}
	if err := env.requireSession(); err != nil {
		return err
	}

	appID := args[0]
	env.prompter.AssumeYes = deleteYes
	if !env.prompter.Confirm(fmt.Sprintf("Delete application %s? Agents using its credentials will stop working.", appID)) {
		env.printer.Info("Aborted.")
		return nil
	}

	flow, st, err := env.activationFlow(cmd)
	if err != nil {
		return err
	}
	defer st.Close()

	result, err := flow.Delete(cmd.Context(), appID)
	if err != nil {
		return err
	}

	p := env.printer
	if result.AlreadyGone {
		p.Warn("Application %s was already deleted on the server", appID)
	}
	if result.LocalMissing {
		p.Warn("Application %s was not cached locally", appID)
	}
	p.Success("Deleted application %s", appID)
	return nil
}

func printApplication(p *cli.Printer, app api.Application) {
	pairs := [][2]string{
		{"App ID", app.AppID},
		{"Secret Key", app.SecretKey},
		{"User ID", valueOrNA(app.UserID)},
		{"Tenant ID", valueOrNA(app.TenantID)},
		{"Created", valueOrNA(app.CreatedAt.String())},
		{"Gateway", valueOrNA(app.GatewayURL)},
	}
	ids := make([]string, 0, len(app.ToolConnections))
	for id := range app.ToolConnections {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		scopes := "all"
		if len(app.ToolConnections[id]) > 0 {
			scopes = strings.Join(app.ToolConnections[id], ", ")
		}
		pairs = append(pairs, [2]string{"Connection " + id, scopes})
	}
	p.KeyValues("Application", pairs)
}

func connectionSummary(conns map[string][]string) string {
	ids := make([]string, 0, len(conns))
	for id := range conns {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return cli.Truncate(strings.Join(ids, ", "), 40)
}
