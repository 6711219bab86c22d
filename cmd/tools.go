package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"afctl/internal/api"
	"afctl/internal/cli"
	"afctl/internal/config"
	"afctl/internal/connection"
	"afctl/internal/credmethod"
	"afctl/internal/session"
	"afctl/pkg/logging"

	"github.com/spf13/cobra"
)

// toolsCmd represents the tools command group
var toolsCmd = &cobra.Command{
	Use:     "tools",
	Aliases: []string{"tool", "connections"},
	Short:   "Manage connections to external tools",
	Long: `Link your accounts at external tools to Agentic Fabriq.

A connection is created with 'add', authorized with 'connect' when it uses
browser OAuth, and can later be disconnected (credentials deleted, entry
kept) or removed entirely.

Methods:
  api_credentials   your own API token, or your own OAuth client id/secret
  oauth3            the platform's OAuth application (` + strings.Join(credmethod.OAuth3Tools(), ", ") + `)

Examples:
  afctl tools add github --connection-id gh --method api_credentials --token ghp_...
  afctl tools add google_docs --connection-id docs --method oauth3
  afctl tools connect docs
  afctl tools list --tool slack
  afctl tools disconnect docs
  afctl tools remove docs`,
}

var toolsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List your tool connections",
	Args:  cobra.NoArgs,
	RunE:  runToolsList,
}

var toolsGetCmd = &cobra.Command{
	Use:   "get CONNECTION_ID",
	Short: "Show one tool connection",
	Args:  cobra.ExactArgs(1),
	RunE:  runToolsGet,
}

var toolsAddCmd = &cobra.Command{
	Use:   "add TOOL",
	Short: "Create a tool connection and store its credentials",
	Args:  cobra.ExactArgs(1),
	RunE:  runToolsAdd,
}

var toolsConnectCmd = &cobra.Command{
	Use:   "connect CONNECTION_ID",
	Short: "Authorize a connection in the browser",
	Long: `Start the browser authorization of a connection and wait until the
gateway reports it connected, checking once per second for up to two minutes.`,
	Args: cobra.ExactArgs(1),
	RunE: runToolsConnect,
}

var toolsDisconnectCmd = &cobra.Command{
	Use:   "disconnect CONNECTION_ID",
	Short: "Delete the stored credentials of a connection",
	Args:  cobra.ExactArgs(1),
	RunE:  runToolsDisconnect,
}

var toolsRemoveCmd = &cobra.Command{
	Use:   "remove CONNECTION_ID",
	Short: "Remove a connection and its credentials",
	Args:  cobra.ExactArgs(1),
	RunE:  runToolsRemove,
}

var toolsInvokeCmd = &cobra.Command{
	Use:   "invoke CONNECTION_ID",
	Short: "Call a tool method through a connection",
	Args:  cobra.ExactArgs(1),
	RunE:  runToolsInvoke,
}

var (
	toolsPage       int
	toolsPageSize   int
	toolsSearch     string
	toolsToolFilter string

	addConnectionID string
	addDisplayName  string
	addMethod       string
	addToken        string
	addClientID     string
	addClientSecret string
	addRedirectURI  string

	connectYes       bool
	connectNoBrowser bool

	toolsForce bool

	invokeMethod string
	invokeParams string
)

func init() {
	rootCmd.AddCommand(toolsCmd)
	toolsCmd.AddCommand(toolsListCmd)
	toolsCmd.AddCommand(toolsGetCmd)
	toolsCmd.AddCommand(toolsAddCmd)
	toolsCmd.AddCommand(toolsConnectCmd)
	toolsCmd.AddCommand(toolsDisconnectCmd)
	toolsCmd.AddCommand(toolsRemoveCmd)
	toolsCmd.AddCommand(toolsInvokeCmd)

	toolsListCmd.Flags().IntVar(&toolsPage, "page", 1, "Page number")
	toolsListCmd.Flags().IntVar(&toolsPageSize, "page-size", 0, "Connections per page, saved as the new default (1-100)")
	toolsListCmd.Flags().StringVar(&toolsSearch, "search", "", "Filter by connection id or display name")
	toolsListCmd.Flags().StringVar(&toolsToolFilter, "tool", "", "Filter by tool")

	toolsAddCmd.Flags().StringVar(&addConnectionID, "connection-id", "", "Connection id, unique per user")
	toolsAddCmd.Flags().StringVar(&addDisplayName, "display-name", "", "Display name (defaults to the connection id)")
	toolsAddCmd.Flags().StringVar(&addMethod, "method", "", "Credential method: api_credentials or oauth3")
	toolsAddCmd.Flags().StringVar(&addToken, "token", "", "API token (api_credentials)")
	toolsAddCmd.Flags().StringVar(&addClientID, "client-id", "", "OAuth client id (api_credentials)")
	toolsAddCmd.Flags().StringVar(&addClientSecret, "client-secret", "", "OAuth client secret (api_credentials)")
	toolsAddCmd.Flags().StringVar(&addRedirectURI, "redirect-uri", "", "OAuth redirect URI (defaults to the gateway callback)")
	_ = toolsAddCmd.MarkFlagRequired("connection-id")
	_ = toolsAddCmd.MarkFlagRequired("method")

	toolsConnectCmd.Flags().BoolVarP(&connectYes, "yes", "y", false, "Re-authorize already connected connections without asking")
	toolsConnectCmd.Flags().BoolVar(&connectNoBrowser, "no-browser", false, "Print the authorization URL instead of opening a browser")

	toolsDisconnectCmd.Flags().BoolVarP(&toolsForce, "force", "f", false, "Skip the confirmation prompt")
	toolsRemoveCmd.Flags().BoolVarP(&toolsForce, "force", "f", false, "Skip the confirmation prompt")

	toolsInvokeCmd.Flags().StringVar(&invokeMethod, "method", "", "Tool method to call")
	toolsInvokeCmd.Flags().StringVar(&invokeParams, "params", "{}", "Method parameters as a JSON object")
	_ = toolsInvokeCmd.MarkFlagRequired("method")
}

// connectionService returns a service over the session-authenticated gateway.
func (e *environment) connectionService(cmd *cobra.Command) (*connection.Service, error) {
	if err := e.requireSession(); err != nil {
		return nil, err
	}
	gw, err := e.gateway(cmd.Context())
	if err != nil {
		return nil, err
	}
	return connection.NewService(gw), nil
}

func runToolsList(cmd *cobra.Command, args []string) error {
	env, err := setup(cmd)
	if err != nil {
		return err
	}

	pageSize := env.cfg.PageSize
	if cmd.Flags().Changed("page-size") {
		if err := config.ValidatePageSize("page-size", toolsPageSize); err != nil {
			return err
		}
		pageSize = toolsPageSize
		if err := savePageSize(env.cfg.Dir, pageSize); err != nil {
			logging.Warn("Config", "Could not save page size: %v", err)
		}
	}

	svc, err := env.connectionService(cmd)
	if err != nil {
		return err
	}
	conns, err := svc.List(cmd.Context(), connection.ListOptions{
		Page:       toolsPage,
		PageSize:   pageSize,
		Search:     toolsSearch,
		ToolFilter: toolsToolFilter,
	})
	if err != nil {
		return err
	}

	p := env.printer
	if p.Structured() {
		return p.Data(conns)
	}

	rows := make([][]string, 0, len(conns))
	for _, c := range conns {
		rows = append(rows, []string{
			c.ConnectionID,
			api.ToolTitle(c.Tool),
			string(c.EffectiveMethod()),
			cli.StatusText(string(c.State())),
			cli.Truncate(c.Name(), 40),
		})
	}
	p.Table([]string{"CONNECTION ID", "TOOL", "METHOD", "STATUS", "NAME"}, rows,
		"No tool connections found. Add one with 'afctl tools add'.")
	if len(conns) > 0 {
		p.Footer("Page %d, %d connection(s)", toolsPage, len(conns))
	}
	return nil
}

// savePageSize persists a new default page size without applying
// environment overrides to the file.
func savePageSize(dir string, size int) error {
	cfg, err := config.LoadFile(dir)
	if err != nil {
		return err
	}
	if cfg.PageSize == size {
		return nil
	}
	cfg.PageSize = size
	return config.Save(dir, cfg)
}

func runToolsGet(cmd *cobra.Command, args []string) error {
	env, err := setup(cmd)
	if err != nil {
		return err
	}
	svc, err := env.connectionService(cmd)
	if err != nil {
		return err
	}

	conn, err := svc.Get(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	p := env.printer
	if p.Structured() {
		return p.Data(conn)
	}
	printConnection(p, *conn)
	if !conn.Connected {
		p.Hint("Authorize it with 'afctl tools connect %s'.", conn.ConnectionID)
	}
	return nil
}

func runToolsAdd(cmd *cobra.Command, args []string) error {
	method, err := api.ParseCredentialMethod(addMethod)
	if err != nil {
		return err
	}

	env, err := setup(cmd)
	if err != nil {
		return err
	}
	svc, err := env.connectionService(cmd)
	if err != nil {
		return err
	}

	result, err := svc.Add(cmd.Context(), connection.AddRequest{
		Tool:         args[0],
		ConnectionID: addConnectionID,
		DisplayName:  addDisplayName,
		Method:       method,
		Credentials: credmethod.CredentialInput{
			Token:        addToken,
			ClientID:     addClientID,
			ClientSecret: addClientSecret,
			RedirectURI:  addRedirectURI,
		},
	})
	if err != nil {
		return err
	}

	p := env.printer
	if p.Structured() {
		return p.Data(result)
	}
	p.Success("Added %s connection %s", api.ToolTitle(result.Resolution.Tool), addConnectionID)
	switch {
	case result.StoredToken:
		p.Success("API token stored")
	case result.StoredClient:
		p.Success("OAuth client stored")
		p.Hint("Register this redirect URI with your OAuth application: %s", result.RedirectURI)
		p.Hint("Then authorize with 'afctl tools connect %s'.", addConnectionID)
	default:
		p.Hint("Authorize it with 'afctl tools connect %s'.", addConnectionID)
	}
	return nil
}

func runToolsConnect(cmd *cobra.Command, args []string) error {
	env, err := setup(cmd)
	if err != nil {
		return err
	}
	svc, err := env.connectionService(cmd)
	if err != nil {
		return err
	}

	p := env.printer
	browser := session.OpenBrowser
	if connectNoBrowser {
		browser = nil
	}
	h := connection.NewHandshake(svc, browser)
	env.prompter.AssumeYes = connectYes
	h.ConfirmReauthorize = func(c api.ToolConnection) bool {
		return env.prompter.Confirm(fmt.Sprintf("%s is already connected. Authorize it again?", c.ConnectionID))
	}

	var sp *cli.Spinner
	h.OnAuthorizationURL = func(url string) {
		p.Info("Opening the browser to authorize. If it does not open, visit:")
		p.Notice("  %s", url)
		sp = p.StartSpinner("Waiting for authorization...")
	}
	h.OnPoll = func(attempt int) {
		sp.Update(fmt.Sprintf("Waiting for authorization... (%d/%d)", attempt, h.MaxAttempts))
	}

	result, err := h.Run(cmd.Context(), args[0])
	if err != nil {
		sp.Fail("Authorization did not complete")
		return err
	}
	sp.Stop()

	if p.Structured() {
		return p.Data(result)
	}
	switch result.State {
	case connection.StateConnected:
		p.Success("Connected %s (%s)", result.Connection.ConnectionID, api.ToolTitle(result.Connection.Tool))
		printConnection(p, result.Connection)
	case connection.StateCancelled:
		p.Info("%s is already connected, nothing to do.", result.Connection.ConnectionID)
	}
	return nil
}

func runToolsDisconnect(cmd *cobra.Command, args []string) error {
	env, err := setup(cmd)
	if err != nil {
		return err
	}
	svc, err := env.connectionService(cmd)
	if err != nil {
		return err
	}

	conn, err := svc.Disconnect(cmd.Context(), args[0], env.confirmFunc("Disconnect %s? Its stored credentials will be deleted."))
	if errors.Is(err, connection.ErrCancelled) {
		env.printer.Info("Aborted.")
		return nil
	}
	if err != nil {
		return err
	}

	env.printer.Success("Disconnected %s", conn.ConnectionID)
	env.printer.Hint("The connection is kept. Authorize it again with 'afctl tools connect %s'.", conn.ConnectionID)
	return nil
}

func runToolsRemove(cmd *cobra.Command, args []string) error {
	env, err := setup(cmd)
	if err != nil {
		return err
	}
	svc, err := env.connectionService(cmd)
	if err != nil {
		return err
	}

	result, err := svc.Remove(cmd.Context(), args[0], env.confirmFunc("Remove %s and its stored credentials?"))
	if errors.Is(err, connection.ErrCancelled) {
		env.printer.Info("Aborted.")
		return nil
	}
	if err != nil {
		return err
	}

	if result.AlreadyGone {
		env.printer.Warn("Connection %s was already removed on the server", args[0])
	}
	env.printer.Success("Removed %s", result.Connection.ConnectionID)
	return nil
}

func runToolsInvoke(cmd *cobra.Command, args []string) error {
	var params map[string]any
	if err := json.Unmarshal([]byte(invokeParams), &params); err != nil {
		return fmt.Errorf("--params must be a JSON object: %w", err)
	}

	env, err := setup(cmd)
	if err != nil {
		return err
	}
	svc, err := env.connectionService(cmd)
	if err != nil {
		return err
	}

	sp := env.printer.StartSpinner(fmt.Sprintf("Calling %s...", invokeMethod))
	raw, err := svc.Invoke(cmd.Context(), args[0], invokeMethod, params)
	if err != nil {
		sp.Fail("Call failed")
		return err
	}
	sp.Stop()
	return env.printer.RawJSON(raw)
}

// confirmFunc returns a connection.ConfirmFunc prompting with format, or
// nil when --force was given.
func (e *environment) confirmFunc(format string) connection.ConfirmFunc {
	if toolsForce {
		return nil
	}
	return func(c api.ToolConnection) bool {
		return e.prompter.Confirm(fmt.Sprintf(format, c.ConnectionID))
	}
}

func printConnection(p *cli.Printer, c api.ToolConnection) {
	pairs := [][2]string{
		{"Connection ID", c.ConnectionID},
		{"Tool", api.ToolTitle(c.Tool)},
		{"Method", string(c.EffectiveMethod())},
		{"Status", cli.StatusText(string(c.State()))},
		{"Display Name", c.Name()},
	}
	pairs = append(pairs, c.Details()...)
	if c.CreatedAt != "" {
		pairs = append(pairs, [2]string{"Created", c.CreatedAt})
	}
	if c.UpdatedAt != "" {
		pairs = append(pairs, [2]string{"Updated", c.UpdatedAt})
	}
	p.KeyValues("Tool Connection", pairs)
}
