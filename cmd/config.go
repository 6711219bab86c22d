package cmd

import (
	"fmt"
	"strings"

	"afctl/internal/config"

	"github.com/spf13/cobra"
)

// configCmd represents the config command group
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show and change afctl settings",
	Long: `Show and change the settings stored in config.yaml.

Environment variables (AF_GATEWAY_URL, AF_KEYCLOAK_URL, AF_OUTPUT_FORMAT,
AF_PAGE_SIZE, AF_CACHE_BACKEND) and a .env file in the working directory
override the file for a single run.

Examples:
  afctl config show
  afctl config get gateway_url
  afctl config set page_size 50
  afctl config reset --yes`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show all settings",
	Args:  cobra.NoArgs,
	RunE:  runConfigShow,
}

var configGetCmd = &cobra.Command{
	Use:       "get KEY",
	Short:     "Print one setting",
	Args:      cobra.ExactArgs(1),
	ValidArgs: append(config.Keys(), tenantIDKey),
	RunE:      runConfigGet,
}

var configSetCmd = &cobra.Command{
	Use:   "set KEY VALUE",
	Short: "Change one setting",
	Long: `Change one setting and save config.yaml.

Settable keys: ` + strings.Join(config.SettableKeys(), ", "),
	Args:      cobra.ExactArgs(2),
	ValidArgs: config.SettableKeys(),
	RunE:      runConfigSet,
}

var configResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Restore the default settings",
	Args:  cobra.NoArgs,
	RunE:  runConfigReset,
}

// tenantIDKey is read from the session rather than config.yaml.
const tenantIDKey = "tenant_id"

var configResetYes bool

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configResetCmd)

	configResetCmd.Flags().BoolVarP(&configResetYes, "yes", "y", false, "Skip the confirmation prompt")
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	env, err := setup(cmd)
	if err != nil {
		return err
	}

	values := make(map[string]string)
	for _, k := range config.Keys() {
		v, _ := env.cfg.Get(k)
		values[k] = v
	}
	values[tenantIDKey] = env.tenantID()

	p := env.printer
	if p.Structured() {
		return p.Data(values)
	}

	pairs := make([][2]string, 0, len(values))
	for _, k := range append(config.Keys(), tenantIDKey) {
		pairs = append(pairs, [2]string{k, valueOrNA(values[k])})
	}
	p.KeyValues("Configuration", pairs)
	return nil
}

func runConfigGet(cmd *cobra.Command, args []string) error {
	env, err := setup(cmd)
	if err != nil {
		return err
	}

	var value string
	if args[0] == tenantIDKey {
		value = env.tenantID()
	} else if value, err = env.cfg.Get(args[0]); err != nil {
		return err
	}

	if env.printer.Structured() {
		return env.printer.Data(map[string]string{args[0]: value})
	}
	fmt.Fprintln(cmd.OutOrStdout(), value)
	return nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	env, err := setup(cmd)
	if err != nil {
		return err
	}

	// Start from the file alone so environment overrides are not persisted.
	cfg, err := config.LoadFile(env.cfg.Dir)
	if err != nil {
		return err
	}
	key, value := args[0], args[1]
	if err := cfg.Set(key, value); err != nil {
		return err
	}
	if err := config.Save(cfg.Dir, cfg); err != nil {
		return err
	}

	saved, _ := cfg.Get(key)
	env.printer.Success("Set %s to %s", key, saved)
	return nil
}

func runConfigReset(cmd *cobra.Command, args []string) error {
	env, err := setup(cmd)
	if err != nil {
		return err
	}

	env.prompter.AssumeYes = configResetYes
	if !env.prompter.Confirm("Reset all settings to their defaults?") {
		env.printer.Info("Aborted.")
		return nil
	}

	cfg := config.Default()
	if err := config.Save(env.cfg.Dir, cfg); err != nil {
		return err
	}
	env.printer.Success("Configuration reset to defaults")
	return nil
}

// tenantID returns the tenant of the stored session, or "".
func (e *environment) tenantID() string {
	s, err := e.sessions.Load()
	if err != nil || s == nil {
		return ""
	}
	return s.TenantID
}
