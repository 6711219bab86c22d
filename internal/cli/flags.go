package cli

import (
	"github.com/spf13/cobra"
)

// CommandFlags holds the global flags every afctl command accepts.
type CommandFlags struct {
	// OutputFormat overrides the configured output format when set.
	OutputFormat string
	// NoHeaders prints tables without borders or header rows.
	NoHeaders bool
	// Quiet suppresses progress indicators and status lines.
	Quiet bool
	// Debug enables debug logging on stderr.
	Debug bool
	// ConfigPath overrides the configuration directory.
	ConfigPath string
}

// RegisterGlobalFlags registers the persistent flags on the root command:
//   - --output/-o: table, json or yaml (default from config)
//   - --no-headers: plain table output
//   - --quiet/-q: suppress non-essential output
//   - --debug: debug logging
//   - --config-path: configuration directory (env: AF_CONFIG_DIR)
func RegisterGlobalFlags(cmd *cobra.Command, flags *CommandFlags) {
	cmd.PersistentFlags().StringVarP(&flags.OutputFormat, "output", "o", "", "Output format (table, json, yaml)")
	cmd.PersistentFlags().BoolVar(&flags.NoHeaders, "no-headers", false, "Suppress borders and header rows in table output")
	cmd.PersistentFlags().BoolVarP(&flags.Quiet, "quiet", "q", false, "Suppress non-essential output")
	cmd.PersistentFlags().BoolVar(&flags.Debug, "debug", false, "Enable debug logging")
	cmd.PersistentFlags().StringVar(&flags.ConfigPath, "config-path", "", "Configuration directory (env: AF_CONFIG_DIR, default ~/.af)")
}

// ResolveFormat picks the flag value over the configured format.
func (f *CommandFlags) ResolveFormat(configured string) (OutputFormat, error) {
	format := f.OutputFormat
	if format == "" {
		format = configured
	}
	if format == "" {
		return OutputFormatTable, nil
	}
	if err := ValidateOutputFormat(format); err != nil {
		return "", err
	}
	return OutputFormat(format), nil
}
