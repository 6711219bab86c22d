// Package cli holds the terminal presentation layer shared by the afctl
// commands.
//
// # Output
//
// Printer renders command results in one of three formats selected with
// --output or the output_format config key:
//   - table: rounded go-pretty tables and key/value panels with colored
//     status markers
//   - json: indented JSON of the underlying value
//   - yaml: YAML of the same value, converted from its JSON form so field
//     names match
//
// When a structured format is selected, progress and status messages are
// written to stderr so stdout stays machine readable. --no-headers switches
// tables to a plain, column aligned layout suitable for grep and awk.
//
// # Interaction
//
// Spinner wraps briandowns/spinner for long running calls, and Prompter
// asks y/N questions before destructive actions. Both stay silent in quiet
// mode.
//
// # Errors
//
// FormatError renders an error together with a remediation hint chosen by
// its api.ErrorKind.
package cli
