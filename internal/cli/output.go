package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"sigs.k8s.io/yaml"
)

// OutputFormat selects how command results are rendered.
type OutputFormat string

const (
	OutputFormatTable OutputFormat = "table"
	OutputFormatJSON  OutputFormat = "json"
	OutputFormatYAML  OutputFormat = "yaml"
)

// ValidateOutputFormat rejects unknown formats.
func ValidateOutputFormat(format string) error {
	switch OutputFormat(format) {
	case OutputFormatTable, OutputFormatJSON, OutputFormatYAML:
		return nil
	default:
		return fmt.Errorf("unsupported output format: %q (valid: table, json, yaml)", format)
	}
}

// Printer writes command results and status messages.
type Printer struct {
	Out       io.Writer
	Err       io.Writer
	Format    OutputFormat
	Quiet     bool
	NoHeaders bool
}

// NewPrinter returns a Printer writing to stdout and stderr.
func NewPrinter(format OutputFormat, quiet, noHeaders bool) *Printer {
	if format == "" {
		format = OutputFormatTable
	}
	return &Printer{
		Out:       os.Stdout,
		Err:       os.Stderr,
		Format:    format,
		Quiet:     quiet,
		NoHeaders: noHeaders,
	}
}

// Structured reports whether the format is json or yaml.
func (p *Printer) Structured() bool {
	return p.Format == OutputFormatJSON || p.Format == OutputFormatYAML
}

// messages is where status lines go: stdout for tables, stderr otherwise.
func (p *Printer) messages() io.Writer {
	if p.Structured() {
		return p.Err
	}
	return p.Out
}

// Data writes v as JSON or YAML. In table format it falls back to JSON.
func (p *Printer) Data(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	if p.Format == OutputFormatYAML {
		data, err = yaml.JSONToYAML(data)
		if err != nil {
			return fmt.Errorf("failed to encode YAML output: %w", err)
		}
		_, err = p.Out.Write(data)
		return err
	}
	_, err = fmt.Fprintln(p.Out, string(data))
	return err
}

// RawJSON writes a JSON document received from the server. Table format
// pretty-prints it, yaml converts it.
func (p *Printer) RawJSON(raw []byte) error {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		_, werr := fmt.Fprintln(p.Out, string(raw))
		return werr
	}
	return p.Data(v)
}

// Table renders rows under headers. An empty rows slice prints emptyMessage
// instead.
func (p *Printer) Table(headers []string, rows [][]string, emptyMessage string) {
	if len(rows) == 0 {
		if emptyMessage != "" && !p.NoHeaders {
			fmt.Fprintf(p.Out, "%s\n", text.FgYellow.Sprint(emptyMessage))
		}
		return
	}

	if p.NoHeaders {
		pt := newPlainTable(p.Out, len(headers))
		for _, row := range rows {
			pt.append(row)
		}
		pt.render()
		return
	}

	t := newTable(p.Out)
	header := make(table.Row, len(headers))
	for i, h := range headers {
		header[i] = text.FgHiCyan.Sprint(h)
	}
	t.AppendHeader(header)
	for _, row := range rows {
		r := make(table.Row, len(row))
		for i, cell := range row {
			r[i] = cell
		}
		t.AppendRow(r)
	}
	t.Render()
}

// KeyValues renders a two column panel with an optional title.
func (p *Printer) KeyValues(title string, pairs [][2]string) {
	t := newTable(p.Out)
	if title != "" {
		t.SetTitle(text.Bold.Sprint(title))
	}
	for _, kv := range pairs {
		t.AppendRow(table.Row{text.FgHiCyan.Sprint(kv[0]), kv[1]})
	}
	t.Render()
}

// Footer prints a dim line below a table, e.g. a total or a paging hint.
func (p *Printer) Footer(format string, args ...any) {
	if p.Quiet || p.NoHeaders {
		return
	}
	fmt.Fprintln(p.Out, text.FgHiBlack.Sprintf(format, args...))
}

// Success prints a success line.
func (p *Printer) Success(format string, args ...any) {
	if p.Quiet {
		return
	}
	fmt.Fprintln(p.messages(), FormatSuccess(fmt.Sprintf(format, args...)))
}

// Warn prints a warning line. Warnings are shown in quiet mode too.
func (p *Printer) Warn(format string, args ...any) {
	fmt.Fprintln(p.Err, FormatWarning(fmt.Sprintf(format, args...)))
}

// Info prints a neutral status line.
func (p *Printer) Info(format string, args ...any) {
	if p.Quiet {
		return
	}
	fmt.Fprintf(p.messages(), format+"\n", args...)
}

// Notice prints a status line that quiet mode does not suppress, such as a
// URL the operator has to open.
func (p *Printer) Notice(format string, args ...any) {
	fmt.Fprintf(p.messages(), format+"\n", args...)
}

// Hint prints an indented follow-up suggestion.
func (p *Printer) Hint(format string, args ...any) {
	if p.Quiet {
		return
	}
	fmt.Fprintln(p.messages(), "  "+text.FgHiBlack.Sprintf(format, args...))
}

func newTable(out io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.SetStyle(table.StyleRounded)
	return t
}

// FormatSuccess formats a success message.
func FormatSuccess(msg string) string {
	return text.FgGreen.Sprint("✓ ") + msg
}

// FormatWarning formats a warning message.
func FormatWarning(msg string) string {
	return text.FgYellow.Sprint("⚠ ") + msg
}

// StatusText colors a connection or session state for tables.
func StatusText(state string) string {
	switch strings.ToLower(state) {
	case "connected", "valid", "active":
		return text.FgGreen.Sprint(state)
	case "configured", "refreshable", "pending":
		return text.FgYellow.Sprint(state)
	case "expired", "disconnected", "failed":
		return text.FgRed.Sprint(state)
	default:
		return state
	}
}

// Truncate puts s on one line, collapsing runs of whitespace, and shortens
// it to limit runes marked with "...". Limits below 4 are raised to 4.
func Truncate(s string, limit int) string {
	if limit < 4 {
		limit = 4
	}
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit-3]) + "..."
}
