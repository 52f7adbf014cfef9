package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"strings"
)

// Command is one CLI subcommand.
type Command struct {
	Name        string
	Description string
	Usage       string
	Examples    []string
	// Offline commands run without loading configuration or services.
	Offline bool
	Run     func(ctx context.Context, e *env, args []string) error
}

// NewFlagSet creates a flag set that prints the command's usage on error.
func (c *Command) NewFlagSet(w io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(c.Name, flag.ContinueOnError)
	fs.SetOutput(w)
	fs.Usage = func() {
		c.PrintUsage(w)
		fmt.Fprintln(w, "\nFLAGS:")
		fs.PrintDefaults()
	}
	return fs
}

func (c *Command) PrintUsage(w io.Writer) {
	fmt.Fprintf(w, "%s\n\n", c.Description)
	fmt.Fprintf(w, "USAGE:\n    %s\n", c.Usage)
	if len(c.Examples) > 0 {
		fmt.Fprintf(w, "\nEXAMPLES:\n")
		for _, example := range c.Examples {
			fmt.Fprintf(w, "    %s\n", example)
		}
	}
}

// CommandRegistry dispatches to registered commands in registration order.
type CommandRegistry struct {
	commands map[string]*Command
	order    []string
}

func NewCommandRegistry() *CommandRegistry {
	return &CommandRegistry{commands: make(map[string]*Command)}
}

func (r *CommandRegistry) Register(cmd *Command) {
	if _, ok := r.commands[cmd.Name]; !ok {
		r.order = append(r.order, cmd.Name)
	}
	r.commands[cmd.Name] = cmd
}

// Execute runs the command named by args[0]. newEnv is called only for
// commands that need services.
func (r *CommandRegistry) Execute(ctx context.Context, args []string, out io.Writer, newEnv func() (*env, error)) error {
	if len(args) < 1 {
		r.PrintHelp(out)
		return fmt.Errorf("no command specified")
	}

	switch args[0] {
	case "help", "-h", "--help":
		if len(args) > 1 {
			if cmd, ok := r.commands[args[1]]; ok {
				cmd.PrintUsage(out)
				return nil
			}
		}
		r.PrintHelp(out)
		return nil
	}

	cmd, ok := r.commands[args[0]]
	if !ok {
		r.PrintHelp(out)
		return fmt.Errorf("unknown command: %s", args[0])
	}

	e := &env{out: out}
	if !cmd.Offline {
		var err error
		if e, err = newEnv(); err != nil {
			return err
		}
		defer e.Close()
	}
	return cmd.Run(ctx, e, args[1:])
}

func (r *CommandRegistry) PrintHelp(w io.Writer) {
	fmt.Fprintln(w, "neoflow - document OCR pipeline client")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "USAGE:")
	fmt.Fprintln(w, "    neoflow <command> [flags] [arguments]")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "COMMANDS:")
	for _, name := range r.order {
		fmt.Fprintf(w, "    %-12s %s\n", name, r.commands[name].Description)
	}
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Run 'neoflow help <command>' for more information on a command.")
}

// TableWriter renders left-aligned columns separated by two spaces.
type TableWriter struct {
	headers []string
	rows    [][]string
	widths  []int
}

func NewTableWriter(headers ...string) *TableWriter {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = displayWidth(h)
	}
	return &TableWriter{headers: headers, widths: widths}
}

func (t *TableWriter) AddRow(row ...string) {
	t.rows = append(t.rows, row)
	for i, cell := range row {
		if i < len(t.widths) && displayWidth(cell) > t.widths[i] {
			t.widths[i] = displayWidth(cell)
		}
	}
}

func (t *TableWriter) Render(w io.Writer) {
	t.renderRow(w, t.headers)
	for _, row := range t.rows {
		t.renderRow(w, row)
	}
}

func (t *TableWriter) renderRow(w io.Writer, row []string) {
	var b strings.Builder
	for i, cell := range row {
		if i >= len(t.widths) {
			break
		}
		b.WriteString(cell)
		if i < len(row)-1 {
			b.WriteString(strings.Repeat(" ", t.widths[i]-displayWidth(cell)+2))
		}
	}
	fmt.Fprintln(w, b.String())
}

// displayWidth counts CJK runes as two columns.
func displayWidth(s string) int {
	n := 0
	for _, r := range s {
		if r >= 0x2E80 {
			n += 2
		} else {
			n++
		}
	}
	return n
}
