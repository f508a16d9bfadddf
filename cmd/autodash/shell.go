package main

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"autodash/internal/logger"
	"autodash/internal/services"
)

const shellPrompt = "{{color:title}}autodash{{/color}}{{color:muted}}>{{/color}} "

// chartCommands take a chart reference as their first argument.
var chartCommands = []string{"render", "edit-kpi", "delete", "rm", "filter", "notes", "insights"}

func newShellCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "Start an interactive session",
		Long: `Start an interactive session. Every autodash command can be typed without the
"autodash" prefix; Tab completes commands, chart IDs and palette names.
Session preferences such as a dismissed banner last until exit.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.runShell(cmd)
		},
	}
}

func (c *cli) runShell(parent *cobra.Command) error {
	a := c.app
	c.registerCompletions(a.completer, parent.Root())

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          a.prompt.ProcessColorMarkup(shellPrompt),
		HistoryFile:     filepath.Join(a.cfg.StateDir, "history"),
		AutoComplete:    a.completer,
		Painter:         a.prompt.CreateCommandHighlighter(a.completer.Commands),
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
		Stdout:          c.out,
		Stderr:          c.err,
	})
	if err != nil {
		return fmt.Errorf("failed to start shell: %w", err)
	}
	defer func() {
		if err := rl.Close(); err != nil {
			logger.Debug("Failed to close readline", "error", err)
		}
	}()

	ctx := parent.Context()
	fmt.Fprintln(c.out, a.prompt.ProcessColorMarkup("{{color:muted}}Type help for commands, exit to quit.{{/color}}"))
	for {
		line, err := rl.Readline()
		switch {
		case errors.Is(err, readline.ErrInterrupt):
			if line == "" {
				return nil
			}
			continue
		case errors.Is(err, io.EOF):
			return nil
		case err != nil:
			return err
		}
		if ctx.Err() != nil {
			return nil
		}

		args, err := splitLine(line)
		if err != nil {
			fmt.Fprintln(c.err, a.theme.Error.Render("Error: "+err.Error()))
			continue
		}
		if len(args) == 0 {
			continue
		}
		switch args[0] {
		case "exit", "quit":
			return nil
		case "shell":
			continue
		}

		root := newRootCmd(c)
		root.SetArgs(args)
		if err := root.ExecuteContext(ctx); err != nil {
			fmt.Fprintln(c.err, a.theme.Error.Render("Error: "+err.Error()))
		}
	}
}

// registerCompletions teaches the completer every subcommand of root.
func (c *cli) registerCompletions(completer *services.AutoCompleteService, root *cobra.Command) {
	a := c.app
	chartRef := func(args []string) []string {
		if len(args) == 0 {
			return a.chartRefs()
		}
		return nil
	}
	for _, sub := range root.Commands() {
		if sub.Hidden || sub.Name() == "shell" || sub.Name() == "help" || sub.Name() == "completion" {
			continue
		}
		var src services.CompletionSource
		if len(sub.Commands()) > 0 {
			names := make([]string, 0, len(sub.Commands()))
			for _, child := range sub.Commands() {
				names = append(names, child.Name())
			}
			src = firstArg(names)
		} else if len(sub.ValidArgs) > 0 {
			src = firstArg(sub.ValidArgs)
		}
		for _, name := range append([]string{sub.Name()}, sub.Aliases...) {
			completer.SetCommand(name, src)
		}
	}
	for _, name := range chartCommands {
		completer.SetCommand(name, chartRef)
	}
	completer.SetCommand("colors", firstArg(a.palettes.Names()))
	completer.SetCommand("exit", nil)
	completer.SetCommand("quit", nil)
}

func firstArg(values []string) services.CompletionSource {
	return func(args []string) []string {
		if len(args) == 0 {
			return values
		}
		return nil
	}
}

// splitLine splits a shell line into arguments, honouring single and double
// quotes and backslash escapes.
func splitLine(line string) ([]string, error) {
	var args []string
	var cur strings.Builder
	var quote rune
	inArg, escaped := false, false

	for _, r := range line {
		switch {
		case escaped:
			cur.WriteRune(r)
			escaped = false
		case r == '\\' && quote != '\'':
			escaped, inArg = true, true
		case quote != 0:
			if r == quote {
				quote = 0
			} else {
				cur.WriteRune(r)
			}
		case r == '"' || r == '\'':
			quote, inArg = r, true
		case r == ' ' || r == '\t':
			if inArg {
				args = append(args, cur.String())
				cur.Reset()
				inArg = false
			}
		default:
			cur.WriteRune(r)
			inArg = true
		}
	}
	if quote != 0 {
		return nil, fmt.Errorf("unterminated %c quote", quote)
	}
	if escaped {
		cur.WriteRune('\\')
	}
	if inArg {
		args = append(args, cur.String())
	}
	return args, nil
}
