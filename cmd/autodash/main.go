// Package main provides the AutoDash CLI application entry point.
// AutoDash turns an uploaded dataset into a dashboard of charts and KPI cards
// generated from natural-language queries.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"autodash/internal/config"
	"autodash/internal/logger"
	"autodash/internal/version"
)

// cli holds what every command invocation shares: the writers, the viper
// instance flags are bound to and, once bootstrapped, the app.
type cli struct {
	out io.Writer
	err io.Writer
	v   *viper.Viper
	app *app

	logLevel string
	logFile  string
	testMode bool
}

func newCLI(out, errOut io.Writer) *cli {
	return &cli{out: out, err: errOut, v: viper.New()}
}

// newRootCmd builds the command tree. The shell rebuilds it for every line so
// flag values never leak between lines.
func newRootCmd(c *cli) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "autodash",
		Short: "AutoDash - dashboards from natural-language queries",
		Long: `AutoDash uploads a dataset to the AutoDash backend and builds a dashboard of
charts and KPI cards from natural-language queries. The dashboard is kept in a
local workspace between invocations.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Annotations["bootstrap"] == "none" {
				return nil
			}
			return c.bootstrap()
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
	rootCmd.SetOut(c.out)
	rootCmd.SetErr(c.err)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&c.logLevel, "log-level", c.logLevel, "Set log level (debug|info|warn|error) [default: info]")
	flags.StringVar(&c.logFile, "log-file", c.logFile, "Write logs to file instead of stderr")
	flags.BoolVar(&c.testMode, "test-mode", c.testMode, "Run in deterministic test mode")
	flags.String("api-url", "", "Backend base URL")
	flags.String("token", "", "Session token")
	flags.String("timeout", "", "Per-request timeout (e.g. 90s)")
	flags.String("state-dir", "", "Directory for the workspace and preferences")
	flags.String("theme", "", "Display theme (default|dark|light|plain)")
	flags.String("color-theme", "", "Chart palette requested for new charts")
	flags.Bool("stream", true, "Stream the first dashboard as it is generated")
	flags.Bool("trace-http", false, "Record backend exchanges for http-log")
	flags.String("editor", "", "Editor for notes --edit [default: $VISUAL or $EDITOR]")

	for key, flag := range map[string]string{
		config.KeyAPIURL:       "api-url",
		config.KeySessionToken: "token",
		config.KeyTimeout:      "timeout",
		config.KeyStateDir:     "state-dir",
		config.KeyDisplayTheme: "theme",
		config.KeyColorTheme:   "color-theme",
		config.KeyStream:       "stream",
		config.KeyTraceHTTP:    "trace-http",
		config.KeyEditor:       "editor",
	} {
		if err := c.v.BindPFlag(key, flags.Lookup(flag)); err != nil {
			fmt.Fprintf(c.err, "Error binding %s flag: %v\n", flag, err)
			os.Exit(1)
		}
	}

	rootCmd.AddCommand(
		newUploadCmd(c),
		newSampleCmd(c),
		newPreviewCmd(c),
		newColumnsCmd(c),
		newAskCmd(c),
		newRunCmd(c),
		newRetryCmd(c),
		newChartsCmd(c),
		newRenderCmd(c),
		newAddChartCmd(c),
		newAddKPICmd(c),
		newEditKPICmd(c),
		newDeleteCmd(c),
		newUndoCmd(c),
		newRedoCmd(c),
		newFilterCmd(c),
		newNotesCmd(c),
		newInsightsCmd(c),
		newShareCmd(c),
		newColorsCmd(c),
		newExportCmd(c),
		newDashboardsCmd(c),
		newPrefsCmd(c),
		newHTTPLogCmd(c),
		newShellCmd(c),
		newVersionCmd(c),
	)
	return rootCmd
}

// bootstrap configures logging and builds the app once per process.
func (c *cli) bootstrap() error {
	if c.app != nil {
		return nil
	}
	if err := logger.Configure(c.logLevel, c.logFile, c.testMode); err != nil {
		return fmt.Errorf("failed to configure logger: %w", err)
	}

	loader := config.NewLoader()
	loader.Viper = c.v
	cfg, err := loader.Load()
	if err != nil {
		return err
	}

	a, err := newApp(cfg, c.out)
	if err != nil {
		return err
	}
	c.app = a
	return nil
}

func newVersionCmd(c *cli) *cobra.Command {
	var detailed bool
	cmd := &cobra.Command{
		Use:         "version",
		Short:       "Show version information",
		Annotations: map[string]string{"bootstrap": "none"},
		Args:        cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			if detailed {
				fmt.Fprintln(c.out, version.GetDetailedVersion())
				return nil
			}
			fmt.Fprintln(c.out, version.GetFormattedVersion())
			return nil
		},
	}
	cmd.Flags().BoolVar(&detailed, "detailed", false, "Include build details")
	return cmd
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c := newCLI(os.Stdout, os.Stderr)
	if err := newRootCmd(c).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}
