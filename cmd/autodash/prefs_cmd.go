package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"autodash/internal/dashboard"
	"autodash/internal/services"
)

func newPrefsCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prefs",
		Short: "Show or change display preferences",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			c.app.printPrefs()
			return nil
		},
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:       "view <grid|list>",
			Short:     "Choose how charts are listed",
			ValidArgs: []string{services.ViewGrid, services.ViewList},
			Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
			RunE: func(_ *cobra.Command, args []string) error {
				if err := c.app.prefs.SetViewMode(args[0]); err != nil {
					return err
				}
				c.app.printPrefs()
				return nil
			},
		},
		&cobra.Command{
			Use:       "chat <on|off>",
			Short:     "Show or hide the chat transcript",
			ValidArgs: []string{"on", "off"},
			Args:      cobra.ExactArgs(1),
			RunE: func(_ *cobra.Command, args []string) error {
				visible, err := parseToggle(args[0])
				if err != nil {
					return err
				}
				if err := c.app.prefs.SetChatVisible(visible); err != nil {
					return err
				}
				c.app.printPrefs()
				return nil
			},
		},
		&cobra.Command{
			Use:   "dismiss-banner",
			Short: "Hide the error banner for this session",
			Args:  cobra.NoArgs,
			RunE: func(_ *cobra.Command, _ []string) error {
				if err := c.app.prefs.DismissBanner(); err != nil {
					return err
				}
				return c.withDashboard(func(_ *app, d *dashboard.Dashboard) error {
					d.DismissBanner()
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "reset",
			Short: "Restore the default preferences",
			Args:  cobra.NoArgs,
			RunE: func(_ *cobra.Command, _ []string) error {
				if err := c.app.prefs.Reset(); err != nil {
					return err
				}
				c.app.printPrefs()
				return nil
			},
		},
	)
	return cmd
}

func parseToggle(s string) (bool, error) {
	switch s {
	case "on", "show":
		return true, nil
	case "off", "hide":
		return false, nil
	}
	v, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("expected on or off, got %q", s)
	}
	return v, nil
}

func (a *app) printPrefs() {
	chat := "on"
	if !a.prefs.ChatVisible() {
		chat = "off"
	}
	fmt.Fprintf(a.out, "%s %s\n", a.theme.Title.Render("view"), a.prefs.ViewMode())
	fmt.Fprintf(a.out, "%s %s\n", a.theme.Title.Render("chat"), chat)
	fmt.Fprintf(a.out, "%s %t\n", a.theme.Title.Render("banner dismissed"), a.prefs.BannerDismissed())
}
