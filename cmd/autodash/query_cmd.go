package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"autodash/internal/dashboard"
	"autodash/pkg/dashtypes"
)

func newAskCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:     "ask <query>",
		Aliases: []string{"chat"},
		Short:   "Generate the dashboard, or ask about it once it has charts",
		Long: `The first query on a dataset generates the dashboard, streaming charts as
they are produced. Later queries are chat turns: the reply may carry code that
edits a chart, runs an analysis or adds a chart, which you apply with
"autodash run".`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := c.app
			d, err := a.openDashboard()
			if err != nil {
				return err
			}
			before := len(d.Messages())
			first := len(d.Charts()) == 0

			submitErr := d.Submit(cmd.Context(), strings.Join(args, " "))
			if errors.Is(submitErr, dashboard.ErrEmptyQuery) || errors.Is(submitErr, dashboard.ErrBusy) {
				return submitErr
			}
			if err := a.saveDashboard(d); err != nil {
				return err
			}

			a.printMessages(since(d.Messages(), before))
			a.printStatus(d)
			if submitErr == nil && first {
				a.printCharts(d)
				a.printExpected(d)
			}
			return submitErr
		},
	}
}

// since returns the messages appended after the first n.
func since(msgs []dashtypes.ChatMessage, n int) []dashtypes.ChatMessage {
	if n > len(msgs) {
		return nil
	}
	return msgs[n:]
}

func newRunCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "run [message-id]",
		Short: "Run the code attached to an assistant message (default: the latest)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := c.app
			d, err := a.openDashboard()
			if err != nil {
				return err
			}
			id, err := pickMessage(d, args, func(m dashtypes.ChatMessage) bool { return m.HasCode() })
			if err != nil {
				return err
			}

			before := len(d.Messages())
			res, runErr := d.ExecuteMessageCode(cmd.Context(), id)
			if err := a.saveDashboard(d); err != nil {
				return err
			}
			a.printMessages(since(d.Messages(), before))
			if runErr != nil {
				return runErr
			}
			if res.Diff != "" {
				fmt.Fprint(a.out, res.Diff)
			}
			if res.Chart != nil {
				fmt.Fprintln(a.out, a.chartLine(d, *res.Chart))
			}
			return nil
		},
	}
}

func newRetryCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "retry [message-id]",
		Short: "Retry a failed query (default: the latest failure)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := c.app
			d, err := a.openDashboard()
			if err != nil {
				return err
			}
			id, err := pickMessage(d, args, func(m dashtypes.ChatMessage) bool { return m.Failed && m.Retryable })
			if err != nil {
				return err
			}

			before := len(d.Messages())
			_, retryErr := d.Retry(cmd.Context(), id)
			if err := a.saveDashboard(d); err != nil {
				return err
			}
			a.printMessages(since(d.Messages(), before))
			a.printStatus(d)
			return retryErr
		},
	}
}

// pickMessage returns args[0], or the latest message matching want.
func pickMessage(d *dashboard.Dashboard, args []string, want func(dashtypes.ChatMessage) bool) (string, error) {
	if len(args) == 1 {
		return args[0], nil
	}
	msgs := d.Messages()
	for i := len(msgs) - 1; i >= 0; i-- {
		if want(msgs[i]) {
			return msgs[i].ID, nil
		}
	}
	return "", errors.New("no matching message in the transcript")
}
