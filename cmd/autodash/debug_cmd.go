package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newHTTPLogCmd(c *cli) *cobra.Command {
	var last, clear bool
	cmd := &cobra.Command{
		Use:   "http-log",
		Short: "Show backend exchanges recorded with --trace-http",
		Long: `Show the backend requests recorded in this session. Recording is enabled with
--trace-http or trace_http in the configuration; it is most useful inside
"autodash shell". Credentials are masked.`,
		Args: cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			a := c.app
			if !a.cfg.TraceHTTP {
				fmt.Fprintln(a.out, a.theme.Muted.Render("HTTP tracing is off; start with --trace-http"))
				return nil
			}
			if clear {
				a.trace.ClearCapturedData()
				return nil
			}
			if last {
				if data := a.trace.GetCapturedData(); data != "" {
					fmt.Fprintln(a.out, data)
				}
				return nil
			}

			exchanges := a.trace.Exchanges()
			if len(exchanges) == 0 {
				fmt.Fprintln(a.out, a.theme.Muted.Render("No requests recorded"))
				return nil
			}
			for _, ex := range exchanges {
				status := fmt.Sprint(ex.StatusCode)
				style := a.theme.Success
				if ex.Error != "" {
					status, style = ex.Error, a.theme.Error
				} else if ex.StatusCode >= 400 {
					style = a.theme.Error
				}
				fmt.Fprintf(a.out, "%s %s %s %s\n",
					a.theme.Muted.Render(ex.Started.Local().Format("15:04:05")),
					ex.Method, ex.URL,
					style.Render(fmt.Sprintf("%s %dms", status, ex.DurationMS)))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&last, "last", false, "Print the latest exchange with headers and bodies")
	cmd.Flags().BoolVar(&clear, "clear", false, "Forget recorded exchanges")
	return cmd
}
