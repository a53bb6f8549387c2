package cmd

import (
	"fmt"
	"net/url"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/fluxfullcircle/fluxdna/pkg/protocol"
)

func newHooksCmd() *cobra.Command {
	var event string

	cmd := &cobra.Command{
		Use:   "hooks",
		Short: "List installed actions and filters in dispatch order",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "/api/v1/hooks"
			if event != "" {
				path += "?event=" + url.QueryEscape(event)
			}
			var resp protocol.HooksResponse
			if err := apiGet(path, &resp); err != nil {
				return err
			}
			if len(resp.Hooks) == 0 {
				fmt.Println("No hooks installed.")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "KIND\tEVENT\tPRIORITY\tARITY\tID")
			for _, h := range resp.Hooks {
				fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\n", h.Kind, h.Event, h.Priority, h.Arity, h.ID)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&event, "event", "", "only show bindings for this event")
	return cmd
}
