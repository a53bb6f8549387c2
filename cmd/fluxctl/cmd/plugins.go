package cmd

import (
	"fmt"
	"net/url"

	"github.com/spf13/cobra"

	"github.com/fluxfullcircle/fluxdna/pkg/protocol"
)

func newPluginCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plugin",
		Short: "Activate or deactivate a plugin",
	}

	cmd.AddCommand(newPluginLifecycleCmd("activate", "Fire the plugin's activation hook"))
	cmd.AddCommand(newPluginLifecycleCmd("deactivate", "Fire the plugin's deactivation hook"))

	return cmd
}

func newPluginLifecycleCmd(action, short string) *cobra.Command {
	return &cobra.Command{
		Use:   action + " [name]",
		Short: short,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := "flux-dna"
			if len(args) == 1 {
				name = args[0]
			}
			var resp protocol.ActivationResponse
			if err := apiPost("/api/v1/plugins/"+url.PathEscape(name)+"/"+action, nil, &resp); err != nil {
				return err
			}
			state := "inactive"
			if resp.Active {
				state = "active"
			}
			fmt.Printf("%s is %s\n", resp.Plugin, state)
			return nil
		},
	}
}
