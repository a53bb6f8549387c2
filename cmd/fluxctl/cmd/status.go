package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fluxfullcircle/fluxdna/pkg/protocol"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show fluxdnad status",
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp protocol.StatusResponse
			if err := apiGet("/api/v1/status", &resp); err != nil {
				return err
			}

			fmt.Printf("Status:       %s\n", resp.Status)
			fmt.Printf("Plugin:       %s %s\n", resp.Plugin, resp.Version)
			fmt.Printf("Active:       %v\n", resp.Active)
			fmt.Printf("Uptime:       %s\n", resp.Uptime)
			fmt.Printf("NATS Running: %v\n", resp.NATSRunning)
			fmt.Printf("Started At:   %s\n", resp.StartedAt.Format("2006-01-02 15:04:05"))
			fmt.Printf("Hooks:        %d\n", resp.HookCount)
			fmt.Printf("Scripts:      %d\n", resp.ScriptCount)
			fmt.Printf("Options Rev:  %d\n", resp.OptionsRev)
			return nil
		},
	}
}
