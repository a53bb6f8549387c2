package cmd

import (
	"github.com/spf13/cobra"

	"github.com/fluxfullcircle/fluxdna/pkg/sockpath"
)

var (
	socketPath string

	// Version is set by the main package via ldflags.
	Version = "dev"
)

// NewRootCmd creates the root fluxctl command.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "fluxctl",
		Short:        "fluxctl controls the fluxdnad site runtime",
		Version:      Version,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&socketPath, "socket", sockpath.DefaultSocketPath(), "fluxdnad Unix socket path")

	rootCmd.AddCommand(newStatusCmd())
	rootCmd.AddCommand(newHooksCmd())
	rootCmd.AddCommand(newContentCmd())
	rootCmd.AddCommand(newPagesCmd())
	rootCmd.AddCommand(newRenderCmd())
	rootCmd.AddCommand(newPluginCmd())
	rootCmd.AddCommand(newScriptsCmd())
	rootCmd.AddCommand(newSecretsCmd())

	return rootCmd
}
