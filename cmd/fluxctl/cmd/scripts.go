package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/fluxfullcircle/fluxdna/internal/scripting"
	"github.com/fluxfullcircle/fluxdna/pkg/protocol"
)

func newScriptsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scripts",
		Short: "Manage Lua extension scripts",
	}

	cmd.AddCommand(newScriptsListCmd())
	cmd.AddCommand(newScriptsSignCmd())

	// Default to list when no subcommand given.
	cmd.RunE = newScriptsListCmd().RunE

	return cmd
}

func newScriptsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List loaded scripts",
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp protocol.ScriptsResponse
			if err := apiGet("/api/v1/scripts", &resp); err != nil {
				return err
			}
			if len(resp.Scripts) == 0 {
				fmt.Println("No scripts loaded.")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tBINDINGS\tEVENTS\tCALLS\tERRORS\tLOADED AT")
			for _, s := range resp.Scripts {
				fmt.Fprintf(w, "%s\t%d\t%s\t%d\t%d\t%s\n",
					s.Name, s.Bindings,
					strings.Join(s.Events, ", "),
					s.Calls, s.Errors,
					s.LoadedAt.Format("15:04:05"),
				)
			}
			return w.Flush()
		},
	}
}

func newScriptsSignCmd() *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "sign",
		Short: "Generate the SHA256 manifest for script files",
		Long: `Hashes every .lua file in the script directory and writes a
scripts.sha256 manifest. fluxdnad checks it when scripts.verify_integrity is
enabled.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if dir == "" {
				homeDir, _ := os.UserHomeDir()
				dir = filepath.Join(homeDir, ".config", "fluxdna", "scripts")
			}

			m, err := scripting.GenerateManifest(dir)
			if err != nil {
				return fmt.Errorf("generate manifest: %w", err)
			}
			if err := m.WriteFile(dir); err != nil {
				return fmt.Errorf("write manifest: %w", err)
			}

			fmt.Printf("Signed %d script(s) in %s\n", m.Len(), dir)
			_, err = m.WriteTo(os.Stdout)
			return err
		},
	}

	cmd.Flags().StringVar(&dir, "dir", "", "script directory (default: ~/.config/fluxdna/scripts)")
	return cmd
}
