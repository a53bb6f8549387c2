package cmd

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/fluxfullcircle/fluxdna/pkg/protocol"
)

func newContentCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "content",
		Short: "List registered post types and their taxonomies",
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp protocol.ContentResponse
			if err := apiGet("/api/v1/content", &resp); err != nil {
				return err
			}
			if len(resp.PostTypes) == 0 {
				fmt.Println("No post types registered.")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tLABEL\tSLUG\tMENU\tARCHIVE\tTAXONOMIES")
			for _, pt := range resp.PostTypes {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%v\t%s\n",
					pt.Name, pt.Label, pt.Slug, pt.MenuPosition, pt.HasArchive,
					strings.Join(pt.Taxonomies, ", "),
				)
			}
			return w.Flush()
		},
	}
}

func newPagesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pages",
		Short: "List the settings pages and which tracking fields are set",
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp protocol.OptionsPagesResponse
			if err := apiGet("/api/v1/options/pages", &resp); err != nil {
				return err
			}
			for _, p := range resp.Pages {
				slug := p.Slug
				if slug == "" {
					slug = "under " + p.Parent
				}
				fmt.Printf("%s (%s)\n", p.Title, slug)
				for _, f := range p.Fields {
					state := "unset"
					if f.Set {
						state = "set"
					}
					fmt.Printf("  %-20s %s\n", f.Key, state)
				}
			}
			return nil
		},
	}
}
