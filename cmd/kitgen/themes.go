package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"partykit/internal/domain/catalog"
)

func newThemesCmd() *cobra.Command {
	var verbose bool
	cmd := &cobra.Command{
		Use:   "themes",
		Short: "List the preset party themes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for _, t := range catalog.Default().Themes() {
				if verbose {
					fmt.Fprintf(tw, "%s\t%s %s %s\t%s\n", t.Name, t.Primary, t.Secondary, t.Accent, t.Prompt)
					continue
				}
				fmt.Fprintln(tw, t.Name)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "show colors and prompts")
	return cmd
}
