package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

// NewBondsCommand creates the bonds command.
func NewBondsCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "bonds <doc-id> <token>",
		Short: "List a token's bond partners, strongest first",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := opts.dial()
			if err != nil {
				return err
			}
			defer client.Close()

			resp, err := client.Bonds(args[0], args[1])
			if err != nil {
				return err
			}
			return opts.emit(cmd.OutOrStdout(), resp, func(w io.Writer) {
				if len(resp.Bonds) == 0 {
					fmt.Fprintf(w, "%s has no bonds in %s\n", args[1], args[0])
					return
				}
				tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "TOKEN\tSURFACE\tCOUNT")
				for _, b := range resp.Bonds {
					fmt.Fprintf(tw, "%d\t%s\t%d\n", b.Token, b.Surface, b.Count)
				}
				tw.Flush()
			})
		},
	}
}
