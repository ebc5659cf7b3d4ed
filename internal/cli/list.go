package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

// NewListCommand creates the list command.
func NewListCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List every stored document in address order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := opts.dial()
			if err != nil {
				return err
			}
			defer client.Close()

			resp, err := client.List()
			if err != nil {
				return err
			}
			return opts.emit(cmd.OutOrStdout(), resp, func(w io.Writer) {
				if resp.Count == 0 {
					fmt.Fprintln(w, "vault is empty")
					return
				}
				tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "DOC-ID\tNAME\tSTARTERS\tBONDS")
				for _, d := range resp.Documents {
					fmt.Fprintf(tw, "%s\t%s\t%d\t%d\n", d.DocID, d.Name, d.StarterCount, d.BondCount)
				}
				tw.Flush()
			})
		},
	}
}
