package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

// NewRetrieveCommand creates the retrieve command.
func NewRetrieveCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "retrieve <doc-id>",
		Short: "Rebuild a document's text exactly",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := opts.dial()
			if err != nil {
				return err
			}
			defer client.Close()

			resp, err := client.Retrieve(args[0])
			if err != nil {
				return err
			}
			return opts.emit(cmd.OutOrStdout(), resp, func(w io.Writer) {
				fmt.Fprintln(w, resp.Text)
			})
		},
	}
}
