package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

// NewHealthCommand creates the health command.
func NewHealthCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Report server health and vocabulary statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := opts.dial()
			if err != nil {
				return err
			}
			defer client.Close()

			resp, err := client.Health()
			if err != nil {
				return err
			}
			return opts.emit(cmd.OutOrStdout(), resp, func(w io.Writer) {
				fmt.Fprintf(w, "status: %s\n", resp.Status)
				fmt.Fprintf(w, "words: %d  var labels: %d  surface chars: %d\n",
					resp.WordCount, resp.LabelCount, resp.CharCount)
			})
		},
	}
}
