package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

// NewTokenizeCommand creates the tokenize command.
func NewTokenizeCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "tokenize [file]",
		Short: "Count tokens and bonds without storing anything",
		Long: `Dry-run the ingest pipeline: the server tokenizes the text and
reports the counts an ingest would produce, storing nothing.

Text is read from the file argument, or from stdin when the argument
is omitted or "-".`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readText(cmd, args)
			if err != nil {
				return err
			}

			client, err := opts.dial()
			if err != nil {
				return err
			}
			defer client.Close()

			resp, err := client.Tokenize(text)
			if err != nil {
				return err
			}
			return opts.emit(cmd.OutOrStdout(), resp, func(w io.Writer) {
				fmt.Fprintf(w, "tokens: %d  unique: %d  bonds: %d\n",
					resp.TokenCount, resp.UniqueCount, resp.BondCount)
			})
		},
	}
}
