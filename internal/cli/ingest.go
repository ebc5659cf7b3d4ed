package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

// IngestOptions holds flags for the ingest command.
type IngestOptions struct {
	*RootOptions
	Century string
}

// NewIngestCommand creates the ingest command.
func NewIngestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &IngestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "ingest <name> [file]",
		Short: "Store a document and print its address",
		Long: `Store a document in the vault.

Text is read from the file argument, or from stdin when the argument
is omitted or "-".

Example:
  lexvault ingest fables/tortoise.txt corpus/tortoise.txt --century 19
  echo "the cat sat" | lexvault ingest scratch --century 21`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readText(cmd, args[1:])
			if err != nil {
				return err
			}

			client, err := opts.dial()
			if err != nil {
				return err
			}
			defer client.Close()

			resp, err := client.Ingest(args[0], opts.Century, text)
			if err != nil {
				return err
			}
			return opts.emit(cmd.OutOrStdout(), resp, func(w io.Writer) {
				fmt.Fprintf(w, "stored %s\n", resp.DocID)
				fmt.Fprintf(w, "tokens: %d  unique: %d  bonds: %d\n",
					resp.TokenCount, resp.UniqueCount, resp.BondCount)
			})
		},
	}

	cmd.Flags().StringVar(&opts.Century, "century", "", "century code partition key (required)")
	cmd.MarkFlagRequired("century")

	return cmd
}
