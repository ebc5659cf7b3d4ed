package cli

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"
)

// NewInfoCommand creates the info command.
func NewInfoCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "info <doc-id>",
		Short: "Show structural diagnostics for a document",
		Long: `Report a document's structure: slot and bond counts, the
traversability of its bond graph, stored metadata, ingest provenance,
and any template variables without a metadata binding.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := opts.dial()
			if err != nil {
				return err
			}
			defer client.Close()

			resp, err := client.Info(args[0])
			if err != nil {
				return err
			}
			return opts.emit(cmd.OutOrStdout(), resp, func(w io.Writer) {
				d := resp.Detail
				fmt.Fprintf(w, "%s  (%s)\n", d.Name, d.DocID)
				fmt.Fprintf(w, "  century:  %s\n", d.Century)
				fmt.Fprintf(w, "  slots:    %d  tokens: %d  unique: %d\n", d.TotalSlots, d.TokenCount, d.UniqueCount)
				fmt.Fprintf(w, "  starters: %d  bonds: %d\n", d.StarterCount, d.BondCount)

				if d.Eulerian.PathExists {
					fmt.Fprintf(w, "  path:     %s", d.Eulerian.Kind)
					if d.Eulerian.Start != "" {
						fmt.Fprintf(w, " (%s -> %s)", d.Eulerian.Start, d.Eulerian.End)
					}
					fmt.Fprintln(w)
				} else {
					fmt.Fprintf(w, "  path:     none")
					if len(d.Eulerian.Imbalanced) > 0 {
						fmt.Fprintf(w, " (imbalanced: %s)", strings.Join(d.Eulerian.Imbalanced, ", "))
					}
					fmt.Fprintln(w)
				}

				if len(resp.Metadata) > 0 {
					keys := make([]string, 0, len(resp.Metadata))
					for k := range resp.Metadata {
						keys = append(keys, k)
					}
					sort.Strings(keys)
					fmt.Fprintln(w, "metadata:")
					for _, k := range keys {
						fmt.Fprintf(w, "  %s = %s\n", k, resp.Metadata[k])
					}
				}
				if len(resp.UnresolvedVars) > 0 {
					fmt.Fprintf(w, "unresolved vars: %s\n", strings.Join(resp.UnresolvedVars, ", "))
				}

				p := resp.Provenance
				fmt.Fprintf(w, "ingested %s, %d chars, codec %s, tokenizer %s\n",
					p.IngestedAt, p.SourceChars, p.Codec, p.Tokenizer)
			})
		},
	}
}
