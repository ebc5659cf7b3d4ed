package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
)

// MetaOptions holds flags for the meta command.
type MetaOptions struct {
	*RootOptions

	Set    []string
	Remove []string
}

// NewMetaCommand creates the meta command.
func NewMetaCommand(root *RootOptions) *cobra.Command {
	opts := &MetaOptions{RootOptions: root}

	cmd := &cobra.Command{
		Use:   "meta <doc-id>",
		Short: "Set or remove metadata fields on a document",
		Long: `Apply metadata changes to a document. Sets run before removals,
so removing and setting the same key in one call deletes the key.

Examples:
  lexvault meta 19/3/1 --set author="Mary Shelley" --set prey=mouse
  lexvault meta 19/3/1 --remove prey`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(opts.Set) == 0 && len(opts.Remove) == 0 {
				return fmt.Errorf("nothing to do: pass --set and/or --remove")
			}

			set := make(map[string]string, len(opts.Set))
			for _, pair := range opts.Set {
				key, value, ok := strings.Cut(pair, "=")
				if !ok {
					return fmt.Errorf("invalid --set %q: want key=value", pair)
				}
				set[key] = value
			}

			client, err := opts.dial()
			if err != nil {
				return err
			}
			defer client.Close()

			resp, err := client.UpdateMeta(args[0], set, opts.Remove)
			if err != nil {
				return err
			}
			return opts.emit(cmd.OutOrStdout(), resp, func(w io.Writer) {
				fmt.Fprintf(w, "set: %d  removed: %d\n", resp.FieldsSet, resp.FieldsRemoved)
			})
		},
	}

	cmd.Flags().StringArrayVar(&opts.Set, "set", nil, "field to set, as key=value (repeatable)")
	cmd.Flags().StringArrayVar(&opts.Remove, "remove", nil, "field to remove (repeatable)")
	return cmd
}
