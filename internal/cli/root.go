// Package cli implements the lexvault command-line client. Every
// subcommand is a thin wrapper over one protocol operation; all parsing,
// validation, and storage logic lives server-side.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/lexvault/lexvault/internal/protocol"
)

// RootOptions holds global flags shared by all commands.
type RootOptions struct {
	Addr   string
	Format string // "text" | "json"
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the lexvault CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:          "lexvault",
		Short:        "Client for the LexVault document vault",
		Long:         "Ingest, retrieve, and inspect documents in a running LexVault server.",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.Addr, "addr", defaultAddr(), "vault server address")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewHealthCommand(opts))
	cmd.AddCommand(NewIngestCommand(opts))
	cmd.AddCommand(NewRetrieveCommand(opts))
	cmd.AddCommand(NewListCommand(opts))
	cmd.AddCommand(NewTokenizeCommand(opts))
	cmd.AddCommand(NewInfoCommand(opts))
	cmd.AddCommand(NewMetaCommand(opts))
	cmd.AddCommand(NewBondsCommand(opts))

	return cmd
}

func defaultAddr() string {
	if addr := os.Getenv("LEXVAULT_ADDR"); addr != "" {
		return addr
	}
	return "localhost:7420"
}

func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

// dial connects to the configured server.
func (o *RootOptions) dial() (*protocol.Client, error) {
	client, err := protocol.Dial(o.Addr)
	if err != nil {
		return nil, fmt.Errorf("connecting to vault at %s: %w", o.Addr, err)
	}
	return client, nil
}

// emit renders a response: indented JSON in json mode, the text func
// otherwise.
func (o *RootOptions) emit(out io.Writer, v any, text func(io.Writer)) error {
	if o.Format == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	text(out)
	return nil
}

// readText resolves the optional file argument: a path reads that file,
// "-" or no argument reads stdin.
func readText(cmd *cobra.Command, args []string) (string, error) {
	if len(args) == 0 || args[0] == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", fmt.Errorf("reading stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", args[0], err)
	}
	return string(data), nil
}
