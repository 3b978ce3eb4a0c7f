package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/odyssey-erp/p2p/internal/docid"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Format     string
	PrefixFile string
	LedgerDir  string
	RedisAddr  string
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the operator CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "p2pctl",
		Short: "Operator tooling for the procure-to-pay command service",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.PrefixFile, "prefix-file", os.Getenv("DOCUMENT_PREFIX_FILE"), "document prefix table (YAML)")
	cmd.PersistentFlags().StringVar(&opts.LedgerDir, "ledger-dir", envOr("LEDGER_DIR", "data"), "document ledger directory")
	cmd.PersistentFlags().StringVar(&opts.RedisAddr, "redis", envOr("REDIS_ADDR", "127.0.0.1:6379"), "redis address for job commands")

	cmd.AddCommand(NewParseCommand(opts))
	cmd.AddCommand(NewIdentifyCommand(opts))
	cmd.AddCommand(NewClassifyCommand(opts))
	cmd.AddCommand(NewPOStatusCommand(opts))
	cmd.AddCommand(NewPOListCommand(opts))
	cmd.AddCommand(NewLedgerCommand(opts))
	cmd.AddCommand(NewJobsCommand(opts))

	return cmd
}

func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func (o *RootOptions) identifier() (*docid.Identifier, error) {
	table, err := docid.NewLoader(o.PrefixFile).Load()
	if err != nil {
		return nil, err
	}
	return docid.NewIdentifier(table), nil
}

// emit writes v as indented JSON, or calls text for the text format.
func (o *RootOptions) emit(w io.Writer, v any, text func(io.Writer)) error {
	if o.Format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	text(w)
	return nil
}
