package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/odyssey-erp/p2p/internal/command"
	"github.com/odyssey-erp/p2p/internal/failures"
)

// NewParseCommand shows how a free-text command is interpreted, without executing it.
func NewParseCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "parse <command...>",
		Short: "Interpret a free-text command",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			identifier, err := opts.identifier()
			if err != nil {
				return err
			}
			item := command.NewInterpreter(identifier).Parse(strings.Join(args, " "))
			if err := opts.emit(cmd.OutOrStdout(), item, func(w io.Writer) {
				fmt.Fprintf(w, "intent: %s\n", item.Intent)
				fmt.Fprintf(w, "normalized: %s\n", item.Command.Text)
				if item.Reference != nil {
					fmt.Fprintf(w, "reference: %s %s\n", item.Reference.Kind, item.Reference.ID)
				}
				for _, e := range item.Errors {
					fmt.Fprintf(w, "error [%s]: %s\n", e.Code, e.Message)
					if e.Example != "" {
						fmt.Fprintf(w, "  e.g. %s\n", e.Example)
					}
				}
			}); err != nil {
				return err
			}
			if !item.Valid() {
				return fmt.Errorf("command would be rejected")
			}
			return nil
		},
	}
}

// NewIdentifyCommand classifies document numbers by prefix.
func NewIdentifyCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "identify <id>...",
		Short: "Identify document numbers",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			identifier, err := opts.identifier()
			if err != nil {
				return err
			}
			for _, id := range args {
				res := identifier.Identify(id)
				if err := opts.emit(cmd.OutOrStdout(), res, func(w io.Writer) {
					label := res.Label
					if !res.IsValid {
						label = "not a recognised document number"
					}
					fmt.Fprintf(w, "%s\t%s\t%s\n", res.ID, res.Kind, label)
				}); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

// NewClassifyCommand renders raw automation output as a user-facing failure message.
func NewClassifyCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "classify [raw-output...]",
		Short: "Classify automation failure text (reads stdin when no args)",
		RunE: func(cmd *cobra.Command, args []string) error {
			raw := strings.Join(args, " ")
			if len(args) == 0 {
				data, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return err
				}
				raw = string(data)
			}
			msg := failures.Classify(raw)
			return opts.emit(cmd.OutOrStdout(), struct {
				failures.Message
				Category failures.Category `json:"category"`
			}{msg, msg.Category()}, func(w io.Writer) {
				fmt.Fprintf(w, "cause: %s (%s)\n", msg.Cause, msg.Category())
				if msg.Stage != "" {
					fmt.Fprintf(w, "stage: %s\n", msg.Stage)
				}
				fmt.Fprintln(w, msg.Text)
			})
		},
	}
}
