package cli

import (
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"

	"github.com/odyssey-erp/p2p/internal/ledger"
)

// ErrLedgerUnhealthy is returned by "ledger verify" when malformed lines exist.
var ErrLedgerUnhealthy = errors.New("ledger has malformed lines")

// NewPOStatusCommand reports the workflow progress of purchase orders.
func NewPOStatusCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "po-status <poNumber>",
		Short: "Show workflow progress of a purchase order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ledger.NewStore(opts.LedgerDir)
			if err != nil {
				return err
			}
			progress, err := store.ProgressOf(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return opts.emit(cmd.OutOrStdout(), progress, func(w io.Writer) {
				fmt.Fprintf(w, "purchase order %s\n", progress.PONumber)
				fmt.Fprintf(w, "  created:        %s\n", yesNo(progress.POCreated))
				fmt.Fprintf(w, "  goods receipt:  %s\n", yesNo(progress.GoodsReceiptCompleted))
				invoice := yesNo(progress.InvoiceCreated)
				if progress.InvoiceNumber != "" {
					invoice += " (" + progress.InvoiceNumber + ")"
				}
				fmt.Fprintf(w, "  invoice:        %s\n", invoice)
				fmt.Fprintf(w, "  payment:        %s\n", yesNo(progress.PaymentCompleted))
				fmt.Fprintf(w, "  next step:      %s\n", progress.NextStep)
			})
		},
	}
}

// NewPOListCommand lists recorded purchase orders.
func NewPOListCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "po-list",
		Short: "List recorded purchase orders",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ledger.NewStore(opts.LedgerDir)
			if err != nil {
				return err
			}
			entries, err := store.ListPurchaseOrders(cmd.Context())
			if err != nil {
				return err
			}
			return opts.emit(cmd.OutOrStdout(), entries, func(w io.Writer) {
				if len(entries) == 0 {
					fmt.Fprintln(w, "no purchase orders recorded")
					return
				}
				for _, e := range entries {
					fmt.Fprintf(w, "%s\t%s\n", e.ID, e.CreatedAt.Format("2006-01-02 15:04:05"))
				}
			})
		},
	}
}

// NewLedgerCommand groups ledger maintenance commands.
func NewLedgerCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ledger",
		Short: "Inspect the document ledger",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "verify",
		Short: "Scan ledger files for malformed lines",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ledger.NewStore(opts.LedgerDir)
			if err != nil {
				return err
			}
			report, err := store.Verify(cmd.Context())
			if err != nil {
				return err
			}
			if err := opts.emit(cmd.OutOrStdout(), report, func(w io.Writer) {
				files := make([]string, 0, len(report.Rows))
				for name := range report.Rows {
					files = append(files, name)
				}
				sort.Strings(files)
				for _, name := range files {
					fmt.Fprintf(w, "%s\t%d rows\n", name, report.Rows[name])
				}
				for _, p := range report.Problems {
					fmt.Fprintf(w, "%s:%d: %s\n", p.File, p.Line, p.Reason)
				}
			}); err != nil {
				return err
			}
			if !report.Healthy() {
				return fmt.Errorf("%w: %d problem(s)", ErrLedgerUnhealthy, len(report.Problems))
			}
			return nil
		},
	})
	return cmd
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}
