package cli

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/stockpile/internal/inventory"
)

// PurchaseOptions holds flags for the purchase command.
type PurchaseOptions struct {
	*RootOptions
	Timeout time.Duration
}

// NewPurchaseCommand creates the purchase command.
func NewPurchaseCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PurchaseOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "purchase <def>[:<qty>]...",
		Short: "Purchase items by definition",
		Long: `Start a purchase and wait for its completion callback.

Each argument is a definition id with an optional quantity (default 1).

Example:
  stockpile purchase 100:2 101`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPurchase(opts, args, cmd)
		},
	}

	cmd.Flags().DurationVar(&opts.Timeout, "timeout", 30*time.Second, "how long to wait for the completion")

	return cmd
}

func runPurchase(opts *PurchaseOptions, args []string, cmd *cobra.Command) error {
	out := newFormatter(opts.RootOptions, cmd)

	items, err := parsePurchaseLines(args)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid purchase", err)
	}

	a, err := openApp(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := signalContext(cmd)
	defer cancel()
	if opts.Timeout > 0 {
		var stop context.CancelFunc
		ctx, stop = context.WithTimeout(ctx, opts.Timeout)
		defer stop()
	}

	outcome, err := a.engine.Purchase(ctx, items)
	if err != nil {
		return failure(out, ExitFailure, "purchase failed", err)
	}
	a.logger.Info("purchase completed", "order_id", outcome.OrderID, "trans_id", outcome.TransID)

	return out.Emit(outcome, func(w io.Writer) {
		fmt.Fprintf(w, "Order %d (transaction %d)\n", outcome.OrderID, outcome.TransID)
	})
}

// parsePurchaseLines parses "def" and "def:qty" arguments.
func parsePurchaseLines(args []string) ([]inventory.PurchaseItem, error) {
	items := make([]inventory.PurchaseItem, 0, len(args))
	for _, arg := range args {
		defPart, qtyPart, hasQty := strings.Cut(arg, ":")

		def, err := strconv.ParseInt(defPart, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("%q: invalid definition", arg)
		}

		qty := uint64(1)
		if hasQty {
			qty, err = strconv.ParseUint(qtyPart, 10, 32)
			if err != nil || qty == 0 {
				return nil, fmt.Errorf("%q: quantity must be a positive integer", arg)
			}
		}

		items = append(items, inventory.PurchaseItem{
			Definition: inventory.ItemDef(def),
			Quantity:   uint32(qty),
		})
	}
	return items, nil
}
