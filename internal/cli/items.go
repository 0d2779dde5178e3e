package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/stockpile/internal/inventory"
)

// NewItemsCommand creates the items command.
func NewItemsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "items",
		Short: "List every item in the inventory",
		Long: `Request a snapshot of all items, poll until it is ready, and print it.

Example:
  stockpile items --db ./stockpile.db
  stockpile items --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runItems(rootOpts, cmd)
		},
	}
}

func runItems(opts *RootOptions, cmd *cobra.Command) error {
	out := newFormatter(opts, cmd)

	a, err := openApp(opts, cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := signalContext(cmd)
	defer cancel()

	items, err := a.engine.GetAllItems(ctx)
	if err != nil {
		return failure(out, ExitFailure, "failed to list items", err)
	}
	if items == nil {
		items = []inventory.Item{}
	}

	return out.Emit(items, func(w io.Writer) {
		if len(items) == 0 {
			fmt.Fprintln(w, "No items.")
			return
		}
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "INSTANCE\tDEF\tQTY\tFLAGS")
		for _, it := range items {
			fmt.Fprintf(tw, "%d\t%d\t%d\t%#x\n", it.InstanceID, it.Definition, it.Quantity, it.Flags)
		}
		tw.Flush()
	})
}

// PriceRow is a price joined with its definition name.
type PriceRow struct {
	Definition inventory.ItemDef `json:"definition"`
	Name       string            `json:"name,omitempty"`
	Price      uint64            `json:"price"`
	BasePrice  uint64            `json:"base_price"`
}

// NewPricesCommand creates the prices command.
func NewPricesCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "prices",
		Short: "List current and base prices of purchasable items",
		Args:  cobra.NoArgs,
		Example: `  stockpile prices --db ./stockpile.db
  stockpile prices --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPrices(rootOpts, cmd)
		},
	}
}

func runPrices(opts *RootOptions, cmd *cobra.Command) error {
	out := newFormatter(opts, cmd)

	a, err := openApp(opts, cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := signalContext(cmd)
	defer cancel()

	prices, err := a.engine.GetItemPrices(ctx)
	if err != nil {
		return failure(out, ExitFailure, "failed to list prices", err)
	}

	names := make(map[int32]string)
	defs, err := a.store.ListDefinitions(ctx)
	if err != nil {
		a.logger.Warn("definition names unavailable", "error", err)
	}
	for _, d := range defs {
		names[d.Def] = d.Name
	}

	rows := make([]PriceRow, 0, len(prices))
	for _, p := range prices {
		rows = append(rows, PriceRow{
			Definition: p.Definition,
			Name:       names[int32(p.Definition)],
			Price:      p.Price,
			BasePrice:  p.BasePrice,
		})
	}

	return out.Emit(rows, func(w io.Writer) {
		if len(rows) == 0 {
			fmt.Fprintln(w, "No prices.")
			return
		}
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "DEF\tNAME\tPRICE\tBASE")
		for _, r := range rows {
			fmt.Fprintf(tw, "%d\t%s\t%d\t%d\n", r.Definition, r.Name, r.Price, r.BasePrice)
		}
		tw.Flush()
	})
}
