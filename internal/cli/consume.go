package cli

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/roach88/stockpile/internal/inventory"
)

// ConsumeResult reports a successful consume.
type ConsumeResult struct {
	InstanceID inventory.ItemInstanceID `json:"instance_id"`
	Consumed   uint32                   `json:"consumed"`
}

// NewConsumeCommand creates the consume command.
func NewConsumeCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "consume <instance> <quantity>",
		Short: "Consume some quantity of an item instance",
		Long: `Consume quantity units of an item instance.

An instance consumed down to zero is removed from the inventory.

Example:
  stockpile consume 3 1`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConsume(rootOpts, args[0], args[1], cmd)
		},
	}
}

func runConsume(opts *RootOptions, instanceArg, quantityArg string, cmd *cobra.Command) error {
	out := newFormatter(opts, cmd)

	id, err := strconv.ParseUint(instanceArg, 10, 64)
	if err != nil {
		return NewExitError(ExitCommandError, fmt.Sprintf("invalid instance id %q", instanceArg))
	}
	qty, err := strconv.ParseUint(quantityArg, 10, 32)
	if err != nil {
		return NewExitError(ExitCommandError, fmt.Sprintf("invalid quantity %q", quantityArg))
	}

	a, err := openApp(opts, cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := signalContext(cmd)
	defer cancel()

	res := ConsumeResult{InstanceID: inventory.ItemInstanceID(id), Consumed: uint32(qty)}
	if err := a.engine.ConsumeItem(ctx, res.InstanceID, res.Consumed); err != nil {
		return failure(out, ExitFailure, "consume failed", err)
	}

	return out.Emit(res, func(w io.Writer) {
		fmt.Fprintf(w, "Consumed %d of item %d\n", res.Consumed, res.InstanceID)
	})
}
