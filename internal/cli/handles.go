package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/stockpile/internal/store"
)

// NewHandlesCommand creates the handles command.
func NewHandlesCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "handles",
		Short: "List result handles that were never destroyed",
		Long: `List result handles recorded in the database without a matching destroy.

Every command releases the handles it obtains, so a non-empty list points
at a process that exited mid-query.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHandles(rootOpts, cmd)
		},
	}
}

func runHandles(opts *RootOptions, cmd *cobra.Command) error {
	out := newFormatter(opts, cmd)

	_, logger, st, err := openStore(opts, cmd)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			logger.Error("error closing database", "error", closeErr)
		}
	}()

	open, err := st.OpenHandles(commandContext(cmd))
	if err != nil {
		return failure(out, ExitFailure, "failed to list handles", err)
	}
	if open == nil {
		open = []store.HandleRecord{}
	}

	return out.Emit(open, func(w io.Writer) {
		if len(open) == 0 {
			fmt.Fprintln(w, "No open handles.")
			return
		}
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "HANDLE\tKIND\tSEQ")
		for _, h := range open {
			fmt.Fprintf(tw, "%d\t%s\t%d\n", h.Handle, h.Kind, h.Seq)
		}
		tw.Flush()
	})
}
