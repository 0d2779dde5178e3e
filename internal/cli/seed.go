package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/stockpile/internal/catalog"
)

// NewSeedCommand creates the seed command.
func NewSeedCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "seed <catalog.cue>",
		Short: "Load item definitions and grants from a CUE catalog",
		Long: `Compile a CUE catalog and write it to the database.

Definitions are upserted, so seeding the same catalog twice updates names
and prices. Grants always create new item instances.

Example:
  stockpile seed --db ./stockpile.db ./catalog.cue`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeed(rootOpts, args[0], cmd)
		},
	}
}

func runSeed(opts *RootOptions, path string, cmd *cobra.Command) error {
	out := newFormatter(opts, cmd)

	cat, err := catalog.LoadFile(path)
	if err != nil {
		var cerr *catalog.CompileError
		if errors.As(err, &cerr) && opts.Format == "json" {
			_ = out.Error("CATALOG", cerr.Message, map[string]string{"field": cerr.Field})
			exitErr := WrapExitError(ExitCommandError, "invalid catalog", err)
			exitErr.Reported = true
			return exitErr
		}
		return failure(out, ExitCommandError, "invalid catalog", err)
	}

	_, logger, st, err := openStore(opts, cmd)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			logger.Error("error closing database", "error", closeErr)
		}
	}()

	res, err := catalog.Seed(commandContext(cmd), st, cat)
	if err != nil {
		return failure(out, ExitFailure, "seed failed", err)
	}
	logger.Info("catalog seeded", "path", path, "definitions", res.Definitions, "granted", res.Granted)

	return out.Emit(res, func(w io.Writer) {
		fmt.Fprintf(w, "Seeded %d definitions, granted %d items\n", res.Definitions, res.Granted)
	})
}
