package cli

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/stockpile/internal/callresult"
	"github.com/roach88/stockpile/internal/config"
	"github.com/roach88/stockpile/internal/inventory"
	"github.com/roach88/stockpile/internal/sim"
	"github.com/roach88/stockpile/internal/store"
)

// app is the object graph behind the inventory commands:
// store -> sim subsystem -> dispatcher -> engine.
type app struct {
	cfg    config.Config
	logger *slog.Logger
	store  *store.Store
	calls  *callresult.Dispatcher
	sim    *sim.Subsystem
	engine *inventory.Engine
}

// openStore loads config and opens the database.
func openStore(opts *RootOptions, cmd *cobra.Command) (config.Config, *slog.Logger, *store.Store, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return config.Config{}, nil, nil, err
	}
	logger := newLogger(cfg, cmd.ErrOrStderr())

	logger.Debug("opening database", "path", cfg.Database)
	st, err := store.Open(cfg.Database)
	if err != nil {
		return config.Config{}, nil, nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	return cfg, logger, st, nil
}

func openApp(opts *RootOptions, cmd *cobra.Command) (*app, error) {
	cfg, logger, st, err := openStore(opts, cmd)
	if err != nil {
		return nil, err
	}

	calls := callresult.NewDispatcher(logger)

	simOpts := []sim.Option{
		sim.WithLogger(logger),
		sim.WithReadyAfter(cfg.Sim.ReadyAfter),
		sim.WithLatency(cfg.Sim.Latency),
	}
	if cfg.Sim.RegistrationWait > 0 {
		simOpts = append(simOpts, sim.WithRegistrationWait(cfg.Sim.RegistrationWait))
	}
	sys, err := sim.New(st, calls, simOpts...)
	if err != nil {
		st.Close()
		return nil, WrapExitError(ExitCommandError, "failed to start subsystem", err)
	}

	eng, err := inventory.New(sys, calls,
		inventory.WithLogger(logger),
		inventory.WithPollAttempts(cfg.Engine.PollAttempts),
		inventory.WithPollInterval(cfg.Engine.PollInterval),
	)
	if err != nil {
		sys.Close()
		st.Close()
		return nil, WrapExitError(ExitCommandError, "failed to start engine", err)
	}

	return &app{
		cfg:    cfg,
		logger: logger,
		store:  st,
		calls:  calls,
		sim:    sys,
		engine: eng,
	}, nil
}

// Close releases leftover handles, drains in-flight purchases and closes
// the database, in that order.
func (a *app) Close() {
	released := a.engine.Close()
	a.sim.Close()
	failed := a.calls.FailAll()
	if released > 0 || failed > 0 {
		a.logger.Debug("runtime drained", "released", released, "failed_calls", failed)
	}
	if err := a.store.Close(); err != nil {
		a.logger.Error("error closing database", "error", err)
	}
}

// signalContext cancels on SIGINT or SIGTERM.
func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
}
