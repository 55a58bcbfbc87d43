package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/domainreg/internal/config"
	"github.com/roach88/domainreg/internal/events"
	"github.com/roach88/domainreg/internal/ir"
	"github.com/roach88/domainreg/internal/registry"
	"github.com/roach88/domainreg/internal/store"
	"github.com/roach88/domainreg/internal/tracing"
)

// appOptions controls how a command assembles its registry.
type appOptions struct {
	// allowMemory permits an empty db setting. Only long-running commands
	// benefit from a memory backend; one-shot commands would lose every write.
	allowMemory bool

	// broker adds an in-process broker to the sink chain.
	broker bool

	// flags maps config keys to command flags that override them.
	flags map[string]string
}

// app is the wired registry for one command invocation.
type app struct {
	cfg      config.Config
	logger   *slog.Logger
	backend  store.Backend
	reg      *registry.Registry
	provider *tracing.Provider
	broker   *events.Broker[ir.Event]
	closers  []func() error
}

// openApp loads configuration and wires logging, storage, tracing and event
// sinks into a registry. The caller must call Close.
func openApp(cmd *cobra.Command, opts *RootOptions, ao appOptions) (*app, error) {
	v := config.New(opts.ConfigPath)
	for key, flag := range ao.flags {
		if f := cmd.Flags().Lookup(flag); f != nil {
			if err := v.BindPFlag(key, f); err != nil {
				return nil, WrapExitError(ExitCommandError, "failed to bind flag", err)
			}
		}
	}
	if opts.Database != "" {
		v.Set("db", opts.Database)
	}

	cfg, err := config.Load(v)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid configuration", err)
	}

	level, err := config.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid configuration", err)
	}
	if opts.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))

	a := &app{cfg: cfg, logger: logger}

	if cfg.DB == "" {
		if !ao.allowMemory {
			return nil, NewExitError(ExitCommandError, "no database configured: pass --db or set db in domainreg.yaml")
		}
		logger.Info("using in-memory backend")
		a.backend = store.NewMemory()
	} else {
		logger.Debug("opening database", "path", cfg.DB)
		st, err := store.Open(cfg.DB)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to open database", err)
		}
		a.backend = st
	}
	a.closers = append(a.closers, a.backend.Close)

	// Spans go to stderr so JSON output on stdout stays parseable.
	a.provider, err = tracing.NewProvider(cfg.Tracing, tracing.WithStdoutWriter(cmd.ErrOrStderr()))
	if err != nil {
		_ = a.Close(context.Background())
		return nil, WrapExitError(ExitCommandError, "failed to start tracing", err)
	}

	sinks := events.MultiSink{events.LogSink{Logger: logger}}
	if len(cfg.Kafka.Brokers) > 0 {
		ks, err := events.NewKafkaSink(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		if err != nil {
			_ = a.Close(context.Background())
			return nil, WrapExitError(ExitCommandError, "failed to create kafka sink", err)
		}
		logger.Info("publishing events to kafka", "brokers", cfg.Kafka.Brokers, "topic", cfg.Kafka.Topic)
		sinks = append(sinks, ks)
		a.closers = append(a.closers, ks.Close)
	}
	if ao.broker {
		a.broker = events.NewBroker[ir.Event]()
		sinks = append(sinks, events.BrokerSink(a.broker))
	}

	a.reg = registry.New(a.backend,
		registry.WithLogger(logger),
		registry.WithSink(sinks),
		registry.WithTracer(a.provider.Tracer()),
		registry.WithCacheTTL(time.Duration(cfg.Cache.TTLSeconds)*time.Second),
		registry.WithMaxNameLen(cfg.MaxNameLen),
	)
	return a, nil
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close(ctx context.Context) error {
	var errs []error
	if a.broker != nil {
		a.broker.Close()
	}
	if a.provider != nil {
		if err := a.provider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown tracing: %w", err))
		}
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// commandContext returns cmd's context, or Background when unset.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// withApp runs fn against a freshly opened app and closes it afterwards.
func withApp(cmd *cobra.Command, opts *RootOptions, ao appOptions, fn func(ctx context.Context, a *app) error) error {
	a, err := openApp(cmd, opts, ao)
	if err != nil {
		return err
	}
	ctx := commandContext(cmd)
	defer func() {
		if closeErr := a.Close(context.WithoutCancel(ctx)); closeErr != nil {
			a.logger.Error("error closing registry", "error", closeErr)
		}
	}()
	return fn(ctx, a)
}
