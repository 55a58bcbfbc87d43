package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/domainreg/internal/httpapi"
)

const shutdownTimeout = 5 * time.Second

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Addr string

	// ready, when set, receives the bound address once the listener is up.
	ready chan<- string
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	return newServeCommand(&ServeOptions{RootOptions: rootOpts})
}

func newServeCommand(opts *ServeOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the registry over HTTP",
		Long: `Serve the registry HTTP API until interrupted.

Without --db the registry lives in memory and is lost on exit.
Committed events are also relayed live on GET /v1/events/stream.

Examples:
  domainreg serve --db ./registry.db
  domainreg serve --db ./registry.db --addr 0.0.0.0:8080 --verbose`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Addr, "addr", "", "listen address (default from http.addr)")

	return cmd
}

func runServe(opts *ServeOptions, cmd *cobra.Command) error {
	ao := appOptions{
		allowMemory: true,
		broker:      true,
		flags:       map[string]string{"http.addr": "addr"},
	}
	return withApp(cmd, opts.RootOptions, ao, func(ctx context.Context, a *app) error {
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(sigChan)

		go func() {
			select {
			case sig := <-sigChan:
				a.logger.Info("received signal, shutting down", "signal", sig)
				cancel()
			case <-ctx.Done():
			}
		}()

		ln, err := net.Listen("tcp", a.cfg.HTTP.Addr)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to listen", err)
		}

		handler := httpapi.NewHandler(a.reg, a.logger, httpapi.WithBroker(a.broker))
		srv := &http.Server{
			Handler:           httpapi.NewRouter(handler),
			ReadHeaderTimeout: 10 * time.Second,
			BaseContext:       func(net.Listener) context.Context { return ctx },
		}

		errCh := make(chan error, 1)
		go func() {
			errCh <- srv.Serve(ln)
		}()

		addr := ln.Addr().String()
		a.logger.Info("http server started", "addr", addr, "db", a.cfg.DB)
		fmt.Fprintf(cmd.OutOrStdout(), "Listening on http://%s\n", addr)
		fmt.Fprintln(cmd.OutOrStdout(), "Press Ctrl-C to stop.")
		if opts.ready != nil {
			opts.ready <- addr
		}

		select {
		case err := <-errCh:
			return WrapExitError(ExitFailure, "http server error", err)
		case <-ctx.Done():
		}

		shutdownCtx, stop := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer stop()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return WrapExitError(ExitFailure, "http shutdown failed", err)
		}
		if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return WrapExitError(ExitFailure, "http server error", err)
		}

		a.logger.Info("http server stopped gracefully")
		return nil
	})
}
