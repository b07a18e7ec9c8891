package cli

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/roach88/fsindex/internal/httpapi"
	"github.com/roach88/fsindex/internal/metrics"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Addr string

	// Ready, if set, receives the bound address once listening (for testing).
	Ready func(net.Addr)
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve record listings over HTTP",
		Long: `Serve GET /list/{order_by}/{limit} as newline-delimited JSON, plus
/metrics and /healthz.

Example:
  fsindex serve --addr :8080
  curl localhost:8080/list/FsCreateTime/10`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Addr, "addr", "", "listen address, overrides config")

	return cmd
}

func runServe(opts *ServeOptions, cmd *cobra.Command) error {
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	if opts.Addr != "" {
		cfg.HTTP.Addr = opts.Addr
	}
	logger := opts.logger(cfg, cmd.ErrOrStderr())

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m, err := metrics.New(reg)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to register metrics", err)
	}

	// Setup signal handling for graceful shutdown
	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, loc, err := openStore(ctx, cfg, logger, m)
	if err != nil {
		return err
	}

	handler := httpapi.NewHandler(httpapi.Options{
		Store:    s,
		Gatherer: reg,
		Metrics:  m,
		Logger:   logger,
	})

	ready := func(addr net.Addr) {
		fmt.Fprintf(cmd.OutOrStdout(), "Serving %s on http://%s\n", loc, addr)
		if opts.Ready != nil {
			opts.Ready(addr)
		}
	}
	if err := httpapi.Serve(ctx, cfg.HTTP.Addr, handler, logger, ready); err != nil && err != context.Canceled {
		return WrapExitError(ExitCommandError, "http server failed", err)
	}
	return nil
}
