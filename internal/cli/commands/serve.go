package commands

import (
	"os/signal"
	"syscall"

	"github.com/leapstack-labs/pyblocks/internal/server"
	"github.com/leapstack-labs/pyblocks/internal/state"
	"github.com/spf13/cobra"
)

// ServeOptions holds options for the serve command.
type ServeOptions struct {
	Port    int
	Watch   bool
	NoState bool
}

// NewServeCommand creates the serve command.
func NewServeCommand() *cobra.Command {
	opts := &ServeOptions{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API for block editors",
		Long: `Start the HTTP API used by block editors.

The API serves block definitions and nesting candidates, generates and runs
posted projects, and stores project snapshots in the state database. With
--watch the definitions files are reloaded on change and connected clients
are notified through /api/events.`,
		Example: `  # Start on the configured port
  pyblocks serve

  # Custom port with hot reload of definitions
  pyblocks serve --port 9000 --watch`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, opts)
		},
	}

	cmd.Flags().IntVar(&opts.Port, "port", 0, "Port to listen on (default from settings)")
	cmd.Flags().BoolVarP(&opts.Watch, "watch", "w", false, "Reload definitions when their files change")
	cmd.Flags().BoolVar(&opts.NoState, "no-state", false, "Disable snapshot storage")

	return cmd
}

func runServe(cmd *cobra.Command, opts *ServeOptions) error {
	cmdCtx, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	cfg := cmdCtx.Cfg
	r := cmdCtx.Renderer

	port := cfg.Server.Port
	if opts.Port > 0 {
		port = opts.Port
	}

	var store *state.SQLiteStore
	if !opts.NoState {
		store, err = cmdCtx.OpenState()
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()
	}

	srv := server.NewServer(server.Config{
		Definitions: cmdCtx.Defs,
		Snapshots:   store,
		Runner:      cmdCtx.Runner(),
		Generator:   cmdCtx.GeneratorOptions(),
		Version:     cfg.Application.Version,
		Port:        port,
		Watch:       opts.Watch || cfg.Server.Watch,
		Logger:      cmdCtx.Logger,
	})

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	r.Success("pyblocks API listening")
	r.Printf("  http://localhost:%d/api\n", port)
	if store != nil {
		r.Muted("  snapshots: " + store.Path())
	}
	return srv.Serve(ctx)
}
