package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/zjrosen/cbconfig/internal/log"
	"github.com/zjrosen/cbconfig/internal/pubsub"
	"github.com/zjrosen/cbconfig/internal/registry/domain"
	"github.com/zjrosen/cbconfig/internal/server"
	"github.com/zjrosen/cbconfig/internal/watcher"
)

func newServeCmd(c *cli) *cobra.Command {
	var (
		addr    string
		noWatch bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the local web forms",
		Long: `Serve HTML forms for listing, creating, editing, renaming and deleting
configurations. Every form goes through the same registry operations as the
CLI.

Unless --no-watch is given, the directory is watched and files changed by
other programs are reported as consistency faults on the list page.

Examples:
  cbconfig serve
  cbconfig serve --addr 127.0.0.1:9000 --no-watch`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if addr == "" {
				addr = c.cfg.Server.Addr()
			}
			watch := c.cfg.Server.Watch && !noWatch

			return c.withSession(cmd, func(ctx context.Context, s *session) error {
				srvCfg := server.DefaultConfig()
				srvCfg.Addr = addr
				srv, err := server.New(srvCfg, s.reg, s.traces.Tracer())
				if err != nil {
					return fmt.Errorf("creating server: %w", err)
				}

				var w *watcher.Watcher
				if watch {
					w, err = watcher.New(watcher.Config{Dir: s.reg.Dir(), DebounceDur: c.cfg.Server.WatchDebounce})
					if err != nil {
						return err
					}
				}

				ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
				defer stop()

				// Surface faults that were already there before the first page view.
				srv.HandleDirectoryChanges(ctx, nil)

				out := cmd.OutOrStdout()
				_, _ = fmt.Fprintf(out, "Serving %s on http://%s\n", s.reg.Dir(), addr)
				_, _ = fmt.Fprintln(out, "Press Ctrl+C to stop")

				g, gctx := errgroup.WithContext(ctx)
				g.Go(func() error {
					return srv.Start(gctx)
				})
				g.Go(func() error {
					pubsub.NewListener(gctx, s.broker).Run(gctx, logChange)
					return nil
				})
				if w != nil {
					g.Go(func() error {
						return w.Run(gctx, srv.HandleDirectoryChanges)
					})
				}

				err = g.Wait()
				_, _ = fmt.Fprintln(out, "Server stopped")
				return err
			})
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "address to listen on (overrides server.address and server.port)")
	cmd.Flags().BoolVar(&noWatch, "no-watch", false, "do not watch the directory for outside edits")
	return cmd
}

func logChange(ev pubsub.Event[domain.Change]) {
	change := ev.Payload
	if change.Fault != nil {
		log.Warn(log.CatRegistry, "consistency fault", "fault", change.Fault.String())
		return
	}
	log.Info(log.CatRegistry, "configuration changed",
		"kind", change.Kind,
		"identifier", change.Identifier.String(),
		"name", change.Name,
		"previous", change.PreviousName,
	)
}
