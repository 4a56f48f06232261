package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/zjrosen/cbconfig/internal/infrastructure/sqlite"
	"github.com/zjrosen/cbconfig/internal/log"
	"github.com/zjrosen/cbconfig/internal/pubsub"
	registry "github.com/zjrosen/cbconfig/internal/registry/application"
	"github.com/zjrosen/cbconfig/internal/registry/domain"
	"github.com/zjrosen/cbconfig/internal/tracing"
)

// session is an open registry plus everything it was built from.
type session struct {
	reg    *registry.Registry
	db     *sqlite.DB
	traces *tracing.Provider
	broker *pubsub.Broker[domain.Change]
}

// openSession opens the catalog and the registry for the configured
// directory.
func (c *cli) openSession(ctx context.Context) (*session, error) {
	dir, err := c.cfg.ResolvedDir()
	if err != nil {
		return nil, err
	}
	catalogPath, err := c.cfg.ResolvedCatalogPath()
	if err != nil {
		return nil, err
	}
	tracingCfg, err := c.cfg.ResolvedTracing()
	if err != nil {
		return nil, err
	}

	traces, err := tracing.NewProvider(tracingCfg)
	if err != nil {
		return nil, fmt.Errorf("initializing tracing: %w", err)
	}

	db, err := sqlite.NewDB(catalogPath)
	if err != nil {
		_ = traces.Shutdown(ctx)
		return nil, &domain.IOFailureError{Op: "open catalog", Path: catalogPath, Cause: err}
	}

	broker := pubsub.NewBroker[domain.Change]()
	reg, err := registry.New(ctx, registry.Options{
		Dir:             dir,
		Catalog:         db.CatalogRepository(),
		Tracer:          traces.Tracer(),
		Broker:          broker,
		CacheEnabled:    c.cfg.Cache.Enabled,
		CacheTTL:        c.cfg.Cache.TTL,
		StampTimestamps: c.cfg.Registry.StampTimestamps,
	})
	if err != nil {
		broker.Close()
		_ = db.Close()
		_ = traces.Shutdown(ctx)
		return nil, err
	}

	return &session{reg: reg, db: db, traces: traces, broker: broker}, nil
}

// Close releases the registry and flushes pending spans.
func (s *session) Close() error {
	var errs []error
	if err := s.reg.Close(); err != nil {
		errs = append(errs, fmt.Errorf("closing registry: %w", err))
	}
	if err := s.db.Close(); err != nil {
		errs = append(errs, fmt.Errorf("closing catalog: %w", err))
	}
	s.broker.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.traces.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("flushing traces: %w", err))
	}
	return errors.Join(errs...)
}

// withSession opens a session around fn.
func (c *cli) withSession(cmd *cobra.Command, fn func(ctx context.Context, s *session) error) (err error) {
	ctx := cmd.Context()
	s, err := c.openSession(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := s.Close(); closeErr != nil {
			log.ErrorErr(log.CatRegistry, "closing session", closeErr)
			if err == nil {
				err = closeErr
			}
		}
	}()
	return fn(ctx, s)
}

// parseIdentifier turns a bad argument into a usage error.
func parseIdentifier(arg string) (domain.Identifier, error) {
	id, err := domain.ParseIdentifier(arg)
	if err != nil {
		return 0, usagef("%v", err)
	}
	return id, nil
}

// readInput reads a document from path, or from stdin when path is "-".
func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		raw, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return nil, fmt.Errorf("reading stdin: %w", err)
		}
		return raw, nil
	}
	raw, err := os.ReadFile(path) //nolint:gosec // G304: path is the user's input document
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return raw, nil
}
