// Package server serves the local web form UI over a configuration
// registry. Every page calls the registry's list, get, create, update, rename
// and delete operations and nothing else.
package server

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/zjrosen/cbconfig/internal/log"
	registry "github.com/zjrosen/cbconfig/internal/registry/application"
	"github.com/zjrosen/cbconfig/internal/registry/domain"
)

//go:embed templates/*.html
var templateFS embed.FS

// Registry is the subset of the registry the server uses.
type Registry interface {
	ListAll(ctx context.Context) ([]domain.Record, error)
	Get(ctx context.Context, id domain.Identifier) (domain.Record, error)
	Create(ctx context.Context, raw []byte) (domain.Record, error)
	Update(ctx context.Context, id domain.Identifier, raw []byte) (domain.Record, error)
	Rename(ctx context.Context, id domain.Identifier, newName string) (domain.Record, error)
	Delete(ctx context.Context, id domain.Identifier) (registry.DeleteResult, error)
	Check(ctx context.Context) (registry.Report, error)
	Invalidate(ctx context.Context, ids ...domain.Identifier)
}

var _ Registry = (*registry.Registry)(nil)

// Config holds HTTP server options.
type Config struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	// MaxBodyBytes caps submitted form size.
	MaxBodyBytes int64
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Addr:            "127.0.0.1:8765",
		ReadTimeout:     10 * time.Second,
		WriteTimeout:    30 * time.Second,
		IdleTimeout:     120 * time.Second,
		ShutdownTimeout: 10 * time.Second,
		MaxBodyBytes:    1 << 20,
	}
}

// Server represents the HTTP server
type Server struct {
	cfg        Config
	reg        Registry
	tracer     trace.Tracer
	templates  *template.Template
	httpServer *http.Server

	mu       sync.Mutex
	listener net.Listener

	// lastReport holds the most recent consistency check, shown on the list page.
	lastReport atomic.Pointer[registry.Report]
}

// New creates a server over reg. A nil tracer disables spans.
func New(cfg Config, reg Registry, tracer trace.Tracer) (*Server, error) {
	if reg == nil {
		return nil, fmt.Errorf("registry is required")
	}
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("noop")
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultConfig().MaxBodyBytes
	}

	tmpl, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parsing templates: %w", err)
	}

	s := &Server{
		cfg:       cfg,
		reg:       reg,
		tracer:    tracer,
		templates: tmpl,
	}
	s.httpServer = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.Handler(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
	return s, nil
}

// Start listens on the configured address and serves until ctx is done.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.cfg.Addr, err)
	}
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	log.Info(log.CatHTTP, "server listening", "addr", ln.Addr().String())

	errChan := make(chan error, 1)
	go func() {
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
		close(errChan)
	}()

	select {
	case <-ctx.Done():
		return s.Shutdown(context.Background())
	case err, ok := <-errChan:
		if !ok {
			return nil
		}
		return fmt.Errorf("serving: %w", err)
	}
}

// Addr returns the bound address once Start is listening, else the
// configured one.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.cfg.Addr
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	timeout := s.cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = DefaultConfig().ShutdownTimeout
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	log.Info(log.CatHTTP, "server shutting down")
	return s.httpServer.Shutdown(shutdownCtx)
}

// HandleDirectoryChanges drops cached documents for ids and re-runs the
// consistency check so outside edits show up as faults on the next page view.
func (s *Server) HandleDirectoryChanges(ctx context.Context, ids []domain.Identifier) {
	s.reg.Invalidate(ctx, ids...)

	report, err := s.reg.Check(ctx)
	if err != nil {
		log.ErrorErr(log.CatWatcher, "consistency check failed", err, "changed", len(ids))
		return
	}
	s.lastReport.Store(&report)
	log.Debug(log.CatWatcher, "consistency check after directory change",
		"changed", len(ids), "faults", len(report.Faults))
}

// LastReport returns the most recent consistency report, if any.
func (s *Server) LastReport() (registry.Report, bool) {
	r := s.lastReport.Load()
	if r == nil {
		return registry.Report{}, false
	}
	return *r, true
}
