// Package watcher watches the configuration directory with debouncing so
// edits made outside the registry surface as consistency faults.
package watcher

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/zjrosen/cbconfig/internal/log"
	"github.com/zjrosen/cbconfig/internal/registry/domain"
)

// Watcher monitors a configuration directory and reports which NNNNNN.json
// files changed.
type Watcher struct {
	fsWatcher *fsnotify.Watcher
	dir       string
	debounce  time.Duration
	onChange  chan []domain.Identifier
	done      chan struct{}
}

// Config holds watcher configuration options.
type Config struct {
	Dir         string
	DebounceDur time.Duration
}

// DefaultConfig returns sensible defaults for the watcher.
func DefaultConfig(dir string) Config {
	return Config{
		Dir:         dir,
		DebounceDur: 500 * time.Millisecond,
	}
}

// New creates a new directory watcher.
func New(cfg Config) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating fsnotify watcher: %w", err)
	}

	return &Watcher{
		fsWatcher: fsw,
		dir:       cfg.Dir,
		debounce:  cfg.DebounceDur,
		onChange:  make(chan []domain.Identifier, 1),
		done:      make(chan struct{}),
	}, nil
}

// Start begins watching the directory. The returned channel receives the
// identifiers touched since the last batch, ascending, once events go quiet
// for the debounce interval.
func (w *Watcher) Start() (<-chan []domain.Identifier, error) {
	if err := w.fsWatcher.Add(w.dir); err != nil {
		return nil, fmt.Errorf("watching directory %s: %w", w.dir, err)
	}

	go w.loop()

	log.Debug(log.CatWatcher, "watching directory", "dir", w.dir, "debounce", w.debounce)
	return w.onChange, nil
}

// Stop terminates the watcher and releases resources.
func (w *Watcher) Stop() error {
	close(w.done)
	return w.fsWatcher.Close()
}

// Run starts the watcher and calls fn for every batch until ctx is done.
func (w *Watcher) Run(ctx context.Context, fn func(ctx context.Context, ids []domain.Identifier)) error {
	batches, err := w.Start()
	if err != nil {
		return err
	}
	defer func() { _ = w.Stop() }()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ids := <-batches:
			fn(ctx, ids)
		}
	}
}

// loop processes file system events with debouncing.
func (w *Watcher) loop() {
	var (
		timer   *time.Timer
		pending = map[domain.Identifier]struct{}{}
	)

	for {
		select {
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}

			id, relevant := relevantEvent(event)
			if !relevant {
				continue
			}
			pending[id] = struct{}{}

			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(w.debounce)
			}

		case <-func() <-chan time.Time {
			if timer != nil {
				return timer.C
			}
			return nil
		}():
			if len(pending) == 0 {
				continue
			}
			ids := make([]domain.Identifier, 0, len(pending))
			for id := range pending {
				ids = append(ids, id)
			}
			slices.Sort(ids)

			select {
			case w.onChange <- ids:
				clear(pending)
			default:
				// Receiver is behind; keep accumulating and retry on the next event.
				log.Debug(log.CatWatcher, "change batch deferred", "pending", len(pending))
			}

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			log.Warn(log.CatWatcher, "watch error", "dir", w.dir, "error", err)

		case <-w.done:
			if timer != nil {
				timer.Stop()
			}
			return
		}
	}
}

// relevantEvent reports whether event touched a configuration file. Temp and
// trash files written by the registry are hidden and never match.
func relevantEvent(event fsnotify.Event) (domain.Identifier, bool) {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return 0, false
	}
	return domain.IdentifierFromFilename(filepath.Base(event.Name))
}
