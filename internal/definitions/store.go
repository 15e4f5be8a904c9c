// Package definitions loads block definitions and nesting rules and keeps
// them current. The embedded builtin set is always loaded first; an optional
// definitions file adds block types or replaces builtin ones.
package definitions

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/leapstack-labs/pyblocks/internal/nesting"
	"github.com/leapstack-labs/pyblocks/pkg/core"
)

// debounceDelay coalesces bursts of file events into one reload.
const debounceDelay = 100 * time.Millisecond

// Options configures a Store.
type Options struct {
	// DefinitionsFile is an optional block definitions document.
	DefinitionsFile string
	// CapabilitiesFile is an optional nesting rules document. When empty or
	// missing, the builtin rules apply.
	CapabilitiesFile string
	Logger           *slog.Logger
}

// Store owns the current Catalog. Readers call Catalog and keep the snapshot
// for as long as they need a consistent view.
type Store struct {
	opts    Options
	logger  *slog.Logger
	current atomic.Pointer[Catalog]
	gen     atomic.Uint64

	mu        sync.Mutex
	listeners []func(*Catalog)
}

// NewStore creates a store and performs the initial load.
func NewStore(opts Options) (*Store, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	s := &Store{opts: opts, logger: logger}
	if _, err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Builtin returns a catalog of the embedded definitions and rules only.
func Builtin() *Catalog {
	defs, err := ParseDefinitions(builtinDefinitions, nil)
	if err != nil {
		panic(fmt.Sprintf("builtin definitions: %v", err))
	}
	rules, err := nesting.Parse(builtinCapabilities, nil)
	if err != nil {
		panic(fmt.Sprintf("builtin capabilities: %v", err))
	}
	c := NewCatalog(defs, rules)
	c.generation = 1
	return c
}

// Catalog returns the current snapshot.
func (s *Store) Catalog() *Catalog {
	return s.current.Load()
}

// OnReload registers fn to be called with each new catalog after a
// successful reload.
func (s *Store) OnReload(fn func(*Catalog)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// Reload reads the configured files and swaps in a new catalog. On error the
// current catalog stays in place.
func (s *Store) Reload() (*Catalog, error) {
	defs, err := ParseDefinitions(builtinDefinitions, s.logger)
	if err != nil {
		return nil, fmt.Errorf("builtin definitions: %w", err)
	}

	if s.opts.DefinitionsFile != "" {
		extra, err := s.readDefinitions(s.opts.DefinitionsFile)
		if err != nil {
			return nil, err
		}
		defs = append(defs, extra...)
	}

	rules, err := s.readRules()
	if err != nil {
		return nil, err
	}

	c := NewCatalog(defs, rules)
	c.generation = s.gen.Add(1)
	s.current.Store(c)

	s.logger.Debug("block definitions loaded",
		slog.Int("definitions", c.Len()),
		slog.Int("rule_sets", rules.Len()),
		slog.Uint64("generation", c.generation))

	s.mu.Lock()
	listeners := append([]func(*Catalog){}, s.listeners...)
	s.mu.Unlock()
	for _, fn := range listeners {
		fn(c)
	}
	return c, nil
}

func (s *Store) readDefinitions(path string) ([]*core.BlockDefinition, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		s.logger.Warn("definitions file not found, using builtin definitions", slog.String("path", path))
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read definitions %s: %w", path, err)
	}
	defs, err := ParseDefinitions(data, s.logger)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return defs, nil
}

func (s *Store) readRules() (*nesting.Rules, error) {
	path := s.opts.CapabilitiesFile
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			rules, err := nesting.Parse(data, s.logger)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", path, err)
			}
			return rules, nil
		case errors.Is(err, fs.ErrNotExist):
			s.logger.Warn("capabilities file not found, using builtin rules", slog.String("path", path))
		default:
			return nil, fmt.Errorf("failed to read capabilities %s: %w", path, err)
		}
	}
	rules, err := nesting.Parse(builtinCapabilities, s.logger)
	if err != nil {
		return nil, fmt.Errorf("builtin capabilities: %w", err)
	}
	return rules, nil
}

// Watch reloads the catalog when a configured file changes. It blocks until
// ctx is cancelled. Directories are watched rather than files so editors that
// save by rename are still picked up.
func (s *Store) Watch(ctx context.Context) error {
	targets := make(map[string]struct{})
	dirs := make(map[string]struct{})
	for _, p := range []string{s.opts.DefinitionsFile, s.opts.CapabilitiesFile} {
		if p == "" {
			continue
		}
		abs, err := filepath.Abs(p)
		if err != nil {
			return fmt.Errorf("failed to resolve %s: %w", p, err)
		}
		targets[abs] = struct{}{}
		dirs[filepath.Dir(abs)] = struct{}{}
	}
	if len(targets) == 0 {
		<-ctx.Done()
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = watcher.Close() }()

	for dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			s.logger.Error("failed to watch directory", slog.String("dir", dir), slog.String("error", err.Error()))
		}
	}

	var debounceTimer *time.Timer
	defer func() {
		if debounceTimer != nil {
			debounceTimer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			name, err := filepath.Abs(event.Name)
			if err != nil {
				continue
			}
			if _, ok := targets[name]; !ok {
				continue
			}

			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(debounceDelay, func() {
				s.logger.Debug("definitions changed, reloading", slog.String("file", name))
				if _, err := s.Reload(); err != nil {
					s.logger.Error("reload failed", slog.String("error", err.Error()))
				}
			})

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Error("watcher error", slog.String("error", err.Error()))
		}
	}
}
