/*
Copyright © 2026 Benny Powers <web@bennypowers.com>

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with this program. If not, see <http://www.gnu.org/licenses/>.
*/

// Package watch detects file changes under a project root and reports them in
// debounced batches.
package watch

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"

	"bennypowers.dev/bindle/internal/logging"
)

// DefaultDebounce is the quiet period before a batch is delivered.
const DefaultDebounce = 100 * time.Millisecond

// defaultIgnores are never watched.
var defaultIgnores = []string{
	"**/.git/**",
	"**/node_modules/**",
	"**/*.swp",
	"**/*~",
	"**/.DS_Store",
}

// Options configures a Watcher.
type Options struct {
	// Root is the directory to watch recursively.
	Root string
	// Ignore are extra doublestar patterns, relative to Root, added to the
	// default ignores.
	Ignore   []string
	Debounce time.Duration
	// OnChange receives the absolute paths changed since the last batch,
	// sorted. Batches never overlap.
	OnChange func(ctx context.Context, paths []string) error
	Logger   logging.Logger
}

// Watcher reports file changes under a root.
type Watcher struct {
	opts    Options
	fsw     *fsnotify.Watcher
	ignores []string
	logger  logging.Logger
	started atomic.Bool
}

// New validates opts and registers every directory under Root that is not
// ignored.
func New(opts Options) (*Watcher, error) {
	if opts.Root == "" {
		opts.Root = "."
	}
	root, err := filepath.Abs(opts.Root)
	if err != nil {
		return nil, fmt.Errorf("resolving watch root: %w", err)
	}
	opts.Root = root
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	for _, pat := range opts.Ignore {
		if !doublestar.ValidatePattern(pat) {
			return nil, fmt.Errorf("invalid ignore pattern %q", pat)
		}
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}
	w := &Watcher{
		opts:    opts,
		fsw:     fsw,
		ignores: append(slices.Clone(defaultIgnores), opts.Ignore...),
		logger:  logging.OrDiscard(opts.Logger),
	}
	if err := w.addTree(root); err != nil {
		fsw.Close()
		return nil, err
	}
	return w, nil
}

// DefaultIgnores returns the patterns every watcher ignores.
func DefaultIgnores() []string {
	return slices.Clone(defaultIgnores)
}

// Run delivers batches until ctx is cancelled. It may be called once.
func (w *Watcher) Run(ctx context.Context) error {
	if !w.started.CompareAndSwap(false, true) {
		return errors.New("watcher already running")
	}
	defer w.fsw.Close()

	var (
		mu      sync.Mutex
		pending = make(map[string]struct{})
		timer   *time.Timer
		running atomic.Bool
	)

	fire := func() {
		if ctx.Err() != nil {
			return
		}
		if !running.CompareAndSwap(false, true) {
			// Retry once the current batch finishes.
			mu.Lock()
			timer.Reset(w.opts.Debounce)
			mu.Unlock()
			return
		}
		defer running.Store(false)

		mu.Lock()
		paths := slices.Sorted(maps.Keys(pending))
		clear(pending)
		mu.Unlock()
		if len(paths) == 0 || w.opts.OnChange == nil {
			return
		}
		w.logger.Debug("Files changed", "count", len(paths))
		if err := w.opts.OnChange(ctx, paths); err != nil {
			w.logger.Warn("Change handler failed", "error", err)
		}
	}
	defer func() {
		mu.Lock()
		defer mu.Unlock()
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return errors.New("watcher event channel closed")
			}
			if w.ignored(ev.Name) {
				continue
			}
			if ev.Has(fsnotify.Create) && isDir(ev.Name) {
				if err := w.addTree(ev.Name); err != nil {
					w.logger.Warn("Could not watch new directory", "path", ev.Name, "error", err)
				}
				continue
			}
			if ev.Has(fsnotify.Chmod) && !ev.Has(fsnotify.Write) {
				continue
			}

			mu.Lock()
			pending[ev.Name] = struct{}{}
			if timer == nil {
				timer = time.AfterFunc(w.opts.Debounce, fire)
			} else {
				timer.Reset(w.opts.Debounce)
			}
			mu.Unlock()

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return errors.New("watcher error channel closed")
			}
			if isFatal(err) {
				return fmt.Errorf("watching %s: %w", w.opts.Root, err)
			}
			w.logger.Warn("Watch error", "error", err)
		}
	}
}

// addTree watches dir and every directory below it that is not ignored.
func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			w.logger.Debug("Skipping unreadable path", "path", path, "error", err)
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != w.opts.Root && w.ignored(path) {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			return fmt.Errorf("watching %s: %w", path, err)
		}
		return nil
	})
}

// ignored reports whether an absolute path, or the directory it names,
// matches an ignore pattern.
func (w *Watcher) ignored(path string) bool {
	rel, err := filepath.Rel(w.opts.Root, path)
	if err != nil {
		return false
	}
	rel = filepath.ToSlash(rel)
	for _, pat := range w.ignores {
		if ok, _ := doublestar.Match(pat, rel); ok {
			return true
		}
		if ok, _ := doublestar.Match(pat, rel+"/"); ok {
			return true
		}
	}
	return false
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// isFatal reports resource exhaustion, after which events are lost.
func isFatal(err error) bool {
	return errors.Is(err, syscall.ENOSPC) ||
		errors.Is(err, syscall.EMFILE) ||
		errors.Is(err, syscall.ENFILE)
}
