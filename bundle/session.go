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

// Package bundle runs build sessions: it owns the resolver, pipeline,
// builder, and live graph across builds and rebuilds.
package bundle

import (
	"context"
	"errors"
	"path/filepath"
	"slices"
	"sync"

	"bennypowers.dev/bindle/chunk"
	"bennypowers.dev/bindle/fingerprint"
	"bennypowers.dev/bindle/fs"
	"bennypowers.dev/bindle/graph"
	"bennypowers.dev/bindle/hmr"
	"bennypowers.dev/bindle/internal/logging"
	"bennypowers.dev/bindle/module"
	"bennypowers.dev/bindle/packagejson"
	"bennypowers.dev/bindle/resolve"
	"bennypowers.dev/bindle/scan"
	"bennypowers.dev/bindle/transform"
)

// Options configures a session.
type Options struct {
	FS   fs.FileSystem
	Root string
	// Entries are specifiers resolved from Root. Entries containing glob
	// characters expand to the matching files.
	Entries []string

	Extensions []string
	MainFields []string
	Conditions []string
	// Externals maps specifiers to the global expressions that provide them.
	Externals map[string]string

	Transforms []transform.Registration
	Plugins    []Plugin

	SharedThreshold int
	Fingerprint     fingerprint.Algorithm
	Deferred        graph.DeferredRule
	Jobs            int
	// CacheSize bounds the pipeline output memo. Negative disables it.
	CacheSize int
	Accept    hmr.AcceptPolicy

	// Scanners overrides import discovery by path. Nil uses scan.ForPath.
	Scanners func(path string) scan.Scanner
	Logger   logging.Logger
}

// Result is a completed build.
type Result struct {
	Graph  *graph.Graph
	Chunks []*chunk.Chunk
	// Errors are module-level failures that did not stop the build.
	Errors []error
	// Warnings are import cycles and plugin diagnostics.
	Warnings []error
}

// Session holds the state shared by the builds of one project. Create it
// with NewSession and release it with Dispose.
type Session struct {
	opts     Options
	resolver *resolve.Resolver
	packages packagejson.Cache
	pipeline *transform.Pipeline
	builder  *graph.Builder
	logger   logging.Logger

	mu       sync.Mutex
	disposed bool
	result   *Result
	coord    *hmr.Coordinator
}

// NewSession validates opts and prepares a session. No files are read
// until the first build.
func NewSession(opts Options) (*Session, error) {
	if opts.FS == nil {
		opts.FS = fs.NewOSFileSystem()
	}
	if opts.Root == "" {
		opts.Root = "."
	}
	root, err := filepath.Abs(opts.Root)
	if err != nil {
		return nil, err
	}
	opts.Root = root
	logger := logging.OrDiscard(opts.Logger)

	table := transform.NewTable()
	for _, reg := range opts.Transforms {
		if err := table.Register(reg); err != nil {
			return nil, err
		}
	}
	for _, p := range opts.Plugins {
		tp, ok := p.(TransformPlugin)
		if !ok {
			continue
		}
		for _, reg := range tp.Transforms() {
			if err := table.Register(reg); err != nil {
				return nil, errors.Join(errors.New("plugin "+p.Name()), err)
			}
		}
	}

	cache := packagejson.NewMemoryCache()
	resolver := resolve.New(opts.FS, root).
		WithPackageLocator(resolve.NewNodeModules(opts.FS, root, cache)).
		WithExternals(opts.Externals).
		WithLogger(logger)
	if len(opts.Extensions) > 0 {
		resolver = resolver.WithExtensions(opts.Extensions)
	}
	if len(opts.MainFields) > 0 {
		resolver = resolver.WithMainFields(opts.MainFields)
	}
	if len(opts.Conditions) > 0 {
		resolver = resolver.WithConditions(opts.Conditions)
	}

	var memo *graph.Memo
	if opts.CacheSize >= 0 {
		if memo, err = graph.NewMemo(opts.CacheSize); err != nil {
			return nil, err
		}
	}

	pipeline := transform.NewPipeline(opts.FS, root, table).WithLogger(logger)
	if opts.Scanners != nil {
		pipeline = pipeline.WithScanners(opts.Scanners)
	}
	builder := graph.NewBuilder(graph.Options{
		Resolver:    resolver,
		Pipeline:    pipeline,
		Fingerprint: opts.Fingerprint,
		Deferred:    opts.Deferred,
		Jobs:        opts.Jobs,
		Memo:        memo,
		Logger:      logger,
	})

	return &Session{
		opts:     opts,
		resolver: resolver,
		packages: cache,
		pipeline: pipeline,
		builder:  builder,
		logger:   logger,
	}, nil
}

// Root returns the absolute project root.
func (s *Session) Root() string {
	return s.opts.Root
}

// Resolve resolves an entry specifier from the project root.
func (s *Session) Resolve(spec string) (module.ID, error) {
	return s.resolver.Resolve(spec, module.ID{})
}

// Builder returns the session's graph builder.
func (s *Session) Builder() *graph.Builder {
	return s.builder
}

// Dispose releases the session's caches. Later calls fail with ErrDisposed.
func (s *Session) Dispose() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed {
		return
	}
	s.disposed = true
	s.builder.Memo().Purge()
	s.result = nil
	s.coord = nil
}

// Result returns the latest build result, or nil before the first build.
func (s *Session) Result() *Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result
}

// Build builds the configured entries.
func (s *Session) Build(ctx context.Context) (*Result, error) {
	return s.BuildEntries(ctx, s.opts.Entries)
}

// BuildEntries builds the given entries from scratch, reusing memoized
// pipeline outputs. It returns a *FatalError when an entry fails.
func (s *Session) BuildEntries(ctx context.Context, entries []string) (*Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed {
		return nil, ErrDisposed
	}

	specs := expandEntries(s.opts.FS, s.opts.Root, entries)
	if len(specs) == 0 {
		return nil, &chunk.PartitionPrecondition{Reason: "no entry modules"}
	}
	ids := make([]module.ID, 0, len(specs))
	for _, spec := range specs {
		id, err := s.resolver.Resolve(spec, module.ID{})
		if err != nil {
			return nil, &FatalError{Entry: spec, Err: err}
		}
		ids = append(ids, id)
	}

	g, err := s.builder.Build(ctx, ids)
	if err != nil {
		return nil, err
	}
	result, err := s.complete(ctx, g)
	if err != nil {
		return nil, err
	}

	if s.coord == nil {
		s.coord = hmr.New(s.builder, g, hmr.Options{Accept: s.opts.Accept, Logger: s.logger})
	} else {
		s.coord.Replace(g)
	}
	s.result = result
	s.logger.Info("Build complete",
		"modules", g.Len(),
		"chunks", len(result.Chunks),
		"errors", len(result.Errors),
		"warnings", len(result.Warnings))
	return result, nil
}

// complete checks entries, runs graph plugins, and partitions g.
func (s *Session) complete(ctx context.Context, g *graph.Graph) (*Result, error) {
	if id, err := g.FailedEntry(); err != nil {
		return nil, &FatalError{Entry: id.String(), Module: id, Err: err}
	}

	result := &Result{Graph: g, Errors: g.Errors(), Warnings: g.Warnings()}
	for _, p := range s.opts.Plugins {
		if gp, ok := p.(GraphPlugin); ok {
			result.Warnings = append(result.Warnings, gp.OnGraphComplete(ctx, g)...)
		}
	}

	chunks, err := chunk.Partition(g, chunk.Options{
		SharedThreshold: s.opts.SharedThreshold,
		Fingerprint:     s.builder.Fingerprint(),
	})
	if err != nil {
		return nil, err
	}
	result.Chunks = chunks
	for _, w := range result.Warnings {
		s.logger.Warn(w.Error())
	}
	return result, nil
}

// Invalidate marks a module changed. It reports false when the event is a
// no-op.
func (s *Session) Invalidate(ev hmr.Event) (bool, error) {
	coord, err := s.coordinator()
	if err != nil {
		return false, err
	}
	return coord.Invalidate(ev)
}

// InvalidatePath maps a changed file to the modules loaded from it and
// invalidates them. A package.json change, or a file no module was loaded
// from, invalidates the modules with unresolved imports, since the change
// may let them resolve. It returns the invalidated modules.
func (s *Session) InvalidatePath(path string) ([]module.ID, error) {
	coord, err := s.coordinator()
	if err != nil {
		return nil, err
	}
	path = filepath.Clean(path)
	g := coord.Graph()

	var ids []module.ID
	if filepath.Base(path) == "package.json" {
		s.packages.Invalidate(path)
	} else {
		ids = g.ByPath(path)
	}
	if len(ids) == 0 {
		ids = g.Unresolved()
	}

	var invalidated []module.ID
	for _, id := range ids {
		ev := hmr.Event{Module: id}
		if raw, err := s.opts.FS.ReadFile(id.Path); err == nil && id.Path == path {
			ev.Fingerprint = s.builder.Fingerprint().Sum(raw)
		}
		ok, err := coord.Invalidate(ev)
		if err != nil && !errors.Is(err, hmr.ErrUnknownModule) {
			return invalidated, err
		}
		if ok {
			invalidated = append(invalidated, id)
		}
	}
	return invalidated, nil
}

// Rebuild applies pending invalidations and repartitions the graph. The
// update lists the modules to resend in order.
func (s *Session) Rebuild(ctx context.Context) (*hmr.Update, *Result, error) {
	coord, err := s.coordinator()
	if err != nil {
		return nil, nil, err
	}
	update, err := coord.Rebuild(ctx)
	if err != nil {
		return nil, nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	g := coord.Graph()
	if s.result != nil && s.result.Graph == g {
		return update, s.result, nil
	}
	result, err := s.complete(ctx, g)
	if err != nil {
		var fatal *FatalError
		if !errors.As(err, &fatal) {
			return nil, nil, err
		}
		// A broken entry in watch mode waits for the next change.
		update.FullReload = false
		return update, nil, err
	}
	s.result = result
	return update, result, nil
}

func (s *Session) coordinator() (*hmr.Coordinator, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed {
		return nil, ErrDisposed
	}
	if s.coord == nil {
		return nil, errors.New("session has not been built")
	}
	return s.coord, nil
}

// Entries returns the resolved entries of the latest build.
func (s *Session) Entries() []module.ID {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.result == nil {
		return nil
	}
	return slices.Clone(s.result.Graph.Entries())
}
