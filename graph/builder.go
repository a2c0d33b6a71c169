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
package graph

import (
	"context"
	"fmt"
	"maps"
	"runtime"
	"slices"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"bennypowers.dev/bindle/fingerprint"
	"bennypowers.dev/bindle/internal/logging"
	"bennypowers.dev/bindle/internal/memo"
	"bennypowers.dev/bindle/module"
	"bennypowers.dev/bindle/scan"
	"bennypowers.dev/bindle/transform"
)

// Resolver maps import specifiers to module IDs.
type Resolver interface {
	Resolve(specifier string, from module.ID) (module.ID, error)
	// External returns the global expression an external module evaluates to.
	External(id module.ID) (string, bool)
}

// Options configures a Builder.
type Options struct {
	Resolver    Resolver
	Pipeline    *transform.Pipeline
	Fingerprint fingerprint.Algorithm
	// Deferred classifies imports as deferred edges. Default DynamicImports.
	Deferred DeferredRule
	// Jobs bounds concurrent module processing. Default GOMAXPROCS.
	Jobs int
	// Memo caches pipeline outputs across builds. Nil disables caching.
	Memo   *Memo
	Logger logging.Logger
}

// Stats counts pipeline work done by a Builder.
type Stats struct {
	// Processed is the number of pipeline runs.
	Processed int64
	// Reused is the number of modules served from the memo.
	Reused int64
}

// Builder walks import edges from entry modules, running the pipeline and
// resolver for each module it discovers.
type Builder struct {
	resolver Resolver
	pipeline *transform.Pipeline
	alg      fingerprint.Algorithm
	deferred DeferredRule
	jobs     int
	memo     *Memo
	logger   logging.Logger

	processed atomic.Int64
	reused    atomic.Int64
}

// NewBuilder creates a builder.
func NewBuilder(opts Options) *Builder {
	b := &Builder{
		resolver: opts.Resolver,
		pipeline: opts.Pipeline,
		alg:      opts.Fingerprint,
		deferred: opts.Deferred,
		jobs:     opts.Jobs,
		memo:     opts.Memo,
		logger:   logging.OrDiscard(opts.Logger),
	}
	if b.alg == "" {
		b.alg = fingerprint.Default
	}
	if b.deferred == nil {
		b.deferred = DynamicImports
	}
	if b.jobs <= 0 {
		b.jobs = runtime.GOMAXPROCS(0)
	}
	return b
}

// Stats returns the work done by the builder so far.
func (b *Builder) Stats() Stats {
	return Stats{Processed: b.processed.Load(), Reused: b.reused.Load()}
}

// Memo returns the builder's memo, which may be nil.
func (b *Builder) Memo() *Memo {
	return b.memo
}

// Fingerprint returns the hash algorithm used for module fingerprints.
func (b *Builder) Fingerprint() fingerprint.Algorithm {
	return b.alg
}

// Build walks the graph reachable from entries. Module-level failures are
// recorded on records; the only error returned is the context's. A
// cancelled build returns no graph.
func (b *Builder) Build(ctx context.Context, entries []module.ID) (*Graph, error) {
	p := b.newPass(ctx, nil)
	for _, id := range sortedIDs(entries) {
		p.spawn(id)
	}
	if err := p.wait(ctx); err != nil {
		return nil, err
	}
	g := newGraph(entries, p.records)
	b.logger.Debug("Built graph", "modules", g.Len(), "entries", len(g.entries), "cycles", len(g.cycles))
	for _, c := range g.cycles {
		b.logger.Debug("Import cycle", "cycle", formatCycle(c))
	}
	return g, nil
}

// Delta describes how Update changed a graph.
type Delta struct {
	// Recomputed lists the changed modules and every module discovered
	// through their new imports.
	Recomputed []module.ID
	// Added lists recomputed modules that were not in the base graph.
	Added []module.ID
	// Removed lists modules no longer reachable from any entry.
	Removed []module.ID
}

// Update returns a new graph in which the changed modules are reprocessed
// and any newly imported modules are discovered. Records of other modules
// are shared with base. Modules no longer reachable from an entry are
// dropped. base is not modified.
func (b *Builder) Update(ctx context.Context, base *Graph, changed []module.ID) (*Graph, *Delta, error) {
	known := maps.Clone(base.records)
	for _, id := range changed {
		delete(known, id)
	}

	p := b.newPass(ctx, known)
	for _, id := range sortedIDs(changed) {
		p.spawn(id)
	}
	if err := p.wait(ctx); err != nil {
		return nil, nil, err
	}

	records := known
	maps.Copy(records, p.records)
	delta := &Delta{Recomputed: sortedIDs(slices.Collect(maps.Keys(p.records)))}
	for _, id := range delta.Recomputed {
		if !base.Has(id) {
			delta.Added = append(delta.Added, id)
		}
	}

	reachable := (&Graph{records: records}).Reachable(base.entries, false)
	for id := range records {
		if !reachable[id] {
			delete(records, id)
			delta.Removed = append(delta.Removed, id)
		}
	}
	delta.Removed = sortedIDs(delta.Removed)
	delta.Added = slices.DeleteFunc(delta.Added, func(id module.ID) bool { return !reachable[id] })

	g := newGraph(base.entries, records)
	b.logger.Debug("Updated graph",
		"recomputed", len(delta.Recomputed),
		"added", len(delta.Added),
		"removed", len(delta.Removed))
	return g, delta, nil
}

// pass is one traversal. Each module is processed at most once per pass,
// whichever goroutine reaches it first holding the claim ticket.
type pass struct {
	b       *Builder
	ctx     context.Context
	group   *errgroup.Group
	sem     *semaphore.Weighted
	tickets memo.Group[module.ID, *module.Record]
	// known records are taken as-is and not visited.
	known map[module.ID]*module.Record

	mu      sync.Mutex
	records map[module.ID]*module.Record
}

func (b *Builder) newPass(ctx context.Context, known map[module.ID]*module.Record) *pass {
	group, gctx := errgroup.WithContext(ctx)
	return &pass{
		b:       b,
		ctx:     gctx,
		group:   group,
		sem:     semaphore.NewWeighted(int64(b.jobs)),
		known:   known,
		records: make(map[module.ID]*module.Record),
	}
}

func (p *pass) wait(ctx context.Context) error {
	if err := p.group.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

func (p *pass) visit(id module.ID) {
	if _, ok := p.known[id]; ok {
		return
	}
	if p.tickets.Claimed(id) {
		return
	}
	p.spawn(id)
}

func (p *pass) spawn(id module.ID) {
	p.group.Go(func() error {
		rec, claimed, err := p.tickets.Do(id, func() (*module.Record, error) {
			return p.process(id)
		})
		if err != nil || !claimed {
			return err
		}
		p.mu.Lock()
		p.records[id] = rec
		p.mu.Unlock()
		for _, target := range rec.Imports() {
			p.visit(target)
		}
		return nil
	})
}

// process runs the module through the pipeline. The pipeline call itself
// is not cancelled; its result is dropped if the pass was.
func (p *pass) process(id module.ID) (*module.Record, error) {
	if err := p.sem.Acquire(p.ctx, 1); err != nil {
		return nil, err
	}
	defer p.sem.Release(1)

	rec, out := p.b.load(context.WithoutCancel(p.ctx), id)
	if err := p.ctx.Err(); err != nil {
		return nil, err
	}
	if out != nil {
		p.b.memo.Add(id, rec.Fingerprint, rec.ConfigKey, out)
	}
	return rec, nil
}

// load produces the record for id. The returned output is non-nil when the
// pipeline ran and its result may be memoized.
func (b *Builder) load(ctx context.Context, id module.ID) (*module.Record, *transform.Output) {
	if id.IsExternal() {
		return b.external(id), nil
	}

	raw, err := b.pipeline.Load(id)
	if err != nil {
		return &module.Record{ID: id, Err: err}, nil
	}
	rec := &module.Record{
		ID:          id,
		Fingerprint: b.alg.Sum(raw),
		ConfigKey:   b.pipeline.ConfigKey(id),
	}

	out, hit := b.memo.Get(id, rec.Fingerprint, rec.ConfigKey)
	fresh := !hit
	if hit {
		b.reused.Add(1)
	} else {
		b.processed.Add(1)
		out, err = b.pipeline.Process(ctx, id, raw)
		if err != nil {
			b.logger.Debug("Transform failed", "module", id, "error", err)
			rec.Err = err
			return rec, nil
		}
	}

	rec.Code = out.Code
	rec.SourceMap = out.SourceMap
	rec.Artifacts = out.Artifacts
	rec.Edges = b.edges(id, out.Imports)
	if fresh {
		return rec, out
	}
	return rec, nil
}

func (b *Builder) edges(from module.ID, imports []scan.Import) []module.Edge {
	edges := make([]module.Edge, 0, len(imports))
	for _, imp := range imports {
		kind := module.Eager
		if b.deferred(imp) {
			kind = module.Deferred
		}
		target, err := b.resolver.Resolve(imp.Specifier, from)
		if err != nil {
			b.logger.Debug("Unresolved import", "specifier", imp.Specifier, "module", from, "error", err)
		}
		edges = append(edges, module.Edge{
			Specifier: imp.Specifier,
			Resolved:  target,
			Kind:      kind,
			Prefetch:  imp.Prefetch,
			ChunkName: imp.ChunkName,
			Line:      imp.Line,
			Err:       err,
		})
	}
	return edges
}

// external builds the record of a module supplied by the host page.
func (b *Builder) external(id module.ID) *module.Record {
	expr, ok := b.resolver.External(id)
	if !ok {
		return &module.Record{ID: id, Err: fmt.Errorf("external %q has no global expression", id.ExternalName())}
	}
	code := []byte("module.exports = " + expr + ";\n")
	return &module.Record{ID: id, Fingerprint: b.alg.Sum(code), Code: code}
}
