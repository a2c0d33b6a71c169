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

// Package graph builds and holds the module dependency graph.
package graph

import (
	"errors"
	"maps"
	"slices"

	"bennypowers.dev/bindle/module"
)

// Graph maps module IDs to records, plus the declared entries. A Graph is
// never modified once a Builder returns it; rebuilds produce a new Graph that
// shares unchanged records with the old one.
type Graph struct {
	records map[module.ID]*module.Record
	entries []module.ID

	// dependents maps a module to the modules that import it.
	dependents map[module.ID][]module.ID
	// byPath maps a file path to the modules loaded from it.
	byPath map[string][]module.ID
	cycles [][]module.ID
}

// newGraph assembles a graph and computes its indexes. Records on cycles
// are replaced by copies with the Cycle flag set on the cycle edges.
func newGraph(entries []module.ID, records map[module.ID]*module.Record) *Graph {
	g := &Graph{
		records: records,
		entries: sortedIDs(entries),
	}
	g.flagCycles()
	g.index()
	return g
}

// Empty returns a graph with no modules.
func Empty() *Graph {
	return newGraph(nil, map[module.ID]*module.Record{})
}

func (g *Graph) index() {
	g.dependents = make(map[module.ID][]module.ID)
	g.byPath = make(map[string][]module.ID)
	for _, id := range g.IDs() {
		rec := g.records[id]
		if !id.IsExternal() {
			g.byPath[id.Path] = append(g.byPath[id.Path], id)
		}
		for _, dep := range rec.Imports() {
			g.dependents[dep] = append(g.dependents[dep], id)
		}
	}
}

// Entries returns the entry module IDs, sorted.
func (g *Graph) Entries() []module.ID {
	return slices.Clone(g.entries)
}

// IsEntry reports whether id is a declared entry.
func (g *Graph) IsEntry(id module.ID) bool {
	_, ok := slices.BinarySearchFunc(g.entries, id, module.Compare)
	return ok
}

// Get returns the record for id.
func (g *Graph) Get(id module.ID) (*module.Record, bool) {
	rec, ok := g.records[id]
	return rec, ok
}

// Has reports whether the graph contains id.
func (g *Graph) Has(id module.ID) bool {
	_, ok := g.records[id]
	return ok
}

// Len returns the number of modules.
func (g *Graph) Len() int {
	return len(g.records)
}

// IDs returns every module ID, sorted.
func (g *Graph) IDs() []module.ID {
	return sortedIDs(slices.Collect(maps.Keys(g.records)))
}

// Records returns every record in ID order.
func (g *Graph) Records() []*module.Record {
	ids := g.IDs()
	recs := make([]*module.Record, len(ids))
	for i, id := range ids {
		recs[i] = g.records[id]
	}
	return recs
}

// Dependents returns the modules that directly import id, sorted.
func (g *Graph) Dependents(id module.ID) []module.ID {
	return slices.Clone(g.dependents[id])
}

// TransitiveDependents returns every module that directly or indirectly
// imports id, sorted.
func (g *Graph) TransitiveDependents(id module.ID) []module.ID {
	visited := map[module.ID]bool{id: true}
	queue := []module.ID{id}
	var result []module.ID
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, dep := range g.dependents[current] {
			if !visited[dep] {
				visited[dep] = true
				result = append(result, dep)
				queue = append(queue, dep)
			}
		}
	}
	return sortedIDs(result)
}

// ByPath returns the modules loaded from a file path. A file imported with
// different queries maps to several modules.
func (g *Graph) ByPath(path string) []module.ID {
	return slices.Clone(g.byPath[path])
}

// Cycles returns each import cycle as a sorted list of its members.
func (g *Graph) Cycles() [][]module.ID {
	out := make([][]module.ID, len(g.cycles))
	for i, c := range g.cycles {
		out[i] = slices.Clone(c)
	}
	return out
}

// Warnings returns a CycleWarning per cycle.
func (g *Graph) Warnings() []error {
	var warnings []error
	for _, c := range g.cycles {
		warnings = append(warnings, &CycleWarning{Cycle: slices.Clone(c)})
	}
	return warnings
}

// Errors returns every module-level error in module order: transform
// failures followed by the module's unresolved imports.
func (g *Graph) Errors() []error {
	var errs []error
	for _, rec := range g.Records() {
		if rec.Err != nil {
			errs = append(errs, rec.Err)
		}
		for _, e := range rec.Edges {
			if e.Err != nil {
				errs = append(errs, e.Err)
			}
		}
	}
	return errs
}

// Unresolved returns the modules with at least one import that failed to
// resolve.
func (g *Graph) Unresolved() []module.ID {
	var ids []module.ID
	for _, rec := range g.Records() {
		if slices.ContainsFunc(rec.Edges, func(e module.Edge) bool { return e.Err != nil }) {
			ids = append(ids, rec.ID)
		}
	}
	return ids
}

// Reachable returns the modules reachable from roots, including the roots
// that are present in the graph. With eagerOnly, deferred edges are not
// followed.
func (g *Graph) Reachable(roots []module.ID, eagerOnly bool) map[module.ID]bool {
	seen := make(map[module.ID]bool)
	queue := slices.Clone(roots)
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		rec, ok := g.records[id]
		if !ok || seen[id] {
			continue
		}
		seen[id] = true
		next := rec.Imports()
		if eagerOnly {
			next = rec.EagerImports()
		}
		queue = append(queue, next...)
	}
	return seen
}

// FailedEntry returns the first entry whose own processing failed.
func (g *Graph) FailedEntry() (module.ID, error) {
	for _, id := range g.entries {
		rec, ok := g.records[id]
		if !ok {
			return id, errors.New("entry module missing from graph")
		}
		if rec.Err != nil {
			return id, rec.Err
		}
	}
	return module.ID{}, nil
}

func sortedIDs(ids []module.ID) []module.ID {
	out := slices.Clone(ids)
	slices.SortFunc(out, module.Compare)
	return slices.CompactFunc(out, func(a, b module.ID) bool { return a == b })
}
