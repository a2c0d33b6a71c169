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

// Package chunk partitions a dependency graph into output chunks.
package chunk

import (
	"fmt"
	"maps"
	"path/filepath"
	"slices"
	"strings"

	"bennypowers.dev/bindle/fingerprint"
	"bennypowers.dev/bindle/graph"
	"bennypowers.dev/bindle/module"
)

// Kind is the role of a chunk.
type Kind int

const (
	Entry Kind = iota
	Shared
	Async
)

func (k Kind) String() string {
	switch k {
	case Entry:
		return "entry"
	case Shared:
		return "shared"
	case Async:
		return "async"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Chunk is one output unit. Each module in the graph is owned by exactly
// one chunk.
type Chunk struct {
	Name string
	Kind Kind
	// Roots are the entry or deferred-import targets the chunk was seeded
	// from. Shared chunks have none.
	Roots []module.ID
	// Modules are the owned modules, sorted by ID.
	Modules []module.ID
	// Fingerprint combines the fingerprints of the owned modules.
	Fingerprint string
	Size        int
	// Refs are modules imported eagerly by this chunk but owned by another.
	Refs []module.ID
	// Requires names the chunks owning Refs; they load before this one.
	Requires []string
	// Async names the chunks this chunk loads on demand.
	Async []string
	// Prefetch is the subset of Async the runtime fetches ahead of use.
	Prefetch []string
}

// Contains reports whether the chunk owns id.
func (c *Chunk) Contains(id module.ID) bool {
	_, ok := slices.BinarySearchFunc(c.Modules, id, module.Compare)
	return ok
}

// PartitionPrecondition reports a graph that cannot be partitioned.
type PartitionPrecondition struct {
	Reason string
}

func (e *PartitionPrecondition) Error() string {
	return "cannot partition graph: " + e.Reason
}

// Options configures partitioning.
type Options struct {
	// SharedThreshold extracts a module into a shared chunk when its size
	// times the number of entry chunks retaining it exceeds this many bytes.
	// Zero disables the size rule.
	SharedThreshold int
	Fingerprint     fingerprint.Algorithm
}

// Partition assigns every module of g to a chunk. Entry chunks come first,
// then shared chunks, then async chunks, each group sorted by name.
func Partition(g *graph.Graph, opts Options) ([]*Chunk, error) {
	entries := g.Entries()
	if len(entries) == 0 {
		return nil, &PartitionPrecondition{Reason: "no entry modules"}
	}
	for _, e := range entries {
		if !g.Has(e) {
			return nil, &PartitionPrecondition{Reason: fmt.Sprintf("entry %s is not in the graph", e)}
		}
	}
	if opts.Fingerprint == "" {
		opts.Fingerprint = fingerprint.Default
	}

	p := &partitioner{
		g:     g,
		opts:  opts,
		owner: make(map[module.ID]*Chunk),
		names: make(map[string]bool),
	}

	// Entry chunks, with modules retained by several entries (or too large
	// to duplicate) moved to shared chunks.
	var entryGroups []group
	for _, e := range entries {
		entryGroups = append(entryGroups, group{name: baseName(e), roots: []module.ID{e}})
	}
	entryChunks, entryShared := p.assign(entryGroups, Entry, true)

	// Async chunks for deferred targets not already loaded by an entry.
	asyncChunks, asyncShared := p.assign(p.asyncGroups(), Async, false)

	chunks := slices.Concat(entryChunks, entryShared, asyncChunks, asyncShared)
	slices.SortFunc(chunks, func(a, b *Chunk) int {
		if a.Kind != b.Kind {
			return int(a.Kind) - int(b.Kind)
		}
		return strings.Compare(a.Name, b.Name)
	})

	for _, c := range chunks {
		p.finish(c)
	}
	return chunks, nil
}

type group struct {
	name  string
	roots []module.ID
}

type partitioner struct {
	g     *graph.Graph
	opts  Options
	owner map[module.ID]*Chunk
	names map[string]bool
}

// assign creates one chunk per group owning every unclaimed module eagerly
// reachable from the group's roots. Traversal stops at other groups' roots.
// Modules reachable from several groups go to shared chunks keyed by the
// set of groups retaining them.
func (p *partitioner) assign(groups []group, kind Kind, sizeRule bool) (chunks, shared []*Chunk) {
	isRoot := make(map[module.ID]int)
	for i, grp := range groups {
		for _, r := range grp.roots {
			isRoot[r] = i
		}
	}

	retainedBy := make(map[module.ID][]int)
	for i, grp := range groups {
		for id := range p.reach(grp.roots, func(id module.ID) bool {
			j, ok := isRoot[id]
			return ok && j != i
		}) {
			retainedBy[id] = append(retainedBy[id], i)
		}
	}

	for _, grp := range groups {
		c := &Chunk{Name: p.uniqueName(grp.name), Kind: kind, Roots: grp.roots}
		chunks = append(chunks, c)
	}

	sharedByKey := make(map[string]*Chunk)
	for _, id := range sortedKeys(retainedBy) {
		owners := retainedBy[id]
		if i, ok := isRoot[id]; ok {
			p.claim(chunks[i], id)
			continue
		}
		extract := len(owners) > 1
		if sizeRule && p.opts.SharedThreshold > 0 {
			rec, _ := p.g.Get(id)
			extract = extract || rec.Size()*len(owners) > p.opts.SharedThreshold
		}
		if !extract {
			p.claim(chunks[owners[0]], id)
			continue
		}
		names := make([]string, len(owners))
		for k, i := range owners {
			names[k] = chunks[i].Name
		}
		key := strings.Join(names, "~")
		c, ok := sharedByKey[key]
		if !ok {
			c = &Chunk{Name: p.uniqueName("shared~" + key), Kind: Shared}
			sharedByKey[key] = c
			shared = append(shared, c)
		}
		p.claim(c, id)
	}
	return chunks, shared
}

// asyncGroups collects the deferred-edge targets not owned by an entry or
// shared chunk, grouping targets that request the same chunk name.
func (p *partitioner) asyncGroups() []group {
	requested := make(map[module.ID]string)
	for _, rec := range p.g.Records() {
		for _, e := range rec.Edges {
			if e.Kind != module.Deferred || e.Err != nil || !p.g.Has(e.Resolved) {
				continue
			}
			if _, owned := p.owner[e.Resolved]; owned {
				continue
			}
			if name, seen := requested[e.Resolved]; !seen || (name == "" && e.ChunkName != "") {
				requested[e.Resolved] = e.ChunkName
			}
		}
	}

	byName := make(map[string]*group)
	var groups []*group
	for _, id := range sortedKeys(requested) {
		name := requested[id]
		if name == "" {
			groups = append(groups, &group{name: "async-" + baseName(id), roots: []module.ID{id}})
			continue
		}
		if grp, ok := byName[name]; ok {
			grp.roots = append(grp.roots, id)
			continue
		}
		grp := &group{name: name, roots: []module.ID{id}}
		byName[name] = grp
		groups = append(groups, grp)
	}

	out := make([]group, len(groups))
	for i, grp := range groups {
		out[i] = *grp
	}
	return out
}

// reach returns the unclaimed modules eagerly reachable from roots without
// passing through modules for which stop returns true.
func (p *partitioner) reach(roots []module.ID, stop func(module.ID) bool) map[module.ID]bool {
	seen := make(map[module.ID]bool)
	queue := slices.Clone(roots)
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if seen[id] || stop(id) {
			continue
		}
		if _, owned := p.owner[id]; owned {
			continue
		}
		rec, ok := p.g.Get(id)
		if !ok {
			continue
		}
		seen[id] = true
		queue = append(queue, rec.EagerImports()...)
	}
	return seen
}

func (p *partitioner) claim(c *Chunk, id module.ID) {
	p.owner[id] = c
	c.Modules = append(c.Modules, id)
}

func (p *partitioner) uniqueName(name string) string {
	candidate := name
	for i := 2; p.names[candidate]; i++ {
		candidate = fmt.Sprintf("%s~%d", name, i)
	}
	p.names[candidate] = true
	return candidate
}

// finish sorts the chunk's modules and computes its fingerprint, size, and
// links to other chunks.
func (p *partitioner) finish(c *Chunk) {
	slices.SortFunc(c.Modules, module.Compare)

	parts := make([]string, len(c.Modules))
	refs := make(map[module.ID]bool)
	requires := make(map[string]bool)
	async := make(map[string]bool)
	prefetch := make(map[string]bool)

	for i, id := range c.Modules {
		rec, _ := p.g.Get(id)
		parts[i] = id.String() + ":" + rec.Fingerprint
		c.Size += rec.Size()
		for _, e := range rec.Edges {
			target, ok := p.owner[e.Resolved]
			if e.Err != nil || !ok || target == c {
				continue
			}
			if e.Kind == module.Deferred {
				async[target.Name] = true
				if e.Prefetch {
					prefetch[target.Name] = true
				}
				continue
			}
			refs[e.Resolved] = true
			requires[target.Name] = true
		}
	}

	c.Fingerprint = p.opts.Fingerprint.CombineSorted(parts)
	c.Refs = sortedKeys(refs)
	c.Requires = slices.Sorted(maps.Keys(requires))
	c.Async = slices.Sorted(maps.Keys(async))
	c.Prefetch = slices.Sorted(maps.Keys(prefetch))
}

// Owner returns the chunk that owns id.
func Owner(chunks []*Chunk, id module.ID) (*Chunk, bool) {
	for _, c := range chunks {
		if c.Contains(id) {
			return c, true
		}
	}
	return nil, false
}

// ByName returns the chunk with the given name.
func ByName(chunks []*Chunk, name string) (*Chunk, bool) {
	for _, c := range chunks {
		if c.Name == name {
			return c, true
		}
	}
	return nil, false
}

func baseName(id module.ID) string {
	if id.IsExternal() {
		return strings.ReplaceAll(id.ExternalName(), "/", "-")
	}
	base := filepath.Base(id.Path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func sortedKeys[V any](m map[module.ID]V) []module.ID {
	keys := slices.Collect(maps.Keys(m))
	slices.SortFunc(keys, module.Compare)
	return keys
}
