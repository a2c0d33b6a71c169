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
package module

import "slices"

// EdgeKind classifies an import relationship.
type EdgeKind int

const (
	// Eager edges are loaded unconditionally with their importer.
	Eager EdgeKind = iota
	// Deferred edges are loaded on demand at runtime.
	Deferred
)

// String returns the lower-case name of the kind.
func (k EdgeKind) String() string {
	switch k {
	case Eager:
		return "eager"
	case Deferred:
		return "deferred"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k EdgeKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Edge is one outgoing import of a module.
type Edge struct {
	Specifier string
	Resolved  ID
	Kind      EdgeKind
	// Prefetch marks deferred imports the runtime should fetch ahead of use.
	Prefetch bool
	// ChunkName is the requested name of the async chunk a deferred edge
	// starts.
	ChunkName string
	// Cycle is set when the edge participates in an import cycle.
	Cycle bool
	// Line is the 1-indexed source line of the import, when known.
	Line int
	// Err holds the resolution failure for this import, if any.
	Err error
}

// Artifact is an auxiliary output attached to a module, such as an image
// copied by the asset stage.
type Artifact struct {
	VirtualPath string
	Bytes       []byte
}

// Record is the immutable result of processing one module. Records are
// replaced wholesale, never mutated after they are published to a graph.
type Record struct {
	ID          ID
	Fingerprint string
	// ConfigKey identifies the transform configuration that produced Code.
	ConfigKey string
	Edges     []Edge
	Code      []byte
	SourceMap []byte
	Artifacts []Artifact
	// Err is the transform failure for this module, if any.
	Err error
}

// Size is the byte size of the transformed code.
func (r *Record) Size() int {
	if r == nil {
		return 0
	}
	return len(r.Code)
}

// Clone returns a copy of r whose Edges and Artifacts can be modified
// without affecting r. Code and SourceMap are shared.
func (r *Record) Clone() *Record {
	c := *r
	c.Edges = slices.Clone(r.Edges)
	c.Artifacts = slices.Clone(r.Artifacts)
	return &c
}

// Imports returns the resolved targets of all successfully resolved edges,
// in edge order, without duplicates.
func (r *Record) Imports() []ID {
	seen := make(map[ID]bool, len(r.Edges))
	var ids []ID
	for _, e := range r.Edges {
		if e.Err != nil || e.Resolved.IsZero() || seen[e.Resolved] {
			continue
		}
		seen[e.Resolved] = true
		ids = append(ids, e.Resolved)
	}
	return ids
}

// EagerImports is like Imports but only follows eager edges.
func (r *Record) EagerImports() []ID {
	seen := make(map[ID]bool, len(r.Edges))
	var ids []ID
	for _, e := range r.Edges {
		if e.Kind != Eager || e.Err != nil || e.Resolved.IsZero() || seen[e.Resolved] {
			continue
		}
		seen[e.Resolved] = true
		ids = append(ids, e.Resolved)
	}
	return ids
}
