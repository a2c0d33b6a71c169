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
package bundle

import (
	"bennypowers.dev/bindle/chunk"
	"bennypowers.dev/bindle/module"
)

// Report is the JSON view of a build result.
type Report struct {
	Entries  []module.ID    `json:"entries"`
	Modules  []ModuleReport `json:"modules"`
	Cycles   [][]module.ID  `json:"cycles,omitempty"`
	Chunks   []ChunkReport  `json:"chunks"`
	Errors   []string       `json:"errors,omitempty"`
	Warnings []string       `json:"warnings,omitempty"`
}

// ModuleReport describes one module in the graph.
type ModuleReport struct {
	ID          module.ID      `json:"id"`
	Fingerprint string         `json:"fingerprint,omitempty"`
	Size        int            `json:"size"`
	Imports     []ImportReport `json:"imports,omitempty"`
	Error       string         `json:"error,omitempty"`
}

// ImportReport describes one import of a module.
type ImportReport struct {
	Specifier string          `json:"specifier"`
	Resolved  module.ID       `json:"resolved,omitzero"`
	Kind      module.EdgeKind `json:"kind"`
	Line      int             `json:"line,omitempty"`
	Prefetch  bool            `json:"prefetch,omitempty"`
	Cycle     bool            `json:"cycle,omitempty"`
	Error     string          `json:"error,omitempty"`
}

// ChunkReport describes one chunk.
type ChunkReport struct {
	Name     string      `json:"name"`
	Kind     chunk.Kind  `json:"kind"`
	Modules  []module.ID `json:"modules"`
	Size     int         `json:"size"`
	Requires []string    `json:"requires,omitempty"`
	Async    []string    `json:"async,omitempty"`
}

// Report summarizes r for display.
func (r *Result) Report() *Report {
	g := r.Graph
	rep := &Report{
		Entries:  g.Entries(),
		Modules:  make([]ModuleReport, 0, g.Len()),
		Cycles:   g.Cycles(),
		Chunks:   make([]ChunkReport, 0, len(r.Chunks)),
		Errors:   messages(r.Errors),
		Warnings: messages(r.Warnings),
	}
	for _, rec := range g.Records() {
		m := ModuleReport{ID: rec.ID, Fingerprint: rec.Fingerprint, Size: rec.Size()}
		if rec.Err != nil {
			m.Error = rec.Err.Error()
		}
		for _, e := range rec.Edges {
			imp := ImportReport{
				Specifier: e.Specifier,
				Resolved:  e.Resolved,
				Kind:      e.Kind,
				Line:      e.Line,
				Prefetch:  e.Prefetch,
				Cycle:     e.Cycle,
			}
			if e.Err != nil {
				imp.Error = e.Err.Error()
			}
			m.Imports = append(m.Imports, imp)
		}
		rep.Modules = append(rep.Modules, m)
	}
	for _, c := range r.Chunks {
		rep.Chunks = append(rep.Chunks, ChunkReport{
			Name:     c.Name,
			Kind:     c.Kind,
			Modules:  c.Modules,
			Size:     c.Size,
			Requires: c.Requires,
			Async:    c.Async,
		})
	}
	return rep
}

func messages(errs []error) []string {
	if len(errs) == 0 {
		return nil
	}
	out := make([]string, len(errs))
	for i, err := range errs {
		out[i] = err.Error()
	}
	return out
}
