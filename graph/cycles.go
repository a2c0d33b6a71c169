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
	"fmt"
	"slices"
	"strings"

	"bennypowers.dev/bindle/module"
)

// CycleWarning reports an import cycle. It is informational.
type CycleWarning struct {
	Cycle []module.ID
}

func (w *CycleWarning) Error() string {
	names := make([]string, len(w.Cycle))
	for i, id := range w.Cycle {
		names[i] = id.String()
	}
	return "import cycle: " + strings.Join(names, " <-> ")
}

// flagCycles finds strongly connected components with Tarjan's algorithm
// and marks every edge inside a component as a cycle edge.
func (g *Graph) flagCycles() {
	t := tarjan{
		g:       g,
		index:   make(map[module.ID]int),
		lowlink: make(map[module.ID]int),
		onStack: make(map[module.ID]bool),
	}
	for _, id := range g.IDs() {
		if _, seen := t.index[id]; !seen {
			t.strongConnect(id)
		}
	}

	component := make(map[module.ID]int)
	for i, scc := range t.components {
		for _, id := range scc {
			component[id] = i
		}
	}

	for _, id := range g.IDs() {
		rec := g.records[id]
		c, inCycle := component[id]
		var flagged *module.Record
		for i, e := range rec.Edges {
			target, ok := component[e.Resolved]
			cycle := inCycle && ok && target == c && e.Err == nil
			if cycle == e.Cycle {
				continue
			}
			if flagged == nil {
				flagged = rec.Clone()
			}
			flagged.Edges[i].Cycle = cycle
		}
		if flagged != nil {
			g.records[id] = flagged
		}
	}

	g.cycles = t.components
	slices.SortFunc(g.cycles, func(a, b []module.ID) int {
		return module.Compare(a[0], b[0])
	})
}

type tarjan struct {
	g          *Graph
	counter    int
	index      map[module.ID]int
	lowlink    map[module.ID]int
	stack      []module.ID
	onStack    map[module.ID]bool
	components [][]module.ID
}

func (t *tarjan) strongConnect(v module.ID) {
	t.index[v] = t.counter
	t.lowlink[v] = t.counter
	t.counter++
	t.stack = append(t.stack, v)
	t.onStack[v] = true

	selfLoop := false
	for _, w := range t.g.records[v].Imports() {
		if _, ok := t.g.records[w]; !ok {
			continue
		}
		if w == v {
			selfLoop = true
		}
		if _, seen := t.index[w]; !seen {
			t.strongConnect(w)
			t.lowlink[v] = min(t.lowlink[v], t.lowlink[w])
		} else if t.onStack[w] {
			t.lowlink[v] = min(t.lowlink[v], t.index[w])
		}
	}

	if t.lowlink[v] != t.index[v] {
		return
	}
	var scc []module.ID
	for {
		w := t.stack[len(t.stack)-1]
		t.stack = t.stack[:len(t.stack)-1]
		t.onStack[w] = false
		scc = append(scc, w)
		if w == v {
			break
		}
	}
	if len(scc) > 1 || selfLoop {
		slices.SortFunc(scc, module.Compare)
		t.components = append(t.components, scc)
	}
}

// formatCycle summarizes a cycle for logs.
func formatCycle(c []module.ID) string {
	return fmt.Sprintf("%d modules starting at %s", len(c), c[0])
}
