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
package hmr

import (
	"context"
	"encoding/json"
	"errors"
	"slices"
	"sync"

	"bennypowers.dev/bindle/graph"
	"bennypowers.dev/bindle/internal/logging"
	"bennypowers.dev/bindle/module"
)

// ErrUnknownModule is returned when invalidating a module not in the graph.
var ErrUnknownModule = errors.New("module is not in the graph")

// Event reports that a module's source changed.
type Event struct {
	Module module.ID
	// Fingerprint is the new content fingerprint, when the change detector
	// computed one. An event whose fingerprint matches the module's record
	// is ignored.
	Fingerprint string
}

// ModuleUpdate is the new output of one module.
type ModuleUpdate struct {
	Module      module.ID `json:"module"`
	Fingerprint string    `json:"fingerprint"`
	Code        string    `json:"code"`
}

// Update is the result of one rebuild. Modules are in dependency order:
// a module never precedes a module it imports.
type Update struct {
	// Manifest is the new runtime chunk table, set by the emitter when
	// chunk URLs changed. Consumers apply it before Modules.
	Manifest string
	Modules  []ModuleUpdate
	Removed  []module.ID
	// FullReload is set when some change cannot be applied in place.
	FullReload bool
	Reason     string
	// Errors are the transform and resolution failures of rebuilt modules.
	Errors []error
}

// Empty reports whether the update carries nothing to apply.
func (u *Update) Empty() bool {
	return u.Manifest == "" && len(u.Modules) == 0 && len(u.Removed) == 0 && !u.FullReload && len(u.Errors) == 0
}

// MarshalJSON encodes errors as strings.
func (u *Update) MarshalJSON() ([]byte, error) {
	errs := make([]string, len(u.Errors))
	for i, err := range u.Errors {
		errs[i] = err.Error()
	}
	return json.Marshal(struct {
		Manifest   string         `json:"manifest,omitempty"`
		Modules    []ModuleUpdate `json:"modules"`
		Removed    []module.ID    `json:"removed,omitempty"`
		FullReload bool           `json:"fullReload,omitempty"`
		Reason     string         `json:"reason,omitempty"`
		Errors     []string       `json:"errors,omitempty"`
	}{u.Manifest, u.Modules, u.Removed, u.FullReload, u.Reason, errs})
}

// Options configures a Coordinator.
type Options struct {
	// Accept decides which changes apply in place. Default HotAccept.
	Accept AcceptPolicy
	// Embeds decides which importers are resent with a changed module.
	// Default NoEmbeds.
	Embeds EmbedRule
	Logger logging.Logger
}

// Coordinator holds the live graph of a watch session and recomputes the
// modules affected by invalidation events.
type Coordinator struct {
	// rebuildMu serializes rebuilds; mu guards the fields below.
	rebuildMu sync.Mutex
	mu        sync.Mutex
	builder   *graph.Builder
	graph     *graph.Graph
	states    map[module.ID]State
	accept    AcceptPolicy
	embeds    EmbedRule
	logger    logging.Logger
}

// New creates a coordinator over an already built graph.
func New(builder *graph.Builder, g *graph.Graph, opts Options) *Coordinator {
	c := &Coordinator{
		builder: builder,
		graph:   g,
		states:  make(map[module.ID]State),
		accept:  opts.Accept,
		embeds:  opts.Embeds,
		logger:  logging.OrDiscard(opts.Logger),
	}
	if c.accept == nil {
		c.accept = HotAccept{}
	}
	if c.embeds == nil {
		c.embeds = NoEmbeds
	}
	return c
}

// Graph returns the current graph.
func (c *Coordinator) Graph() *graph.Graph {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.graph
}

// Replace swaps in a graph built from scratch and forgets all module
// states.
func (c *Coordinator) Replace(g *graph.Graph) {
	c.rebuildMu.Lock()
	defer c.rebuildMu.Unlock()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.graph = g
	clear(c.states)
}

// State returns the state of id. Modules never invalidated are Unchanged.
func (c *Coordinator) State(id module.ID) State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.states[id]
}

// Pending returns the invalidated modules awaiting a rebuild, sorted.
func (c *Coordinator) Pending() []module.ID {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pendingLocked()
}

func (c *Coordinator) pendingLocked() []module.ID {
	var ids []module.ID
	for id, s := range c.states {
		if s == Invalidated {
			ids = append(ids, id)
		}
	}
	slices.SortFunc(ids, module.Compare)
	return ids
}

// Invalidate marks the event's module for rebuilding. It reports false
// when the event is a no-op.
func (c *Coordinator) Invalidate(ev Event) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	rec, ok := c.graph.Get(ev.Module)
	if !ok {
		return false, ErrUnknownModule
	}
	state := c.states[ev.Module]
	switch {
	case state == Invalidated:
		return false, nil
	case state == Unchanged && ev.Fingerprint != "" && ev.Fingerprint == rec.Fingerprint:
		return false, nil
	}
	if err := transition(c.states, ev.Module, state, Invalidated); err != nil {
		return false, err
	}
	c.logger.Debug("Invalidated module", "module", ev.Module)
	return true, nil
}

// Rebuild recomputes every invalidated module and the modules newly
// imported by them. It never reprocesses modules that were not invalidated.
// Events arriving during a rebuild mark their modules for the next one. On
// error (cancellation) the graph is unchanged and the modules stay
// invalidated.
func (c *Coordinator) Rebuild(ctx context.Context) (*Update, error) {
	c.rebuildMu.Lock()
	defer c.rebuildMu.Unlock()

	c.mu.Lock()
	pending := c.pendingLocked()
	for _, id := range pending {
		if err := transition(c.states, id, Invalidated, Rebuilding); err != nil {
			c.mu.Unlock()
			return nil, err
		}
	}
	base := c.graph
	c.mu.Unlock()

	if len(pending) == 0 {
		return &Update{}, nil
	}

	next, delta, err := c.builder.Update(ctx, base, pending)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		for _, id := range pending {
			c.settle(id, Invalidated)
		}
		return nil, err
	}

	update := &Update{Removed: delta.Removed}
	var changed []module.ID
	for _, id := range pending {
		rec, ok := next.Get(id)
		switch {
		case !ok:
			// Dropped from the graph by the same rebuild.
			c.settle(id, Unchanged)
		case rec.Err != nil:
			update.Errors = append(update.Errors, rec.Err)
			c.settle(id, Failed)
		default:
			c.settle(id, Unchanged)
			if old, _ := base.Get(id); outputChanged(old, rec) {
				changed = append(changed, id)
			}
		}
	}
	for _, id := range delta.Recomputed {
		if rec, ok := next.Get(id); ok {
			for _, e := range rec.Edges {
				if e.Err != nil {
					update.Errors = append(update.Errors, e.Err)
				}
			}
		}
	}
	for _, id := range delta.Removed {
		delete(c.states, id)
	}

	c.graph = next
	update.Modules = c.orderedUpdates(next, changed, delta.Added)

	for _, id := range changed {
		if entry, ok := bubble(next, c.accept, id); !ok {
			update.FullReload = true
			update.Reason = "update of " + id.String() + " reached entry " + entry.String() + " without being accepted"
			break
		}
	}

	c.logger.Debug("Rebuilt modules",
		"invalidated", len(pending),
		"updates", len(update.Modules),
		"removed", len(update.Removed),
		"fullReload", update.FullReload)
	return update, nil
}

// outputChanged reports whether rec links differently from old: its
// content changed, it recovered from an error, or an import now resolves
// elsewhere.
func outputChanged(old, rec *module.Record) bool {
	if old.Err != nil || old.Fingerprint != rec.Fingerprint {
		return true
	}
	return !slices.EqualFunc(old.Edges, rec.Edges, func(a, b module.Edge) bool {
		return a.Specifier == b.Specifier && a.Resolved == b.Resolved && a.Kind == b.Kind
	})
}

// settle ends the rebuild of id. A module invalidated again while it was
// rebuilding stays invalidated.
func (c *Coordinator) settle(id module.ID, to State) {
	if c.states[id] != Rebuilding {
		return
	}
	if err := transition(c.states, id, Rebuilding, to); err != nil {
		c.logger.Warn("Rebuild state", "error", err)
	}
}

// orderedUpdates returns the changed and added modules plus the importers
// that embed them, with dependencies before dependents and ties broken by
// ID.
func (c *Coordinator) orderedUpdates(g *graph.Graph, changed, added []module.ID) []ModuleUpdate {
	set := make(map[module.ID]bool)
	for _, id := range slices.Concat(changed, added) {
		if rec, ok := g.Get(id); ok && rec.Err == nil {
			set[id] = true
		}
	}
	for _, id := range changed {
		child, _ := g.Get(id)
		for _, parentID := range g.Dependents(id) {
			parent, _ := g.Get(parentID)
			if parent.Err == nil && c.embeds(parent, child) {
				set[parentID] = true
			}
		}
	}

	order := topoOrder(g, set)
	updates := make([]ModuleUpdate, len(order))
	for i, id := range order {
		rec, _ := g.Get(id)
		updates[i] = ModuleUpdate{Module: id, Fingerprint: rec.Fingerprint, Code: string(rec.Code)}
	}
	return updates
}

// topoOrder sorts set with Kahn's algorithm over the edges between its
// members, emitting imports before importers. Members of a cycle are
// appended in ID order.
func topoOrder(g *graph.Graph, set map[module.ID]bool) []module.ID {
	pendingDeps := make(map[module.ID]int, len(set))
	importers := make(map[module.ID][]module.ID)
	for id := range set {
		rec, _ := g.Get(id)
		for _, dep := range rec.Imports() {
			if set[dep] && dep != id {
				pendingDeps[id]++
				importers[dep] = append(importers[dep], id)
			}
		}
	}

	var ready []module.ID
	for id := range set {
		if pendingDeps[id] == 0 {
			ready = append(ready, id)
		}
	}

	var order []module.ID
	done := make(map[module.ID]bool, len(set))
	for len(ready) > 0 {
		slices.SortFunc(ready, module.Compare)
		id := ready[0]
		ready = ready[1:]
		order = append(order, id)
		done[id] = true
		for _, imp := range importers[id] {
			pendingDeps[imp]--
			if pendingDeps[imp] == 0 {
				ready = append(ready, imp)
			}
		}
	}

	if len(order) < len(set) {
		var rest []module.ID
		for id := range set {
			if !done[id] {
				rest = append(rest, id)
			}
		}
		slices.SortFunc(rest, module.Compare)
		order = append(order, rest...)
	}
	return order
}
