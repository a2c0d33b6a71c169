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
	"fmt"
	"regexp"

	"bennypowers.dev/bindle/graph"
	"bennypowers.dev/bindle/module"
)

// AcceptPolicy decides which modules can be replaced in place.
type AcceptPolicy interface {
	// SelfAccepts reports whether rec handles its own replacement.
	SelfAccepts(rec *module.Record) bool
	// AcceptsDependency reports whether importer handles the replacement of
	// the module it imports as specifier.
	AcceptsDependency(importer *module.Record, specifier string) bool
}

var (
	selfAcceptPattern = regexp.MustCompile(`(?:module\.hot|import\.meta\.hot)\.accept\(\s*(?:\)|function\b|\(|async\b|[A-Za-z_$][\w$]*\s*=>)`)
	acceptCallPattern = regexp.MustCompile(`(?:module\.hot|import\.meta\.hot)\.accept\(\s*\[?([^)]*)`)
)

// HotAccept follows module.hot.accept semantics: accept() with no
// dependency list makes a module self-accepting, and accept("./dep") makes
// the caller accept updates of ./dep.
type HotAccept struct{}

func (HotAccept) SelfAccepts(rec *module.Record) bool {
	return selfAcceptPattern.Match(rec.Code)
}

func (HotAccept) AcceptsDependency(importer *module.Record, specifier string) bool {
	quoted := regexp.MustCompile(`["'` + "`" + `]` + regexp.QuoteMeta(specifier) + `["'` + "`" + `]`)
	for _, m := range acceptCallPattern.FindAllSubmatch(importer.Code, -1) {
		if quoted.Match(m[1]) {
			return true
		}
	}
	return false
}

// AlwaysAccept replaces every module in place.
type AlwaysAccept struct{}

func (AlwaysAccept) SelfAccepts(*module.Record) bool { return true }
func (AlwaysAccept) AcceptsDependency(*module.Record, string) bool { return true }

// NeverAccept makes every change a full reload.
type NeverAccept struct{}

func (NeverAccept) SelfAccepts(*module.Record) bool { return false }
func (NeverAccept) AcceptsDependency(*module.Record, string) bool { return false }

// ParseAcceptPolicy returns the policy with the given configuration name.
// The empty string selects HotAccept.
func ParseAcceptPolicy(name string) (AcceptPolicy, error) {
	switch name {
	case "", "hot-accept":
		return HotAccept{}, nil
	case "always":
		return AlwaysAccept{}, nil
	case "never":
		return NeverAccept{}, nil
	default:
		return nil, fmt.Errorf("unknown accept policy %q (want hot-accept, always, or never)", name)
	}
}

// EmbedRule reports whether parent's emitted output embeds the identity of
// child, so that parent must be resent when child changes.
type EmbedRule func(parent, child *module.Record) bool

// NoEmbeds is the default EmbedRule. Linked modules refer to their
// imports by module key only, and chunk URLs travel in Update.Manifest.
func NoEmbeds(*module.Record, *module.Record) bool {
	return false
}

// bubble walks from id toward the entries looking for a module that
// accepts the update. It returns the entry that was reached without one.
func bubble(g *graph.Graph, policy AcceptPolicy, id module.ID) (module.ID, bool) {
	visited := make(map[module.ID]bool)
	queue := []module.ID{id}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if visited[cur] {
			continue
		}
		visited[cur] = true

		rec, ok := g.Get(cur)
		if !ok {
			continue
		}
		if policy.SelfAccepts(rec) {
			continue
		}
		if g.IsEntry(cur) {
			return cur, false
		}
		for _, importerID := range g.Dependents(cur) {
			importer, _ := g.Get(importerID)
			accepted := false
			for _, e := range importer.Edges {
				if e.Resolved == cur && policy.AcceptsDependency(importer, e.Specifier) {
					accepted = true
					break
				}
			}
			if !accepted {
				queue = append(queue, importerID)
			}
		}
	}
	return module.ID{}, true
}
