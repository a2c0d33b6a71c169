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
	"testing"

	"bennypowers.dev/bindle/module"
)

func TestTransition(t *testing.T) {
	id := module.New("/p/a.js", "")
	tests := []struct {
		from, to State
		ok       bool
	}{
		{Unchanged, Invalidated, true},
		{Invalidated, Rebuilding, true},
		{Rebuilding, Unchanged, true},
		{Rebuilding, Failed, true},
		{Rebuilding, Invalidated, true},
		{Failed, Invalidated, true},
		{Unchanged, Rebuilding, false},
		{Invalidated, Unchanged, false},
		{Failed, Unchanged, false},
	}
	for _, tt := range tests {
		t.Run(tt.from.String()+"->"+tt.to.String(), func(t *testing.T) {
			states := map[module.ID]State{}
			if tt.from != Unchanged {
				states[id] = tt.from
			}
			err := transition(states, id, tt.from, tt.to)
			if (err == nil) != tt.ok {
				t.Fatalf("transition() error = %v, want ok = %v", err, tt.ok)
			}
			if tt.ok && states[id] != tt.to {
				t.Errorf("Expected state %s, got %s", tt.to, states[id])
			}
		})
	}

	t.Run("stale from", func(t *testing.T) {
		states := map[module.ID]State{id: Rebuilding}
		if err := transition(states, id, Invalidated, Rebuilding); err == nil {
			t.Error("Expected error for stale prior state")
		}
	})
}

func TestHotAcceptPatterns(t *testing.T) {
	rec := func(code string) *module.Record {
		return &module.Record{Code: []byte(code)}
	}
	policy := HotAccept{}

	selfAccepting := []string{
		"module.hot.accept()",
		"import.meta.hot.accept((mod) => render(mod))",
		"if (module.hot) module.hot.accept(function () {})",
		"import.meta.hot.accept(cb => cb())",
	}
	for _, code := range selfAccepting {
		if !policy.SelfAccepts(rec(code)) {
			t.Errorf("Expected %q to self-accept", code)
		}
	}
	if policy.SelfAccepts(rec("module.hot.accept('./dep.js', render)")) {
		t.Error("Dependency accept must not self-accept")
	}

	importer := rec("module.hot.accept(['./a.js', \"./b.js\"], render)")
	for _, spec := range []string{"./a.js", "./b.js"} {
		if !policy.AcceptsDependency(importer, spec) {
			t.Errorf("Expected importer to accept %s", spec)
		}
	}
	if policy.AcceptsDependency(importer, "./c.js") {
		t.Error("Unexpected accept of ./c.js")
	}
}
