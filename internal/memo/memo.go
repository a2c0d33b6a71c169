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

// Package memo provides a claim-ticket group: the first caller for a key runs
// the computation and every concurrent or later caller receives its result.
package memo

import "sync"

// ticket holds a computed value and coordinates concurrent loading.
type ticket[V any] struct {
	val  V
	err  error
	once sync.Once
}

// Group deduplicates work by key. The zero value is ready to use.
type Group[K comparable, V any] struct {
	tickets sync.Map // map[K]*ticket[V]
}

// Do returns the result of load for key, running load at most once per key
// until Forget is called. The second return value reports whether this call
// claimed the ticket and ran load.
func (g *Group[K, V]) Do(key K, load func() (V, error)) (V, bool, error) {
	actual, _ := g.tickets.LoadOrStore(key, &ticket[V]{})
	t := actual.(*ticket[V])

	claimed := false
	t.once.Do(func() {
		claimed = true
		t.val, t.err = load()
	})
	return t.val, claimed, t.err
}

// Claimed reports whether a ticket exists for key.
func (g *Group[K, V]) Claimed(key K) bool {
	_, ok := g.tickets.Load(key)
	return ok
}

// Forget drops the ticket for key so the next Do runs load again.
func (g *Group[K, V]) Forget(key K) {
	g.tickets.Delete(key)
}

// Reset drops every ticket.
func (g *Group[K, V]) Reset() {
	g.tickets.Clear()
}
