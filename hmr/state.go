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

// Package hmr coordinates incremental rebuilds of a dependency graph and
// produces ordered hot-update lists for a live-update client.
package hmr

import (
	"fmt"

	"bennypowers.dev/bindle/module"
)

// State is the rebuild state of one watched module.
type State int

const (
	Unchanged State = iota
	Invalidated
	Rebuilding
	Failed
)

func (s State) String() string {
	switch s {
	case Unchanged:
		return "unchanged"
	case Invalidated:
		return "invalidated"
	case Rebuilding:
		return "rebuilding"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// transition performs a validated transition. The caller supplies the
// expected prior state so lost updates are observable.
func transition(states map[module.ID]State, id module.ID, from, to State) error {
	cur := states[id]
	if cur != from {
		return fmt.Errorf("invalid transition for %s: expected %s, got %s", id, from, cur)
	}
	if !isAllowedTransition(from, to) {
		return fmt.Errorf("disallowed transition for %s: %s -> %s", id, from, to)
	}
	if to == Unchanged {
		delete(states, id)
	} else {
		states[id] = to
	}
	return nil
}

func isAllowedTransition(from, to State) bool {
	switch from {
	case Unchanged, Failed:
		return to == Invalidated
	case Invalidated:
		return to == Rebuilding
	case Rebuilding:
		// Invalidated again when a cancelled rebuild is superseded.
		return to == Unchanged || to == Failed || to == Invalidated
	default:
		return false
	}
}
