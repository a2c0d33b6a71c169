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
	lru "github.com/hashicorp/golang-lru/v2"

	"bennypowers.dev/bindle/module"
	"bennypowers.dev/bindle/transform"
)

// DefaultMemoSize is the default number of pipeline outputs kept across
// builds.
const DefaultMemoSize = 4096

type memoKey struct {
	id          module.ID
	fingerprint string
	configKey   string
}

// Memo is a bounded cache of pipeline outputs keyed by module, content
// fingerprint, and transform configuration. A nil *Memo caches nothing.
type Memo struct {
	cache *lru.Cache[memoKey, *transform.Output]
}

// NewMemo creates a memo holding up to size outputs.
func NewMemo(size int) (*Memo, error) {
	if size <= 0 {
		size = DefaultMemoSize
	}
	cache, err := lru.New[memoKey, *transform.Output](size)
	if err != nil {
		return nil, err
	}
	return &Memo{cache: cache}, nil
}

// Get returns the memoized output for a module at a fingerprint under a
// transform configuration.
func (m *Memo) Get(id module.ID, fingerprint, configKey string) (*transform.Output, bool) {
	if m == nil {
		return nil, false
	}
	return m.cache.Get(memoKey{id, fingerprint, configKey})
}

// Add stores an output.
func (m *Memo) Add(id module.ID, fingerprint, configKey string, out *transform.Output) {
	if m == nil {
		return
	}
	m.cache.Add(memoKey{id, fingerprint, configKey}, out)
}

// Forget drops every output memoized for id.
func (m *Memo) Forget(id module.ID) {
	if m == nil {
		return
	}
	for _, key := range m.cache.Keys() {
		if key.id == id {
			m.cache.Remove(key)
		}
	}
}

// Len returns the number of memoized outputs.
func (m *Memo) Len() int {
	if m == nil {
		return 0
	}
	return m.cache.Len()
}

// Purge empties the memo.
func (m *Memo) Purge() {
	if m != nil {
		m.cache.Purge()
	}
}
