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

// Package module defines the identities and records that make up a bindle
// dependency graph.
package module

import (
	"path/filepath"
	"strings"
)

// ExternalScheme prefixes the path of modules provided by the host page
// (externals and pre-bundled libraries) instead of the filesystem.
const ExternalScheme = "external:"

// ID is the canonical identity of a module: a cleaned absolute path plus an
// optional query that distinguishes loader variants of the same file.
type ID struct {
	Path  string
	Query string
}

// New returns an ID for path, cleaned, with the given query.
func New(path, query string) ID {
	if !strings.HasPrefix(path, ExternalScheme) {
		path = filepath.Clean(path)
	}
	return ID{Path: path, Query: strings.TrimPrefix(query, "?")}
}

// External returns the ID of a module provided by the host page under the
// given specifier.
func External(specifier string) ID {
	return ID{Path: ExternalScheme + specifier}
}

// Parse parses the String form of an ID.
func Parse(s string) ID {
	path, query, _ := strings.Cut(s, "?")
	return New(path, query)
}

// String returns the path, followed by "?query" when a query is set.
func (id ID) String() string {
	if id.Query == "" {
		return id.Path
	}
	return id.Path + "?" + id.Query
}

// IsZero reports whether the ID is unset.
func (id ID) IsZero() bool {
	return id.Path == "" && id.Query == ""
}

// IsExternal reports whether the module is supplied by the host page.
func (id ID) IsExternal() bool {
	return strings.HasPrefix(id.Path, ExternalScheme)
}

// ExternalName returns the specifier an external module was declared under.
func (id ID) ExternalName() string {
	return strings.TrimPrefix(id.Path, ExternalScheme)
}

// Ext returns the lower-cased file extension of the module path.
func (id ID) Ext() string {
	return strings.ToLower(filepath.Ext(id.Path))
}

// Less orders IDs by their string form.
func (id ID) Less(other ID) bool {
	return id.String() < other.String()
}

// Compare is a cmp-style comparison for slices.SortFunc.
func Compare(a, b ID) int {
	return strings.Compare(a.String(), b.String())
}

// MarshalText implements encoding.TextMarshaler.
func (id ID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *ID) UnmarshalText(text []byte) error {
	*id = Parse(string(text))
	return nil
}
