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

// Package dll builds and reads pre-bundled library manifests. A DLL bundle
// holds a set of libraries built once; later builds treat those libraries as
// externals backed by the bundle's exported require function.
package dll

import (
	"encoding/json"
	"fmt"
	"maps"
	"sort"

	"bennypowers.dev/bindle/fs"
)

// Manifest describes a built DLL bundle.
type Manifest struct {
	// Name is the global the bundle assigns its require function to.
	Name string `json:"name"`

	// File is the emitted bundle, relative to the output directory.
	File string `json:"file,omitempty"`

	// Libraries maps library specifiers to the expression that evaluates to
	// their exports.
	Libraries map[string]string `json:"libraries,omitempty"`

	// Modules maps the key of each bundled module to its content
	// fingerprint.
	Modules map[string]string `json:"modules,omitempty"`
}

// Parse parses JSON data into a Manifest.
func Parse(data []byte) (*Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	if m.Name == "" {
		return nil, fmt.Errorf("manifest has no name")
	}
	return &m, nil
}

// Load reads and parses the manifest at path.
func Load(fsys fs.FileSystem, path string) (*Manifest, error) {
	data, err := fsys.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}
	m, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parsing manifest %s: %w", path, err)
	}
	return m, nil
}

// LoadAll loads manifests in order.
func LoadAll(fsys fs.FileSystem, paths []string) ([]*Manifest, error) {
	manifests := make([]*Manifest, 0, len(paths))
	for _, p := range paths {
		m, err := Load(fsys, p)
		if err != nil {
			return nil, err
		}
		manifests = append(manifests, m)
	}
	return manifests, nil
}

// Merge combines this manifest with another, with the other taking
// precedence. The result is a new Manifest; neither input is modified.
func (m *Manifest) Merge(other *Manifest) *Manifest {
	if m == nil {
		if other == nil {
			return &Manifest{}
		}
		return other.Clone()
	}
	if other == nil {
		return m.Clone()
	}

	result := &Manifest{
		Name:      other.Name,
		File:      other.File,
		Libraries: make(map[string]string),
		Modules:   make(map[string]string),
	}
	maps.Copy(result.Libraries, m.Libraries)
	maps.Copy(result.Libraries, other.Libraries)
	maps.Copy(result.Modules, m.Modules)
	maps.Copy(result.Modules, other.Modules)

	if len(result.Libraries) == 0 {
		result.Libraries = nil
	}
	if len(result.Modules) == 0 {
		result.Modules = nil
	}
	return result
}

// Clone creates a deep copy of the manifest.
func (m *Manifest) Clone() *Manifest {
	if m == nil {
		return nil
	}
	return &Manifest{
		Name:      m.Name,
		File:      m.File,
		Libraries: maps.Clone(m.Libraries),
		Modules:   maps.Clone(m.Modules),
	}
}

// Specifiers returns the library specifiers in sorted order.
func (m *Manifest) Specifiers() []string {
	specs := make([]string, 0, len(m.Libraries))
	for spec := range m.Libraries {
		specs = append(specs, spec)
	}
	sort.Strings(specs)
	return specs
}

// ToJSON converts the manifest to an indented JSON string.
func (m *Manifest) ToJSON() string {
	if m == nil {
		return ""
	}
	bytes, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return ""
	}
	return string(bytes)
}

// Externals builds the externals table for a build that references
// manifests. Later manifests override earlier ones, and explicit entries
// override every manifest.
func Externals(explicit map[string]string, manifests ...*Manifest) map[string]string {
	out := make(map[string]string)
	for _, m := range manifests {
		if m != nil {
			maps.Copy(out, m.Libraries)
		}
	}
	maps.Copy(out, explicit)
	if len(out) == 0 {
		return nil
	}
	return out
}
