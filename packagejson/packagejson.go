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
// Package packagejson parses package.json files and resolves their entry
// points, "exports" and "imports" maps.
package packagejson

import (
	"encoding/json"
	"errors"
	"sort"
	"strings"

	"bennypowers.dev/bindle/fs"
)

// workspacesObjectFormat is the yarn classic form {"packages": [...], "nohoist": [...]}.
type workspacesObjectFormat struct {
	Packages []string `json:"packages"`
}

// ErrNotExported is returned when a subpath is not exported by the package.
var ErrNotExported = errors.New("not exported by package.json")

// DefaultConditions is the export condition priority for browser bundles.
var DefaultConditions = []string{"browser", "import", "module", "default"}

// DefaultMainFields is the entry field priority used when a package has no
// "exports" map.
var DefaultMainFields = []string{"browser", "module", "main"}

// ResolveOptions configures how conditional exports are resolved.
type ResolveOptions struct {
	// Conditions is the ordered list of conditions to try. Nil means DefaultConditions.
	Conditions []string
}

func (o *ResolveOptions) conditions() []string {
	if o != nil && len(o.Conditions) > 0 {
		return o.Conditions
	}
	return DefaultConditions
}

// PackageJSON is the subset of package.json bindle reads.
type PackageJSON struct {
	Name             string            `json:"name"`
	Version          string            `json:"version"`
	Main             string            `json:"main,omitempty"`
	Module           string            `json:"module,omitempty"`
	Browser          any               `json:"browser,omitempty"`
	Exports          any               `json:"exports,omitempty"`
	Imports          any               `json:"imports,omitempty"`
	Dependencies     map[string]string `json:"dependencies,omitempty"`
	DevDependencies  map[string]string `json:"devDependencies,omitempty"`
	PeerDependencies map[string]string `json:"peerDependencies,omitempty"`
	RawWorkspaces    json.RawMessage   `json:"workspaces,omitempty"`
}

// Parse parses package.json data.
func Parse(data []byte) (*PackageJSON, error) {
	var pkg PackageJSON
	if err := json.Unmarshal(data, &pkg); err != nil {
		return nil, err
	}
	return &pkg, nil
}

// ParseFile parses a package.json file.
func ParseFile(fsys fs.FileSystem, path string) (*PackageJSON, error) {
	data, err := fsys.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// WorkspacePatterns returns the workspace globs in either the array or the
// yarn object format.
func (pkg *PackageJSON) WorkspacePatterns() []string {
	if len(pkg.RawWorkspaces) == 0 {
		return nil
	}
	var patterns []string
	if err := json.Unmarshal(pkg.RawWorkspaces, &patterns); err == nil {
		return patterns
	}
	var obj workspacesObjectFormat
	if err := json.Unmarshal(pkg.RawWorkspaces, &obj); err == nil {
		return obj.Packages
	}
	return nil
}

// DependsOn reports whether name is listed in dependencies or peerDependencies.
func (pkg *PackageJSON) DependsOn(name string) bool {
	if _, ok := pkg.Dependencies[name]; ok {
		return true
	}
	_, ok := pkg.PeerDependencies[name]
	return ok
}

// EntryPoint returns the package entry named by the first present field in
// mainFields, without a leading "./". A string "browser" field counts; the
// object form only remaps files and is ignored here.
func (pkg *PackageJSON) EntryPoint(mainFields []string) string {
	if len(mainFields) == 0 {
		mainFields = DefaultMainFields
	}
	for _, field := range mainFields {
		var v string
		switch field {
		case "browser":
			v, _ = pkg.Browser.(string)
		case "module":
			v = pkg.Module
		case "main":
			v = pkg.Main
		}
		if v != "" {
			return trimDotSlash(v)
		}
	}
	return ""
}

// ResolveExport resolves a subpath ("." or "./sub") through the exports map.
// Returns the target without a leading "./". Packages without "exports" fall
// back to their main entry for ".". Pass nil opts for DefaultConditions.
func (pkg *PackageJSON) ResolveExport(subpath string, opts *ResolveOptions) (string, error) {
	if pkg.Exports == nil {
		if subpath == "." {
			if entry := pkg.EntryPoint([]string{"module", "main"}); entry != "" {
				return entry, nil
			}
		}
		return "", ErrNotExported
	}

	exportsMap, isMap := pkg.Exports.(map[string]any)
	if !isMap || !hasSubpathKeys(exportsMap) {
		// String, array, or condition-only exports describe "." alone.
		if subpath != "." {
			return "", ErrNotExported
		}
		return resolveTarget(pkg.Exports, "", opts)
	}
	return resolveMapped(exportsMap, subpath, opts)
}

// ResolveImport resolves a "#internal" specifier through the imports map.
func (pkg *PackageJSON) ResolveImport(specifier string, opts *ResolveOptions) (string, error) {
	importsMap, ok := pkg.Imports.(map[string]any)
	if !ok || !strings.HasPrefix(specifier, "#") {
		return "", ErrNotExported
	}
	return resolveMapped(importsMap, specifier, opts)
}

// resolveMapped looks key up in a subpath map. Exact keys win; otherwise the
// wildcard pattern with the longest prefix is used, as Node does.
func resolveMapped(m map[string]any, key string, opts *ResolveOptions) (string, error) {
	if target, ok := m[key]; ok && !strings.Contains(key, "*") {
		return resolveTarget(target, "", opts)
	}

	patterns := make([]string, 0, len(m))
	for p := range m {
		if strings.Count(p, "*") == 1 {
			patterns = append(patterns, p)
		}
	}
	sort.Slice(patterns, func(i, j int) bool {
		pi := strings.Index(patterns[i], "*")
		pj := strings.Index(patterns[j], "*")
		if pi != pj {
			return pi > pj
		}
		return len(patterns[i]) > len(patterns[j])
	})

	for _, p := range patterns {
		prefix, suffix, _ := strings.Cut(p, "*")
		if len(key) < len(prefix)+len(suffix) {
			continue
		}
		if !strings.HasPrefix(key, prefix) || !strings.HasSuffix(key, suffix) {
			continue
		}
		match := key[len(prefix) : len(key)-len(suffix)]
		return resolveTarget(m[p], match, opts)
	}

	return "", ErrNotExported
}

// resolveTarget resolves a target value: a string (with "*" replaced by
// match), a condition map, or a fallback array. A null target blocks the
// subpath.
func resolveTarget(value any, match string, opts *ResolveOptions) (string, error) {
	switch v := value.(type) {
	case string:
		if match != "" {
			v = strings.ReplaceAll(v, "*", match)
		}
		return trimDotSlash(v), nil
	case map[string]any:
		for _, cond := range opts.conditions() {
			if target, ok := v[cond]; ok {
				if resolved, err := resolveTarget(target, match, opts); err == nil {
					return resolved, nil
				}
			}
		}
	case []any:
		for _, item := range v {
			if resolved, err := resolveTarget(item, match, opts); err == nil {
				return resolved, nil
			}
		}
	}
	return "", ErrNotExported
}

func hasSubpathKeys(m map[string]any) bool {
	for key := range m {
		if strings.HasPrefix(key, ".") {
			return true
		}
	}
	return false
}

// trimDotSlash removes a leading "./" from a path.
func trimDotSlash(path string) string {
	return strings.TrimPrefix(path, "./")
}
