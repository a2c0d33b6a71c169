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

// Package validate reports project imports of packages the project does not
// declare as dependencies.
package validate

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"bennypowers.dev/bindle/fs"
	"bennypowers.dev/bindle/graph"
	"bennypowers.dev/bindle/packagejson"
	"bennypowers.dev/bindle/resolve"
)

// IssueType classifies the type of import issue.
type IssueType int

const (
	// TransitiveDep indicates the package is in node_modules but not in dependencies.
	TransitiveDep IssueType = iota
	// DevDep indicates the package is a devDependency.
	DevDep
	// NotInstalled indicates the package is not found in node_modules.
	NotInstalled
)

// String returns a human-readable description of the issue type.
func (t IssueType) String() string {
	switch t {
	case TransitiveDep:
		return "transitive dependency"
	case DevDep:
		return "devDependency"
	case NotInstalled:
		return "not installed"
	default:
		return "unknown"
	}
}

// Issue is one import of an undeclared package. It is reported as a build
// warning.
type Issue struct {
	File      string    // Module path where import was found
	Line      int       // Line number of the import specifier
	Specifier string    // The full import specifier
	Package   string    // Extracted package name
	Type      IssueType // Type of issue
}

func (i *Issue) Error() string {
	return fmt.Sprintf("%s:%d: import %q uses %s package %s", i.File, i.Line, i.Specifier, i.Type, i.Package)
}

// Check validates the bare imports of every project module in g against the
// package.json in root. Modules under node_modules are not checked. Without
// a package.json there is nothing to check against.
func Check(fsys fs.FileSystem, root string, g *graph.Graph) ([]*Issue, error) {
	pkgPath := filepath.Join(root, "package.json")
	if !fsys.Exists(pkgPath) {
		return nil, nil
	}
	pkg, err := packagejson.ParseFile(fsys, pkgPath)
	if err != nil {
		return nil, err
	}

	var issues []*Issue
	for _, rec := range g.Records() {
		if rec.ID.IsExternal() || strings.Contains(filepath.ToSlash(rec.ID.Path), "/node_modules/") {
			continue
		}
		for _, edge := range rec.Edges {
			if edge.Resolved.IsExternal() || !resolve.IsBareSpecifier(edge.Specifier) {
				continue
			}
			name := resolve.PackageName(edge.Specifier)
			if name == pkg.Name || pkg.DependsOn(name) {
				continue
			}

			issue := &Issue{
				File:      rec.ID.Path,
				Line:      edge.Line,
				Specifier: edge.Specifier,
				Package:   name,
			}
			switch {
			case hasKey(pkg.DevDependencies, name):
				issue.Type = DevDep
			case fsys.Exists(filepath.Join(root, "node_modules", filepath.FromSlash(name))):
				issue.Type = TransitiveDep
			default:
				issue.Type = NotInstalled
			}
			issues = append(issues, issue)
		}
	}
	slices.SortStableFunc(issues, func(a, b *Issue) int {
		if c := strings.Compare(a.File, b.File); c != 0 {
			return c
		}
		return a.Line - b.Line
	})
	return issues, nil
}

func hasKey(m map[string]string, key string) bool {
	_, ok := m[key]
	return ok
}

// Plugin runs Check after every build.
type Plugin struct {
	fsys fs.FileSystem
	root string
}

// New returns a plugin checking against the package.json in root.
func New(fsys fs.FileSystem, root string) *Plugin {
	if abs, err := filepath.Abs(root); err == nil {
		root = abs
	}
	return &Plugin{fsys: fsys, root: root}
}

func (p *Plugin) Name() string {
	return "validate"
}

// OnGraphComplete reports each issue as a warning.
func (p *Plugin) OnGraphComplete(_ context.Context, g *graph.Graph) []error {
	issues, err := Check(p.fsys, p.root, g)
	if err != nil {
		return []error{fmt.Errorf("validate: %w", err)}
	}
	errs := make([]error, len(issues))
	for i, issue := range issues {
		errs[i] = issue
	}
	return errs
}
